package escrow

import (
	"strconv"

	"glittr/core/events"
)

const (
	EventTypeJobPosted     = "escrow.job.posted"
	EventTypeOfferCreated  = "escrow.offer.created"
	EventTypeJobAccepted   = "escrow.job.accepted"
	EventTypeFilesUploaded = "escrow.job.files_uploaded"
	EventTypeJobSubmitted  = "escrow.job.submitted"
	EventTypeJobVerified   = "escrow.job.verified"
	EventTypeJobFeedback   = "escrow.job.feedback"
	EventTypeJobDisputed   = "escrow.job.disputed"
	EventTypeJobReleased   = "escrow.job.released"
	EventTypeJobResolved   = "escrow.job.resolved"
)

// NewJobPostedEvent returns the canonical payload for a newly posted job.
func NewJobPostedEvent(j *Job) *events.Event { return newJobEvent(EventTypeJobPosted, j) }

// NewJobAcceptedEvent returns the payload emitted when a freelancer binds to
// a job and commits the counter-stake.
func NewJobAcceptedEvent(j *Job) *events.Event { return newJobEvent(EventTypeJobAccepted, j) }

// NewFilesUploadedEvent returns the payload emitted on a manifest append.
func NewFilesUploadedEvent(j *Job) *events.Event { return newJobEvent(EventTypeFilesUploaded, j) }

// NewJobSubmittedEvent returns the payload emitted when work is submitted
// for verification.
func NewJobSubmittedEvent(j *Job) *events.Event { return newJobEvent(EventTypeJobSubmitted, j) }

// NewJobVerifiedEvent returns the payload emitted when a score clears the
// pass threshold.
func NewJobVerifiedEvent(j *Job) *events.Event { return newJobEvent(EventTypeJobVerified, j) }

// NewJobFeedbackEvent returns the payload emitted when a score lands in the
// fix-and-resubmit band.
func NewJobFeedbackEvent(j *Job) *events.Event { return newJobEvent(EventTypeJobFeedback, j) }

// NewJobDisputedEvent returns the payload emitted when a job enters dispute.
func NewJobDisputedEvent(j *Job) *events.Event { return newJobEvent(EventTypeJobDisputed, j) }

// NewJobReleasedEvent returns the payload emitted when the client releases
// the escrowed principal.
func NewJobReleasedEvent(j *Job) *events.Event { return newJobEvent(EventTypeJobReleased, j) }

// NewJobResolvedEvent returns the payload emitted when a dispute settles.
func NewJobResolvedEvent(j *Job) *events.Event { return newJobEvent(EventTypeJobResolved, j) }

// NewOfferCreatedEvent returns the payload for a freshly published offer.
func NewOfferCreatedEvent(o *JobOffer) *events.Event {
	attrs := make(map[string]string)
	if o != nil {
		attrs["id"] = o.ID
		attrs["client"] = o.Client
		attrs["stake"] = strconv.FormatInt(int64(o.Stake), 10)
		attrs["required"] = strconv.FormatInt(int64(o.Required), 10)
		attrs["durationDays"] = strconv.FormatInt(o.DurationDays, 10)
	}
	return &events.Event{Type: EventTypeOfferCreated, Attributes: attrs}
}

func newJobEvent(eventType string, j *Job) *events.Event {
	attrs := make(map[string]string)
	if j == nil {
		return &events.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = j.ID
	attrs["client"] = j.Client
	if j.Freelancer != "" {
		attrs["freelancer"] = j.Freelancer
	}
	attrs["stake"] = strconv.FormatInt(int64(j.Stake), 10)
	if j.CounterStake > 0 {
		attrs["counterStake"] = strconv.FormatInt(int64(j.CounterStake), 10)
	}
	attrs["status"] = j.Status.String()
	attrs["deadline"] = strconv.FormatInt(j.Deadline, 10)
	if j.Score != nil {
		attrs["score"] = strconv.Itoa(*j.Score)
	}
	if j.Reason != "" {
		attrs["reason"] = string(j.Reason)
	}
	return &events.Event{Type: eventType, Attributes: attrs}
}
