package escrow

import "testing"

func TestJobEventAttributes(t *testing.T) {
	score := 92
	job := &Job{
		ID:           "job-1",
		Client:       "client-1",
		Freelancer:   "freelancer-1",
		Stake:        15_000_000,
		CounterStake: 7_500_000,
		Deadline:     1_700_600_000,
		Score:        &score,
		Status:       JobAIVerified,
	}
	event := NewJobVerifiedEvent(job)
	if event.EventType() != EventTypeJobVerified {
		t.Fatalf("unexpected type: %s", event.EventType())
	}
	attrs := event.Attributes
	if attrs["id"] != "job-1" || attrs["client"] != "client-1" || attrs["freelancer"] != "freelancer-1" {
		t.Fatalf("party attributes missing: %v", attrs)
	}
	if attrs["status"] != "ai_verified" || attrs["score"] != "92" {
		t.Fatalf("state attributes missing: %v", attrs)
	}
}

func TestDisputeEventCarriesReason(t *testing.T) {
	job := &Job{ID: "job-1", Client: "c", Status: JobDisputed, Reason: DisputeMissedDeadline}
	event := NewJobDisputedEvent(job)
	if event.Attributes["reason"] != string(DisputeMissedDeadline) {
		t.Fatalf("reason missing: %v", event.Attributes)
	}
}

func TestOfferEventAttributes(t *testing.T) {
	offer := &JobOffer{ID: "offer-1", Client: "c", Stake: 5_000_000, Required: 2_500_000}
	event := NewOfferCreatedEvent(offer)
	if event.EventType() != EventTypeOfferCreated {
		t.Fatalf("unexpected type: %s", event.EventType())
	}
	if event.Attributes["id"] != "offer-1" {
		t.Fatalf("id missing: %v", event.Attributes)
	}
}
