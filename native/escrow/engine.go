package escrow

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/btcsuite/btcutil"
	"github.com/google/uuid"

	"glittr/core/events"
	"glittr/native/ledger"
)

var (
	errNilState  = errors.New("escrow engine: state not configured")
	errNilLedger = errors.New("escrow engine: ledger not configured")

	// ErrJobNotFound is returned when the referenced job id does not exist.
	ErrJobNotFound = errors.New("escrow: job not found")
	// ErrOfferNotFound is returned when the referenced offer id does not exist.
	ErrOfferNotFound = errors.New("escrow: offer not found")
	// ErrUnauthorized is returned when the caller is not a party allowed to
	// drive the requested transition.
	ErrUnauthorized = errors.New("escrow: unauthorized caller")
	// ErrEmptyManifest rejects a submission with no uploaded files.
	ErrEmptyManifest = errors.New("escrow: submission manifest is empty")
)

// InvalidTransitionError reports a transition attempted from a state that
// does not admit it. It always identifies the current state, the requested
// event and the states that would have been accepted.
type InvalidTransitionError struct {
	JobID   string
	Current JobStatus
	Event   string
	Allowed []JobStatus
}

func (e *InvalidTransitionError) Error() string {
	names := make([]string, 0, len(e.Allowed))
	for _, status := range e.Allowed {
		names = append(names, status.String())
	}
	return fmt.Sprintf("escrow: job %s is %s, cannot %s (allowed from: %s)",
		e.JobID, e.Current, e.Event, strings.Join(names, ", "))
}

func invalidTransition(jobID string, current JobStatus, event string, allowed ...JobStatus) error {
	return &InvalidTransitionError{JobID: jobID, Current: current, Event: event, Allowed: allowed}
}

// engineState abstracts the persistence backend the engine mutates. The
// gateway provides a database-backed implementation; tests use an in-memory
// map.
type engineState interface {
	JobPut(*Job) error
	JobGet(id string) (*Job, bool)
	OfferPut(*JobOffer) error
	OfferGet(id string) (*JobOffer, bool)
	OfferDelete(id string) error
	ContractPut(*Contract) error
	ContractGet(id string) (*Contract, bool)
}

// stakeLedger is the subset of ledger operations the engine issues. Every
// transition maps to at most a handful of these intents; the ledger rejects
// any intent that would break the stake invariant and the engine surfaces
// that rejection without mutating job state.
type stakeLedger interface {
	Commit(actor string, amount btcutil.Amount) error
	Release(actor string, amount btcutil.Amount, dest ledger.Bucket) error
	Slash(actor string, amount btcutil.Amount, beneficiary string) error
	Settle(moves ...ledger.Move) error
}

// Engine owns the escrow lifecycle. Transitions for a given job are
// serialized on a per-job lock; distinct jobs proceed in parallel.
type Engine struct {
	state   engineState
	ledger  stakeLedger
	gate    Gate
	policy  Policy
	emitter events.Emitter
	nowFn   func() int64
	idFn    func() string

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// NewEngine creates an engine with the default policy and a no-op emitter.
func NewEngine() *Engine {
	policy := DefaultPolicy()
	return &Engine{
		gate:    NewGate(policy),
		policy:  policy,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
		idFn:    func() string { return uuid.NewString() },
		locks:   make(map[string]*sync.Mutex),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger configures the stake ledger mutated by transitions.
func (e *Engine) SetLedger(l stakeLedger) { e.ledger = l }

// SetPolicy replaces the lifecycle policy and rebuilds the verification gate.
func (e *Engine) SetPolicy(policy Policy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	e.policy = policy
	e.gate = NewGate(policy)
	return nil
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetIDFunc overrides identifier generation, primarily for tests.
func (e *Engine) SetIDFunc(id func() string) {
	if id == nil {
		e.idFn = func() string { return uuid.NewString() }
		return
	}
	e.idFn = id
}

func (e *Engine) emit(event *events.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// lockJob serializes transitions for one job id. Offer acceptance reuses the
// same map under an "offer/" prefixed key so an offer can be claimed once.
func (e *Engine) lockJob(id string) func() {
	e.lockMu.Lock()
	mu, ok := e.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[id] = mu
	}
	e.lockMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

// dropLock evicts the per-job mutex once the id can no longer transition.
// A goroutine already waiting on the evicted mutex still loads the job and
// is rejected by its terminal-status guard.
func (e *Engine) dropLock(id string) {
	e.lockMu.Lock()
	delete(e.locks, id)
	e.lockMu.Unlock()
}

// rollbackCommit returns just-committed funds to the actor's balance after a
// later write in the same transition fails. The release mirrors the commit
// exactly; a failure here means the ledger is corrupted and is joined onto
// the original error.
func (e *Engine) rollbackCommit(actor string, amount btcutil.Amount, cause error) error {
	if rbErr := e.ledger.Release(actor, amount, ledger.BucketFree); rbErr != nil {
		return errors.Join(cause, rbErr)
	}
	return cause
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	return nil
}

func (e *Engine) loadJob(id string) (*Job, error) {
	job, ok := e.state.JobGet(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job, nil
}

func (e *Engine) storeJob(job *Job) error {
	sanitized, err := SanitizeJob(job)
	if err != nil {
		return err
	}
	return e.state.JobPut(sanitized)
}

func (e *Engine) setContractStatus(job *Job, status ContractStatus) error {
	if job.ContractID == "" {
		return nil
	}
	contract, ok := e.state.ContractGet(job.ContractID)
	if !ok {
		return nil
	}
	if contract.Status == status {
		return nil
	}
	contract.Status = status
	return e.state.ContractPut(contract)
}

// PostJob publishes a new job and commits the client's principal to the
// at-risk bucket. The job starts Open and binds a freelancer on acceptance.
func (e *Engine) PostJob(client, title, requirements, description string, stake btcutil.Amount, deadline int64) (*Job, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	client = strings.TrimSpace(client)
	if client == "" {
		return nil, fmt.Errorf("escrow: client required")
	}
	if stake <= 0 {
		return nil, fmt.Errorf("escrow: stake must be positive")
	}
	now := e.now()
	if deadline <= now {
		return nil, fmt.Errorf("escrow: deadline before creation time")
	}
	if err := e.ledger.Commit(client, stake); err != nil {
		return nil, err
	}
	job := &Job{
		ID:           e.idFn(),
		Title:        strings.TrimSpace(title),
		Requirements: requirements,
		Description:  description,
		Client:       client,
		Stake:        stake,
		Deadline:     deadline,
		CreatedAt:    now,
		Status:       JobOpen,
	}
	if err := e.storeJob(job); err != nil {
		return nil, e.rollbackCommit(client, stake, err)
	}
	e.emit(NewJobPostedEvent(job))
	return job.Clone(), nil
}

// CreateOffer publishes a job offer and commits the client's principal. The
// offer names the counter-stake a freelancer must bond to accept it.
func (e *Engine) CreateOffer(client, title, description string, stake, required btcutil.Amount, durationDays int64, skills []string) (*JobOffer, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	offer := &JobOffer{
		ID:           e.idFn(),
		Title:        strings.TrimSpace(title),
		Client:       strings.TrimSpace(client),
		Stake:        stake,
		Required:     required,
		DurationDays: durationDays,
		Skills:       skills,
		Description:  description,
		CreatedAt:    e.now(),
	}
	sanitized, err := SanitizeOffer(offer)
	if err != nil {
		return nil, err
	}
	if err := e.ledger.Commit(sanitized.Client, sanitized.Stake); err != nil {
		return nil, err
	}
	if err := e.state.OfferPut(sanitized); err != nil {
		return nil, e.rollbackCommit(sanitized.Client, sanitized.Stake, err)
	}
	e.emit(NewOfferCreatedEvent(sanitized))
	return sanitized.Clone(), nil
}

// AcceptOffer converts an open offer into an InProgress job, committing the
// freelancer's counter-stake. Acceptance is serialized on the offer id so
// only one caller can claim it; the offer is removed atomically with job
// creation and there is no state where both exist.
func (e *Engine) AcceptOffer(freelancer, offerID string) (*Job, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	freelancer = strings.TrimSpace(freelancer)
	if freelancer == "" {
		return nil, fmt.Errorf("escrow: freelancer required")
	}
	unlock := e.lockJob("offer/" + offerID)
	defer unlock()
	offer, ok := e.state.OfferGet(offerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOfferNotFound, offerID)
	}
	if freelancer == offer.Client {
		return nil, fmt.Errorf("%w: client cannot accept own offer", ErrUnauthorized)
	}
	if err := e.ledger.Commit(freelancer, offer.Required); err != nil {
		return nil, err
	}
	now := e.now()
	job := &Job{
		ID:           e.idFn(),
		Title:        offer.Title,
		Requirements: offer.Description,
		Description:  offer.Description,
		Client:       offer.Client,
		Freelancer:   freelancer,
		Stake:        offer.Stake,
		CounterStake: offer.Required,
		Deadline:     now + offer.DurationDays*86_400,
		CreatedAt:    now,
		Status:       JobInProgress,
	}
	contract := &Contract{
		ID:        e.idFn(),
		Address:   ContractAddress(job.Client, job.Freelancer, job.ID),
		JobID:     job.ID,
		CreatedAt: now,
		Status:    ContractActive,
	}
	job.ContractID = contract.ID
	// The contract row is inert until a job references it and the offer
	// delete is undone with a re-put, so every failure below can return the
	// committed counter-stake without leaving a live claim on the principal.
	if err := e.state.ContractPut(contract); err != nil {
		return nil, e.rollbackCommit(freelancer, offer.Required, err)
	}
	if err := e.state.OfferDelete(offerID); err != nil {
		return nil, e.rollbackCommit(freelancer, offer.Required, err)
	}
	if err := e.storeJob(job); err != nil {
		if rbErr := e.state.OfferPut(offer); rbErr != nil {
			err = errors.Join(err, rbErr)
		}
		return nil, e.rollbackCommit(freelancer, offer.Required, err)
	}
	e.dropLock("offer/" + offerID)
	e.emit(NewJobAcceptedEvent(job))
	return job.Clone(), nil
}

// AcceptJob binds a freelancer to a directly posted job. The required
// counter-stake defaults to the policy share of the principal.
func (e *Engine) AcceptJob(freelancer, jobID string) (*Job, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	unlock := e.lockJob(jobID)
	defer unlock()
	freelancer = strings.TrimSpace(freelancer)
	if freelancer == "" {
		return nil, fmt.Errorf("escrow: freelancer required")
	}
	job, err := e.loadJob(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != JobOpen {
		return nil, invalidTransition(jobID, job.Status, "accept", JobOpen)
	}
	if freelancer == job.Client {
		return nil, fmt.Errorf("%w: client cannot accept own job", ErrUnauthorized)
	}
	counter := slashPortion(job.Stake, e.policy.CounterStakeBps)
	if err := e.ledger.Commit(freelancer, counter); err != nil {
		return nil, err
	}
	now := e.now()
	contract := &Contract{
		ID:        e.idFn(),
		Address:   ContractAddress(job.Client, freelancer, job.ID),
		JobID:     job.ID,
		CreatedAt: now,
		Status:    ContractActive,
	}
	job.Freelancer = freelancer
	job.CounterStake = counter
	job.Status = JobInProgress
	job.ContractID = contract.ID
	// Contract first: the row is inert until the job write references it, so
	// a failure on either write only has the counter-stake to return.
	if err := e.state.ContractPut(contract); err != nil {
		return nil, e.rollbackCommit(freelancer, counter, err)
	}
	if err := e.storeJob(job); err != nil {
		return nil, e.rollbackCommit(freelancer, counter, err)
	}
	e.emit(NewJobAcceptedEvent(job))
	return job.Clone(), nil
}

// UploadFiles appends to the submission manifest. Uploads are only accepted
// while the job is InProgress; once submitted, the freelancer must take the
// explicit resubmission path instead.
func (e *Engine) UploadFiles(jobID string, files []string) (*Job, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	unlock := e.lockJob(jobID)
	defer unlock()
	job, err := e.loadJob(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != JobInProgress {
		return nil, invalidTransition(jobID, job.Status, "upload files", JobInProgress)
	}
	appended := 0
	for _, name := range files {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		job.Files = append(job.Files, trimmed)
		appended++
	}
	if appended == 0 {
		return nil, fmt.Errorf("escrow: no files to upload")
	}
	if err := e.storeJob(job); err != nil {
		return nil, err
	}
	e.emit(NewFilesUploadedEvent(job))
	return job.Clone(), nil
}

// SubmitForVerification moves an InProgress job with a non-empty manifest to
// Submitted and freezes the manifest digest. Requesting a score from the
// grader is the caller's responsibility; results re-enter via ScoreReceived.
// Resubmission after feedback follows ReopenForRework, UploadFiles and then
// this transition again; the deadline is never reset.
func (e *Engine) SubmitForVerification(jobID, notes string) (*Job, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	unlock := e.lockJob(jobID)
	defer unlock()
	job, err := e.loadJob(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != JobInProgress {
		return nil, invalidTransition(jobID, job.Status, "submit for verification", JobInProgress)
	}
	if len(job.Files) == 0 {
		return nil, ErrEmptyManifest
	}
	job.Status = JobSubmitted
	job.SubmittedAt = e.now()
	job.Manifest = ManifestDigest(job.Files)
	if notes != "" {
		job.Notes = notes
	}
	job.Score = nil
	if err := e.storeJob(job); err != nil {
		return nil, err
	}
	e.emit(NewJobSubmittedEvent(job))
	return job.Clone(), nil
}

// ReopenForRework returns a feedback-band submission to InProgress so the
// freelancer can upload fixes and resubmit. Only jobs holding a feedback
// score may reopen; the deadline keeps running.
func (e *Engine) ReopenForRework(jobID string) (*Job, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	unlock := e.lockJob(jobID)
	defer unlock()
	job, err := e.loadJob(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != JobSubmitted {
		return nil, invalidTransition(jobID, job.Status, "reopen for rework", JobSubmitted)
	}
	if job.Score == nil {
		return nil, fmt.Errorf("escrow: job %s has no score yet", jobID)
	}
	if outcome, err := e.gate.Classify(*job.Score); err != nil {
		return nil, err
	} else if outcome != OutcomeFeedback {
		return nil, fmt.Errorf("escrow: job %s score %d is not in the feedback band", jobID, *job.Score)
	}
	job.Status = JobInProgress
	job.Score = nil
	if err := e.storeJob(job); err != nil {
		return nil, err
	}
	return job.Clone(), nil
}

// ScoreReceived applies the grader's verdict to a submitted job. Scores at
// or above the pass threshold verify the job; the feedback band keeps it
// submitted for rework; anything below fails into dispute. Replaying the
// verdict of an already verified job is a no-op: ledger effects only ever
// apply on the transition out of the verified state, never per report.
func (e *Engine) ScoreReceived(jobID string, result VerificationResult) (*Job, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	unlock := e.lockJob(jobID)
	defer unlock()
	job, err := e.loadJob(jobID)
	if err != nil {
		return nil, err
	}
	outcome, err := e.gate.Classify(result.Score)
	if err != nil {
		return nil, err
	}
	if job.Status == JobAIVerified {
		return job.Clone(), nil
	}
	if job.Status != JobSubmitted {
		return nil, invalidTransition(jobID, job.Status, "score received", JobSubmitted)
	}
	score := result.Score
	job.Score = &score
	switch outcome {
	case OutcomePass:
		job.Status = JobAIVerified
		if err := e.storeJob(job); err != nil {
			return nil, err
		}
		e.emit(NewJobVerifiedEvent(job))
	case OutcomeFeedback:
		if err := e.storeJob(job); err != nil {
			return nil, err
		}
		e.emit(NewJobFeedbackEvent(job))
	case OutcomeFail:
		job.Status = JobDisputed
		job.Reason = DisputeLowQuality
		if err := e.storeJob(job); err != nil {
			return nil, err
		}
		if err := e.setContractStatus(job, ContractDisputed); err != nil {
			return nil, err
		}
		e.emit(NewJobDisputedEvent(job))
	}
	return job.Clone(), nil
}

// DeadlinePassed disputes a job whose deadline elapsed while work was still
// owed. Calling it on a job already disputed is a no-op so sweepers can fire
// repeatedly without error.
func (e *Engine) DeadlinePassed(jobID string, now int64) (*Job, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	unlock := e.lockJob(jobID)
	defer unlock()
	job, err := e.loadJob(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == JobDisputed {
		return job.Clone(), nil
	}
	if job.Status != JobInProgress && job.Status != JobSubmitted {
		return nil, invalidTransition(jobID, job.Status, "deadline passed", JobInProgress, JobSubmitted)
	}
	if now < job.Deadline {
		return nil, fmt.Errorf("escrow: job %s deadline not reached", jobID)
	}
	job.Status = JobDisputed
	job.Reason = DisputeMissedDeadline
	if err := e.storeJob(job); err != nil {
		return nil, err
	}
	if err := e.setContractStatus(job, ContractDisputed); err != nil {
		return nil, err
	}
	e.emit(NewJobDisputedEvent(job))
	return job.Clone(), nil
}

// ReleaseFunds settles a verified job in the freelancer's favour. Only the
// client may release. The principal moves from the client's at-risk bucket
// to the freelancer's balance and the counter-stake locks as earned.
func (e *Engine) ReleaseFunds(jobID, caller string) (*Job, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	unlock := e.lockJob(jobID)
	defer unlock()
	job, err := e.loadJob(jobID)
	if err != nil {
		return nil, err
	}
	if caller != job.Client {
		return nil, fmt.Errorf("%w: only the client may release funds", ErrUnauthorized)
	}
	if job.Status != JobAIVerified {
		return nil, invalidTransition(jobID, job.Status, "release funds", JobAIVerified)
	}
	prev := job.Clone()
	job.Status = JobCompleted
	// State commits before funds move so a store failure settles nothing; a
	// rejected settlement batch restores the previous row.
	if err := e.storeJob(job); err != nil {
		return nil, err
	}
	if err := e.ledger.Settle(
		ledger.Move{Kind: ledger.MoveSlash, Actor: job.Client, Amount: job.Stake, Beneficiary: job.Freelancer},
		ledger.Move{Kind: ledger.MoveRelease, Actor: job.Freelancer, Amount: job.CounterStake, Dest: ledger.BucketLocked},
	); err != nil {
		if rbErr := e.storeJob(prev); rbErr != nil {
			return nil, errors.Join(err, rbErr)
		}
		return nil, err
	}
	if err := e.setContractStatus(job, ContractCompleted); err != nil {
		return nil, err
	}
	e.dropLock(jobID)
	e.emit(NewJobReleasedEvent(job))
	return job.Clone(), nil
}

// Dispute flags a job as manually disputed. Only the client or the
// freelancer may invoke it, and only before settlement. Disputing an
// already disputed job is a no-op.
func (e *Engine) Dispute(jobID, caller string) (*Job, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	unlock := e.lockJob(jobID)
	defer unlock()
	job, err := e.loadJob(jobID)
	if err != nil {
		return nil, err
	}
	if caller != job.Client && caller != job.Freelancer {
		return nil, fmt.Errorf("%w: only a party to the job may dispute", ErrUnauthorized)
	}
	if job.Status == JobDisputed {
		return job.Clone(), nil
	}
	switch job.Status {
	case JobInProgress, JobSubmitted, JobAIVerified:
	default:
		return nil, invalidTransition(jobID, job.Status, "dispute", JobInProgress, JobSubmitted, JobAIVerified)
	}
	job.Status = JobDisputed
	job.Reason = DisputeManual
	if err := e.storeJob(job); err != nil {
		return nil, err
	}
	if err := e.setContractStatus(job, ContractDisputed); err != nil {
		return nil, err
	}
	e.emit(NewJobDisputedEvent(job))
	return job.Clone(), nil
}

// ResolveDispute settles a disputed job according to its recorded reason.
//
// A missed deadline slashes the policy share of the counter-stake to the
// client, returns the remainder to the freelancer and refunds the client's
// principal in full. A low-quality failure slashes the entire counter-stake
// and refunds the principal. A manual dispute splits the principal by the
// arbitrated clientShareRatio and returns the counter-stake untouched; it is
// the only path producing a non-binary settlement.
func (e *Engine) ResolveDispute(jobID string, clientShareRatio float64) (*Job, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	unlock := e.lockJob(jobID)
	defer unlock()
	job, err := e.loadJob(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != JobDisputed {
		return nil, invalidTransition(jobID, job.Status, "resolve dispute", JobDisputed)
	}
	prev := job.Clone()
	var moves []ledger.Move
	switch job.Reason {
	case DisputeMissedDeadline:
		slashed := slashPortion(job.CounterStake, e.policy.MissedDeadlineSlashBps)
		moves = []ledger.Move{
			{Kind: ledger.MoveSlash, Actor: job.Freelancer, Amount: slashed, Beneficiary: job.Client},
			{Kind: ledger.MoveRelease, Actor: job.Freelancer, Amount: job.CounterStake - slashed, Dest: ledger.BucketFree},
			{Kind: ledger.MoveRelease, Actor: job.Client, Amount: job.Stake, Dest: ledger.BucketFree},
		}
		job.Status = JobSlashed
	case DisputeLowQuality:
		slashed := slashPortion(job.CounterStake, e.policy.LowQualitySlashBps)
		moves = []ledger.Move{
			{Kind: ledger.MoveSlash, Actor: job.Freelancer, Amount: slashed, Beneficiary: job.Client},
			{Kind: ledger.MoveRelease, Actor: job.Freelancer, Amount: job.CounterStake - slashed, Dest: ledger.BucketFree},
			{Kind: ledger.MoveRelease, Actor: job.Client, Amount: job.Stake, Dest: ledger.BucketFree},
		}
		job.Status = JobRefunded
	case DisputeManual:
		clientAmount, freelancerAmount, err := Split(job.Stake, clientShareRatio)
		if err != nil {
			return nil, err
		}
		moves = []ledger.Move{
			{Kind: ledger.MoveRelease, Actor: job.Client, Amount: clientAmount, Dest: ledger.BucketFree},
			{Kind: ledger.MoveSlash, Actor: job.Client, Amount: freelancerAmount, Beneficiary: job.Freelancer},
			{Kind: ledger.MoveRelease, Actor: job.Freelancer, Amount: job.CounterStake, Dest: ledger.BucketFree},
		}
		job.Status = JobCompleted
	default:
		return nil, fmt.Errorf("escrow: job %s has no dispute reason", jobID)
	}
	// State commits before funds move; a rejected settlement batch restores
	// the disputed row untouched.
	if err := e.storeJob(job); err != nil {
		return nil, err
	}
	if err := e.ledger.Settle(moves...); err != nil {
		if rbErr := e.storeJob(prev); rbErr != nil {
			return nil, errors.Join(err, rbErr)
		}
		return nil, err
	}
	if err := e.setContractStatus(job, ContractCompleted); err != nil {
		return nil, err
	}
	e.dropLock(jobID)
	e.emit(NewJobResolvedEvent(job))
	return job.Clone(), nil
}

// Job returns a copy of the stored job.
func (e *Engine) Job(jobID string) (*Job, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	job, err := e.loadJob(jobID)
	if err != nil {
		return nil, err
	}
	return job.Clone(), nil
}

// Contract returns a copy of the stored contract record.
func (e *Engine) Contract(contractID string) (*Contract, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	contract, ok := e.state.ContractGet(contractID)
	if !ok {
		return nil, fmt.Errorf("escrow: contract not found: %s", contractID)
	}
	return contract.Clone(), nil
}

// Offer returns a copy of the stored offer.
func (e *Engine) Offer(offerID string) (*JobOffer, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	offer, ok := e.state.OfferGet(offerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOfferNotFound, offerID)
	}
	return offer.Clone(), nil
}
