package server

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/btcsuite/btcutil"
	"github.com/go-chi/chi/v5"

	"glittr/native/escrow"
	"glittr/services/trustlock-gateway/auth"
	"glittr/services/trustlock-gateway/grader"
)

type postJobRequest struct {
	Title        string `json:"title"`
	Requirements string `json:"requirements"`
	Description  string `json:"description"`
	Stake        string `json:"stake"`
	Deadline     string `json:"deadline"`
}

func (s *Server) handlePostJob(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.FromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	var req postJobRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	stake, err := parseBTC(req.Stake)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	deadline, err := time.Parse(time.RFC3339, req.Deadline)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid deadline: expected RFC3339"))
		return
	}
	job, err := s.engine.PostJob(claims.Subject, req.Title, req.Requirements, req.Description, stake, deadline.Unix())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.JobsCreated.Inc()
	}
	s.snapshotWallets()
	writeJSON(w, http.StatusCreated, viewJob(job))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" {
		if _, err := escrow.ParseJobStatus(status); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	participant := ""
	if r.URL.Query().Get("mine") == "true" {
		claims, err := auth.FromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		participant = claims.Subject
	}
	jobs, err := s.store.ListJobs(status, participant, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	views := make([]jobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, viewJob(job))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": views})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.engine.Job(chi.URLParam(r, "id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewJob(job))
}

func (s *Server) handleAcceptJob(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.FromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	job, err := s.engine.AcceptJob(claims.Subject, chi.URLParam(r, "id"))
	if err != nil {
		s.recordTransition("accept", err)
		s.writeEngineError(w, err)
		return
	}
	s.recordTransition("accept", nil)
	s.snapshotWallets()
	writeJSON(w, http.StatusOK, viewJob(job))
}

type uploadFilesRequest struct {
	Files []string `json:"files"`
}

func (s *Server) handleUploadFiles(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.FromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	jobID := chi.URLParam(r, "id")
	current, err := s.engine.Job(jobID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if current.Freelancer != claims.Subject {
		writeError(w, http.StatusForbidden, errors.New("only the assigned freelancer may upload files"))
		return
	}
	var req uploadFilesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	job, err := s.engine.UploadFiles(jobID, req.Files)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewJob(job))
}

type submitRequest struct {
	Notes string `json:"notes"`
}

// handleSubmit freezes the manifest and synchronously requests a verdict
// from the grader. A grader outage leaves the job submitted; the arbiter
// score endpoint or a later resubmission can still move it forward.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.FromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	jobID := chi.URLParam(r, "id")
	current, err := s.engine.Job(jobID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if current.Freelancer != claims.Subject {
		writeError(w, http.StatusForbidden, errors.New("only the assigned freelancer may submit"))
		return
	}
	var req submitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	job, err := s.engine.SubmitForVerification(jobID, req.Notes)
	if err != nil {
		s.recordTransition("submit", err)
		s.writeEngineError(w, err)
		return
	}
	s.recordTransition("submit", nil)

	result, gradeErr := s.requestScore(r, job)
	if gradeErr != nil {
		s.logger.Error("grader unavailable, job stays submitted", "job", job.ID, "error", gradeErr)
		writeJSON(w, http.StatusAccepted, map[string]any{
			"job":     viewJob(job),
			"warning": "verification pending: grader unavailable",
		})
		return
	}
	job, err = s.engine.ScoreReceived(job.ID, result)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job":    viewJob(job),
		"review": result,
	})
}

func (s *Server) requestScore(r *http.Request, job *escrow.Job) (escrow.VerificationResult, error) {
	started := time.Now()
	result, err := s.scorer.Score(r.Context(), grader.Request{
		JobID:        job.ID,
		Requirements: job.Requirements,
		Files:        job.Files,
		Manifest:     hex.EncodeToString(job.Manifest[:]),
		Notes:        job.Notes,
	})
	if s.metrics != nil {
		s.metrics.GraderLatency.Observe(time.Since(started).Seconds())
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.metrics.GraderRequests.WithLabelValues(status).Inc()
	}
	return result, err
}

func (s *Server) handleRework(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.FromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	jobID := chi.URLParam(r, "id")
	current, err := s.engine.Job(jobID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if current.Freelancer != claims.Subject {
		writeError(w, http.StatusForbidden, errors.New("only the assigned freelancer may reopen"))
		return
	}
	job, err := s.engine.ReopenForRework(jobID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewJob(job))
}

type scoreRequest struct {
	Score           int      `json:"score"`
	Issues          []string `json:"issues"`
	Strengths       []string `json:"strengths"`
	Recommendations []string `json:"recommendations"`
}

// handleScore lets an arbiter record a verdict directly, covering grader
// outages and appeals.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	job, err := s.engine.ScoreReceived(chi.URLParam(r, "id"), escrow.VerificationResult{
		Score:           req.Score,
		Issues:          req.Issues,
		Strengths:       req.Strengths,
		Recommendations: req.Recommendations,
	})
	if err != nil {
		s.recordTransition("score", err)
		s.writeEngineError(w, err)
		return
	}
	s.recordTransition("score", nil)
	writeJSON(w, http.StatusOK, viewJob(job))
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.FromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	jobID := chi.URLParam(r, "id")
	before, err := s.engine.Job(jobID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	clientBefore, freelancerBefore := s.balances(before)

	job, err := s.engine.ReleaseFunds(jobID, claims.Subject)
	if err != nil {
		s.recordTransition("release", err)
		s.writeEngineError(w, err)
		return
	}
	s.recordTransition("release", nil)
	s.recordSettlement(job, clientBefore, freelancerBefore)
	writeJSON(w, http.StatusOK, viewJob(job))
}

func (s *Server) handleDispute(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.FromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	job, err := s.engine.Dispute(chi.URLParam(r, "id"), claims.Subject)
	if err != nil {
		s.recordTransition("dispute", err)
		s.writeEngineError(w, err)
		return
	}
	s.recordTransition("dispute", nil)
	writeJSON(w, http.StatusOK, viewJob(job))
}

type resolveRequest struct {
	ClientShareRatio float64 `json:"clientShareRatio"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	jobID := chi.URLParam(r, "id")
	before, err := s.engine.Job(jobID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	clientBefore, freelancerBefore := s.balances(before)

	job, err := s.engine.ResolveDispute(jobID, req.ClientShareRatio)
	if err != nil {
		s.recordTransition("resolve", err)
		s.writeEngineError(w, err)
		return
	}
	s.recordTransition("resolve", nil)
	s.recordSettlement(job, clientBefore, freelancerBefore)
	writeJSON(w, http.StatusOK, viewJob(job))
}

type createOfferRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Stake        string   `json:"stake"`
	Required     string   `json:"required"`
	DurationDays int64    `json:"durationDays"`
	Skills       []string `json:"skills"`
}

func (s *Server) handleCreateOffer(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.FromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	var req createOfferRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	stake, err := parseBTC(req.Stake)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	required, err := parseBTC(req.Required)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	offer, err := s.engine.CreateOffer(claims.Subject, req.Title, req.Description, stake, required, req.DurationDays, req.Skills)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.JobsCreated.Inc()
	}
	s.snapshotWallets()
	writeJSON(w, http.StatusCreated, viewOffer(offer))
}

func (s *Server) handleListOffers(w http.ResponseWriter, r *http.Request) {
	offers, err := s.store.ListOffers(0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	views := make([]offerView, 0, len(offers))
	for _, offer := range offers {
		views = append(views, viewOffer(offer))
	}
	writeJSON(w, http.StatusOK, map[string]any{"offers": views})
}

func (s *Server) handleAcceptOffer(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.FromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	job, err := s.engine.AcceptOffer(claims.Subject, chi.URLParam(r, "id"))
	if err != nil {
		s.recordTransition("accept", err)
		s.writeEngineError(w, err)
		return
	}
	s.recordTransition("accept", nil)
	s.snapshotWallets()
	writeJSON(w, http.StatusOK, viewJob(job))
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.FromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	acct, _ := s.ledger.Account(claims.Subject)
	writeJSON(w, http.StatusOK, viewWallet(claims.Subject, acct))
}

type depositRequest struct {
	Amount string `json:"amount"`
}

// handleDeposit credits the caller's wallet. The on-chain funding pipeline
// calls this once a funding transaction confirms.
func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.FromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	var req depositRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseBTC(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.ledger.Deposit(claims.Subject, amount); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.snapshotWallets()
	acct, _ := s.ledger.Account(claims.Subject)
	writeJSON(w, http.StatusOK, viewWallet(claims.Subject, acct))
}

// --- bookkeeping helpers ---

func (s *Server) recordTransition(event string, err error) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	s.metrics.Transitions.WithLabelValues(event, result).Inc()
}

func (s *Server) balances(job *escrow.Job) (btcutil.Amount, btcutil.Amount) {
	client, _ := s.ledger.Account(job.Client)
	freelancer, _ := s.ledger.Account(job.Freelancer)
	return client.Balance, freelancer.Balance
}

// recordSettlement captures the free-balance deltas produced by a settling
// transition and persists the audit row plus the wallet snapshot.
func (s *Server) recordSettlement(job *escrow.Job, clientBefore, freelancerBefore btcutil.Amount) {
	clientAfter, freelancerAfter := s.balances(job)
	if err := s.store.AppendSettlement(job, clientAfter-clientBefore, freelancerAfter-freelancerBefore); err != nil {
		s.logger.Error("append settlement record", "job", job.ID, "error", err)
	}
	s.snapshotWallets()
	if s.metrics != nil {
		s.metrics.Settlements.WithLabelValues(job.Status.String()).Inc()
	}
}

func (s *Server) snapshotWallets() {
	if err := s.store.SaveWallets(s.ledger.Snapshot()); err != nil {
		s.logger.Error("persist wallet snapshot", "error", err)
	}
}
