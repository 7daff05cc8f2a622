package server

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/btcsuite/btcutil"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"glittr/core/events"
	"glittr/native/escrow"
	"glittr/native/ledger"
	"glittr/observability/metrics"
	"glittr/services/trustlock-gateway/auth"
	"glittr/services/trustlock-gateway/grader"
	"glittr/services/trustlock-gateway/middleware"
	"glittr/services/trustlock-gateway/store"
)

// Server wires the escrow engine, storage and grader behind the HTTP API.
type Server struct {
	engine   *escrow.Engine
	store    *store.Store
	ledger   *ledger.Ledger
	scorer   grader.Scorer
	verifier *auth.Verifier
	limiter  *middleware.RateLimiter
	metrics  *metrics.Gateway
	events   *events.Broadcaster
	logger   *slog.Logger
}

// Config bundles the dependencies needed to construct a Server.
type Config struct {
	Engine   *escrow.Engine
	Store    *store.Store
	Ledger   *ledger.Ledger
	Scorer   grader.Scorer
	Verifier *auth.Verifier
	Limiter  *middleware.RateLimiter
	Metrics  *metrics.Gateway
	Events   *events.Broadcaster
	Logger   *slog.Logger
}

// New constructs a Server from its dependencies.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:   cfg.Engine,
		store:    cfg.Store,
		ledger:   cfg.Ledger,
		scorer:   cfg.Scorer,
		verifier: cfg.Verifier,
		limiter:  cfg.Limiter,
		metrics:  cfg.Metrics,
		events:   cfg.Events,
		logger:   logger,
	}
}

// Router assembles the chi router with the full middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)
	if s.limiter != nil {
		r.Use(s.limiter.Middleware)
	}

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(s.verifier.Middleware)
		api.Use(func(next http.Handler) http.Handler {
			return middleware.WithIdempotency(s.store.DB(), next)
		})

		api.Get("/jobs", s.handleListJobs)
		api.Get("/jobs/{id}", s.handleGetJob)
		api.With(auth.RequireRole(auth.RoleClient)).Post("/jobs", s.handlePostJob)
		api.With(auth.RequireRole(auth.RoleFreelancer)).Post("/jobs/{id}/accept", s.handleAcceptJob)
		api.With(auth.RequireRole(auth.RoleFreelancer)).Post("/jobs/{id}/files", s.handleUploadFiles)
		api.With(auth.RequireRole(auth.RoleFreelancer)).Post("/jobs/{id}/submit", s.handleSubmit)
		api.With(auth.RequireRole(auth.RoleFreelancer)).Post("/jobs/{id}/rework", s.handleRework)
		api.With(auth.RequireRole(auth.RoleArbiter)).Post("/jobs/{id}/score", s.handleScore)
		api.With(auth.RequireRole(auth.RoleClient)).Post("/jobs/{id}/release", s.handleRelease)
		api.With(auth.RequireRole(auth.RoleClient, auth.RoleFreelancer)).Post("/jobs/{id}/dispute", s.handleDispute)
		api.With(auth.RequireRole(auth.RoleArbiter)).Post("/jobs/{id}/resolve", s.handleResolve)

		api.Get("/offers", s.handleListOffers)
		api.With(auth.RequireRole(auth.RoleClient)).Post("/offers", s.handleCreateOffer)
		api.With(auth.RequireRole(auth.RoleFreelancer)).Post("/offers/{id}/accept", s.handleAcceptOffer)

		api.Get("/wallets/me", s.handleWallet)
		api.Post("/wallets/deposit", s.handleDeposit)

		api.Get("/events", s.handleEvents)
	})

	return otelhttp.NewHandler(r, "trustlock-gateway")
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", elapsed.Milliseconds(),
			"request_id", chimw.GetReqID(r.Context()),
		)
		if s.metrics != nil {
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}
			class := strconv.Itoa(ww.Status()/100) + "xx"
			s.metrics.RequestSeconds.WithLabelValues(route, class).Observe(elapsed.Seconds())
		}
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- JSON helpers ---

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// writeEngineError maps engine failures to HTTP statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	var invalid *escrow.InvalidTransitionError
	switch {
	case errors.As(err, &invalid):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, escrow.ErrJobNotFound), errors.Is(err, escrow.ErrOfferNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, escrow.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, ledger.ErrInsufficientBalance), errors.Is(err, ledger.ErrInsufficientStake):
		writeError(w, http.StatusUnprocessableEntity, err)
	default:
		writeError(w, http.StatusBadRequest, err)
	}
}

func decodeBody(r *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// --- money formatting ---

// parseBTC converts a decimal BTC string into satoshis.
func parseBTC(raw string) (btcutil.Amount, error) {
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New("invalid amount: expected decimal BTC string")
	}
	return btcutil.NewAmount(value)
}

// formatBTC renders satoshis as a decimal BTC string without trailing zeros.
func formatBTC(amount btcutil.Amount) string {
	return strconv.FormatFloat(amount.ToBTC(), 'f', -1, 64)
}

// --- view types ---

type jobView struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Requirements string   `json:"requirements,omitempty"`
	Description  string   `json:"description,omitempty"`
	Client       string   `json:"client"`
	Freelancer   string   `json:"freelancer,omitempty"`
	Stake        string   `json:"stake"`
	CounterStake string   `json:"counterStake"`
	Deadline     string   `json:"deadline"`
	CreatedAt    string   `json:"createdAt"`
	SubmittedAt  string   `json:"submittedAt,omitempty"`
	Files        []string `json:"files,omitempty"`
	Manifest     string   `json:"manifest,omitempty"`
	Score        *int     `json:"score,omitempty"`
	Notes        string   `json:"notes,omitempty"`
	Status       string   `json:"status"`
	Reason       string   `json:"reason,omitempty"`
	ContractID   string   `json:"contractId,omitempty"`
}

func viewJob(j *escrow.Job) jobView {
	view := jobView{
		ID:           j.ID,
		Title:        j.Title,
		Requirements: j.Requirements,
		Description:  j.Description,
		Client:       j.Client,
		Freelancer:   j.Freelancer,
		Stake:        formatBTC(j.Stake),
		CounterStake: formatBTC(j.CounterStake),
		Deadline:     time.Unix(j.Deadline, 0).UTC().Format(time.RFC3339),
		CreatedAt:    time.Unix(j.CreatedAt, 0).UTC().Format(time.RFC3339),
		Files:        j.Files,
		Score:        j.Score,
		Notes:        j.Notes,
		Status:       j.Status.String(),
		Reason:       string(j.Reason),
		ContractID:   j.ContractID,
	}
	if j.SubmittedAt > 0 {
		view.SubmittedAt = time.Unix(j.SubmittedAt, 0).UTC().Format(time.RFC3339)
	}
	if j.Manifest != [32]byte{} {
		view.Manifest = hex.EncodeToString(j.Manifest[:])
	}
	return view
}

type offerView struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Client       string   `json:"client"`
	Stake        string   `json:"stake"`
	Required     string   `json:"required"`
	DurationDays int64    `json:"durationDays"`
	Skills       []string `json:"skills,omitempty"`
	Description  string   `json:"description,omitempty"`
	CreatedAt    string   `json:"createdAt"`
}

func viewOffer(o *escrow.JobOffer) offerView {
	return offerView{
		ID:           o.ID,
		Title:        o.Title,
		Client:       o.Client,
		Stake:        formatBTC(o.Stake),
		Required:     formatBTC(o.Required),
		DurationDays: o.DurationDays,
		Skills:       o.Skills,
		Description:  o.Description,
		CreatedAt:    time.Unix(o.CreatedAt, 0).UTC().Format(time.RFC3339),
	}
}

type walletView struct {
	Actor      string `json:"actor"`
	Balance    string `json:"balance"`
	StakeTotal string `json:"stakeTotal"`
	AtRisk     string `json:"atRisk"`
	Locked     string `json:"locked"`
}

func viewWallet(actor string, acct ledger.Account) walletView {
	return walletView{
		Actor:      actor,
		Balance:    formatBTC(acct.Balance),
		StakeTotal: formatBTC(acct.StakeTotal),
		AtRisk:     formatBTC(acct.AtRisk),
		Locked:     formatBTC(acct.Locked),
	}
}
