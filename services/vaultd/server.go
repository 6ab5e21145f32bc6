package vaultd

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"stakevault/crypto"
	"stakevault/native/vault"
	"stakevault/observability"
	"stakevault/observability/metrics"
)

// Funder credits balances on development networks.
type Funder interface {
	Credit(asset string, account crypto.Address, amount uint64) error
}

// ServerConfig captures the dependencies required to construct the server.
type ServerConfig struct {
	Engine  *vault.Engine
	Hub     *Hub
	Auth    *Authenticator
	Limiter *RateLimiter
	// AssetID and VestingPeriod are used by initialize when the request
	// leaves them out.
	AssetID       string
	VestingPeriod uint64
	// Funder is nil unless the faucet is enabled.
	Funder    Funder
	FaucetMax uint64
	Logger    *slog.Logger
}

// Server exposes vault operations over HTTP.
type Server struct {
	engine        *vault.Engine
	hub           *Hub
	auth          *Authenticator
	limiter       *RateLimiter
	assetID       string
	vestingPeriod uint64
	funder        Funder
	faucetMax     uint64
	logger        *slog.Logger

	router http.Handler
}

// NewServer wires the router.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("vaultd: engine required")
	}
	if cfg.Auth == nil {
		return nil, errors.New("vaultd: authenticator required")
	}
	if cfg.Hub == nil {
		cfg.Hub = NewHub()
	}
	if cfg.Limiter == nil {
		cfg.Limiter = NewRateLimiter(RateLimitConfig{RequestsPerMinute: 120, Burst: 20})
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.VestingPeriod == 0 {
		cfg.VestingPeriod = vault.DefaultVestingPeriod
	}
	srv := &Server{
		engine:        cfg.Engine,
		hub:           cfg.Hub,
		auth:          cfg.Auth,
		limiter:       cfg.Limiter,
		assetID:       cfg.AssetID,
		vestingPeriod: cfg.VestingPeriod,
		funder:        cfg.Funder,
		faucetMax:     cfg.FaucetMax,
		logger:        cfg.Logger,
	}
	srv.router = srv.buildRouter()
	return srv, nil
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(api chi.Router) {
		api.Get("/vault", s.handleVault)
		api.Get("/stakes/{owner}", s.handleStake)
		api.Get("/balances/{owner}", s.handleBalance)
		api.Get("/events/ws", s.handleEventsWS)

		api.Group(func(p chi.Router) {
			p.Use(s.auth.Middleware)
			p.Use(s.limiter.Middleware("vault"))

			p.Post("/vault/initialize", s.handleInitialize)

			p.Post("/stake/deposit", s.handleDeposit)
			p.Post("/stake/unstake", s.handleUnstake)
			p.Post("/stake/claim", s.handleClaim)
			p.Post("/stake/cancel", s.handleCancel)

			p.Post("/rewards/deposit", s.handleDepositRewards)
			p.Post("/rewards/distribute", s.handleDistribute)
			p.Post("/rewards/collect", s.handleCollect)

			p.Post("/admin/pause", s.handlePause)
			p.Post("/admin/unpause", s.handleUnpause)
			p.Post("/admin/vesting-period", s.handleVestingPeriod)
			p.Post("/admin/permissions", s.handlePermissions)
			p.Post("/admin/emergency-withdraw", s.handleEmergencyWithdraw)

			if s.funder != nil {
				p.Post("/dev/fund", s.handleFund)
			}
		})
	})

	return otelhttp.NewHandler(r, "vaultd")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrade take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("vaultd: response writer cannot hijack")
	}
	return hj.Hijack()
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		observability.ModuleMetrics().Observe(moduleOf(route), route, recorder.status, time.Since(start))
	})
}

func moduleOf(route string) string {
	parts := strings.Split(strings.Trim(route, "/"), "/")
	if len(parts) >= 2 && parts[0] == "v1" {
		return parts[1]
	}
	return parts[0]
}

// finish writes the result of a vault operation and records its outcome.
func (s *Server) finish(w http.ResponseWriter, r *http.Request, op string, caller crypto.Address, result any, err error) {
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("vault.operation", op))
	if err != nil {
		_, code := statusFor(err)
		metrics.Vault().RecordOperation(op, code)
		span.SetAttributes(attribute.String("vault.error", code))
		s.logger.Info("vault operation rejected", "operation", op, "caller", caller.String(), "error", err)
		writeError(w, err)
		return
	}
	metrics.Vault().RecordOperation(op, "ok")
	s.logger.Info("vault operation applied", "operation", op, "caller", caller.String())
	s.refreshGauges()
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) refreshGauges() {
	v, err := s.engine.Vault()
	if err != nil {
		return
	}
	metrics.Vault().ObserveVault(metrics.VaultSnapshot{
		TotalStaked:      v.Stats.TotalStaked,
		ActiveAmount:     v.Stats.ActiveAmount,
		UnstakingAmount:  v.Stats.UnstakingAmount,
		PendingRewards:   v.Rewards.PendingRewards,
		TotalDistributed: v.Rewards.TotalDistributed,
		TotalClaimed:     v.Rewards.TotalClaimed,
		OpenRequests:     v.Stats.UnstakeRequestCount,
		Paused:           v.Paused,
	})
}

// decode reads an optional JSON body into v. An empty body leaves v untouched,
// whether or not the client announced its length.
func decode(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// withCaller resolves the caller and decodes the body, writing the error
// response itself when either fails.
func (s *Server) withCaller(w http.ResponseWriter, r *http.Request, body any) (crypto.Address, bool) {
	caller, err := callerFrom(r.Context())
	if err != nil {
		writeError(w, err)
		return crypto.Address{}, false
	}
	if body != nil {
		if err := decode(r, body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "InvalidPayload", "invalid payload")
			return crypto.Address{}, false
		}
	}
	return caller, true
}

func pathAddress(w http.ResponseWriter, r *http.Request) (crypto.Address, bool) {
	addr, err := crypto.DecodeAddress(chi.URLParam(r, "owner"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "InvalidAddress", "invalid owner address")
		return crypto.Address{}, false
	}
	return addr, true
}
