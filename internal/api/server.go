package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"LendLedger/internal/engine"
	"LendLedger/internal/observability"
)

// Server exposes the lending engine over HTTP/JSON.
type Server struct {
	engine         *engine.Engine
	authorityToken string
	health         *observability.HealthChecker
	log            zerolog.Logger
	metrics        *observability.Metrics

	router http.Handler
}

type Config struct {
	Engine         *engine.Engine
	AuthorityToken string
	Health         *observability.HealthChecker
	Metrics        *observability.Metrics
}

func New(cfg Config) *Server {
	s := &Server{
		engine:         cfg.Engine,
		authorityToken: cfg.AuthorityToken,
		health:         cfg.Health,
		log:            observability.NewLogger("api"),
		metrics:        cfg.Metrics,
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.observe)

	if s.health != nil {
		r.Get("/healthz", s.health.LivenessHandler)
		r.Get("/readyz", s.health.ReadinessHandler)
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Post("/collateral/deposit", s.depositCollateral)
		v1.Post("/collateral/withdraw", s.withdrawCollateral)
		v1.Get("/collateral/{user}/value", s.collateralValue)

		v1.Post("/loans/borrow", s.borrow)
		v1.Post("/loans/repay", s.repay)
		v1.Get("/loans/{user}", s.loanStatus)

		v1.Post("/liquidations/start", s.startLiquidation)
		v1.Post("/liquidations/recover", s.recoverLiquidation)
		v1.Post("/liquidations/execute", s.executeLiquidation)
		v1.Get("/liquidations/eligible", s.eligibleLiquidations)
		v1.Post("/liquidations/execute-eligible", s.executeEligible)

		v1.Post("/pool/deposit", s.lenderDeposit)
		v1.Post("/pool/claim-interest", s.claimInterest)
		v1.Post("/pool/request-withdrawal", s.requestWithdrawal)
		v1.Post("/pool/cancel-withdrawal", s.cancelWithdrawal)
		v1.Post("/pool/complete-withdrawal", s.completeWithdrawal)
		v1.Get("/pool", s.poolStatus)
		v1.Get("/pool/{lender}", s.lenderStatus)
		v1.Get("/rates", s.rates)

		v1.Route("/admin", func(admin chi.Router) {
			admin.Use(s.requireAuthority)
			admin.Post("/credit-score", s.setCreditScore)
			admin.Post("/pause", s.pause)
			admin.Post("/unpause", s.unpause)
			admin.Post("/tiers", s.updateTiers)
			admin.Post("/rate-params", s.updateRateParams)
			admin.Post("/assets", s.listAsset)
			admin.Post("/daily-rate", s.setDailyRate)
			admin.Post("/prices", s.pushPrice)
		})
	})

	return r
}

// observe records request counts and latency per route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if s.metrics == nil {
			return
		}
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.APIRequests.WithLabelValues(route, strconv.Itoa(ww.Status())).Inc()
		s.metrics.APIDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// requireAuthority gates admin routes behind the shared authority token.
func (s *Server) requireAuthority(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.authorityToken == "" {
			s.respondError(w, http.StatusServiceUnavailable, "authority token not configured")
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token != s.authorityToken {
			s.respondError(w, http.StatusUnauthorized, "invalid authority token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) urlUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid "+param+" id")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			s.log.Error().Err(err).Msg("encode response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respond(w, status, map[string]string{"error": msg})
}

// respondEngineErr maps engine sentinels onto HTTP status codes.
func (s *Server) respondEngineErr(w http.ResponseWriter, err error) {
	s.respondError(w, statusFor(err), err.Error())
}
