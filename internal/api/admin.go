package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"LendLedger/internal/state"
)

type creditScoreRequest struct {
	User  uuid.UUID `json:"user"`
	Score int       `json:"score"`
}

func (s *Server) setCreditScore(w http.ResponseWriter, r *http.Request) {
	var req creditScoreRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.engine.SetCreditScore(req.User, req.Score); err != nil {
		s.respondEngineErr(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]interface{}{
		"user":  req.User,
		"score": req.Score,
	})
}

func (s *Server) pause(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Pause(); err != nil {
		s.respondEngineErr(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]bool{"paused": true})
}

func (s *Server) unpause(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Unpause(); err != nil {
		s.respondEngineErr(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]bool{"paused": false})
}

func (s *Server) updateTiers(w http.ResponseWriter, r *http.Request) {
	var table state.TierTable
	if !s.decode(w, r, &table) {
		return
	}
	if err := s.engine.UpdateTierTable(table); err != nil {
		// config updates only fail validation
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respond(w, http.StatusOK, s.engine.TierTable())
}

func (s *Server) updateRateParams(w http.ResponseWriter, r *http.Request) {
	var params state.RateParams
	if !s.decode(w, r, &params) {
		return
	}
	if err := s.engine.UpdateRateParams(params); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respond(w, http.StatusOK, s.engine.RateParams())
}

type listAssetRequest struct {
	Symbol        string `json:"symbol"`
	Stable        bool   `json:"stable"`
	MaxAgeSeconds int64  `json:"max_age_seconds"`
}

func (s *Server) listAsset(w http.ResponseWriter, r *http.Request) {
	var req listAssetRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Symbol == "" || req.MaxAgeSeconds <= 0 {
		s.respondError(w, http.StatusBadRequest, "symbol and max_age_seconds are required")
		return
	}
	maxAge := time.Duration(req.MaxAgeSeconds) * time.Second
	if err := s.engine.ListAsset(req.Symbol, req.Stable, maxAge); err != nil {
		s.respondEngineErr(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]interface{}{
		"symbol": req.Symbol,
		"stable": req.Stable,
	})
}

type dailyRateRequest struct {
	Factor int64 `json:"factor"`
}

func (s *Server) setDailyRate(w http.ResponseWriter, r *http.Request) {
	var req dailyRateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.engine.SetDailyFactor(req.Factor); err != nil {
		s.respondEngineErr(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]int64{"factor": req.Factor})
}

type pushPriceRequest struct {
	Asset   string `json:"asset"`
	Price   int64  `json:"price"`
	RoundID uint64 `json:"round_id"`
}

func (s *Server) pushPrice(w http.ResponseWriter, r *http.Request) {
	var req pushPriceRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.engine.PushPrice(req.Asset, req.Price, req.RoundID); err != nil {
		s.respondEngineErr(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]interface{}{
		"asset":    req.Asset,
		"price":    req.Price,
		"round_id": req.RoundID,
	})
}
