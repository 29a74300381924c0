package api

import (
	"net/http"

	"github.com/google/uuid"
)

type collateralRequest struct {
	User   uuid.UUID `json:"user"`
	Asset  string    `json:"asset"`
	Amount int64     `json:"amount"`
}

func (s *Server) depositCollateral(w http.ResponseWriter, r *http.Request) {
	var req collateralRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.engine.DepositCollateral(req.User, req.Asset, req.Amount); err != nil {
		s.respondEngineErr(w, err)
		return
	}
	s.respond(w, http.StatusOK, s.engine.CollateralStatus(req.User))
}

func (s *Server) withdrawCollateral(w http.ResponseWriter, r *http.Request) {
	var req collateralRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.engine.WithdrawCollateral(req.User, req.Asset, req.Amount); err != nil {
		s.respondEngineErr(w, err)
		return
	}
	s.respond(w, http.StatusOK, s.engine.CollateralStatus(req.User))
}

func (s *Server) collateralValue(w http.ResponseWriter, r *http.Request) {
	user, ok := s.urlUUID(w, r, "user")
	if !ok {
		return
	}
	s.respond(w, http.StatusOK, s.engine.CollateralStatus(user))
}

type borrowRequest struct {
	User   uuid.UUID `json:"user"`
	Amount int64     `json:"amount"`
}

func (s *Server) borrow(w http.ResponseWriter, r *http.Request) {
	var req borrowRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.engine.Borrow(req.User, req.Amount); err != nil {
		s.respondEngineErr(w, err)
		return
	}
	s.respond(w, http.StatusOK, s.engine.LoanStatus(req.User))
}

type repayRequest struct {
	User  uuid.UUID `json:"user"`
	Value int64     `json:"value"`
}

func (s *Server) repay(w http.ResponseWriter, r *http.Request) {
	var req repayRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.engine.Repay(req.User, req.Value); err != nil {
		s.respondEngineErr(w, err)
		return
	}
	s.respond(w, http.StatusOK, s.engine.LoanStatus(req.User))
}

func (s *Server) loanStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := s.urlUUID(w, r, "user")
	if !ok {
		return
	}
	s.respond(w, http.StatusOK, s.engine.LoanStatus(user))
}

type liquidationRequest struct {
	Borrower uuid.UUID `json:"borrower"`
}

func (s *Server) startLiquidation(w http.ResponseWriter, r *http.Request) {
	var req liquidationRequest
	if !s.decode(w, r, &req) {
		return
	}
	recordID, err := s.engine.StartLiquidation(req.Borrower)
	if err != nil {
		s.respondEngineErr(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]interface{}{
		"record_id": recordID,
		"loan":      s.engine.LoanStatus(req.Borrower),
	})
}

type recoverRequest struct {
	Borrower uuid.UUID `json:"borrower"`
	Asset    string    `json:"asset"`
	Amount   int64     `json:"amount"`
}

func (s *Server) recoverLiquidation(w http.ResponseWriter, r *http.Request) {
	var req recoverRequest
	if !s.decode(w, r, &req) {
		return
	}
	recovered, err := s.engine.RecoverFromLiquidation(req.Borrower, req.Asset, req.Amount)
	if err != nil {
		s.respondEngineErr(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]interface{}{
		"recovered": recovered,
		"loan":      s.engine.LoanStatus(req.Borrower),
	})
}

func (s *Server) executeLiquidation(w http.ResponseWriter, r *http.Request) {
	var req liquidationRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.engine.ExecuteLiquidation(req.Borrower); err != nil {
		s.respondEngineErr(w, err)
		return
	}
	s.respond(w, http.StatusOK, s.engine.LoanStatus(req.Borrower))
}

func (s *Server) eligibleLiquidations(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]interface{}{
		"borrowers": s.engine.CheckEligible(),
	})
}

func (s *Server) executeEligible(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]interface{}{
		"executed": s.engine.ExecuteEligible(),
	})
}

type lenderRequest struct {
	Lender uuid.UUID `json:"lender"`
	Amount int64     `json:"amount,omitempty"`
}

func (s *Server) lenderDeposit(w http.ResponseWriter, r *http.Request) {
	var req lenderRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.engine.LenderDeposit(req.Lender, req.Amount); err != nil {
		s.respondEngineErr(w, err)
		return
	}
	s.respond(w, http.StatusOK, s.engine.LenderStatus(req.Lender))
}

func (s *Server) claimInterest(w http.ResponseWriter, r *http.Request) {
	var req lenderRequest
	if !s.decode(w, r, &req) {
		return
	}
	claimed, err := s.engine.ClaimInterest(req.Lender)
	if err != nil {
		s.respondEngineErr(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]interface{}{
		"claimed": claimed,
		"account": s.engine.LenderStatus(req.Lender),
	})
}

func (s *Server) requestWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req lenderRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.engine.RequestWithdrawal(req.Lender, req.Amount); err != nil {
		s.respondEngineErr(w, err)
		return
	}
	s.respond(w, http.StatusOK, s.engine.LenderStatus(req.Lender))
}

func (s *Server) cancelWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req lenderRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.engine.CancelWithdrawal(req.Lender); err != nil {
		s.respondEngineErr(w, err)
		return
	}
	s.respond(w, http.StatusOK, s.engine.LenderStatus(req.Lender))
}

func (s *Server) completeWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req lenderRequest
	if !s.decode(w, r, &req) {
		return
	}
	payout, err := s.engine.CompleteWithdrawal(req.Lender)
	if err != nil {
		s.respondEngineErr(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]interface{}{
		"payout":  payout,
		"account": s.engine.LenderStatus(req.Lender),
	})
}

func (s *Server) poolStatus(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, s.engine.PoolStatus())
}

func (s *Server) lenderStatus(w http.ResponseWriter, r *http.Request) {
	lender, ok := s.urlUUID(w, r, "lender")
	if !ok {
		return
	}
	s.respond(w, http.StatusOK, s.engine.LenderStatus(lender))
}

func (s *Server) rates(w http.ResponseWriter, r *http.Request) {
	pool := s.engine.PoolStatus()
	s.respond(w, http.StatusOK, map[string]interface{}{
		"params":          s.engine.RateParams(),
		"utilization_bps": pool.UtilizationBps,
		"borrow_rate_bps": pool.BorrowRateBps,
		"supply_rate_bps": pool.SupplyRateBps,
	})
}
