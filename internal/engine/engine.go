package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"LendLedger/internal/event"
	"LendLedger/internal/ledger"
	fpmath "LendLedger/internal/math"
	"LendLedger/internal/observability"
	"LendLedger/internal/oracle"
	"LendLedger/internal/state"
)

// Config carries the engine's policy knobs. All ratios and fees in basis
// points, the daily factor in RateConfig scale.
type Config struct {
	BaseAsset                 string
	GracePeriod               time.Duration
	WithdrawalCooldown        time.Duration
	MinLenderDeposit          int64
	MaxLenderDeposit          int64 // 0 = unbounded
	EarlyWithdrawalPenaltyBps int64
	LiquidationPenaltyBps     int64
	OriginationFeeBps         int64
	StableThresholdBps        int64 // liquidation threshold when every holding is a stablecoin
	MaxConfigStepBps          int64
	OverpayRefund             bool // refund excess repayment instead of rejecting
}

// DefaultConfig mirrors the launch policy.
func DefaultConfig() Config {
	return Config{
		BaseAsset:                 "USDC",
		GracePeriod:               state.DefaultGracePeriod,
		WithdrawalCooldown:        7 * 24 * time.Hour,
		MinLenderDeposit:          100 * fpmath.AmountConfig.Scale,
		MaxLenderDeposit:          0,
		EarlyWithdrawalPenaltyBps: 200,
		LiquidationPenaltyBps:     500,
		OriginationFeeBps:         50,
		StableThresholdBps:        11_000,
		MaxConfigStepBps:          1_000,
	}
}

// Output is one committed operation in transit to the persistence worker and
// the outbound publisher.
type Output struct {
	Envelope *event.Envelope
	Batch    *ledger.Batch
}

// Engine serializes every operation behind one mutex and assigns a global
// monotone sequence. State mutations never interleave. The inflight flag is
// checked before the mutex is taken, so a handler that calls back into a
// public method is rejected with ErrReentrantCall instead of deadlocking on
// its own lock.
type Engine struct {
	mu       sync.Mutex
	inflight atomic.Bool
	paused   bool

	cfg      Config
	clock    func() time.Time
	sequence int64
	hasher   *StateHasher
	log      zerolog.Logger
	metrics  *observability.Metrics

	balances     *ledger.BalanceTracker
	validator    *ledger.InvariantValidator
	prices       *oracle.Adapter
	pushFeed     *oracle.PushFeed
	collateral   *state.CollateralLedger
	scores       *state.ScoreRegistry
	tiers        *state.TierEngine
	rates        *state.RateModel
	risk         *state.RiskEngine
	loans        *state.LoanManager
	liquidations *state.LiquidationManager
	lenders      *state.LenderPool
	pool         *state.PoolState

	baseAssetID ledger.AssetID

	persistChan chan<- Output
	publishChan chan<- Output
}

func New(
	cfg Config,
	tierTable state.TierTable,
	rateParams state.RateParams,
	clock func() time.Time,
	persistChan, publishChan chan<- Output,
	metrics *observability.Metrics,
) (*Engine, error) {
	if clock == nil {
		clock = time.Now
	}

	tiers, err := state.NewTierEngine(tierTable, cfg.MaxConfigStepBps)
	if err != nil {
		return nil, fmt.Errorf("engine: tier table: %w", err)
	}
	rates, err := state.NewRateModel(rateParams)
	if err != nil {
		return nil, fmt.Errorf("engine: rate params: %w", err)
	}

	baseAssetID, ok := ledger.GetAssetID(cfg.BaseAsset)
	if !ok {
		return nil, fmt.Errorf("engine: unknown base asset %q", cfg.BaseAsset)
	}

	balances := ledger.NewBalanceTracker()
	adapter := oracle.NewAdapter(clock)
	collateral := state.NewCollateralLedger(adapter)

	e := &Engine{
		cfg:          cfg,
		clock:        clock,
		hasher:       NewStateHasher(),
		log:          observability.NewLogger("engine"),
		metrics:      metrics,
		balances:     balances,
		validator:    ledger.NewInvariantValidator(balances),
		prices:       adapter,
		pushFeed:     oracle.NewPushFeed(),
		collateral:   collateral,
		scores:       state.NewScoreRegistry(0, 100),
		tiers:        tiers,
		rates:        rates,
		risk:         state.NewRiskEngine(),
		loans:        state.NewLoanManager(),
		liquidations: state.NewLiquidationManager(cfg.GracePeriod),
		lenders:      state.NewLenderPool(cfg.MinLenderDeposit, cfg.MaxLenderDeposit, cfg.WithdrawalCooldown, cfg.EarlyWithdrawalPenaltyBps),
		pool:         state.NewPoolState(),
		baseAssetID:  baseAssetID,
		persistChan:  persistChan,
		publishChan:  publishChan,
	}
	return e, nil
}

// Oracle exposes the price adapter for feed wiring at startup.
func (e *Engine) Oracle() *oracle.Adapter {
	return e.prices
}

// enter opens one dispatch: it claims the inflight flag, then takes the
// mutex. The flag is claimed first so a dispatch that calls back into a
// public method fails here rather than blocking on the lock it already
// holds. A concurrent caller that loses the claim gets the same
// ErrReentrantCall and retries.
func (e *Engine) enter(op string, mutating bool) error {
	if !e.inflight.CompareAndSwap(false, true) {
		e.reject(op, "reentrant")
		return ErrReentrantCall
	}
	e.mu.Lock()
	if mutating && e.paused {
		e.mu.Unlock()
		e.inflight.Store(false)
		e.reject(op, "paused")
		return ErrPaused
	}
	return nil
}

// exit closes the dispatch opened by enter.
func (e *Engine) exit() {
	e.mu.Unlock()
	e.inflight.Store(false)
}

func (e *Engine) reject(op, reason string) {
	if e.metrics != nil {
		e.metrics.EngineOpsRejected.WithLabelValues(op, reason).Inc()
	}
}

// commit runs the shared tail of every state-changing operation: validate and
// apply the batch, post-check invariants, extend the hash chain, build the
// envelope, and emit to the persist (blocking) and publish (non-blocking)
// channels.
func (e *Engine) commit(op string, evt event.Event, batch *ledger.Batch, now time.Time) error {
	start := time.Now()

	if batch != nil && len(batch.Journals) > 0 {
		if err := e.validator.ValidateBatchBalance(batch); err != nil {
			panic(fmt.Sprintf("FATAL: unbalanced batch: %v", err))
		}
		if err := e.balances.ApplyBatch(batch); err != nil {
			return fmt.Errorf("engine: apply batch: %w", err)
		}
		if e.metrics != nil {
			for _, j := range batch.Journals {
				e.metrics.EngineJournals.WithLabelValues(journalTypeName(j.JournalType)).Inc()
			}
		}
	}

	if err := e.postCheckInvariants(); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated after %s: %v", op, err))
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		panic(fmt.Sprintf("FATAL: event payload not serializable: %v", err))
	}

	prevHash := e.hasher.GetPrevHash()
	stateHash := e.hasher.ComputeHash(e.sequence, e.stateDigest(batch))

	envelope := &event.Envelope{
		Sequence:  e.sequence,
		EventType: evt.EventType(),
		Actor:     evt.Actor(),
		Timestamp: now,
		Payload:   payload,
		StateHash: stateHash,
		PrevHash:  prevHash,
	}
	e.sequence++

	output := Output{Envelope: envelope, Batch: batch}

	// Persistence: blocking send, no event is ever lost. Publishing:
	// non-blocking, consumers rebuild from the event log if they fall behind.
	if e.persistChan != nil {
		select {
		case e.persistChan <- output:
		default:
			if e.metrics != nil {
				e.metrics.PersistBackpressure.Inc()
			}
			e.persistChan <- output
		}
	}
	if e.publishChan != nil {
		select {
		case e.publishChan <- output:
		default:
			if e.metrics != nil {
				e.metrics.PublishDrops.Inc()
			}
		}
	}

	if e.metrics != nil {
		e.metrics.EngineOpsApplied.WithLabelValues(op).Inc()
		e.metrics.EngineOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		e.metrics.EngineSequence.Set(float64(e.sequence))
		e.metrics.PoolTotalFunds.Set(float64(e.pool.TotalFunds))
		e.metrics.PoolOutstanding.Set(float64(e.pool.OutstandingPrincipal()))
		e.metrics.PoolUtilizationBps.Set(float64(e.utilizationBps()))
		e.metrics.RiskMultiplier.Set(float64(e.riskMultiplier()))
		e.metrics.RepaymentRatioBps.Set(float64(e.pool.RepaymentRatioBps()))
		e.metrics.LiquidationsOpen.Set(float64(e.liquidations.Open()))
	}

	e.log.Debug().
		Int64("sequence", envelope.Sequence).
		Str("event_type", envelope.EventType.String()).
		Str("actor", envelope.Actor.String()).
		Msg("operation committed")

	return nil
}

// stateDigest builds canonical bytes over the accounts the batch touched.
func (e *Engine) stateDigest(batch *ledger.Batch) []byte {
	affected := make(map[ledger.AccountKey]bool)
	if batch != nil {
		for _, j := range batch.Journals {
			affected[j.DebitAccount] = true
			affected[j.CreditAccount] = true
		}
	}

	accounts := make([]ledger.AccountKey, 0, len(affected))
	for key := range affected {
		accounts = append(accounts, key)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountPath() < accounts[j].AccountPath()
	})

	digest := make([]byte, 0, len(accounts)*64)
	for _, key := range accounts {
		path := key.AccountPath()
		digest = append(digest, byte(len(path)))
		digest = append(digest, []byte(path)...)
		digest = appendInt64LE(digest, e.balances.GetBalance(key))
	}

	// Pool counters are part of the hashed state even for journal-free events.
	digest = appendInt64LE(digest, e.pool.TotalFunds)
	digest = appendInt64LE(digest, e.pool.TotalBorrowedAllTime)
	digest = appendInt64LE(digest, e.pool.TotalRepaidAllTime)

	return digest
}

func appendInt64LE(buf []byte, v int64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}

// postCheckInvariants validates the cross-module invariants after every
// applied operation. Cheap checks run every time, the global zero-sum scan
// every 1000 sequences.
func (e *Engine) postCheckInvariants() error {
	if err := e.validator.ValidatePoolReserveNonNegative(e.baseAssetID); err != nil {
		return err
	}
	if err := e.validator.ValidatePoolReserveMatches(e.baseAssetID, e.pool.TotalFunds); err != nil {
		return err
	}
	if err := e.pool.CheckCounters(e.loans.TotalActivePrincipal()); err != nil {
		return err
	}
	if err := e.loans.CheckActiveLoans(); err != nil {
		return err
	}
	if err := e.collateral.CheckNonNegative(); err != nil {
		return err
	}

	if e.sequence > 0 && e.sequence%1000 == 0 {
		if err := e.validator.ValidateGlobalBalance(); err != nil {
			return err
		}
	}
	return nil
}

// utilizationBps is outstanding / (reserve + outstanding): the share of
// supplied funds currently lent out.
func (e *Engine) utilizationBps() int64 {
	outstanding := e.pool.OutstandingPrincipal()
	return e.rates.UtilizationBps(outstanding, e.pool.TotalFunds+outstanding)
}

func (e *Engine) marketSignal() state.MarketSignal {
	maxVol, degraded := e.prices.MarketSignal(e.collateral.ListedAssets())
	return state.MarketSignal{MaxVolBps: maxVol, Degraded: degraded}
}

func (e *Engine) riskMultiplier() int64 {
	return e.risk.GlobalMultiplier(e.loans.ActiveExposures(), e.pool.RepaymentRatioBps())
}

// assetID resolves a listed symbol to its ledger asset ID.
func (e *Engine) assetID(symbol string) (ledger.AssetID, error) {
	id, ok := ledger.GetAssetID(symbol)
	if !ok {
		return 0, fmt.Errorf("%w: %s", state.ErrAssetNotListed, symbol)
	}
	return id, nil
}

// Sequence returns the next sequence to assign.
func (e *Engine) Sequence() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sequence
}

// StateHash returns the current chain tip.
func (e *Engine) StateHash() [32]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasher.GetPrevHash()
}

func journalTypeName(jt ledger.JournalType) string {
	switch jt {
	case ledger.JournalTypeCollateralDeposit:
		return "collateral_deposit"
	case ledger.JournalTypeCollateralWithdrawal:
		return "collateral_withdrawal"
	case ledger.JournalTypeCollateralSeizure:
		return "collateral_seizure"
	case ledger.JournalTypeLoanDisbursement:
		return "loan_disbursement"
	case ledger.JournalTypeOriginationFee:
		return "origination_fee"
	case ledger.JournalTypeLoanRepayment:
		return "loan_repayment"
	case ledger.JournalTypeLenderDeposit:
		return "lender_deposit"
	case ledger.JournalTypeLenderWithdrawal:
		return "lender_withdrawal"
	case ledger.JournalTypeWithdrawalPenalty:
		return "withdrawal_penalty"
	default:
		return "unknown"
	}
}
