package services

import (
	"context"
	"log"
	"sync"
	"time"

	"shellgame-backend/internal/models"
)

// SessionSource is the engine's view of the wallet layer: the current
// session snapshot and the optimistic advisory-balance adjustment.
type SessionSource interface {
	Session() *models.WalletSession
	AdjustBalance(delta int64)
}

// RoundStore persists settled rounds for the history/audit trail.
type RoundStore interface {
	SaveSettledRound(round *models.GameRound) error
}

type roundState struct {
	round  *models.GameRound
	window time.Duration
	stop   chan struct{}
}

// GameEngine orchestrates one round at a time: it times the shuffle window
// against wager submission and result confirmation, guards against duplicate
// submission and produces the final win/lose determination.
type GameEngine struct {
	wallets     SessionSource
	tx          TxClient
	store       RoundStore
	broadcaster Broadcaster

	windows map[models.SpeedTier]time.Duration

	mu        sync.Mutex
	rounds    map[string]*roundState
	currentID string
}

func NewGameEngine(wallets SessionSource, tx TxClient, windows map[models.SpeedTier]time.Duration) *GameEngine {
	if windows == nil {
		windows = models.DefaultShuffleWindows()
	}
	return &GameEngine{
		wallets: wallets,
		tx:      tx,
		windows: windows,
		rounds:  make(map[string]*roundState),
	}
}

func (ge *GameEngine) SetStore(store RoundStore)    { ge.store = store }
func (ge *GameEngine) SetBroadcaster(b Broadcaster) { ge.broadcaster = b }

// StartRound admits a new round or rejects it outright; overlapping rounds
// are never queued.
func (ge *GameEngine) StartRound(wagerAmount uint64, tier models.SpeedTier) (*models.GameRound, error) {
	session := ge.wallets.Session()
	if session == nil {
		return nil, models.NewGameError(models.KindNoWalletSession, "connect a wallet before playing")
	}

	window, ok := ge.windows[tier]
	if !ok {
		return nil, models.NewGameErrorf(models.KindInvalidWager, "unknown speed tier: %s", tier)
	}
	if wagerAmount == 0 {
		return nil, models.NewGameError(models.KindInvalidWager, "wager amount must be positive")
	}
	if wagerAmount > session.Balance {
		return nil, models.NewGameErrorf(models.KindInvalidWager,
			"wager %d exceeds balance %d", wagerAmount, session.Balance)
	}

	ge.mu.Lock()
	if ge.currentID != "" {
		if rs, ok := ge.rounds[ge.currentID]; ok && !rs.round.Phase.Terminal() {
			ge.mu.Unlock()
			return nil, models.NewGameError(models.KindRoundInFlight, "a round is already in flight")
		}
	}

	round := &models.GameRound{
		ID:           models.GenerateRoundID(),
		Address:      session.Address,
		WagerAmount:  wagerAmount,
		SpeedTier:    tier,
		SelectedSlot: -1,
		OutcomeSlot:  -1,
		Phase:        models.PhaseSubmitting,
		CreatedAt:    time.Now(),
	}
	rs := &roundState{round: round, window: window, stop: make(chan struct{})}
	ge.rounds[round.ID] = rs
	ge.currentID = round.ID
	ge.mu.Unlock()

	ge.wallets.AdjustBalance(-int64(wagerAmount))
	ge.notify(round)

	return round.Clone(), nil
}

// SelectSlot records the player's pick exactly once and triggers wager
// submission. The slot is immutable after this call.
func (ge *GameEngine) SelectSlot(roundID string, slot int) error {
	if slot < 0 || slot >= models.SlotCount {
		return models.NewGameErrorf(models.KindInvalidSlot, "slot must be between 0 and %d", models.SlotCount-1)
	}

	ge.mu.Lock()
	rs, ok := ge.rounds[roundID]
	if !ok || ge.currentID != roundID {
		ge.mu.Unlock()
		return models.NewGameError(models.KindRoundNotFound, "round not found or no longer current")
	}
	if rs.round.SelectedSlot != -1 {
		ge.mu.Unlock()
		return models.NewGameError(models.KindSlotAlreadySelected, "slot already selected for this round")
	}
	if rs.round.Phase != models.PhaseSubmitting {
		ge.mu.Unlock()
		return models.NewGameErrorf(models.KindRoundNotFound, "round is %s, cannot select", rs.round.Phase)
	}
	rs.round.SelectedSlot = slot
	snapshot := rs.round.Clone()
	ge.mu.Unlock()

	ge.notify(snapshot)
	go ge.runRound(rs)
	return nil
}

// Cancel is only meaningful before the wager is submitted; a submitted wager
// is already on the ledger and cannot be withdrawn, so later calls are a
// no-op.
func (ge *GameEngine) Cancel(roundID string) error {
	ge.mu.Lock()
	rs, ok := ge.rounds[roundID]
	if !ok {
		ge.mu.Unlock()
		return models.NewGameError(models.KindRoundNotFound, "round not found")
	}
	if rs.round.Phase != models.PhaseSubmitting || rs.round.SelectedSlot != -1 {
		ge.mu.Unlock()
		return nil
	}
	rs.round.Phase = models.PhaseIdle
	rs.round.LastError = "cancelled"
	ge.currentID = ""
	close(rs.stop)
	ge.wallets.AdjustBalance(int64(rs.round.WagerAmount))
	snapshot := rs.round.Clone()
	ge.mu.Unlock()

	ge.notify(snapshot)
	return nil
}

// runRound is the settlement race: the shuffle-window timer and the
// confirmation-and-result chain run as two concurrent waits, and revealing
// happens only when both are done.
func (ge *GameEngine) runRound(rs *roundState) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-rs.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	// the window opens at submission time
	windowTimer := time.NewTimer(rs.window)
	defer windowTimer.Stop()

	round := rs.round
	txID, err := ge.tx.SubmitWager(ctx, round.WagerAmount, round.SelectedSlot)
	if err != nil {
		// pre-settlement failure: the wager never reached the ledger, so the
		// advisory debit is rolled back and the user may retry immediately
		ge.failRound(rs, err, true)
		return
	}

	if !ge.mutate(rs, func(r *models.GameRound) {
		r.TxID = txID
		r.ExplorerURL = ge.tx.ExplorerURL(txID)
		r.Phase = models.PhaseAwaitingSettlement
	}) {
		return
	}

	type chainOutcome struct {
		result *models.RoundResult
		err    error
	}
	chainCh := make(chan chainOutcome, 1)
	go func() {
		// timeout 0 defers to the client's configured confirmation bound
		if err := ge.tx.AwaitConfirmation(ctx, txID, 0); err != nil {
			chainCh <- chainOutcome{err: err}
			return
		}
		result, err := ge.tx.FetchResult(ctx, txID)
		chainCh <- chainOutcome{result: result, err: err}
	}()

	var outcome chainOutcome
	windowDone, chainDone := false, false
	for !windowDone || !chainDone {
		select {
		case <-windowTimer.C:
			windowDone = true
		case outcome = <-chainCh:
			chainDone = true
			if outcome.err != nil {
				// the chain failed; there is nothing to reveal, so the
				// animation window no longer gates anything
				ge.failRound(rs, outcome.err, false)
				return
			}
		case <-rs.stop:
			return
		}
	}

	ge.settle(rs, outcome.result)
}

// settle derives the outcome, decides the round and requests the claim for a
// win in the same transition.
func (ge *GameEngine) settle(rs *roundState, result *models.RoundResult) {
	if !ge.mutate(rs, func(r *models.GameRound) {
		r.Phase = models.PhaseRevealing
		r.VerificationHash = result.VerificationHash
	}) {
		return
	}

	outcomeSlot, err := DeriveOutcomeSlot(result.VerificationHash)
	if err != nil {
		// a malformed hash is a protocol violation; fail closed, funds are
		// already committed on the ledger so no advisory refund
		ge.failRound(rs, err, false)
		return
	}

	round := rs.round
	won := round.SelectedSlot == outcomeSlot

	var claimTxID string
	var claimErr error
	var payout uint64
	if won {
		payout = round.WagerAmount * models.WinMultiplier
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			select {
			case <-rs.stop:
				cancel()
			case <-ctx.Done():
			}
		}()
		claimTxID, claimErr = ge.tx.ClaimWinnings(ctx, round.TxID)
		cancel()
		if claimErr != nil {
			// the win is final per the ledger record; the claim is surfaced
			// as a separate, retryable error
			log.Printf("claim failed for round %s (tx %s): %v", round.ID, round.TxID, claimErr)
		}
	}

	ge.mu.Lock()
	if !ge.liveLocked(rs) {
		ge.mu.Unlock()
		return
	}
	r := rs.round
	r.OutcomeSlot = outcomeSlot
	r.Won = won
	r.SettledAt = time.Now()
	if won {
		r.Phase = models.PhaseSettledWon
		r.Payout = payout
		if claimErr != nil {
			r.LastError = string(models.KindClaimFailed)
		} else {
			r.ClaimTxID = claimTxID
			ge.wallets.AdjustBalance(int64(payout))
		}
	} else {
		r.Phase = models.PhaseSettledLost
	}
	if ge.currentID == r.ID {
		ge.currentID = ""
	}
	snapshot := r.Clone()
	ge.mu.Unlock()

	ge.persist(snapshot)
}

// failRound returns the round to idle with a user-visible error. The
// advisory balance is only refunded when the wager never reached the ledger.
func (ge *GameEngine) failRound(rs *roundState, cause error, refund bool) {
	ge.mu.Lock()
	if !ge.liveLocked(rs) {
		ge.mu.Unlock()
		return
	}
	rs.round.Phase = models.PhaseIdle
	rs.round.LastError = string(models.KindOf(cause))
	if rs.round.LastError == "" {
		rs.round.LastError = cause.Error()
	}
	if ge.currentID == rs.round.ID {
		ge.currentID = ""
	}
	if refund {
		ge.wallets.AdjustBalance(int64(rs.round.WagerAmount))
	}
	snapshot := rs.round.Clone()
	ge.mu.Unlock()

	log.Printf("round %s returned to idle: %v", snapshot.ID, cause)
	ge.notify(snapshot)
}

// liveLocked reports whether the round may still be mutated; async
// completions for a torn-down round must not touch it. Callers hold ge.mu.
func (ge *GameEngine) liveLocked(rs *roundState) bool {
	if _, live := ge.rounds[rs.round.ID]; !live {
		return false
	}
	select {
	case <-rs.stop:
		return false
	default:
		return true
	}
}

// mutate applies fn under the engine lock, but only if the round is still
// live.
func (ge *GameEngine) mutate(rs *roundState, fn func(*models.GameRound)) bool {
	ge.mu.Lock()
	if !ge.liveLocked(rs) {
		ge.mu.Unlock()
		return false
	}
	fn(rs.round)
	snapshot := rs.round.Clone()
	ge.mu.Unlock()

	ge.notify(snapshot)
	return true
}

// GetRound returns a snapshot of a known round.
func (ge *GameEngine) GetRound(roundID string) (*models.GameRound, error) {
	ge.mu.Lock()
	defer ge.mu.Unlock()
	rs, ok := ge.rounds[roundID]
	if !ok {
		return nil, models.NewGameError(models.KindRoundNotFound, "round not found")
	}
	return rs.round.Clone(), nil
}

// CurrentRound returns the in-flight round, or nil.
func (ge *GameEngine) CurrentRound() *models.GameRound {
	ge.mu.Lock()
	defer ge.mu.Unlock()
	if ge.currentID == "" {
		return nil
	}
	rs, ok := ge.rounds[ge.currentID]
	if !ok {
		return nil
	}
	return rs.round.Clone()
}

// RetryClaim re-requests the claim for a settled won round whose original
// claim failed. Claim failures never revert the win.
func (ge *GameEngine) RetryClaim(roundID string) (*models.GameRound, error) {
	ge.mu.Lock()
	rs, ok := ge.rounds[roundID]
	if !ok {
		ge.mu.Unlock()
		return nil, models.NewGameError(models.KindRoundNotFound, "round not found")
	}
	round := rs.round
	if round.Phase != models.PhaseSettledWon {
		ge.mu.Unlock()
		return nil, models.NewGameError(models.KindClaimFailed, "round has no claimable win")
	}
	if round.ClaimTxID != "" {
		snapshot := round.Clone()
		ge.mu.Unlock()
		return snapshot, nil
	}
	wagerTxID := round.TxID
	payout := round.Payout
	ge.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	claimTxID, err := ge.tx.ClaimWinnings(ctx, wagerTxID)
	if err != nil {
		return nil, models.WrapGameError(models.KindClaimFailed, "claim retry failed", err).WithTx(wagerTxID)
	}

	ge.mu.Lock()
	round.ClaimTxID = claimTxID
	round.LastError = ""
	ge.wallets.AdjustBalance(int64(payout))
	snapshot := round.Clone()
	ge.mu.Unlock()

	ge.persist(snapshot)
	return snapshot, nil
}

// AbortInFlight cancels the outstanding waits of the current round, for use
// when the owning session is torn down. A submitted wager stays debited; the
// ledger has already recorded it.
func (ge *GameEngine) AbortInFlight() {
	ge.mu.Lock()
	if ge.currentID == "" {
		ge.mu.Unlock()
		return
	}
	rs, ok := ge.rounds[ge.currentID]
	if !ok {
		ge.mu.Unlock()
		return
	}
	notSubmitted := rs.round.Phase == models.PhaseSubmitting && rs.round.SelectedSlot == -1
	rs.round.Phase = models.PhaseIdle
	rs.round.LastError = "session disconnected"
	ge.currentID = ""
	select {
	case <-rs.stop:
	default:
		close(rs.stop)
	}
	if notSubmitted {
		ge.wallets.AdjustBalance(int64(rs.round.WagerAmount))
	}
	ge.mu.Unlock()
}

// CleanupStaleRounds drops terminal rounds older than maxAge and force-fails
// in-flight rounds stuck past it.
func (ge *GameEngine) CleanupStaleRounds(maxAge time.Duration) {
	ge.mu.Lock()
	cutoff := time.Now().Add(-maxAge)
	for id, rs := range ge.rounds {
		if !rs.round.CreatedAt.Before(cutoff) {
			continue
		}
		if rs.round.Phase.Terminal() {
			delete(ge.rounds, id)
			continue
		}
		log.Printf("round %s stuck in %s past %s, forcing idle", id, rs.round.Phase, maxAge)
		rs.round.Phase = models.PhaseIdle
		rs.round.LastError = string(models.KindConfirmationTimeout)
		if ge.currentID == id {
			ge.currentID = ""
		}
		select {
		case <-rs.stop:
		default:
			close(rs.stop)
		}
	}
	ge.mu.Unlock()
}

func (ge *GameEngine) notify(round *models.GameRound) {
	if ge.broadcaster != nil {
		ge.broadcaster.BroadcastRoundUpdate(round.Address, round)
	}
}

func (ge *GameEngine) persist(round *models.GameRound) {
	ge.notify(round)
	if ge.store != nil {
		if err := ge.store.SaveSettledRound(round); err != nil {
			log.Printf("failed to persist settled round %s: %v", round.ID, err)
		}
	}
}
