package services

import (
	"context"
	"errors"
	"log"
	"time"

	"shellgame-backend/internal/models"
)

// TxSigner is the slice of the wallet session the ledger client needs:
// an account to spend from and a way to obtain signatures.
type TxSigner interface {
	Address() string
	Sign(ctx context.Context, payloads [][]byte) ([][]byte, error)
}

// TxClient is the round engine's view of the ledger. LedgerClient is the
// production implementation.
type TxClient interface {
	SubmitWager(ctx context.Context, amount uint64, slot int) (string, error)
	// AwaitConfirmation blocks until confirmation or the timeout; a
	// non-positive timeout uses the client's configured bound.
	AwaitConfirmation(ctx context.Context, txID string, timeout time.Duration) error
	FetchResult(ctx context.Context, txID string) (*models.RoundResult, error)
	ClaimWinnings(ctx context.Context, wagerTxID string) (string, error)
	ExplorerURL(txID string) string
}

type LedgerClientConfig struct {
	AppID               uint64
	ExplorerURL         string
	ConfirmationTimeout time.Duration
	PollInterval        time.Duration
	ResultRetryBudget   int
	ResultRetryInterval time.Duration
}

// LedgerClient builds, signs, submits and tracks wager and claim
// transactions. Timeouts and retry budgets are first-class parameters, not
// incidental loops.
type LedgerClient struct {
	node   LedgerNode
	signer TxSigner
	cfg    LedgerClientConfig
}

func NewLedgerClient(node LedgerNode, signer TxSigner, cfg LedgerClientConfig) *LedgerClient {
	if cfg.ConfirmationTimeout <= 0 {
		cfg.ConfirmationTimeout = 45 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.ResultRetryBudget <= 0 {
		cfg.ResultRetryBudget = 5
	}
	if cfg.ResultRetryInterval <= 0 {
		cfg.ResultRetryInterval = 2 * time.Second
	}
	return &LedgerClient{node: node, signer: signer, cfg: cfg}
}

// SubmitWager sends the wager app call (payment + ordered opaque args). A
// node rejection is retried once with refreshed suggested params before
// surfacing as SubmissionFailed.
func (lc *LedgerClient) SubmitWager(ctx context.Context, amount uint64, slot int) (string, error) {
	args := [][]byte{
		[]byte("bet"),
		models.EncodeUint64(amount),
		models.EncodeUint64(uint64(slot)),
	}
	return lc.submitAppCall(ctx, args, amount)
}

// ClaimWinnings submits a claim referencing the original wager transaction,
// with the same confirmation semantics as the wager itself.
func (lc *LedgerClient) ClaimWinnings(ctx context.Context, wagerTxID string) (string, error) {
	args := [][]byte{
		[]byte("claim"),
		[]byte(wagerTxID),
	}
	claimTxID, err := lc.submitAppCall(ctx, args, 0)
	if err != nil {
		return "", err
	}
	if err := lc.AwaitConfirmation(ctx, claimTxID, lc.cfg.ConfirmationTimeout); err != nil {
		return "", err
	}
	return claimTxID, nil
}

func (lc *LedgerClient) submitAppCall(ctx context.Context, args [][]byte, payment uint64) (string, error) {
	txID, err := lc.buildSignSubmit(ctx, args, payment)
	if err == nil {
		return txID, nil
	}
	if models.KindOf(err) == models.KindSigningRejected {
		return "", err
	}

	// stale params are the common rejection cause, so refetch and retry once
	log.Printf("submission failed, retrying with refreshed params: %v", err)
	txID, retryErr := lc.buildSignSubmit(ctx, args, payment)
	if retryErr != nil {
		if models.KindOf(retryErr) == models.KindSigningRejected {
			return "", retryErr
		}
		return "", models.WrapGameError(models.KindSubmissionFailed, "ledger rejected transaction", retryErr)
	}
	return txID, nil
}

func (lc *LedgerClient) buildSignSubmit(ctx context.Context, args [][]byte, payment uint64) (string, error) {
	params, err := lc.node.SuggestedParams(ctx)
	if err != nil {
		return "", err
	}

	tx := models.AppCallTx{
		Sender:     lc.signer.Address(),
		AppID:      lc.cfg.AppID,
		Args:       args,
		Fee:        params.Fee,
		FirstValid: params.FirstValid,
		LastValid:  params.LastValid,
		GenesisID:  params.GenesisID,
	}
	if payment > 0 {
		tx.Receiver = models.ApplicationAddress(lc.cfg.AppID)
		tx.Amount = payment
	}

	encoded, err := tx.Encode()
	if err != nil {
		return "", err
	}

	sigs, err := lc.signer.Sign(ctx, [][]byte{encoded})
	if err != nil {
		if models.KindOf(err) != "" {
			return "", err
		}
		return "", models.WrapGameError(models.KindSigningRejected, "wallet refused to sign", err)
	}
	if len(sigs) != 1 {
		return "", models.NewGameErrorf(models.KindSigningRejected, "expected 1 signature, got %d", len(sigs))
	}

	signed := models.SignedTx{Tx: tx, Sig: sigs[0]}
	raw, err := signed.Encode()
	if err != nil {
		return "", err
	}

	txID, err := lc.node.SubmitTransaction(ctx, raw)
	if err != nil {
		return "", err
	}
	if txID == "" {
		txID = models.TxIDFromRaw(raw)
	}
	return txID, nil
}

// AwaitConfirmation polls the pending-transaction status at a fixed interval
// until the transaction confirms or the timeout elapses. The bound is
// mandatory: an unbounded poll would hold the one-round-per-session
// invariant hostage on a stalled transaction.
func (lc *LedgerClient) AwaitConfirmation(ctx context.Context, txID string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = lc.cfg.ConfirmationTimeout
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(lc.cfg.PollInterval)
	defer ticker.Stop()

	for {
		info, err := lc.node.PendingInfo(ctx, txID)
		if err == nil {
			if info.PoolError != "" {
				return models.NewGameErrorf(models.KindSubmissionFailed, "transaction dropped from pool: %s", info.PoolError).WithTx(txID)
			}
			if info.ConfirmedRound > 0 {
				return nil
			}
		} else {
			// transient node errors keep polling until the deadline
			log.Printf("pending status check failed for %s: %v", txID, err)
		}

		select {
		case <-deadline.C:
			return models.NewGameErrorf(models.KindConfirmationTimeout,
				"no confirmation within %s", timeout).WithTx(txID)
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// FetchResult queries the node/indexer for the emitted result tied to txID.
// NotFound is retried with a fixed budget, then surfaced as
// ResultUnavailable; it is not retried beyond that, because silently
// retrying after a possible on-chain debit risks a double wager.
func (lc *LedgerClient) FetchResult(ctx context.Context, txID string) (*models.RoundResult, error) {
	var lastErr error
	for attempt := 0; attempt < lc.cfg.ResultRetryBudget; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(lc.cfg.ResultRetryInterval):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := lc.node.TransactionInfo(ctx, txID)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !errors.Is(err, ErrTxNotFound) {
			log.Printf("result fetch failed for %s: %v", txID, err)
		}
	}
	return nil, models.WrapGameError(models.KindResultUnavailable,
		"result not available after retry budget", lastErr).WithTx(txID)
}

func (lc *LedgerClient) ExplorerURL(txID string) string {
	if lc.cfg.ExplorerURL == "" {
		return ""
	}
	return lc.cfg.ExplorerURL + txID
}
