package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"shellgame-backend/internal/models"
	"shellgame-backend/internal/services"
)

type fakeSigner struct {
	address    string
	rejectSign bool
	signCalls  int
}

func (f *fakeSigner) Address() string { return f.address }

func (f *fakeSigner) Sign(ctx context.Context, payloads [][]byte) ([][]byte, error) {
	f.signCalls++
	if f.rejectSign {
		return nil, models.NewGameError(models.KindSigningRejected, "declined in wallet")
	}
	sigs := make([][]byte, len(payloads))
	for i := range payloads {
		sigs[i] = []byte("sig")
	}
	return sigs, nil
}

type fakeNode struct {
	paramsErr    error
	paramsCalls  int
	submitErrs   []error // consumed in order; nil entry means success
	submitCalls  int
	confirmAfter int // pending polls before confirmation; -1 never confirms
	pendingCalls int
	resultAfter  int // info calls before the result appears; -1 never
	infoCalls    int
	hash         string
	balance      uint64
}

func (f *fakeNode) SuggestedParams(ctx context.Context) (*models.SuggestedParams, error) {
	f.paramsCalls++
	if f.paramsErr != nil {
		return nil, f.paramsErr
	}
	return &models.SuggestedParams{Fee: 1000, FirstValid: 1, LastValid: 1000, GenesisID: "testnet"}, nil
}

func (f *fakeNode) SubmitTransaction(ctx context.Context, raw []byte) (string, error) {
	f.submitCalls++
	if len(f.submitErrs) > 0 {
		err := f.submitErrs[0]
		f.submitErrs = f.submitErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return models.TxIDFromRaw(raw), nil
}

func (f *fakeNode) PendingInfo(ctx context.Context, txID string) (*models.PendingTxInfo, error) {
	f.pendingCalls++
	if f.confirmAfter >= 0 && f.pendingCalls > f.confirmAfter {
		return &models.PendingTxInfo{ConfirmedRound: 42}, nil
	}
	return &models.PendingTxInfo{}, nil
}

func (f *fakeNode) TransactionInfo(ctx context.Context, txID string) (*models.RoundResult, error) {
	f.infoCalls++
	if f.resultAfter >= 0 && f.infoCalls > f.resultAfter {
		return &models.RoundResult{TxID: txID, VerificationHash: f.hash, ConfirmedRound: 42}, nil
	}
	return nil, services.ErrTxNotFound
}

func (f *fakeNode) AccountBalance(ctx context.Context, address string) (uint64, error) {
	return f.balance, nil
}

func newTestClient(node *fakeNode, signer *fakeSigner) *services.LedgerClient {
	return services.NewLedgerClient(node, signer, services.LedgerClientConfig{
		AppID:               12345,
		ExplorerURL:         "https://explorer.test/tx/",
		ConfirmationTimeout: 200 * time.Millisecond,
		PollInterval:        10 * time.Millisecond,
		ResultRetryBudget:   3,
		ResultRetryInterval: 10 * time.Millisecond,
	})
}

func TestSubmitWager(t *testing.T) {
	node := &fakeNode{confirmAfter: 0, resultAfter: 0, hash: "a1b2c3d4"}
	signer := &fakeSigner{address: "addr1"}
	client := newTestClient(node, signer)

	txID, err := client.SubmitWager(context.Background(), 10, 2)
	if err != nil {
		t.Fatalf("SubmitWager failed: %v", err)
	}
	if txID == "" {
		t.Error("SubmitWager should return a transaction id")
	}
	if signer.signCalls != 1 {
		t.Errorf("expected 1 sign call, got %d", signer.signCalls)
	}
	if client.ExplorerURL(txID) != "https://explorer.test/tx/"+txID {
		t.Errorf("unexpected explorer url: %s", client.ExplorerURL(txID))
	}
}

func TestSubmitWagerRetriesOnceWithFreshParams(t *testing.T) {
	node := &fakeNode{submitErrs: []error{errors.New("stale params"), nil}}
	signer := &fakeSigner{address: "addr1"}
	client := newTestClient(node, signer)

	txID, err := client.SubmitWager(context.Background(), 10, 1)
	if err != nil {
		t.Fatalf("SubmitWager should succeed on retry: %v", err)
	}
	if txID == "" {
		t.Error("retry should produce a transaction id")
	}
	if node.submitCalls != 2 {
		t.Errorf("expected 2 submit attempts, got %d", node.submitCalls)
	}
	if node.paramsCalls != 2 {
		t.Errorf("retry should refetch params, got %d fetches", node.paramsCalls)
	}
}

func TestSubmitWagerFailsAfterRetry(t *testing.T) {
	node := &fakeNode{submitErrs: []error{errors.New("rejected"), errors.New("rejected again")}}
	signer := &fakeSigner{address: "addr1"}
	client := newTestClient(node, signer)

	_, err := client.SubmitWager(context.Background(), 10, 1)
	if !models.IsKind(err, models.KindSubmissionFailed) {
		t.Errorf("expected submission_failed, got %v", err)
	}
	if node.submitCalls != 2 {
		t.Errorf("expected exactly 2 submit attempts, got %d", node.submitCalls)
	}
}

func TestSubmitWagerSigningRejectedNotRetried(t *testing.T) {
	node := &fakeNode{}
	signer := &fakeSigner{address: "addr1", rejectSign: true}
	client := newTestClient(node, signer)

	_, err := client.SubmitWager(context.Background(), 10, 0)
	if !models.IsKind(err, models.KindSigningRejected) {
		t.Errorf("expected signing_rejected, got %v", err)
	}
	if signer.signCalls != 1 {
		t.Errorf("a declined signature must not be re-prompted, got %d sign calls", signer.signCalls)
	}
}

func TestAwaitConfirmationTimeoutBound(t *testing.T) {
	node := &fakeNode{confirmAfter: -1} // never confirms
	client := newTestClient(node, &fakeSigner{address: "addr1"})

	timeout := 100 * time.Millisecond
	start := time.Now()
	err := client.AwaitConfirmation(context.Background(), "txabc", timeout)
	elapsed := time.Since(start)

	if !models.IsKind(err, models.KindConfirmationTimeout) {
		t.Fatalf("expected confirmation_timeout, got %v", err)
	}
	if elapsed < timeout {
		t.Errorf("timed out too early: %v < %v", elapsed, timeout)
	}
	if elapsed > timeout+100*time.Millisecond {
		t.Errorf("timed out too late: %v", elapsed)
	}

	var ge *models.GameError
	if errors.As(err, &ge); ge.TxID != "txabc" {
		t.Errorf("timeout error should carry the tx id, got %q", ge.TxID)
	}
}

func TestAwaitConfirmationConfirms(t *testing.T) {
	node := &fakeNode{confirmAfter: 2}
	client := newTestClient(node, &fakeSigner{address: "addr1"})

	if err := client.AwaitConfirmation(context.Background(), "txabc", time.Second); err != nil {
		t.Fatalf("confirmation should succeed: %v", err)
	}
	if node.pendingCalls < 3 {
		t.Errorf("expected at least 3 polls, got %d", node.pendingCalls)
	}
}

func TestFetchResultRetryBudget(t *testing.T) {
	node := &fakeNode{resultAfter: -1} // result never appears
	client := newTestClient(node, &fakeSigner{address: "addr1"})

	_, err := client.FetchResult(context.Background(), "txabc")
	if !models.IsKind(err, models.KindResultUnavailable) {
		t.Fatalf("expected result_unavailable, got %v", err)
	}
	if node.infoCalls != 3 {
		t.Errorf("expected exactly the retry budget of 3 attempts, got %d", node.infoCalls)
	}
}

func TestFetchResultEventuallyFound(t *testing.T) {
	node := &fakeNode{resultAfter: 1, hash: "a1b2c3d4"}
	client := newTestClient(node, &fakeSigner{address: "addr1"})

	result, err := client.FetchResult(context.Background(), "txabc")
	if err != nil {
		t.Fatalf("FetchResult failed: %v", err)
	}
	if result.VerificationHash != "a1b2c3d4" {
		t.Errorf("unexpected hash: %s", result.VerificationHash)
	}
}

func TestClaimWinnings(t *testing.T) {
	node := &fakeNode{confirmAfter: 0, resultAfter: 0, hash: "a1b2c3d4"}
	signer := &fakeSigner{address: "addr1"}
	client := newTestClient(node, signer)

	claimTxID, err := client.ClaimWinnings(context.Background(), "wagertx1")
	if err != nil {
		t.Fatalf("ClaimWinnings failed: %v", err)
	}
	if claimTxID == "" {
		t.Error("claim should return its own transaction id")
	}
}
