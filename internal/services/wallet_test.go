package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shellgame-backend/internal/models"
	"shellgame-backend/internal/services"
)

type fakeProvider struct {
	mu              sync.Mutex
	id              string
	address         string
	available       bool
	rejectConnect   bool
	balance         uint64
	balanceErr      error
	connectCalls    int
	disconnectCalls int
	signCalls       int
}

func (f *fakeProvider) ID() string { return f.id }

func (f *fakeProvider) Available(ctx context.Context) bool { return f.available }

func (f *fakeProvider) Connect(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	if f.rejectConnect {
		return "", models.NewGameError(models.KindUserRejected, "declined")
	}
	return f.address, nil
}

func (f *fakeProvider) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnectCalls++
	return nil
}

func (f *fakeProvider) Sign(ctx context.Context, payloads [][]byte) ([][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signCalls++
	sigs := make([][]byte, len(payloads))
	for i := range payloads {
		sigs[i] = []byte("sig")
	}
	return sigs, nil
}

func (f *fakeProvider) Balance(ctx context.Context, address string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balanceErr != nil {
		return 0, f.balanceErr
	}
	return f.balance, nil
}

func (f *fakeProvider) disconnects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnectCalls
}

func newTestManager(providers ...services.WalletProvider) *services.WalletManager {
	wm := services.NewWalletManager(time.Hour) // poller effectively off in tests
	for _, p := range providers {
		wm.Register(p)
	}
	return wm
}

func TestConnectAndSession(t *testing.T) {
	p := &fakeProvider{id: "keystore", address: "addr1", available: true, balance: 500}
	wm := newTestManager(p)

	session, err := wm.Connect(context.Background(), "keystore")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if session.Address != "addr1" || session.Balance != 500 || !session.Connected {
		t.Errorf("unexpected session: %+v", session)
	}
	if !session.BalanceKnown {
		t.Error("balance should be known after a successful fetch")
	}
}

func TestConnectUnknownProvider(t *testing.T) {
	wm := newTestManager()
	_, err := wm.Connect(context.Background(), "ghost")
	if !models.IsKind(err, models.KindProviderUnavailable) {
		t.Errorf("expected provider_unavailable, got %v", err)
	}
}

func TestConnectUnavailableProvider(t *testing.T) {
	p := &fakeProvider{id: "keystore", available: false}
	wm := newTestManager(p)
	_, err := wm.Connect(context.Background(), "keystore")
	if !models.IsKind(err, models.KindProviderUnavailable) {
		t.Errorf("expected provider_unavailable, got %v", err)
	}
}

func TestConnectUserRejected(t *testing.T) {
	p := &fakeProvider{id: "remote", available: true, rejectConnect: true}
	wm := newTestManager(p)
	_, err := wm.Connect(context.Background(), "remote")
	if !models.IsKind(err, models.KindUserRejected) {
		t.Errorf("expected user_rejected, got %v", err)
	}
	if wm.Session() != nil {
		t.Error("a rejected connect must leave no session")
	}
}

func TestAtMostOneSession(t *testing.T) {
	a := &fakeProvider{id: "A", address: "addrA", available: true, balance: 100}
	b := &fakeProvider{id: "B", address: "addrB", available: true, balance: 200}
	wm := newTestManager(a, b)

	if _, err := wm.Connect(context.Background(), "A"); err != nil {
		t.Fatalf("connect A failed: %v", err)
	}
	session, err := wm.Connect(context.Background(), "B")
	if err != nil {
		t.Fatalf("connect B failed: %v", err)
	}

	if session.ProviderID != "B" || session.Address != "addrB" {
		t.Errorf("active session should be B, got %+v", session)
	}
	if a.disconnects() != 1 {
		t.Errorf("A's adapter should have been disconnected exactly once, got %d", a.disconnects())
	}
	if got := wm.Session(); got == nil || got.ProviderID != "B" {
		t.Errorf("exactly one session (B) should remain, got %+v", got)
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	p := &fakeProvider{id: "keystore", address: "addr1", available: true}
	wm := newTestManager(p)

	wm.Connect(context.Background(), "keystore")
	wm.Disconnect(context.Background())
	wm.Disconnect(context.Background())

	if wm.Session() != nil {
		t.Error("disconnect should leave no active session")
	}
	if p.disconnects() != 1 {
		t.Errorf("provider disconnect should run once, got %d", p.disconnects())
	}
}

func TestSignWithoutSession(t *testing.T) {
	wm := newTestManager()
	_, err := wm.Sign(context.Background(), [][]byte{[]byte("payload")})
	if !models.IsKind(err, models.KindNoWalletSession) {
		t.Errorf("expected no_wallet_session, got %v", err)
	}
}

func TestRefreshBalanceKeepsLastKnownOnFailure(t *testing.T) {
	p := &fakeProvider{id: "keystore", address: "addr1", available: true, balance: 500}
	wm := newTestManager(p)
	wm.Connect(context.Background(), "keystore")

	p.mu.Lock()
	p.balanceErr = errors.New("node unreachable")
	p.mu.Unlock()

	balance, known := wm.RefreshBalance(context.Background())
	if known {
		t.Error("failed refresh should report balance as not known")
	}
	if balance != 500 {
		t.Errorf("failed refresh must keep last-known balance 500, got %d", balance)
	}

	session := wm.Session()
	if session.Balance != 500 {
		t.Errorf("session balance should be untouched, got %d", session.Balance)
	}
}

func TestAdjustBalance(t *testing.T) {
	p := &fakeProvider{id: "keystore", address: "addr1", available: true, balance: 100}
	wm := newTestManager(p)
	wm.Connect(context.Background(), "keystore")

	wm.AdjustBalance(-30)
	if got := wm.Session().Balance; got != 70 {
		t.Errorf("expected 70 after debit, got %d", got)
	}

	wm.AdjustBalance(90)
	if got := wm.Session().Balance; got != 160 {
		t.Errorf("expected 160 after credit, got %d", got)
	}

	wm.AdjustBalance(-1000)
	if got := wm.Session().Balance; got != 0 {
		t.Errorf("over-debit should clamp at zero, got %d", got)
	}
}

func TestTeardownHookFires(t *testing.T) {
	p := &fakeProvider{id: "keystore", address: "addr1", available: true}
	wm := newTestManager(p)

	fired := 0
	wm.SetTeardownHook(func() { fired++ })

	wm.Connect(context.Background(), "keystore")
	wm.Disconnect(context.Background())

	if fired != 1 {
		t.Errorf("teardown hook should fire once per live session teardown, got %d", fired)
	}

	// disconnect without a session must not fire stale teardowns
	wm.Disconnect(context.Background())
	if fired != 1 {
		t.Errorf("idempotent disconnect fired the hook again: %d", fired)
	}
}
