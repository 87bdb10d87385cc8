package services

import (
	"context"
	"log"
	"sync"
	"time"

	"shellgame-backend/internal/models"
)

// WalletProvider is the capability set every concrete wallet adapter
// implements. Adding a provider means adding one adapter; nothing in the
// round engine or ledger client changes.
type WalletProvider interface {
	ID() string
	Available(ctx context.Context) bool
	Connect(ctx context.Context) (address string, err error)
	Disconnect(ctx context.Context) error
	Sign(ctx context.Context, payloads [][]byte) ([][]byte, error)
	Balance(ctx context.Context, address string) (uint64, error)
}

// WalletManager owns the single active WalletSession and the background
// balance poller. It replaces ambient global wallet state with an explicitly
// owned value injected into the engine and ledger client.
type WalletManager struct {
	mu        sync.Mutex
	providers map[string]WalletProvider
	order     []string

	active  WalletProvider
	session *models.WalletSession

	refreshInterval time.Duration
	stopPoll        chan struct{}

	// onTeardown fires after a session is torn down so the engine can cancel
	// outstanding round waits before they mutate a dead session's round.
	onTeardown func()
	// onBalance pushes advisory balance changes to subscribers.
	onBalance func(address string, balance uint64, known bool)
}

func NewWalletManager(refreshInterval time.Duration) *WalletManager {
	return &WalletManager{
		providers:       make(map[string]WalletProvider),
		refreshInterval: refreshInterval,
	}
}

func (wm *WalletManager) Register(p WalletProvider) {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	if _, exists := wm.providers[p.ID()]; !exists {
		wm.order = append(wm.order, p.ID())
	}
	wm.providers[p.ID()] = p
}

func (wm *WalletManager) SetTeardownHook(fn func()) {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	wm.onTeardown = fn
}

func (wm *WalletManager) SetBalanceHook(fn func(address string, balance uint64, known bool)) {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	wm.onBalance = fn
}

// Providers lists registered adapters and whether each is currently usable.
func (wm *WalletManager) Providers(ctx context.Context) []models.ProviderInfo {
	wm.mu.Lock()
	ids := append([]string(nil), wm.order...)
	providers := make([]WalletProvider, 0, len(ids))
	for _, id := range ids {
		providers = append(providers, wm.providers[id])
	}
	wm.mu.Unlock()

	infos := make([]models.ProviderInfo, 0, len(providers))
	for _, p := range providers {
		infos = append(infos, models.ProviderInfo{ID: p.ID(), Available: p.Available(ctx)})
	}
	return infos
}

// Connect establishes a session with the named provider. An already active
// session is disconnected first so at most one session ever exists.
func (wm *WalletManager) Connect(ctx context.Context, providerID string) (*models.WalletSession, error) {
	wm.mu.Lock()
	p, ok := wm.providers[providerID]
	wm.mu.Unlock()
	if !ok {
		return nil, models.NewGameErrorf(models.KindProviderUnavailable, "unknown wallet provider: %s", providerID)
	}
	if !p.Available(ctx) {
		return nil, models.NewGameErrorf(models.KindProviderUnavailable, "wallet provider %s not detected", providerID)
	}

	// tear down any prior session before the new provider prompt
	wm.Disconnect(ctx)

	address, err := p.Connect(ctx)
	if err != nil {
		if models.KindOf(err) != "" {
			return nil, err
		}
		return nil, models.WrapGameError(models.KindProviderUnavailable, "wallet connection failed", err)
	}

	balance, balanceErr := p.Balance(ctx, address)
	known := balanceErr == nil
	if balanceErr != nil {
		log.Printf("initial balance fetch failed for %s: %v", address, balanceErr)
		balance = 0
	}

	session := &models.WalletSession{
		ProviderID:   providerID,
		Address:      address,
		Balance:      balance,
		BalanceKnown: known,
		Connected:    true,
	}

	wm.mu.Lock()
	wm.active = p
	wm.session = session
	wm.stopPoll = make(chan struct{})
	go wm.pollBalance(wm.stopPoll)
	wm.mu.Unlock()

	return session.Clone(), nil
}

// Disconnect is idempotent and always leaves no active session, even when
// the provider's own disconnect call fails.
func (wm *WalletManager) Disconnect(ctx context.Context) {
	wm.mu.Lock()
	p := wm.active
	stop := wm.stopPoll
	teardown := wm.onTeardown
	wm.active = nil
	wm.session = nil
	wm.stopPoll = nil
	wm.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if p != nil {
		if err := p.Disconnect(ctx); err != nil {
			log.Printf("provider %s disconnect failed, session cleared anyway: %v", p.ID(), err)
		}
	}
	if p != nil && teardown != nil {
		teardown()
	}
}

// Session returns a snapshot of the active session, or nil.
func (wm *WalletManager) Session() *models.WalletSession {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	if wm.session == nil {
		return nil
	}
	return wm.session.Clone()
}

// Sign delegates to the active provider.
func (wm *WalletManager) Sign(ctx context.Context, payloads [][]byte) ([][]byte, error) {
	wm.mu.Lock()
	p := wm.active
	wm.mu.Unlock()
	if p == nil {
		return nil, models.NewGameError(models.KindNoWalletSession, "no wallet session connected")
	}

	sigs, err := p.Sign(ctx, payloads)
	if err != nil {
		if models.KindOf(err) != "" {
			return nil, err
		}
		return nil, models.WrapGameError(models.KindSigningRejected, "provider refused to sign", err)
	}
	return sigs, nil
}

// Address returns the active session's account, or empty.
func (wm *WalletManager) Address() string {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	if wm.session == nil {
		return ""
	}
	return wm.session.Address
}

// RefreshBalance is best-effort: a failed fetch keeps the last-known
// advisory balance instead of flashing zero funds at the caller.
func (wm *WalletManager) RefreshBalance(ctx context.Context) (uint64, bool) {
	wm.mu.Lock()
	p := wm.active
	var address string
	if wm.session != nil {
		address = wm.session.Address
	}
	wm.mu.Unlock()

	if p == nil || address == "" {
		return 0, false
	}

	balance, err := p.Balance(ctx, address)
	if err != nil {
		log.Printf("balance refresh failed for %s: %v", address, err)
		wm.mu.Lock()
		defer wm.mu.Unlock()
		if wm.session == nil {
			return 0, false
		}
		wm.session.BalanceKnown = false
		return wm.session.Balance, false
	}

	wm.mu.Lock()
	if wm.session == nil || wm.session.Address != address {
		wm.mu.Unlock()
		return 0, false
	}
	wm.session.Balance = balance
	wm.session.BalanceKnown = true
	notify := wm.onBalance
	wm.mu.Unlock()

	if notify != nil {
		notify(address, balance, true)
	}
	return balance, true
}

// AdjustBalance applies an optimistic local delta (wager debit, claim credit)
// to the advisory balance.
func (wm *WalletManager) AdjustBalance(delta int64) {
	wm.mu.Lock()
	if wm.session == nil {
		wm.mu.Unlock()
		return
	}
	if delta < 0 && uint64(-delta) > wm.session.Balance {
		wm.session.Balance = 0
	} else {
		wm.session.Balance = uint64(int64(wm.session.Balance) + delta)
	}
	address := wm.session.Address
	balance := wm.session.Balance
	known := wm.session.BalanceKnown
	notify := wm.onBalance
	wm.mu.Unlock()

	if notify != nil {
		notify(address, balance, known)
	}
}

// pollBalance refreshes the advisory balance while the session lives. The
// stop channel is closed on disconnect so no poller leaks across
// disconnect/reconnect cycles.
func (wm *WalletManager) pollBalance(stop chan struct{}) {
	ticker := time.NewTicker(wm.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			wm.RefreshBalance(ctx)
			cancel()
		case <-stop:
			return
		}
	}
}
