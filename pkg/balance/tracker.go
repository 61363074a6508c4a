package balance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bridgepay/pkg/chain"
	"bridgepay/pkg/chainrpc"
	"bridgepay/pkg/logger"
	"bridgepay/pkg/types"
)

// DefaultRefreshInterval is how often the passive auto-refresh re-queries
// balances while running.
const DefaultRefreshInterval = 30 * time.Second

// Tracker queries native and stable-coin balances for a wallet address
// across all configured chains. Each chain is an independent failure
// domain: one chain's RPC failure degrades that chain's entry to stale
// instead of failing the whole refresh.
type Tracker struct {
	registry *chain.Registry
	reader   chainrpc.Reader
	log      logger.Logger
	interval time.Duration

	mu        sync.RWMutex
	latest    map[string]types.Balance
	suspended map[string]struct{}
	running   bool
	stopChan  chan struct{}
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithInterval overrides the auto-refresh interval.
func WithInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(log logger.Logger) Option {
	return func(t *Tracker) { t.log = log }
}

// NewTracker builds a tracker over the given registry and reader.
func NewTracker(registry *chain.Registry, reader chainrpc.Reader, opts ...Option) *Tracker {
	t := &Tracker{
		registry:  registry,
		reader:    reader,
		log:       logger.Noop{},
		interval:  DefaultRefreshInterval,
		latest:    make(map[string]types.Balance),
		suspended: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RefreshAll queries every configured chain concurrently and returns the
// resulting entries. It never returns an error: a chain whose query failed
// keeps its previous entry marked stale, or is omitted if it was never
// read successfully.
func (t *Tracker) RefreshAll(ctx context.Context, address string) []types.Balance {
	ids := t.registry.IDs()

	results := make([]*types.Balance, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			bal, err := t.RefreshOne(ctx, address, id)
			if err != nil {
				t.log.Warn("balance refresh failed", "chain", id, "err", err)
				return
			}
			results[i] = &bal
		}(i, id)
	}
	wg.Wait()

	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]types.Balance, 0, len(ids))
	for i, id := range ids {
		if results[i] != nil {
			t.latest[id] = *results[i]
			out = append(out, *results[i])
			continue
		}
		if prev, ok := t.latest[id]; ok {
			prev.Stale = true
			t.latest[id] = prev
			out = append(out, prev)
		}
	}
	return out
}

// RefreshOne queries one chain's balances for the address.
func (t *Tracker) RefreshOne(ctx context.Context, address, chainID string) (types.Balance, error) {
	if _, err := t.registry.MetadataFor(chainID); err != nil {
		return types.Balance{}, err
	}

	native, err := t.reader.NativeBalance(ctx, chainID, address)
	if err != nil {
		return types.Balance{}, fmt.Errorf("native balance: %w", err)
	}
	stable, err := t.reader.StableBalance(ctx, chainID, address)
	if err != nil {
		return types.Balance{}, fmt.Errorf("stable balance: %w", err)
	}

	return types.Balance{
		Chain:        chainID,
		NativeAmount: native,
		StableAmount: stable,
		AsOf:         time.Now(),
	}, nil
}

// Latest returns the most recent entries in registry order.
func (t *Tracker) Latest() []types.Balance {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]types.Balance, 0, len(t.latest))
	for _, id := range t.registry.IDs() {
		if bal, ok := t.latest[id]; ok {
			out = append(out, bal)
		}
	}
	return out
}

// Start begins the passive auto-refresh loop for the given address. It
// returns an error if the loop is already running.
func (t *Tracker) Start(ctx context.Context, address string) error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return fmt.Errorf("balance tracker is already running")
	}
	t.running = true
	t.stopChan = make(chan struct{})
	stop := t.stopChan
	t.mu.Unlock()

	go t.loop(ctx, address, stop)
	return nil
}

// Stop halts the auto-refresh loop.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	close(t.stopChan)
	t.running = false
}

// Suspend pauses auto-refresh for the given address. Used while a payment
// for the address is processing so a balance read cannot race a pending
// deposit.
func (t *Tracker) Suspend(address string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.suspended[address] = struct{}{}
}

// Resume re-enables auto-refresh for the address.
func (t *Tracker) Resume(address string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.suspended, address)
}

func (t *Tracker) isSuspended(address string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.suspended[address]
	return ok
}

func (t *Tracker) loop(ctx context.Context, address string, stop <-chan struct{}) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if t.isSuspended(address) {
				continue
			}
			t.RefreshAll(ctx, address)
		}
	}
}
