package balance

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"bridgepay/pkg/chain"
	"bridgepay/pkg/chainrpc"
)

// fakeReader serves canned balances and lets individual chains be failed.
type fakeReader struct {
	mu      sync.Mutex
	native  map[string]string
	stable  map[string]string
	failing map[string]bool
	reads   int
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		native:  make(map[string]string),
		stable:  make(map[string]string),
		failing: make(map[string]bool),
	}
}

func (f *fakeReader) set(chainID, native, stable string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.native[chainID] = native
	f.stable[chainID] = stable
}

func (f *fakeReader) fail(chainID string, failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[chainID] = failing
}

func (f *fakeReader) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func (f *fakeReader) NativeBalance(ctx context.Context, chainID, address string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.failing[chainID] {
		return "", fmt.Errorf("rpc unreachable on %s", chainID)
	}
	return f.native[chainID], nil
}

func (f *fakeReader) StableBalance(ctx context.Context, chainID, address string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[chainID] {
		return "", fmt.Errorf("rpc unreachable on %s", chainID)
	}
	return f.stable[chainID], nil
}

func (f *fakeReader) TransactionStatus(ctx context.Context, chainID, txHash string) (chainrpc.TxState, error) {
	return chainrpc.TxConfirmed, nil
}

func testRegistry() *chain.Registry {
	return chain.NewRegistry(
		chain.Chain{ID: "base", NativeDecimals: 18, StableDecimals: 6},
		chain.Chain{ID: "arbitrum", NativeDecimals: 18, StableDecimals: 6},
	)
}

func TestRefreshAll(t *testing.T) {
	reader := newFakeReader()
	reader.set("base", "1.5", "250")
	reader.set("arbitrum", "0.02", "10")

	tracker := NewTracker(testRegistry(), reader)

	balances := tracker.RefreshAll(context.Background(), "0xabc")
	if len(balances) != 2 {
		t.Fatalf("got %d balances, want 2", len(balances))
	}

	// Registry order is preserved.
	if balances[0].Chain != "base" || balances[1].Chain != "arbitrum" {
		t.Errorf("unexpected order: %s, %s", balances[0].Chain, balances[1].Chain)
	}
	if balances[0].NativeAmount != "1.5" || balances[0].StableAmount != "250" {
		t.Errorf("base balance = %+v", balances[0])
	}
	if balances[0].Stale || balances[1].Stale {
		t.Error("fresh reads should not be stale")
	}
}

// One chain failing degrades that chain's entry instead of failing the
// whole refresh.
func TestRefreshAllPartialFailure(t *testing.T) {
	reader := newFakeReader()
	reader.set("base", "1.5", "250")
	reader.set("arbitrum", "0.02", "10")

	tracker := NewTracker(testRegistry(), reader)
	ctx := context.Background()

	tracker.RefreshAll(ctx, "0xabc")

	reader.fail("arbitrum", true)
	reader.set("base", "2.0", "300")

	balances := tracker.RefreshAll(ctx, "0xabc")
	if len(balances) != 2 {
		t.Fatalf("got %d balances, want 2", len(balances))
	}

	if balances[0].NativeAmount != "2.0" || balances[0].Stale {
		t.Errorf("healthy chain entry = %+v, want fresh 2.0", balances[0])
	}
	if !balances[1].Stale {
		t.Error("failed chain should keep its previous entry marked stale")
	}
	if balances[1].NativeAmount != "0.02" {
		t.Errorf("stale entry amount = %s, want the last good read 0.02", balances[1].NativeAmount)
	}
}

// A chain that never succeeded has nothing to show and is omitted.
func TestRefreshAllNeverSucceeded(t *testing.T) {
	reader := newFakeReader()
	reader.set("base", "1.5", "250")
	reader.fail("arbitrum", true)

	tracker := NewTracker(testRegistry(), reader)

	balances := tracker.RefreshAll(context.Background(), "0xabc")
	if len(balances) != 1 {
		t.Fatalf("got %d balances, want 1", len(balances))
	}
	if balances[0].Chain != "base" {
		t.Errorf("remaining entry = %s, want base", balances[0].Chain)
	}
}

func TestLatest(t *testing.T) {
	reader := newFakeReader()
	reader.set("base", "1.5", "250")
	reader.set("arbitrum", "0.02", "10")

	tracker := NewTracker(testRegistry(), reader)

	if got := tracker.Latest(); len(got) != 0 {
		t.Fatalf("Latest before any refresh = %d entries, want 0", len(got))
	}

	tracker.RefreshAll(context.Background(), "0xabc")

	latest := tracker.Latest()
	if len(latest) != 2 {
		t.Fatalf("Latest = %d entries, want 2", len(latest))
	}
	if latest[0].Chain != "base" {
		t.Errorf("Latest[0] = %s, want base", latest[0].Chain)
	}
}

func TestAutoRefreshSuspend(t *testing.T) {
	reader := newFakeReader()
	reader.set("base", "1.5", "250")
	reader.set("arbitrum", "0.02", "10")

	tracker := NewTracker(testRegistry(), reader, WithInterval(10*time.Millisecond))
	ctx := context.Background()

	if err := tracker.Start(ctx, "0xabc"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tracker.Stop()

	if err := tracker.Start(ctx, "0xabc"); err == nil {
		t.Error("second Start should fail while running")
	}

	// Let the loop tick a few times, then suspend and verify reads stop.
	time.Sleep(50 * time.Millisecond)
	if reader.readCount() == 0 {
		t.Fatal("auto-refresh never read any balances")
	}

	tracker.Suspend("0xabc")
	time.Sleep(20 * time.Millisecond)
	before := reader.readCount()
	time.Sleep(50 * time.Millisecond)
	if after := reader.readCount(); after != before {
		t.Errorf("reads continued while suspended: %d -> %d", before, after)
	}

	tracker.Resume("0xabc")
	time.Sleep(50 * time.Millisecond)
	if after := reader.readCount(); after == before {
		t.Error("reads did not resume")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	reader := newFakeReader()
	tracker := NewTracker(testRegistry(), reader, WithInterval(time.Hour))

	if err := tracker.Start(context.Background(), "0xabc"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	tracker.Stop()
	tracker.Stop()
}
