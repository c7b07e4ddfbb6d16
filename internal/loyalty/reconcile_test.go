package loyalty

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"petal/internal/store"
)

func testReconciler(st store.Store, pageSize int) *Reconciler {
	return NewReconciler(st, slog.Default(), ReconcilerConfig{
		CycleDays:      30,
		PageSize:       pageSize,
		MaxPagesPerRun: 100,
		StoreTimeout:   time.Second,
	})
}

func seedLedger(m *store.Memory, id string, balance, lifetime int64, cycleStart time.Time) {
	rec := Record{CurrentBalance: balance, LifetimePoints: lifetime, CycleStart: cycleStart}
	m.Seed(id, map[string]any{AttributeKey: rec.Encode()})
}

func TestRunResetsExpiredCycle(t *testing.T) {
	now := time.Date(2026, 9, 1, 3, 0, 0, 0, time.UTC)
	mem := store.NewMemory()
	seedLedger(mem, "cust-1", 320, 900, now.AddDate(0, 0, -31))

	sum, err := testReconciler(mem, 10).Run(context.Background(), now)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if sum.Reset != 1 {
		t.Fatalf("expected 1 reset, got %+v", sum)
	}

	rec, err := mem.FindByExternalID(context.Background(), "cust-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	led, ok := Decode(rec.Attributes)
	if !ok {
		t.Fatalf("loyalty doc missing after reset")
	}
	if led.CurrentBalance != 0 {
		t.Fatalf("balance not reset: %d", led.CurrentBalance)
	}
	if led.LifetimePoints != 900 {
		t.Fatalf("lifetime points changed: %d", led.LifetimePoints)
	}
	if led.PreviousCycleBalance != 320 {
		t.Fatalf("previous balance not captured: %d", led.PreviousCycleBalance)
	}
	if !led.CycleStart.Equal(now) || !led.LastReset.Equal(now) {
		t.Fatalf("cycle timestamps not advanced: start=%s reset=%s", led.CycleStart, led.LastReset)
	}
	if led.Tier != TierSeed || led.DiscountPercent != 0 {
		t.Fatalf("tier not reset: %s/%d", led.Tier, led.DiscountPercent)
	}
}

func TestRunIsIdempotentWithinPeriod(t *testing.T) {
	now := time.Date(2026, 9, 1, 3, 0, 0, 0, time.UTC)
	mem := store.NewMemory()
	seedLedger(mem, "cust-1", 120, 120, now.AddDate(0, 0, -31))

	rec := testReconciler(mem, 10)
	if _, err := rec.Run(context.Background(), now); err != nil {
		t.Fatalf("first run: %v", err)
	}
	sum, err := rec.Run(context.Background(), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if sum.Reset != 0 || sum.Skipped != 1 {
		t.Fatalf("expected second run to be a no-op, got %+v", sum)
	}
}

func TestRunSkipsCustomersWithoutLedger(t *testing.T) {
	now := time.Now().UTC()
	mem := store.NewMemory()
	mem.Seed("cust-bare", map[string]any{"profile": map[string]any{"name": "x"}})
	seedLedger(mem, "cust-fresh", 40, 40, now.AddDate(0, 0, -5))

	sum, err := testReconciler(mem, 10).Run(context.Background(), now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Reset != 0 || sum.Skipped != 2 {
		t.Fatalf("expected 2 skips, got %+v", sum)
	}
}

func TestRunPaginatesWholeSet(t *testing.T) {
	now := time.Now().UTC()
	mem := store.NewMemory()
	for i := 0; i < 23; i++ {
		seedLedger(mem, fmt.Sprintf("cust-%02d", i), 10, 10, now.AddDate(0, 0, -40))
	}

	sum, err := testReconciler(mem, 5).Run(context.Background(), now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Scanned != 23 || sum.Reset != 23 {
		t.Fatalf("expected all 23 records reset, got %+v", sum)
	}
}

func TestRunHoldsSnapshotWhenCountChangesMidRun(t *testing.T) {
	now := time.Now().UTC()
	mem := store.NewMemory()
	for i := 0; i < 7; i++ {
		seedLedger(mem, fmt.Sprintf("cust-%02d", i), 10, 10, now.AddDate(0, 0, -40))
	}

	// Two customers arrive mid-run, one sorting before the visited region
	// and one after, shifting every later page.
	updates := map[string]int{}
	seeded := false
	mem.UpdateHook = func(id string) error {
		updates[id]++
		if !seeded {
			seeded = true
			seedLedger(mem, "cust--front", 10, 10, now.AddDate(0, 0, -40))
			seedLedger(mem, "cust-99", 10, 10, now.AddDate(0, 0, -40))
		}
		return nil
	}

	rec := testReconciler(mem, 3)
	sum, err := rec.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if sum.Scanned > 7 {
		t.Fatalf("scan exceeded the count snapshot: %+v", sum)
	}
	for id, n := range updates {
		if n > 1 {
			t.Fatalf("record %s written %d times in one run", id, n)
		}
	}

	// The next scheduled run picks up whatever the shift displaced plus the
	// new arrivals; across both runs every customer rolls over exactly once.
	if _, err := rec.Run(context.Background(), now.Add(time.Hour)); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(updates) != 9 {
		t.Fatalf("expected all 9 customers written, got %d", len(updates))
	}
	for id, n := range updates {
		if n != 1 {
			t.Fatalf("record %s written %d times across runs", id, n)
		}
	}
}

func TestRunContinuesPastFailedRecord(t *testing.T) {
	now := time.Now().UTC()
	mem := store.NewMemory()
	seedLedger(mem, "cust-a", 50, 50, now.AddDate(0, 0, -40))
	seedLedger(mem, "cust-b", 60, 60, now.AddDate(0, 0, -40))
	seedLedger(mem, "cust-c", 70, 70, now.AddDate(0, 0, -40))
	mem.UpdateHook = func(id string) error {
		if id == "cust-b" {
			return fmt.Errorf("simulated store outage")
		}
		return nil
	}

	sum, err := testReconciler(mem, 10).Run(context.Background(), now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Reset != 2 || sum.Failed != 1 {
		t.Fatalf("expected 2 resets and 1 failure, got %+v", sum)
	}
}
