package loyalty

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"petal/internal/store"
)

type ReconcilerConfig struct {
	CycleDays      int
	PageSize       int
	MaxPagesPerRun int
	StoreTimeout   time.Duration
}

// Reconciler rolls over expired accrual cycles across the whole customer set,
// one page at a time. Because a reset moves cycle_start_date to now, a rerun
// inside the same period finds nothing eligible, so the job needs no external
// already-ran marker.
type Reconciler struct {
	store store.Store
	log   *slog.Logger
	cfg   ReconcilerConfig
}

func NewReconciler(st store.Store, logger *slog.Logger, cfg ReconcilerConfig) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: st, log: logger, cfg: cfg}
}

type RunSummary struct {
	Scanned int `json:"scanned"`
	Reset   int `json:"reset"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Run scans every customer page-wise and resets each expired cycle. Single
// record failures are logged and skipped; the next scheduled run retries them
// if still eligible. The total count is snapshotted from the first page so
// writes during the run cannot extend or shrink the scan.
func (r *Reconciler) Run(ctx context.Context, now time.Time) (RunSummary, error) {
	var sum RunSummary
	var snapshot int64 = -1

	offset := 0
	for page := 0; page < r.cfg.MaxPagesPerRun; page++ {
		records, total, err := r.listPage(ctx, offset)
		if err != nil {
			return sum, fmt.Errorf("list page at offset %d: %w", offset, err)
		}
		if snapshot < 0 {
			snapshot = total
		}
		if len(records) == 0 {
			break
		}
		// Hold the scan to the snapshot: customers created mid-run extend
		// the tail pages and belong to the next scheduled run.
		if remaining := snapshot - int64(offset); remaining < int64(len(records)) {
			if remaining <= 0 {
				break
			}
			records = records[:remaining]
		}

		for _, rec := range records {
			sum.Scanned++
			switch r.reconcileOne(ctx, rec, now) {
			case outcomeReset:
				sum.Reset++
			case outcomeSkipped:
				sum.Skipped++
			case outcomeFailed:
				sum.Failed++
			}
		}

		offset += len(records)
		if int64(offset) >= snapshot {
			break
		}
	}

	r.log.Info("cycle reconciliation complete",
		"scanned", sum.Scanned, "reset", sum.Reset,
		"skipped", sum.Skipped, "failed", sum.Failed)
	return sum, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeReset
	outcomeFailed
)

func (r *Reconciler) reconcileOne(ctx context.Context, rec store.Record, now time.Time) outcome {
	led, ok := Decode(rec.Attributes)
	if !ok {
		return outcomeSkipped
	}
	// A ledger without a cycle start has never accrued; the first award
	// opens its cycle.
	if led.CycleStart.IsZero() {
		return outcomeSkipped
	}
	elapsedDays := int(now.Sub(led.CycleStart).Hours() / 24)
	if elapsedDays < r.cfg.CycleDays {
		return outcomeSkipped
	}

	patch := map[string]any{AttributeKey: led.Reset(now).Encode()}
	if err := r.updateAttributes(ctx, rec.ExternalID, rec.Version, patch); err != nil {
		r.log.Error("cycle reset failed", "customer", rec.ExternalID, "err", err)
		return outcomeFailed
	}
	r.log.Info("cycle reset", "customer", rec.ExternalID,
		"previous_balance", led.CurrentBalance, "elapsed_days", elapsedDays)
	return outcomeReset
}

func (r *Reconciler) listPage(ctx context.Context, offset int) ([]store.Record, int64, error) {
	ctx, cancel := r.storeCtx(ctx)
	defer cancel()
	return r.store.ListPage(ctx, offset, r.cfg.PageSize)
}

func (r *Reconciler) updateAttributes(ctx context.Context, id string, version int64, patch map[string]any) error {
	ctx, cancel := r.storeCtx(ctx)
	defer cancel()
	return r.store.UpdateAttributes(ctx, id, version, patch)
}

func (r *Reconciler) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.cfg.StoreTimeout)
}
