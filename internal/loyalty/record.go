package loyalty

import "time"

// AttributeKey is the top-level key the loyalty document lives under in a
// customer's attribute map.
const AttributeKey = "loyalty"

// Record is the per-customer ledger state. Tier and DiscountPercent are
// derived from CurrentBalance; Encode recomputes them so no caller can
// persist a mismatched pair.
type Record struct {
	CurrentBalance       int64
	LifetimePoints       int64
	Tier                 Tier
	DiscountPercent      int
	CycleStart           time.Time
	PreviousCycleBalance int64
	PreviousCycleEnd     time.Time
	LastReset            time.Time
}

// NewRecord starts a fresh ledger with the accrual cycle opening at now.
func NewRecord(now time.Time) Record {
	tier, discount := TierOf(0)
	return Record{Tier: tier, DiscountPercent: discount, CycleStart: now.UTC()}
}

// Decode reads the loyalty document out of an attribute map. The second
// return is false when the customer carries no loyalty record at all.
func Decode(attrs map[string]any) (Record, bool) {
	doc, ok := attrs[AttributeKey].(map[string]any)
	if !ok {
		return Record{}, false
	}
	rec := Record{
		CurrentBalance:       asInt64(doc["current_balance"]),
		LifetimePoints:       asInt64(doc["lifetime_points"]),
		Tier:                 Tier(asString(doc["tier"])),
		DiscountPercent:      int(asInt64(doc["discount_percent"])),
		CycleStart:           asTime(doc["cycle_start_date"]),
		PreviousCycleBalance: asInt64(doc["previous_cycle_balance"]),
		PreviousCycleEnd:     asTime(doc["previous_cycle_end"]),
		LastReset:            asTime(doc["last_reset"]),
	}
	return rec, true
}

// Encode renders the record as the attribute document, recomputing the
// derived tier fields from the balance.
func (r Record) Encode() map[string]any {
	tier, discount := TierOf(r.CurrentBalance)
	doc := map[string]any{
		"current_balance":        r.CurrentBalance,
		"lifetime_points":        r.LifetimePoints,
		"tier":                   string(tier),
		"discount_percent":       discount,
		"previous_cycle_balance": r.PreviousCycleBalance,
	}
	if !r.CycleStart.IsZero() {
		doc["cycle_start_date"] = r.CycleStart.UTC().Format(time.RFC3339)
	}
	if !r.PreviousCycleEnd.IsZero() {
		doc["previous_cycle_end"] = r.PreviousCycleEnd.UTC().Format(time.RFC3339)
	}
	if !r.LastReset.IsZero() {
		doc["last_reset"] = r.LastReset.UTC().Format(time.RFC3339)
	}
	return doc
}

// Reset rolls the accrual cycle over at now, preserving lifetime points and
// moving the closing balance into the audit fields.
func (r Record) Reset(now time.Time) Record {
	tier, discount := TierOf(0)
	return Record{
		CurrentBalance:       0,
		LifetimePoints:       r.LifetimePoints,
		Tier:                 tier,
		DiscountPercent:      discount,
		CycleStart:           now.UTC(),
		PreviousCycleBalance: r.CurrentBalance,
		PreviousCycleEnd:     r.CycleStart,
		LastReset:            now.UTC(),
	}
}

// Award adds points to both balances and rederives the tier.
func (r Record) Award(points int64) Record {
	r.CurrentBalance += points
	r.LifetimePoints += points
	r.Tier, r.DiscountPercent = TierOf(r.CurrentBalance)
	return r
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
