package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// Memory is an in-process Store used by tests and local development. Records
// round-trip through JSON on the way in and out so attribute values carry the
// same types (float64 numbers, string timestamps) a jsonb-backed store yields.
type Memory struct {
	mu      sync.Mutex
	records map[string]Record

	// UpdateHook, when set, runs before each UpdateAttributes and may return
	// an error to simulate a store failure for that record.
	UpdateHook func(externalID string) error
}

func NewMemory() *Memory {
	return &Memory{records: map[string]Record{}}
}

func (m *Memory) Seed(externalID string, attributes map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[externalID] = Record{
		ExternalID: externalID,
		Version:    1,
		Attributes: jsonClone(attributes),
	}
}

func (m *Memory) ListPage(ctx context.Context, offset, limit int) ([]Record, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	total := int64(len(ids))
	if offset >= len(ids) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}
	out := make([]Record, 0, end-offset)
	for _, id := range ids[offset:end] {
		out = append(out, cloneRecord(m.records[id]))
	}
	return out, total, nil
}

func (m *Memory) FindByExternalID(ctx context.Context, externalID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[externalID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (m *Memory) UpdateAttributes(ctx context.Context, externalID string, version int64, patch map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.UpdateHook != nil {
		if err := m.UpdateHook(externalID); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[externalID]
	if !ok {
		return ErrNotFound
	}
	if rec.Version != version {
		return ErrVersionConflict
	}
	for k, v := range jsonClone(patch) {
		rec.Attributes[k] = v
	}
	rec.Version++
	m.records[externalID] = rec
	return nil
}

func cloneRecord(rec Record) Record {
	return Record{
		ExternalID: rec.ExternalID,
		Version:    rec.Version,
		Attributes: jsonClone(rec.Attributes),
	}
}

func jsonClone(in map[string]any) map[string]any {
	if in == nil {
		return map[string]any{}
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}
