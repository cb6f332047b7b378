// Package records keeps the list of documents a user uploaded for
// ingestion: past quotations and price lists.
package records

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind selects the record table.
type Kind string

const (
	KindQuotation Kind = "quotation"
	KindPriceList Kind = "price_list"
)

// ErrUnknownKind is returned for kinds other than the two above.
var ErrUnknownKind = errors.New("unknown record kind")

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindQuotation, KindPriceList:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Record links a user to an uploaded object path.
type Record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      Kind      `json:"kind"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists records.
type Store interface {
	Save(ctx context.Context, userID string, kind Kind, paths []string) ([]Record, error)
	// List returns the user's records of kind, newest first.
	List(ctx context.Context, userID string, kind Kind) ([]Record, error)
	// DeletePath removes every record pointing at path and reports how many
	// were removed.
	DeletePath(ctx context.Context, userID, path string) (int, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (m *MemoryStore) Save(_ context.Context, userID string, kind Kind, paths []string) ([]Record, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Record, 0, len(paths))
	for _, p := range paths {
		r := Record{ID: uuid.NewString(), UserID: userID, Kind: kind, Path: p, CreatedAt: m.now()}
		m.records = append(m.records, r)
		out = append(out, r)
	}
	return out, nil
}

func (m *MemoryStore) List(_ context.Context, userID string, kind Kind) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for i := len(m.records) - 1; i >= 0; i-- {
		r := m.records[i]
		if r.UserID == userID && r.Kind == kind {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) DeletePath(_ context.Context, userID, path string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	removed := 0
	for _, r := range m.records {
		if r.UserID == userID && r.Path == path {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return removed, nil
}
