package alert

import (
	"context"
	"fmt"
	"sync"

	"github.com/couchcryptid/geohazard-service/internal/domain"
)

// Limits for history queries.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// Filter narrows Active and History queries. Zero values match everything.
type Filter struct {
	Type       string
	Severity   domain.Severity
	ActiveOnly bool
	Limit      int
}

// Normalize applies the default limit and validates the fields.
func (f Filter) Normalize() (Filter, error) {
	if f.Limit == 0 {
		f.Limit = DefaultHistoryLimit
	}
	if f.Limit < 1 || f.Limit > MaxHistoryLimit {
		return f, &domain.ValidationError{Field: "limit", Reason: fmt.Sprintf("must be between 1 and %d", MaxHistoryLimit)}
	}
	if f.Severity != "" && !domain.ValidSeverity(string(f.Severity)) {
		return f, &domain.ValidationError{Field: "severity", Reason: fmt.Sprintf("unknown severity %q", f.Severity)}
	}
	return f, nil
}

// Match reports whether a passes the type, severity and active filters.
func (f Filter) Match(a domain.Alert) bool {
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if f.Severity != "" && a.Severity != f.Severity {
		return false
	}
	if f.ActiveOnly && !a.IsActive {
		return false
	}
	return true
}

// History is the durable alert log.
type History interface {
	// Append stores a once per ID. It reports false when the ID was
	// already present.
	Append(ctx context.Context, a domain.Alert) (bool, error)
	// SetInactive clears IsActive on a stored alert.
	SetInactive(ctx context.Context, id string) error
	// List returns matching alerts, newest first.
	List(ctx context.Context, f Filter) ([]domain.Alert, error)
}

// MemoryHistory keeps the log in process, bounded to the newest maxEntries.
type MemoryHistory struct {
	mu         sync.Mutex
	order      []string // oldest first
	byID       map[string]*domain.Alert
	maxEntries int
}

// NewMemoryHistory returns an empty log. maxEntries <= 0 means unbounded.
func NewMemoryHistory(maxEntries int) *MemoryHistory {
	return &MemoryHistory{byID: make(map[string]*domain.Alert), maxEntries: maxEntries}
}

func (h *MemoryHistory) Append(_ context.Context, a domain.Alert) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.byID[a.ID]; ok {
		return false, nil
	}
	stored := a
	h.byID[a.ID] = &stored
	h.order = append(h.order, a.ID)
	if h.maxEntries > 0 && len(h.order) > h.maxEntries {
		delete(h.byID, h.order[0])
		h.order = h.order[1:]
	}
	return true, nil
}

func (h *MemoryHistory) SetInactive(_ context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	a, ok := h.byID[id]
	if !ok {
		return domain.ErrAlertNotFound
	}
	a.IsActive = false
	return nil
}

func (h *MemoryHistory) List(_ context.Context, f Filter) ([]domain.Alert, error) {
	f, err := f.Normalize()
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]domain.Alert, 0, min(f.Limit, len(h.order)))
	for i := len(h.order) - 1; i >= 0 && len(out) < f.Limit; i-- {
		a := h.byID[h.order[i]]
		if f.Match(*a) {
			out = append(out, *a)
		}
	}
	return out, nil
}
