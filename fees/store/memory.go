// Package store provides in-memory Store implementations for tests and dev.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/campus/school-engine/calendar"
	"github.com/campus/school-engine/fees"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements fees.Store and fees.EventStore with maps and a RWMutex.
// All reads return copies so callers can mutate freely.
type Memory struct {
	mu sync.RWMutex

	accounts     map[string]fees.Account // by account ID
	byStudent    map[string]string       // student ID -> account ID
	installments map[string][]fees.Installment
	particulars  map[string][]fees.Particular
	payments     map[string][]fees.Payment
	links        []fees.PaymentLink
	receipts     map[string]bool
	rules        map[string]fees.DiscountRule

	events  map[string]calendar.Event
	deleted map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		accounts:     make(map[string]fees.Account),
		byStudent:    make(map[string]string),
		installments: make(map[string][]fees.Installment),
		particulars:  make(map[string][]fees.Particular),
		payments:     make(map[string][]fees.Payment),
		receipts:     make(map[string]bool),
		rules:        make(map[string]fees.DiscountRule),
		events:       make(map[string]calendar.Event),
		deleted:      make(map[string]bool),
	}
}

// =============================================================================
// FEE STORE
// =============================================================================

func (m *Memory) CreateAccount(_ context.Context, account fees.Account, particulars []fees.Particular, installments []fees.Installment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.accounts[account.ID] = account
	m.byStudent[account.StudentID] = account.ID
	m.particulars[account.ID] = copyParticulars(particulars)
	m.installments[account.ID] = copyInstallments(installments)
	return nil
}

func (m *Memory) AccountByStudent(_ context.Context, studentID string) (fees.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byStudent[studentID]
	if !ok {
		return fees.Account{}, fees.ErrAccountNotFound
	}
	return m.accounts[id], nil
}

func (m *Memory) Installments(_ context.Context, accountID string) ([]fees.Installment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := copyInstallments(m.installments[accountID])
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *Memory) Particulars(_ context.Context, accountID string) ([]fees.Particular, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyParticulars(m.particulars[accountID]), nil
}

func (m *Memory) Payments(_ context.Context, accountID string) ([]fees.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]fees.Payment, len(m.payments[accountID]))
	copy(out, m.payments[accountID])
	sort.Slice(out, func(i, j int) bool { return out[i].PaidAt.After(out[j].PaidAt) })
	return out, nil
}

func (m *Memory) ApplyPayment(_ context.Context, rec fees.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.receipts[rec.Payment.ReceiptNumber] {
		return fees.ErrDuplicateReceipt
	}

	accountID := rec.Account.ID
	m.accounts[accountID] = rec.Account
	m.payments[accountID] = append(m.payments[accountID], rec.Payment)
	m.links = append(m.links, rec.Links...)
	m.receipts[rec.Payment.ReceiptNumber] = true

	updatedInst := make(map[string]fees.Installment, len(rec.Installments))
	for _, inst := range rec.Installments {
		updatedInst[inst.ID] = inst
	}
	stored := m.installments[accountID]
	for i, inst := range stored {
		if u, ok := updatedInst[inst.ID]; ok {
			stored[i] = u
		}
	}

	updatedPart := make(map[string]fees.Particular, len(rec.Particulars))
	for _, p := range rec.Particulars {
		updatedPart[p.ID] = p
	}
	parts := m.particulars[accountID]
	for i, p := range parts {
		if u, ok := updatedPart[p.ID]; ok {
			parts[i] = u
		}
	}
	return nil
}

func (m *Memory) DiscountRules(_ context.Context) ([]fees.DiscountRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]fees.DiscountRule, 0, len(m.rules))
	for _, r := range m.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveDiscountRule(_ context.Context, rule fees.DiscountRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[rule.ID] = rule
	return nil
}

// =============================================================================
// EVENT STORE
// =============================================================================

func (m *Memory) CreateEvent(_ context.Context, e calendar.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// A soft-deleted ID still occupies its row, same as the SQLite
	// primary key.
	if _, ok := m.events[e.ID]; ok {
		return fmt.Errorf("event %s already exists", e.ID)
	}
	m.events[e.ID] = e
	return nil
}

func (m *Memory) Event(_ context.Context, id string) (calendar.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.events[id]
	if !ok || m.deleted[id] {
		return calendar.Event{}, fees.ErrEventNotFound
	}
	return e, nil
}

func (m *Memory) EventsInRange(_ context.Context, from, to calendar.Date) ([]calendar.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []calendar.Event
	for id, e := range m.events {
		if m.deleted[id] {
			continue
		}
		end := e.End
		if end.IsZero() || end.Before(e.Start) {
			end = e.Start
		}
		if end.AfterOrEqual(from) && e.Start.BeforeOrEqual(to) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) UpdateEvent(_ context.Context, e calendar.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[e.ID]; !ok || m.deleted[e.ID] {
		return fees.ErrEventNotFound
	}
	m.events[e.ID] = e
	return nil
}

func (m *Memory) DeleteEvent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[id]; !ok || m.deleted[id] {
		return fees.ErrEventNotFound
	}
	m.deleted[id] = true
	return nil
}

// =============================================================================
// COPY HELPERS
// =============================================================================

func copyInstallments(src []fees.Installment) []fees.Installment {
	out := make([]fees.Installment, len(src))
	for i, inst := range src {
		shares := make([]fees.ParticularShare, len(inst.Shares))
		copy(shares, inst.Shares)
		inst.Shares = shares
		out[i] = inst
	}
	return out
}

func copyParticulars(src []fees.Particular) []fees.Particular {
	out := make([]fees.Particular, len(src))
	copy(out, src)
	return out
}
