// Package ledger holds the envelope budget state and enforces its accounting
// rules.
//
// A Ledger tracks a total budget split between named envelopes and an
// unallocated remainder. After every call the following holds:
//
//	available + sum(envelope budgets) == total
//
// and no balance is negative. Each mutating method validates its arguments
// and the relevant balances before touching any state, so a failed call
// leaves the ledger exactly as it was.
//
// All methods are safe for concurrent use. Mutations are serialized by a
// single lock covering both the check and the write; reads return copies
// taken under the same lock. Mutations also return the Balance they left
// behind, so callers never need a second read to report totals.
package ledger

import (
	"fmt"
	"slices"
	"sync"

	"envelopes/internal/core"
)

// Operation names carried by returned errors.
const (
	OpInitialize = "initialize budget"
	OpCreate     = "create envelope"
	OpModify     = "modify envelope"
	OpTransfer   = "transfer between envelopes"
	OpDelete     = "delete envelope"
	OpGet        = "get envelope"
)

// Ledger owns the budget and envelope state of one process (or one test).
type Ledger struct {
	mu        sync.RWMutex
	total     core.Money
	available core.Money
	envelopes []*core.Envelope
	nextID    core.EnvelopeID
}

// Balance is the total and available budget as left by one operation.
type Balance struct {
	Total     core.Money
	Available core.Money
}

// Snapshot is a consistent copy of the whole ledger.
type Snapshot struct {
	Total     core.Money
	Available core.Money
	Envelopes []core.Envelope
}

// New returns an empty ledger with a zero budget.
func New() *Ledger {
	return &Ledger{nextID: 1}
}

// Initialize sets both the total and the available budget to total.
//
// Envelopes that already exist are discarded so the conservation rule keeps
// holding; the id counter is not reset and ids of discarded envelopes are
// never handed out again.
func (l *Ledger) Initialize(total core.Money) error {
	if err := total.Validate(); err != nil {
		return core.NewError(core.KindInvalidBudget, OpInitialize,
			"budget must be a non-negative number")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.total = total
	l.available = total
	l.envelopes = nil
	return nil
}

// CreateEnvelope allocates amount from the available budget to a new envelope.
func (l *Ledger) CreateEnvelope(name string, amount core.Money) (core.Envelope, Balance, error) {
	name, err := core.NormalizeName(name)
	if err != nil {
		return core.Envelope{}, Balance{}, core.NewError(core.KindInvalidInput, OpCreate, err.Error())
	}
	if err := amount.Validate(); err != nil {
		return core.Envelope{}, Balance{}, core.NewError(core.KindInvalidInput, OpCreate,
			"budget must be a non-negative number")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if amount.Cents > l.available.Cents {
		return core.Envelope{}, Balance{}, core.NewError(core.KindInsufficientFunds, OpCreate,
			fmt.Sprintf("budget %s exceeds available budget %s", amount, l.available))
	}

	env := &core.Envelope{ID: l.nextID, Name: name, Budget: amount}
	l.nextID++
	l.available.Cents -= amount.Cents
	l.envelopes = append(l.envelopes, env)
	return *env, l.balance(), nil
}

// ModifyEnvelope renames an envelope and sets its budget.
//
// The envelope's current budget is returned to the pool before the new
// budget is checked, so an envelope can always be shrunk and can grow up to
// available + its current budget.
func (l *Ledger) ModifyEnvelope(id core.EnvelopeID, name string, budget core.Money) (core.Envelope, Balance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	env := l.find(id)
	if env == nil {
		return core.Envelope{}, Balance{}, notFound(OpModify, id)
	}
	name, err := core.NormalizeName(name)
	if err != nil {
		return core.Envelope{}, Balance{}, core.NewError(core.KindInvalidInput, OpModify, err.Error())
	}
	if err := budget.Validate(); err != nil {
		return core.Envelope{}, Balance{}, core.NewError(core.KindInvalidInput, OpModify,
			"budget must be a non-negative number")
	}

	pool := l.available.Cents + env.Budget.Cents
	if budget.Cents > pool {
		return core.Envelope{}, Balance{}, core.NewError(core.KindInsufficientFunds, OpModify,
			fmt.Sprintf("budget %s exceeds available budget %s", budget, core.Money{Cents: pool}))
	}

	l.available.Cents = pool - budget.Cents
	env.Name = name
	env.Budget = budget
	return *env, l.balance(), nil
}

// Transfer moves amount from one envelope to another. The available budget is
// not touched. Transferring to the same envelope is validated like any other
// transfer and then changes nothing.
func (l *Ledger) Transfer(fromID, toID core.EnvelopeID, amount core.Money) (from, to core.Envelope, bal Balance, err error) {
	if err := amount.Validate(); err != nil || !amount.IsPositive() {
		return core.Envelope{}, core.Envelope{}, Balance{}, core.NewError(core.KindInvalidInput, OpTransfer,
			"transfer amount must be a positive number")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	src := l.find(fromID)
	if src == nil {
		return core.Envelope{}, core.Envelope{}, Balance{}, core.NewError(core.KindNotFound, OpTransfer,
			fmt.Sprintf("source envelope %d not found", fromID))
	}
	dst := l.find(toID)
	if dst == nil {
		return core.Envelope{}, core.Envelope{}, Balance{}, core.NewError(core.KindNotFound, OpTransfer,
			fmt.Sprintf("target envelope %d not found", toID))
	}
	if src.Budget.Cents < amount.Cents {
		return core.Envelope{}, core.Envelope{}, Balance{}, core.NewError(core.KindInsufficientFunds, OpTransfer,
			fmt.Sprintf("envelope %d holds %s, cannot move %s", fromID, src.Budget, amount))
	}

	if src != dst {
		src.Budget.Cents -= amount.Cents
		dst.Budget.Cents += amount.Cents
	}
	return *src, *dst, l.balance(), nil
}

// DeleteEnvelope removes an envelope and returns its budget to the available
// pool. The removed envelope is returned as it was just before removal.
func (l *Ledger) DeleteEnvelope(id core.EnvelopeID) (core.Envelope, Balance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.index(id)
	if idx < 0 {
		return core.Envelope{}, Balance{}, notFound(OpDelete, id)
	}
	env := l.envelopes[idx]
	l.available.Cents += env.Budget.Cents
	l.envelopes = slices.Delete(l.envelopes, idx, idx+1)
	return *env, l.balance(), nil
}

// Envelopes returns the envelopes in creation order.
func (l *Ledger) Envelopes() []core.Envelope {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.copyEnvelopes()
}

// Envelope returns a single envelope by id.
func (l *Ledger) Envelope(id core.EnvelopeID) (core.Envelope, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	env := l.find(id)
	if env == nil {
		return core.Envelope{}, notFound(OpGet, id)
	}
	return *env, nil
}

func (l *Ledger) AvailableBudget() core.Money {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.available
}

func (l *Ledger) TotalBudget() core.Money {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total
}

// Snapshot reads totals and envelopes under one lock.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Snapshot{
		Total:     l.total,
		Available: l.available,
		Envelopes: l.copyEnvelopes(),
	}
}

func (l *Ledger) balance() Balance {
	return Balance{Total: l.total, Available: l.available}
}

func (l *Ledger) copyEnvelopes() []core.Envelope {
	out := make([]core.Envelope, len(l.envelopes))
	for i, env := range l.envelopes {
		out[i] = *env
	}
	return out
}

func (l *Ledger) find(id core.EnvelopeID) *core.Envelope {
	if idx := l.index(id); idx >= 0 {
		return l.envelopes[idx]
	}
	return nil
}

func (l *Ledger) index(id core.EnvelopeID) int {
	return slices.IndexFunc(l.envelopes, func(e *core.Envelope) bool { return e.ID == id })
}

func notFound(op string, id core.EnvelopeID) error {
	return core.NewError(core.KindNotFound, op, fmt.Sprintf("envelope %d not found", id))
}
