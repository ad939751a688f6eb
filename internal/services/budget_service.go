package services

import (
	"context"
	"fmt"
	"io"

	"envelopes/internal/amqp"
	"envelopes/internal/core"
	"envelopes/internal/ledger"
	applog "envelopes/internal/log"
	"envelopes/internal/metrics"
)

// EventPublisher delivers ledger events to the outside world.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error
}

// BudgetService orchestrates ledger operations and event publishing.
//
// The ledger is always updated first. Publishing is best-effort: a failed
// publish is logged and counted but never fails the operation.
type BudgetService struct {
	ledger    *ledger.Ledger
	publisher EventPublisher
	metrics   *metrics.Metrics
}

// NewBudgetService wires a service around l. publisher and m may be nil.
func NewBudgetService(l *ledger.Ledger, publisher EventPublisher, m *metrics.Metrics) *BudgetService {
	return &BudgetService{
		ledger:    l,
		publisher: publisher,
		metrics:   m,
	}
}

// InitializeBudget resets the ledger to a new total budget. The returned
// balance has total in both fields.
func (s *BudgetService) InitializeBudget(ctx context.Context, total core.Money) (ledger.Balance, error) {
	if err := s.ledger.Initialize(total); err != nil {
		return ledger.Balance{}, err
	}

	bal := ledger.Balance{Total: total, Available: total}
	s.log(ctx).InfoContext(ctx, "Budget initialized",
		applog.NewFields().
			WithOperation(applog.OpInitialize).
			WithBudget(bal.Total.Cents, bal.Available.Cents).
			ToSlice()...)

	s.publish(ctx, s.event(amqp.EventBudgetInitialized, bal))
	return bal, nil
}

func (s *BudgetService) CreateEnvelope(ctx context.Context, name string, amount core.Money) (core.Envelope, ledger.Balance, error) {
	env, bal, err := s.ledger.CreateEnvelope(name, amount)
	if err != nil {
		return core.Envelope{}, ledger.Balance{}, err
	}

	s.logEnvelope(ctx, "Envelope created", applog.OpCreate, env)

	msg := s.event(amqp.EventEnvelopeCreated, bal)
	msg.EnvelopeID = uint64(env.ID)
	msg.EnvelopeName = env.Name
	msg.AmountCents = env.Budget.Cents
	s.publish(ctx, msg)

	return env, bal, nil
}

func (s *BudgetService) ModifyEnvelope(ctx context.Context, id core.EnvelopeID, name string, budget core.Money) (core.Envelope, ledger.Balance, error) {
	env, bal, err := s.ledger.ModifyEnvelope(id, name, budget)
	if err != nil {
		return core.Envelope{}, ledger.Balance{}, err
	}

	s.logEnvelope(ctx, "Envelope updated", applog.OpUpdate, env)

	msg := s.event(amqp.EventEnvelopeUpdated, bal)
	msg.EnvelopeID = uint64(env.ID)
	msg.EnvelopeName = env.Name
	msg.AmountCents = env.Budget.Cents
	s.publish(ctx, msg)

	return env, bal, nil
}

// Transfer moves amount between two envelopes and returns both as they are
// after the move, along with the balance the move left.
func (s *BudgetService) Transfer(ctx context.Context, fromID, toID core.EnvelopeID, amount core.Money) (core.Envelope, core.Envelope, ledger.Balance, error) {
	from, to, bal, err := s.ledger.Transfer(fromID, toID, amount)
	if err != nil {
		return core.Envelope{}, core.Envelope{}, ledger.Balance{}, err
	}

	s.log(ctx).InfoContext(ctx, "Budget transferred",
		applog.FieldOperation, applog.OpTransfer,
		applog.FieldFromEnvelopeID, uint64(from.ID),
		applog.FieldToEnvelopeID, uint64(to.ID),
		applog.FieldAmountCents, amount.Cents)

	msg := s.event(amqp.EventEnvelopeTransferred, bal)
	msg.FromEnvelopeID = uint64(from.ID)
	msg.ToEnvelopeID = uint64(to.ID)
	msg.AmountCents = amount.Cents
	s.publish(ctx, msg)

	return from, to, bal, nil
}

// DeleteEnvelope removes an envelope and returns it as it was before removal.
func (s *BudgetService) DeleteEnvelope(ctx context.Context, id core.EnvelopeID) (core.Envelope, ledger.Balance, error) {
	env, bal, err := s.ledger.DeleteEnvelope(id)
	if err != nil {
		return core.Envelope{}, ledger.Balance{}, err
	}

	s.logEnvelope(ctx, "Envelope deleted", applog.OpDelete, env)

	msg := s.event(amqp.EventEnvelopeDeleted, bal)
	msg.EnvelopeID = uint64(env.ID)
	msg.EnvelopeName = env.Name
	msg.AmountCents = env.Budget.Cents
	s.publish(ctx, msg)

	return env, bal, nil
}

func (s *BudgetService) Envelopes(ctx context.Context) []core.Envelope {
	envelopes := s.ledger.Envelopes()
	s.log(ctx).DebugContext(ctx, "Envelopes listed",
		applog.FieldOperation, applog.OpList,
		"count", len(envelopes))
	return envelopes
}

func (s *BudgetService) Envelope(ctx context.Context, id core.EnvelopeID) (core.Envelope, error) {
	env, err := s.ledger.Envelope(id)
	if err != nil {
		return core.Envelope{}, err
	}
	s.log(ctx).DebugContext(ctx, "Envelope read",
		applog.NewFields().
			WithOperation(applog.OpRead).
			WithEnvelope(uint64(env.ID), env.Name, env.Budget.Cents).
			ToSlice()...)
	return env, nil
}

func (s *BudgetService) AvailableBudget(ctx context.Context) core.Money {
	return s.ledger.AvailableBudget()
}

// Status returns totals and envelopes read under a single lock.
func (s *BudgetService) Status(ctx context.Context) ledger.Snapshot {
	return s.ledger.Snapshot()
}

// TotalCents, AvailableCents and EnvelopeCount feed the ledger gauges.
func (s *BudgetService) TotalCents() int64     { return s.ledger.TotalBudget().Cents }
func (s *BudgetService) AvailableCents() int64 { return s.ledger.AvailableBudget().Cents }
func (s *BudgetService) EnvelopeCount() int    { return len(s.ledger.Envelopes()) }

func (s *BudgetService) event(eventType amqp.EventType, bal ledger.Balance) *amqp.LedgerEventMessage {
	msg := amqp.NewLedgerEventMessage(eventType)
	msg.TotalCents = bal.Total.Cents
	msg.AvailableCents = bal.Available.Cents
	return msg
}

func (s *BudgetService) publish(ctx context.Context, msg *amqp.LedgerEventMessage) {
	if s.publisher == nil {
		s.metrics.EventPublished(string(msg.Type), metrics.ResultSkipped)
		return
	}

	if err := s.publisher.PublishLedgerEvent(ctx, msg); err != nil {
		s.metrics.EventPublished(string(msg.Type), metrics.ResultFailed)
		s.log(ctx).WarnContext(ctx, "Failed to publish ledger event",
			applog.FieldEventType, string(msg.Type),
			applog.FieldOperation, applog.OpPublish,
			applog.FieldError, err.Error())
		// Don't fail the request - the ledger is already updated
		return
	}
	s.metrics.EventPublished(string(msg.Type), metrics.ResultPublished)
}

func (s *BudgetService) logEnvelope(ctx context.Context, msg, op string, env core.Envelope) {
	s.log(ctx).InfoContext(ctx, msg,
		applog.NewFields().
			WithOperation(op).
			WithEnvelope(uint64(env.ID), env.Name, env.Budget.Cents).
			ToSlice()...)
}

// log tags the request logger with the ledger component, keeping the request id.
func (s *BudgetService) log(ctx context.Context) *applog.Logger {
	return applog.FromContext(ctx).WithComponent(applog.ComponentLedger)
}

// Close closes the publisher when it holds a connection.
func (s *BudgetService) Close() error {
	if closer, ok := s.publisher.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("close publisher: %w", err)
		}
	}
	return nil
}
