package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envelopes/internal/amqp"
	"envelopes/internal/core"
	"envelopes/internal/ledger"
	applog "envelopes/internal/log"
	"envelopes/internal/metrics"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEventMessage
	err    error
	closed bool
}

func (p *recordingPublisher) PublishLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, msg)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func units(n int64) core.Money { return core.Money{Cents: n * 100} }

func newService(t *testing.T, pub EventPublisher) *BudgetService {
	t.Helper()
	return NewBudgetService(ledger.New(), pub, metrics.New())
}

func TestBudgetService_PublishesOnSuccess(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	s := newService(t, pub)

	_, err := s.InitializeBudget(ctx, units(1000))
	require.NoError(t, err)
	groceries, _, err := s.CreateEnvelope(ctx, "Groceries", units(300))
	require.NoError(t, err)
	rent, _, err := s.CreateEnvelope(ctx, "Rent", units(500))
	require.NoError(t, err)
	_, _, bal, err := s.Transfer(ctx, groceries.ID, rent.ID, units(50))
	require.NoError(t, err)
	assert.Equal(t, ledger.Balance{Total: units(1000), Available: units(200)}, bal)
	_, _, err = s.ModifyEnvelope(ctx, groceries.ID, "Food", units(200))
	require.NoError(t, err)
	_, _, err = s.DeleteEnvelope(ctx, rent.ID)
	require.NoError(t, err)

	assert.Equal(t, []amqp.EventType{
		amqp.EventBudgetInitialized,
		amqp.EventEnvelopeCreated,
		amqp.EventEnvelopeCreated,
		amqp.EventEnvelopeTransferred,
		amqp.EventEnvelopeUpdated,
		amqp.EventEnvelopeDeleted,
	}, pub.types())

	transfer := pub.events[3]
	assert.Equal(t, uint64(groceries.ID), transfer.FromEnvelopeID)
	assert.Equal(t, uint64(rent.ID), transfer.ToEnvelopeID)
	assert.Equal(t, int64(5000), transfer.AmountCents)
	assert.Equal(t, bal.Total.Cents, transfer.TotalCents)
	assert.Equal(t, bal.Available.Cents, transfer.AvailableCents)

	deleted := pub.events[5]
	assert.Equal(t, uint64(rent.ID), deleted.EnvelopeID)
	assert.Equal(t, "Rent", deleted.EnvelopeName)
	assert.Equal(t, int64(55000), deleted.AmountCents)
	assert.Equal(t, int64(80000), deleted.AvailableCents)
}

func TestBudgetService_NoEventOnFailure(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	s := newService(t, pub)

	_, _, err := s.CreateEnvelope(ctx, "Groceries", units(1))
	assert.ErrorIs(t, err, core.ErrInsufficientFunds)

	_, _, err = s.DeleteEnvelope(ctx, 42)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, _, _, err = s.Transfer(ctx, 1, 2, core.Money{})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = s.InitializeBudget(ctx, core.Money{Cents: -1})
	assert.ErrorIs(t, err, core.ErrInvalidBudget)

	assert.Empty(t, pub.types())
}

func TestBudgetService_PublishFailureDoesNotFailOperation(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{err: errors.New("circuit breaker is open")}
	s := newService(t, pub)

	_, err := s.InitializeBudget(ctx, units(100))
	require.NoError(t, err)
	env, _, err := s.CreateEnvelope(ctx, "Fun", units(40))
	require.NoError(t, err)

	assert.Equal(t, units(60), s.AvailableBudget(ctx))
	got, err := s.Envelope(ctx, env.ID)
	require.NoError(t, err)
	assert.Equal(t, env, got)
	assert.Len(t, pub.types(), 2)
}

func TestBudgetService_NilPublisher(t *testing.T) {
	ctx := context.Background()
	s := NewBudgetService(ledger.New(), nil, nil)

	_, err := s.InitializeBudget(ctx, units(10))
	require.NoError(t, err)
	_, _, err = s.CreateEnvelope(ctx, "A", units(10))
	require.NoError(t, err)

	status := s.Status(ctx)
	assert.Equal(t, units(10), status.Total)
	assert.Equal(t, core.Money{}, status.Available)
	assert.Len(t, s.Envelopes(ctx), 1)
	assert.NoError(t, s.Close())
}

func TestBudgetService_LedgerStats(t *testing.T) {
	ctx := context.Background()
	s := newService(t, nil)

	_, err := s.InitializeBudget(ctx, units(50))
	require.NoError(t, err)
	_, _, err = s.CreateEnvelope(ctx, "A", units(20))
	require.NoError(t, err)

	var stats metrics.LedgerStats = s
	assert.Equal(t, int64(5000), stats.TotalCents())
	assert.Equal(t, int64(3000), stats.AvailableCents())
	assert.Equal(t, 1, stats.EnvelopeCount())
}

func TestBudgetService_Close(t *testing.T) {
	pub := &recordingPublisher{}
	s := newService(t, pub)

	require.NoError(t, s.Close())
	assert.True(t, pub.closed)
}

func TestBudgetService_LogsUnderLedgerComponent(t *testing.T) {
	var buf bytes.Buffer
	reqLogger := applog.New(applog.Config{Level: slog.LevelDebug, Format: "json", Component: applog.ComponentHTTP, Output: &buf}).
		With(applog.FieldRequestID, "req-9")
	ctx := applog.NewContext(context.Background(), reqLogger)
	s := newService(t, nil)

	_, err := s.InitializeBudget(ctx, units(10))
	require.NoError(t, err)
	env, _, err := s.CreateEnvelope(ctx, "A", units(4))
	require.NoError(t, err)
	_, err = s.Envelope(ctx, env.ID)
	require.NoError(t, err)
	s.Envelopes(ctx)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	var ops []string
	for _, line := range lines {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		assert.Equal(t, applog.ComponentLedger, entry[applog.FieldComponent])
		assert.Equal(t, "req-9", entry[applog.FieldRequestID])
		ops = append(ops, entry[applog.FieldOperation].(string))
	}
	assert.Equal(t, []string{applog.OpInitialize, applog.OpCreate, applog.OpRead, applog.OpList}, ops)
}
