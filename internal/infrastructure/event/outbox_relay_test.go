package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockOutboxRepo struct {
	mock.Mock
}

func (m *mockOutboxRepo) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	return m.Called(ctx, entries).Error(0)
}

func (m *mockOutboxRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]*shared.OutboxEntry, error) {
	args := m.Called(ctx, now, limit)
	entries, _ := args.Get(0).([]*shared.OutboxEntry)
	return entries, args.Error(1)
}

func (m *mockOutboxRepo) Claim(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	args := m.Called(ctx, ids)
	entries, _ := args.Get(0).([]*shared.OutboxEntry)
	return entries, args.Error(1)
}

func (m *mockOutboxRepo) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *mockOutboxRepo) FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	args := m.Called(ctx, id)
	entry, _ := args.Get(0).(*shared.OutboxEntry)
	return entry, args.Error(1)
}

func (m *mockOutboxRepo) FindDead(ctx context.Context, filter shared.Filter) ([]*shared.OutboxEntry, int64, error) {
	args := m.Called(ctx, filter)
	entries, _ := args.Get(0).([]*shared.OutboxEntry)
	return entries, args.Get(1).(int64), args.Error(2)
}

func (m *mockOutboxRepo) DeleteSentBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockOutboxRepo) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	args := m.Called(ctx)
	counts, _ := args.Get(0).(map[shared.OutboxStatus]int64)
	return counts, args.Error(1)
}

func newRelayFixture(t *testing.T) (*OutboxRelay, *mockOutboxRepo, *InMemoryEventBus, *EventSerializer) {
	t.Helper()
	repo := new(mockOutboxRepo)
	bus := NewInMemoryEventBus(zap.NewNop())
	s := NewEventSerializer()
	s.Register("test.happened", &testEvent{})
	relay := NewOutboxRelay(repo, bus, s, DefaultOutboxRelayConfig(), zap.NewNop())
	return relay, repo, bus, s
}

func outboxEntryFor(t *testing.T, s *EventSerializer, ev shared.DomainEvent) *shared.OutboxEntry {
	t.Helper()
	payload, err := s.Serialize(ev)
	require.NoError(t, err)
	e := shared.NewOutboxEntry(ev, payload)
	return e
}

func TestOutboxRelay_RelayOnce_Delivers(t *testing.T) {
	relay, repo, bus, s := newRelayFixture(t)
	h := &recordingHandler{}
	bus.Subscribe(h)

	ev := newTestEvent("test.happened")
	entry := outboxEntryFor(t, s, ev)

	repo.On("FindDue", mock.Anything, mock.Anything, 100).Return([]*shared.OutboxEntry{entry}, nil)
	repo.On("Claim", mock.Anything, []uuid.UUID{entry.ID}).Return([]*shared.OutboxEntry{entry}, nil)
	repo.On("Update", mock.Anything, entry).Return(nil)

	sent := relay.RelayOnce(context.Background())

	assert.Equal(t, 1, sent)
	assert.Equal(t, shared.OutboxStatusSent, entry.Status)
	require.Equal(t, 1, h.count())
	assert.Equal(t, ev.EventID(), h.handled[0].EventID())
	repo.AssertExpectations(t)
}

func TestOutboxRelay_RelayOnce_HandlerFailureSchedulesRetry(t *testing.T) {
	relay, repo, bus, s := newRelayFixture(t)
	bus.Subscribe(&recordingHandler{err: errors.New("mailer down")})

	entry := outboxEntryFor(t, s, newTestEvent("test.happened"))
	repo.On("FindDue", mock.Anything, mock.Anything, 100).Return([]*shared.OutboxEntry{entry}, nil)
	repo.On("Claim", mock.Anything, mock.Anything).Return([]*shared.OutboxEntry{entry}, nil)
	repo.On("Update", mock.Anything, entry).Return(nil)

	sent := relay.RelayOnce(context.Background())

	assert.Zero(t, sent)
	assert.Equal(t, shared.OutboxStatusFailed, entry.Status)
	assert.Equal(t, 1, entry.Attempts)
	assert.Equal(t, "mailer down", entry.LastError)
	assert.NotNil(t, entry.NextAttemptAt)
}

func TestOutboxRelay_RelayOnce_UnknownTypeEventuallyDies(t *testing.T) {
	relay, repo, _, s := newRelayFixture(t)
	entry := outboxEntryFor(t, s, newTestEvent("never.registered"))
	entry.Attempts = entry.MaxAttempts - 1

	repo.On("FindDue", mock.Anything, mock.Anything, 100).Return([]*shared.OutboxEntry{entry}, nil)
	repo.On("Claim", mock.Anything, mock.Anything).Return([]*shared.OutboxEntry{entry}, nil)
	repo.On("Update", mock.Anything, entry).Return(nil)

	relay.RelayOnce(context.Background())

	assert.True(t, entry.IsDead())
}

func TestOutboxRelay_RelayOnce_NothingDue(t *testing.T) {
	relay, repo, _, _ := newRelayFixture(t)
	repo.On("FindDue", mock.Anything, mock.Anything, 100).Return(nil, nil)

	assert.Zero(t, relay.RelayOnce(context.Background()))
	repo.AssertNotCalled(t, "Claim", mock.Anything, mock.Anything)
}

func TestOutboxRelay_RelayOnce_LoadError(t *testing.T) {
	relay, repo, _, _ := newRelayFixture(t)
	repo.On("FindDue", mock.Anything, mock.Anything, 100).Return(nil, errors.New("db down"))

	assert.Zero(t, relay.RelayOnce(context.Background()))
}

func TestOutboxRelay_StartStop(t *testing.T) {
	repo := new(mockOutboxRepo)
	repo.On("FindDue", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil).Maybe()
	repo.On("DeleteSentBefore", mock.Anything, mock.Anything).Return(int64(0), nil).Maybe()

	cfg := OutboxRelayConfig{BatchSize: 10, PollInterval: 5 * time.Millisecond, Retention: time.Hour, CleanupInterval: 5 * time.Millisecond}
	relay := NewOutboxRelay(repo, NewInMemoryEventBus(zap.NewNop()), NewEventSerializer(), cfg, zap.NewNop())

	require.NoError(t, relay.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, relay.Stop(ctx))
}
