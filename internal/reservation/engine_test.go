package reservation

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/floorplan-seating/internal/adapters/memory"
	"github.com/robertarktes/floorplan-seating/internal/domain"
	"github.com/robertarktes/floorplan-seating/internal/observability"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAuditor struct {
	mu     sync.Mutex
	events []domain.SeatEvent
}

func (a *recordingAuditor) LogSeatEvent(_ context.Context, ev domain.SeatEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
	return nil
}

type fixture struct {
	ctx     context.Context
	store   *memory.Store
	engine  *Engine
	auditor *recordingAuditor
	event   uuid.UUID
	seats   []domain.Seat
	clock   time.Time
}

func newFixture(t *testing.T, n int) *fixture {
	t.Helper()
	f := &fixture{
		ctx:     context.Background(),
		store:   memory.NewStore(),
		auditor: &recordingAuditor{},
		event:   uuid.New(),
		clock:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	seats := make([]domain.Seat, 0, n)
	for i := 1; i <= n; i++ {
		number := strconv.Itoa(i)
		seats = append(seats, domain.Seat{
			ID:         domain.SeatID(f.event, "General", "A", number),
			EventID:    f.event,
			Section:    "General",
			RowLabel:   "A",
			SeatNumber: number,
			SeatType:   "STANDARD",
			BasePrice:  decimal.NewFromInt(150),
			Status:     domain.SeatAvailable,
		})
	}
	require.NoError(t, f.store.ReplaceSeats(f.ctx, f.event, seats))
	f.seats = seats
	f.engine = NewEngine(f.store, f.auditor, Config{TTL: 10 * time.Minute, MaxSeats: 10}, observability.NewDiscardLogger())
	f.engine.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) ids(n int) []uuid.UUID {
	out := make([]uuid.UUID, 0, n)
	for _, s := range f.seats[:n] {
		out = append(out, s.ID)
	}
	return out
}

func (f *fixture) status(t *testing.T, id uuid.UUID) domain.SeatStatus {
	t.Helper()
	seat, err := f.store.GetSeat(f.ctx, id)
	require.NoError(t, err)
	return seat.Status
}

func TestReserve_HoldsSeats(t *testing.T) {
	f := newFixture(t, 3)

	hold, err := f.engine.Reserve(f.ctx, f.event, f.ids(2), "session-a")
	require.NoError(t, err)
	assert.Len(t, hold.Seats, 2)
	assert.Equal(t, f.clock.Add(10*time.Minute), hold.ExpiresAt)
	assert.True(t, hold.TotalPrice.Equal(decimal.NewFromInt(300)))

	assert.Equal(t, domain.SeatReserved, f.status(t, f.seats[0].ID))
	assert.Equal(t, domain.SeatAvailable, f.status(t, f.seats[2].ID))
	require.Len(t, f.auditor.events, 1)
	assert.Equal(t, domain.EventSeatsReserved, f.auditor.events[0].Type)
}

func TestReserve_ConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t, 1)
	target := f.seats[0].ID

	const workers = 20
	var (
		wg        sync.WaitGroup
		wins      atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Reserve(f.ctx, f.event, []uuid.UUID{target}, uuid.NewString())
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, domain.ErrSeatUnavailable):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(workers-1), conflicts.Load())
	assert.Equal(t, domain.SeatReserved, f.status(t, target))
}

func TestReserve_AllOrNothing(t *testing.T) {
	f := newFixture(t, 3)
	_, err := f.engine.Reserve(f.ctx, f.event, f.ids(1), "session-a")
	require.NoError(t, err)

	_, err = f.engine.Reserve(f.ctx, f.event, f.ids(3), "session-b")
	var unavailable *domain.UnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, []uuid.UUID{f.seats[0].ID}, unavailable.SeatIDs)

	assert.Equal(t, domain.SeatAvailable, f.status(t, f.seats[1].ID))
	assert.Equal(t, domain.SeatAvailable, f.status(t, f.seats[2].ID))
}

func TestReserve_SameSessionRefreshesExpiry(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.engine.Reserve(f.ctx, f.event, f.ids(1), "session-a")
	require.NoError(t, err)

	f.clock = f.clock.Add(5 * time.Minute)
	hold, err := f.engine.Reserve(f.ctx, f.event, f.ids(1), "session-a")
	require.NoError(t, err)
	assert.Equal(t, f.clock.Add(10*time.Minute), hold.ExpiresAt)
}

func TestReserve_ExpiredHoldCanBeTaken(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.engine.Reserve(f.ctx, f.event, f.ids(1), "session-a")
	require.NoError(t, err)

	f.clock = f.clock.Add(10 * time.Minute)
	_, err = f.engine.Reserve(f.ctx, f.event, f.ids(1), "session-b")
	require.NoError(t, err)

	seat, err := f.store.GetSeat(f.ctx, f.seats[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "session-b", seat.SessionID)
}

func TestReserve_RejectsBadRequests(t *testing.T) {
	f := newFixture(t, 12)

	_, err := f.engine.Reserve(f.ctx, f.event, f.ids(1), "")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = f.engine.Reserve(f.ctx, f.event, nil, "session-a")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = f.engine.Reserve(f.ctx, f.event, f.ids(11), "session-a")
	assert.True(t, errors.Is(err, domain.ErrCapacityExceeded))
	assert.Equal(t, "you can select maximum 10 seats", err.Error())

	_, err = f.engine.Reserve(f.ctx, f.event, []uuid.UUID{uuid.New()}, "session-a")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	for _, s := range f.seats {
		assert.Equal(t, domain.SeatAvailable, f.status(t, s.ID))
	}
}

func TestReserve_DuplicateIDsCountOnce(t *testing.T) {
	f := newFixture(t, 10)
	ids := append(f.ids(10), f.seats[0].ID)

	hold, err := f.engine.Reserve(f.ctx, f.event, ids, "session-a")
	require.NoError(t, err)
	assert.Len(t, hold.Seats, 10)
}

func TestRelease_OnlyOwnSeats(t *testing.T) {
	f := newFixture(t, 2)
	_, err := f.engine.Reserve(f.ctx, f.event, f.ids(1), "session-a")
	require.NoError(t, err)

	released, err := f.engine.Release(f.ctx, f.event, f.ids(1), "session-b")
	require.NoError(t, err)
	assert.Empty(t, released)
	assert.Equal(t, domain.SeatReserved, f.status(t, f.seats[0].ID))

	released, err = f.engine.Release(f.ctx, f.event, f.ids(2), "session-a")
	require.NoError(t, err)
	assert.Equal(t, f.ids(1), released)
	assert.Equal(t, domain.SeatAvailable, f.status(t, f.seats[0].ID))
}

func TestConfirm_SoldIsTerminal(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.engine.Reserve(f.ctx, f.event, f.ids(1), "session-a")
	require.NoError(t, err)

	sold, err := f.engine.Confirm(f.ctx, f.event, f.ids(1), "session-a")
	require.NoError(t, err)
	require.Len(t, sold, 1)
	assert.Equal(t, domain.SeatSold, sold[0].Status)

	_, err = f.engine.Reserve(f.ctx, f.event, f.ids(1), "session-b")
	assert.True(t, errors.Is(err, domain.ErrSeatUnavailable))

	released, err := f.engine.Release(f.ctx, f.event, f.ids(1), "session-a")
	require.NoError(t, err)
	assert.Empty(t, released)

	f.clock = f.clock.Add(time.Hour)
	changed, err := f.engine.Expire(f.ctx, f.seats[0].ID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, domain.SeatSold, f.status(t, f.seats[0].ID))
}

func TestConfirm_RequiresLiveHold(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.engine.Reserve(f.ctx, f.event, f.ids(1), "session-a")
	require.NoError(t, err)

	_, err = f.engine.Confirm(f.ctx, f.event, f.ids(1), "session-b")
	assert.True(t, errors.Is(err, domain.ErrSeatUnavailable))

	f.clock = f.clock.Add(11 * time.Minute)
	_, err = f.engine.Confirm(f.ctx, f.event, f.ids(1), "session-a")
	assert.True(t, errors.Is(err, domain.ErrSeatUnavailable))
}

func TestExpire(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.engine.Reserve(f.ctx, f.event, f.ids(1), "session-a")
	require.NoError(t, err)

	changed, err := f.engine.Expire(f.ctx, f.seats[0].ID)
	require.NoError(t, err)
	assert.False(t, changed, "hold still live")

	f.clock = f.clock.Add(10 * time.Minute)
	changed, err = f.engine.Expire(f.ctx, f.seats[0].ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.SeatAvailable, f.status(t, f.seats[0].ID))

	_, err = f.engine.Expire(f.ctx, uuid.New())
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestAdminRevert(t *testing.T) {
	f := newFixture(t, 2)
	_, err := f.engine.Reserve(f.ctx, f.event, f.ids(1), "session-a")
	require.NoError(t, err)
	_, err = f.engine.Confirm(f.ctx, f.event, f.ids(1), "session-a")
	require.NoError(t, err)

	seat, err := f.engine.AdminRevert(f.ctx, f.seats[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SeatAvailable, seat.Status)
	assert.Empty(t, seat.SessionID)

	_, err = f.engine.AdminRevert(f.ctx, f.seats[1].ID)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestReclaimExpired(t *testing.T) {
	f := newFixture(t, 3)
	_, err := f.engine.Reserve(f.ctx, f.event, f.ids(2), "session-a")
	require.NoError(t, err)

	f.clock = f.clock.Add(10 * time.Minute)
	_, err = f.engine.Reserve(f.ctx, f.event, []uuid.UUID{f.seats[2].ID}, "session-b")
	require.NoError(t, err)

	reclaimed, err := f.engine.ReclaimExpired(f.ctx)
	require.NoError(t, err)
	assert.Len(t, reclaimed, 2)
	assert.Equal(t, domain.SeatReserved, f.status(t, f.seats[2].ID))
}

func (a *recordingAuditor) ofType(typ string) []domain.SeatEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []domain.SeatEvent
	for _, ev := range a.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func TestExpiryTransitionsAreAudited(t *testing.T) {
	f := newFixture(t, 4)
	_, err := f.engine.Reserve(f.ctx, f.event, f.ids(2), "session-a")
	require.NoError(t, err)

	other := uuid.New()
	otherSeat := domain.Seat{
		ID:         domain.SeatID(other, "General", "A", "1"),
		EventID:    other,
		Section:    "General",
		RowLabel:   "A",
		SeatNumber: "1",
		SeatType:   "STANDARD",
		BasePrice:  decimal.NewFromInt(150),
		Status:     domain.SeatAvailable,
	}
	require.NoError(t, f.store.ReplaceSeats(f.ctx, other, []domain.Seat{otherSeat}))
	_, err = f.engine.Reserve(f.ctx, other, []uuid.UUID{otherSeat.ID}, "session-b")
	require.NoError(t, err)
	assert.Empty(t, f.auditor.ofType(domain.EventSeatsExpired))

	f.clock = f.clock.Add(11 * time.Minute)
	changed, err := f.engine.Expire(f.ctx, f.seats[0].ID)
	require.NoError(t, err)
	require.True(t, changed)

	expired := f.auditor.ofType(domain.EventSeatsExpired)
	require.Len(t, expired, 1)
	assert.Equal(t, f.event, expired[0].EventID)
	assert.Equal(t, []uuid.UUID{f.seats[0].ID}, expired[0].SeatIDs)

	changed, err = f.engine.Expire(f.ctx, f.seats[0].ID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, f.auditor.ofType(domain.EventSeatsExpired), 1, "no-op expiry is not recorded")

	reclaimed, err := f.engine.ReclaimExpired(f.ctx)
	require.NoError(t, err)
	assert.Len(t, reclaimed, 2)

	expired = f.auditor.ofType(domain.EventSeatsExpired)
	require.Len(t, expired, 3, "one record per event swept")
	perEvent := map[uuid.UUID][]uuid.UUID{}
	for _, ev := range expired[1:] {
		perEvent[ev.EventID] = ev.SeatIDs
		assert.Equal(t, len(ev.SeatIDs), ev.Count)
	}
	assert.Equal(t, []uuid.UUID{f.seats[1].ID}, perEvent[f.event])
	assert.Equal(t, []uuid.UUID{otherSeat.ID}, perEvent[other])

	reclaimed, err = f.engine.ReclaimExpired(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, reclaimed)
	assert.Len(t, f.auditor.ofType(domain.EventSeatsExpired), 3)
}

func TestReclaimEvent_LeavesOtherEventsAlone(t *testing.T) {
	f := newFixture(t, 2)
	_, err := f.engine.Reserve(f.ctx, f.event, f.ids(2), "session-a")
	require.NoError(t, err)

	f.clock = f.clock.Add(11 * time.Minute)
	reclaimed, err := f.engine.ReclaimEvent(f.ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, reclaimed)
	assert.Empty(t, f.auditor.ofType(domain.EventSeatsExpired))

	reclaimed, err = f.engine.ReclaimEvent(f.ctx, f.event)
	require.NoError(t, err)
	assert.Len(t, reclaimed, 2)
	expired := f.auditor.ofType(domain.EventSeatsExpired)
	require.Len(t, expired, 1)
	assert.Equal(t, f.event, expired[0].EventID)
	assert.Len(t, expired[0].SeatIDs, 2)
}

type serializationStore struct{ Store }

func (serializationStore) ReserveSeats(context.Context, uuid.UUID, []uuid.UUID, string, time.Time, time.Time) ([]domain.Seat, error) {
	return nil, errors.Wrap(domain.ErrSerializationFailure, "restart transaction")
}

func TestReserve_SerializationFailureIsConflict(t *testing.T) {
	f := newFixture(t, 1)
	engine := NewEngine(serializationStore{f.store}, nil, Config{}, observability.NewDiscardLogger())

	_, err := engine.Reserve(f.ctx, f.event, f.ids(1), "session-a")
	assert.True(t, errors.Is(err, domain.ErrSeatUnavailable))
}
