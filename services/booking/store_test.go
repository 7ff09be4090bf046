package booking_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	bookingRepo "slotbook/database/repository/booking"
	"slotbook/models"
	"slotbook/services/booking"

	"github.com/stretchr/testify/assert"
	testifymock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// MockBookingRepo is a testify mock of bookingRepo.BookingRepository.
type MockBookingRepo struct {
	testifymock.Mock
}

func (m *MockBookingRepo) FetchAll(ctx context.Context) ([]models.Booking, error) {
	args := m.Called(ctx)
	bookings, _ := args.Get(0).([]models.Booking)
	return bookings, args.Error(1)
}

func (m *MockBookingRepo) Subscribe(ctx context.Context) (<-chan bookingRepo.Snapshot, error) {
	args := m.Called(ctx)
	ch, _ := args.Get(0).(<-chan bookingRepo.Snapshot)
	return ch, args.Error(1)
}

func (m *MockBookingRepo) Create(ctx context.Context, bookerName, bookingTime string) (string, error) {
	args := m.Called(ctx, bookerName, bookingTime)
	return args.String(0), args.Error(1)
}

func (m *MockBookingRepo) CreateExclusive(ctx context.Context, bookerName, bookingTime string) (string, error) {
	args := m.Called(ctx, bookerName, bookingTime)
	return args.String(0), args.Error(1)
}

func (m *MockBookingRepo) DeleteByNameAndTime(ctx context.Context, bookerName, bookingTime string) (bool, error) {
	args := m.Called(ctx, bookerName, bookingTime)
	return args.Bool(0), args.Error(1)
}

// failingFetchRepo serves the live feed from memory but fails full reads.
type failingFetchRepo struct {
	*bookingRepo.MemoryBookingRepo
	err     error
	fetches atomic.Int32
}

func (r *failingFetchRepo) FetchAll(ctx context.Context) ([]models.Booking, error) {
	r.fetches.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return r.MemoryBookingRepo.FetchAll(ctx)
}

func newStore(t *testing.T, repo bookingRepo.BookingRepository, opts ...booking.Option) *booking.Store {
	t.Helper()
	opts = append([]booking.Option{booking.WithLogger(zap.NewNop())}, opts...)
	store := booking.NewStore(repo, baseSchedules(t), opts...)
	t.Cleanup(store.Close)
	return store
}

func startLive(t *testing.T, store *booking.Store) {
	t.Helper()
	require.NoError(t, store.Start(context.Background()))
	waitFor(t, store, func(st booking.State) bool { return st.Status == booking.StatusLive })
}

func waitFor(t *testing.T, store *booking.Store, cond func(booking.State) bool) booking.State {
	t.Helper()
	require.Eventually(t, func() bool { return cond(store.State()) }, 2*time.Second, 5*time.Millisecond)
	return store.State()
}

func firstSlot(st booking.State) models.TimeSlot {
	return st.Schedules[0].Slots[0]
}

func TestStoreInitialState(t *testing.T) {
	store := newStore(t, bookingRepo.NewMemoryBookingRepo())

	st := store.State()
	assert.Equal(t, booking.StatusIdle, st.Status)
	assert.False(t, st.Loading)
	assert.Empty(t, st.Error)
	assert.Equal(t, baseSchedules(t), st.Schedules)
}

func TestStoreStart(t *testing.T) {
	repo := bookingRepo.NewMemoryBookingRepo()
	repo.Seed(models.Booking{ID: "b1", BookerName: "Alice", BookingTime: slot1000})
	store := newStore(t, repo)

	startLive(t, store)
	st := store.State()
	assert.False(t, st.Loading)
	assert.True(t, firstSlot(st).IsBooked)
	assert.Equal(t, "Alice", firstSlot(st).BookerName)
	assert.Len(t, store.Bookings(), 1)

	assert.ErrorIs(t, store.Start(context.Background()), booking.ErrAlreadyStarted)
}

func TestStoreCreateThenObserve(t *testing.T) {
	store := newStore(t, bookingRepo.NewMemoryBookingRepo())
	startLive(t, store)

	id, err := store.CreateBooking(context.Background(), "  Alice ", slot1000)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	st := waitFor(t, store, func(st booking.State) bool { return firstSlot(st).IsBooked })
	assert.Equal(t, id, firstSlot(st).BookingID)
	assert.Equal(t, "Alice", firstSlot(st).BookerName)
	assert.False(t, st.Loading)
	assert.Empty(t, st.Error)
}

func TestStoreCreateNormalisesBookingTime(t *testing.T) {
	repo := bookingRepo.NewMemoryBookingRepo()
	store := newStore(t, repo)

	_, err := store.CreateBooking(context.Background(), "Alice", "2025-07-16T19:00:00+09:00")
	require.NoError(t, err)

	all, err := repo.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, slot1000, all[0].BookingTime)
}

func TestStoreCreateValidation(t *testing.T) {
	repo := new(MockBookingRepo)
	store := newStore(t, repo)

	_, err := store.CreateBooking(context.Background(), "   ", slot1000)
	assert.ErrorIs(t, err, booking.ErrBookerNameRequired)

	_, err = store.CreateBooking(context.Background(), "Alice", "tomorrow at ten")
	assert.ErrorIs(t, err, booking.ErrInvalidBookingTime)

	_, err = store.CancelBooking(context.Background(), "", slot1000)
	assert.ErrorIs(t, err, booking.ErrBookerNameRequired)

	assert.Empty(t, store.State().Error)
	repo.AssertExpectations(t)
}

func TestStoreCreateFailure(t *testing.T) {
	repo := new(MockBookingRepo)
	store := newStore(t, repo)
	repo.On("Create", testifymock.Anything, "Alice", slot1000).Return("", errors.New("unavailable")).Once()
	repo.On("Create", testifymock.Anything, "Alice", slot1000).Return("b1", nil).Once()

	_, err := store.CreateBooking(context.Background(), "Alice", slot1000)
	var se *booking.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, booking.KindCreate, se.Kind)

	st := store.State()
	assert.Equal(t, booking.MsgCreate, st.Error)
	assert.Equal(t, booking.StatusErrored, st.Status)
	assert.False(t, st.Loading)

	id, err := store.CreateBooking(context.Background(), "Alice", slot1000)
	require.NoError(t, err)
	assert.Equal(t, "b1", id)
	assert.Empty(t, store.State().Error)
	repo.AssertExpectations(t)
}

func TestStoreLoadingDuringMutation(t *testing.T) {
	repo := new(MockBookingRepo)
	store := newStore(t, repo)
	release := make(chan time.Time)
	repo.On("Create", testifymock.Anything, "Alice", slot1000).
		WaitUntil(release).
		Return("b1", nil)

	done := make(chan error, 1)
	go func() {
		_, err := store.CreateBooking(context.Background(), "Alice", slot1000)
		done <- err
	}()

	waitFor(t, store, func(st booking.State) bool { return st.Loading && st.Status == booking.StatusMutating })
	close(release)
	require.NoError(t, <-done)

	st := store.State()
	assert.False(t, st.Loading)
	assert.Equal(t, booking.StatusIdle, st.Status)
}

func TestStoreCancelNoMatch(t *testing.T) {
	repo := bookingRepo.NewMemoryBookingRepo()
	repo.Seed(models.Booking{ID: "b1", BookerName: "Alice", BookingTime: slot1000})
	store := newStore(t, repo)
	startLive(t, store)
	before := store.State()

	ok, err := store.CancelBooking(context.Background(), "Bob", slot1000)
	require.NoError(t, err)
	assert.False(t, ok)

	after := store.State()
	assert.Empty(t, after.Error)
	assert.Equal(t, before.Schedules, after.Schedules)
}

func TestStoreCancelRemovesAllDuplicates(t *testing.T) {
	repo := bookingRepo.NewMemoryBookingRepo()
	repo.Seed(
		models.Booking{ID: "c1", BookerName: "Carol", BookingTime: slot1000},
		models.Booking{ID: "c2", BookerName: "Carol", BookingTime: slot1000},
	)
	store := newStore(t, repo)
	startLive(t, store)
	assert.Equal(t, "c1", firstSlot(store.State()).BookingID)

	ok, err := store.CancelBooking(context.Background(), "Carol", slot1000)
	require.NoError(t, err)
	assert.True(t, ok)

	waitFor(t, store, func(st booking.State) bool { return !firstSlot(st).IsBooked })
	remaining, err := repo.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestStoreCancelTransportFailure(t *testing.T) {
	repo := new(MockBookingRepo)
	store := newStore(t, repo)
	repo.On("DeleteByNameAndTime", testifymock.Anything, "Alice", slot1000).Return(false, errors.New("connection reset"))

	ok, err := store.CancelBooking(context.Background(), "Alice", slot1000)
	assert.False(t, ok)
	var se *booking.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, booking.KindCancel, se.Kind)
	assert.Equal(t, booking.MsgCancel, store.State().Error)
}

func TestStoreExclusiveSlots(t *testing.T) {
	repo := bookingRepo.NewMemoryBookingRepo()
	store := newStore(t, repo, booking.WithExclusiveSlots(true))

	_, err := store.CreateBooking(context.Background(), "Alice", slot1000)
	require.NoError(t, err)

	_, err = store.CreateBooking(context.Background(), "Bob", slot1000)
	assert.ErrorIs(t, err, booking.ErrSlotTaken)
	var se *booking.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, booking.KindSlotTaken, se.Kind)
	assert.Equal(t, booking.MsgSlotTaken, store.State().Error)
}

func TestStoreRefreshErrorPreservesSchedules(t *testing.T) {
	mem := bookingRepo.NewMemoryBookingRepo()
	mem.Seed(models.Booking{ID: "b1", BookerName: "Alice", BookingTime: slot1000})
	repo := &failingFetchRepo{MemoryBookingRepo: mem, err: errors.New("request timeout")}
	store := newStore(t, repo)
	startLive(t, store)
	before := store.State().Schedules

	err := store.Refresh(context.Background())
	var se *booking.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, booking.KindTimeout, se.Kind)

	st := store.State()
	assert.Equal(t, booking.MsgTimeout, st.Error)
	assert.Equal(t, before, st.Schedules)
	assert.True(t, firstSlot(st).IsBooked)
}

func TestStoreRefreshClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind booking.ErrorKind
	}{
		{"permission", status.Error(codes.PermissionDenied, "denied"), booking.KindPermission},
		{"generic", errors.New("no such project"), booking.KindRead},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := new(MockBookingRepo)
			repo.On("FetchAll", testifymock.Anything).Return(nil, tc.err)
			store := newStore(t, repo)

			err := store.Refresh(context.Background())
			var se *booking.StoreError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tc.kind, se.Kind)
			assert.Equal(t, baseSchedules(t), store.State().Schedules)
		})
	}
}

func TestStoreRefreshTimeout(t *testing.T) {
	repo := new(MockBookingRepo)
	unblock := make(chan time.Time)
	t.Cleanup(func() { close(unblock) })
	repo.On("FetchAll", testifymock.Anything).WaitUntil(unblock).Return([]models.Booking{}, nil)
	store := newStore(t, repo, booking.WithFetchTimeout(20*time.Millisecond))

	err := store.Refresh(context.Background())
	var se *booking.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, booking.KindTimeout, se.Kind)
	assert.Equal(t, booking.MsgTimeout, store.State().Error)
	assert.False(t, store.State().Loading)
}

func TestStoreRefreshUsesCache(t *testing.T) {
	mem := bookingRepo.NewMemoryBookingRepo()
	mem.Seed(models.Booking{ID: "b1", BookerName: "Alice", BookingTime: slot1000})
	repo := &failingFetchRepo{MemoryBookingRepo: mem}
	store := newStore(t, repo, booking.WithFetchCache(booking.NewMemoryFetchCache(time.Minute, nil)))

	require.NoError(t, store.Refresh(context.Background()))
	require.NoError(t, store.Refresh(context.Background()))
	assert.EqualValues(t, 1, repo.fetches.Load())
	assert.True(t, firstSlot(store.State()).IsBooked)

	_, err := store.CreateBooking(context.Background(), "Bob", slot1015)
	require.NoError(t, err)
	require.NoError(t, store.Refresh(context.Background()))
	assert.EqualValues(t, 2, repo.fetches.Load())
	assert.True(t, store.State().Schedules[0].Slots[1].IsBooked)
}

func TestStoreRefreshKeepsLiveSnapshot(t *testing.T) {
	repo := bookingRepo.NewMemoryBookingRepo()
	store := newStore(t, repo, booking.WithFetchCache(booking.NewMemoryFetchCache(time.Hour, nil)))
	startLive(t, store)

	require.NoError(t, store.Refresh(context.Background()))
	_, err := repo.Create(context.Background(), "Alice", slot1000)
	require.NoError(t, err)
	waitFor(t, store, func(st booking.State) bool { return firstSlot(st).IsBooked })

	require.NoError(t, store.Refresh(context.Background()))
	st := store.State()
	assert.Equal(t, booking.StatusLive, st.Status)
	assert.True(t, firstSlot(st).IsBooked)
	assert.Len(t, store.Bookings(), 1)
}

func TestStoreRefreshDropsReadOvertakenByFeed(t *testing.T) {
	repo := new(MockBookingRepo)
	feed := make(chan bookingRepo.Snapshot, 1)
	repo.On("Subscribe", testifymock.Anything).Return((<-chan bookingRepo.Snapshot)(feed), nil).Once()
	release := make(chan time.Time)
	repo.On("FetchAll", testifymock.Anything).WaitUntil(release).Return([]models.Booking{}, nil)
	store := newStore(t, repo)

	require.NoError(t, store.Start(context.Background()))
	feed <- bookingRepo.Snapshot{Bookings: []models.Booking{}}
	waitFor(t, store, func(st booking.State) bool { return st.Status == booking.StatusLive })

	done := make(chan error, 1)
	go func() { done <- store.Refresh(context.Background()) }()
	waitFor(t, store, func(st booking.State) bool { return st.Status == booking.StatusFetching })

	feed <- bookingRepo.Snapshot{Bookings: []models.Booking{{ID: "b1", BookerName: "Alice", BookingTime: slot1000}}}
	waitFor(t, store, func(st booking.State) bool { return firstSlot(st).IsBooked })
	close(release)
	require.NoError(t, <-done)

	st := store.State()
	assert.True(t, firstSlot(st).IsBooked)
	assert.Equal(t, "Alice", firstSlot(st).BookerName)
	close(feed)
}

func TestStoreRefreshErrorBypassesCache(t *testing.T) {
	repo := new(MockBookingRepo)
	feed := make(chan bookingRepo.Snapshot, 1)
	repo.On("Subscribe", testifymock.Anything).Return((<-chan bookingRepo.Snapshot)(feed), nil).Once()
	repo.On("FetchAll", testifymock.Anything).Return(nil, status.Error(codes.PermissionDenied, "denied"))
	cache := booking.NewMemoryFetchCache(time.Hour, nil)
	cache.Set(context.Background(), []models.Booking{})
	store := newStore(t, repo, booking.WithFetchCache(cache))

	require.NoError(t, store.Start(context.Background()))
	feed <- bookingRepo.Snapshot{Err: status.Error(codes.PermissionDenied, "denied")}
	close(feed)
	waitFor(t, store, func(st booking.State) bool { return st.Status == booking.StatusErrored })

	err := store.Refresh(context.Background())
	var se *booking.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, booking.KindPermission, se.Kind)
	assert.Equal(t, booking.MsgPermission, store.State().Error)
	repo.AssertNumberOfCalls(t, "FetchAll", 1)
}

func TestStoreFeedError(t *testing.T) {
	repo := new(MockBookingRepo)
	feed := make(chan bookingRepo.Snapshot, 2)
	feed <- bookingRepo.Snapshot{Bookings: []models.Booking{{ID: "b1", BookerName: "Alice", BookingTime: slot1000}}}
	feed <- bookingRepo.Snapshot{Err: status.Error(codes.PermissionDenied, "denied")}
	close(feed)
	repo.On("Subscribe", testifymock.Anything).Return((<-chan bookingRepo.Snapshot)(feed), nil).Once()

	store := newStore(t, repo)
	require.NoError(t, store.Start(context.Background()))

	st := waitFor(t, store, func(st booking.State) bool { return st.ErrorKind == booking.KindPermission })
	assert.Equal(t, booking.MsgPermission, st.Error)
	assert.True(t, firstSlot(st).IsBooked, "last good schedules are kept")
	assert.False(t, st.Loading)
}

func TestStoreSubscribeFailureAllowsRetry(t *testing.T) {
	repo := new(MockBookingRepo)
	repo.On("Subscribe", testifymock.Anything).Return(nil, errors.New("dial tcp: i/o timeout")).Once()
	feed := make(chan bookingRepo.Snapshot, 1)
	feed <- bookingRepo.Snapshot{Bookings: []models.Booking{}}
	repo.On("Subscribe", testifymock.Anything).Return((<-chan bookingRepo.Snapshot)(feed), nil).Once()
	store := newStore(t, repo)

	err := store.Start(context.Background())
	var se *booking.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, booking.KindTimeout, se.Kind)
	assert.Equal(t, booking.StatusErrored, store.State().Status)

	require.NoError(t, store.Start(context.Background()))
	st := waitFor(t, store, func(st booking.State) bool { return st.Status == booking.StatusLive })
	assert.Empty(t, st.Error)
	close(feed)
}

func TestStoreWatch(t *testing.T) {
	store := newStore(t, bookingRepo.NewMemoryBookingRepo())
	updates, stop := store.Watch()
	defer stop()

	initial := <-updates
	assert.Equal(t, booking.StatusIdle, initial.Status)

	startLive(t, store)
	_, err := store.CreateBooking(context.Background(), "Alice", slot1000)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		select {
		case st := <-updates:
			return firstSlot(st).IsBooked
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStoreCloseIgnoresLateResults(t *testing.T) {
	repo := new(MockBookingRepo)
	release := make(chan time.Time)
	repo.On("Create", testifymock.Anything, "Alice", slot1000).
		WaitUntil(release).
		Return("", errors.New("write failed"))
	store := booking.NewStore(repo, baseSchedules(t), booking.WithLogger(zap.NewNop()))
	updates, _ := store.Watch()
	<-updates

	done := make(chan error, 1)
	go func() {
		_, err := store.CreateBooking(context.Background(), "Alice", slot1000)
		done <- err
	}()
	waitFor(t, store, func(st booking.State) bool { return st.Loading })

	store.Close()
	close(release)
	assert.Error(t, <-done, "the caller still gets the result")

	st := store.State()
	assert.Equal(t, booking.StatusClosed, st.Status)
	assert.Empty(t, st.Error)

	for range updates {
	}
	assert.ErrorIs(t, store.Start(context.Background()), booking.ErrClosed)
}

func TestStoreCloseStopsFeed(t *testing.T) {
	repo := bookingRepo.NewMemoryBookingRepo()
	store := booking.NewStore(repo, baseSchedules(t), booking.WithLogger(zap.NewNop()))
	startLive(t, store)

	store.Close()
	_, err := repo.Create(context.Background(), "Alice", slot1000)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	assert.False(t, firstSlot(store.State()).IsBooked)
}
