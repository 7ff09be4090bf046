package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	bookingRepo "slotbook/database/repository/booking"
	"slotbook/models"
	"slotbook/services/schedule"

	"go.uber.org/zap"
)

// DefaultFetchTimeout bounds a full read when no other timeout is configured.
const DefaultFetchTimeout = 10 * time.Second

// Store reconciles the bookings held by the repository with the configured
// slot grids. All derived state is recomputed from the base schedules on every
// snapshot. One goroutine consumes the live feed; operations only toggle the
// loading and error fields and rely on the feed to show their effect.
type Store struct {
	repo         bookingRepo.BookingRepository
	cache        FetchCache
	base         []models.Schedule
	slotKeys     map[string]struct{}
	logger       *zap.Logger
	fetchTimeout time.Duration
	exclusive    bool

	mu          sync.RWMutex
	bookings    []models.Booking
	schedules   []models.Schedule
	subscribing bool
	live        bool
	feedSeq     uint64
	inflight    int
	fetching    int
	lastErr     *StoreError
	writeErr    bool
	closed      bool
	cancel      context.CancelFunc
	done        chan struct{}
	watchers    map[int]chan State
	nextWatcher int
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithFetchCache(c FetchCache) Option {
	return func(s *Store) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithFetchTimeout overrides the deadline applied to Refresh.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithExclusiveSlots makes CreateBooking use conditional writes so a slot
// holds at most one booking.
func WithExclusiveSlots(enabled bool) Option {
	return func(s *Store) { s.exclusive = enabled }
}

// NewStore returns an idle Store over the given base schedules.
func NewStore(repo bookingRepo.BookingRepository, base []models.Schedule, opts ...Option) *Store {
	s := &Store{
		repo:         repo,
		cache:        NoFetchCache(),
		base:         models.CloneSchedules(base),
		logger:       zap.L(),
		fetchTimeout: DefaultFetchTimeout,
		watchers:     make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.slotKeys = schedule.SlotKeys(s.base)
	s.schedules, _ = Merge(s.base, nil)
	return s
}

// Start subscribes to the repository. The subscription lasts until ctx ends
// or Close is called. Start may be called again once a failed feed has ended.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.cancel != nil {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	subCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.subscribing = true
	s.notifyLocked()
	s.mu.Unlock()

	feed, err := s.repo.Subscribe(subCtx)
	if err != nil {
		cancel()
		se := ClassifyRead(err)
		s.logger.Error("Failed to subscribe to bookings", zap.Error(err))

		s.mu.Lock()
		s.cancel = nil
		s.subscribing = false
		if !s.closed {
			s.setErrorLocked(se, false)
		}
		s.mu.Unlock()
		close(done)
		return se
	}

	go s.consume(feed, cancel, done)
	return nil
}

func (s *Store) consume(feed <-chan bookingRepo.Snapshot, cancel context.CancelFunc, done chan struct{}) {
	defer close(done)
	defer cancel()

	for snap := range feed {
		if snap.Err != nil {
			se := ClassifyRead(snap.Err)
			s.logger.Error("Bookings feed failed", zap.Error(snap.Err), zap.String("kind", string(se.Kind)))
			s.mu.Lock()
			if !s.closed {
				s.subscribing = false
				s.setErrorLocked(se, false)
			}
			s.mu.Unlock()
			continue
		}
		s.applyFeed(snap.Bookings)
	}

	s.mu.Lock()
	s.cancel = nil
	s.subscribing = false
	s.live = false
	if !s.closed {
		s.notifyLocked()
	}
	s.mu.Unlock()
}

// applyFeed merges a feed snapshot. A snapshot always replaces the previous
// one and clears the ambient error.
func (s *Store) applyFeed(bookings []models.Booking) {
	s.apply(bookings, func() bool {
		s.feedSeq++
		s.subscribing = false
		s.live = true
		return true
	})
}

// applyFetched merges a full read unless the feed delivered a snapshot after
// the read started at feedSeq since.
func (s *Store) applyFetched(bookings []models.Booking, since uint64) bool {
	return s.apply(bookings, func() bool { return s.feedSeq == since })
}

// apply recomputes the grid from bookings. accept runs under mu and may
// reject the snapshot.
func (s *Store) apply(bookings []models.Booking, accept func() bool) bool {
	merged, dups := Merge(s.base, bookings)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !accept() {
		return false
	}
	for _, d := range dups {
		s.logger.Warn("Multiple bookings share a slot",
			zap.String("bookingTime", d.BookingTime),
			zap.String("kept", d.Kept),
			zap.Strings("ignored", d.Ignored))
	}
	if n := s.countOutside(bookings); n > 0 {
		s.logger.Debug("Bookings outside the configured days", zap.Int("count", n))
	}
	s.bookings = append([]models.Booking{}, bookings...)
	s.schedules = merged
	s.lastErr = nil
	s.writeErr = false
	s.notifyLocked()
	return true
}

// CreateBooking writes a new booking. The grid changes only when the feed
// delivers the snapshot containing it.
func (s *Store) CreateBooking(ctx context.Context, bookerName, bookingTime string) (string, error) {
	name, key, err := normalizeRequest(bookerName, bookingTime)
	if err != nil {
		return "", err
	}

	counted := s.begin()
	defer s.end(counted)

	create := s.repo.Create
	if s.exclusive {
		create = s.repo.CreateExclusive
	}
	id, err := create(ctx, name, key)
	if err != nil {
		se := classifyWrite(KindCreate, err)
		s.logger.Error("Failed to create booking",
			zap.String("bookingTime", key), zap.String("kind", string(se.Kind)), zap.Error(err))
		s.setError(se, true)
		return "", se
	}

	s.cache.Invalidate(ctx)
	s.clearWriteError()
	s.logger.Info("Booking created", zap.String("bookingId", id), zap.String("bookingTime", key))
	return id, nil
}

// CancelBooking deletes every booking matching name and time. It returns
// false with a nil error when nothing matched.
func (s *Store) CancelBooking(ctx context.Context, bookerName, bookingTime string) (bool, error) {
	name, key, err := normalizeRequest(bookerName, bookingTime)
	if err != nil {
		return false, err
	}

	counted := s.begin()
	defer s.end(counted)

	ok, err := s.repo.DeleteByNameAndTime(ctx, name, key)
	if err != nil {
		se := classifyWrite(KindCancel, err)
		s.logger.Error("Failed to cancel booking",
			zap.String("bookingTime", key), zap.String("kind", string(se.Kind)), zap.Error(err))
		s.setError(se, true)
		return false, se
	}
	if !ok {
		s.logger.Info("No booking matched cancellation", zap.String("bookingTime", key))
		return false, nil
	}

	s.cache.Invalidate(ctx)
	s.clearWriteError()
	s.logger.Info("Booking cancelled", zap.String("bookingTime", key))
	return true, nil
}

type fetchResult struct {
	bookings []models.Booking
	err      error
}

// Refresh performs a full read, bounded by the fetch timeout, and merges the
// result. A fresh cached read is used instead while the feed is down and no
// error is pending. A read overtaken by a feed snapshot is dropped. On failure
// the current schedules are kept.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.RLock()
	useCache := !s.live && s.lastErr == nil
	since := s.feedSeq
	s.mu.RUnlock()

	if useCache {
		if bookings, ok := s.cache.Get(ctx); ok {
			s.applyFetched(bookings, since)
			return nil
		}
	}

	s.mu.Lock()
	s.fetching++
	if !s.closed {
		s.notifyLocked()
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.fetching--
		if !s.closed {
			s.notifyLocked()
		}
		s.mu.Unlock()
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	results := make(chan fetchResult, 1)
	go func() {
		bookings, err := s.repo.FetchAll(fetchCtx)
		results <- fetchResult{bookings: bookings, err: err}
	}()

	var res fetchResult
	select {
	case res = <-results:
	case <-fetchCtx.Done():
		res.err = fetchCtx.Err()
	}
	if res.err != nil && errors.Is(fetchCtx.Err(), context.DeadlineExceeded) && !errors.Is(res.err, context.DeadlineExceeded) {
		res.err = fmt.Errorf("%w: %v", context.DeadlineExceeded, res.err)
	}

	if res.err != nil {
		se := ClassifyRead(res.err)
		s.logger.Error("Failed to fetch bookings", zap.String("kind", string(se.Kind)), zap.Error(res.err))
		s.setError(se, false)
		return se
	}

	s.cache.Set(ctx, res.bookings)
	if !s.applyFetched(res.bookings, since) {
		s.logger.Debug("Dropped full read overtaken by the feed")
	}
	return nil
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

// Bookings returns a copy of the last snapshot.
func (s *Store) Bookings() []models.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Booking{}, s.bookings...)
}

// Watch returns a channel receiving the current state and then every change.
// A slow reader only sees the latest state. The returned func stops the watch.
func (s *Store) Watch() (<-chan State, func()) {
	ch := make(chan State, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = ch
	ch <- s.stateLocked()
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			if c, ok := s.watchers[id]; ok {
				delete(s.watchers, id)
				close(c)
			}
			s.mu.Unlock()
		})
	}
}

// Close ends the subscription and all watches. Operations still in flight
// return to their callers but no longer change the Store.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel, done := s.cancel, s.done
	for id, ch := range s.watchers {
		delete(s.watchers, id)
		close(ch)
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (s *Store) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.inflight++
	s.notifyLocked()
	return true
}

func (s *Store) end(counted bool) {
	if !counted {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if !s.closed {
		s.notifyLocked()
	}
}

func (s *Store) setError(se *StoreError, fromWrite bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.setErrorLocked(se, fromWrite)
}

func (s *Store) setErrorLocked(se *StoreError, fromWrite bool) {
	s.lastErr = se
	s.writeErr = fromWrite
	s.notifyLocked()
}

// clearWriteError drops an error left by an earlier failed write. Read
// errors stay until the next snapshot.
func (s *Store) clearWriteError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.lastErr == nil || !s.writeErr {
		return
	}
	s.lastErr = nil
	s.writeErr = false
	s.notifyLocked()
}

func (s *Store) statusLocked() Status {
	switch {
	case s.closed:
		return StatusClosed
	case s.inflight > 0:
		return StatusMutating
	case s.subscribing:
		return StatusSubscribing
	case s.fetching > 0:
		return StatusFetching
	case s.lastErr != nil:
		return StatusErrored
	case s.live:
		return StatusLive
	default:
		return StatusIdle
	}
}

func (s *Store) stateLocked() State {
	st := State{
		Schedules: models.CloneSchedules(s.schedules),
		Loading:   s.subscribing || s.inflight > 0 || s.fetching > 0,
		Status:    s.statusLocked(),
		Live:      s.live,
	}
	if s.lastErr != nil {
		st.Error = s.lastErr.Message
		st.ErrorKind = s.lastErr.Kind
	}
	return st
}

// notifyLocked must be called with s.mu held for writing.
func (s *Store) notifyLocked() {
	if len(s.watchers) == 0 {
		return
	}
	st := s.stateLocked()
	for _, ch := range s.watchers {
		select {
		case ch <- st:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- st
		}
	}
}

func (s *Store) countOutside(bookings []models.Booking) int {
	n := 0
	for _, b := range bookings {
		if _, ok := s.slotKeys[b.BookingTime]; !ok {
			n++
		}
	}
	return n
}

func normalizeRequest(bookerName, bookingTime string) (string, string, error) {
	name := strings.TrimSpace(bookerName)
	if name == "" {
		return "", "", ErrBookerNameRequired
	}
	key, err := schedule.NormalizeKey(strings.TrimSpace(bookingTime))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidBookingTime, err)
	}
	return name, key, nil
}
