package location

import (
	"context"
	"sync"
	"time"

	"swiftdrop-backend/internal/models"
	"swiftdrop-backend/pkg/geo"
)

// DeviceFeed is a Provider backed by fixes pushed from the driver's device.
// One feed exists per driver; the location-ingest handler calls Push and any
// number of watchers consume the stream.
type DeviceFeed struct {
	mu      sync.Mutex
	granted bool
	latest  *models.PositionFix
	waiters []chan models.PositionFix
	subs    map[int]*feedSub
	nextID  int
}

type feedSub struct {
	feed    *DeviceFeed
	id      int
	opts    WatchOptions
	fn      func(models.PositionFix)
	last    *models.PositionFix
	lastAt  time.Time
	stopped bool
}

func NewDeviceFeed() *DeviceFeed {
	return &DeviceFeed{
		granted: true,
		subs:    make(map[int]*feedSub),
	}
}

// SetPermission records the device-reported permission state. A device that
// revoked location access reports it on its next check-in.
func (f *DeviceFeed) SetPermission(granted bool) {
	f.mu.Lock()
	f.granted = granted
	f.mu.Unlock()
}

func (f *DeviceFeed) RequestPermission(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.granted, nil
}

// Push delivers a fix from the device into the stream.
func (f *DeviceFeed) Push(fix models.PositionFix) {
	if fix.Timestamp.IsZero() {
		fix.Timestamp = time.Now()
	}

	f.mu.Lock()
	f.latest = &fix
	waiters := f.waiters
	f.waiters = nil

	var deliver []func(models.PositionFix)
	for _, sub := range f.subs {
		if sub.wants(fix) {
			cp := fix
			sub.last = &cp
			sub.lastAt = fix.Timestamp
			deliver = append(deliver, sub.fn)
		}
	}
	f.mu.Unlock()

	for _, ch := range waiters {
		ch <- fix
	}
	for _, fn := range deliver {
		fn(fix)
	}
}

func (f *DeviceFeed) CurrentFix(ctx context.Context) (models.PositionFix, error) {
	f.mu.Lock()
	if f.latest != nil {
		fix := *f.latest
		f.mu.Unlock()
		return fix, nil
	}
	ch := make(chan models.PositionFix, 1)
	f.waiters = append(f.waiters, ch)
	f.mu.Unlock()

	select {
	case fix := <-ch:
		return fix, nil
	case <-ctx.Done():
		f.dropWaiter(ch)
		return models.PositionFix{}, ErrUnavailable
	}
}

func (f *DeviceFeed) dropWaiter(ch chan models.PositionFix) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, w := range f.waiters {
		if w == ch {
			f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
			return
		}
	}
}

func (f *DeviceFeed) Watch(opts WatchOptions, fn func(models.PositionFix)) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	sub := &feedSub{feed: f, id: f.nextID, opts: opts, fn: fn}
	f.subs[sub.id] = sub
	return sub, nil
}

// wants applies the interval/distance filter. The first fix after subscribing
// always passes.
func (s *feedSub) wants(fix models.PositionFix) bool {
	if s.last == nil {
		return true
	}
	if s.opts.MinIntervalMs > 0 {
		if fix.Timestamp.Sub(s.lastAt) >= time.Duration(s.opts.MinIntervalMs)*time.Millisecond {
			return true
		}
	}
	if s.opts.MinDistanceM > 0 {
		d := geo.HaversineM(
			s.last.Coordinate.Latitude, s.last.Coordinate.Longitude,
			fix.Coordinate.Latitude, fix.Coordinate.Longitude,
		)
		if d >= s.opts.MinDistanceM {
			return true
		}
	}
	return s.opts.MinIntervalMs <= 0 && s.opts.MinDistanceM <= 0
}

func (s *feedSub) Cancel() {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	delete(s.feed.subs, s.id)
}

// FeedRegistry hands out one DeviceFeed per driver, creating it on first use.
type FeedRegistry struct {
	mu    sync.Mutex
	feeds map[string]*DeviceFeed
}

func NewFeedRegistry() *FeedRegistry {
	return &FeedRegistry{feeds: make(map[string]*DeviceFeed)}
}

func (r *FeedRegistry) Feed(driverID string) *DeviceFeed {
	r.mu.Lock()
	defer r.mu.Unlock()
	feed, ok := r.feeds[driverID]
	if !ok {
		feed = NewDeviceFeed()
		r.feeds[driverID] = feed
	}
	return feed
}
