// Package watcher drives the retry loop: re-search, test the watched runs
// against the seat preference, reserve on the first opening. It owns the
// sole error-classification point of the engine; the backend clients only
// produce the taxonomy.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/hanrail/hanrail/internal/notify"
	"github.com/hanrail/hanrail/internal/rail"
)

// Action is the watcher's verdict on a failed iteration.
type Action int

const (
	// ActionRetry sleeps and re-enters the loop.
	ActionRetry Action = iota
	// ActionReLogin re-authenticates, then re-enters the loop.
	ActionReLogin
	// ActionConfirm asks the operator whether to continue.
	ActionConfirm
	// ActionAbort stops the watcher with the error.
	ActionAbort
)

// Classify maps an iteration error to an action. Expected emptiness and
// contention retry; a server-detected session loss re-authenticates;
// credential rejections, duplicate bookings and integrity faults abort;
// everything unrecognized goes to the operator. Never a silent infinite
// retry on an unknown error.
func Classify(err error) Action {
	switch {
	case errors.Is(err, rail.ErrNoResults),
		errors.Is(err, rail.ErrSoldOut):
		return ActionRetry
	case errors.Is(err, rail.ErrNotLoggedIn):
		return ActionReLogin
	case errors.Is(err, rail.ErrDuplicate),
		errors.Is(err, rail.ErrReservationNotFound),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return ActionAbort
	}

	var queueErr *rail.QueueError
	if errors.As(err, &queueErr) {
		return ActionRetry
	}
	var authErr *rail.AuthError
	if errors.As(err, &authErr) {
		return ActionAbort
	}

	// Transient transport failures retry like contention does.
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ActionRetry
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ActionRetry
	}

	return ActionConfirm
}

// Decider resolves ActionConfirm: true continues the loop, false stops it.
type Decider func(err error) bool

// Options configures a Watcher.
type Options struct {
	Client     rail.Client
	Query      rail.Query
	Preference rail.SeatPreference

	// Trains restricts watching to these train numbers; empty watches
	// every run the search returns.
	Trains []string

	// Notifier receives the success notice. May be nil.
	Notifier notify.Notifier

	// Decider resolves unrecognized errors. A nil decider aborts.
	Decider Decider

	// Delay returns the next inter-iteration sleep. Defaults to draws
	// from Gamma(4.5, rate 4), mean ~1.1s, long right tail.
	Delay func() time.Duration

	Now func() time.Time
}

// Watcher runs the retry loop for one query until a reservation succeeds,
// the operator stops it, or the context ends.
type Watcher struct {
	client  rail.Client
	query   rail.Query
	pref    rail.SeatPreference
	trains  map[string]bool
	notif   notify.Notifier
	decider Decider
	delay   func() time.Duration
	now     func() time.Time
}

// New creates a Watcher.
func New(opts Options) *Watcher {
	delay := opts.Delay
	if delay == nil {
		gamma := distuv.Gamma{Alpha: 4.5, Beta: 4}
		delay = func() time.Duration {
			return time.Duration(gamma.Rand() * float64(time.Second))
		}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	var trains map[string]bool
	if len(opts.Trains) > 0 {
		trains = make(map[string]bool, len(opts.Trains))
		for _, no := range opts.Trains {
			trains[no] = true
		}
	}

	return &Watcher{
		client:  opts.Client,
		query:   opts.Query,
		pref:    opts.Preference,
		trains:  trains,
		notif:   opts.Notifier,
		decider: opts.Decider,
		delay:   delay,
		now:     now,
	}
}

// Run loops until a reservation is made. Sleeps are fully interruptible;
// a context cancellation between iterations returns ctx.Err().
func (w *Watcher) Run(ctx context.Context) (rail.Reservation, error) {
	attempts := 0
	var latency welford

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		attempts++

		start := w.now()
		reservation, err := w.attempt(ctx)
		latency.update(w.now().Sub(start).Seconds())

		if err == nil && reservation != nil {
			msg := fmt.Sprintf("%s\n시도 %d회, 평균 %.2fs (±%.2fs)",
				reservation.Describe(), attempts, latency.mean, latency.stddev())
			notify.Best(ctx, w.notif, msg)
			return reservation, nil
		}

		if err != nil {
			switch Classify(err) {
			case ActionRetry:
				log.Printf("attempt %d: %v", attempts, err)
			case ActionReLogin:
				log.Printf("attempt %d: session lost, logging in again", attempts)
				if _, lerr := w.client.Login(ctx); lerr != nil {
					return nil, lerr
				}
				continue
			case ActionAbort:
				return nil, err
			case ActionConfirm:
				if w.decider == nil || !w.decider(err) {
					return nil, err
				}
				log.Printf("attempt %d: continuing past %v", attempts, err)
			}
		}

		if err := w.sleep(ctx); err != nil {
			return nil, err
		}
	}
}

// attempt runs one search-and-reserve pass. (nil, nil) means no watched
// run had an opening; the loop sleeps and tries again.
func (w *Watcher) attempt(ctx context.Context) (rail.Reservation, error) {
	schedules, err := w.client.Search(ctx, w.query)
	if err != nil {
		return nil, err
	}

	for _, sched := range schedules {
		if !w.watched(sched) {
			continue
		}
		if rail.SeatAvailable(sched, w.pref) {
			log.Printf("seat opened: %s", sched.Describe())
			return w.client.Reserve(ctx, sched, w.query.Passengers, w.pref)
		}
		if w.query.IncludeStandby && rail.StandbyOpen(sched) {
			log.Printf("standby opened: %s", sched.Describe())
			return w.client.ReserveStandby(ctx, sched, w.query.Passengers, w.pref)
		}
	}
	return nil, nil
}

func (w *Watcher) watched(sched rail.Schedule) bool {
	if w.trains == nil {
		return true
	}
	return w.trains[sched.TrainNumber()]
}

// sleep blocks for one sampled delay or until the context ends.
func (w *Watcher) sleep(ctx context.Context) error {
	timer := time.NewTimer(w.delay())
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
