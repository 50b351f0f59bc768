package alert

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	// DefaultNotificationCount is the number of sounds in one burst.
	DefaultNotificationCount = 3
	// DefaultNotificationInterval separates consecutive sounds of a burst.
	DefaultNotificationInterval = 2000 * time.Millisecond
)

// Action is one notification of a burst; k is its position, starting at 0.
type Action func(k int) error

// Scheduler turns an accepted trigger into a burst of delayed actions.
type Scheduler struct {
	clock    clock.Clock
	count    int
	interval time.Duration
	action   Action
	onError  func(k int, err error)
}

// NewScheduler creates a Scheduler. onError may be nil.
func NewScheduler(clk clock.Clock, count int, interval time.Duration, action Action, onError func(k int, err error)) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	if count < 0 {
		count = 0
	}
	if onError == nil {
		onError = func(int, error) {}
	}
	return &Scheduler{
		clock:    clk,
		count:    count,
		interval: interval,
		action:   action,
		onError:  onError,
	}
}

// Burst tracks the actions of one Fire call.
type Burst struct {
	wg     sync.WaitGroup
	timers []*clock.Timer
}

// Wait blocks until every action of the burst has returned.
func (b *Burst) Wait() {
	b.wg.Wait()
}

// Size returns the number of scheduled actions.
func (b *Burst) Size() int {
	return len(b.timers)
}

// Fire schedules count actions, the k-th firing k*interval from now.
// Scheduled actions cannot be cancelled and are not deduplicated.
func (s *Scheduler) Fire() *Burst {
	burst := &Burst{timers: make([]*clock.Timer, 0, s.count)}

	for k := 0; k < s.count; k++ {
		burst.wg.Add(1)
		timer := s.clock.AfterFunc(time.Duration(k)*s.interval, func() {
			defer burst.wg.Done()
			if err := s.action(k); err != nil {
				s.onError(k, err)
			}
		})
		burst.timers = append(burst.timers, timer)
	}

	return burst
}
