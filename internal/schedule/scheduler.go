package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"islandbot/internal/calendar"
	appLog "islandbot/internal/log"
	"islandbot/internal/model"
)

// Clock is a function that returns the current time.
// It can be replaced for testing purposes.
type Clock func() time.Time

// Job performs one dispatch: fetch the calendar, render and deliver.
// A *calendar.FetchError means nothing was sent and the slot may be
// retried; any other error is a delivery failure.
type Job func(ctx context.Context, now time.Time) error

// Outcome is the result of evaluating one tick.
type Outcome int

const (
	// OutcomeIdle means the tick's minute is not a configured slot.
	OutcomeIdle Outcome = iota
	// OutcomeAlreadyFired means the slot already fired today.
	OutcomeAlreadyFired
	// OutcomeDispatched means the job ran and succeeded.
	OutcomeDispatched
	// OutcomeDeliveryFailed means the job ran and failed after fetching.
	// The slot is still marked as fired.
	OutcomeDeliveryFailed
	// OutcomeFetchFailed means the calendar could not be fetched.
	// The slot is not marked and may be retried.
	OutcomeFetchFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIdle:
		return "idle"
	case OutcomeAlreadyFired:
		return "already_fired"
	case OutcomeDispatched:
		return "dispatched"
	case OutcomeDeliveryFailed:
		return "delivery_failed"
	case OutcomeFetchFailed:
		return "fetch_failed"
	default:
		return "unknown"
	}
}

// SlotStatus describes one slot for status reporting.
type SlotStatus struct {
	Label     string
	LastFired model.Date // zero if not fired since start
	Next      time.Time
}

// Scheduler fires a Job at most once per configured slot per calendar day.
//
// The fired map (ScheduleState) lives in memory only; a restart re-arms
// every slot that has not yet passed today.
type Scheduler struct {
	loc   *time.Location
	slots []Slot
	set   map[string]struct{}
	job   Job
	clock Clock

	mu    sync.Mutex
	fired map[string]model.Date

	cron *cron.Cron
}

// New creates a Scheduler for slots evaluated in loc.
func New(loc *time.Location, slots []Slot, job Job) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	set := make(map[string]struct{}, len(slots))
	for _, s := range slots {
		set[s.Label()] = struct{}{}
	}
	return &Scheduler{
		loc:   loc,
		slots: slots,
		set:   set,
		job:   job,
		clock: time.Now,
		fired: make(map[string]model.Date),
	}
}

// SetClock sets a custom clock function for testing purposes.
// This must be called before Start().
func (s *Scheduler) SetClock(clock Clock) {
	s.clock = clock
}

// Tick evaluates the slot matching now. It never fails; problems are
// logged and reflected in the returned Outcome.
//
// Ticks must not run concurrently with each other. Start guarantees this.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) Outcome {
	local := now.In(s.loc)
	label := local.Format("15:04")
	if _, ok := s.set[label]; !ok {
		return OutcomeIdle
	}

	today := model.DateOf(local, s.loc)
	s.mu.Lock()
	last, ok := s.fired[label]
	s.mu.Unlock()
	if ok && last == today {
		appLog.Debug("slot already fired today", "slot", label, "date", today.String())
		return OutcomeAlreadyFired
	}

	appLog.Info("slot dispatch start", "slot", label, "date", today.String())
	err := s.run(ctx, local)

	switch {
	case err == nil:
		s.markFired(label, today)
		appLog.Info("slot dispatched", "slot", label, "date", today.String())
		return OutcomeDispatched
	case calendar.IsFetchError(err):
		appLog.Error("slot skipped: calendar fetch failed", err, "slot", label, "date", today.String())
		return OutcomeFetchFailed
	default:
		s.markFired(label, today)
		appLog.Error("slot delivery failed", err, "slot", label, "date", today.String())
		return OutcomeDeliveryFailed
	}
}

// RunNow runs the job once outside the slot table. Nothing is recorded.
func (s *Scheduler) RunNow(ctx context.Context) error {
	return s.run(ctx, s.clock().In(s.loc))
}

func (s *Scheduler) run(ctx context.Context, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch panicked: %v", r)
		}
	}()
	if s.job == nil {
		return errors.New("no job configured")
	}
	return s.job(ctx, now)
}

func (s *Scheduler) markFired(label string, day model.Date) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fired[label] = day
}

// State returns a copy of the last fired date per slot label.
func (s *Scheduler) State() map[string]model.Date {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]model.Date, len(s.fired))
	for k, v := range s.fired {
		out[k] = v
	}
	return out
}

// Upcoming reports every slot with its last firing and next firing after
// now, ordered by next firing.
func (s *Scheduler) Upcoming(now time.Time) []SlotStatus {
	state := s.State()
	out := make([]SlotStatus, 0, len(s.slots))
	for _, slot := range s.slots {
		next, err := slot.Next(now, s.loc)
		if err != nil {
			appLog.Error("slot recurrence failed", err, "slot", slot.Label())
			continue
		}
		out = append(out, SlotStatus{
			Label:     slot.Label(),
			LastFired: state[slot.Label()],
			Next:      next,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Next.Before(out[j].Next) })
	return out
}

// Start drives Tick once a minute until Stop is called. Ticks that would
// overlap a still-running one are skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	logger := appLog.CronLogger()
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc("* * * * *", func() {
		s.Tick(ctx, s.clock())
	}); err != nil {
		return fmt.Errorf("register minute tick: %w", err)
	}

	s.cron = c
	c.Start()

	labels := make([]string, 0, len(s.slots))
	for _, slot := range s.slots {
		labels = append(labels, slot.Label())
	}
	appLog.Info("scheduler started", "slots", labels, "timezone", s.loc.String())
	return nil
}

// Stop halts the minute tick and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	appLog.Info("scheduler stopped")
}
