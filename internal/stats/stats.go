// Package stats maintains the reading goal: the daily streak, total
// reading time and the completed-book counter. All mutation goes
// through Apply.
package stats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/franz/shelf/internal/store"
	"github.com/franz/shelf/internal/util"
)

const dateLayout = "2006-01-02"

// DefaultPersistInterval bounds how long accumulated reading time may
// stay in memory when nothing else about the goal changes.
const DefaultPersistInterval = time.Minute

// Activity is one progress signal from a reader
type Activity struct {
	At        time.Time
	Elapsed   time.Duration // reading time since the previous activity
	Completed bool          // a book was just finished
}

// Day formats t as the calendar day used for LastReadDate
func Day(t time.Time) string {
	return t.Format(dateLayout)
}

// Apply returns goal updated for one activity. Repeated calls on the
// same calendar day leave the streak alone; the day after the last read
// extends it and any longer gap restarts it at 1. Activity dated before
// the last read day only adds time and completions.
func Apply(goal store.Goal, a Activity) store.Goal {
	today := Day(a.At)

	switch {
	case goal.LastReadDate == today:
	case goal.LastReadDate != "" && today < goal.LastReadDate:
	case goal.LastReadDate == Day(a.At.AddDate(0, 0, -1)):
		goal.CurrentStreak++
		goal.LastReadDate = today
	default:
		goal.CurrentStreak = 1
		goal.LastReadDate = today
	}
	goal.LongestStreak = max(goal.LongestStreak, goal.CurrentStreak)

	if a.Elapsed > 0 {
		goal.TotalTimeRead += a.Elapsed
	}
	if a.Completed {
		goal.TotalBooksCompleted++
	}
	return goal
}

// GoalStore is the persistence the tracker needs
type GoalStore interface {
	GetGoal(ctx context.Context) (*store.Goal, error)
	PutGoal(ctx context.Context, g *store.Goal) error
}

// Tracker serializes goal updates and limits writes: the goal is saved
// when the streak, day or completed count change, or when unsaved
// reading time is older than the persist interval.
type Tracker struct {
	mu       sync.Mutex
	st       GoalStore
	goal     *store.Goal
	dirty    bool
	lastSave time.Time
	every    time.Duration
	now      func() time.Time
}

// NewTracker wraps st
func NewTracker(st GoalStore) *Tracker {
	return &Tracker{st: st, every: DefaultPersistInterval, now: time.Now}
}

// SetPersistInterval changes how often time-only updates are saved
func (t *Tracker) SetPersistInterval(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.every = d
}

func (t *Tracker) load(ctx context.Context) error {
	if t.goal != nil {
		return nil
	}
	g, err := t.st.GetGoal(ctx)
	if err != nil {
		return fmt.Errorf("failed to load goal: %w", err)
	}
	t.goal = g
	t.lastSave = t.now()
	return nil
}

func (t *Tracker) save(ctx context.Context) error {
	g := *t.goal
	err := util.Retry(ctx, util.StoreRetryConfig(), func() error {
		return t.st.PutGoal(ctx, &g)
	}, "save goal")
	if err != nil {
		return err
	}
	t.dirty = false
	t.lastSave = t.now()
	return nil
}

// Record applies one activity and returns the updated goal
func (t *Tracker) Record(ctx context.Context, a Activity) (store.Goal, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.load(ctx); err != nil {
		return store.Goal{}, err
	}
	if a.At.IsZero() {
		a.At = t.now()
	}

	before := *t.goal
	after := Apply(before, a)
	*t.goal = after
	if after != before {
		t.dirty = true
	}

	meaningful := after.CurrentStreak != before.CurrentStreak ||
		after.LastReadDate != before.LastReadDate ||
		after.TotalBooksCompleted != before.TotalBooksCompleted
	if t.dirty && (meaningful || t.now().Sub(t.lastSave) >= t.every) {
		if err := t.save(ctx); err != nil {
			return after, err
		}
	}
	return after, nil
}

// Goal returns a copy of the current goal
func (t *Tracker) Goal(ctx context.Context) (store.Goal, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.load(ctx); err != nil {
		return store.Goal{}, err
	}
	return *t.goal, nil
}

// SetDailyTarget changes the daily reading target in minutes
func (t *Tracker) SetDailyTarget(ctx context.Context, minutes int) error {
	if minutes < 0 {
		return fmt.Errorf("%w: daily target must not be negative", util.ErrInvalidConfig)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.load(ctx); err != nil {
		return err
	}
	if t.goal.DailyTarget == minutes {
		return nil
	}
	t.goal.DailyTarget = minutes
	return t.save(ctx)
}

// Flush saves unsaved reading time
func (t *Tracker) Flush(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.goal == nil || !t.dirty {
		return nil
	}
	return t.save(ctx)
}

// Reset zeroes the streak and counters, keeping the daily target
func (t *Tracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.load(ctx); err != nil {
		return err
	}
	t.goal = &store.Goal{DailyTarget: t.goal.DailyTarget}
	return t.save(ctx)
}

// Invalidate drops the cached goal so the next call reloads it, used
// after the store was cleared underneath the tracker.
func (t *Tracker) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.goal = nil
	t.dirty = false
}
