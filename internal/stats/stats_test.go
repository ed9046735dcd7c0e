package stats

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/franz/shelf/internal/store"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.Local)
}

func TestApplyStreak(t *testing.T) {
	tests := []struct {
		name         string
		goal         store.Goal
		at           time.Time
		wantCurrent  int
		wantLongest  int
		wantLastRead string
	}{
		{"first read", store.Goal{}, day(2024, 5, 1), 1, 1, "2024-05-01"},
		{"same day", store.Goal{CurrentStreak: 3, LongestStreak: 5, LastReadDate: "2024-05-01"}, day(2024, 5, 1), 3, 5, "2024-05-01"},
		{"next day", store.Goal{CurrentStreak: 3, LongestStreak: 3, LastReadDate: "2024-05-01"}, day(2024, 5, 2), 4, 4, "2024-05-02"},
		{"gap", store.Goal{CurrentStreak: 9, LongestStreak: 9, LastReadDate: "2024-05-01"}, day(2024, 5, 3), 1, 9, "2024-05-03"},
		{"month boundary", store.Goal{CurrentStreak: 1, LongestStreak: 1, LastReadDate: "2024-02-29"}, day(2024, 3, 1), 2, 2, "2024-03-01"},
		{"clock went back", store.Goal{CurrentStreak: 2, LongestStreak: 2, LastReadDate: "2024-05-05"}, day(2024, 5, 1), 2, 2, "2024-05-05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(tt.goal, Activity{At: tt.at})
			if got.CurrentStreak != tt.wantCurrent || got.LongestStreak != tt.wantLongest || got.LastReadDate != tt.wantLastRead {
				t.Errorf("Apply = current %d longest %d last %q; want %d %d %q",
					got.CurrentStreak, got.LongestStreak, got.LastReadDate,
					tt.wantCurrent, tt.wantLongest, tt.wantLastRead)
			}
		})
	}
}

func TestApplyIdempotentWithinDay(t *testing.T) {
	g := store.Goal{}
	at := day(2024, 6, 10)
	for i := 0; i < 500; i++ {
		g = Apply(g, Activity{At: at.Add(time.Duration(i) * time.Millisecond)})
	}
	if g.CurrentStreak != 1 || g.LongestStreak != 1 {
		t.Errorf("streak changed within a day: %+v", g)
	}
}

func TestApplyAccumulates(t *testing.T) {
	g := Apply(store.Goal{}, Activity{At: day(2024, 1, 1), Elapsed: 90 * time.Second})
	g = Apply(g, Activity{At: day(2024, 1, 1), Elapsed: -time.Second, Completed: true})
	if g.TotalTimeRead != 90*time.Second {
		t.Errorf("TotalTimeRead = %v", g.TotalTimeRead)
	}
	if g.TotalBooksCompleted != 1 {
		t.Errorf("TotalBooksCompleted = %d", g.TotalBooksCompleted)
	}
}

// trailingRun counts consecutive calendar days ending at the last date
func trailingRun(days []time.Time) int {
	run := 1
	for i := len(days) - 1; i > 0; i-- {
		cur, prev := Day(days[i]), Day(days[i-1])
		if cur == prev {
			continue
		}
		if Day(days[i].AddDate(0, 0, -1)) != prev {
			break
		}
		run++
	}
	return run
}

func TestStreakEqualsTrailingRun(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		cur := day(2023, 12, 20)
		var days []time.Time
		g := store.Goal{}
		longest := 0
		for i := 0; i < 1+rng.Intn(40); i++ {
			cur = cur.AddDate(0, 0, rng.Intn(3))
			days = append(days, cur)
			g = Apply(g, Activity{At: cur})
			longest = max(longest, trailingRun(days))
		}
		if want := trailingRun(days); g.CurrentStreak != want {
			t.Fatalf("trial %d: CurrentStreak = %d, want %d", trial, g.CurrentStreak, want)
		}
		if g.LongestStreak != longest {
			t.Fatalf("trial %d: LongestStreak = %d, want %d", trial, g.LongestStreak, longest)
		}
	}
}

type memGoalStore struct {
	goal store.Goal
	puts int
	fail error
}

func (m *memGoalStore) GetGoal(context.Context) (*store.Goal, error) {
	g := m.goal
	return &g, nil
}

func (m *memGoalStore) PutGoal(_ context.Context, g *store.Goal) error {
	if m.fail != nil {
		return m.fail
	}
	m.puts++
	m.goal = *g
	return nil
}

func TestTrackerPersistsOnlyMeaningfulChanges(t *testing.T) {
	st := &memGoalStore{goal: store.Goal{DailyTarget: 20}}
	tr := NewTracker(st)
	now := day(2024, 7, 1)
	tr.now = func() time.Time { return now }
	ctx := context.Background()

	if _, err := tr.Record(ctx, Activity{At: now, Elapsed: time.Second}); err != nil {
		t.Fatal(err)
	}
	if st.puts != 1 {
		t.Fatalf("first read of the day should persist, puts = %d", st.puts)
	}

	for i := 0; i < 100; i++ {
		now = now.Add(100 * time.Millisecond)
		if _, err := tr.Record(ctx, Activity{At: now, Elapsed: 100 * time.Millisecond}); err != nil {
			t.Fatal(err)
		}
	}
	if st.puts != 1 {
		t.Errorf("time-only updates within the interval should not persist, puts = %d", st.puts)
	}

	now = now.Add(DefaultPersistInterval)
	if _, err := tr.Record(ctx, Activity{At: now, Elapsed: time.Second}); err != nil {
		t.Fatal(err)
	}
	if st.puts != 2 {
		t.Errorf("expected periodic save, puts = %d", st.puts)
	}

	if _, err := tr.Record(ctx, Activity{At: now, Completed: true}); err != nil {
		t.Fatal(err)
	}
	if st.puts != 3 || st.goal.TotalBooksCompleted != 1 {
		t.Errorf("completion should persist immediately: puts %d goal %+v", st.puts, st.goal)
	}

	if _, err := tr.Record(ctx, Activity{At: now, Elapsed: time.Second}); err != nil {
		t.Fatal(err)
	}
	if err := tr.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if st.puts != 4 {
		t.Errorf("Flush should save pending time, puts = %d", st.puts)
	}
	if err := tr.Flush(ctx); err != nil || st.puts != 4 {
		t.Errorf("clean Flush should not write, puts = %d", st.puts)
	}

	g, err := tr.Goal(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if g.DailyTarget != 20 || g.CurrentStreak != 1 {
		t.Errorf("Goal = %+v", g)
	}
}

func TestTrackerResetAndTarget(t *testing.T) {
	st := &memGoalStore{goal: store.Goal{DailyTarget: 20, CurrentStreak: 4, LongestStreak: 8, TotalBooksCompleted: 3}}
	tr := NewTracker(st)
	ctx := context.Background()

	if err := tr.SetDailyTarget(ctx, 45); err != nil {
		t.Fatal(err)
	}
	if err := tr.SetDailyTarget(ctx, -1); err == nil {
		t.Error("negative target accepted")
	}
	if err := tr.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	want := store.Goal{DailyTarget: 45}
	if st.goal != want {
		t.Errorf("after Reset goal = %+v, want %+v", st.goal, want)
	}

	st.goal = store.Goal{DailyTarget: 5}
	tr.Invalidate()
	g, _ := tr.Goal(ctx)
	if g.DailyTarget != 5 {
		t.Errorf("Invalidate did not reload: %+v", g)
	}
}

func TestTrackerSaveError(t *testing.T) {
	st := &memGoalStore{fail: errors.New("disk full")}
	tr := NewTracker(st)
	g, err := tr.Record(context.Background(), Activity{At: day(2024, 1, 1)})
	if err == nil {
		t.Fatal("expected save error")
	}
	if g.CurrentStreak != 1 {
		t.Errorf("in-memory goal should still advance: %+v", g)
	}
}
