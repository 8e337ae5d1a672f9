package schedule

import (
	"math/rand"
	"testing"
	"time"

	"personad/internal/config"
)

func testSchedule() config.ActivitySchedule {
	return config.ActivitySchedule{
		SleepPattern: config.SleepPattern{
			SleepStartHour: 1,
			WakeHour:       7,
		},
		HourlyActivity: []config.HourlyLevel{
			{Hours: "07-12", Level: 0.8},
			{Hours: "22-01", Level: 0.3},
		},
	}
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 8, 20, hour, minute, 0, 0, time.UTC)
}

func TestSleepWindow(t *testing.T) {
	s := New(testSchedule(), rand.New(rand.NewSource(1)), nil)

	if st := s.Check(at(3, 0)); st.IsActive || st.State != StateSleeping {
		t.Errorf("03:00 should be sleeping, got %+v", st)
	}
	if st := s.Check(at(10, 0)); !st.IsActive {
		t.Errorf("10:00 should be active, got %+v", st)
	}
}

func TestSleepingNextActiveIsWakeHour(t *testing.T) {
	s := New(testSchedule(), rand.New(rand.NewSource(1)), nil)

	st := s.Check(at(2, 30))
	if st.IsActive {
		t.Fatalf("expected sleeping, got %+v", st)
	}
	if st.NextActive.IsZero() || st.NextActive.Hour() < 5 || st.NextActive.Hour() > 12 {
		t.Errorf("next active should be the wake hour, got %v", st.NextActive)
	}
	if !st.NextActive.After(at(2, 30)) {
		t.Errorf("next active must be in the future: %v", st.NextActive)
	}
}

func TestOffDayInactiveUntilNextDay(t *testing.T) {
	cfg := testSchedule()
	cfg.RandomOffDay.Probability = 1.0
	s := New(cfg, rand.New(rand.NewSource(1)), nil)

	for _, hour := range []int{0, 9, 15, 23} {
		st := s.Check(at(hour, 0))
		if st.IsActive {
			t.Fatalf("off day must be inactive all day, active at %02d:00", hour)
		}
		if st.State != StateOffDay {
			t.Errorf("state = %s, want off_day", st.State)
		}
		want := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
		if !st.NextActive.Equal(want) {
			t.Errorf("next active = %v, want next midnight %v", st.NextActive, want)
		}
	}
}

func TestDegenerateWindowAlwaysSleeps(t *testing.T) {
	cfg := testSchedule()
	cfg.SleepPattern.SleepStartHour = 5
	cfg.SleepPattern.WakeHour = 5
	s := New(cfg, rand.New(rand.NewSource(3)), nil)
	s.deriveDay(at(0, 0))
	// Force the derived window to be degenerate regardless of noise.
	s.sleepStart, s.wakeHour = 5, 5
	s.isOffDay = false
	s.midnightHour = -1

	for hour := 0; hour < 24; hour++ {
		if st := s.Check(at(hour, 0)); st.IsActive {
			t.Fatalf("wake == sleep_start must always sleep, active at %02d:00", hour)
		}
	}
}

func TestBreakLatches(t *testing.T) {
	cfg := testSchedule()
	cfg.RandomBreaks = config.RandomBreaks{
		Probability:        1.0,
		DurationMinMinutes: 10,
		DurationMaxMinutes: 10,
	}
	s := New(cfg, rand.New(rand.NewSource(1)), nil)

	now := at(10, 0)
	if !s.ShouldTakeBreak(now) {
		t.Fatal("p=1 break should latch")
	}
	st := s.Check(now.Add(5 * time.Minute))
	if st.IsActive || st.State != StateOnBreak {
		t.Errorf("should be on break, got %+v", st)
	}
	st = s.Check(now.Add(11 * time.Minute))
	if !st.IsActive {
		t.Errorf("break should have expired, got %+v", st)
	}
}

func TestActivityLevel(t *testing.T) {
	s := New(testSchedule(), rand.New(rand.NewSource(1)), nil)

	if got := s.ActivityLevel(at(9, 0)); got != 0.8 {
		t.Errorf("09:00 level = %v, want 0.8", got)
	}
	if got := s.ActivityLevel(at(23, 0)); got != 0.3 {
		t.Errorf("23:00 wrap-around level = %v, want 0.3", got)
	}
	if got := s.ActivityLevel(at(0, 0)); got != 0.3 {
		t.Errorf("00:00 wrap-around level = %v, want 0.3", got)
	}
	if got := s.ActivityLevel(at(15, 0)); got != 0.5 {
		t.Errorf("unmatched hour level = %v, want default 0.5", got)
	}
}

func TestPaceMultiplierFloor(t *testing.T) {
	cfg := testSchedule()
	cfg.HourlyActivity = []config.HourlyLevel{{Hours: "00-24", Level: 0.01}}
	s := New(cfg, rand.New(rand.NewSource(1)), nil)

	if got := s.PaceMultiplier(at(12, 0)); got != 10 {
		t.Errorf("pace multiplier = %v, want 10 (1/0.1 floor)", got)
	}
}

func TestScheduleDerivedOncePerDay(t *testing.T) {
	cfg := testSchedule()
	cfg.SleepPattern.SleepVariance = 1
	cfg.SleepPattern.WakeVariance = 1
	s := New(cfg, rand.New(rand.NewSource(7)), nil)

	s.Check(at(10, 0))
	sleep, wake := s.sleepStart, s.wakeHour
	s.Check(at(14, 0))
	if s.sleepStart != sleep || s.wakeHour != wake {
		t.Error("same-day check must not re-derive the schedule")
	}
	if s.sleepStart < 0 || s.sleepStart > 5 {
		t.Errorf("sleep_start %v out of clamp [0,5]", s.sleepStart)
	}
	if s.wakeHour < 5 || s.wakeHour > 12 {
		t.Errorf("wake %v out of clamp [5,12]", s.wakeHour)
	}

	s.Check(at(10, 0).AddDate(0, 0, 1))
	if s.derivedDay != "2026-08-21" {
		t.Errorf("day rollover should re-derive, derivedDay = %s", s.derivedDay)
	}
}
