package timectrl

import (
	"context"
	"testing"
	"time"
)

func TestTimeControllerAdvancesScaledTime(t *testing.T) {
	start := time.Date(2030, time.June, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Millisecond, 1000)

	ticks := 0
	var last time.Time
	ctx, cancel := context.WithCancel(context.Background())
	tc.AddListener(func(now time.Time) {
		ticks++
		last = now
		if ticks == 3 {
			cancel()
		}
	})

	<-tc.Run(ctx)

	if ticks < 3 {
		t.Fatalf("listener fired %d times, want at least 3", ticks)
	}
	// One millisecond tick at 1000x advances one second of sim time.
	if got := last.Sub(start); got < 3*time.Second {
		t.Fatalf("sim time advanced %v, want at least 3s", got)
	}
	if !tc.Now().Equal(last) && tc.Now().Before(last) {
		t.Fatalf("Now() = %v regressed behind last tick %v", tc.Now(), last)
	}
}

func TestTimeControllerDefaultScale(t *testing.T) {
	start := time.Date(2030, time.June, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Second, 0)
	if tc.Scale != 1 {
		t.Fatalf("Scale = %v, want 1 for non-positive input", tc.Scale)
	}
	if !tc.Now().Equal(start) {
		t.Fatalf("Now() = %v, want start %v", tc.Now(), start)
	}
}
