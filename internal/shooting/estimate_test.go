package shooting

import (
	"testing"
	"time"

	"hdrcalc/internal/speeds"
)

func TestEstimatedTime(t *testing.T) {
	fast := [][]speeds.ShutterSpeed{{speeds.MustIndex(0), speeds.MustIndex(1), speeds.MustIndex(2)}}

	testCases := []struct {
		name     string
		sets     [][]speeds.ShutterSpeed
		overhead time.Duration
		want     int
	}{
		{"empty plan", nil, 2500 * time.Millisecond, 0},
		{"fast frames round up", fast, 2500 * time.Millisecond, 8},
		{"lower overhead", fast, 1500 * time.Millisecond, 5},
		{"long exposures", [][]speeds.ShutterSpeed{{speeds.MustIndex(54), speeds.MustIndex(51)}}, 2500 * time.Millisecond, 50},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EstimatedTime(tc.sets, tc.overhead); got != tc.want {
				t.Errorf("EstimatedTime = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestFormatEstimatedTime(t *testing.T) {
	testCases := map[int]string{
		0:   "0s",
		45:  "45s",
		60:  "1m 0s",
		125: "2m 5s",
		-3:  "0s",
	}

	for in, want := range testCases {
		if got := FormatEstimatedTime(in); got != want {
			t.Errorf("FormatEstimatedTime(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestSpeedWarnings(t *testing.T) {
	short := [][]speeds.ShutterSpeed{{speeds.MustIndex(39), speeds.MustIndex(48)}}
	if w := SpeedWarnings(short); len(w) != 0 {
		t.Errorf("Expected no warnings below 10s, got %+v", w)
	}

	long := [][]speeds.ShutterSpeed{{speeds.MustIndex(39)}, {speeds.MustIndex(49)}}
	w := SpeedWarnings(long)
	if len(w) != 1 {
		t.Fatalf("Expected 1 warning at 10s, got %d", len(w))
	}
	if w[0].Severity != SeverityCaution {
		t.Errorf("Expected caution, got %s", w[0].Severity)
	}
}
