package schedule

import (
	"testing"
	"time"
)

// at builds a fixed-zone timestamp so window math is tested independently
// of the host timezone.
func at(hour, min int) time.Time {
	loc := time.FixedZone("TST", 3*3600)
	return time.Date(2025, 6, 10, hour, min, 0, 0, loc)
}

func TestParseHHMM(t *testing.T) {
	tests := []struct {
		in      string
		h, m    int
		wantErr bool
	}{
		{"08:00", 8, 0, false},
		{"23:59", 23, 59, false},
		{"0:05", 0, 5, false},
		{"24:00", 0, 0, true},
		{"12:60", 0, 0, true},
		{"noon", 0, 0, true},
		{"", 0, 0, true},
	}
	for _, tt := range tests {
		h, m, err := ParseHHMM(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseHHMM(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseHHMM(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if h != tt.h || m != tt.m {
			t.Errorf("ParseHHMM(%q) = %d:%d, want %d:%d", tt.in, h, m, tt.h, tt.m)
		}
	}
}

func TestClampToWindow_Daytime(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"before window snaps to start", at(6, 30), at(8, 0)},
		{"inside window unchanged", at(12, 15), at(12, 15)},
		{"at window start unchanged", at(8, 0), at(8, 0)},
		{"at window end unchanged", at(17, 0), at(17, 0)},
		{"after window snaps to next day start", at(19, 0), at(8, 0).AddDate(0, 0, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClampToWindow(tt.in, "08:00", "17:00")
			if !got.Equal(tt.want) {
				t.Errorf("ClampToWindow(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestClampToWindow_CrossingMidnight(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"evening segment valid", at(23, 30), at(23, 30)},
		{"morning segment valid", at(2, 0), at(2, 0)},
		{"daytime dead zone snaps to evening opening", at(12, 0), at(21, 0)},
		{"exactly at opening unchanged", at(21, 0), at(21, 0)},
		{"exactly at close unchanged", at(6, 0), at(6, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClampToWindow(tt.in, "21:00", "06:00")
			if !got.Equal(tt.want) {
				t.Errorf("ClampToWindow(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// Clamping an already-clamped timestamp must be a no-op, and for daytime
// windows the result must always land inside [from, to].
func TestClampToWindow_Idempotent(t *testing.T) {
	windows := []struct{ from, to string }{
		{"08:00", "17:00"},
		{"21:00", "06:00"},
		{"00:00", "23:59"},
		{"09:30", "09:30"},
	}
	for _, w := range windows {
		for hour := 0; hour < 24; hour++ {
			for _, min := range []int{0, 29, 59} {
				in := at(hour, min)
				once := ClampToWindow(in, w.from, w.to)
				twice := ClampToWindow(once, w.from, w.to)
				if !twice.Equal(once) {
					t.Fatalf("clamp not idempotent for %v in %s-%s: %v then %v",
						in, w.from, w.to, once, twice)
				}
			}
		}
	}

	// Daytime windows keep the result inside the window bounds.
	for hour := 0; hour < 24; hour++ {
		got := ClampToWindow(at(hour, 45), "08:00", "17:00")
		hm := got.Hour()*60 + got.Minute()
		if hm < 8*60 || hm > 17*60 {
			t.Errorf("clamped time %v escapes 08:00-17:00", got)
		}
	}
}

func TestClampToWindow_MalformedWindow(t *testing.T) {
	in := at(13, 0)
	if got := ClampToWindow(in, "bogus", "17:00"); !got.Equal(in) {
		t.Errorf("malformed window should pass through, got %v", got)
	}
}

func TestNextFixedTime(t *testing.T) {
	base := at(10, 0)

	got := NextFixedTime(base, "15:30")
	if want := at(15, 30); !got.Equal(want) {
		t.Errorf("future time today: got %v, want %v", got, want)
	}

	got = NextFixedTime(base, "09:00")
	if want := at(9, 0).AddDate(0, 0, 1); !got.Equal(want) {
		t.Errorf("past time rolls to tomorrow: got %v, want %v", got, want)
	}

	// The exact current minute is not "still in the future".
	got = NextFixedTime(base, "10:00")
	if want := at(10, 0).AddDate(0, 0, 1); !got.Equal(want) {
		t.Errorf("same minute rolls to tomorrow: got %v, want %v", got, want)
	}
}
