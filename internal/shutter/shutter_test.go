package shutter

import (
	"errors"
	"math"
	"testing"

	"hdrcalc/internal/speeds"
)

func speed(t *testing.T, label string) speeds.ShutterSpeed {
	t.Helper()
	s, err := speeds.Lookup(label)
	if err != nil {
		t.Fatalf("Lookup(%q) failed: %v", label, err)
	}
	return s
}

func TestToComponents(t *testing.T) {
	testCases := []struct {
		label string
		num   float64
		den   float64
	}{
		// 分数
		{"1/125", 1, 125},
		{"1/8000", 1, 8000},
		{"1/2", 1, 2},
		{"1/4", 1, 4},
		// 整数秒
		{"1\"", 1, 1},
		{"2\"", 2, 1},
		{"5\"", 5, 1},
		{"30\"", 30, 1},
		// 小数秒
		{"0.3\"", 3, 10},
		{"0.4\"", 4, 10},
		{"0.6\"", 6, 10},
		{"0.8\"", 8, 10},
		{"1.3\"", 13, 10},
		{"1.6\"", 16, 10},
		{"2.5\"", 25, 10},
		{"3.2\"", 32, 10},
	}

	for _, tc := range testCases {
		t.Run(tc.label, func(t *testing.T) {
			c := ToComponents(speed(t, tc.label))
			if c.Numerator != tc.num || c.Denominator != tc.den {
				t.Errorf("ToComponents(%s) = %v/%v, want %v/%v", tc.label, c.Numerator, c.Denominator, tc.num, tc.den)
			}
		})
	}
}

func TestParseLabel_Invalid(t *testing.T) {
	for _, label := range []string{"", "abc", "1/x", "x/2", "1/2/3", "fast\"", "125"} {
		if _, err := ParseLabel(label); !errors.Is(err, ErrInvalidLabel) {
			t.Errorf("ParseLabel(%q): expected ErrInvalidLabel, got %v", label, err)
		}
	}
}

func TestToComponents_PanicsOnCorruptLabel(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for corrupt label")
		}
	}()
	ToComponents(speeds.ShutterSpeed{Index: 99, Label: "bogus"})
}

func TestFromComponents(t *testing.T) {
	testCases := []struct {
		name string
		num  float64
		den  float64
		want string
	}{
		{"fraction 1/125", 1, 125, "1/125"},
		{"fraction 1/8000", 1, 8000, "1/8000"},
		{"whole seconds", 2, 1, "2\""},
		{"decimal seconds", 3, 10, "0.3\""},
		{"half second", 5, 10, "1/2"},
		{"slightly off snaps", 10, 1260, "1/125"},
		{"thirty seconds", 300, 10, "30\""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FromComponents(tc.num, tc.den); got.Label != tc.want {
				t.Errorf("FromComponents(%v, %v) = %s, want %s", tc.num, tc.den, got.Label, tc.want)
			}
		})
	}
}

func TestRoundTrip_AllSpeeds(t *testing.T) {
	for _, s := range speeds.All() {
		c := ToComponents(s)

		back := FromComponents(c.Numerator, c.Denominator)
		if back.Index != s.Index {
			t.Errorf("%s round-tripped to %s", s.Label, back.Label)
		}

		if math.Abs(c.Seconds()-s.Seconds) > 0.001 {
			t.Errorf("%s: components give %vs, want %vs", s.Label, c.Seconds(), s.Seconds)
		}
	}
}

func TestValidateSpeeds_AllAvailable(t *testing.T) {
	sets := [][]speeds.ShutterSpeed{
		{speeds.MustIndex(9), speeds.MustIndex(12)},
		{speeds.MustIndex(12), speeds.MustIndex(15)},
	}

	result := ValidateSpeeds(sets, speeds.All())
	if !result.AllAvailable {
		t.Error("Expected all speeds to be available")
	}
	if len(result.Substitutions) != 0 {
		t.Errorf("Expected no substitutions, got %d", len(result.Substitutions))
	}
}

func TestValidateSpeeds_FindsSubstitutes(t *testing.T) {
	// 1/125 を持たないカメラ
	available := []speeds.ShutterSpeed{speed(t, "1/100"), speed(t, "1/250"), speed(t, "1/60")}
	sets := [][]speeds.ShutterSpeed{{speed(t, "1/125"), speed(t, "1/60")}}

	result := ValidateSpeeds(sets, available)
	if result.AllAvailable {
		t.Fatal("Expected missing speeds")
	}
	if len(result.Substitutions) != 1 {
		t.Fatalf("Expected 1 substitution, got %d", len(result.Substitutions))
	}

	want := Substitution{Original: speed(t, "1/125"), Substitute: speed(t, "1/100")}
	if !result.Substitutions[0].Equal(want) {
		t.Errorf("substitution = %s -> %s, want 1/125 -> 1/100",
			result.Substitutions[0].Original.Label, result.Substitutions[0].Substitute.Label)
	}
}

func TestValidateSpeeds_DuplicateAcrossSetsReportedOnce(t *testing.T) {
	available := []speeds.ShutterSpeed{speed(t, "1/250"), speed(t, "1/40")}
	shared := speed(t, "1/60")
	sets := [][]speeds.ShutterSpeed{
		{speed(t, "1/250"), shared},
		{shared, speed(t, "1/40")},
	}

	result := ValidateSpeeds(sets, available)
	if len(result.Substitutions) != 1 {
		t.Fatalf("Expected exactly 1 substitution, got %d", len(result.Substitutions))
	}
	if result.Substitutions[0].Substitute.Label != "1/40" {
		t.Errorf("Expected 1/40 as nearest to 1/60, got %s", result.Substitutions[0].Substitute.Label)
	}
}

func TestValidateSpeeds_EmptyAvailable(t *testing.T) {
	sets := [][]speeds.ShutterSpeed{{speed(t, "1/125")}}

	result := ValidateSpeeds(sets, nil)
	if result.AllAvailable {
		t.Error("Expected allAvailable=false with nothing available")
	}
	if len(result.Substitutions) != 0 {
		t.Errorf("Expected no substitutions, got %d", len(result.Substitutions))
	}
}

func TestValidateSpeeds_EmptySets(t *testing.T) {
	result := ValidateSpeeds(nil, speeds.All())
	if !result.AllAvailable {
		t.Error("Empty plan should be fully available")
	}
}
