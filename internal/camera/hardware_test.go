package camera

import (
	"context"
	"errors"
	"testing"
	"time"

	"hdrcalc/internal/speeds"
)

func TestSimulatedHardware_SetAndReadBack(t *testing.T) {
	ctx := context.Background()
	hw := NewSimulatedHardware(0)

	for _, s := range speeds.All() {
		if err := hw.SetShutterSpeed(ctx, s); err != nil {
			t.Fatalf("SetShutterSpeed(%s) failed: %v", s.Label, err)
		}

		got, err := hw.ReadShutterSpeed(ctx)
		if err != nil {
			t.Fatalf("ReadShutterSpeed failed: %v", err)
		}
		if got.Index != s.Index {
			t.Errorf("read back %s after setting %s", got.Label, s.Label)
		}
	}
}

func TestSimulatedHardware_ReadBeforeSet(t *testing.T) {
	hw := NewSimulatedHardware(0)

	got, err := hw.ReadShutterSpeed(context.Background())
	if err != nil {
		t.Fatalf("ReadShutterSpeed failed: %v", err)
	}
	if got.Index != 0 {
		t.Errorf("Expected fastest speed before any set, got %s", got.Label)
	}
}

func TestSimulatedHardware_FailVerify(t *testing.T) {
	ctx := context.Background()
	hw := NewSimulatedHardware(0)
	hw.SetShouldFailVerify(true)

	if err := hw.SetShutterSpeed(ctx, speeds.MustIndex(18)); err != nil {
		t.Fatalf("SetShutterSpeed failed: %v", err)
	}

	got, err := hw.ReadShutterSpeed(ctx)
	if err != nil {
		t.Fatalf("ReadShutterSpeed failed: %v", err)
	}
	if got.Index != 19 {
		t.Errorf("Expected mismatched index 19, got %d", got.Index)
	}
}

func TestSimulatedHardware_FailVerifyAfter(t *testing.T) {
	ctx := context.Background()
	hw := NewSimulatedHardware(0)
	hw.SetFailVerifyAfter(1)

	_ = hw.SetShutterSpeed(ctx, speeds.MustIndex(5))
	if got, _ := hw.ReadShutterSpeed(ctx); got.Index != 5 {
		t.Fatalf("first read should match, got %s", got.Label)
	}

	if err := hw.CaptureAndWaitForBuffer(ctx); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	if got, _ := hw.ReadShutterSpeed(ctx); got.Index == 5 {
		t.Error("read after first capture should mismatch")
	}
}

func TestSimulatedHardware_Disconnected(t *testing.T) {
	ctx := context.Background()
	hw := NewSimulatedHardware(0)
	hw.SetDisconnected(true)

	if _, err := hw.ReadExposureMode(ctx); !errors.Is(err, ErrDisconnected) {
		t.Errorf("ReadExposureMode: expected ErrDisconnected, got %v", err)
	}
	if err := hw.SetShutterSpeed(ctx, speeds.Fastest()); !errors.Is(err, ErrDisconnected) {
		t.Errorf("SetShutterSpeed: expected ErrDisconnected, got %v", err)
	}
	if _, err := hw.ReadShutterSpeed(ctx); !errors.Is(err, ErrDisconnected) {
		t.Errorf("ReadShutterSpeed: expected ErrDisconnected, got %v", err)
	}
	if err := hw.CaptureAndWaitForBuffer(ctx); !errors.Is(err, ErrDisconnected) {
		t.Errorf("Capture: expected ErrDisconnected, got %v", err)
	}
}

func TestSimulatedHardware_FailSetAndCapture(t *testing.T) {
	ctx := context.Background()
	hw := NewSimulatedHardware(0)

	hw.SetShouldFailSet(true)
	if err := hw.SetShutterSpeed(ctx, speeds.Fastest()); err == nil || errors.Is(err, ErrDisconnected) {
		t.Errorf("Expected a non-disconnect set error, got %v", err)
	}

	hw.SetShouldFailCapture(true)
	if err := hw.CaptureAndWaitForBuffer(ctx); !errors.Is(err, ErrCaptureTimeout) {
		t.Errorf("Expected ErrCaptureTimeout, got %v", err)
	}
	if hw.Captures() != 0 {
		t.Errorf("failed capture must not be counted, got %d", hw.Captures())
	}
}

func TestSimulatedHardware_AvailableSpeeds(t *testing.T) {
	ctx := context.Background()
	hw := NewSimulatedHardware(0)

	all, err := hw.AvailableShutterSpeeds(ctx)
	if err != nil {
		t.Fatalf("AvailableShutterSpeeds failed: %v", err)
	}
	if len(all) != speeds.Len() {
		t.Errorf("Expected full catalog, got %d", len(all))
	}

	limited := []speeds.ShutterSpeed{speeds.MustIndex(9), speeds.MustIndex(12)}
	hw.SetAvailable(limited)

	got, _ := hw.AvailableShutterSpeeds(ctx)
	if len(got) != 2 {
		t.Fatalf("Expected 2 speeds, got %d", len(got))
	}

	// 対応外のスピードは設定できない
	if err := hw.SetShutterSpeed(ctx, speeds.MustIndex(10)); err == nil {
		t.Error("Expected unsupported speed to be rejected")
	}
}

func TestSimulatedHardware_DelayHonoursContext(t *testing.T) {
	hw := NewSimulatedHardware(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := hw.ReadExposureMode(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestParseExposureMode(t *testing.T) {
	testCases := map[string]ExposureMode{
		"manual":            ModeManual,
		"aperture_priority": ModeAperturePriority,
		"shutter_priority":  ModeShutterPriority,
		"program_auto":      ModeProgramAuto,
		"bulb":              ModeUnknown,
		"":                  ModeUnknown,
	}

	for in, want := range testCases {
		if got := ParseExposureMode(in); got != want {
			t.Errorf("ParseExposureMode(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestErrorMessages(t *testing.T) {
	mismatch := &MismatchError{Requested: speeds.MustIndex(18), Actual: speeds.MustIndex(19)}
	if mismatch.Error() != "shutter speed mismatch: requested 1/125, camera reports 1/100" {
		t.Errorf("unexpected message: %s", mismatch.Error())
	}
}

func TestExposureMode_String(t *testing.T) {
	testCases := map[ExposureMode]string{
		ModeManual:           "Manual",
		ModeAperturePriority: "Aperture Priority",
		ModeShutterPriority:  "Shutter Priority",
		ModeProgramAuto:      "Program Auto",
		ModeUnknown:          "Unknown",
		ExposureMode("bulb"): "Unknown",
	}

	for mode, want := range testCases {
		if got := mode.String(); got != want {
			t.Errorf("%q.String() = %q, want %q", string(mode), got, want)
		}
	}
}

func TestCheckManualMode(t *testing.T) {
	ctx := context.Background()

	t.Run("manual", func(t *testing.T) {
		hw := NewSimulatedHardware(0)
		mode, err := CheckManualMode(ctx, hw)
		if err != nil || mode != ModeManual {
			t.Errorf("got (%s, %v), want (manual, nil)", mode, err)
		}
	})

	t.Run("wrong mode", func(t *testing.T) {
		hw := NewSimulatedHardware(0)
		hw.SetExposureMode(ModeShutterPriority)

		mode, err := CheckManualMode(ctx, hw)
		var wrongMode *WrongModeError
		if !errors.As(err, &wrongMode) {
			t.Fatalf("Expected *WrongModeError, got %v", err)
		}
		if wrongMode.Mode != ModeShutterPriority || mode != ModeShutterPriority {
			t.Errorf("unexpected mode: %s / %s", wrongMode.Mode, mode)
		}
		if err.Error() != "camera is in Shutter Priority mode, manual required" {
			t.Errorf("unexpected message: %s", err.Error())
		}
	})

	t.Run("disconnected", func(t *testing.T) {
		hw := NewSimulatedHardware(0)
		hw.SetDisconnected(true)

		if _, err := CheckManualMode(ctx, hw); !errors.Is(err, ErrDisconnected) {
			t.Errorf("Expected ErrDisconnected, got %v", err)
		}
	})
}
