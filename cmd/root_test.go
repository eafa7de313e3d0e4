package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"hdrcalc/internal/bracket"
	"hdrcalc/internal/shutter"
)

// setTestEnv はシミュレータの遅延をなくし、外部の設定を無効にする
func setTestEnv(t *testing.T) {
	t.Helper()

	t.Setenv("HDR_STUB_DELAY", "0")
	t.Setenv("HDR_VERIFY_DELAY", "1ms")
	t.Setenv("MQTT_BROKER", "")
	t.Setenv("LOG_LEVEL", "")
}

// run はルートコマンドを実行し、標準出力の内容を返す
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	setTestEnv(t)
	return execute(t, context.Background(), args...)
}

func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&errOut)

	configPath := filepath.Join(t.TempDir(), "missing.yaml")
	root.SetArgs(append([]string{"--config", configPath, "--log-level", "error"}, args...))

	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestSpeedsCommand(t *testing.T) {
	out, err := run(t, "speeds")
	if err != nil {
		t.Fatalf("speeds failed: %v", err)
	}
	for _, label := range []string{"1/8000", "1/125", `30"`} {
		if !strings.Contains(out, label) {
			t.Errorf("output missing %q", label)
		}
	}
}

func TestPlanCommand(t *testing.T) {
	out, err := run(t, "plan", "--shadow", "1/4", "--highlight", "1/1000", "--frames", "5", "--spacing", "1")
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if !strings.Contains(out, "Range: 8.0 EV") {
		t.Errorf("expected range line, got:\n%s", out)
	}
	if !strings.Contains(out, "Set 1:") {
		t.Errorf("expected set listing, got:\n%s", out)
	}
}

func TestPlanCommand_JSON(t *testing.T) {
	out, err := run(t, "plan", "--shadow", "1/4", "--highlight", "1/1000", "--json")
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}

	var result bracket.CalculationResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if result.RangeEV != 8 {
		t.Errorf("RangeEV = %v, want 8", result.RangeEV)
	}
	if len(result.Sets) == 0 {
		t.Error("expected at least one set")
	}
}

func TestPlanCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown shadow", []string{"plan", "--shadow", "bogus", "--highlight", "1/1000"}},
		{"missing highlight", []string{"plan", "--shadow", "1/4"}},
		{"zero frames", []string{"plan", "--shadow", "1/4", "--highlight", "1/1000", "--frames", "0"}},
		{"zero spacing", []string{"plan", "--shadow", "1/4", "--highlight", "1/1000", "--spacing", "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestValidateCommand(t *testing.T) {
	plan, err := bracket.Plan("1/30", "1/250", 5, 1)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	var labels []string
	for _, set := range plan.Sets {
		for _, s := range set {
			labels = append(labels, s.Label)
		}
	}

	out, err := run(t, "validate", "--shadow", "1/30", "--highlight", "1/250",
		"--available", strings.Join(labels, ","))
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !strings.Contains(out, "All speeds are available.") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestValidateCommand_Substitutions(t *testing.T) {
	out, err := run(t, "validate", "--shadow", "1/30", "--highlight", "1/250",
		"--available", "1/250,1/100,1/30", "--json")
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	var result shutter.ValidationResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if result.AllAvailable {
		t.Error("expected substitutions")
	}
	for _, sub := range result.Substitutions {
		if sub.Original.Label == sub.Substitute.Label {
			t.Errorf("substitution for %s points to itself", sub.Original.Label)
		}
	}
}

func TestValidateCommand_UnknownAvailable(t *testing.T) {
	_, err := run(t, "validate", "--shadow", "1/30", "--highlight", "1/250", "--available", "1/3000000")
	if err == nil {
		t.Fatal("expected error for unknown speed")
	}
}

func TestShootCommand(t *testing.T) {
	out, err := run(t, "shoot", "--shadow", "1/30", "--highlight", "1/250", "--frames", "5")
	if err != nil {
		t.Fatalf("shoot failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Result: success: 5 frames captured") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "5 of 5 frames") {
		t.Errorf("expected final progress line, got:\n%s", out)
	}
}

func TestShootCommand_Partial(t *testing.T) {
	out, err := run(t, "shoot", "--shadow", "1/4", "--highlight", "1/1000", "--fail-verify-after", "3")
	if err != nil {
		t.Fatalf("partial run should not be an error: %v", err)
	}
	if !strings.Contains(out, "Result: partial: 3 of") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "did not read back, retrying (attempt 2 of 3)") {
		t.Errorf("expected a retry line, got:\n%s", out)
	}
}

func TestShootCommand_Interrupted(t *testing.T) {
	setTestEnv(t)
	// 最初のコマンドで止まるようにする
	t.Setenv("HDR_STUB_DELAY", "10s")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := execute(t, ctx, "shoot", "--shadow", "1/30", "--highlight", "1/250")
	if err != nil {
		t.Fatalf("interrupted run should not be an error: %v", err)
	}
	if !strings.Contains(out, "Result: cancelled") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if strings.Contains(out, "0 of 0 frames") {
		t.Errorf("cancel must not print a reset progress line:\n%s", out)
	}
}

func TestShootCommand_WrongMode(t *testing.T) {
	out, err := run(t, "shoot", "--shadow", "1/30", "--highlight", "1/250", "--mode", "unknown")
	if err == nil {
		t.Fatalf("expected error, got output:\n%s", out)
	}
	if !strings.Contains(out, "Result: failed") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRootCommand_InvalidLogLevel(t *testing.T) {
	if _, err := run(t, "speeds", "--log-level", "loud"); err == nil {
		t.Error("expected error for invalid log level")
	}
}
