package camera

import (
	"errors"
	"testing"
	"time"
)

var testCamera = DiscoveredCamera{ID: "stub-1", Name: "ILCE-7RM5", Address: "192.168.122.1"}

func newTestConnectionService(t *testing.T, hw Hardware) (*ConnectionService, *MockDiscovery) {
	t.Helper()

	discovery := NewMockDiscovery([]DiscoveredCamera{testCamera})
	svc := NewConnectionService(discovery, hw, 0, nil)
	t.Cleanup(svc.Close)
	return svc, discovery
}

func TestConnectionService_InitialState(t *testing.T) {
	svc, _ := newTestConnectionService(t, NewSimulatedHardware(0))

	if !svc.State().Equal(StateDisconnected()) {
		t.Errorf("Expected disconnected, got %+v", svc.State())
	}
	if len(svc.Cameras()) != 0 {
		t.Error("Expected no cameras initially")
	}
	if svc.IsConnected() {
		t.Error("Expected IsConnected false")
	}
	if _, ok := svc.ConnectedCameraName(); ok {
		t.Error("Expected no connected camera name")
	}
}

func TestConnectionService_Discovery(t *testing.T) {
	svc, _ := newTestConnectionService(t, NewSimulatedHardware(0))

	svc.StartDiscovery()
	if svc.State().Kind != ConnDiscovering {
		t.Fatalf("Expected discovering, got %s", svc.State().Kind)
	}

	svc.Wait()

	cameras := svc.Cameras()
	if len(cameras) != 1 || cameras[0].ID != testCamera.ID {
		t.Fatalf("Expected discovered camera, got %+v", cameras)
	}
	if svc.State().Kind != ConnDiscovering {
		t.Errorf("discovery should keep the discovering state, got %s", svc.State().Kind)
	}
}

func TestConnectionService_DiscoveryError(t *testing.T) {
	svc, discovery := newTestConnectionService(t, NewSimulatedHardware(0))
	discovery.SetError(errors.New("network down"))

	svc.StartDiscovery()
	svc.Wait()

	if !svc.State().Equal(StateError(msgDiscoveryFailed)) {
		t.Errorf("Expected discovery error state, got %+v", svc.State())
	}
}

func TestConnectionService_StopDiscovery(t *testing.T) {
	svc, _ := newTestConnectionService(t, NewSimulatedHardware(0))

	svc.StartDiscovery()
	svc.Wait()
	svc.StopDiscovery()

	if svc.State().Kind != ConnDisconnected {
		t.Errorf("Expected disconnected, got %s", svc.State().Kind)
	}
	if len(svc.Cameras()) != 0 {
		t.Error("Expected cameras to be cleared")
	}
}

func TestConnectionService_ConnectManualMode(t *testing.T) {
	svc, _ := newTestConnectionService(t, NewSimulatedHardware(0))

	svc.Connect(testCamera)
	svc.Wait()

	if !svc.State().Equal(StateConnected(testCamera)) {
		t.Fatalf("Expected connected, got %+v", svc.State())
	}
	if !svc.IsConnected() {
		t.Error("Expected IsConnected true")
	}
	if name, ok := svc.ConnectedCameraName(); !ok || name != "ILCE-7RM5" {
		t.Errorf("ConnectedCameraName = %q, %v", name, ok)
	}

	// 接続済みなら StopDiscovery は何もしない
	svc.StopDiscovery()
	if !svc.IsConnected() {
		t.Error("StopDiscovery must not drop an established connection")
	}
}

func TestConnectionService_ConnectWrongMode(t *testing.T) {
	hw := NewSimulatedHardware(0)
	hw.SetExposureMode(ModeAperturePriority)
	svc, _ := newTestConnectionService(t, hw)

	svc.Connect(testCamera)
	svc.Wait()

	want := StateWrongMode(testCamera, ModeAperturePriority)
	if !svc.State().Equal(want) {
		t.Fatalf("Expected wrong mode, got %+v", svc.State())
	}

	// ダイヤルをMに回して再確認
	hw.SetExposureMode(ModeManual)
	if !svc.RetryModeCheck() {
		t.Fatal("RetryModeCheck should run from wrong mode")
	}
	svc.Wait()

	if !svc.IsConnected() {
		t.Errorf("Expected connected after retry, got %+v", svc.State())
	}

	// 接続済みからは再確認しない
	if svc.RetryModeCheck() {
		t.Error("RetryModeCheck should be ignored when connected")
	}
}

func TestConnectionService_ModeCheckError(t *testing.T) {
	hw := NewSimulatedHardware(0)
	hw.SetDisconnected(true)
	svc, _ := newTestConnectionService(t, hw)

	svc.Connect(testCamera)
	svc.Wait()

	if !svc.State().Equal(StateError(msgModeReadFailed)) {
		t.Errorf("Expected mode read error, got %+v", svc.State())
	}
}

func TestConnectionService_StaleConnectIgnored(t *testing.T) {
	discovery := NewMockDiscovery(nil)
	svc := NewConnectionService(discovery, NewSimulatedHardware(0), 30*time.Millisecond, nil)
	defer svc.Close()

	other := DiscoveredCamera{ID: "stub-2", Name: "ILCE-7M4", Address: "192.168.122.2"}

	svc.Connect(testCamera)
	svc.Connect(other)
	svc.Wait()

	state := svc.State()
	if !state.Equal(StateConnected(other)) {
		t.Errorf("Expected only the latest camera to connect, got %+v", state)
	}
}

func TestConnectionService_DisconnectDuringConnect(t *testing.T) {
	discovery := NewMockDiscovery(nil)
	svc := NewConnectionService(discovery, NewSimulatedHardware(0), 30*time.Millisecond, nil)
	defer svc.Close()

	svc.Connect(testCamera)
	svc.Disconnect()
	svc.Wait()

	if svc.State().Kind != ConnDisconnected {
		t.Errorf("late connect result must be discarded, got %+v", svc.State())
	}
}

func TestConnectionService_RetryFromError(t *testing.T) {
	svc, discovery := newTestConnectionService(t, NewSimulatedHardware(0))
	discovery.SetError(errors.New("network down"))

	svc.StartDiscovery()
	svc.Wait()

	discovery.SetError(nil)
	svc.Retry()
	if svc.State().Kind != ConnDiscovering {
		t.Fatalf("Expected discovering after retry, got %s", svc.State().Kind)
	}
	svc.Wait()

	if len(svc.Cameras()) != 1 {
		t.Errorf("Expected camera after retry, got %d", len(svc.Cameras()))
	}
}

func TestConnectionState_Equal(t *testing.T) {
	renamed := DiscoveredCamera{ID: testCamera.ID, Name: "renamed", Address: "10.0.0.1"}

	testCases := []struct {
		name string
		a, b ConnectionState
		want bool
	}{
		{"same kind no payload", StateDiscovering(), StateDiscovering(), true},
		{"different kind", StateDisconnected(), StateDiscovering(), false},
		{"connected compares id only", StateConnected(testCamera), StateConnected(renamed), true},
		{"connected different id", StateConnected(testCamera), StateConnected(DiscoveredCamera{ID: "x"}), false},
		{"wrong mode different mode", StateWrongMode(testCamera, ModeProgramAuto), StateWrongMode(testCamera, ModeShutterPriority), false},
		{"error same message", StateError("boom"), StateError("boom"), true},
		{"error different message", StateError("boom"), StateError("bang"), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Equal(tc.b); got != tc.want {
				t.Errorf("Equal = %v, want %v", got, tc.want)
			}
		})
	}
}
