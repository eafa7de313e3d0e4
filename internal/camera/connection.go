package camera

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"
)

const (
	msgDiscoveryFailed = "Camera discovery failed"
	msgModeReadFailed  = "Could not read camera mode"
)

// ConnectionService はカメラの検出から接続、露出モード確認までの流れを管理する
//
// 非同期処理の結果は、現在の状態が同じカメラの同じ段階にあるときだけ反映する。
// 途中で切断や別カメラへの接続が行われた場合、古い結果は捨てられる。
type ConnectionService struct {
	discovery Discovery
	hardware  Hardware
	logger    *slog.Logger

	state   ConnectionState
	cameras []DiscoveredCamera
	scanID  int // 検出を開始するたびに増える
	mu      sync.RWMutex

	connectDelay time.Duration

	// 制御用
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConnectionService は新しいConnectionServiceを作成する
func NewConnectionService(discovery Discovery, hardware Hardware, connectDelay time.Duration, logger *slog.Logger) *ConnectionService {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &ConnectionService{
		discovery:    discovery,
		hardware:     hardware,
		logger:       logger,
		state:        StateDisconnected(),
		connectDelay: connectDelay,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// State は現在の接続状態を返す
func (s *ConnectionService) State() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Cameras は検出済みのカメラ一覧を返す
func (s *ConnectionService) Cameras() []DiscoveredCamera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.cameras)
}

// IsConnected は接続済みかどうかを返す
func (s *ConnectionService) IsConnected() bool {
	return s.State().Kind == ConnConnected
}

// ConnectedCameraName は接続中のカメラ名を返す。未接続なら空文字と false
func (s *ConnectionService) ConnectedCameraName() (string, bool) {
	state := s.State()
	if state.Kind != ConnConnected {
		return "", false
	}
	return state.Camera.Name, true
}

// StartDiscovery はカメラの検出を開始する
func (s *ConnectionService) StartDiscovery() {
	s.mu.Lock()
	s.state = StateDiscovering()
	s.cameras = nil
	s.scanID++
	scanID := s.scanID
	s.mu.Unlock()

	s.logger.Info("camera: discovery started")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		cameras, err := s.discovery.Scan(s.ctx)

		s.mu.Lock()
		defer s.mu.Unlock()

		// 検出中のまま、かつ同じ検出要求の結果である場合だけ反映する
		if s.state.Kind != ConnDiscovering || s.scanID != scanID {
			return
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Warn("camera: discovery failed", "error", err)
			s.state = StateError(msgDiscoveryFailed)
			return
		}

		s.cameras = cameras
		s.logger.Info("camera: discovery finished", "cameras", len(cameras))
	}()
}

// StopDiscovery は検出を止めて未接続状態に戻る。接続済みの場合は何もしない
func (s *ConnectionService) StopDiscovery() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Kind == ConnConnected {
		return
	}
	s.state = StateDisconnected()
	s.cameras = nil
}

// Connect はカメラへの接続を開始する
// 接続後に露出モードを確認し、マニュアルなら接続済みになる
func (s *ConnectionService) Connect(camera DiscoveredCamera) {
	s.mu.Lock()
	s.state = StateConnecting(camera)
	s.mu.Unlock()

	s.logger.Info("camera: connecting", "camera_id", camera.ID, "name", camera.Name, "address", camera.Address)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if err := waitFor(s.ctx, s.connectDelay); err != nil {
			return
		}

		s.mu.Lock()
		if !s.state.isFor(ConnConnecting, camera.ID) {
			s.mu.Unlock()
			return
		}
		s.state = StateModeCheck(camera)
		s.mu.Unlock()

		s.checkMode(camera)
	}()
}

// RetryModeCheck はモード不一致の状態から露出モードを再確認する
// モード不一致の状態でなければ false を返す
func (s *ConnectionService) RetryModeCheck() bool {
	s.mu.Lock()
	if s.state.Kind != ConnWrongMode {
		s.mu.Unlock()
		return false
	}
	camera := s.state.Camera
	s.state = StateModeCheck(camera)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.checkMode(camera)
	}()
	return true
}

// Disconnect は切断して未接続状態に戻る
func (s *ConnectionService) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Kind == ConnConnected {
		s.logger.Info("camera: disconnected", "camera_id", s.state.Camera.ID)
	}
	s.state = StateDisconnected()
	s.cameras = nil
}

// Retry は検出からやり直す
func (s *ConnectionService) Retry() {
	s.StartDiscovery()
}

// Wait は実行中の非同期処理がすべて終わるまで待つ
func (s *ConnectionService) Wait() {
	s.wg.Wait()
}

// Close は実行中の非同期処理を止める
func (s *ConnectionService) Close() {
	s.cancel()
	s.wg.Wait()
}

// checkMode は露出モードを読み取り、状態を更新する
func (s *ConnectionService) checkMode(camera DiscoveredCamera) {
	_, err := CheckManualMode(s.ctx, s.hardware)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.isFor(ConnModeCheck, camera.ID) {
		return
	}

	var wrongMode *WrongModeError
	switch {
	case err == nil:
		s.logger.Info("camera: connected", "camera_id", camera.ID, "name", camera.Name)
		s.state = StateConnected(camera)
	case errors.As(err, &wrongMode):
		s.logger.Warn("camera: not in manual mode", "camera_id", camera.ID, "error", err)
		s.state = StateWrongMode(camera, wrongMode.Mode)
	default:
		s.logger.Warn("camera: mode check failed", "camera_id", camera.ID, "error", err)
		s.state = StateError(msgModeReadFailed)
	}
}

// waitFor はシミュレートした遅延を待つ。途中で ctx が終われば ctx.Err()
func waitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
