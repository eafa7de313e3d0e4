package camera

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"hdrcalc/internal/shutter"
	"hdrcalc/internal/speeds"
)

// errSetRejected はシミュレータが設定コマンドを拒否したことを表す
var errSetRejected = errors.New("simulated camera rejected shutter speed")

// SimulatedHardware は実機の代わりに使うカメラのシミュレータ
//
// シャッタースピードは通信時と同じ分子/分母で保持し、読み戻し時に最近傍のスピードへ変換する。
// 各コマンドは delay だけ待ってから応答する。
type SimulatedHardware struct {
	mu    sync.Mutex
	delay time.Duration
	mode  ExposureMode

	current   *shutter.Components
	available []speeds.ShutterSpeed

	// テスト制御用
	shouldFailVerify  bool
	shouldFailSet     bool
	shouldFailCapture bool
	disconnected      bool
	failVerifyAfter   int // この枚数を撮影した後は読み戻しを失敗させる（0以下で無効）

	setCalls     int
	readCalls    int
	captureCalls int
}

// NewSimulatedHardware は新しいSimulatedHardwareを作成する
func NewSimulatedHardware(delay time.Duration) *SimulatedHardware {
	return &SimulatedHardware{
		delay: delay,
		mode:  ModeManual,
	}
}

// ReadExposureMode は設定されている露出モードを返す
func (h *SimulatedHardware) ReadExposureMode(ctx context.Context) (ExposureMode, error) {
	if err := h.wait(ctx); err != nil {
		return ModeUnknown, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.disconnected {
		return ModeUnknown, ErrDisconnected
	}
	return h.mode, nil
}

// SetShutterSpeed はシャッタースピードを分子/分母で保持する
func (h *SimulatedHardware) SetShutterSpeed(ctx context.Context, speed speeds.ShutterSpeed) error {
	if err := h.wait(ctx); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.setCalls++
	if h.disconnected {
		return ErrDisconnected
	}
	if h.shouldFailSet {
		return fmt.Errorf("%w: %s", errSetRejected, speed.Label)
	}
	if len(h.available) > 0 && !slices.ContainsFunc(h.available, func(s speeds.ShutterSpeed) bool {
		return s.Index == speed.Index
	}) {
		return fmt.Errorf("%w: %s not supported", errSetRejected, speed.Label)
	}

	c := shutter.ToComponents(speed)
	h.current = &c
	return nil
}

// ReadShutterSpeed は保持している値を最近傍のスピードに変換して返す
func (h *SimulatedHardware) ReadShutterSpeed(ctx context.Context) (speeds.ShutterSpeed, error) {
	if err := h.wait(ctx); err != nil {
		return speeds.ShutterSpeed{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.readCalls++
	if h.disconnected {
		return speeds.ShutterSpeed{}, ErrDisconnected
	}

	got := speeds.Fastest()
	if h.current != nil {
		got = shutter.FromComponents(h.current.Numerator, h.current.Denominator)
	}

	failAfter := h.failVerifyAfter > 0 && h.captureCalls >= h.failVerifyAfter
	if h.shouldFailVerify || failAfter {
		// 不一致を再現するため隣のスピードを返す
		return speeds.MustIndex((got.Index + 1) % speeds.Len()), nil
	}
	return got, nil
}

// CaptureAndWaitForBuffer は撮影を模擬する
func (h *SimulatedHardware) CaptureAndWaitForBuffer(ctx context.Context) error {
	if err := h.wait(ctx); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.disconnected {
		return ErrDisconnected
	}
	if h.shouldFailCapture {
		return ErrCaptureTimeout
	}
	h.captureCalls++
	return nil
}

// AvailableShutterSpeeds はカメラが対応するスピードを返す
// 明示的に設定されていない場合はカタログ全体
func (h *SimulatedHardware) AvailableShutterSpeeds(ctx context.Context) ([]speeds.ShutterSpeed, error) {
	if err := h.wait(ctx); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.disconnected {
		return nil, ErrDisconnected
	}
	if len(h.available) == 0 {
		return speeds.All(), nil
	}
	return slices.Clone(h.available), nil
}

// wait はコマンドの往復時間を模擬する
func (h *SimulatedHardware) wait(ctx context.Context) error {
	h.mu.Lock()
	delay := h.delay
	h.mu.Unlock()

	return waitFor(ctx, delay)
}

// SetExposureMode は露出モードを設定する
func (h *SimulatedHardware) SetExposureMode(mode ExposureMode) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mode = mode
}

// SetAvailable は対応スピードを制限する。nil でカタログ全体に戻る
func (h *SimulatedHardware) SetAvailable(available []speeds.ShutterSpeed) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.available = slices.Clone(available)
}

// SetShouldFailVerify はテスト用に読み戻しの不一致を設定する
func (h *SimulatedHardware) SetShouldFailVerify(shouldFail bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shouldFailVerify = shouldFail
}

// SetFailVerifyAfter はテスト用に、n 枚撮影した後の読み戻しを不一致にする
func (h *SimulatedHardware) SetFailVerifyAfter(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failVerifyAfter = n
}

// SetShouldFailSet はテスト用に設定コマンドの失敗を設定する
func (h *SimulatedHardware) SetShouldFailSet(shouldFail bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shouldFailSet = shouldFail
}

// SetShouldFailCapture はテスト用に撮影の失敗を設定する
func (h *SimulatedHardware) SetShouldFailCapture(shouldFail bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shouldFailCapture = shouldFail
}

// SetDisconnected はテスト用に切断状態を設定する
func (h *SimulatedHardware) SetDisconnected(disconnected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnected = disconnected
}

// Captures は成功した撮影回数を返す
func (h *SimulatedHardware) Captures() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.captureCalls
}

// Calls は設定・読み戻し・撮影のコマンド数を返す
func (h *SimulatedHardware) Calls() (set, read, capture int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.setCalls, h.readCalls, h.captureCalls
}
