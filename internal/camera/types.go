package camera

import (
	"context"
	"errors"
	"fmt"

	"hdrcalc/internal/speeds"
)

// ExposureMode はカメラの露出モード
type ExposureMode string

const (
	ModeManual           ExposureMode = "manual"            // マニュアル
	ModeAperturePriority ExposureMode = "aperture_priority" // 絞り優先
	ModeShutterPriority  ExposureMode = "shutter_priority"  // シャッター優先
	ModeProgramAuto      ExposureMode = "program_auto"      // プログラムオート
	ModeUnknown          ExposureMode = "unknown"           // 不明
)

// String は表示用のモード名を返す
func (m ExposureMode) String() string {
	switch m {
	case ModeManual:
		return "Manual"
	case ModeAperturePriority:
		return "Aperture Priority"
	case ModeShutterPriority:
		return "Shutter Priority"
	case ModeProgramAuto:
		return "Program Auto"
	default:
		return "Unknown"
	}
}

// ParseExposureMode は文字列から露出モードを得る。未知の値は ModeUnknown
func ParseExposureMode(s string) ExposureMode {
	switch m := ExposureMode(s); m {
	case ModeManual, ModeAperturePriority, ModeShutterPriority, ModeProgramAuto:
		return m
	default:
		return ModeUnknown
	}
}

var (
	// ErrDisconnected はカメラとの接続が失われたことを表す
	// 撮影中に受け取った場合、その撮影全体を中止する
	ErrDisconnected = errors.New("camera disconnected")

	// ErrCaptureTimeout は撮影後にバッファが準備できなかったことを表す
	ErrCaptureTimeout = errors.New("capture timed out waiting for buffer")
)

// MismatchError は読み戻したシャッタースピードが要求と異なることを表す
type MismatchError struct {
	Requested speeds.ShutterSpeed
	Actual    speeds.ShutterSpeed
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("shutter speed mismatch: requested %s, camera reports %s", e.Requested.Label, e.Actual.Label)
}

// WrongModeError はカメラがマニュアルモードでないことを表す
type WrongModeError struct {
	Mode ExposureMode
}

func (e *WrongModeError) Error() string {
	return fmt.Sprintf("camera is in %s mode, manual required", e.Mode)
}

// Hardware は撮影シーケンスが必要とするカメラ操作
//
// 実機ドライバでもシミュレータでもよい。
// 1台のカメラは一度に1つのコマンドしか受け付けないため、呼び出し側は並行に呼ばないこと。
type Hardware interface {
	// ReadExposureMode は現在の露出モードを読み取る
	ReadExposureMode(ctx context.Context) (ExposureMode, error)

	// SetShutterSpeed はシャッタースピードを設定する
	SetShutterSpeed(ctx context.Context, speed speeds.ShutterSpeed) error

	// ReadShutterSpeed は現在のシャッタースピードを読み戻す
	ReadShutterSpeed(ctx context.Context) (speeds.ShutterSpeed, error)

	// CaptureAndWaitForBuffer はシャッターを切り、フレームバッファの準備完了を待つ
	CaptureAndWaitForBuffer(ctx context.Context) error
}

// CheckManualMode は露出モードを読み取り、マニュアルでなければ *WrongModeError を返す
// 読み取り自体の失敗はそのまま返す
func CheckManualMode(ctx context.Context, hw Hardware) (ExposureMode, error) {
	mode, err := hw.ReadExposureMode(ctx)
	if err != nil {
		return ModeUnknown, err
	}
	if mode != ModeManual {
		return mode, &WrongModeError{Mode: mode}
	}
	return mode, nil
}

// SpeedLister はカメラが対応しているシャッタースピードの一覧を報告できるデバイス
type SpeedLister interface {
	AvailableShutterSpeeds(ctx context.Context) ([]speeds.ShutterSpeed, error)
}

// DiscoveredCamera はネットワーク上で見つかったカメラ
// 同一性は ID で判定する
type DiscoveredCamera struct {
	ID      string `json:"id"`      // カメラの一意識別子
	Name    string `json:"name"`    // 機種名
	Address string `json:"address"` // IPアドレス
}

// Discovery はカメラの検出機能を提供する
type Discovery interface {
	// Scan は接続可能なカメラを探す
	Scan(ctx context.Context) ([]DiscoveredCamera, error)
}

// ConnectionKind は接続状態の種類
type ConnectionKind string

const (
	ConnDisconnected ConnectionKind = "disconnected" // 未接続
	ConnDiscovering  ConnectionKind = "discovering"  // 検出中
	ConnConnecting   ConnectionKind = "connecting"   // 接続中
	ConnModeCheck    ConnectionKind = "mode_check"   // 露出モード確認中
	ConnConnected    ConnectionKind = "connected"    // 接続済み
	ConnWrongMode    ConnectionKind = "wrong_mode"   // マニュアル以外のモード
	ConnError        ConnectionKind = "error"        // エラー
)

// ConnectionState は接続フローの状態
// Kind に応じて Camera / Mode / Message のいずれかが意味を持つ
type ConnectionState struct {
	Kind    ConnectionKind   `json:"kind"`
	Camera  DiscoveredCamera `json:"camera,omitzero"`
	Mode    ExposureMode     `json:"mode,omitempty"`
	Message string           `json:"message,omitempty"`
}

// StateDisconnected は未接続状態を返す
func StateDisconnected() ConnectionState { return ConnectionState{Kind: ConnDisconnected} }

// StateDiscovering は検出中状態を返す
func StateDiscovering() ConnectionState { return ConnectionState{Kind: ConnDiscovering} }

// StateConnecting は接続中状態を返す
func StateConnecting(c DiscoveredCamera) ConnectionState {
	return ConnectionState{Kind: ConnConnecting, Camera: c}
}

// StateModeCheck はモード確認中状態を返す
func StateModeCheck(c DiscoveredCamera) ConnectionState {
	return ConnectionState{Kind: ConnModeCheck, Camera: c}
}

// StateConnected は接続済み状態を返す
func StateConnected(c DiscoveredCamera) ConnectionState {
	return ConnectionState{Kind: ConnConnected, Camera: c}
}

// StateWrongMode はマニュアル以外のモードで止まっている状態を返す
func StateWrongMode(c DiscoveredCamera, mode ExposureMode) ConnectionState {
	return ConnectionState{Kind: ConnWrongMode, Camera: c, Mode: mode}
}

// StateError はエラー状態を返す
func StateError(message string) ConnectionState {
	return ConnectionState{Kind: ConnError, Message: message}
}

// Equal は状態を比較する。カメラは ID だけで比較する
func (s ConnectionState) Equal(other ConnectionState) bool {
	if s.Kind != other.Kind {
		return false
	}

	switch s.Kind {
	case ConnConnecting, ConnModeCheck, ConnConnected:
		return s.Camera.ID == other.Camera.ID
	case ConnWrongMode:
		return s.Camera.ID == other.Camera.ID && s.Mode == other.Mode
	case ConnError:
		return s.Message == other.Message
	default:
		return true
	}
}

// isFor は状態が指定種類かつ指定カメラのものかを返す
func (s ConnectionState) isFor(kind ConnectionKind, cameraID string) bool {
	return s.Kind == kind && s.Camera.ID == cameraID
}
