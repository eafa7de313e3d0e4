package shooting

import (
	"fmt"

	"hdrcalc/internal/speeds"
)

// PhaseKind は撮影コントローラの状態の種類
type PhaseKind string

const (
	PhaseIdle       PhaseKind = "idle"       // 待機中
	PhaseConfirming PhaseKind = "confirming" // 計画の確認中
	PhaseShooting   PhaseKind = "shooting"   // 撮影中
	PhasePaused     PhaseKind = "paused"     // 一時停止中
	PhaseComplete   PhaseKind = "complete"   // 終了（Result に結果）
)

// Phase は外部から観測できるコントローラの状態
type Phase struct {
	Kind   PhaseKind `json:"kind"`
	Result Result    `json:"result,omitzero"` // Kind == PhaseComplete のときだけ有効
}

// Idle は待機状態を返す
func Idle() Phase { return Phase{Kind: PhaseIdle} }

// Confirming は確認中状態を返す
func Confirming() Phase { return Phase{Kind: PhaseConfirming} }

// Shooting は撮影中状態を返す
func Shooting() Phase { return Phase{Kind: PhaseShooting} }

// Paused は一時停止状態を返す
func Paused() Phase { return Phase{Kind: PhasePaused} }

// Complete は終了状態を返す
func Complete(r Result) Phase { return Phase{Kind: PhaseComplete, Result: r} }

// ResultKind は撮影結果の種類
type ResultKind string

const (
	ResultSuccess   ResultKind = "success"   // 全セット成功
	ResultPartial   ResultKind = "partial"   // 一部のセットのみ成功
	ResultCancelled ResultKind = "cancelled" // 中止
	ResultFailed    ResultKind = "failed"    // 失敗
)

// Result は1回の撮影の最終結果。作成後は変更しない
type Result struct {
	Kind           ResultKind `json:"kind"`
	FramesCaptured int        `json:"frames_captured,omitempty"`
	TotalExpected  int        `json:"total_expected,omitempty"`
	Message        string     `json:"message,omitempty"`
}

// Success は全セット成功の結果を返す
func Success(framesCaptured int) Result {
	return Result{Kind: ResultSuccess, FramesCaptured: framesCaptured}
}

// Partial は一部成功の結果を返す
func Partial(framesCaptured, totalExpected int) Result {
	return Result{Kind: ResultPartial, FramesCaptured: framesCaptured, TotalExpected: totalExpected}
}

// Cancelled は中止の結果を返す
func Cancelled() Result { return Result{Kind: ResultCancelled} }

// Failed は失敗の結果を返す
func Failed(message string) Result { return Result{Kind: ResultFailed, Message: message} }

// String は表示用の文字列を返す
func (r Result) String() string {
	switch r.Kind {
	case ResultSuccess:
		return fmt.Sprintf("success: %d frames captured", r.FramesCaptured)
	case ResultPartial:
		return fmt.Sprintf("partial: %d of %d frames captured", r.FramesCaptured, r.TotalExpected)
	case ResultCancelled:
		return "cancelled"
	case ResultFailed:
		return "failed: " + r.Message
	default:
		return string(r.Kind)
	}
}

// FrameKind は処理中フレームの段階
type FrameKind string

const (
	FrameIdle      FrameKind = "idle"              // 待機
	FrameSetting   FrameKind = "setting_shutter"   // シャッタースピード設定中
	FrameVerifying FrameKind = "verifying_shutter" // 設定値の読み戻し中
	FrameCapturing FrameKind = "capturing"         // 撮影・バッファ待ち
)

// FrameStatus は処理中フレームの状態
type FrameStatus struct {
	Kind        FrameKind           `json:"kind"`
	Speed       speeds.ShutterSpeed `json:"speed,omitzero"`
	Attempt     int                 `json:"attempt,omitempty"`
	MaxAttempts int                 `json:"max_attempts,omitempty"`
}

// Equal はスピードをインデックスで比較する
func (f FrameStatus) Equal(other FrameStatus) bool {
	return f.Kind == other.Kind &&
		f.Speed.Index == other.Speed.Index &&
		f.Attempt == other.Attempt &&
		f.MaxAttempts == other.MaxAttempts
}

// Progress は撮影の進捗
// コントローラだけが更新し、外部へはコピーを渡す
type Progress struct {
	CompletedFrames    int         `json:"completed_frames"`
	TotalFrames        int         `json:"total_frames"`
	CurrentSet         int         `json:"current_set"`
	TotalSets          int         `json:"total_sets"`
	CurrentFrameStatus FrameStatus `json:"current_frame_status"`
}

// FractionComplete は完了率（0〜1）を返す
func (p Progress) FractionComplete() float64 {
	if p.TotalFrames <= 0 {
		return 0
	}
	return float64(p.CompletedFrames) / float64(p.TotalFrames)
}

// SetProgress は "Set X of Y" 形式の文字列を返す
func (p Progress) SetProgress() string {
	return fmt.Sprintf("Set %d of %d", p.CurrentSet, p.TotalSets)
}

// FrameProgress は "N of M frames" 形式の文字列を返す
func (p Progress) FrameProgress() string {
	return fmt.Sprintf("%d of %d frames", p.CompletedFrames, p.TotalFrames)
}

// Snapshot はある時点のコントローラの状態
type Snapshot struct {
	RunID            string   `json:"run_id,omitempty"`
	Phase            Phase    `json:"phase"`
	Progress         Progress `json:"progress"`
	FractionComplete float64  `json:"fraction_complete"`
}

// Severity は警告の重要度
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityCaution  Severity = "caution"
	SeverityCritical Severity = "critical"
)

// Warning は撮影前の注意事項
type Warning struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}
