package shooting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"hdrcalc/internal/camera"
	"hdrcalc/internal/speeds"
)

const (
	MsgNotManual     = "Camera is not in Manual mode"
	MsgDisconnected  = "Camera disconnected. Reconnect and retry."
	MsgAllSetsFailed = "All sets failed. Check camera connection and settings."
)

var (
	// ErrNotRetryable は一部成功以外の状態から再撮影しようとしたことを表す
	ErrNotRetryable = errors.New("retry is only available after a partial result")
	// ErrInvalidTransition は現在の状態から実行できない操作を表す
	ErrInvalidTransition = errors.New("invalid shooting state transition")
	// ErrNoSets は撮影するセットがないことを表す
	ErrNoSets = errors.New("no bracket sets to shoot")
)

// Config は撮影シーケンスの設定
type Config struct {
	VerifyAttempts int           // 読み戻しの最大回数（初回を含む）
	VerifyDelay    time.Duration // 2回目以降の読み戻し前の待ち時間
	FrameOverhead  time.Duration // 1枚あたりの通信オーバーヘッド（所要時間の見積もり用）
}

// DefaultConfig はデフォルトの設定を返す
func DefaultConfig() Config {
	return Config{
		VerifyAttempts: 3,
		VerifyDelay:    300 * time.Millisecond,
		FrameOverhead:  2500 * time.Millisecond,
	}
}

// Observer は状態の変化を受け取る
// 通知は変更の順に1つずつ届く。OnUpdate の中から Controller のメソッドを呼んではいけない
type Observer interface {
	OnUpdate(Snapshot)
}

// ObserverFunc は関数を Observer として使うためのアダプタ
type ObserverFunc func(Snapshot)

// OnUpdate は f を呼ぶ
func (f ObserverFunc) OnUpdate(s Snapshot) { f(s) }

// setOutcome は1セットの実行結果
type setOutcome int

const (
	setSucceeded setOutcome = iota
	setFailed               // このセットは使えない。後続のセットにも進まない
	runAborted              // 切断。実行全体を失敗にする
	runStopped              // 中止・置き換え。状態は変更しない
)

// Controller は撮影シーケンスを実行する状態機械
//
// シーケンスは1回の撮影につき1つのゴルーチンで動き、ハードウェアの呼び出しや待ち時間の後には
// 必ず世代とフェーズを確認する。Cancel や Start で世代が変わったシーケンスは状態を変更しない。
type Controller struct {
	hardware camera.Hardware
	config   Config
	logger   *slog.Logger

	mu         sync.Mutex
	runID      string
	phase      Phase
	progress   Progress
	activeSets [][]speeds.ShutterSpeed
	gen        uint64
	cancel     context.CancelFunc
	done       chan struct{}
	resume     chan struct{} // 一時停止中だけ non-nil

	notifyMu  sync.Mutex
	observers []Observer
}

// NewController は新しいControllerを作成する
func NewController(hardware camera.Hardware, config Config, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if config.VerifyAttempts < 1 {
		config.VerifyAttempts = 1
	}

	return &Controller{
		hardware: hardware,
		config:   config,
		logger:   logger,
		phase:    Idle(),
	}
}

// AddObserver は状態変化の通知先を追加する
func (c *Controller) AddObserver(o Observer) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.observers = append(c.observers, o)
}

// Snapshot は現在の状態のコピーを返す
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Phase は現在のフェーズを返す
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Progress は現在の進捗を返す
func (c *Controller) Progress() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// ActiveSets は最後に確認または開始したセットを返す
func (c *Controller) ActiveSets() [][]speeds.ShutterSpeed {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneSets(c.activeSets)
}

// EstimatedTime は設定のオーバーヘッドで所要時間（秒）を見積もる
func (c *Controller) EstimatedTime(sets [][]speeds.ShutterSpeed) int {
	return EstimatedTime(sets, c.config.FrameOverhead)
}

// Confirm は撮影計画を確認中の状態にする。待機中か終了後だけ受け付ける
func (c *Controller) Confirm(sets [][]speeds.ShutterSpeed) error {
	if len(sets) == 0 {
		return ErrNoSets
	}

	c.mu.Lock()
	if c.phase.Kind != PhaseIdle && c.phase.Kind != PhaseComplete {
		kind := c.phase.Kind
		c.mu.Unlock()
		return fmt.Errorf("%w: confirm from %s", ErrInvalidTransition, kind)
	}
	c.activeSets = cloneSets(sets)
	c.phase = Confirming()
	c.progress = Progress{}
	c.commitLocked()
	return nil
}

// Start は撮影を開始する
// 実行中のシーケンスがあれば中止してから新しいシーケンスに置き換える
func (c *Controller) Start(sets [][]speeds.ShutterSpeed) error {
	if len(sets) == 0 {
		return ErrNoSets
	}

	c.mu.Lock()
	if c.stopLocked() {
		c.logger.Info("shooting: superseding active run", "run_id", c.runID)
	}
	c.startLocked(cloneSets(sets))
	return nil
}

// Cancel は撮影を中止して待機状態に戻る。進捗はゼロになる
func (c *Controller) Cancel() {
	c.mu.Lock()
	if c.stopLocked() {
		c.logger.Info("shooting: cancelled", "run_id", c.runID)
	}
	c.phase = Idle()
	c.progress = Progress{}
	c.commitLocked()
}

// Dismiss は結果を閉じて待機状態に戻る。計画も破棄する
func (c *Controller) Dismiss() {
	c.mu.Lock()
	c.stopLocked()
	c.phase = Idle()
	c.progress = Progress{}
	c.activeSets = nil
	c.runID = ""
	c.commitLocked()
}

// RetryRemaining は一部成功の後に計画全体を最初から撮り直す
func (c *Controller) RetryRemaining() error {
	c.mu.Lock()
	if c.phase.Kind != PhaseComplete || c.phase.Result.Kind != ResultPartial || len(c.activeSets) == 0 {
		c.mu.Unlock()
		return ErrNotRetryable
	}
	c.logger.Info("shooting: retrying plan", "previous_run_id", c.runID)
	c.startLocked(c.activeSets)
	return nil
}

// Pause は撮影を一時停止する。シーケンスは次の確認点で止まる
func (c *Controller) Pause() error {
	c.mu.Lock()
	if c.phase.Kind != PhaseShooting {
		kind := c.phase.Kind
		c.mu.Unlock()
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, kind)
	}
	c.phase = Paused()
	c.resume = make(chan struct{})
	c.logger.Info("shooting: paused", "run_id", c.runID)
	c.commitLocked()
	return nil
}

// Resume は一時停止した撮影を再開する
func (c *Controller) Resume() error {
	c.mu.Lock()
	if c.phase.Kind != PhasePaused {
		kind := c.phase.Kind
		c.mu.Unlock()
		return fmt.Errorf("%w: resume from %s", ErrInvalidTransition, kind)
	}
	c.phase = Shooting()
	c.releasePauseLocked()
	c.logger.Info("shooting: resumed", "run_id", c.runID)
	c.commitLocked()
	return nil
}

// Wait は現在のシーケンスが終了するまで待つ
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startLocked は進捗を初期化してシーケンスを起動する。c.mu を保持した状態で呼び、解放して戻る
func (c *Controller) startLocked(sets [][]speeds.ShutterSpeed) {
	total := 0
	for _, set := range sets {
		total += len(set)
	}

	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.cancel = cancel
	c.done = done
	c.runID = uuid.NewString()
	c.activeSets = sets
	c.phase = Shooting()
	c.progress = Progress{
		TotalFrames: total,
		CurrentSet:  1,
		TotalSets:   len(sets),
	}

	c.logger.Info("shooting: started", "run_id", c.runID, "sets", len(sets), "frames", total)

	go c.run(ctx, gen, sets, done)
	c.commitLocked()
}

// stopLocked は実行中のシーケンスを止める。止めたシーケンスがあれば true
func (c *Controller) stopLocked() bool {
	if c.cancel == nil {
		return false
	}
	c.cancel()
	c.cancel = nil
	c.gen++
	c.releasePauseLocked()
	return true
}

func (c *Controller) releasePauseLocked() {
	if c.resume != nil {
		close(c.resume)
		c.resume = nil
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		RunID:            c.runID,
		Phase:            c.phase,
		Progress:         c.progress,
		FractionComplete: c.progress.FractionComplete(),
	}
}

// commitLocked は c.mu を解放して変更を通知する
// notifyMu を先に取ることで、通知の順序を変更の順序と揃える
func (c *Controller) commitLocked() {
	snapshot := c.snapshotLocked()
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()

	for _, o := range c.observers {
		o.OnUpdate(snapshot)
	}
}

// update は世代が一致する場合だけ fn で状態を変更して通知する
func (c *Controller) update(gen uint64, fn func()) bool {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return false
	}
	fn()
	c.commitLocked()
	return true
}

// checkpoint はシーケンスを続けてよいかを返す
// 一時停止中は再開されるまでここで待つ
func (c *Controller) checkpoint(ctx context.Context, gen uint64) bool {
	for {
		c.mu.Lock()
		if ctx.Err() != nil || c.gen != gen {
			c.mu.Unlock()
			return false
		}

		switch c.phase.Kind {
		case PhaseShooting:
			c.mu.Unlock()
			return true
		case PhasePaused:
			resume := c.resume
			c.mu.Unlock()
			select {
			case <-resume:
			case <-ctx.Done():
				return false
			}
		default:
			c.mu.Unlock()
			return false
		}
	}
}

// run は撮影シーケンス本体
func (c *Controller) run(ctx context.Context, gen uint64, sets [][]speeds.ShutterSpeed, done chan struct{}) {
	defer close(done)

	_, err := camera.CheckManualMode(ctx, c.hardware)
	if !c.checkpoint(ctx, gen) {
		return
	}
	var wrongMode *camera.WrongModeError
	switch {
	case errors.Is(err, camera.ErrDisconnected):
		c.logger.Error("shooting: camera disconnected during mode check", "error", err)
		c.finish(gen, Failed(MsgDisconnected))
		return
	case errors.As(err, &wrongMode):
		c.logger.Warn("shooting: camera is not in manual mode", "mode", wrongMode.Mode, "error", err)
		c.finish(gen, Failed(MsgNotManual))
		return
	case err != nil:
		c.logger.Warn("shooting: mode check failed", "error", err)
		c.finish(gen, Failed(MsgNotManual))
		return
	}

	succeeded := 0
	for i, set := range sets {
		if !c.update(gen, func() { c.progress.CurrentSet = i + 1 }) {
			return
		}

		outcome := c.runSet(ctx, gen, i+1, set)
		switch outcome {
		case runStopped:
			return
		case runAborted:
			c.finish(gen, Failed(MsgDisconnected))
			return
		case setFailed:
			c.finish(gen, c.aggregate(succeeded, len(sets)))
			return
		}
		succeeded++
	}

	c.finish(gen, c.aggregate(succeeded, len(sets)))
}

// runSet は1セット分の設定・確認・撮影を行う
func (c *Controller) runSet(ctx context.Context, gen uint64, setNumber int, set []speeds.ShutterSpeed) setOutcome {
	for _, speed := range set {
		if !c.update(gen, func() {
			c.progress.CurrentFrameStatus = FrameStatus{Kind: FrameSetting, Speed: speed}
		}) {
			return runStopped
		}

		err := c.hardware.SetShutterSpeed(ctx, speed)
		if !c.checkpoint(ctx, gen) {
			return runStopped
		}
		if err != nil {
			c.logger.Warn("shooting: set shutter speed failed", "set", setNumber, "speed", speed.Label, "error", err)
			return setFailed
		}

		if outcome := c.verify(ctx, gen, setNumber, speed); outcome != setSucceeded {
			return outcome
		}

		if !c.update(gen, func() {
			c.progress.CurrentFrameStatus = FrameStatus{Kind: FrameCapturing, Speed: speed}
		}) {
			return runStopped
		}

		err = c.hardware.CaptureAndWaitForBuffer(ctx)
		if !c.checkpoint(ctx, gen) {
			return runStopped
		}
		if errors.Is(err, camera.ErrDisconnected) {
			c.logger.Error("shooting: camera disconnected during capture", "set", setNumber, "speed", speed.Label)
			return runAborted
		}
		if err != nil {
			c.logger.Warn("shooting: capture failed", "set", setNumber, "speed", speed.Label, "error", err)
			return setFailed
		}

		if !c.update(gen, func() {
			c.progress.CompletedFrames++
			c.progress.CurrentFrameStatus = FrameStatus{Kind: FrameIdle}
		}) {
			return runStopped
		}
	}
	return setSucceeded
}

// verify は読み戻したスピードが要求と一致するまで最大 VerifyAttempts 回確認する
func (c *Controller) verify(ctx context.Context, gen uint64, setNumber int, speed speeds.ShutterSpeed) setOutcome {
	attempts := c.config.VerifyAttempts

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			err := sleepContext(ctx, c.config.VerifyDelay)
			if err != nil || !c.checkpoint(ctx, gen) {
				return runStopped
			}
		}

		if !c.update(gen, func() {
			c.progress.CurrentFrameStatus = FrameStatus{
				Kind:        FrameVerifying,
				Speed:       speed,
				Attempt:     attempt,
				MaxAttempts: attempts,
			}
		}) {
			return runStopped
		}

		got, err := c.hardware.ReadShutterSpeed(ctx)
		if !c.checkpoint(ctx, gen) {
			return runStopped
		}
		if errors.Is(err, camera.ErrDisconnected) {
			c.logger.Error("shooting: camera disconnected during verify", "set", setNumber, "speed", speed.Label)
			return runAborted
		}
		if err != nil {
			c.logger.Warn("shooting: verify failed", "set", setNumber, "speed", speed.Label, "error", err)
			return setFailed
		}
		if got.Index == speed.Index {
			return setSucceeded
		}

		lastErr = &camera.MismatchError{Requested: speed, Actual: got}
		c.logger.Debug("shooting: verify mismatch", "attempt", attempt, "max_attempts", attempts, "error", lastErr)
	}

	c.logger.Warn("shooting: verify attempts exhausted", "set", setNumber, "speed", speed.Label, "error", lastErr)
	return setFailed
}

// aggregate は成功したセット数から結果を決める
func (c *Controller) aggregate(succeeded, totalSets int) Result {
	c.mu.Lock()
	completed := c.progress.CompletedFrames
	total := c.progress.TotalFrames
	c.mu.Unlock()

	switch {
	case succeeded == totalSets:
		return Success(completed)
	case succeeded > 0:
		return Partial(completed, total)
	default:
		return Failed(MsgAllSetsFailed)
	}
}

// finish は世代が一致する場合だけ終了状態にする
func (c *Controller) finish(gen uint64, result Result) {
	c.update(gen, func() {
		c.phase = Complete(result)
		c.progress.CurrentFrameStatus = FrameStatus{Kind: FrameIdle}
		c.releasePauseLocked()
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
		c.logger.Info("shooting: finished", "run_id", c.runID, "result", result.String())
	})
}

func cloneSets(sets [][]speeds.ShutterSpeed) [][]speeds.ShutterSpeed {
	out := make([][]speeds.ShutterSpeed, len(sets))
	for i, set := range sets {
		out[i] = slices.Clone(set)
	}
	return out
}

// sleepContext は読み戻しの再試行間隔を待つ。Cancel されると ctx.Err() で抜ける
func sleepContext(ctx context.Context, d time.Duration) error {
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
