package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hdrcalc/internal/bracket"
	"hdrcalc/internal/camera"
	"hdrcalc/internal/emitter"
	"hdrcalc/internal/shooting"
	"hdrcalc/internal/shutter"
	"hdrcalc/internal/speeds"
)

// errNoPlan は撮影する計画が指定されていないことを表す
var errNoPlan = errors.New("no plan given and no plan is awaiting confirmation")

// Handler はAPIエンドポイントの実装
type Handler struct {
	connection *camera.ConnectionService
	controller *shooting.Controller
	hardware   camera.Hardware
	emitter    *emitter.MQTTEmitter
	logger     *slog.Logger
}

// HealthCheck はヘルスチェックエンドポイントの実装
func (h *Handler) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Camera:    h.connection.State().Kind,
		Shooting:  h.controller.Phase().Kind,
		Timestamp: time.Now(),
	}
	if h.emitter != nil {
		stats := h.emitter.Stats()
		response.MQTT = &stats
	}

	c.JSON(http.StatusOK, response)
}

// GetSpeeds はスピード表を返す
func (h *Handler) GetSpeeds(c *gin.Context) {
	c.JSON(http.StatusOK, SpeedsResponse{Speeds: speeds.All()})
}

// PostPlan はブラケット計画を計算する
func (h *Handler) PostPlan(c *gin.Context) {
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := bracket.Plan(req.Shadow, req.Highlight, req.Frames, req.Spacing)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, "invalid_plan", err.Error())
		return
	}

	estimated := h.controller.EstimatedTime(result.Sets)
	warnings := shooting.SpeedWarnings(result.Sets)
	if warnings == nil {
		warnings = []shooting.Warning{}
	}

	c.JSON(http.StatusOK, PlanResponse{
		RangeEV:          result.RangeEV,
		Sets:             result.Sets,
		TotalExposures:   result.TotalExposures,
		Bracketed:        result.Bracketed(),
		EstimatedSeconds: estimated,
		EstimatedTime:    shooting.FormatEstimatedTime(estimated),
		Warnings:         warnings,
	})
}

// PostValidate は計画のスピードがカメラで使えるかを検証する
func (h *Handler) PostValidate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sets, err := lookupSets(req.Sets)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, "unknown_speed", err.Error())
		return
	}

	available, err := h.availableSpeeds(c.Request.Context(), req.Available)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, "unknown_speed", err.Error())
		return
	}

	c.JSON(http.StatusOK, shutter.ValidateSpeeds(sets, available))
}

// GetConnection は接続状態を返す
func (h *Handler) GetConnection(c *gin.Context) {
	c.JSON(http.StatusOK, h.connectionResponse())
}

// StartDiscovery はカメラの検出を開始する
func (h *Handler) StartDiscovery(c *gin.Context) {
	h.connection.StartDiscovery()
	c.JSON(http.StatusAccepted, h.connectionResponse())
}

// StopDiscovery はカメラの検出を止める
func (h *Handler) StopDiscovery(c *gin.Context) {
	h.connection.StopDiscovery()
	c.JSON(http.StatusOK, h.connectionResponse())
}

// GetCameras は検出済みのカメラ一覧を返す
func (h *Handler) GetCameras(c *gin.Context) {
	c.JSON(http.StatusOK, CamerasResponse{Cameras: nonNil(h.connection.Cameras())})
}

// Connect は検出済みのカメラに接続する
func (h *Handler) Connect(c *gin.Context) {
	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	for _, cam := range h.connection.Cameras() {
		if cam.ID == req.CameraID {
			h.connection.Connect(cam)
			c.JSON(http.StatusAccepted, h.connectionResponse())
			return
		}
	}

	respondError(c, http.StatusNotFound, "camera_not_found", "指定されたカメラが見つかりません")
}

// RetryModeCheck は露出モードを再確認する
func (h *Handler) RetryModeCheck(c *gin.Context) {
	if !h.connection.RetryModeCheck() {
		respondError(c, http.StatusConflict, "not_wrong_mode", "露出モードの再確認はモード不一致のときだけ実行できます")
		return
	}
	c.JSON(http.StatusAccepted, h.connectionResponse())
}

// Disconnect はカメラから切断する
func (h *Handler) Disconnect(c *gin.Context) {
	h.connection.Disconnect()
	c.JSON(http.StatusOK, h.connectionResponse())
}

// GetShoot は撮影状態を返す
func (h *Handler) GetShoot(c *gin.Context) {
	c.JSON(http.StatusOK, h.shootResponse())
}

// ConfirmShoot は撮影計画を確認中の状態にする
func (h *Handler) ConfirmShoot(c *gin.Context) {
	var req ShootRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sets, err := shootSets(req)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, "invalid_plan", err.Error())
		return
	}

	if err := h.controller.Confirm(sets); err != nil {
		if errors.Is(err, shooting.ErrInvalidTransition) {
			respondError(c, http.StatusConflict, "invalid_transition", err.Error())
			return
		}
		respondError(c, http.StatusUnprocessableEntity, "invalid_plan", err.Error())
		return
	}

	c.JSON(http.StatusOK, h.shootResponse())
}

// StartShoot は撮影を開始する
// 本文がなければ確認中の計画を撮影する
func (h *Handler) StartShoot(c *gin.Context) {
	var req ShootRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if !h.connection.IsConnected() {
		respondError(c, http.StatusConflict, "camera_not_connected", "カメラが接続されていません")
		return
	}

	sets, err := h.plannedSets(req)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, "invalid_plan", err.Error())
		return
	}

	if err := h.controller.Start(sets); err != nil {
		respondError(c, http.StatusUnprocessableEntity, "invalid_plan", err.Error())
		return
	}

	h.logger.Info("server: shooting started", "run_id", h.controller.Snapshot().RunID, "client", c.ClientIP())
	c.JSON(http.StatusAccepted, h.shootResponse())
}

// CancelShoot は撮影を中止する
func (h *Handler) CancelShoot(c *gin.Context) {
	h.controller.Cancel()
	c.JSON(http.StatusOK, h.shootResponse())
}

// DismissShoot は撮影結果を閉じる
func (h *Handler) DismissShoot(c *gin.Context) {
	h.controller.Dismiss()
	c.JSON(http.StatusOK, h.shootResponse())
}

// RetryShoot は一部成功の撮影を撮り直す
func (h *Handler) RetryShoot(c *gin.Context) {
	h.control(c, h.controller.RetryRemaining)
}

// PauseShoot は撮影を一時停止する
func (h *Handler) PauseShoot(c *gin.Context) {
	h.control(c, h.controller.Pause)
}

// ResumeShoot は撮影を再開する
func (h *Handler) ResumeShoot(c *gin.Context) {
	h.control(c, h.controller.Resume)
}

// ヘルパー関数

// control は状態遷移の操作を実行し、遷移できない場合は 409 を返す
func (h *Handler) control(c *gin.Context, op func() error) {
	if err := op(); err != nil {
		code := "invalid_transition"
		if errors.Is(err, shooting.ErrNotRetryable) {
			code = "not_retryable"
		}
		respondError(c, http.StatusConflict, code, err.Error())
		return
	}
	c.JSON(http.StatusOK, h.shootResponse())
}

// availableSpeeds は検証に使う利用可能スピードを決める
func (h *Handler) availableSpeeds(ctx context.Context, labels []string) ([]speeds.ShutterSpeed, error) {
	if len(labels) > 0 {
		return speeds.LookupAll(labels)
	}

	if lister, ok := h.hardware.(camera.SpeedLister); ok && h.connection.IsConnected() {
		available, err := lister.AvailableShutterSpeeds(ctx)
		if err == nil {
			return available, nil
		}
		h.logger.Warn("server: could not read available speeds, using catalog", "error", err)
	}
	return speeds.All(), nil
}

func (h *Handler) connectionResponse() ConnectionResponse {
	return ConnectionResponse{
		State:   h.connection.State(),
		Cameras: nonNil(h.connection.Cameras()),
	}
}

// plannedSets は開始するセットを決める。指定がなければ確認中の計画を使う
func (h *Handler) plannedSets(req ShootRequest) ([][]speeds.ShutterSpeed, error) {
	if req.empty() {
		if h.controller.Phase().Kind != shooting.PhaseConfirming {
			return nil, errNoPlan
		}
		return h.controller.ActiveSets(), nil
	}
	return shootSets(req)
}

// shootSets はリクエストから撮影するセットを作る
func shootSets(req ShootRequest) ([][]speeds.ShutterSpeed, error) {
	if len(req.Sets) > 0 {
		return lookupSets(req.Sets)
	}

	result, err := bracket.Plan(req.Shadow, req.Highlight, req.Frames, req.Spacing)
	if err != nil {
		return nil, err
	}
	return result.Sets, nil
}

func lookupSets(labels [][]string) ([][]speeds.ShutterSpeed, error) {
	sets := make([][]speeds.ShutterSpeed, 0, len(labels))
	for _, set := range labels {
		s, err := speeds.LookupAll(set)
		if err != nil {
			return nil, err
		}
		sets = append(sets, s)
	}
	return sets, nil
}

func (h *Handler) shootResponse() ShootResponse {
	snapshot := h.controller.Snapshot()
	return ShootResponse{
		Snapshot:      snapshot,
		SetProgress:   snapshot.Progress.SetProgress(),
		FrameProgress: snapshot.Progress.FrameProgress(),
		Sets:          h.controller.ActiveSets(),
	}
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{
		Error:     code,
		Message:   message,
		Timestamp: time.Now(),
	})
}

func nonNil(cameras []camera.DiscoveredCamera) []camera.DiscoveredCamera {
	if cameras == nil {
		return []camera.DiscoveredCamera{}
	}
	return cameras
}
