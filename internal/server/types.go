package server

import (
	"time"

	"hdrcalc/internal/camera"
	"hdrcalc/internal/emitter"
	"hdrcalc/internal/shooting"
	"hdrcalc/internal/speeds"
)

// ErrorResponse はエラー時のレスポンス
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status    string                `json:"status"`
	Camera    camera.ConnectionKind `json:"camera"`
	Shooting  shooting.PhaseKind    `json:"shooting"`
	MQTT      *emitter.Stats        `json:"mqtt,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

// SpeedsResponse はスピード表のレスポンス
type SpeedsResponse struct {
	Speeds []speeds.ShutterSpeed `json:"speeds"`
}

// PlanRequest はブラケット計画のリクエスト
type PlanRequest struct {
	Shadow    string  `json:"shadow"`
	Highlight string  `json:"highlight"`
	Frames    int     `json:"frames"`
	Spacing   float64 `json:"spacing"`
}

// PlanResponse はブラケット計画のレスポンス
type PlanResponse struct {
	RangeEV          float64                 `json:"range_ev"`
	Sets             [][]speeds.ShutterSpeed `json:"sets"`
	TotalExposures   int                     `json:"total_exposures"`
	Bracketed        bool                    `json:"bracketed"`
	EstimatedSeconds int                     `json:"estimated_seconds"`
	EstimatedTime    string                  `json:"estimated_time"`
	Warnings         []shooting.Warning      `json:"warnings"`
}

// ValidateRequest はスピード検証のリクエスト
// Available が空なら接続中のカメラ、なければスピード表全体を使う
type ValidateRequest struct {
	Sets      [][]string `json:"sets"`
	Available []string   `json:"available,omitempty"`
}

// ConnectionResponse は接続状態のレスポンス
type ConnectionResponse struct {
	State   camera.ConnectionState    `json:"state"`
	Cameras []camera.DiscoveredCamera `json:"cameras"`
}

// CamerasResponse は検出済みカメラのレスポンス
type CamerasResponse struct {
	Cameras []camera.DiscoveredCamera `json:"cameras"`
}

// ConnectRequest は接続のリクエスト
type ConnectRequest struct {
	CameraID string `json:"camera_id"`
}

// ShootRequest は撮影の確認・開始のリクエスト
// Sets を指定した場合はそのまま使い、なければ計画を計算する
type ShootRequest struct {
	Sets      [][]string `json:"sets,omitempty"`
	Shadow    string     `json:"shadow,omitempty"`
	Highlight string     `json:"highlight,omitempty"`
	Frames    int        `json:"frames,omitempty"`
	Spacing   float64    `json:"spacing,omitempty"`
}

// empty は計画の指定がないかを返す
func (r ShootRequest) empty() bool {
	return len(r.Sets) == 0 && r.Shadow == "" && r.Highlight == ""
}

// ShootResponse は撮影状態のレスポンス
type ShootResponse struct {
	shooting.Snapshot
	SetProgress   string                  `json:"set_progress"`
	FrameProgress string                  `json:"frame_progress"`
	Sets          [][]speeds.ShutterSpeed `json:"sets,omitempty"` // 確認中または最後に撮影した計画
}
