package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"hdrcalc/internal/camera"
	"hdrcalc/internal/config"
	"hdrcalc/internal/emitter"
	"hdrcalc/internal/shooting"
)

// Dependencies はサーバーが使うサービス
type Dependencies struct {
	Connection *camera.ConnectionService
	Controller *shooting.Controller
	Hardware   camera.Hardware
	Emitter    *emitter.MQTTEmitter // MQTTが無効なら nil
}

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	logger     *slog.Logger
	engine     *gin.Engine
	httpServer *http.Server
	handler    *Handler
}

// New は新しいServerインスタンスを作成する
// リクエストは api/openapi.yaml の定義で検証してからハンドラに渡す
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	router, err := newOpenAPIRouter()
	if err != nil {
		return nil, err
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger), requestValidator(router))

	s := &Server{
		config: cfg,
		logger: logger,
		engine: engine,
		handler: &Handler{
			connection: deps.Connection,
			controller: deps.Controller,
			hardware:   deps.Hardware,
			emitter:    deps.Emitter,
			logger:     logger,
		},
		httpServer: &http.Server{
			Addr:         cfg.ServerAddress(),
			Handler:      engine,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}
	s.setupRoutes()

	return s, nil
}

// Handler はルーティング済みの http.Handler を返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// setupRoutes はHTTPルートを設定する
func (s *Server) setupRoutes() {
	h := s.handler

	// ヘルスチェックエンドポイント
	s.engine.GET("/health", h.HealthCheck)

	api := s.engine.Group("/api")

	// 計画
	api.GET("/speeds", h.GetSpeeds)
	api.POST("/plan", h.PostPlan)
	api.POST("/validate", h.PostValidate)

	// カメラ接続
	api.GET("/connection", h.GetConnection)
	api.POST("/discovery/start", h.StartDiscovery)
	api.POST("/discovery/stop", h.StopDiscovery)
	api.GET("/cameras", h.GetCameras)
	api.POST("/connect", h.Connect)
	api.POST("/connection/retry-mode", h.RetryModeCheck)
	api.POST("/disconnect", h.Disconnect)

	// 撮影
	shoot := api.Group("/shoot")
	shoot.GET("", h.GetShoot)
	shoot.POST("", h.StartShoot)
	shoot.POST("/confirm", h.ConfirmShoot)
	shoot.POST("/cancel", h.CancelShoot)
	shoot.POST("/dismiss", h.DismissShoot)
	shoot.POST("/retry", h.RetryShoot)
	shoot.POST("/pause", h.PauseShoot)
	shoot.POST("/resume", h.ResumeShoot)
}

// Start はサーバーを起動する
func (s *Server) Start(ctx context.Context) error {
	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	// サーバーを別ゴルーチンで起動
	go func() {
		s.logger.Info("server: starting http server", "address", s.config.ServerAddress())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		s.logger.Info("server: context cancelled")
	case sig := <-sigCh:
		s.logger.Info("server: signal received", "signal", sig.String())
	case err := <-shutdownCh:
		return err
	}

	// グレースフルシャットダウン
	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンする
// 実行中の撮影は中止する
func (s *Server) Shutdown() error {
	s.logger.Info("server: shutting down")

	// 5秒のタイムアウトを設定
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	s.handler.controller.Cancel()
	if err := s.handler.controller.Wait(ctx); err != nil {
		s.logger.Warn("server: shooting run did not stop in time", "error", err)
	}

	s.logger.Info("server: shutdown complete")
	return nil
}

// requestLogger はリクエストごとにアクセスログを出す
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("server: request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
