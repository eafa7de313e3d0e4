// Package emitter は撮影の進捗をMQTTブローカーへ配信する
//
// # 責務
// - shooting.Observer として状態変化を受け取る
// - スナップショットをJSONにして <prefix>/<run_id>/progress へ配信する
//
// # 仕様
// - OnUpdate はブロックしない。キューが一杯のときは破棄して数える
// - 配信は1つのゴルーチンで順番に行う
package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"hdrcalc/internal/shooting"
)

const queueSize = 256

var (
	// ErrConnectTimeout はブローカーへの接続が時間内に終わらなかったことを表す
	ErrConnectTimeout = errors.New("mqtt connection timeout")
	// ErrPublishTimeout は配信が時間内に終わらなかったことを表す
	ErrPublishTimeout = errors.New("mqtt publish timeout")
)

// Config はMQTT配信の設定
type Config struct {
	Broker         string        // host:port
	ClientID       string
	TopicPrefix    string
	QoS            byte
	PublishTimeout time.Duration
}

// publisher は配信に必要な mqtt.Client の一部
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
}

// MQTTEmitter は撮影のスナップショットをMQTTで配信する
type MQTTEmitter struct {
	cfg       Config
	logger    *slog.Logger
	client    mqtt.Client
	newClient func(*mqtt.ClientOptions) mqtt.Client

	queue chan shooting.Snapshot
	done  chan struct{}

	mu        sync.RWMutex
	closed    bool
	started   bool
	connected bool
	published uint64
	errors    uint64
	dropped   uint64
}

// Stats は配信の統計
type Stats struct {
	Connected bool   `json:"connected"`
	Published uint64 `json:"published"`
	Errors    uint64 `json:"errors"`
	Dropped   uint64 `json:"dropped"`
}

// NewMQTTEmitter は新しいMQTTEmitterを作成する。配信は Connect の後に始まる
func NewMQTTEmitter(cfg Config, logger *slog.Logger) *MQTTEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}

	return &MQTTEmitter{
		cfg:       cfg,
		logger:    logger,
		newClient: mqtt.NewClient,
		queue:     make(chan shooting.Snapshot, queueSize),
		done:      make(chan struct{}),
	}
}

// Connect はブローカーに接続して配信を開始する
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		e.setConnected(true)
		e.logger.Info("emitter: mqtt connection established", "broker", e.cfg.Broker, "client_id", e.cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		e.setConnected(false)
		e.logger.Warn("emitter: mqtt connection lost, will auto-reconnect", "broker", e.cfg.Broker, "error", err)
	}

	client := e.newClient(opts)
	e.logger.Info("emitter: connecting to mqtt broker", "broker", e.cfg.Broker)

	token := client.Connect()
	timeout := time.NewTimer(5 * time.Second)
	defer timeout.Stop()

	// 失敗時は切断して、ConnectRetry による再接続を止める
	select {
	case <-token.Done():
	case <-timeout.C:
		client.Disconnect(0)
		return ErrConnectTimeout
	case <-ctx.Done():
		client.Disconnect(0)
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.client = client
	e.setConnected(true)
	e.start(client)
	return nil
}

// start は配信用のゴルーチンを起動する
func (e *MQTTEmitter) start(p publisher) {
	e.mu.Lock()
	e.started = true
	e.mu.Unlock()

	go func() {
		defer close(e.done)
		for snapshot := range e.queue {
			if err := e.publish(p, snapshot); err != nil {
				e.logger.Warn("emitter: publish failed", "run_id", snapshot.RunID, "error", err)
			}
		}
	}()
}

// OnUpdate はスナップショットを配信キューに入れる
func (e *MQTTEmitter) OnUpdate(snapshot shooting.Snapshot) {
	if snapshot.RunID == "" {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	select {
	case e.queue <- snapshot:
	default:
		e.dropped++
	}
}

// Topic は実行IDに対応するトピックを返す
func (e *MQTTEmitter) Topic(runID string) string {
	return fmt.Sprintf("%s/%s/progress", e.cfg.TopicPrefix, runID)
}

func (e *MQTTEmitter) publish(p publisher, snapshot shooting.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		e.countError()
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	topic := e.Topic(snapshot.RunID)
	token := p.Publish(topic, e.cfg.QoS, false, payload)
	if !token.WaitTimeout(e.cfg.PublishTimeout) {
		e.countError()
		return ErrPublishTimeout
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published++
	e.mu.Unlock()

	e.logger.Debug("emitter: snapshot published", "topic", topic, "phase", snapshot.Phase.Kind, "size", len(payload))
	return nil
}

// Close はキューに残った配信を終えてから切断する
// 開始前に呼んだ場合はキューを捨てる
func (e *MQTTEmitter) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	started := e.started
	close(e.queue)
	e.mu.Unlock()

	if !started {
		return
	}
	<-e.done

	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
		e.logger.Info("emitter: mqtt disconnected")
	}
	e.setConnected(false)
}

// Stats は配信の統計を返す
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return Stats{
		Connected: e.connected,
		Published: e.published,
		Errors:    e.errors,
		Dropped:   e.dropped,
	}
}

func (e *MQTTEmitter) setConnected(connected bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.connected = connected
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errors++
}
