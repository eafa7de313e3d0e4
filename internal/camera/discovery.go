package camera

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SimulatedDiscovery は一定時間後に1台のカメラを見つけるDiscovery実装
type SimulatedDiscovery struct {
	delay  time.Duration
	camera DiscoveredCamera
}

// NewSimulatedDiscovery は新しいSimulatedDiscoveryを作成する
// 検出されるカメラのIDは作成時に一度だけ採番する
func NewSimulatedDiscovery(name, address string, delay time.Duration) *SimulatedDiscovery {
	return &SimulatedDiscovery{
		delay: delay,
		camera: DiscoveredCamera{
			ID:      uuid.New().String(),
			Name:    name,
			Address: address,
		},
	}
}

// Scan は delay 経過後にカメラを返す
func (d *SimulatedDiscovery) Scan(ctx context.Context) ([]DiscoveredCamera, error) {
	if d.delay > 0 {
		timer := time.NewTimer(d.delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return []DiscoveredCamera{d.camera}, nil
}

// MockDiscovery はテスト用のモックDiscovery実装
type MockDiscovery struct {
	mu      sync.Mutex
	cameras []DiscoveredCamera
	err     error
}

// NewMockDiscovery は新しいMockDiscoveryを作成する
func NewMockDiscovery(cameras []DiscoveredCamera) *MockDiscovery {
	return &MockDiscovery{cameras: cameras}
}

// Scan はモックのカメラ一覧を即座に返す
func (m *MockDiscovery) Scan(_ context.Context) ([]DiscoveredCamera, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	return slices.Clone(m.cameras), nil
}

// AddCamera はテスト用にカメラを追加する
func (m *MockDiscovery) AddCamera(c DiscoveredCamera) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.cameras {
		if existing.ID == c.ID {
			return
		}
	}
	m.cameras = append(m.cameras, c)
}

// SetError はテスト用にScanの失敗を設定する
func (m *MockDiscovery) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}
