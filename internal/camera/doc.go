// Package camera HDR撮影で操作するカメラとの境界を担う
//
// # 責務
// - 撮影シーケンスが使うハードウェア操作の契約（Hardware）
// - 切断とそれ以外を区別するエラー分類
// - ネットワーク上のカメラ検出と接続・露出モード確認の流れ（ConnectionService）
// - 実機の代わりに使うシミュレータ（SimulatedHardware, SimulatedDiscovery）
//
// # 仕様
// - ErrDisconnected は撮影全体を止める致命的なエラーとして扱われる
// - それ以外のハードウェアエラーはセット単位で回復される
// - 接続状態の比較はカメラIDで行う
// - Thread-safe な操作をサポート
//
// # 前提要件
// 実機との通信プロトコルはこのパッケージの対象外で、
// Hardware を満たすドライバを外部から差し込む。
package camera

var (
	_ Hardware    = (*SimulatedHardware)(nil)
	_ SpeedLister = (*SimulatedHardware)(nil)
	_ Discovery   = (*SimulatedDiscovery)(nil)
	_ Discovery   = (*MockDiscovery)(nil)
)
