// Package shooting はブラケット撮影のシーケンスを実行する
//
// # 責務
// - 露出モードの事前確認
// - フレームごとのシャッタースピード設定、読み戻し確認、撮影
// - 進捗の集計と最終結果（成功・一部成功・失敗）の決定
// - 中止・一時停止・再撮影などの操作
//
// # 仕様
// - 1つのコントローラで同時に動くシーケンスは1つだけ
// - セットの途中で失敗したら、そのセット以降には進まない
// - 切断は実行全体の失敗として扱う
// - 中止されたシーケンスは状態を変更しない
package shooting
