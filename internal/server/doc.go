// Package server は、ブラケット計画とカメラ操作をHTTP APIとして提供します。
//
// 責務:
//   - HTTPサーバーの起動と管理
//   - ブラケット計画・スピード検証のエンドポイント
//   - カメラの検出と接続のエンドポイント
//   - 撮影の開始・中止・一時停止・再撮影のエンドポイント
//
// 仕様:
//   - ルーティングはginを使用
//   - 撮影の進捗は GET /api/shoot でポーリングする（MQTTが有効なら配信もされる）
//   - 状態遷移できない操作は 409 Conflict を返す
//   - グレースフルシャットダウンに対応し、実行中の撮影は中止する
package server
