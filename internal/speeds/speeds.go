// Package speeds はカメラのシャッタースピード表（1/3段刻み）を提供する
//
// # 責務
// - 1/8000 から 30" までの55段の固定カタログ
// - ラベル・インデックス・秒数の相互変換
// - 秒数からの最近傍スピード検索
//
// # 仕様
// - インデックス 0 が最速、54 が最遅
// - 隣接インデックスの差は常に 1/3 EV
// - EV や範囲の計算はすべてインデックス上で行う（秒数は不均等なため）
package speeds

import (
	"errors"
	"fmt"
	"math"
)

// NotFound はラベルがカタログに存在しない場合に LabelToIndex が返す値
const NotFound = -1

var (
	// ErrNotFound はラベルがカタログに存在しないことを表す
	ErrNotFound = errors.New("shutter speed not found")

	// ErrOutOfRange はインデックスがカタログの範囲外であることを表す
	ErrOutOfRange = errors.New("shutter speed index out of range")
)

// ShutterSpeed はカタログの1エントリ
type ShutterSpeed struct {
	Index   int     `json:"index"`   // カタログ内の位置（0 = 最速）
	Label   string  `json:"label"`   // 表示ラベル（例: "1/125", "2\""）
	Seconds float64 `json:"seconds"` // 露光時間（秒）
	EV      float64 `json:"ev"`      // log2(1/seconds)
}

// String はラベルを返す
func (s ShutterSpeed) String() string {
	return s.Label
}

type entry struct {
	label   string
	seconds float64
}

var table = []entry{
	{"1/8000", 1.0 / 8000},
	{"1/6400", 1.0 / 6400},
	{"1/5000", 1.0 / 5000},
	{"1/4000", 1.0 / 4000},
	{"1/3200", 1.0 / 3200},
	{"1/2500", 1.0 / 2500},
	{"1/2000", 1.0 / 2000},
	{"1/1600", 1.0 / 1600},
	{"1/1250", 1.0 / 1250},
	{"1/1000", 1.0 / 1000},
	{"1/800", 1.0 / 800},
	{"1/640", 1.0 / 640},
	{"1/500", 1.0 / 500},
	{"1/400", 1.0 / 400},
	{"1/320", 1.0 / 320},
	{"1/250", 1.0 / 250},
	{"1/200", 1.0 / 200},
	{"1/160", 1.0 / 160},
	{"1/125", 1.0 / 125},
	{"1/100", 1.0 / 100},
	{"1/80", 1.0 / 80},
	{"1/60", 1.0 / 60},
	{"1/50", 1.0 / 50},
	{"1/40", 1.0 / 40},
	{"1/30", 1.0 / 30},
	{"1/25", 1.0 / 25},
	{"1/20", 1.0 / 20},
	{"1/15", 1.0 / 15},
	{"1/13", 1.0 / 13},
	{"1/10", 1.0 / 10},
	{"1/8", 1.0 / 8},
	{"1/6", 1.0 / 6},
	{"1/5", 1.0 / 5},
	{"1/4", 1.0 / 4},
	{"0.3\"", 0.3},
	{"0.4\"", 0.4},
	{"1/2", 0.5},
	{"0.6\"", 0.6},
	{"0.8\"", 0.8},
	{"1\"", 1.0},
	{"1.3\"", 1.3},
	{"1.6\"", 1.6},
	{"2\"", 2.0},
	{"2.5\"", 2.5},
	{"3.2\"", 3.2},
	{"4\"", 4.0},
	{"5\"", 5.0},
	{"6\"", 6.0},
	{"8\"", 8.0},
	{"10\"", 10.0},
	{"13\"", 13.0},
	{"15\"", 15.0},
	{"20\"", 20.0},
	{"25\"", 25.0},
	{"30\"", 30.0},
}

// カタログはパッケージ初期化時に一度だけ構築され、以降は変更されない
var (
	catalog  []ShutterSpeed
	labelMap map[string]int
)

func init() {
	catalog = make([]ShutterSpeed, len(table))
	labelMap = make(map[string]int, len(table))
	for i, e := range table {
		catalog[i] = ShutterSpeed{
			Index:   i,
			Label:   e.label,
			Seconds: e.seconds,
			EV:      math.Log2(1.0 / e.seconds),
		}
		labelMap[e.label] = i
	}
}

// Len はカタログのエントリ数を返す
func Len() int {
	return len(catalog)
}

// All はカタログのコピーを返す
func All() []ShutterSpeed {
	result := make([]ShutterSpeed, len(catalog))
	copy(result, catalog)
	return result
}

// Fastest は最速のエントリ（1/8000）を返す
func Fastest() ShutterSpeed {
	return catalog[0]
}

// Slowest は最遅のエントリ（30"）を返す
func Slowest() ShutterSpeed {
	return catalog[len(catalog)-1]
}

// LabelToIndex はラベルに完全一致するインデックスを返す
// 見つからない場合は NotFound を返す（未知・旧形式のラベルは呼び出し側で扱う）
func LabelToIndex(label string) int {
	if i, ok := labelMap[label]; ok {
		return i
	}
	return NotFound
}

// Lookup はラベルに対応するエントリを返す
func Lookup(label string) (ShutterSpeed, error) {
	i := LabelToIndex(label)
	if i == NotFound {
		return ShutterSpeed{}, fmt.Errorf("%w: %q", ErrNotFound, label)
	}
	return catalog[i], nil
}

// LookupAll は複数のラベルをまとめて変換する。最初に見つからなかったラベルでエラーを返す
func LookupAll(labels []string) ([]ShutterSpeed, error) {
	out := make([]ShutterSpeed, 0, len(labels))
	for _, label := range labels {
		s, err := Lookup(label)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// IndexToSpeed はインデックスに対応するエントリを返す
func IndexToSpeed(index int) (ShutterSpeed, error) {
	if index < 0 || index >= len(catalog) {
		return ShutterSpeed{}, fmt.Errorf("%w: %d (valid 0..%d)", ErrOutOfRange, index, len(catalog)-1)
	}
	return catalog[index], nil
}

// MustIndex は範囲内であることが保証されたインデックスのエントリを返す
// 範囲外の場合は panic する
func MustIndex(index int) ShutterSpeed {
	s, err := IndexToSpeed(index)
	if err != nil {
		panic(err)
	}
	return s
}

// NearestSpeed は秒数との差が最小のエントリを返す
// 等距離の場合は先に見つかった（速い方の）エントリを返す
func NearestSpeed(seconds float64) ShutterSpeed {
	best, _ := Nearest(seconds, catalog)
	return best
}

// Nearest は candidates の中から秒数との差が最小のエントリを返す
// 等距離の場合は candidates 内で先に現れた方を返す。candidates が空なら false
func Nearest(seconds float64, candidates []ShutterSpeed) (ShutterSpeed, bool) {
	if len(candidates) == 0 {
		return ShutterSpeed{}, false
	}
	best := candidates[0]
	bestDiff := math.Abs(best.Seconds - seconds)
	for _, c := range candidates[1:] {
		if d := math.Abs(c.Seconds - seconds); d < bestDiff {
			best = c
			bestDiff = d
		}
	}
	return best, true
}
