// Package bracket はシャドウ/ハイライトの測光値からHDRブラケット撮影の計画を作る
//
// # 仕様
// - 範囲の計算はスピード表のインデックス上で行う（3インデックス = 1 EV）
// - 1セットでカバーできない範囲は、前のセットの最終フレームから次のセットを始める
//   （隣接セットは境界の1フレームを共有する）
// - 生成されるインデックスは常に [0, speeds.Len()-1] に収まる
package bracket

import (
	"errors"
	"fmt"
	"math"

	"hdrcalc/internal/speeds"
)

var (
	// ErrInvalidFrames は1セットのフレーム数が1未満であることを表す
	ErrInvalidFrames = errors.New("frames must be at least 1")
	// ErrInvalidSpacing はフレーム間隔が0以下であることを表す
	ErrInvalidSpacing = errors.New("spacing must be greater than 0")
)

// maxSets は複数セット計画の反復上限
// 表の端でクランプされ続ける入力でも必ず停止させる
const maxSets = 50

// stepsPerEV はインデックス何個で 1 EV になるか
const stepsPerEV = 3.0

// CalculationResult はブラケット計画の結果
type CalculationResult struct {
	RangeEV        float64                 `json:"range_ev"`        // シャドウとハイライトの差（EV）
	Sets           [][]speeds.ShutterSpeed `json:"sets"`            // 撮影セット（各セットは frames 要素）
	TotalExposures int                     `json:"total_exposures"` // 総露光数
}

// Bracketed はブラケット撮影が必要かどうかを返す
func (r CalculationResult) Bracketed() bool {
	return len(r.Sets) > 0
}

// Calculate はブラケット計画を計算する
//
// shadowIndex と highlightIndex はどちらの順序でもよい。
// frames >= 1、spacing > 0 は呼び出し側の前提条件で、ここでは検証しない。
func Calculate(shadowIndex, highlightIndex, frames int, spacing float64) CalculationResult {
	bright := min(shadowIndex, highlightIndex)
	dark := max(shadowIndex, highlightIndex)
	rangeEV := float64(dark-bright) / stepsPerEV

	// 範囲がなければ測光どおりの1枚で足りる
	if rangeEV <= 0 {
		return CalculationResult{RangeEV: 0, Sets: [][]speeds.ShutterSpeed{}, TotalExposures: 1}
	}

	step := spacing * stepsPerEV
	coverage := float64(frames-1) * spacing

	if rangeEV <= coverage {
		return CalculationResult{
			RangeEV:        rangeEV,
			Sets:           [][]speeds.ShutterSpeed{buildSet(bright, frames, step)},
			TotalExposures: frames,
		}
	}

	sets := make([][]speeds.ShutterSpeed, 0, 4)
	start := bright
	for i := 0; i < maxSets; i++ {
		set := buildSet(start, frames, step)
		sets = append(sets, set)

		last := set[len(set)-1].Index
		if last > dark {
			break
		}
		start = last
	}

	return CalculationResult{
		RangeEV:        rangeEV,
		Sets:           sets,
		TotalExposures: len(sets) * frames,
	}
}

// Plan はラベルで指定された測光値から計画を作る
// Calculate の前提条件をここで検証する
func Plan(shadowLabel, highlightLabel string, frames int, spacing float64) (CalculationResult, error) {
	if frames < 1 {
		return CalculationResult{}, fmt.Errorf("%w: %d", ErrInvalidFrames, frames)
	}
	if spacing <= 0 || math.IsNaN(spacing) || math.IsInf(spacing, 0) {
		return CalculationResult{}, fmt.Errorf("%w: %v", ErrInvalidSpacing, spacing)
	}

	shadow, err := speeds.Lookup(shadowLabel)
	if err != nil {
		return CalculationResult{}, fmt.Errorf("shadow: %w", err)
	}
	highlight, err := speeds.Lookup(highlightLabel)
	if err != nil {
		return CalculationResult{}, fmt.Errorf("highlight: %w", err)
	}

	return Calculate(shadow.Index, highlight.Index, frames, spacing), nil
}

// buildSet は start から step インデックスずつ進む frames 枚のセットを作る
// クランプ後の値を次の基準にするため、表の端では同じスピードが続く
func buildSet(start, frames int, step float64) []speeds.ShutterSpeed {
	last := speeds.Len() - 1
	set := make([]speeds.ShutterSpeed, 0, frames)
	set = append(set, speeds.MustIndex(clamp(start, 0, last)))

	current := float64(start)
	for i := 1; i < frames; i++ {
		next := clamp(int(math.Ceil(current+step)), 0, last)
		set = append(set, speeds.MustIndex(next))
		current = float64(next)
	}
	return set
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
