// Package shutter はスピード表のラベルとカメラ通信用の分数表現を相互変換する
//
// # 仕様
// - 分数ラベル "N/D" は (N, D)
// - 秒ラベル "N\"" は整数秒なら (N, 1)、小数秒なら (N*10, 10)
// - 逆変換は秒数に換算してから表の最近傍を選ぶ
// - ValidateSpeeds はカメラが報告した利用可能スピードに無いものの代替を求める
package shutter

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"hdrcalc/internal/speeds"
)

// ErrInvalidLabel はラベルがどちらの書式にも一致しないことを表す
var ErrInvalidLabel = errors.New("invalid shutter speed label")

// Components はカメラとやり取りする分子/分母表現
type Components struct {
	Numerator   float64 `json:"numerator"`
	Denominator float64 `json:"denominator"`
}

// Seconds は露光時間（秒）を返す
func (c Components) Seconds() float64 {
	return c.Numerator / c.Denominator
}

// ParseLabel はラベルを分子/分母に分解する
func ParseLabel(label string) (Components, error) {
	if num, den, ok := strings.Cut(label, "/"); ok {
		n, errN := strconv.ParseFloat(num, 64)
		d, errD := strconv.ParseFloat(den, 64)
		if errN != nil || errD != nil || strings.Contains(den, "/") {
			return Components{}, fmt.Errorf("%w: fraction %q", ErrInvalidLabel, label)
		}
		return Components{Numerator: n, Denominator: d}, nil
	}

	if value, ok := strings.CutSuffix(label, "\""); ok {
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return Components{}, fmt.Errorf("%w: seconds %q", ErrInvalidLabel, label)
		}

		// 整数秒: 2" -> (2, 1)
		if v == math.Floor(v) && v >= 1 {
			return Components{Numerator: v, Denominator: 1}, nil
		}

		// 小数秒: 0.3" -> (3, 10), 1.3" -> (13, 10)
		return Components{Numerator: math.Round(v * 10), Denominator: 10}, nil
	}

	return Components{}, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
}

// ToComponents はカタログのスピードを分子/分母に変換する
// カタログのラベルは固定なので、解析に失敗した場合はプログラムの誤りとして panic する
func ToComponents(speed speeds.ShutterSpeed) Components {
	c, err := ParseLabel(speed.Label)
	if err != nil {
		panic(fmt.Sprintf("shutter: catalog entry %d: %v", speed.Index, err))
	}
	return c
}

// FromComponents は分子/分母から最も近いカタログのスピードを返す
func FromComponents(numerator, denominator float64) speeds.ShutterSpeed {
	return speeds.NearestSpeed(numerator / denominator)
}

// Substitution は利用できないスピードとその代替
type Substitution struct {
	Original   speeds.ShutterSpeed `json:"original"`
	Substitute speeds.ShutterSpeed `json:"substitute"`
}

// Equal はインデックスで比較する
func (s Substitution) Equal(other Substitution) bool {
	return s.Original.Index == other.Original.Index && s.Substitute.Index == other.Substitute.Index
}

// ValidationResult は ValidateSpeeds の結果
type ValidationResult struct {
	AllAvailable  bool           `json:"all_available"`
	Substitutions []Substitution `json:"substitutions"`
}

// ValidateSpeeds は計画中のスピードがすべて available に含まれるか確認する
//
// 同じスピードが複数セットに現れても1回だけ検査する。
// available が空の場合は代替を探しようがないので、代替なしで false を返す。
func ValidateSpeeds(sets [][]speeds.ShutterSpeed, available []speeds.ShutterSpeed) ValidationResult {
	result := ValidationResult{Substitutions: []Substitution{}}
	if len(available) == 0 {
		return result
	}

	have := make(map[int]struct{}, len(available))
	for _, s := range available {
		have[s.Index] = struct{}{}
	}

	seen := make(map[int]struct{})
	for _, set := range sets {
		for _, speed := range set {
			if _, dup := seen[speed.Index]; dup {
				continue
			}
			seen[speed.Index] = struct{}{}

			if _, ok := have[speed.Index]; ok {
				continue
			}

			nearest, _ := speeds.Nearest(speed.Seconds, available)
			result.Substitutions = append(result.Substitutions, Substitution{
				Original:   speed,
				Substitute: nearest,
			})
		}
	}

	result.AllAvailable = len(result.Substitutions) == 0
	return result
}
