package shooting

import (
	"fmt"
	"math"
	"time"

	"hdrcalc/internal/speeds"
)

// longExposureThreshold 以上の露光時間は三脚とリモートレリーズを推奨する
const longExposureThreshold = 10.0

// EstimatedTime は全フレームの露光時間とオーバーヘッドの合計を秒単位で切り上げて返す
func EstimatedTime(sets [][]speeds.ShutterSpeed, overhead time.Duration) int {
	total := 0.0
	frames := 0
	for _, set := range sets {
		for _, s := range set {
			total += s.Seconds + overhead.Seconds()
			frames++
		}
	}
	if frames == 0 {
		return 0
	}
	return int(math.Ceil(total))
}

// FormatEstimatedTime は秒数を "45s" や "2m 5s" の形式にする
func FormatEstimatedTime(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", max(seconds, 0))
	}
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}

// SpeedWarnings は撮影前に表示する注意事項を返す
func SpeedWarnings(sets [][]speeds.ShutterSpeed) []Warning {
	var warnings []Warning

	longest := 0.0
	for _, set := range sets {
		for _, s := range set {
			longest = max(longest, s.Seconds)
		}
	}

	if longest >= longExposureThreshold {
		warnings = append(warnings, Warning{
			Message:  "Exposures over 10s: use a sturdy tripod and remote trigger",
			Severity: SeverityCaution,
		})
	}
	return warnings
}
