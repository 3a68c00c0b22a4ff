package timer

import (
	"fmt"
	"math"
)

// FormatTime renders seconds as MM:SS. Negative, NaN and infinite values
// render as 00:00.
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	s := int(math.Floor(seconds))
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}
