package drift

import (
	"fmt"
	"strconv"
	"strings"

	"scouter/pkg/apperror"
)

// SPCRuleConfig decodes the 8-digit alert rule string into concrete
// thresholds. Digit positions (documented here because the source format
// only says "an 8-digit pattern"): the first four digits are the
// consecutive-in-zone run length required to trigger Consecutive for
// zones 1 through 4 respectively (fewer points are required the further a
// zone is from the center in a well-tuned rule, but the kernel does not
// enforce monotonicity, that is a configuration choice); the fifth digit is
// the run length required to trigger Trend (a strictly monotonic run); the
// sixth digit is the run length required to trigger Alternating (a
// sign-alternating run); the last two digits are reserved for forward
// compatibility (e.g. future window-size tuning) and are currently unused.
type SPCRuleConfig struct {
	ZoneConsecutive   [4]int
	TrendLength       int
	AlternatingLength int
	Reserved          [2]int
}

// ParseSPCRule parses an 8-digit space-separated rule string such as
// "8 16 4 8 2 4 1 1" into an SPCRuleConfig.
func ParseSPCRule(rule string) (SPCRuleConfig, error) {
	fields := strings.Fields(rule)
	if len(fields) != 8 {
		return SPCRuleConfig{}, apperror.NewWithField(apperror.CodeInvalidAlertRule,
			fmt.Sprintf("spc alert rule must have exactly 8 digits, got %d", len(fields)), "alert_rule")
	}
	digits := make([]int, 8)
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil || v <= 0 {
			return SPCRuleConfig{}, apperror.NewWithField(apperror.CodeInvalidAlertRule,
				"spc alert rule digits must be positive integers", "alert_rule")
		}
		digits[i] = v
	}
	return SPCRuleConfig{
		ZoneConsecutive:   [4]int{digits[0], digits[1], digits[2], digits[3]},
		TrendLength:       digits[4],
		AlternatingLength: digits[5],
		Reserved:          [2]int{digits[6], digits[7]},
	}, nil
}
