package verification

import (
	"strings"

	"go-giftcard-verifier/presenter"
)

// warnRate is the share of non-matching codes that come back as Processing.
const warnRate = 0.12

// Decide is the illustrative decision rule: a code ending in 0 or 5 is
// Verified; otherwise rnd below warnRate gives Processing and anything else
// Failed. rnd is expected in [0, 1). Submit never shows its result.
func Decide(code string, rnd float64) presenter.Status {
	code = strings.TrimSpace(code)
	if strings.HasSuffix(code, "0") || strings.HasSuffix(code, "5") {
		return presenter.StatusVerified
	}
	if rnd < warnRate {
		return presenter.StatusProcessing
	}
	return presenter.StatusFailed
}
