package checks

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
)

const Currency = "NGN"

const (
	minBalance   = 1000
	balanceRange = 19001
)

// demoFormats maps each supported card type to its code format.
var demoFormats = map[string]*regexp.Regexp{
	"DemoCard":    regexp.MustCompile(`^DEMO-(\d{4})-(\d{4})-(\d{4})$`),
	"SampleTunes": regexp.MustCompile(`^ST-(\d{12})$`),
	"MockFlix":    regexp.MustCompile(`^MF-([A-Za-z0-9]{4})-([A-Za-z0-9]{4})$`),
}

func ValidCardType(cardType string) bool {
	_, ok := demoFormats[cardType]
	return ok
}

func MatchesFormat(cardType, code string) bool {
	re, ok := demoFormats[cardType]
	if !ok {
		return false
	}
	return re.MatchString(strings.TrimSpace(code))
}

// StableBalance derives a repeatable balance in [1000, 20000] from the code.
func StableBalance(code string) int {
	sum := sha256.Sum256([]byte(code))
	n, _ := strconv.ParseInt(hex.EncodeToString(sum[:])[:6], 16, 64)
	return minBalance + int(n%balanceRange)
}

// IsValid is the demo rule: codes ending in 0 or 5 pass.
func IsValid(code string) bool {
	code = strings.TrimSpace(code)
	return strings.HasSuffix(code, "0") || strings.HasSuffix(code, "5")
}

// MaskCode hides all but the last four characters.
func MaskCode(code string) string {
	code = strings.TrimSpace(code)
	n := len([]rune(code))
	if n <= 4 {
		return strings.Repeat("*", n)
	}
	r := []rune(code)
	return strings.Repeat("*", n-4) + string(r[n-4:])
}
