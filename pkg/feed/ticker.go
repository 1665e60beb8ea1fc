package feed

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrInvalidTicker = errors.New("invalid ticker symbol")
	tickerPattern    = regexp.MustCompile(`^[A-Z0-9.\-&]{1,20}$`)
)

// NormalizeTicker upper-cases and trims a ticker, rejecting anything that is not
// 1-20 characters of letters, digits, '.', '-' or '&'
func NormalizeTicker(ticker string) (string, error) {
	clean := strings.ToUpper(strings.TrimSpace(ticker))
	if !tickerPattern.MatchString(clean) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTicker, ticker)
	}
	return clean, nil
}

// Symbol returns the exchange symbol of a ticker, defaulting to the NSE suffix
func Symbol(ticker string) string {
	if strings.Contains(ticker, ".") {
		return ticker
	}
	return ticker + ".NS"
}
