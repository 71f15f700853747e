// Package transform implements the one fixed, idempotent computation
// this queue performs on a job's text: its Unicode code-point count.
package transform

import (
	"errors"
	"math/rand/v2"
	"unicode/utf8"
)

// ErrInjectedFault is returned by CountChars when fault injection fires,
// standing in for spec's TransientTransformError for robustness testing.
var ErrInjectedFault = errors.New("injected transient transform fault")

// CountChars returns the number of Unicode code points in text. faultRate
// is the probability in [0,1] of returning ErrInjectedFault instead,
// used to exercise the retry/fail path end to end (spec §6, FAULT_RATE).
func CountChars(text string, faultRate float64) (int, error) {
	if faultRate > 0 && rand.Float64() < faultRate {
		return 0, ErrInjectedFault
	}
	return utf8.RuneCountInString(text), nil
}
