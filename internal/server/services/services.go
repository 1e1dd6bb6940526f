// Package services implements the groupledger use cases on top of the
// repositories. Every service holds the pool and a RepositoryManager; work
// that spans several statements runs inside dbx.WithTx with repositories
// bound to the transaction.
package services

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/groupledger/internal/common"
)

// timeNow is replaced in tests.
var timeNow = time.Now

const dayLayout = "2006-01-02"

func invalid(format string, args ...any) error {
	return common.NewError(common.ErrorValidation, fmt.Sprintf(format, args...))
}

// requireText trims s and checks its length in runes.
func requireText(field, s string, min, max int) (string, error) {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	if n < min {
		if min == 1 {
			return "", invalid("%s is required", field)
		}
		return "", invalid("%s must be at least %d characters", field, min)
	}
	if n > max {
		return "", invalid("%s must be at most %d characters", field, max)
	}
	return s, nil
}

// ParseDay accepts YYYY-MM-DD or an RFC 3339 timestamp.
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dayLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, invalid("invalid date %q, expected YYYY-MM-DD", s)
}
