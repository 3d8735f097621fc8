package utils

import (
	"errors"
	"regexp"
	"strings"
)

var usernamePattern = regexp.MustCompile(`^[a-z][a-z0-9._-]{2,29}$`)

var (
	ErrUsernameRequired = errors.New("username is required")
	ErrUsernameASCII    = errors.New("username must be ASCII")
	ErrUsernameFormat   = errors.New("username must be 3-30 characters, start with a letter and use only a-z, 0-9, '.', '_' or '-'")
)

// CanonicalUsername trims and lowercases a username and checks it against the
// allowed format.
func CanonicalUsername(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ErrUsernameRequired
	}

	var b strings.Builder
	b.Grow(len(input))
	for i := 0; i < len(input); i++ {
		ch := input[i]
		if ch > 0x7f {
			return "", ErrUsernameASCII
		}
		if ch >= 'A' && ch <= 'Z' {
			ch = ch - 'A' + 'a'
		}
		b.WriteByte(ch)
	}

	canonical := b.String()
	if !usernamePattern.MatchString(canonical) {
		return "", ErrUsernameFormat
	}
	return canonical, nil
}

// LookupUsername normalizes a username for lookups without enforcing the format,
// so legacy names still resolve.
func LookupUsername(input string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(input), "@"))
}
