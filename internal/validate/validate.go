// Package validate sanitizes and validates registration input.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Field length limits.
const (
	NameMin  = 2
	NameMax  = 100
	EmailMin = 5
	EmailMax = 255
	PhoneMin = 10
	PhoneMax = 50
)

var emailRe = regexp.MustCompile(`^[a-z0-9!#$%&'*+/=?^_` + "`" + `{|}~-]+(?:\.[a-z0-9!#$%&'*+/=?^_` + "`" + `{|}~-]+)*@(?:[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\.)+[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$`)

// Sanitize strips null bytes and control characters (keeping tabs and
// newlines) and trims surrounding whitespace.
func Sanitize(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if r == 0 || r == 0x7F {
			continue
		}
		if r < 0x20 && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// Name validates and sanitizes a participant name: letters, spaces, hyphens,
// apostrophes and dots.
func Name(raw string) (string, error) {
	s := Sanitize(raw)
	if len(s) < NameMin {
		return s, fmt.Errorf("name must be at least %d characters", NameMin)
	}
	if len(s) > NameMax {
		return s, fmt.Errorf("name must not exceed %d characters", NameMax)
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsSpace(r) || r == '-' || r == '\'' || r == '.' {
			continue
		}
		return s, fmt.Errorf("name contains invalid characters")
	}
	return s, nil
}

// Email validates and lowercases an email address.
func Email(raw string) (string, error) {
	s := Sanitize(strings.ToLower(raw))
	if len(s) < EmailMin {
		return s, fmt.Errorf("email must be at least %d characters", EmailMin)
	}
	if len(s) > EmailMax {
		return s, fmt.Errorf("email must not exceed %d characters", EmailMax)
	}
	if !emailRe.MatchString(s) {
		return s, fmt.Errorf("invalid email format")
	}
	parts := strings.Split(s, "@")
	if len(parts) != 2 || !strings.Contains(parts[1], ".") {
		return s, fmt.Errorf("invalid email format")
	}
	return s, nil
}

// Phone validates a phone number: at least PhoneMin digits after stripping
// formatting, at most PhoneMax characters overall.
func Phone(raw string) (string, error) {
	s := Sanitize(raw)
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits < PhoneMin {
		return s, fmt.Errorf("phone number must contain at least %d digits", PhoneMin)
	}
	if len(s) > PhoneMax {
		return s, fmt.Errorf("phone number must not exceed %d characters", PhoneMax)
	}
	return s, nil
}

// Token reports whether a participant token is a well-formed v4 UUID.
func Token(value string) bool {
	u, err := uuid.Parse(value)
	if err != nil {
		return false
	}
	return u.Version() == 4
}
