// internal/model/phone.go
package model

import "strings"

// CanonicalPhone strips everything that is not a digit. Dedup, suppression
// lookups and transport calls all work on this form.
func CanonicalPhone(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
