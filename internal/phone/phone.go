// Package phone normalizes free-text phone numbers into an E.164-like
// canonical form: a leading + followed by digits only. The output is a
// best-effort canonical form, not a validated-deliverable number.
package phone

import "strings"

// Normalize converts a raw phone string to canonical dialable form.
// It is total and deterministic: the worst input is echoed back as its
// remaining digits with a leading +. Already-canonical input (+digits)
// passes through untouched. Ten-digit numbers are assumed to be on the
// North American numbering plan and are prefixed with +1.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	// Keep digits and a leading +; drop everything else.
	var b strings.Builder
	plus := false
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && !plus && b.Len() == 0:
			plus = true
		}
	}
	digits := b.String()

	if plus {
		return "+" + digits
	}

	// 11 digits with a US country code: strip the 1, then the 10-digit
	// branch below re-adds it in canonical form.
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}

	if len(digits) == 10 {
		return "+1" + digits
	}

	return "+" + digits
}

// FormatDisplay renders a number in US display form, (555) 123-4567,
// when it looks like a NANP number; anything else comes back in
// canonical form unchanged.
func FormatDisplay(raw string) string {
	normalized := Normalize(raw)
	digits := strings.TrimPrefix(normalized, "+")

	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return normalized
	}
	return "(" + digits[0:3] + ") " + digits[3:6] + "-" + digits[6:10]
}
