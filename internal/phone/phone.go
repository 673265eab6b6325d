// Package phone canonicalizes Brazilian phone numbers for WhatsApp dialing
// and renders them for display.
package phone

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const (
	// CountryCode is prepended to every normalized number.
	CountryCode = "55"

	// lastKeepNineDDD is the highest area code whose mobile numbers keep
	// their leading 9 on WhatsApp.
	lastKeepNineDDD = 27

	maskMaxDigits = 13
	displayRegion = "BR"
)

var dialable = regexp.MustCompile(`^\d{12,13}$`)

// Normalize converts free-form input into "55" + DDD + local digits.
//
// Non-digits are stripped and the country code is added when missing.
// For area codes above 27 a nine-digit local number starting with 9 loses
// that leading 9. Input that does not carry an area code and a local part
// comes back as the bare digit string; Normalize never fails.
func Normalize(raw string) string {
	digits := digitsOnly(raw)
	if !strings.HasPrefix(digits, CountryCode) {
		digits = CountryCode + digits
	}

	if len(digits) < 5 {
		return digits
	}

	ddd, err := strconv.Atoi(digits[2:4])
	if err != nil {
		return digits
	}
	local := digits[4:]

	dddLabel := digits[2:4]
	if ddd > lastKeepNineDDD && len(local) == 9 && local[0] == '9' {
		local = local[1:]
	}

	return CountryCode + dddLabel + local
}

// IsDialable reports whether a normalized number has the 12 or 13 digit
// shape WhatsApp accepts.
func IsDialable(normalized string) bool {
	return dialable.MatchString(normalized)
}

// WhatsAppURL returns the wa.me link for raw.
func WhatsAppURL(raw string) string {
	return "https://wa.me/" + Normalize(raw)
}

// ApplyMask renders partially typed input as "+55 DD NNNNN-NNNN".
// It is cosmetic only and performs no validation.
func ApplyMask(raw string) string {
	digits := digitsOnly(raw)
	if digits == "" {
		return ""
	}
	if !strings.HasPrefix(digits, CountryCode) {
		digits = CountryCode + digits
	}
	if len(digits) > maskMaxDigits {
		digits = digits[:maskMaxDigits]
	}

	var b strings.Builder
	b.Grow(len(digits) + 4)
	b.WriteByte('+')
	for i := 0; i < len(digits); i++ {
		switch i {
		case 2, 4:
			b.WriteByte(' ')
		case 9:
			b.WriteByte('-')
		}
		b.WriteByte(digits[i])
	}
	return b.String()
}

// Display formats a stored number for people using libphonenumber's
// international format. Numbers libphonenumber does not consider valid,
// such as mobiles stored without their leading 9, go through ApplyMask.
func Display(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	digits := digitsOnly(trimmed)
	if !strings.HasPrefix(digits, CountryCode) {
		digits = CountryCode + digits
	}

	number, err := phonenumbers.Parse("+"+digits, displayRegion)
	if err != nil || !phonenumbers.IsValidNumber(number) {
		return ApplyMask(trimmed)
	}

	return phonenumbers.Format(number, phonenumbers.INTERNATIONAL)
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
