package services

import (
	"strings"

	"github.com/easyorder/quickorder/internal/platform/textutil"
)

const (
	defaultCallingCode      = "20"
	defaultGuestEmailDomain = "easypay.com"
)

type addressNormalizer struct{}

var _ AddressNormalizer = addressNormalizer{}

// NewAddressNormalizer returns the stateless normalizer.
func NewAddressNormalizer() AddressNormalizer {
	return addressNormalizer{}
}

// NormalizePhone keeps digits and a leading plus sign, then makes sure the number carries the
// international prefix. A trunk zero is replaced with the calling code and "00" becomes "+".
func (addressNormalizer) NormalizePhone(raw, callingCode string) string {
	phone := cleanPhone(raw)
	if phone == "" || phone == "+" {
		return ""
	}
	code := textutil.Digits(callingCode)
	if code == "" {
		code = defaultCallingCode
	}

	switch {
	case strings.HasPrefix(phone, "+"):
		return phone
	case strings.HasPrefix(phone, "00"):
		return "+" + phone[2:]
	case strings.HasPrefix(phone, code):
		return "+" + phone
	case strings.HasPrefix(phone, "0"):
		return "+" + code + phone[1:]
	default:
		return "+" + code + phone
	}
}

// NormalizeStreet drops blank lines. A single comma separated line is split into its segments.
func (addressNormalizer) NormalizeStreet(lines []string) []string {
	if len(lines) == 1 && strings.Contains(lines[0], ",") {
		lines = strings.Split(lines[0], ",")
	}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// SynthesizeEmail derives the deterministic guest address used when the shopper left email empty.
func (addressNormalizer) SynthesizeEmail(phone, domain string) string {
	digits := textutil.Digits(phone)
	if digits == "" {
		return ""
	}
	domain = strings.TrimPrefix(strings.TrimSpace(domain), "@")
	if domain == "" {
		domain = defaultGuestEmailDomain
	}
	return digits + "@" + strings.ToLower(domain)
}

// cleanPhone strips every rune except digits and a plus sign in the first position.
func cleanPhone(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	b.Grow(len(raw))
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
