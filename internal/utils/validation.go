package utils

import (
	"net/mail"
	"regexp"
	"strings"
)

// -----------------------------------------------------------------------
// 1) PHONE NUMBER FORMAT
// -----------------------------------------------------------------------

// Mobile numbers are accepted with a leading + and 10 to 15 digits.
var mobileRegex = regexp.MustCompile(`^\+\d{10,15}$`)

var e164Regex = regexp.MustCompile(`^\+[1-9]\d{7,14}$`) // ITU-T E.164

// IsMobileFormat reports whether number looks like an international mobile number.
func IsMobileFormat(number string) bool { return mobileRegex.MatchString(number) }

// IsE164 reports basic E.164 compliance
func IsE164(number string) bool { return e164Regex.MatchString(number) }

// NormalizeMobile strips spaces, dashes and parentheses users tend to type.
func NormalizeMobile(number string) string {
	r := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
	return r.Replace(strings.TrimSpace(number))
}

// -----------------------------------------------------------------------
// 2) EMAIL SYNTAX
// -----------------------------------------------------------------------

// IsValidEmailSyntax does RFC-5322-ish syntax only (no DNS).
func IsValidEmailSyntax(e string) bool {
	addr, err := mail.ParseAddress(e)
	return err == nil && addr.Address == e
}
