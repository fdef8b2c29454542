// Package validation はフォーム入力のフィールド単位の検証ルールを提供する。
// 各ルールは最初に違反した条件のメッセージを返し、妥当な場合は空文字列を返す。
package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// 文字数の上限・下限
const (
	MaxEmailLength        = 180
	MinPasswordLength     = 8
	MaxNameLength         = 100
	MaxPhoneLength        = 20
	MaxBusinessNameLength = 200
)

// spaceClass はRE2の \s（ASCIIのみ）に垂直タブとUnicodeの空白を加えた文字クラス。
// NBSPや全角スペースも空白として扱う。
const spaceClass = `\s\v\p{Z}\x{FEFF}`

var (
	emailPattern = regexp.MustCompile(`^[^` + spaceClass + `@]+@[^` + spaceClass + `@]+\.[^` + spaceClass + `@]+$`)
	namePattern  = regexp.MustCompile(`^[a-zA-Z` + spaceClass + `\-'.]+$`)
	phonePattern = regexp.MustCompile(`^[+]?[1-9]\d{0,15}$`)
	digitPattern = regexp.MustCompile(`\d`)
	lowerPattern = regexp.MustCompile(`[a-z]`)
	upperPattern = regexp.MustCompile(`[A-Z]`)
)

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// length は文字数をコードポイント単位で数える。絵文字などのサロゲートペアも1文字になる。
func length(s string) int {
	return utf8.RuneCountInString(s)
}

// ValidateEmail はメールアドレスを検証する。
func ValidateEmail(email string) string {
	switch {
	case isBlank(email):
		return "Email is required"
	case length(email) > MaxEmailLength:
		return "Email must not exceed 180 characters"
	case !emailPattern.MatchString(email):
		return "Please enter a valid email address"
	}
	return ""
}

// ValidatePassword はパスワードの強度を検証する。
// 8文字以上で、数字・小文字・大文字をそれぞれ1文字以上含む必要がある。
func ValidatePassword(password string) string {
	switch {
	case isBlank(password):
		return "Password is required"
	case length(password) < MinPasswordLength:
		return "Password must be at least 8 characters"
	case !digitPattern.MatchString(password):
		return "Password must include at least one number"
	case !lowerPattern.MatchString(password):
		return "Password must include at least one lowercase letter"
	case !upperPattern.MatchString(password):
		return "Password must include at least one uppercase letter"
	}
	return ""
}

// ValidateFirstName は名を検証する。
func ValidateFirstName(name string) string {
	return validatePersonName(name, "First name")
}

// ValidateLastName は姓を検証する。
func ValidateLastName(name string) string {
	return validatePersonName(name, "Last name")
}

func validatePersonName(name, label string) string {
	switch {
	case isBlank(name):
		return label + " is required"
	case length(name) > MaxNameLength:
		return label + " must not exceed 100 characters"
	case !namePattern.MatchString(name):
		return label + " can only contain letters, spaces, hyphens, apostrophes, and periods"
	}
	return ""
}

// ValidatePhone は電話番号を検証する。未入力は妥当として扱う。
func ValidatePhone(phone string) string {
	switch {
	case isBlank(phone):
		return ""
	case length(phone) > MaxPhoneLength:
		return "Phone number must not exceed 20 characters"
	case !phonePattern.MatchString(phone):
		return "Please enter a valid phone number (e.g., +1234567890)"
	}
	return ""
}

// ValidateBusinessName は屋号を検証する。
func ValidateBusinessName(name string) string {
	switch {
	case isBlank(name):
		return "Business name is required"
	case length(name) > MaxBusinessNameLength:
		return "Business name must not exceed 200 characters"
	}
	return ""
}
