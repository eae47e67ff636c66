package utils

import (
	"errors"
	"html"
	"net/mail"
	"strings"
	"unicode"
)

var ErrInvalidEmail = errors.New("invalid email address")

// SanitizeLine cleans a single-line form field such as a name or farm location.
// Line breaks and control characters are dropped, runs of spaces collapse to
// one and markup is escaped.
func SanitizeLine(input string) string {
	return html.EscapeString(strings.Join(strings.FieldsFunc(input, func(r rune) bool {
		return unicode.IsSpace(r) || !unicode.IsPrint(r)
	}), " "))
}

// SanitizeText cleans free text such as addresses, notes and reasons. Line
// breaks and tabs survive.
func SanitizeText(input string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || unicode.IsPrint(r) {
			return r
		}
		return -1
	}, strings.ReplaceAll(input, "\r\n", "\n"))
	return html.EscapeString(strings.TrimSpace(cleaned))
}

// SanitizePhone keeps what a dialable number is written with: digits, a
// leading plus, dashes, parentheses and single spaces.
func SanitizePhone(phone string) string {
	kept := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsDigit(r), r == '+', r == '-', r == '(', r == ')':
			return r
		case unicode.IsSpace(r):
			return ' '
		}
		return -1
	}, phone)
	return strings.Join(strings.Fields(kept), " ")
}

// NormalizeEmail lowercases an address and drops whitespace and control characters.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return -1
		}
		return r
	}, email))
}

// ParseEmail normalizes email and requires a bare address without display name.
func ParseEmail(email string) (string, error) {
	normalized := NormalizeEmail(email)
	if !IsValidEmail(normalized) {
		return "", ErrInvalidEmail
	}
	return normalized, nil
}

func IsValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
