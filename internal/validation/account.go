// Package validation holds input rules shared by handlers, services and the admin CLI.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	UsernameMaxLen    = 150
	PasswordMinLen    = 8
	PasswordMaxLen    = 128
	EmailMaxLen       = 254
	PersonNameMaxLen  = 30
	usernameAllowedRe = `^[\p{L}\p{N}@.+\-_]+$`
)

var usernameRegex = regexp.MustCompile(usernameAllowedRe)

// Error is a user-facing validation message, shown next to the offending form field.
type Error string

func (e Error) Error() string { return string(e) }

// commonPasswords rejects the handful of passwords every credential-stuffing list starts with.
var commonPasswords = map[string]struct{}{
	"password":   {},
	"password1":  {},
	"12345678":   {},
	"123456789":  {},
	"1234567890": {},
	"qwerty123":  {},
	"qwertyuiop": {},
	"iloveyou":   {},
	"sunshine":   {},
	"princess":   {},
	"football":   {},
	"baseball":   {},
	"letmein1":   {},
	"welcome1":   {},
	"abc12345":   {},
	"trustno1":   {},
}

// ValidateUsername checks length and the allowed character set: letters, digits and @/./+/-/_.
func ValidateUsername(username string) error {
	if username == "" {
		return Error("This field is required.")
	}
	if n := utf8.RuneCountInString(username); n > UsernameMaxLen {
		return Error(fmt.Sprintf("Ensure this value has at most %d characters (it has %d).", UsernameMaxLen, n))
	}
	if !usernameRegex.MatchString(username) {
		return Error("Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	}
	return nil
}

// ValidateEmail checks that email is a single well-formed address.
func ValidateEmail(email string) error {
	if email == "" {
		return Error("This field is required.")
	}
	if err := validate.Var(email, fmt.Sprintf("email,max=%d", EmailMaxLen)); err != nil {
		return Error("Enter a valid email address.")
	}
	return nil
}

// ValidatePassword applies the account password rules. username may be empty when unknown.
func ValidatePassword(password, username string) error {
	n := utf8.RuneCountInString(password)
	switch {
	case n < PasswordMinLen:
		return Error(fmt.Sprintf("This password is too short. It must contain at least %d characters.", PasswordMinLen))
	case n > PasswordMaxLen:
		return Error(fmt.Sprintf("This password is too long. It must contain at most %d characters.", PasswordMaxLen))
	}
	if isAllDigits(password) {
		return Error("This password is entirely numeric.")
	}
	if _, common := commonPasswords[strings.ToLower(password)]; common {
		return Error("This password is too common.")
	}
	if username != "" && strings.EqualFold(password, username) {
		return Error("The password is too similar to the username.")
	}
	return nil
}

// ValidatePasswordPair checks that both entries match before applying ValidatePassword.
// Errors are keyed by the form field they belong to.
func ValidatePasswordPair(password1, password2, username string) map[string]string {
	if password1 == "" || password2 == "" {
		fields := map[string]string{}
		if password1 == "" {
			fields["password1"] = "This field is required."
		}
		if password2 == "" {
			fields["password2"] = "This field is required."
		}
		return fields
	}
	if password1 != password2 {
		return map[string]string{"password2": "The two password fields didn't match."}
	}
	if err := ValidatePassword(password2, username); err != nil {
		return map[string]string{"password2": err.Error()}
	}
	return nil
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
