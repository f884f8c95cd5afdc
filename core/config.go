package core

import "unicode"

// PasswordPolicy is the minimum bar for member-chosen passwords. Applied on
// sign-up, password set/change, and reset; never on sign-in.
type PasswordPolicy struct {
	MinLength     int
	MaxLength     int
	RequireLetter bool
	RequireDigit  bool
}

// DefaultPasswordPolicy requires 8-128 characters with at least one letter
// and one digit.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:     8,
		MaxLength:     128,
		RequireLetter: true,
		RequireDigit:  true,
	}
}

// Validate checks a plaintext password against the policy.
func (p PasswordPolicy) Validate(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if len(password) < p.MinLength {
		return ErrPasswordTooShort
	}
	if p.MaxLength > 0 && len(password) > p.MaxLength {
		return ErrPasswordTooLong
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if p.RequireLetter && !hasLetter {
		return ErrPasswordTooWeak
	}
	if p.RequireDigit && !hasDigit {
		return ErrPasswordTooWeak
	}
	return nil
}
