package httphandler

import "fmt"

// Form rules applied before a request reaches the account or vault service.
// The services accept any strings; these limits belong to the API surface.
const (
	minFieldLength = 5
	maxFieldLength = 20
)

// validateUsername requires 5-20 ASCII letters or digits.
func validateUsername(username string) error {
	if err := checkLength("username", username); err != nil {
		return err
	}
	for _, ch := range username {
		if !isASCIILetter(ch) && !isASCIIDigit(ch) {
			return fmt.Errorf("username must contain only letters and numbers")
		}
	}
	return nil
}

// validateAccountPassword requires 5-20 ASCII letters or digits with at least
// one lowercase letter, one uppercase letter and one digit.
func validateAccountPassword(password string) error {
	if err := checkLength("password", password); err != nil {
		return err
	}

	var lower, upper, digit bool
	for _, ch := range password {
		switch {
		case ch >= 'a' && ch <= 'z':
			lower = true
		case ch >= 'A' && ch <= 'Z':
			upper = true
		case isASCIIDigit(ch):
			digit = true
		default:
			return fmt.Errorf("password must contain only letters and numbers")
		}
	}
	if !lower || !upper || !digit {
		return fmt.Errorf("password must contain at least one uppercase letter, one lowercase letter, and one number")
	}
	return nil
}

func checkLength(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	if n := len(value); n < minFieldLength || n > maxFieldLength {
		return fmt.Errorf("%s must be between %d and %d characters long", field, minFieldLength, maxFieldLength)
	}
	return nil
}

func isASCIILetter(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isASCIIDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}
