// Package phone normalizes contact phone numbers.
package phone

import (
	"fmt"

	"github.com/nyaruka/phonenumbers"
)

// Normalize parses a contact phone number and returns it in E.164
// format. countryCode is the fallback region for national numbers and
// defaults to US.
func Normalize(phone, countryCode string) (string, error) {
	if phone == "" {
		return "", fmt.Errorf("phone number cannot be empty")
	}

	if countryCode == "" {
		countryCode = "US"
	}

	parsed, err := phonenumbers.Parse(phone, countryCode)
	if err != nil {
		return "", fmt.Errorf("failed to parse phone number: %w", err)
	}

	if !phonenumbers.IsValidNumber(parsed) {
		return "", fmt.Errorf("invalid phone number")
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

// IsValid reports whether a phone number parses as a valid number
func IsValid(phone, countryCode string) bool {
	_, err := Normalize(phone, countryCode)
	return err == nil
}
