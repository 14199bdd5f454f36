package validation

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// UsernamePattern определяет допустимый формат username:
// латинские буквы, цифры, нижнее подчеркивание и точка, 3-32 символа
var UsernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.]{3,32}$`)

const (
	// MinUsernameLen минимальная длина username
	MinUsernameLen = 3
	// MaxUsernameLen максимальная длина username
	MaxUsernameLen = 32
	// MinPasswordLen минимальная длина пароля
	MinPasswordLen = 8
	// MaxPasswordLen ограничение bcrypt (72 байта)
	MaxPasswordLen = 72
)

// ValidateUsername проверяет, что username соответствует требованиям
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLen {
		return fmt.Errorf("username must be at least %d characters long", MinUsernameLen)
	}
	if len(username) > MaxUsernameLen {
		return fmt.Errorf("username must not exceed %d characters", MaxUsernameLen)
	}
	if !UsernamePattern.MatchString(username) {
		return fmt.Errorf("username can only contain letters, numbers, dots and underscores")
	}
	return nil
}

// ValidatePassword checks the account password before it is hashed.
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}
	if utf8.RuneCountInString(password) < MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLen)
	}
	if len(password) > MaxPasswordLen {
		return fmt.Errorf("password must not exceed %d bytes", MaxPasswordLen)
	}
	return nil
}
