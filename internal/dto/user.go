package dto

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type CreateUserRequest struct {
	Username string  `json:"username"`
	Display  *string `json:"display,omitempty"`
	Password string  `json:"password"`
}

func (r CreateUserRequest) Validate() error {
	if err := lengthBetween("username", r.Username, 3, 30); err != nil {
		return err
	}
	if !usernamePattern.MatchString(r.Username) {
		return fmt.Errorf(`"username" may only contain letters, digits, "_" and "-"`)
	}
	if r.Display != nil {
		if err := lengthBetween("display", *r.Display, 3, 30); err != nil {
			return err
		}
	}
	return validatePassword(r.Password)
}

type ChangePasswordRequest struct {
	Password string `json:"password"`
}

func (r ChangePasswordRequest) Validate() error { return validatePassword(r.Password) }

type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Display  string `json:"display"`
}

type IDResponse struct {
	ID string `json:"id"`
}

func validatePassword(p string) error {
	return lengthBetween("password", p, 5, 50)
}

func lengthBetween(field, v string, min, max int) error {
	n := utf8.RuneCountInString(v)
	if n == 0 {
		return fmt.Errorf("%q is required", field)
	}
	if n < min || n > max {
		return fmt.Errorf("%q must be between %d and %d characters", field, min, max)
	}
	return nil
}
