package service

import "errors"

var (
	// ErrUserNotFound covers both an unknown email and a wrong password.
	ErrUserNotFound = errors.New("user not found")
	ErrValidation   = errors.New("validation failed")
	ErrEmailTaken   = errors.New("email already registered")
)
