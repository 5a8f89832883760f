package service

import (
	"fmt"

	"github.com/hashicorp/go-secure-stdlib/base62"
)

const DefaultTokenLength = 10

// TokenGenerator returns a fresh unpredictable alphanumeric value.
type TokenGenerator func(length int) (string, error)

func RandomTokenValue(length int) (string, error) {
	v, err := base62.Random(length)
	if err != nil {
		return "", fmt.Errorf("unable to generate token value: %w", err)
	}
	return v, nil
}
