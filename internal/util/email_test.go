package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "user@example.com", NormalizeEmail("  User@Example.COM "))
	assert.Equal(t, "user@example.com", NormalizeEmail("user@example.com"))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestValidateEmail(t *testing.T) {
	valid := []string{
		"user@example.com",
		"first.last@sub.domain.org",
		"user+tag@example.com",
	}
	for _, email := range valid {
		assert.NoError(t, ValidateEmail(email), email)
	}

	invalid := []string{
		"",
		"   ",
		"plainaddress",
		"@example.com",
		"user@",
		"user@exam ple.com",
	}
	for _, email := range invalid {
		assert.ErrorIs(t, ValidateEmail(email), ErrInvalidEmail, email)
	}
}

func TestEmailHashIsStableAndNormalized(t *testing.T) {
	a := EmailHash("User@Example.COM")
	b := EmailHash("user@example.com")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	assert.NotEqual(t, a, EmailHash("other@example.com"))
}
