package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost       = 12
	ResetTokenLength = 32 // bytes of entropy before hex encoding
	MinPasswordLen   = 8
	MaxPasswordLen   = 72 // bcrypt ignores everything past 72 bytes
)

// PasswordValidationError lists every policy rule a password broke.
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "password validation failed"
	}
	return "password " + strings.Join(e.Errors, ", ")
}

// commonPasswords is matched case-insensitively. It includes the
// school-flavoured defaults staff tend to hand out.
var commonPasswords = newPasswordSet(
	"password", "password123", "password123!", "password@123", "passw0rd",
	"12345678", "123456", "123123", "qwerty", "abc123", "admin", "letmein",
	"welcome", "welcome@123", "school@123", "student@123", "teacher@123",
	"monkey", "dragon", "master", "shadow", "sunshine", "princess",
	"starwars", "football", "trustno1",
)

func newPasswordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// characterRules are checked in order; each must match at least one rune.
var characterRules = []struct {
	match   func(rune) bool
	message string
}{
	{unicode.IsUpper, "must contain at least one uppercase letter"},
	{unicode.IsLower, "must contain at least one lowercase letter"},
	{unicode.IsDigit, "must contain at least one digit"},
	{func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSymbol(r) }, "must contain at least one special character"},
}

func HashPassword(password string) (string, error) {
	return HashPasswordWithCost(password, BcryptCost)
}

// HashPasswordWithCost lets tests hash with bcrypt.MinCost.
func HashPasswordWithCost(password string, cost int) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// GenerateResetToken returns a random hex token for the user and the SHA-256
// hash that is stored in its place.
func GenerateResetToken() (token, hash string, err error) {
	raw := make([]byte, ResetTokenLength)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	token = hex.EncodeToString(raw)
	return token, HashResetToken(token), nil
}

func HashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ValidatePassword applies the account password policy and reports every
// broken rule at once.
func ValidatePassword(password string) error {
	var problems []string

	if len(password) < MinPasswordLen {
		problems = append(problems, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}
	if len(password) > MaxPasswordLen {
		problems = append(problems, fmt.Sprintf("must be at most %d bytes", MaxPasswordLen))
	}

	for _, rule := range characterRules {
		if strings.IndexFunc(password, rule.match) < 0 {
			problems = append(problems, rule.message)
		}
	}

	if _, weak := commonPasswords[strings.ToLower(password)]; weak {
		problems = append(problems, "is too common, please choose a more unique password")
	}

	if len(problems) > 0 {
		return &PasswordValidationError{Errors: problems}
	}
	return nil
}
