// Package passwords generates and validates login credentials.
//
// Generated credentials are exactly GeneratedLength characters and
// always contain at least one uppercase letter, one lowercase letter,
// one digit, and one symbol, so they satisfy Validate. Randomness comes
// from crypto/rand.
package passwords

import (
	"crypto/rand"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const (
	// GeneratedLength is the length of generated one-time credentials.
	GeneratedLength = 8

	// MinLength is the minimum accepted length for user-chosen passwords.
	MinLength = 8

	// BcryptCost for hashing credentials.
	BcryptCost = 10
)

const (
	upper   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lower   = "abcdefghijklmnopqrstuvwxyz"
	digits  = "0123456789"
	symbols = "@$!%*?&"
)

// Generate returns a fresh credential satisfying Validate: one character
// from each required class, the rest drawn from the combined alphabet,
// then shuffled so the class characters are not in a fixed position.
func Generate() (string, error) {
	all := upper + lower + digits + symbols

	buf := make([]byte, 0, GeneratedLength)
	for _, set := range []string{upper, lower, digits, symbols} {
		c, err := pick(set)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}
	for len(buf) < GeneratedLength {
		c, err := pick(all)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}

	// Fisher-Yates with crypto/rand indices.
	for i := len(buf) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		j := int(n.Int64())
		buf[i], buf[j] = buf[j], buf[i]
	}

	return string(buf), nil
}

func pick(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, err
	}
	return set[n.Int64()], nil
}

// Validate reports whether pw meets the complexity requirements: at
// least MinLength characters with one uppercase, one lowercase, one
// digit, and one symbol, drawn only from the accepted alphabet.
func Validate(pw string) bool {
	if len(pw) < MinLength {
		return false
	}
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for i := 0; i < len(pw); i++ {
		c := pw[i]
		switch {
		case c >= 'A' && c <= 'Z':
			hasUpper = true
		case c >= 'a' && c <= 'z':
			hasLower = true
		case c >= '0' && c <= '9':
			hasDigit = true
		case isSymbol(c):
			hasSymbol = true
		default:
			return false
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}

func isSymbol(c byte) bool {
	for i := 0; i < len(symbols); i++ {
		if symbols[i] == c {
			return true
		}
	}
	return false
}

// Hash returns the bcrypt hash of a credential.
func Hash(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare reports whether pw matches the stored bcrypt hash.
func Compare(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}
