package crypto

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// CharClass selects character sets for GeneratePassword. Classes combine with |.
type CharClass uint8

const (
	Upper CharClass = 1 << iota
	Lower
	Digits
	Symbols

	AllClasses = Upper | Lower | Digits | Symbols
)

const (
	MinPasswordLength     = 8
	MaxPasswordLength     = 128
	DefaultPasswordLength = 20
)

var (
	ErrPasswordLength = errors.New("password length must be between 8 and 128")
	ErrNoCharClass    = errors.New("at least one character class must be selected")
)

var classSets = []struct {
	class CharClass
	chars string
}{
	{Upper, "ABCDEFGHIJKLMNOPQRSTUVWXYZ"},
	{Lower, "abcdefghijklmnopqrstuvwxyz"},
	{Digits, "0123456789"},
	{Symbols, "!@#$%^&*()_+-=[]{}|;:,.<>?"},
}

// GeneratePassword returns a random password drawn from crypto/rand that contains
// at least one character of every selected class.
func GeneratePassword(length int, classes CharClass) (string, error) {
	if length < MinPasswordLength || length > MaxPasswordLength {
		return "", ErrPasswordLength
	}

	var pool string
	var required []string
	for _, s := range classSets {
		if classes&s.class != 0 {
			pool += s.chars
			required = append(required, s.chars)
		}
	}
	if len(required) == 0 {
		return "", ErrNoCharClass
	}

	out := make([]byte, length)
	for i := range out {
		set := pool
		if i < len(required) {
			set = required[i]
		}
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
		if err != nil {
			return "", err
		}
		out[i] = set[n.Int64()]
	}

	// Fisher-Yates so the guaranteed characters are not always at the front.
	for i := len(out) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		out[i], out[j.Int64()] = out[j.Int64()], out[i]
	}

	return string(out), nil
}
