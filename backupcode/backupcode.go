package backupcode

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultCount is the number of codes issued per batch.
	DefaultCount = 8
	// DefaultCost is the bcrypt work factor for stored codes.
	DefaultCost = 10
	// CodeLength is the number of hex characters in a code.
	CodeLength = 8

	codeBytes = CodeLength / 2
)

// ErrInvalidCount is returned when asked for a non-positive number of codes.
var ErrInvalidCount = errors.New("backup code count must be positive")

// Manager hashes and consumes backup codes. The zero value uses DefaultCost.
type Manager struct {
	Cost int
}

func (m Manager) cost() int {
	if m.Cost < bcrypt.MinCost || m.Cost > bcrypt.MaxCost {
		return DefaultCost
	}
	return m.Cost
}

// Generate returns n fresh codes, each 8 upper-case hex characters drawn from
// crypto/rand. Duplicates within a batch are redrawn.
func Generate(n int) ([]string, error) {
	if n <= 0 {
		return nil, ErrInvalidCount
	}

	codes := make([]string, 0, n)
	seen := make(map[string]struct{}, n)
	buf := make([]byte, codeBytes)
	for len(codes) < n {
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate backup code: %w", err)
		}
		code := strings.ToUpper(hex.EncodeToString(buf))
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

// Hash returns the bcrypt hash of every code, in order.
func (m Manager) Hash(codes []string) ([]string, error) {
	hashes := make([]string, len(codes))
	for i, code := range codes {
		h, err := bcrypt.GenerateFromPassword([]byte(Canonicalize(code)), m.cost())
		if err != nil {
			return nil, fmt.Errorf("hash backup code: %w", err)
		}
		hashes[i] = string(h)
	}
	return hashes, nil
}

// Issue generates n codes and their hashes. The plaintext is only ever
// returned here.
func (m Manager) Issue(n int) (codes []string, hashes []string, err error) {
	codes, err = Generate(n)
	if err != nil {
		return nil, nil, err
	}
	hashes, err = m.Hash(codes)
	if err != nil {
		return nil, nil, err
	}
	return codes, hashes, nil
}

// Consume compares candidate against each stored hash with bcrypt. On a
// match it returns true and a new slice without that hash; otherwise false
// and the input unchanged. The input slice is never modified.
func (m Manager) Consume(candidate string, hashes []string) (bool, []string) {
	code := Canonicalize(candidate)
	if len(code) != CodeLength {
		return false, hashes
	}

	for i, h := range hashes {
		if bcrypt.CompareHashAndPassword([]byte(h), []byte(code)) != nil {
			continue
		}
		remaining := make([]string, 0, len(hashes)-1)
		remaining = append(remaining, hashes[:i]...)
		remaining = append(remaining, hashes[i+1:]...)
		return true, remaining
	}
	return false, hashes
}

// Canonicalize upper-cases a user-typed code and drops spaces and dashes.
func Canonicalize(code string) string {
	code = strings.TrimSpace(code)
	code = strings.NewReplacer(" ", "", "-", "").Replace(code)
	return strings.ToUpper(code)
}
