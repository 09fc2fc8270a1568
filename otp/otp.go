package otp

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

const (
	// Digits is the length of every generated code.
	Digits = 6
	// DefaultPeriod is the width of one time step.
	DefaultPeriod = 30 * time.Second
	// DefaultSkew is how many steps on either side of now are accepted.
	DefaultSkew = 1

	codeModulus = 1_000_000
)

// Engine generates and verifies time-based codes. The zero value uses the
// defaults and the wall clock. A negative Skew accepts the current step only.
type Engine struct {
	Period time.Duration
	Skew   int
	Now    func() time.Time
}

func (e Engine) period() time.Duration {
	if e.Period <= 0 {
		return DefaultPeriod
	}
	return e.Period
}

func (e Engine) skew() int {
	if e.Skew < 0 {
		return 0
	}
	if e.Skew == 0 {
		return DefaultSkew
	}
	return e.Skew
}

func (e Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// Step returns the time step containing t.
func (e Engine) Step(t time.Time) int64 {
	return t.Unix() / int64(e.period()/time.Second)
}

// Generate returns the code for the current step shifted by offset steps.
func (e Engine) Generate(secret string, offset int) (string, error) {
	return e.GenerateAt(secret, e.Step(e.now())+int64(offset))
}

// GenerateAt returns the code for an absolute step.
func (e Engine) GenerateAt(secret string, step int64) (string, error) {
	key, err := DecodeSecret(secret)
	if err != nil {
		return "", err
	}
	if step < 0 {
		step = 0
	}
	return HOTP(key, uint64(step)), nil
}

// Verify reports whether code matches any step within the skew window
// around now. Malformed codes never match and are not an error; an
// undecodable secret is.
func (e Engine) Verify(code, secret string) (bool, error) {
	key, err := DecodeSecret(secret)
	if err != nil {
		return false, err
	}

	code = strings.TrimSpace(code)
	if !ValidFormat(code) {
		return false, nil
	}

	base := e.Step(e.now())
	skew := int64(e.skew())
	matched := 0
	// every candidate is compared so timing does not reveal the matching step
	for off := -skew; off <= skew; off++ {
		counter := base + off
		if counter < 0 {
			continue
		}
		matched |= subtle.ConstantTimeCompare([]byte(HOTP(key, uint64(counter))), []byte(code))
	}

	return matched == 1, nil
}

// HOTP computes the 6-digit HMAC-SHA1 one-time code for counter.
func HOTP(key []byte, counter uint64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	return fmt.Sprintf("%0*d", Digits, bin%codeModulus)
}

// ValidFormat reports whether code is exactly six ASCII digits.
func ValidFormat(code string) bool {
	if len(code) != Digits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
