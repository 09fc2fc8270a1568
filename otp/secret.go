package otp

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"net/url"
	"strconv"
	"strings"
)

// SecretBytes is the size of a newly issued shared secret.
const SecretBytes = 20

// ErrInvalidSecret is returned for secrets that are empty, not base32 or
// shorter than SecretBytes once decoded.
var ErrInvalidSecret = errors.New("invalid otp secret")

var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewSecret returns SecretBytes of crypto/rand output encoded as unpadded
// base32, the form authenticator apps accept.
func NewSecret() (string, error) {
	raw := make([]byte, SecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return secretEncoding.EncodeToString(raw), nil
}

// DecodeSecret decodes a base32 secret. Case, spaces and trailing padding
// are ignored.
func DecodeSecret(secret string) ([]byte, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(secret), " ", ""))
	normalized = strings.TrimRight(normalized, "=")
	if normalized == "" {
		return nil, ErrInvalidSecret
	}
	key, err := secretEncoding.DecodeString(normalized)
	if err != nil || len(key) < SecretBytes {
		return nil, ErrInvalidSecret
	}
	return key, nil
}

// ProvisioningURI returns the otpauth:// URI authenticator apps import,
// labelled "issuer:account".
func ProvisioningURI(issuer, account, secret string) string {
	label := url.PathEscape(issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", issuer)
	v.Set("algorithm", "SHA1")
	v.Set("digits", strconv.Itoa(Digits))
	v.Set("period", strconv.Itoa(int(DefaultPeriod.Seconds())))

	return "otpauth://totp/" + label + "?" + v.Encode()
}
