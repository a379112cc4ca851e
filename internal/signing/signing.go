// Package signing produces and verifies HMAC signatures for voucher export
// download URLs, so the object store never has to be exposed directly.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Signer generates and validates export-link signatures.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer.
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret}
}

// Sign returns the hex signature binding an instance id, a voucher id, and an
// expiry to the signing secret.
func (s *Signer) Sign(instanceID, voucherID string, expiresUnix int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s:%s:%d", instanceID, voucherID, expiresUnix)
	return hex.EncodeToString(mac.Sum(nil))
}

// Validate checks a signature in constant time.
func (s *Signer) Validate(instanceID, voucherID, expires, signature string) bool {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return false
	}
	expected := s.Sign(instanceID, voucherID, exp)
	return hmac.Equal([]byte(expected), []byte(signature))
}
