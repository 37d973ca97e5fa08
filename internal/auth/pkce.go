package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// PKCE challenge methods (RFC 7636 §4.3).
const (
	PKCEMethodS256  = "S256"
	PKCEMethodPlain = "plain"
)

// VerifyPKCE checks a code verifier against the challenge stored at code
// issuance. For S256 the challenge must equal the unpadded base64url
// SHA-256 of the verifier; for plain (the RFC default when no method was
// recorded) the verifier itself. Comparison is constant-time.
func VerifyPKCE(verifier, challenge, method string) bool {
	if verifier == "" || challenge == "" {
		return false
	}
	// RFC 7636 §4.1: verifier length is 43..128 characters.
	if len(verifier) < 43 || len(verifier) > 128 {
		return false
	}

	var computed string
	switch method {
	case PKCEMethodS256:
		sum := sha256.Sum256([]byte(verifier))
		computed = base64.RawURLEncoding.EncodeToString(sum[:])
	case PKCEMethodPlain, "":
		computed = verifier
	default:
		return false
	}

	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}
