package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testVerifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

func s256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func TestVerifyPKCES256(t *testing.T) {
	challenge := s256Challenge(testVerifier)

	assert.True(t, VerifyPKCE(testVerifier, challenge, PKCEMethodS256))
	assert.False(t, VerifyPKCE(strings.Repeat("x", 43), challenge, PKCEMethodS256))
	assert.False(t, VerifyPKCE("", challenge, PKCEMethodS256))
}

func TestVerifyPKCEPlain(t *testing.T) {
	verifier := strings.Repeat("a", 43)

	assert.True(t, VerifyPKCE(verifier, verifier, PKCEMethodPlain))
	// Method defaults to plain when none was recorded at issuance.
	assert.True(t, VerifyPKCE(verifier, verifier, ""))
	assert.False(t, VerifyPKCE(verifier, "something-else", PKCEMethodPlain))
}

func TestVerifyPKCERejectsBadInput(t *testing.T) {
	challenge := s256Challenge(testVerifier)

	// Verifier outside the RFC 7636 length bounds.
	assert.False(t, VerifyPKCE("short", challenge, PKCEMethodS256))
	assert.False(t, VerifyPKCE(strings.Repeat("a", 129), strings.Repeat("a", 129), PKCEMethodPlain))

	// Unknown method.
	assert.False(t, VerifyPKCE(testVerifier, challenge, "S512"))

	// Empty challenge never matches.
	assert.False(t, VerifyPKCE(testVerifier, "", PKCEMethodS256))
}
