package activitypub

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// PublicKeyDoc is the publicKey object of a previously resolved actor
// profile. Owner is the controller identity a successful verification
// attests to.
type PublicKeyDoc struct {
	ID           string `json:"id"`
	Owner        string `json:"owner"`
	PublicKeyPem string `json:"publicKeyPem"`
}

// VerifyResult is the outcome of signature validation. All parse and verify
// failures on attacker-controlled input end up here as a failure with a
// reason; nothing in this file panics or returns a Go error for bad input.
type VerifyResult struct {
	OK bool
	// Identity is the verified controller (the actor URL owning the key),
	// set only on success.
	Identity string
	Reason   string
}

func verified(identity string) VerifyResult {
	return VerifyResult{OK: true, Identity: identity}
}

func verifyFailure(format string, args ...any) VerifyResult {
	return VerifyResult{Reason: fmt.Sprintf(format, args...)}
}

// VerifyRequest validates an inbound request's Signature header against the
// actor's resolved public key.
//
// No timestamp freshness window is enforced: a previously valid signed
// request replays successfully. The acceptable window is unspecified
// upstream, so none is invented here.
func VerifyRequest(key PublicKeyDoc, method, target string, headers http.Header, body []byte) VerifyResult {
	if headers.Get("Signature") == "" {
		return verifyFailure("missing signature header")
	}

	var digest string
	if strings.EqualFold(method, "POST") && body != nil {
		digest = ContentDigest(body)
		reqDigest := headers.Get("Digest")
		// The algorithm prefix is matched case-insensitively, the base64
		// payload is not.
		if len(reqDigest) >= 8 {
			reqDigest = strings.ToUpper(reqDigest[:8]) + reqDigest[8:]
		}
		if digest != reqDigest {
			return verifyFailure("digest mismatch: %s != %s", digest, reqDigest)
		}
	}

	params, err := ParseSignatureHeader(headers.Get("Signature"))
	if err != nil {
		return verifyFailure("invalid signature header: %v", err)
	}

	declared := map[string]bool{}
	for _, f := range params.Headers {
		declared[f] = true
	}
	if !declared[RequestTarget] || !declared["date"] {
		return verifyFailure("missing required signature fields in %v", params.Headers)
	}
	if digest != "" && !declared["digest"] {
		return verifyFailure("missing digest field")
	}

	if key.ID != params.KeyID {
		return verifyFailure("key ID mismatch: expected(%s) != parsed(%s)", key.ID, params.KeyID)
	}

	// Rebuild the signed message in the declared field order, substituting
	// live header values for each non-pseudo field.
	signing := NewSigningString()
	for _, field := range params.Headers {
		if field == RequestTarget {
			signing.Add(field, fmt.Sprintf("%s %s", strings.ToLower(method), target))
			continue
		}
		value := headers.Get(field)
		if value == "" {
			return verifyFailure("declared field %q not present in request", field)
		}
		signing.Add(field, value)
	}

	signature, err := base64.StdEncoding.DecodeString(params.Signature)
	if err != nil {
		return verifyFailure("signature is not valid base64: %v", err)
	}

	publicKey, err := ParsePublicKey(key.PublicKeyPem)
	if err != nil {
		return verifyFailure("unusable public key: %v", err)
	}

	message := []byte(signing.String())

	switch pk := publicKey.(type) {
	case *rsa.PublicKey:
		hashed := sha256.Sum256(message)
		if err := rsa.VerifyPKCS1v15(pk, crypto.SHA256, hashed[:], signature); err != nil {
			return verifyFailure("invalid signature: %v", err)
		}
		return verified(key.Owner)
	case ed25519.PublicKey:
		if !ed25519.Verify(pk, message, signature) {
			return verifyFailure("invalid signature")
		}
		return verified(key.Owner)
	default:
		return verifyFailure("unsupported public key type: %T", publicKey)
	}
}
