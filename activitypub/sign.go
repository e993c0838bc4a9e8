package activitypub

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ContentType is the activity media type used for every federation exchange.
const ContentType = "application/activity+json"

// ContentDigest computes the digest header value binding a request body to
// its signature.
func ContentDigest(body []byte) string {
	hash := sha256.Sum256(body)
	return "SHA-256=" + base64.StdEncoding.EncodeToString(hash[:])
}

func gmtNow() string {
	return time.Now().UTC().Format(http.TimeFormat)
}

// SignHeaders produces the full header set for an outgoing signed request:
// signature, digest, date, host, content-type and accept. The signature
// covers (request-target), host and date, plus digest and content-type when
// a body is present. Given identical inputs the output differs only in the
// date header.
func SignHeaders(privateKey *rsa.PrivateKey, keyID, method, target, host string, body []byte) (http.Header, error) {
	date := gmtNow()

	signing := NewSigningString().
		Add(RequestTarget, fmt.Sprintf("%s %s", strings.ToLower(method), target)).
		Add("host", host).
		Add("date", date)

	headers := http.Header{}
	headers.Set("Accept", ContentType)
	headers.Set("Date", date)
	headers.Set("Host", host)
	headers.Set("Content-Type", ContentType)

	if body != nil {
		digest := ContentDigest(body)
		signing.Add("digest", digest).Add("content-type", ContentType)
		headers.Set("Digest", digest)
	}

	hashed := sha256.Sum256([]byte(signing.String()))
	sig, err := rsa.SignPKCS1v15(rand.Reader, privateKey, crypto.SHA256, hashed[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}

	signature := base64.StdEncoding.EncodeToString(sig)
	headers.Set("Signature", FormatSignatureHeader(keyID, signing.FieldNames(), signature))

	return headers, nil
}
