package activitypub

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"reflect"
	"strings"
	"testing"
)

// generateTestKeyPair generates an RSA key pair for testing
func generateTestKeyPair(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}
	return privateKey
}

// privateKeyToPEM converts private key to PEM string
func privateKeyToPEM(key *rsa.PrivateKey) string {
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))
}

// publicKeyToPEM converts public key to PEM string
func publicKeyToPEM(t *testing.T, key any) string {
	t.Helper()
	keyBytes, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		t.Fatalf("Failed to marshal public key: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: keyBytes,
	}))
}

func TestSigningStringOrder(t *testing.T) {
	s := NewSigningString().
		Add(RequestTarget, "post /users/alice/inbox").
		Add("host", "example.com").
		Add("date", "Mon, 01 Jan 2024 00:00:00 GMT")

	want := "(request-target): post /users/alice/inbox\nhost: example.com\ndate: Mon, 01 Jan 2024 00:00:00 GMT"
	if got := s.String(); got != want {
		t.Errorf("Signing string mismatch:\ngot  %q\nwant %q", got, want)
	}

	wantNames := []string{RequestTarget, "host", "date"}
	if got := s.FieldNames(); !reflect.DeepEqual(got, wantNames) {
		t.Errorf("FieldNames = %v, want %v", got, wantNames)
	}
}

func TestParseSignatureHeader(t *testing.T) {
	header := `keyId="https://example.com/users/alice#main-key",algorithm="rsa-sha256",headers="(request-target) host date digest",signature="dGVzdA=="`

	params, err := ParseSignatureHeader(header)
	if err != nil {
		t.Fatalf("ParseSignatureHeader failed: %v", err)
	}

	if params.KeyID != "https://example.com/users/alice#main-key" {
		t.Errorf("KeyID = %q", params.KeyID)
	}
	if params.Algorithm != "rsa-sha256" {
		t.Errorf("Algorithm = %q", params.Algorithm)
	}
	wantHeaders := []string{RequestTarget, "host", "date", "digest"}
	if !reflect.DeepEqual(params.Headers, wantHeaders) {
		t.Errorf("Headers = %v, want %v", params.Headers, wantHeaders)
	}
	if params.Signature != "dGVzdA==" {
		t.Errorf("Signature = %q", params.Signature)
	}
}

func TestParseSignatureHeaderMalformed(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"empty", ""},
		{"no separator", `keyId=nosuchquote`},
		{"missing keyId", `algorithm="rsa-sha256",headers="date",signature="dGVzdA=="`},
		{"missing headers", `keyId="abc",signature="dGVzdA=="`},
		{"missing signature", `keyId="abc",headers="date"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSignatureHeader(tt.header); err == nil {
				t.Errorf("Expected error for %q", tt.header)
			}
		})
	}
}

func TestFormatParseRoundtrip(t *testing.T) {
	header := FormatSignatureHeader(
		"https://example.com/users/bob#main-key",
		[]string{RequestTarget, "host", "date"},
		"c2lnbmF0dXJl",
	)

	params, err := ParseSignatureHeader(header)
	if err != nil {
		t.Fatalf("ParseSignatureHeader failed on formatted header: %v", err)
	}
	if params.KeyID != "https://example.com/users/bob#main-key" {
		t.Errorf("KeyID = %q", params.KeyID)
	}
	if strings.Join(params.Headers, " ") != "(request-target) host date" {
		t.Errorf("Headers = %v", params.Headers)
	}
	if params.Signature != "c2lnbmF0dXJl" {
		t.Errorf("Signature = %q", params.Signature)
	}
}

func TestParsePrivateKey(t *testing.T) {
	key := generateTestKeyPair(t)

	parsed, err := ParsePrivateKey(privateKeyToPEM(key))
	if err != nil {
		t.Fatalf("ParsePrivateKey failed: %v", err)
	}
	if parsed.N.Cmp(key.N) != 0 {
		t.Error("Parsed key doesn't match original")
	}
}

func TestParsePrivateKeyInvalidPEM(t *testing.T) {
	if _, err := ParsePrivateKey("not a valid PEM"); err == nil {
		t.Error("Expected error for invalid PEM")
	}
}

func TestParsePublicKey(t *testing.T) {
	key := generateTestKeyPair(t)

	parsed, err := ParsePublicKey(publicKeyToPEM(t, &key.PublicKey))
	if err != nil {
		t.Fatalf("ParsePublicKey failed: %v", err)
	}
	rsaKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		t.Fatalf("Expected *rsa.PublicKey, got %T", parsed)
	}
	if rsaKey.N.Cmp(key.N) != 0 {
		t.Error("Parsed key doesn't match original")
	}
}

func TestParsePublicKeyInvalidPEM(t *testing.T) {
	if _, err := ParsePublicKey("garbage"); err == nil {
		t.Error("Expected error for invalid PEM")
	}
}
