package activitypub

import (
	"fmt"
	"strings"
)

// SigningString builds the canonical line-oriented string that both the
// signer and the verifier run the signature algorithm over. Field order is
// significant: the order fields are added here is the order they are declared
// in the Signature header, and the verifier must rebuild the string in the
// declared order, not its own.
type SigningString struct {
	fields []signedField
}

type signedField struct {
	name  string
	value string
}

// RequestTarget is the pseudo-header carrying "<method> <path>".
const RequestTarget = "(request-target)"

func NewSigningString() *SigningString {
	return &SigningString{}
}

func (s *SigningString) Add(name, value string) *SigningString {
	s.fields = append(s.fields, signedField{name: name, value: value})
	return s
}

// FieldNames returns the declared field names in order, for the Signature
// header's headers parameter.
func (s *SigningString) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.name
	}
	return names
}

func (s *SigningString) String() string {
	lines := make([]string, len(s.fields))
	for i, f := range s.fields {
		lines[i] = fmt.Sprintf("%s: %s", f.name, f.value)
	}
	return strings.Join(lines, "\n")
}

// SignatureParams is the parsed form of a Signature header's comma-separated
// key="value" list. Headers preserves the declared order, which dictates
// which fields participate in the signed message and in what sequence.
type SignatureParams struct {
	KeyID     string
	Algorithm string
	Headers   []string
	Signature string
}

// ParseSignatureHeader parses a Signature header value. A parameter without
// the `="` separator is a hard parse error, not something to skip over.
func ParseSignatureHeader(header string) (*SignatureParams, error) {
	params := &SignatureParams{}
	seenHeaders := false

	for _, part := range strings.Split(header, ",") {
		name, value, found := strings.Cut(part, `="`)
		if !found {
			return nil, fmt.Errorf("malformed signature parameter: %q", part)
		}
		value = strings.ReplaceAll(value, `"`, "")

		switch strings.TrimSpace(name) {
		case "keyId":
			params.KeyID = value
		case "algorithm":
			params.Algorithm = value
		case "headers":
			params.Headers = strings.Split(value, " ")
			seenHeaders = true
		case "signature":
			params.Signature = value
		}
	}

	if params.KeyID == "" {
		return nil, fmt.Errorf("signature header missing keyId")
	}
	if !seenHeaders {
		return nil, fmt.Errorf("signature header missing headers list")
	}
	if params.Signature == "" {
		return nil, fmt.Errorf("signature header missing signature")
	}

	return params, nil
}

// FormatSignatureHeader serializes the Signature header for an outgoing
// request.
func FormatSignatureHeader(keyID string, headers []string, signature string) string {
	parts := []string{
		fmt.Sprintf(`keyId="%s"`, keyID),
		`algorithm="rsa-sha256"`,
		fmt.Sprintf(`headers="%s"`, strings.Join(headers, " ")),
		fmt.Sprintf(`signature="%s"`, signature),
	}
	return strings.Join(parts, ",")
}
