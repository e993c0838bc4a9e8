package util

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
)

type RsaKeyPair struct {
	Private string
	Public  string
}

// GeneratePemKeypair generates the federation key pair for a local actor.
// The private key is PEM-encoded PKCS#1, the public key PKIX, which is the
// format remote servers expect in an actor's publicKeyPem field.
func GeneratePemKeypair() (*RsaKeyPair, error) {
	bitSize := 2048

	key, err := rsa.GenerateKey(rand.Reader, bitSize)
	if err != nil {
		return nil, err
	}

	keyPEM := pem.EncodeToMemory(
		&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(key),
		},
	)

	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, err
	}

	pubPEM := pem.EncodeToMemory(
		&pem.Block{
			Type:  "PUBLIC KEY",
			Bytes: pubBytes,
		},
	)

	return &RsaKeyPair{Private: string(keyPEM), Public: string(pubPEM)}, nil
}

func PrettyPrint(i interface{}) string {
	s, _ := json.MarshalIndent(i, "", " ")
	return string(s)
}
