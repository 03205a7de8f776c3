package signing

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"hash"
	"strings"
)

// Algorithm selects the digest used for a signature. MD5 is what the gateway
// expects on payout calls, SHA-256 on iframe/h2h calls and their callbacks.
type Algorithm int

const (
	MD5 Algorithm = iota + 1
	SHA256
)

// String returns the configuration token of the algorithm
func (a Algorithm) String() string {
	switch a {
	case MD5:
		return "md5"
	case SHA256:
		return "sha256"
	default:
		return "unknown"
	}
}

// ParseAlgorithm accepts "md5", "sha256" or "sha-256", case-insensitively.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "md5":
		return MD5, nil
	case "sha256", "sha-256":
		return SHA256, nil
	default:
		return 0, fmt.Errorf("unsupported signature algorithm %q", s)
	}
}

func (a Algorithm) newHash() hash.Hash {
	switch a {
	case MD5:
		return md5.New()
	case SHA256:
		return sha256.New()
	default:
		panic(fmt.Sprintf("signing: unknown algorithm %d", int(a)))
	}
}

// Sign returns base64(hash(Canonicalize(p) + ":" + secret)) using the standard
// alphabet with padding.
func Sign(p Payload, secret Secret, alg Algorithm) string {
	return SignCanonical(Canonicalize(p), secret, alg)
}

// SignCanonical signs an already canonicalized string.
func SignCanonical(canonical string, secret Secret, alg Algorithm) string {
	h := alg.newHash()
	h.Write([]byte(canonical))
	h.Write([]byte(Separator))
	h.Write([]byte(secret.reveal()))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Verify recomputes the signature of p and compares it with signature in
// constant time. p must not contain the signature field itself.
func Verify(p Payload, secret Secret, alg Algorithm, signature string) bool {
	if signature == "" {
		return false
	}
	expected := Sign(p, secret, alg)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
