package signing

const redacted = "[REDACTED]"

// Secret holds the merchant secret key. Every printable form of a Secret is
// redacted, including when it sits inside a struct printed with %v or %+v.
type Secret struct {
	key *secretKey
}

type secretKey struct {
	value string
}

func NewSecret(key string) Secret {
	return Secret{key: &secretKey{value: key}}
}

// IsZero reports whether no key was configured.
func (s Secret) IsZero() bool {
	return s.key == nil || s.key.value == ""
}

func (s Secret) String() string {
	return redacted
}

func (s Secret) GoString() string {
	return "signing.Secret(" + redacted + ")"
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

func (s Secret) reveal() string {
	if s.key == nil {
		return ""
	}
	return s.key.value
}
