// Package seal encrypts configuration text with age so private keys can be
// stored outside the host, e.g. in etcd.
package seal

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"
)

var ErrNoRecipients = errors.New("no age recipients configured")

// Seal encrypts plaintext to every recipient and returns ASCII-armored text.
func Seal(plaintext []byte, recipients ...age.Recipient) (string, error) {
	if len(recipients) == 0 {
		return "", ErrNoRecipients
	}

	var buf bytes.Buffer
	aw := armor.NewWriter(&buf)
	w, err := age.Encrypt(aw, recipients...)
	if err != nil {
		_ = aw.Close()
		return "", fmt.Errorf("encrypt: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		_ = w.Close()
		_ = aw.Close()
		return "", fmt.Errorf("encrypt: %w", err)
	}
	if err := w.Close(); err != nil {
		_ = aw.Close()
		return "", fmt.Errorf("encrypt: %w", err)
	}
	if err := aw.Close(); err != nil {
		return "", fmt.Errorf("armor: %w", err)
	}
	return buf.String(), nil
}

// Open decrypts armored text produced by Seal.
func Open(armored string, identities ...age.Identity) ([]byte, error) {
	ar := armor.NewReader(strings.NewReader(strings.TrimSpace(armored)))
	r, err := age.Decrypt(ar, identities...)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	pt, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read decrypted configuration: %w", err)
	}
	return pt, nil
}

// IsSealed reports whether text looks like the output of Seal.
func IsSealed(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), armor.Header)
}

// ParseRecipients parses age1... public keys.
func ParseRecipients(keys []string) ([]age.Recipient, error) {
	out := make([]age.Recipient, 0, len(keys))
	for _, k := range keys {
		r, err := age.ParseX25519Recipient(strings.TrimSpace(k))
		if err != nil {
			return nil, fmt.Errorf("parse age recipient %q: %w", k, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// LoadIdentities reads an age identity file (AGE-SECRET-KEY-... lines,
// comments allowed).
func LoadIdentities(path string) ([]age.Identity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ids, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("parse age identities in %s: %w", path, err)
	}
	return ids, nil
}
