// Package signer loads the GPG public keys package archives are signed
// with, as published to clients in the repository listing.
package signer

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
)

// PublicKey is one loaded keyring
type PublicKey struct {
	Path         string
	Fingerprints []string
	// Armored is the ASCII armored keyring with carriage returns removed
	Armored string
}

// LoadPublicKey reads an armored or binary public keyring from path
func LoadPublicKey(path string) (*PublicKey, error) {
	if path == "" {
		return nil, fmt.Errorf("key path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	key, err := ParsePublicKey(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	key.Path = path
	return key, nil
}

// ParsePublicKey parses an armored or binary public keyring. Armored input
// is published as given; binary input is armored.
func ParsePublicKey(data []byte) (*PublicKey, error) {
	// Try to parse as armored key first
	armored := true
	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		// Try as binary key
		armored = false
		entities, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to read key: %w", err)
		}
	}

	if len(entities) == 0 {
		return nil, fmt.Errorf("no keys found in key file")
	}

	key := &PublicKey{}
	for _, entity := range entities {
		key.Fingerprints = append(key.Fingerprints, fmt.Sprintf("%X", entity.PrimaryKey.Fingerprint))
	}

	if armored {
		key.Armored = strings.ReplaceAll(string(data), "\r", "")
		return key, nil
	}

	text, err := armorEntities(entities)
	if err != nil {
		return nil, err
	}
	key.Armored = text
	return key, nil
}

// LoadPublicKeys loads every path in order
func LoadPublicKeys(paths []string) ([]*PublicKey, error) {
	keys := make([]*PublicKey, 0, len(paths))
	for _, path := range paths {
		key, err := LoadPublicKey(path)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Keyrings returns the armored text of each key
func Keyrings(keys []*PublicKey) []string {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, key.Armored)
	}
	return out
}

func armorEntities(entities openpgp.EntityList) (string, error) {
	var buf bytes.Buffer

	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		return "", err
	}

	for _, entity := range entities {
		if err := entity.Serialize(w); err != nil {
			w.Close()
			return "", fmt.Errorf("failed to serialize key: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return "", err
	}
	buf.WriteByte('\n')

	return buf.String(), nil
}
