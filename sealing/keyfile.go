package sealing

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileKeySource loads hex-encoded sealing key material from a file,
// generating and persisting a fresh key on first use. The file stands in for
// hardware key derivation on nodes running outside real enclave hardware;
// production deployments replace this source with one backed by the
// platform's sealing facility.
func FileKeySource(path string) KeySource {
	return func() ([]byte, error) {
		data, err := os.ReadFile(path)
		if err == nil {
			material, decErr := hex.DecodeString(strings.TrimSpace(string(data)))
			if decErr != nil {
				return nil, fmt.Errorf("key file %s is not valid hex: %w", path, decErr)
			}
			return material, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read key file: %w", err)
		}

		material := make([]byte, KeySize)
		if _, err := io.ReadFull(rand.Reader, material); err != nil {
			return nil, fmt.Errorf("generate key material: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create key directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(hex.EncodeToString(material)), 0o600); err != nil {
			return nil, fmt.Errorf("write key file: %w", err)
		}
		return material, nil
	}
}

// StaticKeySource returns the given material on every unseal. Tests use it to
// pin a known key.
func StaticKeySource(material []byte) KeySource {
	return func() ([]byte, error) { return material, nil }
}
