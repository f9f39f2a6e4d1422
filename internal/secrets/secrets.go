// Package secrets resolves service credentials such as the database
// password.
package secrets

import (
	"fmt"
	"os"
	"strings"
)

type SecretsManager interface {
	GetSecret(name string) (string, error)
}

// DefaultSecretsManager reads NAME from the environment, falling back to
// the file named by NAME_FILE (mounted secrets).
type DefaultSecretsManager struct{}

func (s *DefaultSecretsManager) GetSecret(name string) (string, error) {
	if v := os.Getenv(name); v != "" {
		return v, nil
	}
	path := os.Getenv(name + "_FILE")
	if path == "" {
		return "", fmt.Errorf("secret %s not found", name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("secret %s: %w", name, err)
	}
	v := strings.TrimRight(string(data), "\r\n")
	if v == "" {
		return "", fmt.Errorf("secret %s is empty", name)
	}
	return v, nil
}
