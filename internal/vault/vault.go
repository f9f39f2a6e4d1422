// Package vault provides git credentials for cloning private repositories.
package vault

import (
	"fmt"
	"os"
)

type VaultClient interface {
	GetGitCredentials() (*GitCredentials, error)
}

type GitCredentials struct {
	Username string
	Token    string
}

// DefaultVaultClient reads credentials from GIT_USERNAME and GIT_TOKEN.
type DefaultVaultClient struct{}

func (v *DefaultVaultClient) GetGitCredentials() (*GitCredentials, error) {
	username := os.Getenv("GIT_USERNAME")
	token := os.Getenv("GIT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("git credentials not found")
	}
	if username == "" {
		// hosts accept any non-empty user name alongside a token
		username = "x-access-token"
	}
	return &GitCredentials{
		Username: username,
		Token:    token,
	}, nil
}

// NoOpVaultClient clones anonymously.
type NoOpVaultClient struct{}

func (v *NoOpVaultClient) GetGitCredentials() (*GitCredentials, error) {
	return nil, nil
}
