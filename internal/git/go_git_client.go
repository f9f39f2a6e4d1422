package git

import (
	"context"
	"fmt"
	"io"
	"os"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	httpAuth "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/lockwhz/hogscan/internal/logger"
	"github.com/lockwhz/hogscan/internal/vault"
)

// GoGitClient implements GitClient with go-git. Credentials come from the
// vault client; a nil Vault clones anonymously.
type GoGitClient struct {
	Vault    vault.VaultClient
	TempDir  string    // parent of clone directories, os.TempDir() when empty
	Progress io.Writer // optional clone progress output
}

// Auth returns the transport credentials used for clones and fetches.
func (c *GoGitClient) Auth() (transport.AuthMethod, error) {
	if c.Vault == nil {
		return nil, nil
	}
	creds, err := c.Vault.GetGitCredentials()
	if err != nil {
		return nil, fmt.Errorf("git credentials: %w", err)
	}
	if creds == nil {
		return nil, nil
	}
	return &httpAuth.BasicAuth{
		Username: creds.Username,
		Password: creds.Token,
	}, nil
}

// CloneRepo clones every branch of repoURL. The caller removes the returned
// directory.
func (c *GoGitClient) CloneRepo(ctx context.Context, repoURL string) (string, error) {
	defer logger.TraceAuto()()

	auth, err := c.Auth()
	if err != nil {
		return "", err
	}

	dir, err := os.MkdirTemp(c.TempDir, cloneDirPrefix(repoURL))
	if err != nil {
		return "", fmt.Errorf("clone dir: %w", err)
	}

	_, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:      repoURL,
		Auth:     auth,
		Progress: c.Progress,
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("git clone %s: %w", repoURL, err)
	}
	logger.Log.Infof("cloned %s into %s", repoURL, dir)
	return dir, nil
}
