// Package git clones remote scan targets into temporary directories.
package git

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// GitClient clones a repository and returns the local path of the clone.
type GitClient interface {
	CloneRepo(ctx context.Context, repoURL string) (string, error)
}

// IsRemote reports whether target is an http(s) URL rather than a local
// path.
func IsRemote(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSuffix(s, ".git"))
	s = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, s)
	return strings.Trim(s, "-")
}

// cloneDirPrefix names temporary clone directories after the repository,
// e.g. "hogscan-org-repo-20240102150405-".
func cloneDirPrefix(repoURL string) string {
	name := repoURL
	if u, err := url.Parse(repoURL); err == nil && u.Path != "" {
		name = u.Path
	}
	slug := slugify(name)
	if slug == "" {
		slug = "repo"
	}
	return "hogscan-" + slug + "-" + time.Now().Format("20060102150405") + "-"
}
