package vcs

import (
	"context"
	"net/url"
	"strings"
	"unicode"

	"github.com/matzehuels/gitlab-composer/pkg/composer"
	errs "github.com/matzehuels/gitlab-composer/pkg/errors"
	"github.com/matzehuels/gitlab-composer/pkg/integrations"
	"github.com/matzehuels/gitlab-composer/pkg/repository"
)

// Kind names a driver strategy.
type Kind string

const (
	KindGitLab Kind = "gitlab"
	KindGit    Kind = "git"
)

// Driver resolves one repository's refs and manifests on demand.
//
// Identifiers passed to Source, Dist and ComposerInformation are commit ids
// or ref names as returned by Branches and Tags.
type Driver interface {
	// RootIdentifier returns the name of the default branch.
	RootIdentifier() string
	// URL returns the git URL of the repository.
	URL() string
	Source(identifier string) composer.Source
	// Dist returns nil when the driver cannot describe an archive.
	Dist(identifier string) *composer.Dist
	// ComposerInformation returns the manifest at identifier, or an error
	// matching composer.ErrManifestAbsent. Malformed identifiers may fail
	// with INVALID_INPUT instead.
	ComposerInformation(ctx context.Context, identifier string) (*composer.Manifest, error)
	Tags(ctx context.Context) ([]repository.Ref, error)
	Branches(ctx context.Context) ([]repository.Ref, error)
}

// RepoURL is a parsed repository location.
type RepoURL struct {
	Raw  string
	Host string
	Path string // namespace/name without .git
}

// ParseRepoURL accepts "scheme://host/namespace/name(.git)" and the scp-like
// "user@host:namespace/name(.git)" form. A "git+" scheme prefix is ignored.
func ParseRepoURL(raw string) (RepoURL, error) {
	raw = strings.TrimSpace(raw)
	canonical := integrations.NormalizeRepoURL(raw)
	var host, path string

	if !strings.Contains(canonical, "://") {
		at := strings.IndexByte(canonical, '@')
		colon := strings.IndexByte(canonical, ':')
		if colon < 0 || colon < at {
			return RepoURL{}, errs.New(errs.ErrCodeInvalidInput, "unsupported repository URL %q", raw)
		}
		host, path = canonical[at+1:colon], canonical[colon+1:]
	} else {
		u, err := url.Parse(canonical)
		if err != nil {
			return RepoURL{}, errs.Wrap(errs.ErrCodeInvalidInput, err, "invalid repository URL %q", raw)
		}
		host, path = u.Host, u.Path
	}

	path = strings.Trim(path, "/")
	if host == "" {
		return RepoURL{}, errs.New(errs.ErrCodeInvalidInput, "repository URL %q has no host", raw)
	}
	// The URL reaches git and ssh as an argument.
	if strings.HasPrefix(canonical, "-") || strings.HasPrefix(host, "-") ||
		strings.ContainsFunc(canonical, unicode.IsSpace) || strings.ContainsRune(canonical, 0) {
		return RepoURL{}, errs.New(errs.ErrCodeInvalidInput, "unsafe repository URL %q", raw)
	}
	if err := errs.ValidateProjectPath(path); err != nil {
		return RepoURL{}, err
	}
	return RepoURL{Raw: strings.TrimPrefix(raw, "git+"), Host: host, Path: path}, nil
}

// hostname drops any port from a URL host.
func hostname(host string) string {
	if i := strings.LastIndexByte(host, ':'); i > 0 && !strings.Contains(host[i:], "]") {
		return host[:i]
	}
	return host
}
