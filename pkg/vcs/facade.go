package vcs

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/gitlab-composer/pkg/cache"
	"github.com/matzehuels/gitlab-composer/pkg/composer"
	errs "github.com/matzehuels/gitlab-composer/pkg/errors"
	"github.com/matzehuels/gitlab-composer/pkg/integrations/gitlab"
	"github.com/matzehuels/gitlab-composer/pkg/repository"
)

// Deps are the collaborators [Open] may hand to a driver.
type Deps struct {
	GitLab      *gitlab.Client // nil disables the API strategy
	Cache       cache.Cache
	CacheDir    string
	GitFallback bool
	Runner      Runner
	Logger      *log.Logger
	// RetryDelay is the initial backoff between manifest lookups that
	// returned 404. Zero retries immediately.
	RetryDelay time.Duration
}

// Facade is a [Driver] whose strategy was chosen once at [Open].
type Facade struct {
	Driver
	kind Kind
}

// Kind reports the strategy in use.
func (f *Facade) Kind() Kind { return f.kind }

// Open parses rawURL and picks a driver for it. The GitLab API is used when
// the URL's host is the configured instance and the project can be looked
// up; otherwise the git protocol is used if deps.GitFallback is set.
func Open(ctx context.Context, rawURL string, deps Deps) (*Facade, error) {
	repo, err := ParseRepoURL(rawURL)
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}

	var apiErr error
	if deps.GitLab != nil && sameHost(repo.Host, deps.GitLab.Host()) {
		d, err := NewGitLabDriver(ctx, deps.GitLab, repo, repository.FetcherOptions{
			Cache:      deps.Cache,
			Logger:     logger,
			RetryDelay: deps.RetryDelay,
		})
		if err == nil {
			return &Facade{Driver: d, kind: KindGitLab}, nil
		}
		apiErr = err
		logger.Debug("gitlab lookup failed", "repo", repo.Path, "err", err)
	}

	if !deps.GitFallback {
		if apiErr != nil {
			return nil, apiErr
		}
		return nil, errs.New(errs.ErrCodeUnsupported, "no driver for %s", rawURL)
	}

	d, err := NewGitDriver(ctx, repo, GitOptions{
		Runner:   deps.Runner,
		CacheDir: deps.CacheDir,
		Cache:    deps.Cache,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	return &Facade{Driver: d, kind: KindGit}, nil
}

func sameHost(a, b string) bool {
	return strings.EqualFold(hostname(a), hostname(b))
}

// Versions lists the installable versions of the repository, newest first.
// Names come from the manifest on the root identifier. Refs whose names
// cannot be normalized or whose manifest is absent are skipped and logged
// at debug level. A failure to list tags is logged and the branches are
// still returned. A nil logger uses log.Default().
func Versions(ctx context.Context, d Driver, includeTags bool, logger *log.Logger) ([]composer.PackageVersion, error) {
	if logger == nil {
		logger = log.Default()
	}
	root, err := d.ComposerInformation(ctx, d.RootIdentifier())
	if err != nil {
		return nil, err
	}

	refs, err := d.Branches(ctx)
	if err != nil {
		return nil, err
	}
	if includeTags {
		tags, err := d.Tags(ctx)
		if err != nil {
			logger.Warn("listing tags failed, keeping branches", "repo", d.URL(), "err", err)
		}
		refs = append(refs, tags...)
	}

	var out []composer.PackageVersion
	seen := make(map[string]bool)
	for _, ref := range refs {
		parse := composer.ParseBranch
		if ref.Kind == repository.RefTag {
			parse = composer.ParseTag
		}
		ver, err := parse(ref.Name)
		if err != nil {
			logger.Debug("skipping ref", "kind", ref.Kind, "ref", ref.Name, "err", err)
			continue
		}
		if seen[ver.Pretty] {
			logger.Debug("duplicate version ignored", "kind", ref.Kind, "ref", ref.Name, "version", ver.Pretty)
			continue
		}
		m, err := d.ComposerInformation(ctx, ref.CommitID)
		if err != nil {
			logger.Debug("skipping ref", "kind", ref.Kind, "ref", ref.Name, "err", err)
			continue
		}
		seen[ver.Pretty] = true
		out = append(out, composer.PackageVersion{
			Name:              root.Name,
			Version:           ver.Pretty,
			VersionNormalized: ver.Normalized,
			IsDevelopment:     ver.IsDevelopment,
			Source:            d.Source(ref.CommitID),
			Dist:              d.Dist(ref.CommitID),
			Time:              m.Time,
			Extra:             m.Extra,
		})
	}
	composer.SortPackageVersions(out)
	return out, nil
}
