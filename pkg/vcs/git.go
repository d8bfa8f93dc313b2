package vcs

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/gitlab-composer/pkg/cache"
	"github.com/matzehuels/gitlab-composer/pkg/composer"
	errs "github.com/matzehuels/gitlab-composer/pkg/errors"
	"github.com/matzehuels/gitlab-composer/pkg/repository"
)

// Runner executes git. dir is the working directory, empty for none.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) ([]byte, error)
}

// ExecRunner runs the git binary found on PATH.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeTransport, err, "git %s: %s", args[0], strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// GitDriver resolves a repository over the git protocol. Refs come from
// ls-remote; manifests are read from a bare mirror kept under the cache
// directory. It publishes no dist.
type GitDriver struct {
	repo   RepoURL
	runner Runner
	mirror string
	scope  *cache.Scope
	logger *log.Logger
	root   string

	syncOnce sync.Once
	syncErr  error
}

// GitOptions configures a [GitDriver].
type GitOptions struct {
	Runner   Runner      // defaults to ExecRunner
	CacheDir string      // mirrors live in {CacheDir}/git
	Cache    cache.Cache // manifest cache; nil disables caching
	Logger   *log.Logger
}

// NewGitDriver opens repo and resolves its HEAD branch.
func NewGitDriver(ctx context.Context, repo RepoURL, opts GitOptions) (*GitDriver, error) {
	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.CacheDir == "" {
		opts.CacheDir = os.TempDir()
	}

	d := &GitDriver{
		repo:   repo,
		runner: opts.Runner,
		mirror: filepath.Join(opts.CacheDir, "git", cache.Hash([]byte(repo.Raw))[:16]+".git"),
		scope:  cache.NewScope(opts.Cache, hostname(repo.Host), repo.Path, opts.Logger),
		logger: opts.Logger,
	}

	out, err := d.runner.Run(ctx, "", "ls-remote", "--symref", "--", repo.Raw, "HEAD")
	if err != nil {
		return nil, err
	}
	d.root = parseSymref(out)
	return d, nil
}

func (d *GitDriver) RootIdentifier() string { return d.root }

func (d *GitDriver) URL() string { return d.repo.Raw }

func (d *GitDriver) Source(identifier string) composer.Source {
	return composer.Source{Type: "git", URL: d.repo.Raw, Reference: identifier}
}

func (d *GitDriver) Dist(string) *composer.Dist { return nil }

// ComposerInformation reads composer.json at identifier from the mirror.
// Identifiers that git would parse as an option are rejected unread.
func (d *GitDriver) ComposerInformation(ctx context.Context, identifier string) (*composer.Manifest, error) {
	if identifier == "" || strings.HasPrefix(identifier, "-") {
		return nil, errs.New(errs.ErrCodeInvalidInput, "invalid git revision %q", identifier)
	}
	cacheable := cache.IsCommitID(identifier)
	key := "manifest:" + identifier
	if cacheable {
		if body, ok := d.scope.Read(ctx, key); ok {
			if m, err := composer.ParseManifest(body); err == nil {
				return m, nil
			}
		}
	}

	if err := d.sync(ctx); err != nil {
		return nil, errs.Wrap(errs.ErrCodeManifestAbsent, err, "mirror of %s unavailable", d.repo.Raw)
	}
	body, err := d.runner.Run(ctx, d.mirror, "show", identifier+":"+composer.ManifestFile)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeManifestAbsent, err, "no %s at %s", composer.ManifestFile, identifier)
	}
	m, err := composer.ParseManifest(body)
	if err != nil {
		return nil, err
	}
	if cacheable {
		d.scope.Write(ctx, key, body)
	}
	return m, nil
}

func (d *GitDriver) Tags(ctx context.Context) ([]repository.Ref, error) {
	out, err := d.runner.Run(ctx, "", "ls-remote", "--tags", "--", d.repo.Raw)
	if err != nil {
		return nil, err
	}
	return parseLsRemote(out, "refs/tags/", repository.RefTag), nil
}

func (d *GitDriver) Branches(ctx context.Context) ([]repository.Ref, error) {
	out, err := d.runner.Run(ctx, "", "ls-remote", "--heads", "--", d.repo.Raw)
	if err != nil {
		return nil, err
	}
	return parseLsRemote(out, "refs/heads/", repository.RefBranch), nil
}

// sync clones the mirror on first use and fetches it once per driver.
func (d *GitDriver) sync(ctx context.Context) error {
	d.syncOnce.Do(func() {
		if _, err := os.Stat(d.mirror); err == nil {
			d.logger.Debug("updating git mirror", "url", d.repo.Raw, "dir", d.mirror)
			_, d.syncErr = d.runner.Run(ctx, d.mirror, "remote", "update", "--prune")
			return
		}
		if err := os.MkdirAll(filepath.Dir(d.mirror), 0o755); err != nil {
			d.syncErr = err
			return
		}
		d.logger.Debug("cloning git mirror", "url", d.repo.Raw, "dir", d.mirror)
		_, d.syncErr = d.runner.Run(ctx, "", "clone", "--mirror", "--quiet", "--", d.repo.Raw, d.mirror)
	})
	return d.syncErr
}

// parseSymref reads the branch HEAD points to from
// "ls-remote --symref -- <url> HEAD" output.
func parseSymref(out []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if rest, ok := strings.CutPrefix(line, "ref: refs/heads/"); ok {
			if name, _, ok := strings.Cut(rest, "\t"); ok {
				return name
			}
		}
	}
	return repository.FallbackDefaultBranch
}

// parseLsRemote turns "<sha>\t<ref>" lines into refs in listing order.
// Peeled tag entries ("^{}") replace the tag object id with the commit id.
func parseLsRemote(out []byte, prefix string, kind repository.RefKind) []repository.Ref {
	var refs []repository.Ref
	index := make(map[string]int)

	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		id, ref, ok := strings.Cut(sc.Text(), "\t")
		if !ok || !strings.HasPrefix(ref, prefix) {
			continue
		}
		name := strings.TrimPrefix(ref, prefix)
		if peeled, ok := strings.CutSuffix(name, "^{}"); ok {
			if i, seen := index[peeled]; seen {
				refs[i].CommitID = id
			}
			continue
		}
		index[name] = len(refs)
		refs = append(refs, repository.Ref{Name: name, CommitID: id, Kind: kind})
	}
	return refs
}

var _ Driver = (*GitDriver)(nil)
