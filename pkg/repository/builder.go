package repository

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/gitlab-composer/pkg/cache"
	"github.com/matzehuels/gitlab-composer/pkg/composer"
	errs "github.com/matzehuels/gitlab-composer/pkg/errors"
	"github.com/matzehuels/gitlab-composer/pkg/observability"
)

// DefaultProjectPageSize is the per_page used when listing projects.
const DefaultProjectPageSize = 10

// Options configures a [Builder]. Zero values select the defaults.
type Options struct {
	ProjectPageSize int  // projects per page (default 10)
	RefPageSize     int  // branches/tags per page (default 100)
	Workers         int  // projects processed concurrently (default 1)
	IncludeTags     bool // publish tags as well as branches

	Cache            cache.Cache // manifest cache; nil disables caching
	ManifestAttempts int
	RetryDelay       time.Duration
	Logger           *log.Logger
}

// Builder walks every project visible to the API and assembles a [Catalog].
//
// Each project moves through Discovering, RootResolving, NamingProject,
// WalkingRefs and Done, or ends Skipped when it has no root identifier or
// no package name. Failures are isolated per ref and per project; only a
// failure to list projects ends the pass early.
type Builder struct {
	api    API
	opts   Options
	logger *log.Logger
}

// NewBuilder creates a builder over api.
func NewBuilder(api API, opts Options) *Builder {
	if opts.ProjectPageSize <= 0 {
		opts.ProjectPageSize = DefaultProjectPageSize
	}
	if opts.RefPageSize <= 0 {
		opts.RefPageSize = DefaultRefPageSize
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Builder{api: api, opts: opts, logger: opts.Logger}
}

// pass holds the per-pass memoized collaborators.
type pass struct {
	refs      *RefResolver
	manifests *ManifestFetcher
}

type projectResult struct {
	report   ProjectReport
	versions []composer.PackageVersion
}

// Build runs one resolution pass.
//
// The returned catalog is never nil. When listing projects fails, Build
// returns the catalog collected so far together with the listing error,
// which is also recorded in Catalog.Err.
func (b *Builder) Build(ctx context.Context) (*Catalog, error) {
	cat := &Catalog{PassID: uuid.New(), StartedAt: time.Now()}
	hooks := observability.Catalog()
	hooks.OnPassStart(ctx, cat.PassID.String())
	b.logger.Info("resolution pass started", "pass", cat.PassID, "host", b.api.Host())

	p := &pass{
		refs: NewRefResolver(b.api, b.opts.RefPageSize),
		manifests: NewManifestFetcher(b.api, FetcherOptions{
			Cache:      b.opts.Cache,
			Logger:     b.logger,
			Attempts:   b.opts.ManifestAttempts,
			RetryDelay: b.opts.RetryDelay,
		}),
	}
	seen := make(map[string]bool)

	for page := 1; ; page++ {
		projects, err := b.api.ListProjects(ctx, page, b.opts.ProjectPageSize)
		if err != nil {
			cat.Err = fmt.Errorf("listing projects page %d: %w", page, err)
			cat.ErrMessage = cat.Err.Error()
			b.logger.Error("project listing failed, keeping partial catalog", "page", page, "err", err)
			break
		}
		if len(projects) == 0 {
			break
		}
		b.logger.Debug("loaded projects", "page", page, "count", len(projects))

		for _, res := range b.processPage(ctx, p, projects) {
			added := 0
			for _, v := range res.versions {
				if seen[v.Key()] {
					b.logger.Debug("duplicate version ignored", "package", v.Name, "version", v.Version, "project", res.report.Project)
					continue
				}
				seen[v.Key()] = true
				cat.Versions = append(cat.Versions, v)
				added++
			}
			res.report.Versions = added
			cat.Projects = append(cat.Projects, res.report)
		}
	}

	cat.FinishedAt = time.Now()
	hooks.OnPassComplete(ctx, cat.PassID.String(), len(cat.Versions), cat.Duration(), cat.Err)
	b.logger.Info("resolution pass finished",
		"pass", cat.PassID,
		"projects", len(cat.Projects),
		"skipped", len(cat.Skipped()),
		"versions", len(cat.Versions),
		"took", cat.Duration().Round(time.Millisecond))
	return cat, cat.Err
}

// processPage walks the projects of one page on up to Workers goroutines.
// Results keep listing order so first-wins deduplication is deterministic.
func (b *Builder) processPage(ctx context.Context, p *pass, projects []Project) []projectResult {
	results := make([]projectResult, len(projects))

	var g errgroup.Group
	g.SetLimit(b.opts.Workers)
	for i, project := range projects {
		g.Go(func() error {
			results[i] = b.processProject(ctx, p, project)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (b *Builder) processProject(ctx context.Context, p *pass, project Project) projectResult {
	hooks := observability.Catalog()
	path := project.PathWithNamespace
	res := projectResult{report: ProjectReport{Project: path, State: StateDiscovering}}

	skip := func(err error) projectResult {
		b.logger.Warn("skipping project", "project", path, "state", res.report.State, "err", err)
		res.report.State = StateSkipped
		res.report.Reason = err.Error()
		hooks.OnProjectComplete(ctx, path, string(StateSkipped), 0, err)
		return res
	}

	res.report.State = StateRootResolving
	root, err := p.refs.ResolveRootIdentifier(ctx, project)
	if err != nil {
		return skip(err)
	}

	res.report.State = StateNamingProject
	rootManifest := p.manifests.Fetch(ctx, project, root)
	if rootManifest.Absent() {
		return skip(errs.New(errs.ErrCodeManifestAbsent, "no package name at %s (%s)", DefaultBranch(project), root))
	}
	name := rootManifest.Manifest.Name
	res.report.Package = name

	res.report.State = StateWalkingRefs
	b.logger.Debug("importing refs", "project", path, "package", name)

	refs, err := p.refs.ListBranches(ctx, project)
	if err != nil {
		return skip(err)
	}
	if b.opts.IncludeTags {
		tags, err := p.refs.ListTags(ctx, project)
		if err != nil {
			b.logger.Warn("listing tags failed, publishing branches only", "project", path, "err", err)
		}
		refs = append(refs, tags...)
	}

	for _, ref := range refs {
		v, err := b.version(ctx, p, project, name, ref)
		if err != nil {
			b.logger.Debug("skipping ref", "project", path, "kind", ref.Kind, "ref", ref.Name, "err", err)
			res.report.SkippedRefs++
			continue
		}
		b.logger.Debug("imported ref", "project", path, "kind", ref.Kind, "ref", ref.Name, "version", v.Version)
		res.versions = append(res.versions, v)
	}

	res.report.State = StateDone
	res.report.Versions = len(res.versions)
	hooks.OnProjectComplete(ctx, path, string(StateDone), len(res.versions), nil)
	return res
}

// version assembles the published version of one ref. The package name
// always comes from the root manifest.
func (b *Builder) version(ctx context.Context, p *pass, project Project, name string, ref Ref) (composer.PackageVersion, error) {
	parse := composer.ParseBranch
	if ref.Kind == RefTag {
		parse = composer.ParseTag
	}
	ver, err := parse(ref.Name)
	if err != nil {
		return composer.PackageVersion{}, err
	}

	rec := p.manifests.Fetch(ctx, project, ref.CommitID)
	if rec.Absent() {
		return composer.PackageVersion{}, errs.New(errs.ErrCodeManifestAbsent, "no manifest at %s", ref.CommitID)
	}

	released := rec.Manifest.Time
	if released == "" && !ref.CommittedAt.IsZero() {
		released = ref.CommittedAt.UTC().Format(time.RFC3339)
	}

	return composer.PackageVersion{
		Name:              name,
		Version:           ver.Pretty,
		VersionNormalized: ver.Normalized,
		IsDevelopment:     ver.IsDevelopment,
		Source: composer.Source{
			Type:      "git",
			URL:       SourceURL(b.api.BaseURL(), project),
			Reference: ref.CommitID,
		},
		Dist: &composer.Dist{
			Type:      "zip",
			URL:       b.api.ArchiveURL(project.ID, ref.CommitID),
			Reference: ref.CommitID,
		},
		Time:  released,
		Extra: maps.Clone(rec.Manifest.Extra),
	}, nil
}

// SourceURL returns the git URL published for a project: the SSH clone URL
// when known, then the HTTP clone URL, then one derived from baseURL.
func SourceURL(baseURL string, p Project) string {
	switch {
	case p.SSHURL != "":
		return p.SSHURL
	case p.HTTPURL != "":
		return p.HTTPURL
	}
	return baseURL + "/" + p.PathWithNamespace + ".git"
}
