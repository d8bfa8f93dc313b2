package vcs

import (
	"context"

	"github.com/matzehuels/gitlab-composer/pkg/composer"
	errs "github.com/matzehuels/gitlab-composer/pkg/errors"
	"github.com/matzehuels/gitlab-composer/pkg/integrations/gitlab"
	"github.com/matzehuels/gitlab-composer/pkg/repository"
)

// GitLabDriver resolves a repository through the GitLab API.
type GitLabDriver struct {
	client    *gitlab.Client
	project   repository.Project
	refs      *repository.RefResolver
	manifests *repository.ManifestFetcher
}

// NewGitLabDriver looks up the project at repo. It fails when the project
// cannot be identified, which is the signal to fall back to [GitDriver].
func NewGitLabDriver(ctx context.Context, client *gitlab.Client, repo RepoURL, opts repository.FetcherOptions) (*GitLabDriver, error) {
	p, err := client.GetProject(ctx, repo.Path)
	if err != nil {
		return nil, err
	}
	return &GitLabDriver{
		client:    client,
		project:   *p,
		refs:      repository.NewRefResolver(client, repository.DefaultRefPageSize),
		manifests: repository.NewManifestFetcher(client, opts),
	}, nil
}

// Project returns the project the driver was opened on.
func (d *GitLabDriver) Project() repository.Project { return d.project }

func (d *GitLabDriver) RootIdentifier() string { return repository.DefaultBranch(d.project) }

func (d *GitLabDriver) URL() string { return repository.SourceURL(d.client.BaseURL(), d.project) }

func (d *GitLabDriver) Source(identifier string) composer.Source {
	return composer.Source{Type: "git", URL: d.URL(), Reference: identifier}
}

func (d *GitLabDriver) Dist(identifier string) *composer.Dist {
	return &composer.Dist{Type: "zip", URL: d.client.ArchiveURL(d.project.ID, identifier), Reference: identifier}
}

func (d *GitLabDriver) ComposerInformation(ctx context.Context, identifier string) (*composer.Manifest, error) {
	rec := d.manifests.Fetch(ctx, d.project, identifier)
	if rec.Absent() {
		return nil, errs.New(errs.ErrCodeManifestAbsent, "no %s at %s", composer.ManifestFile, identifier)
	}
	return rec.Manifest, nil
}

func (d *GitLabDriver) Tags(ctx context.Context) ([]repository.Ref, error) {
	return d.refs.ListTags(ctx, d.project)
}

func (d *GitLabDriver) Branches(ctx context.Context) ([]repository.Ref, error) {
	return d.refs.ListBranches(ctx, d.project)
}

var _ Driver = (*GitLabDriver)(nil)
