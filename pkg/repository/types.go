package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/gitlab-composer/pkg/composer"
	errs "github.com/matzehuels/gitlab-composer/pkg/errors"
	"github.com/matzehuels/gitlab-composer/pkg/integrations/gitlab"
)

var (
	// ErrRootIdentifierNotFound matches errors for a project whose default
	// branch is missing from its branch list.
	ErrRootIdentifierNotFound = errs.Sentinel(errs.ErrCodeRootIdentifierNotFound)

	// ErrManifestAbsent matches errors for a missing or unusable composer.json.
	ErrManifestAbsent = composer.ErrManifestAbsent
)

// API is the subset of the GitLab client the resolution engine uses.
// *gitlab.Client implements it.
type API interface {
	ListProjects(ctx context.Context, page, perPage int) ([]gitlab.Project, error)
	ListBranches(ctx context.Context, projectID, page, perPage int) ([]gitlab.Branch, error)
	ListTags(ctx context.Context, projectID, page, perPage int) ([]gitlab.Tag, error)
	GetBlob(ctx context.Context, projectID int, sha, filePath string) ([]byte, error)
	ArchiveURL(projectID int, sha string) string
	BaseURL() string
	Host() string
}

var _ API = (*gitlab.Client)(nil)

// Project is a remote repository.
type Project = gitlab.Project

// RefKind distinguishes branches from tags.
type RefKind int

const (
	RefBranch RefKind = iota
	RefTag
)

func (k RefKind) String() string {
	if k == RefTag {
		return "tag"
	}
	return "branch"
}

// Ref is a branch or tag and the commit it pointed to when listed.
type Ref struct {
	Name        string
	CommitID    string
	CommittedAt time.Time
	Kind        RefKind
}

// ManifestRecord is the composer.json found at a commit. Content and
// Manifest are nil when the manifest is absent or could not be read.
type ManifestRecord struct {
	Content     []byte
	FetchedFrom string
	Manifest    *composer.Manifest
}

// Absent reports whether no usable manifest was found.
func (r ManifestRecord) Absent() bool { return r.Manifest == nil }

// State is a project's position in a resolution pass.
type State string

const (
	StateDiscovering   State = "discovering"
	StateRootResolving State = "root_resolving"
	StateNamingProject State = "naming_project"
	StateWalkingRefs   State = "walking_refs"
	StateDone          State = "done"
	StateSkipped       State = "skipped"
)

// ProjectReport records how one project fared in a pass.
type ProjectReport struct {
	Project     string `json:"project"`
	Package     string `json:"package,omitempty"`
	State       State  `json:"state"`
	Reason      string `json:"reason,omitempty"`
	Versions    int    `json:"versions"`
	SkippedRefs int    `json:"skipped_refs"`
}

// Catalog is the outcome of one resolution pass. Versions keep insertion
// order and are unique by (name, normalized version), first seen wins.
//
// Err is set when listing projects failed and the pass ended early. The
// versions collected before the failure are kept.
type Catalog struct {
	PassID     uuid.UUID                 `json:"pass_id"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt time.Time                 `json:"finished_at"`
	Versions   []composer.PackageVersion `json:"versions"`
	Projects   []ProjectReport           `json:"projects"`
	Err        error                     `json:"-"`
	ErrMessage string                    `json:"error,omitempty"`
}

// Complete reports whether the pass walked every project.
func (c *Catalog) Complete() bool { return c.Err == nil && c.ErrMessage == "" }

// Duration returns how long the pass took.
func (c *Catalog) Duration() time.Duration { return c.FinishedAt.Sub(c.StartedAt) }

// Package returns the versions of name in catalog order.
func (c *Catalog) Package(name string) []composer.PackageVersion {
	var out []composer.PackageVersion
	for _, v := range c.Versions {
		if v.Name == name {
			out = append(out, v)
		}
	}
	return out
}

// Skipped returns the reports of skipped projects.
func (c *Catalog) Skipped() []ProjectReport {
	var out []ProjectReport
	for _, p := range c.Projects {
		if p.State == StateSkipped {
			out = append(out, p)
		}
	}
	return out
}

// Repository returns the packages.json document for the catalog.
func (c *Catalog) Repository(vendorAlias string) *composer.Repository {
	return composer.NewRepository(c.Versions, vendorAlias)
}
