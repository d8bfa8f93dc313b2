package repository

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	errs "github.com/matzehuels/gitlab-composer/pkg/errors"
	"github.com/matzehuels/gitlab-composer/pkg/integrations/gitlab"
)

// DefaultRefPageSize is the per_page used when listing branches and tags.
const DefaultRefPageSize = 100

// FallbackDefaultBranch is assumed when a project reports no default branch.
const FallbackDefaultBranch = "master"

// RefResolver lists a project's branches and tags and finds its root
// identifier. Successful listings are memoized for the resolver's lifetime,
// so a pass observes one ref-to-commit mapping per project even if
// branches move while it runs. Use one resolver per pass.
//
// RefResolver is safe for concurrent use.
type RefResolver struct {
	api     API
	perPage int

	group    singleflight.Group
	mu       sync.Mutex
	branches map[int][]Ref
	tags     map[int][]Ref
}

// NewRefResolver creates a resolver listing refs perPage at a time.
func NewRefResolver(api API, perPage int) *RefResolver {
	if perPage <= 0 {
		perPage = DefaultRefPageSize
	}
	return &RefResolver{
		api:      api,
		perPage:  perPage,
		branches: make(map[int][]Ref),
		tags:     make(map[int][]Ref),
	}
}

// ListBranches returns the project's branches in listing order.
func (r *RefResolver) ListBranches(ctx context.Context, p Project) ([]Ref, error) {
	return r.list(ctx, p, RefBranch)
}

// ListTags returns the project's tags in listing order.
func (r *RefResolver) ListTags(ctx context.Context, p Project) ([]Ref, error) {
	return r.list(ctx, p, RefTag)
}

// ResolveRootIdentifier returns the commit of the project's default branch.
// It fails with an error matching [ErrRootIdentifierNotFound] when no branch
// has that name.
func (r *RefResolver) ResolveRootIdentifier(ctx context.Context, p Project) (string, error) {
	branches, err := r.ListBranches(ctx, p)
	if err != nil {
		return "", err
	}
	name := DefaultBranch(p)
	for _, b := range branches {
		if b.Name == name {
			return b.CommitID, nil
		}
	}
	return "", errs.New(errs.ErrCodeRootIdentifierNotFound,
		"default branch %q not found in %s", name, p.PathWithNamespace)
}

// DefaultBranch returns the project's default branch name.
func DefaultBranch(p Project) string {
	if p.DefaultBranch == "" {
		return FallbackDefaultBranch
	}
	return p.DefaultBranch
}

func (r *RefResolver) list(ctx context.Context, p Project, kind RefKind) ([]Ref, error) {
	memo := r.branches
	if kind == RefTag {
		memo = r.tags
	}

	r.mu.Lock()
	refs, ok := memo[p.ID]
	r.mu.Unlock()
	if ok {
		return refs, nil
	}

	key := kind.String() + ":" + strconv.Itoa(p.ID)
	v, err, _ := r.group.Do(key, func() (any, error) {
		refs, err := r.fetch(ctx, p, kind)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		memo[p.ID] = refs
		r.mu.Unlock()
		return refs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Ref), nil
}

func (r *RefResolver) fetch(ctx context.Context, p Project, kind RefKind) ([]Ref, error) {
	if kind == RefTag {
		tags, err := paginate(ctx, r.perPage, func(ctx context.Context, page, perPage int) ([]gitlab.Tag, error) {
			return r.api.ListTags(ctx, p.ID, page, perPage)
		})
		if err != nil {
			return nil, err
		}
		refs := make([]Ref, 0, len(tags))
		for _, t := range tags {
			refs = append(refs, Ref{Name: t.Name, CommitID: t.Commit.ID, CommittedAt: t.Commit.CommittedDate, Kind: RefTag})
		}
		return refs, nil
	}

	branches, err := paginate(ctx, r.perPage, func(ctx context.Context, page, perPage int) ([]gitlab.Branch, error) {
		return r.api.ListBranches(ctx, p.ID, page, perPage)
	})
	if err != nil {
		return nil, err
	}
	refs := make([]Ref, 0, len(branches))
	for _, b := range branches {
		refs = append(refs, Ref{Name: b.Name, CommitID: b.Commit.ID, CommittedAt: b.Commit.CommittedDate, Kind: RefBranch})
	}
	return refs, nil
}

// paginate requests pages 1, 2, ... until one comes back empty.
func paginate[T any](ctx context.Context, perPage int, fetch func(ctx context.Context, page, perPage int) ([]T, error)) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		items, err := fetch(ctx, page, perPage)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return all, nil
		}
		all = append(all, items...)
	}
}
