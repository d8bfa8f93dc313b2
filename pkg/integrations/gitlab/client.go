package gitlab

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/matzehuels/gitlab-composer/pkg/integrations"
)

// Namespace is the group or user owning a project.
type Namespace struct {
	Path     string `json:"path"`
	FullPath string `json:"full_path,omitempty"`
}

// Project is one remote repository as returned by the projects endpoints.
type Project struct {
	ID                int       `json:"id"`
	Name              string    `json:"path"`
	PathWithNamespace string    `json:"path_with_namespace"`
	Namespace         Namespace `json:"namespace"`
	DefaultBranch     string    `json:"default_branch"`
	SSHURL            string    `json:"ssh_url_to_repo"`
	HTTPURL           string    `json:"http_url_to_repo"`
	WebURL            string    `json:"web_url"`
}

// NamespacePath returns the full namespace of the project ("acme" for
// "acme/widget", "acme/php" for "acme/php/widget").
func (p Project) NamespacePath() string {
	if i := strings.LastIndexByte(p.PathWithNamespace, '/'); i > 0 {
		return p.PathWithNamespace[:i]
	}
	if p.Namespace.FullPath != "" {
		return p.Namespace.FullPath
	}
	return p.Namespace.Path
}

// Commit is the commit a branch or tag points to.
type Commit struct {
	ID            string    `json:"id"`
	CommittedDate time.Time `json:"committed_date"`
}

// Branch is one entry of the branches listing.
type Branch struct {
	Name   string `json:"name"`
	Commit Commit `json:"commit"`
}

// Tag is one entry of the tags listing.
type Tag struct {
	Name   string `json:"name"`
	Commit Commit `json:"commit"`
}

// Client provides access to the GitLab v3 REST API.
//
// Listing endpoints are paginated with page/per_page; callers iterate until
// an empty page. Nothing here is cached: blob content is cached by the
// manifest fetcher, which knows whether the ref is an immutable commit id.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	*integrations.Client
	baseURL string
	apiURL  string
	host    string
}

// NewClient creates a GitLab API client rooted at baseURL
// (e.g. "https://gitlab.example.com"). Requests go to {baseURL}/api/v3.
//
// Authentication is configured on api (see [Headers]).
func NewClient(api *integrations.Client, baseURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, err
	}
	base := u.String()
	return &Client{
		Client:  api,
		baseURL: base,
		apiURL:  base + "/api/v3",
		host:    u.Host,
	}, nil
}

// Headers returns the default request headers carrying token. It returns
// nil for an empty token (anonymous access to public projects).
func Headers(token string) map[string]string {
	if token == "" {
		return nil
	}
	return map[string]string{"PRIVATE-TOKEN": token}
}

// BaseURL returns the instance URL without the API suffix.
func (c *Client) BaseURL() string { return c.baseURL }

// Host returns the instance host, used to namespace cache entries.
func (c *Client) Host() string { return c.host }

// ListProjects fetches one page of projects visible to the token.
func (c *Client) ListProjects(ctx context.Context, page, perPage int) ([]Project, error) {
	var projects []Project
	err := c.Get(ctx, c.endpoint("/projects", pageQuery(page, perPage)), &projects)
	return projects, err
}

// GetProject fetches a project by numeric id or "namespace/name" path.
func (c *Client) GetProject(ctx context.Context, idOrPath string) (*Project, error) {
	var p Project
	if err := c.Get(ctx, c.endpoint("/projects/"+integrations.URLEncode(idOrPath), nil), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListBranches fetches one page of a project's branches.
func (c *Client) ListBranches(ctx context.Context, projectID, page, perPage int) ([]Branch, error) {
	var branches []Branch
	err := c.Get(ctx, c.endpoint(c.projectPath(projectID, "/repository/branches"), pageQuery(page, perPage)), &branches)
	return branches, err
}

// ListTags fetches one page of a project's tags.
func (c *Client) ListTags(ctx context.Context, projectID, page, perPage int) ([]Tag, error) {
	var tags []Tag
	err := c.Get(ctx, c.endpoint(c.projectPath(projectID, "/repository/tags"), pageQuery(page, perPage)), &tags)
	return tags, err
}

// GetBlob returns the raw content of filePath at sha.
func (c *Client) GetBlob(ctx context.Context, projectID int, sha, filePath string) ([]byte, error) {
	q := url.Values{"filepath": {filePath}}
	return c.GetRaw(ctx, c.endpoint(c.projectPath(projectID, "/repository/blobs/"+url.PathEscape(sha)), q))
}

// ArchiveURL returns the zip archive URL of a project at sha. The archive is
// never downloaded here; the URL is published as a dist descriptor.
func (c *Client) ArchiveURL(projectID int, sha string) string {
	return c.endpoint(c.projectPath(projectID, "/repository/archive.zip"), url.Values{"sha": {sha}})
}

func (c *Client) projectPath(projectID int, suffix string) string {
	return "/projects/" + strconv.Itoa(projectID) + suffix
}

func (c *Client) endpoint(path string, q url.Values) string {
	if len(q) == 0 {
		return c.apiURL + path
	}
	return fmt.Sprintf("%s%s?%s", c.apiURL, path, q.Encode())
}

func pageQuery(page, perPage int) url.Values {
	return url.Values{
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(perPage)},
	}
}
