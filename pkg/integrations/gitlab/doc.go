// Package gitlab provides an HTTP client for the GitLab v3 REST API.
//
// # Overview
//
// The client covers the endpoints needed to discover Composer packages:
//
//   - GET /projects (paginated)
//   - GET /projects/{id}
//   - GET /projects/{id}/repository/branches (paginated)
//   - GET /projects/{id}/repository/tags (paginated)
//   - GET /projects/{id}/repository/blobs/{sha}?filepath=composer.json
//
// # Usage
//
//	api := integrations.NewClient(integrations.Options{
//	    Headers: gitlab.Headers(token),
//	})
//	client, err := gitlab.NewClient(api, "https://gitlab.example.com")
//	projects, err := client.ListProjects(ctx, 1, 10)
//
// # Authentication
//
// The token is sent in the PRIVATE-TOKEN header on every request. It is
// always supplied by configuration. Without a token only public projects
// are visible.
package gitlab
