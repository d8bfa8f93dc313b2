// Package pkg provides the libraries behind gitlab-composer, which turns the
// projects of a GitLab instance into a Composer package repository.
//
// # Overview
//
// Packages are organized by concern:
//
//  1. [integrations] - HTTP client and the GitLab v3 API client
//  2. [repository] - The resolution engine: ref listing, manifest fetching
//     and the catalog builder
//  3. [composer] - Version normalization, package versions and the
//     packages.json document
//  4. [vcs] - Per-repository drivers over the GitLab API or plain git
//  5. [cache], [store] - Content cache and catalog persistence
//  6. [server] - Composer repository HTTP endpoint
//  7. [config], [errors], [httputil], [observability] - Shared infrastructure
//
// # Architecture
//
// The data flow of one resolution pass:
//
//	GitLab /projects (paginated)
//	         ↓
//	    [repository.RefResolver] (branches, tags, root commit)
//	         ↓
//	    [repository.ManifestFetcher] (composer.json per commit, cached)
//	         ↓
//	    [repository.Builder] (normalize refs, assemble versions)
//	         ↓
//	    [repository.Catalog] → [store] → packages.json / [server]
//
// # Quick Start
//
//	api := integrations.NewClient(integrations.Options{Headers: gitlab.Headers(token)})
//	client, _ := gitlab.NewClient(api, "https://gitlab.example.com")
//	cat, err := repository.NewBuilder(client, repository.Options{}).Build(ctx)
//	if err != nil {
//	    // cat still holds the versions found before the listing failed
//	}
//	cat.Repository("").WriteJSON(os.Stdout)
package pkg
