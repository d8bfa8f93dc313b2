// Package vcs opens a single repository by URL and exposes its refs and
// manifests through a common [Driver] interface.
//
// Two strategies exist. [GitLabDriver] talks to the configured GitLab
// instance through its API and publishes zip dists. [GitDriver] speaks the
// git protocol: refs come from ls-remote and manifests are read from a bare
// mirror under the cache directory. [Open] picks one per repository and
// returns a [Facade] that forwards to it.
//
//	f, err := vcs.Open(ctx, "git@gitlab.example.com:acme/widget.git", vcs.Deps{
//	    GitLab:      client,
//	    GitFallback: true,
//	})
//	versions, err := vcs.Versions(ctx, f, true, logger)
package vcs
