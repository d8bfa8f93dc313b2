// Package repository is the metadata resolution engine: it walks every
// project of a GitLab instance and turns branches and tags carrying a
// composer.json into Composer package versions.
//
// # Components
//
//   - [RefResolver]: paginated branch and tag listings, root identifier
//   - [ManifestFetcher]: composer.json at a commit, cached by commit id
//   - [Builder]: the pass itself, producing a [Catalog]
//
// # Failure scoping
//
// A ref whose name cannot be normalized or whose manifest is absent is
// skipped. A project without a default branch, or whose default branch has
// no package name, is skipped. Only a failure to list projects ends the pass,
// and the versions gathered so far are still returned.
//
//	b := repository.NewBuilder(client, repository.Options{IncludeTags: true})
//	cat, err := b.Build(ctx)
//	if err != nil {
//	    // cat holds a partial catalog
//	}
package repository
