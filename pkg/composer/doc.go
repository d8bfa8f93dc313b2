// Package composer models Composer packages: ref name normalization,
// composer.json decoding, package version records and the packages.json
// repository document.
//
// # Versions
//
// [ParseBranch] and [ParseTag] turn a ref name into a [Version]. The
// normalized form is a pure function of the name:
//
//	master        -> 9999999-dev                   (dev-master)
//	feature-x     -> dev-feature-x                 (dev-feature-x)
//	2.x           -> 2.9999999.9999999.9999999-dev (2.x-dev)
//	v1.2.0-beta1  -> 1.2.0.0-beta1                 (v1.2.0-beta1)
//
// Names that cannot be normalized fail with an error matching
// [ErrInvalidRefName]; callers skip that ref.
//
// # Repository
//
// [NewRepository] indexes versions into the packages.json document served to
// Composer clients, optionally publishing every package under a second
// vendor name.
package composer
