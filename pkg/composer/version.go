package composer

import (
	"regexp"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"

	errs "github.com/matzehuels/gitlab-composer/pkg/errors"
)

// ErrInvalidRefName matches errors for ref names that cannot be normalized.
var ErrInvalidRefName = errs.Sentinel(errs.ErrCodeInvalidRefName)

// DevMaster is the normalized version of the master, trunk and default
// branches.
const DevMaster = "9999999-dev"

// Version is the normalized form of a ref name.
type Version struct {
	Pretty        string // Published version string (e.g. "dev-feature", "2.x-dev", "v1.2.0")
	Normalized    string // Comparable form (e.g. "dev-feature", "2.9999999.9999999.9999999-dev", "1.2.0.0")
	IsDevelopment bool
}

var (
	refNameChars  = regexp.MustCompile(`^[A-Za-z0-9._/+-]+$`)
	numericBranch = regexp.MustCompile(`(?i)^v?(\d+)(\.(?:\d+|x))?(\.(?:\d+|x))?(\.(?:\d+|x))?$`)
	wildcardRun   = regexp.MustCompile(`(\.9999999)+`)

	classicalTag = regexp.MustCompile(`(?i)^v?(\d{1,5})(\.\d+)?(\.\d+)?(\.\d+)?` + modifier + `$`)
	dateTag      = regexp.MustCompile(`(?i)^v?(\d{4}(?:[.:-]?\d{2}){1,6}(?:[.:-]?\d{1,3})?)` + modifier + `$`)
)

const modifier = `[._-]?(?:(stable|beta|b|rc|alpha|a|patch|pl|p)((?:[.-]?\d+)*)?)?([.-]?dev)?`

// ParseBranch normalizes a branch name.
//
// master, trunk and default become "9999999-dev". Numeric branches such as
// "2", "v2.1" or "2.x" are padded to four components with x, the x
// components become 9999999 and "-dev" is appended. Anything else becomes
// "dev-{name}".
//
// A result that is dev-prefixed or "9999999-dev" is a development version
// with Pretty "dev-{name}". Otherwise Pretty is the branch alias form of the
// normalized version ("2.x-dev").
func ParseBranch(name string) (Version, error) {
	if err := checkRefName(name); err != nil {
		return Version{}, err
	}

	normalized := normalizeBranch(name)
	if IsDevelopment(normalized) {
		pretty := name
		if !strings.HasPrefix(pretty, "dev-") {
			pretty = "dev-" + pretty
		}
		return Version{Pretty: pretty, Normalized: normalized, IsDevelopment: true}, nil
	}
	return Version{Pretty: BranchAlias(normalized), Normalized: normalized}, nil
}

// ParseTag normalizes a tag name. Tags must follow the numeric version
// grammar ("1.2", "v1.2.3", "1.0.0-beta2", "2024.01.15") and are never
// development versions. Pretty is the tag name.
func ParseTag(name string) (Version, error) {
	if err := checkRefName(name); err != nil {
		return Version{}, err
	}

	version := name
	if i := strings.IndexByte(version, '+'); i > 0 {
		version = version[:i]
	}

	normalized, ok := normalizeTag(version)
	if !ok {
		return Version{}, errs.New(errs.ErrCodeInvalidRefName, "tag %q is not a version", name)
	}
	return Version{Pretty: name, Normalized: normalized}, nil
}

// IsDevelopment reports whether a normalized version is a development
// version.
func IsDevelopment(normalized string) bool {
	return strings.HasPrefix(normalized, "dev-") || normalized == DevMaster
}

// BranchAlias collapses runs of ".9999999" into ".x":
// "2.9999999" becomes "2.x" and "2.9999999.9999999.9999999-dev" becomes
// "2.x-dev".
func BranchAlias(normalized string) string {
	return wildcardRun.ReplaceAllString(normalized, ".x")
}

func checkRefName(name string) error {
	if name == "" {
		return errs.New(errs.ErrCodeInvalidRefName, "empty ref name")
	}
	if !refNameChars.MatchString(name) {
		return errs.New(errs.ErrCodeInvalidRefName, "ref name %q contains invalid characters", name)
	}
	return nil
}

func normalizeBranch(name string) string {
	switch strings.ToLower(name) {
	case "master", "trunk", "default":
		return DevMaster
	}

	m := numericBranch.FindStringSubmatch(name)
	if m == nil {
		return "dev-" + name
	}

	var b strings.Builder
	b.WriteString(m[1])
	for _, part := range m[2:5] {
		if part == "" {
			part = ".x"
		}
		b.WriteString(strings.ToLower(part))
	}
	return strings.ReplaceAll(b.String(), "x", "9999999") + "-dev"
}

func normalizeTag(version string) (string, bool) {
	if m := classicalTag.FindStringSubmatch(version); m != nil {
		v := m[1]
		for _, part := range m[2:5] {
			if part == "" {
				part = ".0"
			}
			v += part
		}
		return v + stabilitySuffix(m[5], m[6], m[7]), true
	}
	if m := dateTag.FindStringSubmatch(version); m != nil {
		v := strings.NewReplacer(":", ".", "-", ".").Replace(m[1])
		return v + stabilitySuffix(m[2], m[3], m[4]), true
	}
	return "", false
}

func stabilitySuffix(stability, number, dev string) string {
	var s string
	if stability != "" && !strings.EqualFold(stability, "stable") {
		s = "-" + expandStability(stability) + strings.TrimLeft(number, ".-")
	}
	if dev != "" {
		s += "-dev"
	}
	return s
}

func expandStability(s string) string {
	switch s = strings.ToLower(s); s {
	case "a":
		return "alpha"
	case "b":
		return "beta"
	case "p", "pl":
		return "patch"
	case "rc":
		return "RC"
	}
	return s
}

// Compare orders two normalized versions. Versions that read as semantic
// versions (numeric branches, tags, "9999999-dev") compare numerically.
// Named development branches compare lexically and order before them.
func Compare(a, b string) int {
	va, errA := semverOf(a)
	vb, errB := semverOf(b)
	switch {
	case errA == nil && errB == nil:
		if c := va.Compare(vb); c != 0 {
			return c
		}
	case errA == nil:
		return 1
	case errB == nil:
		return -1
	}
	return strings.Compare(a, b)
}

// Sort orders normalized versions for display: semantic versions newest
// first, then named development branches alphabetically.
func Sort(versions []string) {
	slices.SortStableFunc(versions, displayOrder)
}

// SortPackageVersions orders versions the way [Sort] orders their
// normalized strings.
func SortPackageVersions(versions []PackageVersion) {
	slices.SortStableFunc(versions, func(a, b PackageVersion) int {
		return displayOrder(a.VersionNormalized, b.VersionNormalized)
	})
}

func displayOrder(a, b string) int {
	_, errA := semverOf(a)
	_, errB := semverOf(b)
	if errA != nil && errB != nil {
		return strings.Compare(a, b)
	}
	return Compare(b, a)
}

// semverOf reads the first three numeric components and any stability
// suffix of a normalized version.
func semverOf(normalized string) (*semver.Version, error) {
	base, pre, hasPre := strings.Cut(normalized, "-")
	parts := strings.Split(base, ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	s := strings.Join(parts, ".")
	if hasPre {
		s += "-" + pre
	}
	return semver.NewVersion(s)
}
