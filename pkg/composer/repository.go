package composer

import (
	"encoding/json"
	"io"
	"maps"
	"slices"
	"strings"
)

// Repository is a Composer repository document (packages.json):
// package name to pretty version to version object.
type Repository struct {
	Packages map[string]map[string]PackageVersion `json:"packages"`
}

// NewRepository indexes versions by package name and pretty version. The
// first version seen for a (name, version) pair wins.
//
// When vendorAlias is set, each package "vendor/name" is also published as
// "{vendorAlias}/name", replacing the canonical package.
func NewRepository(versions []PackageVersion, vendorAlias string) *Repository {
	r := &Repository{Packages: make(map[string]map[string]PackageVersion)}
	for _, v := range versions {
		r.add(v)
	}
	if vendorAlias == "" {
		return r
	}
	for _, v := range versions {
		alias, ok := AliasName(v.Name, vendorAlias)
		if !ok {
			continue
		}
		r.add(withReplace(v.WithName(alias), v.Name))
	}
	return r
}

func (r *Repository) add(v PackageVersion) {
	byVersion, ok := r.Packages[v.Name]
	if !ok {
		byVersion = make(map[string]PackageVersion)
		r.Packages[v.Name] = byVersion
	}
	if _, dup := byVersion[v.Version]; !dup {
		byVersion[v.Version] = v
	}
}

// Names returns the package names in lexical order.
func (r *Repository) Names() []string {
	return slices.Sorted(maps.Keys(r.Packages))
}

// Package returns the versions published for name.
func (r *Repository) Package(name string) (map[string]PackageVersion, bool) {
	p, ok := r.Packages[name]
	return p, ok
}

// WriteJSON writes the repository document to w.
func (r *Repository) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}

// AliasName returns "{alias}/{basename}" for a "vendor/basename" package, or
// false when name has no vendor or already uses alias.
func AliasName(name, alias string) (string, bool) {
	vendor, base, ok := strings.Cut(name, "/")
	if !ok || alias == "" || vendor == alias {
		return "", false
	}
	return alias + "/" + base, true
}

func withReplace(v PackageVersion, canonical string) PackageVersion {
	replace := map[string]string{}
	if raw, ok := v.Extra["replace"]; ok {
		_ = json.Unmarshal(raw, &replace)
	}
	replace[canonical] = "self.version"
	raw, _ := json.Marshal(replace)
	if v.Extra == nil {
		v.Extra = make(map[string]json.RawMessage)
	}
	v.Extra["replace"] = raw
	return v
}
