package composer

import (
	"encoding/json"
	"maps"
)

// Source points at the commit a version was built from.
type Source struct {
	Type      string `json:"type"`
	URL       string `json:"url"`
	Reference string `json:"reference"`
}

// Dist describes a downloadable archive of a version. It is a descriptor
// only; archives are never fetched here.
type Dist struct {
	Type      string `json:"type"`
	URL       string `json:"url"`
	Reference string `json:"reference"`
}

// PackageVersion is one installable version of a package.
//
// It serializes as a Composer package version object: the remaining
// composer.json fields in Extra sit alongside the catalog-owned name,
// version, version_normalized, source, dist and time.
type PackageVersion struct {
	Name              string
	Version           string
	VersionNormalized string
	IsDevelopment     bool
	Source            Source
	Dist              *Dist
	Time              string
	Extra             map[string]json.RawMessage
}

// Key identifies a version within a catalog.
func (v PackageVersion) Key() string {
	return v.Name + "@" + v.VersionNormalized
}

// MarshalJSON flattens Extra into the version object.
func (v PackageVersion) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(v.Extra)+6)
	for k, raw := range v.Extra {
		out[k] = raw
	}
	out["name"] = v.Name
	out["version"] = v.Version
	out["version_normalized"] = v.VersionNormalized
	out["source"] = v.Source
	if v.Dist != nil {
		out["dist"] = v.Dist
	}
	if v.Time != "" {
		out["time"] = v.Time
	}
	return json.Marshal(out)
}

// UnmarshalJSON reverses MarshalJSON. IsDevelopment is derived from the
// normalized version.
func (v *PackageVersion) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}

	*v = PackageVersion{}
	decode := func(key string, dst any) error {
		raw, ok := fields[key]
		if !ok {
			return nil
		}
		delete(fields, key)
		return json.Unmarshal(raw, dst)
	}
	for key, dst := range map[string]any{
		"name":               &v.Name,
		"version":            &v.Version,
		"version_normalized": &v.VersionNormalized,
		"source":             &v.Source,
		"dist":               &v.Dist,
		"time":               &v.Time,
	} {
		if err := decode(key, dst); err != nil {
			return err
		}
	}

	v.IsDevelopment = IsDevelopment(v.VersionNormalized)
	if len(fields) > 0 {
		v.Extra = fields
	}
	return nil
}

// WithName returns a copy of v published under name. Extra is copied so the
// copy can be modified independently.
func (v PackageVersion) WithName(name string) PackageVersion {
	v.Name = name
	v.Extra = maps.Clone(v.Extra)
	return v
}
