package composer

import (
	"encoding/json"
	"strings"

	errs "github.com/matzehuels/gitlab-composer/pkg/errors"
)

// ManifestFile is the manifest looked up at every ref.
const ManifestFile = "composer.json"

// ErrManifestAbsent matches errors for a missing or unusable composer.json.
var ErrManifestAbsent = errs.Sentinel(errs.ErrCodeManifestAbsent)

// Manifest is a decoded composer.json.
//
// Only the fields the catalog needs are broken out. Every other top-level
// field is kept verbatim in Extra and republished with each version.
type Manifest struct {
	Name    string
	Version string
	Time    string
	Extra   map[string]json.RawMessage
}

// reserved fields are owned by the catalog and never copied from a
// manifest into a published version.
var reserved = map[string]bool{
	"name":               true,
	"version":            true,
	"version_normalized": true,
	"time":               true,
	"source":             true,
	"dist":               true,
}

// ParseManifest decodes data. A body that is not a JSON object, or whose
// "name" is missing, empty or not a string, yields an error matching [ErrManifestAbsent].
func ParseManifest(data []byte) (*Manifest, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, errs.Wrap(errs.ErrCodeManifestAbsent, err, "invalid %s", ManifestFile)
	}
	if fields == nil {
		return nil, errs.New(errs.ErrCodeManifestAbsent, "%s is null", ManifestFile)
	}

	m := &Manifest{Extra: make(map[string]json.RawMessage)}
	for k, v := range fields {
		switch k {
		case "name":
			if err := json.Unmarshal(v, &m.Name); err != nil {
				return nil, errs.Wrap(errs.ErrCodeManifestAbsent, err, "%s name is not a string", ManifestFile)
			}
		case "version":
			_ = json.Unmarshal(v, &m.Version)
		case "time":
			_ = json.Unmarshal(v, &m.Time)
		}
		if !reserved[k] {
			m.Extra[k] = v
		}
	}

	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return nil, errs.New(errs.ErrCodeManifestAbsent, "%s has no name", ManifestFile)
	}
	return m, nil
}
