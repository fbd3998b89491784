// Package buildconfig defines the JSON build-configuration document consumed by the
// CLI (spec.md §6) and a loader that env-substitutes it before parsing, matching the
// teacher's own config-reading idiom.
package buildconfig

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
)

// Config is the top-level build configuration document.
type Config struct {
	Input    []string `json:"input"`
	Build    Build    `json:"build"`
	Output   Output   `json:"output"`
	Tuning   Tuning   `json:"tuning"`
	Geometry Geometry `json:"geometry"`
}

// Build describes where a build's chunks and metadata live.
type Build struct {
	Path string `json:"path"`
	Tmp  string `json:"tmp"`
	Tree Tree   `json:"tree"`
}

// Tree carries the three depth boundaries partitioning storage tiers.
type Tree struct {
	BaseDepth uint64 `json:"baseDepth"`
	FlatDepth uint64 `json:"flatDepth"`
	DiskDepth uint64 `json:"diskDepth"`
}

// Output configures the optional finalize export.
type Output struct {
	Export    string `json:"export"`
	BaseDepth uint64 `json:"baseDepth"`
	Compress  bool   `json:"compress"`
}

// Tuning holds performance knobs that don't change build semantics.
type Tuning struct {
	Snapshot int `json:"snapshot"`
	Threads  int `json:"threads"`
	// ResidentHighWaterMark and ResidentLowWaterMark bound the registry's resident
	// tail-chunk count (SPEC_FULL.md addition; spec.md leaves the exact values open).
	// Zero means "use the registry's built-in default."
	ResidentHighWaterMark int `json:"residentHighWaterMark"`
	ResidentLowWaterMark  int `json:"residentLowWaterMark"`
}

// Geometry describes the tree's dimensionality, extent, reprojection, and schema.
type Geometry struct {
	Type      string     `json:"type"`
	Bbox      [6]float64 `json:"bbox"`
	Reproject Reproject  `json:"reproject"`
	Schema    []SchemaDim `json:"schema"`
}

// Reproject names an input/output coordinate system pair. Empty fields mean identity.
type Reproject struct {
	In  string `json:"in"`
	Out string `json:"out"`
}

// SchemaDim is one schema dimension as it appears in the config document.
type SchemaDim struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size uint32 `json:"size"`
}

// Load reads and env-substitutes the config document at path, then decodes it.
func Load(path string) (*Config, error) {
	buf, err := envsubst.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %q", path)
	}
	return FromReader(bytes.NewReader(buf))
}

// FromReader decodes a config document without touching the filesystem, used by tests
// and by the credentials-file loader's sibling call.
func FromReader(r io.Reader) (*Config, error) {
	var cfg Config
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config JSON")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the config-invalid error class spec.md §7 calls out: bad geometry
// type and out-of-range depth ordering are both fatal at startup.
func (c *Config) Validate() error {
	switch c.Geometry.Type {
	case "quadtree", "octree":
	default:
		return errors.Errorf("geometry.type must be %q or %q, got %q", "quadtree", "octree", c.Geometry.Type)
	}
	if !(c.Build.Tree.BaseDepth <= c.Build.Tree.FlatDepth && c.Build.Tree.FlatDepth <= c.Build.Tree.DiskDepth) {
		return errors.Errorf(
			"build.tree requires baseDepth(%d) <= flatDepth(%d) <= diskDepth(%d)",
			c.Build.Tree.BaseDepth, c.Build.Tree.FlatDepth, c.Build.Tree.DiskDepth)
	}
	if c.Build.Path == "" {
		return errors.New("build.path must be set")
	}
	if len(c.Geometry.Schema) == 0 {
		return errors.New("geometry.schema must have at least one dimension")
	}
	return nil
}
