package builder

import "github.com/geospine/entwine/geo"

// SummaryOptions carries the pieces of a run's configuration that live outside the
// Builder itself — the CLI's own input list, paths, and per-run tuning — needed to
// render the startup banner original_source/kernel/entwine.cpp prints before a build
// runs (SPEC_FULL.md §C.3).
type SummaryOptions struct {
	BuildPath string
	Inputs    int
	Reproject string
	Snapshot  int
}

// Summary renders the same startup banner original_source/kernel/entwine.cpp prints
// on both a fresh build and a resume: input count, build path, tree depths, geometry
// type, bounds, reprojection, the schema's dimension list, and snapshot/thread
// tuning. It returns a flat key/value slice ready to pass straight to a structured
// logger's Infow.
func (b *Builder) Summary(opts SummaryOptions) []interface{} {
	names := make([]string, 0, len(b.schema.Dims))
	for _, d := range b.schema.Dims {
		names = append(names, d.Name)
	}

	reproject := opts.Reproject
	if reproject == "" {
		reproject = "identity"
	}

	return []interface{}{
		"inputs", opts.Inputs,
		"buildPath", opts.BuildPath,
		"baseDepth", b.st.Base,
		"flatDepth", b.st.Flat,
		"diskDepth", b.st.Disk,
		"geometry", geometryName(b.dims),
		"bounds", b.originalBounds,
		"reproject", reproject,
		"dimensions", names,
		"threads", b.threads,
		"snapshot", opts.Snapshot,
	}
}

func geometryName(dims geo.Dimensions) string {
	if dims == geo.Octree {
		return "octree"
	}
	return "quadtree"
}
