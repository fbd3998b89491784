package builder

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/geospine/entwine/geo"
	"github.com/geospine/entwine/point"
	"github.com/geospine/entwine/structure"
)

// MetaKey is the driver key a build's metadata document lives at.
const MetaKey = "meta"

// Metadata is everything a resumed build needs to reconstruct a Builder without
// re-reading any input file: the schema, the two bounding boxes descent runs against,
// the tier structure, every origin seen so far, and the running point counters.
type Metadata struct {
	Schema         []point.Dimension  `json:"schema"`
	OriginalBounds geo.Bounds         `json:"originalBounds"`
	Bounds         geo.Bounds         `json:"bounds"`
	Dims           geo.Dimensions     `json:"dims"`
	Structure      structure.Structure `json:"structure"`
	Origins        []string           `json:"origins"`
	NumPoints      uint64             `json:"numPoints"`
	NumDeduped     uint64             `json:"numDeduped"`
	NumTossed      uint64             `json:"numTossed"`
}

// Marshal renders the metadata document as indented JSON, matching the config
// document's own readable-by-a-human style.
func (m Metadata) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marshaling metadata")
	}
	return data, nil
}

// UnmarshalMetadata decodes a metadata document previously written by Marshal.
func UnmarshalMetadata(data []byte) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, errors.Wrap(err, "decoding metadata")
	}
	return m, nil
}
