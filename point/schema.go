// Package point defines the per-point byte layout used throughout the indexing engine:
// an ordered list of typed dimensions, a fixed row width, and the pack/unpack codec
// between typed values and the fixed-width byte rows chunks store on disk.
package point

import (
	"encoding/binary"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Coordinate dimension names. Every schema used with the tree descent machinery must
// carry at least DimX and DimY; DimZ is required for octree schemas.
const (
	DimX = "X"
	DimY = "Y"
	DimZ = "Z"
)

// Type is a primitive dimension type.
type Type uint8

// Primitive dimension types, matching spec.md's {i8,u8,...,i64,u64,f32,f64} set.
const (
	I8 Type = iota
	U8
	I16
	U16
	I32
	U32
	I64
	U64
	F32
	F64
)

// Size returns the width in bytes of a value of this type.
func (t Type) Size() uint32 {
	switch t {
	case I8, U8:
		return 1
	case I16, U16:
		return 2
	case I32, U32, F32:
		return 4
	case I64, U64, F64:
		return 8
	default:
		return 0
	}
}

// String names the type the way config JSON and log lines refer to it.
func (t Type) String() string {
	switch t {
	case I8:
		return "i8"
	case U8:
		return "u8"
	case I16:
		return "i16"
	case U16:
		return "u16"
	case I32:
		return "i32"
	case U32:
		return "u32"
	case I64:
		return "i64"
	case U64:
		return "u64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	default:
		return "unknown"
	}
}

// ParseType parses one of the config-facing type names into a Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "i8":
		return I8, nil
	case "u8":
		return U8, nil
	case "i16":
		return I16, nil
	case "u16":
		return U16, nil
	case "i32":
		return I32, nil
	case "u32":
		return U32, nil
	case "i64":
		return I64, nil
	case "u64":
		return U64, nil
	case "f32":
		return F32, nil
	case "f64":
		return F64, nil
	default:
		return 0, errors.Errorf("unknown dimension type %q", s)
	}
}

// OriginIDName is the name of the mandatory core-appended dimension that traces each
// stored point back to the origin (input file) it arrived from.
const OriginIDName = "OriginId"

// Dimension is one named, typed field within a point row.
type Dimension struct {
	Name   string
	Type   Type
	Offset uint32
}

// Schema is the ordered list of dimensions making up one point row, plus the row's
// fixed byte width.
type Schema struct {
	Dims  []Dimension
	Width uint32
}

// NewSchema lays dimensions out contiguously in the order given, assigning byte offsets
// by summing preceding dimension sizes. Config documents supply name+type per
// dimension; explicit offsets are computed here, not accepted from the caller, so that
// a schema is always internally consistent.
func NewSchema(dims []Dimension) (*Schema, error) {
	if len(dims) == 0 {
		return nil, errors.New("schema must have at least one dimension")
	}

	seen := make(map[string]struct{}, len(dims))
	laid := make([]Dimension, len(dims))
	var offset uint32
	for i, d := range dims {
		if d.Name == "" {
			return nil, errors.Errorf("dimension %d has no name", i)
		}
		if _, dup := seen[d.Name]; dup {
			return nil, errors.Errorf("duplicate dimension name %q", d.Name)
		}
		seen[d.Name] = struct{}{}

		size := d.Type.Size()
		if size == 0 {
			return nil, errors.Errorf("dimension %q has invalid type", d.Name)
		}

		laid[i] = Dimension{Name: d.Name, Type: d.Type, Offset: offset}
		offset += size
	}

	return &Schema{Dims: laid, Width: offset}, nil
}

// Find returns the dimension with the given name.
func (s *Schema) Find(name string) (Dimension, bool) {
	for _, d := range s.Dims {
		if d.Name == name {
			return d, true
		}
	}
	return Dimension{}, false
}

// Has reports whether the schema already carries a dimension of the given name.
func (s *Schema) Has(name string) bool {
	_, ok := s.Find(name)
	return ok
}

// WithOriginID returns a new schema with the mandatory OriginId:u64 dimension appended,
// unless the schema already carries one. This is a core invariant (spec.md §3), not an
// input the caller controls.
func (s *Schema) WithOriginID() (*Schema, error) {
	if s.Has(OriginIDName) {
		return s, nil
	}
	dims := make([]Dimension, len(s.Dims), len(s.Dims)+1)
	copy(dims, s.Dims)
	dims = append(dims, Dimension{Name: OriginIDName, Type: U64})
	return NewSchema(dims)
}

// Row is one packed point record, exactly Schema.Width bytes.
type Row []byte

// NewRow allocates a zeroed row sized for the schema.
func (s *Schema) NewRow() Row {
	return make(Row, s.Width)
}

// GetFloat reads the named dimension out of row as a float64, widening integer types.
func (s *Schema) GetFloat(row Row, name string) (float64, error) {
	d, ok := s.Find(name)
	if !ok {
		return 0, errors.Errorf("no dimension named %q", name)
	}
	return readFloat(row, d)
}

// SetFloat writes v into the named dimension of row, narrowing to the dimension's type.
func (s *Schema) SetFloat(row Row, name string, v float64) error {
	d, ok := s.Find(name)
	if !ok {
		return errors.Errorf("no dimension named %q", name)
	}
	return writeFloat(row, d, v)
}

// GetOriginID reads the mandatory OriginId dimension out of row.
func (s *Schema) GetOriginID(row Row) (uint64, error) {
	d, ok := s.Find(OriginIDName)
	if !ok {
		return 0, errors.New("schema has no OriginId dimension")
	}
	return binary.LittleEndian.Uint64(row[d.Offset : d.Offset+8]), nil
}

// SetOriginID writes the mandatory OriginId dimension into row.
func (s *Schema) SetOriginID(row Row, origin uint64) error {
	d, ok := s.Find(OriginIDName)
	if !ok {
		return errors.New("schema has no OriginId dimension")
	}
	binary.LittleEndian.PutUint64(row[d.Offset:d.Offset+8], origin)
	return nil
}

// Vector reads the X/Y/Z dimensions of row as an r3.Vector, for use in bounds and
// distance computations. A schema without a Z dimension (quadtree) yields Z=0.
func (s *Schema) Vector(row Row) (r3.Vector, error) {
	x, err := s.GetFloat(row, DimX)
	if err != nil {
		return r3.Vector{}, err
	}
	y, err := s.GetFloat(row, DimY)
	if err != nil {
		return r3.Vector{}, err
	}
	var z float64
	if s.Has(DimZ) {
		z, err = s.GetFloat(row, DimZ)
		if err != nil {
			return r3.Vector{}, err
		}
	}
	return r3.Vector{X: x, Y: y, Z: z}, nil
}

// Values is the decoded form of a row: dimension name to numeric value.
type Values map[string]float64

// Pack encodes vals into a freshly allocated row sized for the schema. Dimensions
// absent from vals are left zeroed.
func (s *Schema) Pack(vals Values) (Row, error) {
	row := s.NewRow()
	for name, v := range vals {
		if err := s.SetFloat(row, name, v); err != nil {
			return nil, err
		}
	}
	return row, nil
}

// Unpack decodes every dimension of row into a Values map.
func (s *Schema) Unpack(row Row) (Values, error) {
	if uint32(len(row)) != s.Width {
		return nil, errors.Errorf("row width %d does not match schema width %d", len(row), s.Width)
	}
	vals := make(Values, len(s.Dims))
	for _, d := range s.Dims {
		v, err := readFloat(row, d)
		if err != nil {
			return nil, err
		}
		vals[d.Name] = v
	}
	return vals, nil
}

// Translate repacks a row from srcSchema into dstSchema's layout, copying dimensions
// present in both by name and leaving the rest zeroed. Used by Builder.GetPointData to
// answer a query in a caller-requested schema.
func Translate(srcSchema, dstSchema *Schema, row Row) (Row, error) {
	vals, err := srcSchema.Unpack(row)
	if err != nil {
		return nil, err
	}
	out := dstSchema.NewRow()
	for _, d := range dstSchema.Dims {
		if v, ok := vals[d.Name]; ok {
			if err := dstSchema.SetFloat(out, d.Name, v); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func readFloat(row Row, d Dimension) (float64, error) {
	if uint32(len(row)) < d.Offset+d.Type.Size() {
		return 0, errors.Errorf("row too short for dimension %q", d.Name)
	}
	b := row[d.Offset:]
	switch d.Type {
	case I8:
		return float64(int8(b[0])), nil
	case U8:
		return float64(b[0]), nil
	case I16:
		return float64(int16(binary.LittleEndian.Uint16(b))), nil
	case U16:
		return float64(binary.LittleEndian.Uint16(b)), nil
	case I32:
		return float64(int32(binary.LittleEndian.Uint32(b))), nil
	case U32:
		return float64(binary.LittleEndian.Uint32(b)), nil
	case I64:
		return float64(int64(binary.LittleEndian.Uint64(b))), nil
	case U64:
		return float64(binary.LittleEndian.Uint64(b)), nil
	case F32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
	case F64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	default:
		return 0, errors.Errorf("dimension %q has invalid type", d.Name)
	}
}

func writeFloat(row Row, d Dimension, v float64) error {
	if uint32(len(row)) < d.Offset+d.Type.Size() {
		return errors.Errorf("row too short for dimension %q", d.Name)
	}
	b := row[d.Offset:]
	switch d.Type {
	case I8:
		b[0] = byte(int8(v))
	case U8:
		b[0] = byte(uint8(v))
	case I16:
		binary.LittleEndian.PutUint16(b, uint16(int16(v)))
	case U16:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case I32:
		binary.LittleEndian.PutUint32(b, uint32(int32(v)))
	case U32:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case I64:
		binary.LittleEndian.PutUint64(b, uint64(int64(v)))
	case U64:
		binary.LittleEndian.PutUint64(b, uint64(v))
	case F32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
	case F64:
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	default:
		return errors.Errorf("dimension %q has invalid type", d.Name)
	}
	return nil
}
