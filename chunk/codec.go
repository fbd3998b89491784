package chunk

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/geospine/entwine/point"
)

// Marshal encodes the chunk's slot array and overflow region into the byte layout
// persisted under the chunk's own storage key (the fixed key "0" for the base chunk,
// its DXYZ string for a flat or tail chunk): the slot array followed by an overflow
// section. Each slot is a
// one-byte occupancy flag followed by a row when occupied; the overflow region is a
// four-byte little-endian row count followed by that many rows.
func (c *Chunk) Marshal() ([]byte, error) {
	width := int(c.schema.Width)
	buf := make([]byte, 0, len(c.slots)*(1+width)+4)

	for i := range c.slots {
		row, ok := c.slots[i].load()
		if !ok {
			buf = append(buf, 0)
			continue
		}
		if len(row) != width {
			return nil, errors.Errorf("chunk: slot %d row width %d does not match schema width %d", i, len(row), width)
		}
		buf = append(buf, 1)
		buf = append(buf, row...)
	}

	c.overflowMu.Lock()
	overflow := append([]point.Row(nil), c.overflowRows...)
	c.overflowMu.Unlock()

	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(overflow)))
	buf = append(buf, countBuf[:]...)
	for _, row := range overflow {
		buf = append(buf, row...)
	}

	return buf, nil
}

// Unmarshal populates c's slots and overflow region from bytes previously produced by
// Marshal. c must already be constructed (via NewBase/NewFlat/NewTail) with the target
// slot count; Unmarshal fails if data's slot region does not match that count.
func (c *Chunk) Unmarshal(data []byte) error {
	width := int(c.schema.Width)
	off := 0

	for i := range c.slots {
		if off >= len(data) {
			return errors.New("chunk: truncated slot region")
		}
		occupied := data[off] == 1
		off++
		if !occupied {
			continue
		}
		if off+width > len(data) {
			return errors.New("chunk: truncated row in slot region")
		}
		row := make(point.Row, width)
		copy(row, data[off:off+width])
		off += width
		c.slots[i].replace(row)
	}

	if off+4 > len(data) {
		return errors.New("chunk: truncated overflow count")
	}
	count := binary.LittleEndian.Uint32(data[off:])
	off += 4

	rows := make([]point.Row, 0, count)
	for i := uint32(0); i < count; i++ {
		if off+width > len(data) {
			return errors.New("chunk: truncated overflow row")
		}
		row := make(point.Row, width)
		copy(row, data[off:off+width])
		off += width
		rows = append(rows, row)
	}

	c.overflowMu.Lock()
	c.overflowRows = rows
	c.overflowMu.Unlock()
	c.dirty.Store(false)

	return nil
}
