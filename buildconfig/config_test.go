package buildconfig

import (
	"strings"
	"testing"

	"go.viam.com/test"
)

const validDoc = `{
	"input": ["a.las", "b.las"],
	"build": {"path": "/tmp/build", "tmp": "/tmp/scratch", "tree": {"baseDepth": 6, "flatDepth": 10, "diskDepth": 16}},
	"output": {"export": "/tmp/export", "baseDepth": 8, "compress": true},
	"tuning": {"snapshot": 5, "threads": 4},
	"geometry": {
		"type": "octree",
		"bbox": [0, 0, 0, 100, 100, 100],
		"reproject": {"in": "", "out": ""},
		"schema": [{"name": "X", "type": "f64", "size": 8}, {"name": "Y", "type": "f64", "size": 8}]
	}
}`

func TestFromReaderParsesValidDoc(t *testing.T) {
	cfg, err := FromReader(strings.NewReader(validDoc))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Geometry.Type, test.ShouldEqual, "octree")
	test.That(t, cfg.Build.Tree.DiskDepth, test.ShouldEqual, uint64(16))
	test.That(t, len(cfg.Input), test.ShouldEqual, 2)
}

func TestFromReaderRejectsBadGeometryType(t *testing.T) {
	bad := strings.Replace(validDoc, `"type": "octree"`, `"type": "hextree"`, 1)
	_, err := FromReader(strings.NewReader(bad))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFromReaderRejectsBadDepthOrdering(t *testing.T) {
	bad := strings.Replace(validDoc, `"baseDepth": 6, "flatDepth": 10, "diskDepth": 16`,
		`"baseDepth": 10, "flatDepth": 6, "diskDepth": 16`, 1)
	_, err := FromReader(strings.NewReader(bad))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFromReaderRejectsEmptySchema(t *testing.T) {
	bad := strings.Replace(validDoc, `"schema": [{"name": "X", "type": "f64", "size": 8}, {"name": "Y", "type": "f64", "size": 8}]`,
		`"schema": []`, 1)
	_, err := FromReader(strings.NewReader(bad))
	test.That(t, err, test.ShouldNotBeNil)
}
