package fetch

import (
	"fmt"

	"github.com/trawlkit/trawl/pkg/store"
)

// Group is an ordered run of objects realized by a single download. Groups
// with two or more members are composed server-side, downloaded once, and
// split back apart at the recorded offsets.
type Group struct {
	Objects []store.ObjectMetadata

	// Offsets[i] is the byte offset of Objects[i] inside the composite;
	// a prefix sum of the member sizes.
	Offsets []int64

	// TotalSize is the expected composite length in bytes.
	TotalSize int64
}

// Names returns the group members' object names in concatenation order.
func (g Group) Names() []string {
	names := make([]string, len(g.Objects))
	for i, obj := range g.Objects {
		names[i] = obj.Name
	}
	return names
}

// Plan packs objects into compose groups in input order. An object is added
// to the current group only while the running size stays within
// maxComposeBytes; the bound is strict, so a group never exceeds it. An
// object larger than the bound forms a singleton group that bypasses
// composition, and maxComposeBytes of zero disables grouping entirely.
// Groups are also capped at the store's compose source limit.
//
// Planning is a pure function of input order and the bound: the same catalog
// ordering always yields the same groups.
func Plan(objects []store.ObjectMetadata, maxComposeBytes int64) ([]Group, error) {
	if maxComposeBytes < 0 {
		return nil, &ConfigError{Reason: fmt.Sprintf("max compose bytes must be non-negative, got %d", maxComposeBytes)}
	}

	groups := make([]Group, 0, len(objects))
	var (
		current []store.ObjectMetadata
		size    int64
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		groups = append(groups, newGroup(current))
		current = nil
		size = 0
	}

	for _, obj := range objects {
		if maxComposeBytes == 0 || obj.Size > maxComposeBytes {
			flush()
			groups = append(groups, newGroup([]store.ObjectMetadata{obj}))
			continue
		}
		if len(current) == store.MaxComposeSources || size+obj.Size > maxComposeBytes {
			flush()
		}
		current = append(current, obj)
		size += obj.Size
	}
	flush()
	return groups, nil
}

func newGroup(objects []store.ObjectMetadata) Group {
	g := Group{
		Objects: objects,
		Offsets: make([]int64, len(objects)),
	}
	for i, obj := range objects {
		g.Offsets[i] = g.TotalSize
		g.TotalSize += obj.Size
	}
	return g
}
