// Package caps implements C2, the capability matcher: deciding whether
// a producer PID's properties satisfy a consumer filter's declared
// input capability bundles, and scoring producer/consumer bundle pairs
// for the graph resolver (package graph).
//
// The matching rules are grounded on gravwell's source/tag routing
// processors (ingest/processors/srcrouter.go, tagSrcRouter.go), which
// walk a flat rule list partitioned by key and apply inclusion /
// exclusion semantics per rule — generalized here from "route by
// source-IP or tag" to "match by declared capability bundle."
package caps

import "github.com/streamgraph/filtercore/prop"

// Flag is a bitmask of capability modifiers.
type Flag uint16

const (
	FlagInBundle Flag = 1 << iota
	FlagInput
	FlagOutput
	FlagExcluded
	FlagOptional
	FlagStatic
	FlagLoadedFilter
)

func (f Flag) Has(bit Flag) bool { return f&bit != 0 }

// Capability is one declared property constraint.
type Capability struct {
	Key      prop.Key
	Value    prop.PropValue
	Flags    Flag
	Priority int
}

// Bundle is a set of AND-matched capability constraints; a registry
// declares alternatives by listing multiple bundles.
type Bundle []Capability

// PartitionBundles splits a flat capability array into bundles. A
// capability lacking FlagInBundle starts a new bundle; every
// subsequent capability carrying FlagInBundle joins that bundle. This
// mirrors the source's flat-array-with-marker-flag bundle layout.
func PartitionBundles(all []Capability) []Bundle {
	var bundles []Bundle
	var cur Bundle
	started := false
	for _, c := range all {
		if !c.Flags.Has(FlagInBundle) {
			if started {
				bundles = append(bundles, cur)
			}
			cur = Bundle{c}
			started = true
			continue
		}
		if !started {
			cur = Bundle{}
			started = true
		}
		cur = append(cur, c)
	}
	if started {
		bundles = append(bundles, cur)
	}
	return bundles
}

// StaticCaps returns every capability flagged FlagStatic, which apply
// across all bundles rather than only within the bundle they're
// physically declared in.
func StaticCaps(all []Capability) []Capability {
	var out []Capability
	for _, c := range all {
		if c.Flags.Has(FlagStatic) {
			out = append(out, c)
		}
	}
	return out
}

// sameKey reports whether two capabilities share a matchable key
// (exact coded match, or exact string-name match).
func sameKey(a, b prop.Key) bool {
	return a.Equal(b)
}
