package caps

import (
	"sync"

	"github.com/gobwas/glob"
	"github.com/streamgraph/filtercore/prop"
)

// ValueLookup resolves a capability key to the probed value, standing
// in for "pid's value" (matching a live PID) or "registry's declared
// value" (matching two registries against each other).
type ValueLookup func(k prop.Key) (prop.PropValue, bool)

// Result carries the outcome of a PidCapsMatch / CapsToCapsMatch call:
// which bundle matched, and a priority used by the graph resolver to
// break ties between multiple matching registries.
type Result struct {
	Matched    bool
	BundleIdx  int
	Priority   int
}

// globCache memoizes compiled glob patterns for string-valued caps;
// compilation only happens once per distinct pattern string. Guarded
// by globCacheMu since PidCapsMatch/CapsToCapsMatch are called
// concurrently from init/connect tasks racing to compile the same
// not-yet-cached pattern.
var (
	globCacheMu sync.RWMutex
	globCache   = map[string]glob.Glob{}
)

func compileGlob(pattern string) (glob.Glob, bool) {
	globCacheMu.RLock()
	g, ok := globCache[pattern]
	globCacheMu.RUnlock()
	if ok {
		return g, true
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, false
	}
	globCacheMu.Lock()
	globCache[pattern] = g
	globCacheMu.Unlock()
	return g, true
}

// valuesEqual compares a declared capability value against a probed
// value. String-valued capabilities are treated as glob patterns
// (e.g. "video/*" matching a probed MIME family), generalizing plain
// equality for every other kind.
func valuesEqual(declared, probed prop.PropValue) bool {
	if declared.Kind() == prop.KindString {
		if ds, ok := declared.Str(); ok {
			if ps, ok := probed.Str(); ok {
				if g, ok := compileGlob(ds); ok {
					return g.Match(ps)
				}
				return ds == ps
			}
		}
	}
	return declared.Equal(probed)
}

// PidCapsMatch decides whether a producer's properties (read through
// lookup) satisfy one of dstCaps's bundles, restricted to bundleIdx
// when forBundle is non-negative (pid_caps_match). forcedCap,
// when hasForced is true, must be among the matched keys or the bundle
// is rejected outright (the SetForcedCap contract).
func PidCapsMatch(dstCaps []Capability, lookup ValueLookup, forBundle int, forcedCap prop.Key, hasForced bool) Result {
	bundles := PartitionBundles(dstCaps)
	static := StaticCaps(dstCaps)

	best := Result{}
	for bi, bundle := range bundles {
		if forBundle >= 0 && bi != forBundle {
			continue
		}
		considered := make([]Capability, 0, len(bundle)+len(static))
		considered = append(considered, bundle...)
		considered = append(considered, static...)

		allMatch := true
		sawForced := !hasForced
		priority := 0
		for _, c := range considered {
			if !c.Flags.Has(FlagInput) {
				continue
			}
			val, present := lookup(c.Key)
			matched := false
			if c.Flags.Has(FlagExcluded) {
				matched = !present || !valuesEqual(c.Value, val)
			} else {
				matched = present && anySameKeyEqual(considered, c.Key, val)
			}
			if matched {
				if hasForced && c.Key.Equal(forcedCap) {
					sawForced = true
				}
				if c.Priority > priority {
					priority = c.Priority
				}
				continue
			}
			if c.Flags.Has(FlagOptional) {
				continue
			}
			allMatch = false
			break
		}
		if allMatch && sawForced {
			if !best.Matched || priority > best.Priority {
				best = Result{Matched: true, BundleIdx: bi, Priority: priority}
			}
		}
	}
	return best
}

// anySameKeyEqual reports whether val equals the declared value of any
// non-excluded, same-keyed capability in considered — the "disjunction
// across same-coded caps" rule that lets a bundle declare
// the same capability more than once to express alternatives.
func anySameKeyEqual(considered []Capability, k prop.Key, val prop.PropValue) bool {
	for _, c := range considered {
		if c.Flags.Has(FlagExcluded) || !c.Flags.Has(FlagInput) {
			continue
		}
		if !sameKey(c.Key, k) {
			continue
		}
		if valuesEqual(c.Value, val) {
			return true
		}
	}
	return false
}

// CapsToCapsMatch scores every bundle of dstCaps against the OUTPUT
// caps of srcCaps's srcBundle, for the graph resolver's edge-weighing
// step. A dst bundle's score is its count of matched output caps, or
// 0 if a non-optional src output cap found no matching dst input cap
// (dst bundle is eliminated, not merely penalized). Dst input caps
// that no src output cap addresses do not affect the score.
func CapsToCapsMatch(srcCaps []Capability, srcBundle int, dstCaps []Capability) (bestBundle int, bestScore int) {
	srcBundles := PartitionBundles(srcCaps)
	if srcBundle < 0 || srcBundle >= len(srcBundles) {
		return -1, 0
	}
	srcStatic := StaticCaps(srcCaps)
	srcConsidered := append(append([]Capability{}, srcBundles[srcBundle]...), srcStatic...)

	dstBundles := PartitionBundles(dstCaps)
	dstStatic := StaticCaps(dstCaps)

	bestBundle = -1
	for bi, bundle := range dstBundles {
		considered := append(append([]Capability{}, bundle...), dstStatic...)
		possible := true
		matched := 0
		for _, co := range srcConsidered {
			if !co.Flags.Has(FlagOutput) {
				continue
			}
			found := false
			for _, ci := range considered {
				if !ci.Flags.Has(FlagInput) || !sameKey(ci.Key, co.Key) {
					continue
				}
				if ci.Flags.Has(FlagExcluded) {
					if !valuesEqual(ci.Value, co.Value) {
						found = true
					}
				} else if valuesEqual(ci.Value, co.Value) {
					found = true
				}
				if found {
					break
				}
			}
			if found {
				matched++
			} else if !co.Flags.Has(FlagOptional) {
				possible = false
				break
			}
		}
		score := 0
		if possible {
			score = matched
		}
		if score > bestScore || bestBundle == -1 {
			bestBundle, bestScore = bi, score
		}
	}
	return bestBundle, bestScore
}
