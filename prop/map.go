package prop

import "sync/atomic"

type entry struct {
	key  Key
	val  PropValue
	info bool // info-map entry: set via set_property(..., info=true); never invalidates dispatched packets
}

// Map is a reference-counted, copy-on-write snapshot of a PID's
// properties. Maps are immutable once any packet references them; a
// "mutation" produces a new Map via CopyWith, mirroring the source's
// rule that packets dispatched before a reconfigure keep their
// original properties.
//
// The refcount bookkeeping mirrors gravwell's evblock running-tally
// style (Add/updateEv keep size current instead of recomputing), here
// applied to Map.refs: every holder (a packet, a pinning PID-instance,
// or the PID's "current" slot) increments on attach and decrements on
// release; a decrement that observes zero is the deleter, matching
// the "atomic fetch-and-sub that returns the prior value to
// detect 'I was the last' transitions."
type Map struct {
	entries []entry
	refs    atomic.Int32
}

// NewMap builds an empty map with an initial reference held by the
// caller (the PID publishing it as its current map).
func NewMap() *Map {
	m := &Map{}
	m.refs.Store(1)
	return m
}

// Ref increments the reference count; callers must pair every Ref with
// a Release.
func (m *Map) Ref() *Map {
	if m == nil {
		return nil
	}
	m.refs.Add(1)
	return m
}

// Release decrements the reference count and reports whether this
// call observed the last reference (the caller that sees true owns
// the deallocation, per atomic-decrement discipline).
func (m *Map) Release() bool {
	if m == nil {
		return false
	}
	return m.refs.Add(-1) == 0
}

func (m *Map) RefCount() int32 {
	if m == nil {
		return 0
	}
	return m.refs.Load()
}

// Get reads the non-info property whose key equals k; a coded key
// never matches a named key, so there is no fallback between them.
func (m *Map) Get(k Key) (PropValue, bool) {
	if m == nil {
		return PropValue{}, false
	}
	for _, e := range m.entries {
		if !e.info && e.key.Equal(k) {
			return e.val, true
		}
	}
	return PropValue{}, false
}

// GetInfo reads an info-map entry only (never the primary map).
func (m *Map) GetInfo(k Key) (PropValue, bool) {
	if m == nil {
		return PropValue{}, false
	}
	for _, e := range m.entries {
		if e.info && e.key.Equal(k) {
			return e.val, true
		}
	}
	return PropValue{}, false
}

// SameCodeValues returns the values of every non-info entry whose
// coded key shares k's 4CC; named keys never match.
func (m *Map) SameCodeValues(k Key) []PropValue {
	if m == nil {
		return nil
	}
	var out []PropValue
	for _, e := range m.entries {
		if !e.info && e.key.SameCode(k) {
			out = append(out, e.val)
		}
	}
	return out
}

// CopyWith returns a new, singly-referenced Map with k=v set (or
// updated in place if k was already present), leaving the receiver
// untouched. This is the copy-on-write path a non-info property write
// triggers.
func (m *Map) CopyWith(k Key, v PropValue, info bool) *Map {
	nm := NewMap()
	found := false
	if m != nil {
		nm.entries = make([]entry, 0, len(m.entries)+1)
		for _, e := range m.entries {
			if e.info == info && e.key.Equal(k) {
				nm.entries = append(nm.entries, entry{key: k, val: v, info: info})
				found = true
			} else {
				nm.entries = append(nm.entries, e)
			}
		}
	}
	if !found {
		nm.entries = append(nm.entries, entry{key: k, val: v, info: info})
	}
	return nm
}

// Equivalent reports whether two maps hold the same set of non-info
// entries, used to implement the "reconfigure with the same property
// map is a no-op" optimization.
func (m *Map) Equivalent(o *Map) bool {
	a := nonInfo(m)
	b := nonInfo(o)
	if len(a) != len(b) {
		return false
	}
	for _, ea := range a {
		ok := false
		for _, eb := range b {
			if ea.key.Equal(eb.key) && ea.val.Equal(eb.val) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func nonInfo(m *Map) []entry {
	if m == nil {
		return nil
	}
	var out []entry
	for _, e := range m.entries {
		if !e.info {
			out = append(out, e)
		}
	}
	return out
}

// MergeFrom returns a fresh map containing src's entries overlaid on
// top of the receiver's, implementing copy_properties's replace-with-
// merged-map behavior: src wins on key collision, dst-only keys
// survive.
func MergeFrom(dst, src *Map) *Map {
	nm := NewMap()
	order := make([]string, 0)
	byKey := make(map[string]entry)
	add := func(e entry) {
		key := mapEntryKey(e)
		if _, ok := byKey[key]; !ok {
			order = append(order, key)
		}
		byKey[key] = e
	}
	if dst != nil {
		for _, e := range dst.entries {
			add(e)
		}
	}
	if src != nil {
		for _, e := range src.entries {
			add(e)
		}
	}
	for _, key := range order {
		nm.entries = append(nm.entries, byKey[key])
	}
	return nm
}

func mapEntryKey(e entry) string {
	prefix := "d:"
	if e.info {
		prefix = "i:"
	}
	return prefix + e.key.String()
}
