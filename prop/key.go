package prop

import "fmt"

// Key identifies a property either by a 4-character code (the common
// case for well-known properties, mirroring the source's GF_PROP_*
// 4CCs) or by a string name for filter-specific properties.
type Key struct {
	code [4]byte
	name string
	coded bool
}

// CodeKey builds a 4CC-coded key, e.g. CodeKey('S', 'T', 'Y', 'P') for
// a stream-type property.
func CodeKey(a, b, c, d byte) Key {
	return Key{code: [4]byte{a, b, c, d}, coded: true}
}

// CodeKeyFromString builds a coded key from a 4-character string,
// panicking on malformed input since 4CCs are always compile-time
// literals in filter code.
func CodeKeyFromString(s string) Key {
	if len(s) != 4 {
		panic(fmt.Sprintf("prop: invalid 4CC %q", s))
	}
	return CodeKey(s[0], s[1], s[2], s[3])
}

// NameKey builds a string-named key for filter-specific properties.
func NameKey(name string) Key {
	return Key{name: name}
}

func (k Key) IsCoded() bool { return k.coded }

func (k Key) String() string {
	if k.coded {
		return string(k.code[:])
	}
	return k.name
}

func (k Key) Equal(o Key) bool {
	if k.coded != o.coded {
		return false
	}
	if k.coded {
		return k.code == o.code
	}
	return k.name == o.name
}

// SameCode reports whether two keys refer to the same coded property,
// used by Map.SameCodeValues.
func (k Key) SameCode(o Key) bool {
	return k.coded && o.coded && k.code == o.code
}
