package prop_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/streamgraph/filtercore/prop"
)

var styp = prop.CodeKeyFromString("STYP")
var dur = prop.CodeKeyFromString("DUR ")

func TestCopyWithLeavesReceiverUntouched(t *testing.T) {
	m := prop.NewMap()
	m2 := m.CopyWith(styp, prop.StringValue("video"), false)

	_, ok := m.Get(styp)
	assert.False(t, ok, "original map must not observe the copy-on-write mutation")

	v, ok := m2.Get(styp)
	assert.True(t, ok)
	assert.Equal(t, "video", v.String())
}

func TestCopyWithUpdatesExistingKeyInPlaceOfAppending(t *testing.T) {
	m := prop.NewMap().CopyWith(styp, prop.StringValue("video"), false)
	m2 := m.CopyWith(styp, prop.StringValue("audio"), false)

	v, _ := m2.Get(styp)
	assert.Equal(t, "audio", v.String())

	vals := m2.SameCodeValues(styp)
	assert.Len(t, vals, 1, "updating an existing key must not leave a duplicate entry")
}

func TestGetInfoNeverReturnedByGet(t *testing.T) {
	m := prop.NewMap().CopyWith(styp, prop.StringValue("hidden"), true)

	_, ok := m.Get(styp)
	assert.False(t, ok)

	v, ok := m.GetInfo(styp)
	assert.True(t, ok)
	assert.Equal(t, "hidden", v.String())
}

func TestSameCodeValuesMatchesOnlySameCodedKey(t *testing.T) {
	m := prop.NewMap().
		CopyWith(prop.NameKey("alt1"), prop.StringValue("unused"), false)
	// SameCodeValues only ever matches coded keys sharing the same 4CC;
	// a single coded key therefore returns exactly one value.
	m = m.CopyWith(styp, prop.StringValue("video"), false)
	assert.Len(t, m.SameCodeValues(styp), 1)
	assert.Len(t, m.SameCodeValues(dur), 0)
}

func TestEquivalentIgnoresInfoEntries(t *testing.T) {
	a := prop.NewMap().CopyWith(styp, prop.StringValue("video"), false)
	b := a.CopyWith(dur, prop.IntValue(1), true)

	assert.True(t, a.Equivalent(b), "an info-only addition must not break equivalence")
}

func TestEquivalentDetectsRealDifference(t *testing.T) {
	a := prop.NewMap().CopyWith(styp, prop.StringValue("video"), false)
	b := prop.NewMap().CopyWith(styp, prop.StringValue("audio"), false)
	assert.False(t, a.Equivalent(b))
}

func TestMergeFromSrcWinsOnCollision(t *testing.T) {
	dst := prop.NewMap().CopyWith(styp, prop.StringValue("video"), false)
	dst = dst.CopyWith(dur, prop.IntValue(10), false)
	src := prop.NewMap().CopyWith(styp, prop.StringValue("audio"), false)

	merged := prop.MergeFrom(dst, src)

	v, _ := merged.Get(styp)
	assert.Equal(t, "audio", v.String(), "src must win on key collision")
	dv, ok := merged.Get(dur)
	assert.True(t, ok, "dst-only keys must survive the merge")
	n, ok := dv.Int()
	assert.True(t, ok)
	assert.Equal(t, int64(10), n)
}

func TestRefCountRoundTrips(t *testing.T) {
	m := prop.NewMap()
	assert.Equal(t, int32(1), m.RefCount())
	m.Ref()
	assert.Equal(t, int32(2), m.RefCount())
	assert.False(t, m.Release())
	assert.True(t, m.Release(), "the final Release call must observe the last reference")
}

func TestNilMapGetIsSafe(t *testing.T) {
	var m *prop.Map
	_, ok := m.Get(styp)
	assert.False(t, ok)
	assert.Equal(t, int32(0), m.RefCount())
}
