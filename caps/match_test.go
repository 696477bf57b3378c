package caps_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/streamgraph/filtercore/caps"
	"github.com/streamgraph/filtercore/prop"
)

var codecKey = prop.CodeKeyFromString("CODC")
var mimeKey = prop.CodeKeyFromString("MIME")

func TestPartitionBundles(t *testing.T) {
	all := []caps.Capability{
		{Key: codecKey, Flags: caps.FlagInput},
		{Key: mimeKey, Flags: caps.FlagInput | caps.FlagInBundle},
		{Key: codecKey, Flags: caps.FlagInput},
	}
	bundles := caps.PartitionBundles(all)
	assert.Len(t, bundles, 2)
	assert.Len(t, bundles[0], 2)
	assert.Len(t, bundles[1], 1)
}

func TestPidCapsMatchBasic(t *testing.T) {
	dstCaps := []caps.Capability{
		{Key: codecKey, Value: prop.StringValue("aac"), Flags: caps.FlagInput},
	}
	lookup := func(k prop.Key) (prop.PropValue, bool) {
		if k.Equal(codecKey) {
			return prop.StringValue("aac"), true
		}
		return prop.PropValue{}, false
	}
	res := caps.PidCapsMatch(dstCaps, lookup, -1, prop.Key{}, false)
	assert.True(t, res.Matched)
	assert.Equal(t, 0, res.BundleIdx)
}

func TestPidCapsMatchMismatch(t *testing.T) {
	dstCaps := []caps.Capability{
		{Key: codecKey, Value: prop.StringValue("aac"), Flags: caps.FlagInput},
	}
	lookup := func(k prop.Key) (prop.PropValue, bool) {
		return prop.StringValue("mp3"), true
	}
	res := caps.PidCapsMatch(dstCaps, lookup, -1, prop.Key{}, false)
	assert.False(t, res.Matched)
}

func TestPidCapsMatchGlob(t *testing.T) {
	dstCaps := []caps.Capability{
		{Key: mimeKey, Value: prop.StringValue("video/*"), Flags: caps.FlagInput},
	}
	lookup := func(k prop.Key) (prop.PropValue, bool) {
		return prop.StringValue("video/mp4"), true
	}
	res := caps.PidCapsMatch(dstCaps, lookup, -1, prop.Key{}, false)
	assert.True(t, res.Matched)
}

func TestPidCapsMatchExcluded(t *testing.T) {
	dstCaps := []caps.Capability{
		{Key: codecKey, Value: prop.StringValue("raw"), Flags: caps.FlagInput | caps.FlagExcluded},
	}
	lookup := func(k prop.Key) (prop.PropValue, bool) {
		return prop.StringValue("aac"), true
	}
	res := caps.PidCapsMatch(dstCaps, lookup, -1, prop.Key{}, false)
	assert.True(t, res.Matched)

	lookupRaw := func(k prop.Key) (prop.PropValue, bool) {
		return prop.StringValue("raw"), true
	}
	res2 := caps.PidCapsMatch(dstCaps, lookupRaw, -1, prop.Key{}, false)
	assert.False(t, res2.Matched)
}

func TestPidCapsMatchOptionalDoesNotBlock(t *testing.T) {
	dstCaps := []caps.Capability{
		{Key: codecKey, Value: prop.StringValue("aac"), Flags: caps.FlagInput},
		{Key: mimeKey, Value: prop.StringValue("video/mp4"), Flags: caps.FlagInput | caps.FlagOptional | caps.FlagInBundle},
	}
	lookup := func(k prop.Key) (prop.PropValue, bool) {
		if k.Equal(codecKey) {
			return prop.StringValue("aac"), true
		}
		return prop.PropValue{}, false
	}
	res := caps.PidCapsMatch(dstCaps, lookup, -1, prop.Key{}, false)
	assert.True(t, res.Matched)
}

func TestCapsToCapsMatch(t *testing.T) {
	srcCaps := []caps.Capability{
		{Key: codecKey, Value: prop.StringValue("aac"), Flags: caps.FlagOutput},
	}
	dstCaps := []caps.Capability{
		{Key: codecKey, Value: prop.StringValue("aac"), Flags: caps.FlagInput},
	}
	bi, score := caps.CapsToCapsMatch(srcCaps, 0, dstCaps)
	assert.Equal(t, 0, bi)
	assert.Equal(t, 1, score)
}

func TestCapsToCapsMatchRejectsBundle(t *testing.T) {
	srcCaps := []caps.Capability{
		{Key: codecKey, Value: prop.StringValue("aac"), Flags: caps.FlagOutput},
	}
	dstCaps := []caps.Capability{
		{Key: codecKey, Value: prop.StringValue("mp3"), Flags: caps.FlagInput},
	}
	_, score := caps.CapsToCapsMatch(srcCaps, 0, dstCaps)
	assert.Equal(t, 0, score)
}
