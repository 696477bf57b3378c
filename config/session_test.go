package config

import (
	"testing"

	"github.com/gravwell/gcfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// filterArgsConfig mirrors ingest/config/loader_test.go's testStruct
// shape: a named-section map of *VariableConfig, which gcfg populates
// from every key/value pair in that section regardless of the
// VariableConfig type's own fields.
type filterArgsConfig struct {
	Filter map[string]*VariableConfig
}

func loadFilterArgs(t *testing.T, body string) VariableConfig {
	t.Helper()
	var cfg filterArgsConfig
	require.NoError(t, gcfg.ReadStringInto(&cfg, body))
	vc, ok := cfg.Filter["resampler"]
	require.True(t, ok)
	return *vc
}

func TestVariableConfigTypedAccessors(t *testing.T) {
	vc := loadFilterArgs(t, `
[filter "resampler"]
max-buffer-units = 8
sticky = true
name = "resampler"
tags = a
tags = b
tags = c
`)

	n, err := vc.GetInt("max-buffer-units")
	require.NoError(t, err)
	assert.EqualValues(t, 8, n)

	b, err := vc.GetBool("sticky")
	require.NoError(t, err)
	assert.True(t, b)

	s, err := vc.GetString("name")
	require.NoError(t, err)
	assert.Equal(t, "resampler", s)

	slc, err := vc.GetStringSlice("tags")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, slc)
}

func TestVariableConfigMapTo(t *testing.T) {
	type argStruct struct {
		MaxBufferUnits int
		Sticky         bool
		Name           string
	}
	vc := loadFilterArgs(t, `
[filter "resampler"]
max-buffer-units = 4
sticky = false
name = "decoder"
`)
	var out argStruct
	require.NoError(t, vc.MapTo(&out))
	assert.Equal(t, argStruct{MaxBufferUnits: 4, Sticky: false, Name: "decoder"}, out)
}

func TestVariableConfigByteSize(t *testing.T) {
	vc := loadFilterArgs(t, `
[filter "resampler"]
max-buffer-bytes = 4MB
`)
	bs, err := vc.GetByteSize("max-buffer-bytes")
	require.NoError(t, err)
	assert.EqualValues(t, 4*1024*1024, bs)
}

func TestVariableConfigUninitialized(t *testing.T) {
	var vc VariableConfig
	err := vc.MapTo(&struct{}{})
	assert.ErrorIs(t, err, ErrBadMap)
}
