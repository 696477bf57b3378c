package filetmpl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandLiteralPassthrough(t *testing.T) {
	got, err := Expand("segment-$Number$.m4s", Context{})
	require.NoError(t, err)
	assert.Equal(t, "segment-$Number$.m4s", got)
}

func TestExpandNumWithFormat(t *testing.T) {
	got, err := Expand("chunk-$num%04d$.ts", Context{Num: 7})
	require.NoError(t, err)
	assert.Equal(t, "chunk-0007.ts", got)
}

func TestExpandNumWithoutFormat(t *testing.T) {
	got, err := Expand("chunk-$num$.ts", Context{Num: 42})
	require.NoError(t, err)
	assert.Equal(t, "chunk-42.ts", got)
}

func TestExpandURLStripsDirAndExt(t *testing.T) {
	got, err := Expand("$URL$.out", Context{URL: "https://example.com/path/video.mp4"})
	require.NoError(t, err)
	assert.Equal(t, "video.out", got)
}

func TestExpandFileStripsDirAndExt(t *testing.T) {
	got, err := Expand("$File$", Context{File: "/tmp/clips/clip01.ts"})
	require.NoError(t, err)
	assert.Equal(t, "clip01", got)
}

func TestExpandPIDAndDS(t *testing.T) {
	got, err := Expand("$PID$-ds$DS%02d$", Context{PID: "PID3", DS: 1})
	require.NoError(t, err)
	assert.Equal(t, "PID3-ds01", got)
}

func TestExpandPropertyCodedAndNamed(t *testing.T) {
	props := map[string]string{"STYP": "video", "codec": "h264"}
	ctx := Context{Prop: func(key string) (string, bool) {
		v, ok := props[key]
		return v, ok
	}}

	got, err := Expand("$p4cc=STYP$/$pname=codec$", ctx)
	require.NoError(t, err)
	assert.Equal(t, "video/h264", got)
}

func TestExpandBarePropertyKeyword(t *testing.T) {
	ctx := Context{Prop: func(key string) (string, bool) {
		if key == "bitrate" {
			return "5000", true
		}
		return "", false
	}}
	got, err := Expand("rate-$bitrate$", ctx)
	require.NoError(t, err)
	assert.Equal(t, "rate-5000", got)
}

func TestExpandUnknownPropertyRendersEmpty(t *testing.T) {
	got, err := Expand("x$missing$y", Context{})
	require.NoError(t, err)
	assert.Equal(t, "xy", got)
}

func TestExpandDollarEscape(t *testing.T) {
	got, err := Expand("literal$$sign", Context{})
	require.NoError(t, err)
	assert.Equal(t, "literal$sign", got)
}

func TestExpandUnterminatedKeyword(t *testing.T) {
	_, err := Expand("broken-$num", Context{Num: 1})
	require.ErrorIs(t, err, ErrUnterminatedKeyword)
}
