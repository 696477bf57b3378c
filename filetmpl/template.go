// Package filetmpl implements the filename template language:
// the `$KEYWORD[%fmt]$` grammar consumed by file-sink filters to build
// output paths from PID properties.
//
// Grounded on ingest/config/parse.go's register of small, terse
// string-parsing utilities (AppendDefaultPort, ParseRate) — this
// package is sized and styled the same way: a handful of focused
// functions over raw strings, no parser-generator machinery.
package filetmpl

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
)

// ErrUnterminatedKeyword is returned when a `$` opens a keyword span
// with no matching closing `$`.
var ErrUnterminatedKeyword = errors.New("filetmpl: unterminated $KEYWORD$ span")

// passthroughKeywords are preserved verbatim in the output for
// downstream muxers to interpret themselves: Number, Time,
// RepresentationID, Bandwidth, and SubNumber are never substituted.
var passthroughKeywords = map[string]bool{
	"Number":          true,
	"Time":            true,
	"RepresentationID": true,
	"Bandwidth":       true,
	"SubNumber":       true,
}

// Context supplies the values a template may reference.
type Context struct {
	Num  int64
	URL  string
	File string
	PID  string
	DS   int

	// Prop resolves a 4CC or named property key to its string
	// rendering, backing the `$p4cc=XXXX$`, `$pname=<name>$`, and bare
	// `$<4CC or name>$` keyword forms.
	Prop func(key string) (string, bool)
}

// Expand substitutes every `$KEYWORD[%fmt]$` span in tmpl, leaving
// passthrough keywords untouched and unescaping the single-character
// `$$` escape — a literal `$` is written by doubling it.
func Expand(tmpl string, ctx Context) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(tmpl) {
		c := tmpl[i]
		if c != '$' {
			out.WriteByte(c)
			i++
			continue
		}
		if i+1 < len(tmpl) && tmpl[i+1] == '$' {
			out.WriteByte('$')
			i += 2
			continue
		}
		end := strings.IndexByte(tmpl[i+1:], '$')
		if end < 0 {
			return "", fmt.Errorf("%w: %q", ErrUnterminatedKeyword, tmpl[i:])
		}
		span := tmpl[i+1 : i+1+end]
		i += end + 2

		if kw, _ := splitFormat(span); passthroughKeywords[kw] {
			out.WriteByte('$')
			out.WriteString(span)
			out.WriteByte('$')
			continue
		}
		rendered, err := expandKeyword(span, ctx)
		if err != nil {
			return "", err
		}
		out.WriteString(rendered)
	}
	return out.String(), nil
}

// expandKeyword resolves one span's content (the text between the two
// `$` delimiters, excluding them) to its substitution.
func expandKeyword(span string, ctx Context) (string, error) {
	keyword, format := splitFormat(span)

	switch {
	case keyword == "num":
		return formatInt(ctx.Num, format), nil
	case keyword == "URL":
		return stripDirAndExt(ctx.URL), nil
	case keyword == "File":
		return stripDirAndExt(ctx.File), nil
	case keyword == "PID":
		return ctx.PID, nil
	case keyword == "DS":
		return formatInt(int64(ctx.DS), format), nil
	case strings.HasPrefix(keyword, "p4cc="):
		return lookupProp(ctx, strings.TrimPrefix(keyword, "p4cc="))
	case strings.HasPrefix(keyword, "pname="):
		return lookupProp(ctx, strings.TrimPrefix(keyword, "pname="))
	default:
		// Bare "<4CC or name of property>" form.
		return lookupProp(ctx, keyword)
	}
}

// splitFormat separates a span's keyword from its optional `%fmt`
// printf-style suffix (width, pad, base — ).
func splitFormat(span string) (keyword, format string) {
	if idx := strings.IndexByte(span, '%'); idx >= 0 {
		return span[:idx], span[idx+1:]
	}
	return span, ""
}

// formatInt renders v using a printf-style integer format; an empty
// format renders as plain decimal.
func formatInt(v int64, format string) string {
	if format == "" {
		return strconv.FormatInt(v, 10)
	}
	return fmt.Sprintf("%"+format, v)
}

// stripDirAndExt implements the "URL/File templates strip
// directory and extension."
func stripDirAndExt(p string) string {
	base := path.Base(p)
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

func lookupProp(ctx Context, key string) (string, error) {
	if ctx.Prop == nil {
		return "", nil
	}
	v, ok := ctx.Prop(key)
	if !ok {
		return "", nil
	}
	return v, nil
}
