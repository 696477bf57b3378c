// Package config implements the two consumed external surfaces
// that touch PID properties: the `:key=value` arg syntax filters are
// constructed with, and the session's filter-registry list, loaded
// from a gcfg-format file the way gravwell loads its ingester
// configs.
//
// Grounded on ingest/config/loader.go's VariableConfig (a
// gcfg.Idxer-backed map-of-string-slices with typed GetInt/GetBool/
// GetString/GetStringSlice accessors), generalized here from
// "ingester config section" to "one filter's argument string."
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/streamgraph/filtercore/prop"
)

// ErrMalformedArg is returned when an arg token is missing its `=` or
// has an unterminated quote/angle-bracket protection.
var ErrMalformedArg = fmt.Errorf("config: malformed arg token")

// Arg is one parsed `key=value` pair from an arg string.
type Arg struct {
	Key   string
	Value string
}

// ParseArgString splits s into Args on sep: `key=value` pairs
// using a session-configured separator. A value may be
// wrapped in double quotes or angle brackets to protect an embedded
// separator character; the wrapping characters are stripped from the
// returned value.
func ParseArgString(s string, sep byte) ([]Arg, error) {
	if s == "" {
		return nil, nil
	}
	var args []Arg
	for _, tok := range splitProtected(s, sep) {
		if tok == "" {
			continue
		}
		eq := strings.IndexByte(tok, '=')
		if eq < 0 {
			return nil, fmt.Errorf("%w: %q", ErrMalformedArg, tok)
		}
		key := tok[:eq]
		val := unwrapProtection(tok[eq+1:])
		args = append(args, Arg{Key: key, Value: val})
	}
	return args, nil
}

// splitProtected splits s on sep, except where sep falls inside a
// `"..."` or `<...>` protected span.
func splitProtected(s string, sep byte) []string {
	var toks []string
	var cur strings.Builder
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			cur.WriteByte(c)
			if (quote == '"' && c == '"') || (quote == '<' && c == '>') {
				quote = 0
			}
		case c == '"' || c == '<':
			quote = c
			cur.WriteByte(c)
		case c == sep:
			toks = append(toks, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	toks = append(toks, cur.String())
	return toks
}

func unwrapProtection(v string) string {
	if len(v) >= 2 {
		if v[0] == '"' && v[len(v)-1] == '"' {
			return v[1 : len(v)-1]
		}
		if v[0] == '<' && v[len(v)-1] == '>' {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// ToPropValue infers a prop.PropValue from a raw arg value: 4CC-coded
// properties are parsed as typed values, unknown keys as strings.
// isCoded tells the caller whether key looks like a well-known
// 4-character code, in which case numeric/bool-looking values are
// parsed into their typed form; string-named keys are always left
// as strings.
func ToPropValue(key string, value string, isCoded bool) prop.PropValue {
	if !isCoded {
		return prop.StringValue(value)
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return prop.BoolValue(b)
	}
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return prop.LongValue(i)
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return prop.DoubleValue(f)
	}
	return prop.StringValue(value)
}

// KeyOf resolves a.Key to a prop.Key: a 4-character token becomes a
// coded key, anything else a named key, mirroring pid.SetProperty's
// "by 4CC code first, else by name" convention.
func (a Arg) KeyOf() prop.Key {
	if len(a.Key) == 4 {
		return prop.CodeKeyFromString(a.Key)
	}
	return prop.NameKey(a.Key)
}

// PropValue resolves a.Value into a typed prop.PropValue using the
// coded/named distinction of KeyOf.
func (a Arg) PropValue() prop.PropValue {
	return ToPropValue(a.Key, a.Value, len(a.Key) == 4)
}
