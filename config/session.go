package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/gravwell/gcfg"
	"github.com/inhies/go-bytesize"
)

var (
	// ErrBadMap mirrors gravwell's VariableConfig error for an
	// accessor called before gcfg has populated Vals.
	ErrBadMap        = errors.New("config: VariableConfig has not been initialized")
	ErrInvalidParam  = errors.New("config: parameter is not a pointer to a struct")
)

// VariableConfig is a direct generalization of gravwell's
// ingest/config/loader.go VariableConfig: a gcfg.Idxer-backed
// map-of-string-slices with typed accessors, here used for one
// filter's `[Filter "name"]` config section rather than an ingester
// section.
type VariableConfig struct {
	gcfg.Idxer
	Vals map[gcfg.Idx]*[]string
}

func (vc VariableConfig) get(name string) (string, bool) {
	temp := vc.Vals[vc.Idx(name)]
	if temp == nil || len(*temp) == 0 {
		return "", false
	}
	return (*temp)[0], true
}

func (vc VariableConfig) getSlice(name string) ([]string, bool) {
	temp := vc.Vals[vc.Idx(name)]
	if temp == nil {
		return nil, false
	}
	return *temp, true
}

func (vc VariableConfig) GetInt(name string) (int64, error) {
	s, ok := vc.get(nameMapper(name))
	if !ok {
		return 0, nil
	}
	return strconv.ParseInt(s, 0, 64)
}

func (vc VariableConfig) GetBool(name string) (bool, error) {
	s, ok := vc.get(nameMapper(name))
	if !ok {
		return false, nil
	}
	return strconv.ParseBool(strings.ToLower(s))
}

func (vc VariableConfig) GetString(name string) (string, error) {
	s, _ := vc.get(nameMapper(name))
	return s, nil
}

func (vc VariableConfig) GetStringSlice(name string) ([]string, error) {
	s, _ := vc.getSlice(nameMapper(name))
	return s, nil
}

// GetByteSize parses a human-sized string ("4MB", "512KiB") via
// go-bytesize, for buffer thresholds expressed in a MuxerConfig-style
// config struct (domain-stack note: "Buffer thresholds
// additionally accept go-bytesize-parsed size strings").
func (vc VariableConfig) GetByteSize(name string) (bytesize.ByteSize, error) {
	s, ok := vc.get(nameMapper(name))
	if !ok {
		return 0, nil
	}
	return bytesize.Parse(s)
}

// nameMapper maps a Go field name or an underscore-separated name to
// the dash-separated lowercase key used in config sections:
// MaxBufferUnits and max_buffer_units both become max-buffer-units.
func nameMapper(v string) string {
	var b strings.Builder
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c == '_':
			b.WriteByte('-')
		case c >= 'A' && c <= 'Z':
			if i > 0 && (v[i-1] >= 'a' && v[i-1] <= 'z' || v[i-1] >= '0' && v[i-1] <= '9') {
				b.WriteByte('-')
			}
			b.WriteByte(c + 'a' - 'A')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// MapTo populates v (a pointer to a struct) from vc by field name,
// using the same reflective dispatch as gravwell's
// VariableConfig.mapStruct, trimmed to the scalar kinds a filter
// registry's argument struct actually needs.
func (vc VariableConfig) MapTo(v interface{}) error {
	if vc.Vals == nil {
		return ErrBadMap
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return ErrInvalidParam
	}
	rv = rv.Elem()
	t := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		if err := vc.setField(t.Field(i).Name, rv.Field(i)); err != nil {
			return err
		}
	}
	return nil
}

func (vc VariableConfig) setField(name string, v reflect.Value) error {
	strv, ok := vc.get(nameMapper(name))
	if !ok {
		return nil
	}
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(strv, 0, 64)
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(strv, 0, 64)
		if err != nil {
			return err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(strv, 64)
		if err != nil {
			return err
		}
		v.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(strings.ToLower(strv))
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.String:
		v.SetString(strv)
	case reflect.Slice:
		if slc, ok := vc.getSlice(nameMapper(name)); ok {
			v.Set(reflect.AppendSlice(v, reflect.ValueOf(slc)))
		}
	default:
		return fmt.Errorf("config: cannot store into field %v: unsupported kind %v", name, v.Kind())
	}
	return nil
}
