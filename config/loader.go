package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/gravwell/gcfg"
)

const (
	maxConfigSize int64  = 4 * 1024 * 1024
	confExt       string = ".conf"
)

var (
	ErrConfigFileTooLarge = errors.New("config: file is too large")
	ErrFailedFileRead     = errors.New("config: failed to read entire file")
	ErrIsNotDirectory     = errors.New("config: path is not a directory")
)

// Global is the session-wide block of a SessionConfig: it holds the
// arg separator, preferred registry, resolver chain-length limit and
// buffer defaults, grounded on gravwell's every ingester config's
// [Global] section. Filter registries are named in the Filter sections.
type Global struct {
	ArgSeparator               string `gcfg:"arg-separator"`      // defaults to ":" when empty ("session-configured separator")
	PreferredRegistry          string `gcfg:"preferred-registry"` // step 5's "gfreg=foo" tie-break source
	MaxResolveChainLen         int    `gcfg:"max-resolve-chain-len"`
	SessionDefaultBufferTimeUS int64  `gcfg:"session-default-buffer-time-us"`
	DecoderPIDBufferMaxUS      int64  `gcfg:"decoder-pid-buffer-max-us"`
}

// FilterSection is one `[Filter "name"]` block: a registry name plus
// its raw arg string, parsed later via ParseArgString once the
// session knows that registry's configured separator.
type FilterSection struct {
	Registry string
	Args     string
	SourceID string `gcfg:"source-id"`
}

// SessionConfig is the gcfg-decoded shape of a session's config file.
type SessionConfig struct {
	Global  Global
	Filter  map[string]*FilterSection
}

// LoadConfigFile opens p, size-checks it, and decodes it into cfg
// (consumed surface), mirroring
// ingest/config/loader.go's LoadConfigFile/LoadConfigBytes pairing.
func LoadConfigFile(cfg *SessionConfig, p string) error {
	fin, err := os.Open(p)
	if err != nil {
		return err
	}
	defer fin.Close()

	fi, err := fin.Stat()
	if err != nil {
		return err
	}
	if fi.Size() > maxConfigSize {
		return ErrConfigFileTooLarge
	}

	bb := bytes.NewBuffer(nil)
	n, err := io.Copy(bb, fin)
	if err != nil {
		return err
	}
	if n != fi.Size() {
		return ErrFailedFileRead
	}
	return LoadConfigBytes(cfg, bb.Bytes())
}

// LoadConfigBytes decodes raw gcfg-format bytes into cfg.
func LoadConfigBytes(cfg *SessionConfig, b []byte) error {
	if int64(len(b)) > maxConfigSize {
		return ErrConfigFileTooLarge
	}
	return gcfg.ReadStringInto(cfg, string(b))
}

// LoadConfigOverlays scans dir for *.conf files and merges each into
// cfg in directory order, mirroring
// ingest/config/loader.go's LoadConfigOverlays (multi-file session
// configs assembled from a directory of drop-in fragments).
func LoadConfigOverlays(cfg *SessionConfig, dir string) error {
	if dir == "" {
		return nil
	}
	fi, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if !fi.IsDir() {
		return ErrIsNotDirectory
	}
	dents, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, d := range dents {
		if !d.Type().IsRegular() || filepath.Ext(d.Name()) != confExt {
			continue
		}
		if err := LoadConfigFile(cfg, filepath.Join(dir, d.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Separator resolves the configured arg separator, defaulting to ':'
// when the session config leaves it blank.
func (g Global) Separator() byte {
	if g.ArgSeparator == "" {
		return ':'
	}
	return g.ArgSeparator[0]
}
