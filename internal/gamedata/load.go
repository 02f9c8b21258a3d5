package gamedata

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	FileSoils       = "soils"
	FileFertilizers = "fertilizers"
	FileSeeds       = "seeds"
	FileSeedTimes   = "seeds_time"
)

// YAML is a superset of JSON, so .json files decode through the same path.
var extensions = []string{".yaml", ".yml", ".json"}

// Load reads the reference tables under dir. A missing or unreadable table is
// logged and left empty; the returned dataset is always usable and the error
// joins every table failure.
func Load(dir string) (*Dataset, error) {
	var t Tables
	var errs []error

	for _, f := range []struct {
		name string
		dst  any
	}{
		{FileSoils, &t.Soils},
		{FileFertilizers, &t.Fertilizers},
		{FileSeeds, &t.Seeds},
		{FileSeedTimes, &t.SeedTimes},
	} {
		if err := readTable(dir, f.name, f.dst); err != nil {
			log.Warn().Msgf("gamedata.Load table=%s dir=%q err=%v", f.name, dir, err)
			errs = append(errs, err)
		}
	}

	d := New(t)
	log.Info().Msgf(
		"gamedata.Load dir=%q soils=%d fertilizers=%d seeds=%d seed_times=%d",
		dir, len(t.Soils), len(t.Fertilizers), len(t.Seeds), len(d.times),
	)
	return d, errors.Join(errs...)
}

func readTable(dir, name string, dst any) error {
	for _, ext := range extensions {
		path := filepath.Join(dir, name+ext)
		raw, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		return nil
	}
	return fmt.Errorf("table %s: %w", name, fs.ErrNotExist)
}

// Source hands out the current dataset and swaps it atomically on reload.
type Source struct {
	cur atomic.Pointer[Dataset]
}

func NewSource(d *Dataset) *Source {
	s := &Source{}
	if d == nil {
		d = Empty()
	}
	s.cur.Store(d)
	return s
}

func (s *Source) Get() *Dataset { return s.cur.Load() }

// Reload replaces the dataset with a fresh load of dir. The swap happens even
// when some tables failed, matching Load's partial semantics.
func (s *Source) Reload(dir string) error {
	d, err := Load(dir)
	s.cur.Store(d)
	return err
}
