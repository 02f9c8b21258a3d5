package garden

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

const fileVersion = 1

type storeFile struct {
	Version int               `json:"version"`
	Gardens map[string]Record `json:"gardens"`
}

// Save writes every record keyed by identity string. The file is replaced
// atomically so a crash never leaves a partial store behind.
func (s *Store) Save(path string) error {
	s.mu.Lock()
	file := storeFile{Version: fileVersion, Gardens: make(map[string]Record, len(s.records))}
	for id, rec := range s.records {
		file.Gardens[id.Key()] = rec.clone()
	}
	s.dirty = false
	s.mu.Unlock()

	b, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("garden: encode store: %w", err)
	}
	if err := writeFileAtomic(path, b); err != nil {
		s.markDirty()
		return fmt.Errorf("garden: save %s: %w", path, err)
	}
	log.Debug().Msgf("garden.Store.Save path=%q gardens=%d", path, len(file.Gardens))
	return nil
}

// SaveIfDirty saves only when something changed since the last save or load.
func (s *Store) SaveIfDirty(path string) (bool, error) {
	s.mu.Lock()
	dirty := s.dirty
	s.mu.Unlock()
	if !dirty {
		return false, nil
	}
	return true, s.Save(path)
}

func (s *Store) markDirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// Load replaces the store contents with the file at path. A missing file
// leaves the store empty and is not an error. Entries whose key does not
// parse are skipped.
func (s *Store) Load(path string) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Info().Msgf("garden.Store.Load path=%q missing, starting empty", path)
		s.reset(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("garden: read %s: %w", path, err)
	}

	var file storeFile
	if err := json.Unmarshal(b, &file); err != nil {
		return fmt.Errorf("garden: decode %s: %w", path, err)
	}
	records := make(map[Identity]*Record, len(file.Gardens))
	for key, rec := range file.Gardens {
		id, err := ParseIdentity(key)
		if err != nil {
			log.Warn().Msgf("garden.Store.Load skip key=%q err=%v", key, err)
			continue
		}
		rec.Identity = id
		if rec.Fertilizations == nil {
			rec.Fertilizations = []Fertilization{}
		}
		r := rec
		records[id] = &r
	}
	s.reset(records)
	log.Info().Msgf("garden.Store.Load path=%q gardens=%d", path, len(records))
	return nil
}

func (s *Store) reset(records map[Identity]*Record) {
	if records == nil {
		records = make(map[Identity]*Record)
	}
	s.mu.Lock()
	s.records = records
	s.dirty = false
	s.mu.Unlock()
}

func writeFileAtomic(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
