// Package lockfile persists which translations have already been downloaded.
package lockfile

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// FileName is the name of the lock file in the project root.
const FileName = "wp-translation-downloader.lock"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Entry is the locked state of one language of a project.
type Entry struct {
	Version string `json:"version"`
	Updated string `json:"updated"`
}

// Project holds the locked languages of one project.
type Project struct {
	Translations map[string]Entry `json:"translations"`
}

// Data is the whole ledger keyed by project name.
type Data map[string]Project

// Store is the in-memory ledger backed by the lock file. It is read once when
// opened and written only by Persist.
type Store struct {
	path   string
	data   Data
	dirty  bool
	logger *zap.Logger
}

// Open loads the lock file below root. A missing or unreadable file yields an
// empty ledger.
func Open(root string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		path:   filepath.Join(root, FileName),
		data:   Data{},
		logger: logger,
	}

	data, err := s.read()
	if err != nil {
		logger.Warn("ignoring lock file", zap.String("path", s.path), zap.Error(err))
		return s
	}
	s.data = data
	return s
}

func (s *Store) read() (Data, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Data{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading lock file")
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return Data{}, nil
	}

	data := Data{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, errors.Wrap(err, "decoding lock file")
	}
	return data, nil
}

// Path returns the lock file location.
func (s *Store) Path() string {
	return s.path
}

// IsLocked reports whether the language of project was already downloaded in
// the same version and at least as recently as lastUpdated. Timestamps that
// cannot be parsed are never considered locked.
func (s *Store) IsLocked(project, language, lastUpdated, version string) bool {
	entry, ok := s.data[project].Translations[language]
	if !ok {
		return false
	}
	if entry.Version != version {
		return false
	}

	stored, ok := parseTime(entry.Updated)
	if !ok {
		return false
	}
	candidate, ok := parseTime(lastUpdated)
	if !ok {
		return false
	}
	return !stored.Before(candidate)
}

// AddProjectLock records a downloaded translation. The change is kept in
// memory until Persist is called.
func (s *Store) AddProjectLock(project, language, lastUpdated, version string) bool {
	if project == "" || language == "" {
		return false
	}
	p := s.data[project]
	if p.Translations == nil {
		p.Translations = map[string]Entry{}
	}
	p.Translations[language] = Entry{Version: version, Updated: lastUpdated}
	s.data[project] = p
	s.dirty = true
	return true
}

// RemoveProjectLock forgets all languages of project.
func (s *Store) RemoveProjectLock(project string) bool {
	if _, ok := s.data[project]; !ok {
		return false
	}
	delete(s.data, project)
	s.dirty = true
	return true
}

// CachedLockData returns a copy of the in-memory ledger.
func (s *Store) CachedLockData() Data {
	out := make(Data, len(s.data))
	for name, p := range s.data {
		translations := make(map[string]Entry, len(p.Translations))
		for lang, e := range p.Translations {
			translations[lang] = e
		}
		out[name] = Project{Translations: translations}
	}
	return out
}

// Persist writes the ledger to the lock file through a temporary file in the
// same directory, so the lock file is either the old or the new version.
// Nothing is written when the ledger did not change since it was opened or
// last persisted.
func (s *Store) Persist() error {
	if !s.dirty {
		return nil
	}

	raw, err := json.MarshalIndent(s.data, "", "    ")
	if err != nil {
		return errors.Wrap(err, "encoding lock file")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+FileName+"-*")
	if err != nil {
		return errors.Wrap(err, "creating temporary lock file")
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(append(raw, '\n')); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "writing temporary lock file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "syncing temporary lock file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temporary lock file")
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return errors.Wrap(err, "setting lock file permissions")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return errors.Wrapf(err, "replacing %s", s.path)
	}
	s.dirty = false
	return nil
}

// Clear drops the ledger and deletes the lock file.
func (s *Store) Clear() error {
	s.data = Data{}
	s.dirty = false
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing %s", s.path)
	}
	return nil
}

func parseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
