// Package slices persists emitted capture slices as WAV files and keeps a
// JSON manifest of everything written.
package slices

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"github.com/vcnkl/coalesce/capture"
	"github.com/vcnkl/coalesce/debounce"
	"github.com/vcnkl/coalesce/logger"
	"github.com/vcnkl/coalesce/models"
)

const ManifestFile = "manifest.json"

type Entry struct {
	Session   string    `json:"session"`
	Index     int       `json:"index"`
	File      string    `json:"file"`
	Channels  int       `json:"channels"`
	Frames    int       `json:"frames"`
	ElapsedMs int64     `json:"elapsed_ms"`
	AudioMs   int64     `json:"audio_ms"`
	Digest    string    `json:"digest"`
	Timestamp time.Time `json:"timestamp"`
}

type Options struct {
	ManifestWait    time.Duration
	ManifestMaxWait time.Duration
	Clock           clockwork.Clock
	Logger          logger.Logger
}

type Store struct {
	fs   afero.Fs
	dir  string
	log  logger.Logger
	save *debounce.Func[struct{}]

	mu      sync.RWMutex
	entries map[string]*Entry
	saveErr error
}

func NewStore(fs afero.Fs, dir string, opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	s := &Store{
		fs:      fs,
		dir:     dir,
		log:     opts.Logger.WithPrefix("store"),
		entries: make(map[string]*Entry),
	}
	s.save = debounce.New(s.saveManifest, debounce.Options{
		Wait:    opts.ManifestWait,
		MaxWait: opts.ManifestMaxWait,
		Clock:   opts.Clock,
	})
	return s
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) manifestPath() string {
	return filepath.Join(s.dir, ManifestFile)
}

// Load reads an existing manifest. A missing manifest is not an error.
func (s *Store) Load() error {
	path := s.manifestPath()
	data, err := afero.ReadFile(s.fs, path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	entries := make(map[string]*Entry)
	if err = json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = entries
	return nil
}

// Store writes the slice to <session>/<index>.wav and schedules a manifest
// rewrite.
func (s *Store) Store(slice *models.Slice) error {
	var buf bytes.Buffer
	if err := capture.EncodeWAV(&buf, slice); err != nil {
		return fmt.Errorf("failed to encode slice %s/%d: %w", slice.SessionID, slice.Index, err)
	}

	rel := filepath.Join(slice.SessionID, strconv.Itoa(slice.Index)+".wav")
	path := filepath.Join(s.dir, rel)
	if err := s.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
	}
	if err := afero.WriteFile(s.fs, path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write slice %s: %w", path, err)
	}

	entry := &Entry{
		Session:   slice.SessionID,
		Index:     slice.Index,
		File:      filepath.ToSlash(rel),
		Channels:  len(slice.Channels),
		Frames:    slice.Frames(),
		ElapsedMs: slice.Elapsed.Milliseconds(),
		AudioMs:   slice.AudioDuration().Milliseconds(),
		Digest:    HashBytes(buf.Bytes()),
		Timestamp: slice.CreatedAt,
	}

	s.mu.Lock()
	s.entries[entry.File] = entry
	s.mu.Unlock()

	s.log.Debug("slice stored",
		logger.String("file", entry.File),
		logger.Int("frames", entry.Frames))

	s.save.Call(struct{}{})
	return nil
}

func (s *Store) Get(session string, index int) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[session+"/"+strconv.Itoa(index)+".wav"]
	return entry, ok
}

// Entries returns the session's entries ordered by index.
func (s *Store) Entries(session string) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entry
	for _, entry := range s.entries {
		if entry.Session == session {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func (s *Store) Sessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []string
	for _, entry := range s.entries {
		if _, ok := seen[entry.Session]; ok {
			continue
		}
		seen[entry.Session] = struct{}{}
		out = append(out, entry.Session)
	}
	sort.Strings(out)
	return out
}

// Save writes the manifest immediately.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.fs.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", s.dir, err)
	}

	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	path := s.manifestPath()
	tmpPath := path + ".tmp"
	if err = afero.WriteFile(s.fs, tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest %s: %w", tmpPath, err)
	}

	if err = s.fs.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename manifest: %w", err)
	}

	return nil
}

// Close writes any pending manifest update and reports the first failed
// background write.
func (s *Store) Close() error {
	s.save.Flush()

	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.saveErr
	s.saveErr = nil
	return err
}

func (s *Store) saveManifest(struct{}) {
	if err := s.Save(); err != nil {
		s.log.Error("failed to save manifest", logger.Err(err))
		s.mu.Lock()
		if s.saveErr == nil {
			s.saveErr = err
		}
		s.mu.Unlock()
	}
}
