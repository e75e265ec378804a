package slices

import (
	"os"
	"path/filepath"
)

type Problem struct {
	Entry  *Entry
	Reason string
}

// Verify checks that every slice of the session is still on disk with the
// digest recorded in the manifest.
func (s *Store) Verify(session string) ([]Problem, error) {
	var problems []Problem
	for _, entry := range s.Entries(session) {
		path := filepath.Join(s.dir, filepath.FromSlash(entry.File))

		digest, err := HashFile(s.fs, path)
		if err != nil {
			if _, statErr := s.fs.Stat(path); os.IsNotExist(statErr) {
				problems = append(problems, Problem{Entry: entry, Reason: "missing"})
				continue
			}
			return nil, err
		}

		if digest != entry.Digest {
			problems = append(problems, Problem{Entry: entry, Reason: "digest mismatch"})
		}
	}
	return problems, nil
}
