package chatstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// FileStore keeps one history.json per thread under sessionsDir/<thread>/.
type FileStore struct {
	sessionsDir string
	mu          sync.Mutex
}

type threadFile struct {
	ID    string `json:"id"`
	Turns []Turn `json:"turns"`
}

// NewFileStore creates the sessions directory if needed.
func NewFileStore(sessionsDir string) (*FileStore, error) {
	if err := os.MkdirAll(sessionsDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "create sessions directory %s", sessionsDir)
	}
	return &FileStore{sessionsDir: sessionsDir}, nil
}

// threadPath validates threadID to prevent path traversal.
func (s *FileStore) threadPath(threadID string) string {
	return filepath.Join(s.sessionsDir, sanitizeThreadID(threadID), "history.json")
}

// sanitizeThreadID only allows alphanumeric, hyphens, and underscores
func sanitizeThreadID(threadID string) string {
	safe := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return -1
	}, threadID)
	if safe == "" {
		safe = "invalid"
	}
	return safe
}

func (s *FileStore) load(threadID string) (*threadFile, error) {
	data, err := os.ReadFile(s.threadPath(threadID))
	if os.IsNotExist(err) {
		return &threadFile{ID: threadID}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read thread")
	}
	var tf threadFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, errors.Wrap(err, "parse thread")
	}
	return &tf, nil
}

func (s *FileStore) save(tf *threadFile) error {
	path := s.threadPath(tf.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "create thread dir")
	}
	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal thread")
	}
	// Write to a sibling file first so a crash never leaves truncated JSON.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrap(err, "write thread")
	}
	return errors.Wrap(os.Rename(tmp, path), "replace thread")
}

func (s *FileStore) Get(_ context.Context, threadID string) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tf, err := s.load(threadID)
	if err != nil {
		return nil, err
	}
	if tf.Turns == nil {
		return []Turn{}, nil
	}
	return tf.Turns, nil
}

func (s *FileStore) Append(_ context.Context, threadID string, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tf, err := s.load(threadID)
	if err != nil {
		return err
	}
	tf.ID = threadID
	tf.Turns = append(tf.Turns, stamp(turns)...)
	return s.save(tf)
}

func (s *FileStore) Clear(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Wrap(os.RemoveAll(filepath.Join(s.sessionsDir, sanitizeThreadID(threadID))), "delete thread")
}

func (s *FileStore) Close() error { return nil }
