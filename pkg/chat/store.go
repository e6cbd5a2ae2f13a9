package chat

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// TranscriptStore persists chat transcripts as JSONL, one file per chat key
type TranscriptStore struct {
	dir        string
	writeLocks map[string]*sync.Mutex
	locksMu    sync.Mutex
}

// NewTranscriptStore creates a transcript store rooted at dir
func NewTranscriptStore(dir string) (*TranscriptStore, error) {
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, ".toolbridge", "transcripts")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create transcripts directory: %w", err)
	}

	return &TranscriptStore{
		dir:        dir,
		writeLocks: make(map[string]*sync.Mutex),
	}, nil
}

// validateKey rejects keys that could escape the transcripts directory
func (s *TranscriptStore) validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("transcript key cannot be empty")
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("transcript key cannot contain '..'")
	}
	if strings.ContainsAny(key, "/\\") {
		return fmt.Errorf("transcript key cannot contain path separators")
	}
	if strings.Contains(key, "\x00") {
		return fmt.Errorf("transcript key cannot contain null bytes")
	}
	return nil
}

func (s *TranscriptStore) path(key string) string {
	return filepath.Join(s.dir, key+".jsonl")
}

func (s *TranscriptStore) writeLock(key string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	if lock, ok := s.writeLocks[key]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	s.writeLocks[key] = lock
	return lock
}

// Append writes one turn onto the transcript
func (s *TranscriptStore) Append(key string, turn Turn) error {
	if err := s.validateKey(key); err != nil {
		return err
	}
	if turn.Role == "" {
		return fmt.Errorf("turn role cannot be empty")
	}

	lock := s.writeLock(key)
	lock.Lock()
	defer lock.Unlock()

	file, err := os.OpenFile(s.path(key), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open transcript file: %w", err)
	}
	defer file.Close()

	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write turn: %w", err)
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("failed to sync transcript file: %w", err)
	}

	return nil
}

// Load reads the transcript back, skipping corrupt lines
func (s *TranscriptStore) Load(key string) ([]Turn, error) {
	if err := s.validateKey(key); err != nil {
		return nil, err
	}

	file, err := os.Open(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return []Turn{}, nil
		}
		return nil, fmt.Errorf("failed to open transcript file: %w", err)
	}
	defer file.Close()

	var turns []Turn
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" {
			continue
		}

		var turn Turn
		if err := json.Unmarshal([]byte(line), &turn); err != nil {
			log.Warn().Str("key", key).Int("line", lineNum).Err(err).Msg("Failed to parse transcript line, skipping")
			continue
		}
		if turn.Role == "" {
			log.Warn().Str("key", key).Int("line", lineNum).Msg("Invalid transcript entry, skipping")
			continue
		}

		turns = append(turns, turn)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transcript file: %w", err)
	}

	return turns, nil
}

// List returns the known transcript keys
func (s *TranscriptStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read transcripts directory: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(entry.Name(), ".jsonl"))
	}

	return keys, nil
}

// Delete removes a transcript
func (s *TranscriptStore) Delete(key string) error {
	if err := s.validateKey(key); err != nil {
		return err
	}

	lock := s.writeLock(key)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete transcript file: %w", err)
	}

	s.locksMu.Lock()
	delete(s.writeLocks, key)
	s.locksMu.Unlock()

	return nil
}
