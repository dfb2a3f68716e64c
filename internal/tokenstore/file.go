package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type fileRecord struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type fileContents struct {
	Tokens map[string]fileRecord `json:"tokens"`
}

// FileStore keeps every record in a single JSON file.
type FileStore struct {
	Path string
	mu   sync.Mutex
	opts options
}

func NewFileStore(path string, opts ...Option) *FileStore {
	return &FileStore{Path: path, opts: newOptions(opts)}
}

// DefaultTokenPath returns $XDG_CONFIG_HOME/flyerless-proxy/tokens.json,
// falling back to ~/.config.
func DefaultTokenPath() string {
	xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfigHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		xdgConfigHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(xdgConfigHome, "flyerless-proxy", "tokens.json")
}

func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (f *FileStore) Find(ctx context.Context, apiKey string) (*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	contents, err := f.read()
	if err != nil {
		return nil, err
	}
	fr, ok := contents.Tokens[apiKey]
	if !ok {
		return nil, ErrNotFound
	}
	return &Record{
		APIKey:      apiKey,
		AccessToken: fr.AccessToken,
		ExpiresAt:   fr.ExpiresAt,
		CreatedAt:   fr.CreatedAt,
		UpdatedAt:   fr.UpdatedAt,
	}, nil
}

func (f *FileStore) Create(ctx context.Context, apiKey string) (*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	contents, err := f.read()
	if err != nil {
		return nil, err
	}
	if _, ok := contents.Tokens[apiKey]; ok {
		return nil, ErrAlreadyExists
	}

	rec := NewRecord(apiKey, f.opts.now(), f.opts.bootstrapTTL)
	contents.Tokens[apiKey] = toFileRecord(rec)
	if err := f.write(contents); err != nil {
		return nil, err
	}
	return rec, nil
}

func (f *FileStore) Save(ctx context.Context, rec *Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	contents, err := f.read()
	if err != nil {
		return err
	}

	now := f.opts.now()
	if existing, ok := contents.Tokens[rec.APIKey]; ok {
		rec.CreatedAt = existing.CreatedAt
	} else if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	contents.Tokens[rec.APIKey] = toFileRecord(rec)
	return f.write(contents)
}

func toFileRecord(rec *Record) fileRecord {
	return fileRecord{
		AccessToken: rec.AccessToken,
		ExpiresAt:   rec.ExpiresAt,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

// read returns the file's contents; a missing file reads as empty.
func (f *FileStore) read() (*fileContents, error) {
	contents := &fileContents{Tokens: make(map[string]fileRecord)}

	b, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return contents, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	if err := json.Unmarshal(b, contents); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	if contents.Tokens == nil {
		contents.Tokens = make(map[string]fileRecord)
	}
	return contents, nil
}

func (f *FileStore) write(contents *fileContents) error {
	if err := EnsureParentDir(f.Path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(contents, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token file: %w", err)
	}
	if err := os.WriteFile(f.Path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}
