package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pangaea-engine/pangaea/engine/core"
)

const spirvExtension = ".spv"

// spirvMagic is the first word of every valid SPIR-V binary, little-endian.
var spirvMagic = []byte{0x03, 0x02, 0x23, 0x07}

// ShaderStore serves compiled SPIR-V blobs from a directory. Blobs are cached
// after first load; Invalidate drops a cached entry so the next load rereads
// the file.
type ShaderStore struct {
	dir string

	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewShaderStore(dir string) *ShaderStore {
	return &ShaderStore{
		dir:   dir,
		blobs: make(map[string][]byte),
	}
}

// Dir returns the directory the store reads from.
func (s *ShaderStore) Dir() string {
	return s.dir
}

func validateSPIRV(name string, data []byte) error {
	if len(data) < 4 || len(data)%4 != 0 {
		return fmt.Errorf("shader %q: size %d is not a positive multiple of 4", name, len(data))
	}
	for i := range spirvMagic {
		if data[i] != spirvMagic[i] {
			return fmt.Errorf("shader %q: missing SPIR-V magic number", name)
		}
	}
	return nil
}

// LoadSPIRV returns the blob for name (e.g. "shader.vert.spv"). The name may
// omit the extension.
func (s *ShaderStore) LoadSPIRV(name string) ([]byte, error) {
	if !strings.HasSuffix(name, spirvExtension) {
		name += spirvExtension
	}

	s.mu.RLock()
	blob, ok := s.blobs[name]
	s.mu.RUnlock()
	if ok {
		return blob, nil
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read shader %q: %w", name, err)
	}
	if err := validateSPIRV(name, data); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.blobs[name] = data
	s.mu.Unlock()

	core.LogDebug("loaded shader %q (%d bytes)", name, len(data))
	return data, nil
}

// StoreAnonymous persists a blob that arrived without a name, e.g. from a
// runtime shader compiler, and returns the generated file name.
func (s *ShaderStore) StoreAnonymous(data []byte) (string, error) {
	name := uuid.NewString() + spirvExtension
	if err := validateSPIRV(name, data); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create shader directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to store shader blob: %w", err)
	}

	s.mu.Lock()
	s.blobs[name] = append([]byte(nil), data...)
	s.mu.Unlock()
	return name, nil
}

// Invalidate drops the cached blob for name so the next LoadSPIRV rereads the
// file. Unknown names are ignored.
func (s *ShaderStore) Invalidate(name string) {
	s.mu.Lock()
	delete(s.blobs, name)
	s.mu.Unlock()
}

// CachedCount reports how many blobs are currently cached.
func (s *ShaderStore) CachedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
