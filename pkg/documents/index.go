package documents

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

type indexEntry struct {
	Root string `json:"root"`
	Path string `json:"path"`
}

/*
Index is the indirection table between opaque document IDs and root-relative
paths. IDs are name-based UUIDs of the relative path in a per-root namespace,
so the same path always gets the same ID, across restarts too. An ID only
resolves once its path has been surfaced by the provider (or reloaded from a
saved index).
*/
type Index struct {
	mu      sync.RWMutex
	entries map[string]indexEntry
}

func NewIndex() *Index {
	return &Index{entries: make(map[string]indexEntry)}
}

func rootNamespace(rootID string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("docprovider://"+rootID))
}

/*
DocumentID computes the ID for a cleaned relative path without recording it.
*/
func DocumentID(rootID, rel string) string {
	return uuid.NewSHA1(rootNamespace(rootID), []byte(rel)).String()
}

/*
Put records rel under rootID and returns its ID.
*/
func (ix *Index) Put(rootID, rel string) string {
	id := DocumentID(rootID, rel)

	ix.mu.Lock()
	ix.entries[id] = indexEntry{Root: rootID, Path: rel}
	ix.mu.Unlock()

	return id
}

/*
Lookup resolves an ID. Anything that is not a previously recorded ID,
including raw paths, fails.
*/
func (ix *Index) Lookup(id string) (rootID, rel string, ok bool) {
	ix.mu.RLock()
	entry, ok := ix.entries[id]
	ix.mu.RUnlock()

	return entry.Root, entry.Path, ok
}

/*
Forget drops rel and everything below it.
*/
func (ix *Index) Forget(rootID, rel string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for id, entry := range ix.entries {
		if entry.Root != rootID {
			continue
		}

		if entry.Path == rel || isDescendant(rel, entry.Path) {
			delete(ix.entries, id)
		}
	}
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

/*
Load merges a previously saved index. Entries whose path does not clean, or
whose ID does not match the recomputed one, are dropped. A missing file is not
an error.
*/
func (ix *Index) Load(fs afero.Fs, name string) error {
	data, err := afero.ReadFile(fs, name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("failed to read index: %w", err)
	}

	var saved map[string]indexEntry

	if err := json.Unmarshal(data, &saved); err != nil {
		return fmt.Errorf("failed to decode index: %w", err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	for id, entry := range saved {
		rel, err := cleanRel(entry.Path)
		if err != nil || rel != entry.Path {
			continue
		}

		if DocumentID(entry.Root, rel) != id {
			continue
		}

		ix.entries[id] = entry
	}

	return nil
}

/*
Save writes the index next to name and renames it into place.
*/
func (ix *Index) Save(fs afero.Fs, name string) error {
	ix.mu.RLock()
	data, err := json.Marshal(ix.entries)
	ix.mu.RUnlock()

	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}

	if dir := filepath.Dir(name); dir != "" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create index directory: %w", err)
		}
	}

	tmp := name + ".tmp"

	if err := afero.WriteFile(fs, tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}

	if err := fs.Rename(tmp, name); err != nil {
		_ = fs.Remove(tmp)
		return fmt.Errorf("failed to replace index: %w", err)
	}

	return nil
}
