package pfile

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// sharedFile is a refcounted *os.File, shared by every pfile.File instance
// opened against the same absolute path. Grounded in original_source's
// File::stream_cache_ (a process-wide unordered_map<string, weak_ptr<fstream>>):
// the last handle to drop its reference closes the descriptor.
type sharedFile struct {
	mu   sync.Mutex
	path string
	f    *os.File
	refs int
}

var (
	registryMu sync.Mutex
	registry   = map[string]*sharedFile{}
	openGroup  singleflight.Group
)

// acquireShared returns the registry's handle for path, opening it if no
// other File currently holds one. Concurrent first-opens for the same path
// are coalesced through openGroup so exactly one os.OpenFile call happens.
func acquireShared(path string) (*sharedFile, error) {
	registryMu.Lock()
	if sf, ok := registry[path]; ok {
		sf.mu.Lock()
		sf.refs++
		sf.mu.Unlock()
		registryMu.Unlock()
		return sf, nil
	}
	registryMu.Unlock()

	v, err, _ := openGroup.Do(path, func() (interface{}, error) {
		registryMu.Lock()
		if sf, ok := registry[path]; ok {
			sf.mu.Lock()
			sf.refs++
			sf.mu.Unlock()
			registryMu.Unlock()
			return sf, nil
		}
		registryMu.Unlock()

		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s", path)
		}
		sf := &sharedFile{path: path, f: f, refs: 1}

		registryMu.Lock()
		registry[path] = sf
		registryMu.Unlock()
		return sf, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sharedFile), nil
}

// release drops one reference; the last holder closes the underlying
// descriptor and removes it from the registry.
func (sf *sharedFile) release() error {
	sf.mu.Lock()
	sf.refs--
	remaining := sf.refs
	sf.mu.Unlock()

	if remaining > 0 {
		return nil
	}

	registryMu.Lock()
	if cur, ok := registry[sf.path]; ok && cur == sf {
		delete(registry, sf.path)
	}
	registryMu.Unlock()

	if err := sf.f.Sync(); err != nil {
		sf.f.Close()
		return errors.Wrapf(err, "sync %s on close", sf.path)
	}
	if err := sf.f.Close(); err != nil {
		return errors.Wrapf(err, "close %s", sf.path)
	}
	return nil
}
