package bundlestore

import (
	"appupdate-go/internal/cstmerr"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketInstalls = []byte("installs")
	bucketMeta     = []byte("meta")
	keyCurrent     = []byte("current")
)

// InstalledBundle is one bundle version that was extracted on this device.
type InstalledBundle struct {
	Version     int       `json:"version"`
	BundleID    string    `json:"bundleId,omitempty"`
	Path        string    `json:"path"`
	SHA256      string    `json:"sha256,omitempty"`
	InstalledAt time.Time `json:"installedAt"`
}

// Store is the on-device registry of installed bundles. The highest recorded
// version is the one the host runs.
type Store struct {
	db *bolt.DB

	// memory-only mode
	mu       sync.RWMutex
	installs map[int]InstalledBundle
	current  int
}

// Open opens (creating if needed) the registry at path. An empty path gives a
// memory-only store that forgets everything on exit.
func Open(path string) (*Store, error) {
	if path == "" {
		return &Store{installs: make(map[int]InstalledBundle)}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, cstmerr.NewStoreError("failed to create store directory", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, cstmerr.NewStoreError("failed to open bolt db "+path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketInstalls, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, cstmerr.NewStoreError("failed to create buckets", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func versionKey(v int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(v))
	return key
}

// CurrentVersion returns the installed bundle version, 0 when nothing was ever installed.
func (s *Store) CurrentVersion(ctx context.Context) (int, error) {
	if s.db == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.current, nil
	}

	var current int
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get(keyCurrent)
		if v == nil {
			return nil
		}
		if len(v) != 8 {
			return fmt.Errorf("corrupt current version record (%d bytes)", len(v))
		}
		current = int(binary.BigEndian.Uint64(v))
		return nil
	})
	if err != nil {
		return 0, cstmerr.NewStoreError("failed to read current version", err)
	}
	return current, nil
}

// RecordInstall stores b and makes it current when its version is newer than the current one.
func (s *Store) RecordInstall(ctx context.Context, b InstalledBundle) error {
	if b.Version <= 0 {
		return cstmerr.NewStoreError(fmt.Sprintf("invalid bundle version %d", b.Version), nil)
	}
	if b.InstalledAt.IsZero() {
		b.InstalledAt = time.Now().UTC()
	}

	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.installs[b.Version] = b
		if b.Version > s.current {
			s.current = b.Version
		}
		return nil
	}

	data, err := json.Marshal(b)
	if err != nil {
		return cstmerr.NewStoreError("failed to encode install record", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketInstalls).Put(versionKey(b.Version), data); err != nil {
			return err
		}
		meta := tx.Bucket(bucketMeta)
		if cur := meta.Get(keyCurrent); cur != nil && len(cur) == 8 && int(binary.BigEndian.Uint64(cur)) >= b.Version {
			return nil
		}
		return meta.Put(keyCurrent, versionKey(b.Version))
	})
	if err != nil {
		return cstmerr.NewStoreError(fmt.Sprintf("failed to record bundle version %d", b.Version), err)
	}
	log.Debugf("Recorded installed bundle version %d at %s", b.Version, b.Path)
	return nil
}

// Installed lists every recorded install, oldest version first.
func (s *Store) Installed(ctx context.Context) ([]InstalledBundle, error) {
	if s.db == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		versions := make([]int, 0, len(s.installs))
		for v := range s.installs {
			versions = append(versions, v)
		}
		sort.Ints(versions)
		out := make([]InstalledBundle, 0, len(versions))
		for _, v := range versions {
			out = append(out, s.installs[v])
		}
		return out, nil
	}

	var out []InstalledBundle
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketInstalls).ForEach(func(_, v []byte) error {
			var b InstalledBundle
			if err := json.Unmarshal(v, &b); err != nil {
				return err
			}
			out = append(out, b)
			return nil
		})
	})
	if err != nil {
		return nil, cstmerr.NewStoreError("failed to list installed bundles", err)
	}
	return out, nil
}

// Get returns the install record for version.
func (s *Store) Get(ctx context.Context, version int) (InstalledBundle, bool, error) {
	if s.db == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		b, ok := s.installs[version]
		return b, ok, nil
	}

	var (
		b     InstalledBundle
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketInstalls).Get(versionKey(version))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &b)
	})
	if err != nil {
		return InstalledBundle{}, false, cstmerr.NewStoreError(fmt.Sprintf("failed to read bundle version %d", version), err)
	}
	return b, found, nil
}

// Prune drops records (not files) for all but the newest keep versions and returns what was dropped.
func (s *Store) Prune(ctx context.Context, keep int) ([]InstalledBundle, error) {
	all, err := s.Installed(ctx)
	if err != nil {
		return nil, err
	}
	if keep < 1 {
		keep = 1
	}
	if len(all) <= keep {
		return nil, nil
	}
	dropped := all[:len(all)-keep]

	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, b := range dropped {
			delete(s.installs, b.Version)
		}
		return dropped, nil
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketInstalls)
		for _, b := range dropped {
			if err := bucket.Delete(versionKey(b.Version)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, cstmerr.NewStoreError("failed to prune install records", err)
	}
	return dropped, nil
}
