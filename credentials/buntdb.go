package credentials

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"github.com/tcriess/neowatch/globals"
	"github.com/tidwall/buntdb"
)

const (
	buntKeyPrefix = "credential:"
	buntMemory    = ":memory:"
)

var ErrStoreLocked = fmt.Errorf("credential store is locked by another process")

// BuntDBStore persists the credentials in a buntdb file. Expiry is left to buntdb (SetOptions.TTL).
type BuntDBStore struct {
	db   *buntdb.DB
	lock *flock.Flock
}

// NewBuntDBStore opens (or creates) the database at path. For file databases a lock file "<path>.lock" is held
// while the store is open.
func NewBuntDBStore(path string) (*BuntDBStore, error) {
	var fileLock *flock.Flock
	if path != buntMemory {
		fileLock = flock.New(path + ".lock")
		locked, err := fileLock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("could not lock credential store: %w", err)
		}
		if !locked {
			return nil, ErrStoreLocked
		}
	}
	db, err := buntdb.Open(path)
	if err != nil {
		if fileLock != nil {
			_ = fileLock.Unlock()
		}
		return nil, err
	}
	return &BuntDBStore{db: db, lock: fileLock}, nil
}

func (s *BuntDBStore) Lookup(name string) (Entry, bool) {
	var e Entry
	err := s.db.View(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(buntKeyPrefix + name)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(raw), &e)
	})
	if err != nil {
		if err != buntdb.ErrNotFound {
			globals.AppLogger.Error("could not read credential", "name", name, "error", err)
		}
		return Entry{}, false
	}
	return e, true
}

func (s *BuntDBStore) Get(name string) (string, bool) {
	e, ok := s.Lookup(name)
	return e.Value, ok
}

func (s *BuntDBStore) Set(name, value string, opts SetOptions) {
	e := newEntry(value, opts, time.Now())
	raw, err := json.Marshal(e)
	if err != nil {
		globals.AppLogger.Error("could not marshal credential", "name", name, "error", err)
		return
	}
	var setOpts *buntdb.SetOptions
	if opts.TTL > 0 {
		setOpts = &buntdb.SetOptions{Expires: true, TTL: opts.TTL}
	}
	err = s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(buntKeyPrefix+name, string(raw), setOpts)
		return err
	})
	if err != nil {
		globals.AppLogger.Error("could not store credential", "name", name, "error", err)
	}
}

func (s *BuntDBStore) Remove(name string) {
	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(buntKeyPrefix + name)
		return err
	})
	if err != nil && err != buntdb.ErrNotFound {
		globals.AppLogger.Error("could not remove credential", "name", name, "error", err)
	}
}

func (s *BuntDBStore) Close() error {
	err := s.db.Close()
	if s.lock != nil {
		unlockErr := s.lock.Unlock()
		if err == nil {
			err = unlockErr
		}
	}
	return err
}
