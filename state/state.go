/*
Package state owns durable per-user storage: one current-location record and
one safety-reward record per user, in a bbolt db under the user's datadir.
*/
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/halocircle/guardd/params"
	"github.com/halocircle/guardd/reward"
	"github.com/halocircle/guardd/types/fix"
	"github.com/jellydator/ttlcache/v3"
	"github.com/paulmach/orb/geojson"
	"go.etcd.io/bbolt"
)

// Store manages the per-user databases. Opening a user's db takes a file
// lock, so there is at most one writer per user process-wide; that is the
// point, not a limitation.
type Store struct {
	root string

	// lastKnown fronts the current-location record for readers.
	lastKnown *ttlcache.Cache[fix.UserID, *geojson.Feature]

	mu    sync.Mutex
	users map[fix.UserID]*userDB
}

type userDB struct {
	id fix.UserID
	db *bbolt.DB
}

func NewStore(root string) *Store {
	if root == "" {
		root = params.DatadirRoot
	}
	return &Store{
		root: root,
		lastKnown: ttlcache.New[fix.UserID, *geojson.Feature](
			ttlcache.WithTTL[fix.UserID, *geojson.Feature](params.CacheLastKnownTTL)),
		users: map[fix.UserID]*userDB{},
	}
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, u := range s.users {
		if err := u.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.users = map[fix.UserID]*userDB{}
	return firstErr
}

func (s *Store) user(id fix.UserID) (*userDB, error) {
	if id == "" {
		return nil, fmt.Errorf("empty user id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	dir := filepath.Join(s.root, params.UsersDir, sanitizeID(id))
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(filepath.Join(dir, params.UserStateDBName), 0600, nil)
	if err != nil {
		return nil, err
	}
	u := &userDB{id: id, db: db}
	s.users[id] = u
	return u, nil
}

// sanitizeID makes a user id safe as a directory name.
func sanitizeID(id fix.UserID) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, id.String())
}

// MergeCurrentLocation upserts the user's single current-location record
// with merge semantics: properties present on f replace their keys, keys f
// does not carry survive, geometry is replaced. Identity metadata written by
// other subsystems is not clobbered by a publish.
func (s *Store) MergeCurrentLocation(user fix.UserID, f *geojson.Feature) error {
	u, err := s.user(user)
	if err != nil {
		return err
	}
	var merged *geojson.Feature
	err = u.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(params.LocationBucket)
		if err != nil {
			return err
		}
		merged = f
		if existing := bucket.Get(params.CurrentLocationKey); existing != nil {
			prev, err := geojson.UnmarshalFeature(existing)
			if err == nil {
				for k, v := range f.Properties {
					prev.Properties[k] = v
				}
				prev.Geometry = f.Geometry
				merged = prev
			}
			// An undecodable record is replaced wholesale.
		}
		data, err := merged.MarshalJSON()
		if err != nil {
			return err
		}
		return bucket.Put(params.CurrentLocationKey, data)
	})
	if err != nil {
		return err
	}
	s.lastKnown.Set(user, merged, ttlcache.DefaultTTL)
	return nil
}

// LastKnown returns the user's current-location record, or (nil, nil) if
// none has been published yet.
func (s *Store) LastKnown(user fix.UserID) (*geojson.Feature, error) {
	if item := s.lastKnown.Get(user); item != nil {
		return item.Value(), nil
	}
	u, err := s.user(user)
	if err != nil {
		return nil, err
	}
	var f *geojson.Feature
	err = u.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(params.LocationBucket)
		if bucket == nil {
			return nil
		}
		data := bucket.Get(params.CurrentLocationKey)
		if data == nil {
			return nil
		}
		var err error
		f, err = geojson.UnmarshalFeature(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	if f != nil {
		s.lastKnown.Set(user, f, ttlcache.DefaultTTL)
	}
	return f, nil
}

// CachedLastKnown snapshots the warm current-location records. Only users
// published since the cache TTL appear; cold users need LastKnown.
func (s *Store) CachedLastKnown() map[fix.UserID]*geojson.Feature {
	out := map[fix.UserID]*geojson.Feature{}
	for user, item := range s.lastKnown.Items() {
		out[user] = item.Value()
	}
	return out
}

// RewardState implements reward.Store. (nil, nil) means no state yet.
func (s *Store) RewardState(user fix.UserID) (*reward.State, error) {
	u, err := s.user(user)
	if err != nil {
		return nil, err
	}
	var state *reward.State
	err = u.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(params.RewardBucket)
		if bucket == nil {
			return nil
		}
		data := bucket.Get(params.RewardStateKey)
		if data == nil {
			return nil
		}
		state = &reward.State{}
		return json.Unmarshal(data, state)
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// SaveRewardState implements reward.Store.
func (s *Store) SaveRewardState(user fix.UserID, state *reward.State) error {
	u, err := s.user(user)
	if err != nil {
		return err
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return u.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(params.RewardBucket)
		if err != nil {
			return err
		}
		return bucket.Put(params.RewardStateKey, data)
	})
}
