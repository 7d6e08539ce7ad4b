// Package pebblestore is an embedded single-node backend implementing every
// database repository on top of a Pebble key-value store.
package pebblestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/npezzotti/go-lag/internal/database"
)

const (
	accountPrefix  = "account:"
	profilePrefix  = "profile:"
	usernamePrefix = "username:"
	chatPrefix     = "chat:"
)

var errClosed = errors.New("pebble store is closed")

type Store struct {
	db *pebble.DB
	// serializes read-modify-write sequences guarding unique keys
	mu  sync.Mutex
	seq atomic.Uint64
}

var _ database.Repository = (*Store)(nil)

// Open opens or creates the store at path. A nil opts uses Pebble defaults.
func Open(path string, opts *pebble.Options) (*Store, error) {
	if opts == nil {
		if err := os.MkdirAll(path, 0700); err != nil {
			return nil, err
		}
		opts = &pebble.Options{}
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return errClosed
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) CreateAccount(ctx context.Context, params database.CreateAccountParams) (database.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := []byte(accountPrefix + params.Email)
	if _, err := s.get(key); err == nil {
		return database.Account{}, database.ErrConflict
	} else if !errors.Is(err, database.ErrNotFound) {
		return database.Account{}, err
	}

	a := database.Account{
		Id:           params.Id,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.setJSON(key, a); err != nil {
		return database.Account{}, err
	}

	return a, nil
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (database.Account, error) {
	var a database.Account
	err := s.getJSON([]byte(accountPrefix+email), &a)
	return a, err
}

// PutProfile writes the profile and its username index in one batch,
// releasing the previous username when it changed.
func (s *Store) PutProfile(ctx context.Context, p database.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, err := s.get([]byte(usernamePrefix + p.Username))
	switch {
	case err == nil && string(owner) != p.UserId:
		return database.ErrConflict
	case err != nil && !errors.Is(err, database.ErrNotFound):
		return err
	}

	var prev database.Profile
	if err := s.getJSON([]byte(profilePrefix+p.UserId), &prev); err != nil && !errors.Is(err, database.ErrNotFound) {
		return err
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	b := s.db.NewBatch()
	defer b.Close()

	if prev.Username != "" && prev.Username != p.Username {
		if err := b.Delete([]byte(usernamePrefix+prev.Username), nil); err != nil {
			return err
		}
	}
	if err := b.Set([]byte(profilePrefix+p.UserId), data, nil); err != nil {
		return err
	}
	if err := b.Set([]byte(usernamePrefix+p.Username), []byte(p.UserId), nil); err != nil {
		return err
	}

	return b.Commit(pebble.Sync)
}

func (s *Store) ListProfiles(ctx context.Context, excludeId string) ([]database.Profile, error) {
	profiles := make([]database.Profile, 0)
	err := s.scan([]byte(profilePrefix), func(_, v []byte) error {
		var p database.Profile
		if err := json.Unmarshal(v, &p); err != nil {
			return fmt.Errorf("decode profile: %w", err)
		}
		if p.UserId != excludeId {
			profiles = append(profiles, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(profiles, func(a, b database.Profile) int {
		return strings.Compare(a.Username, b.Username)
	})

	return profiles, nil
}

func (s *Store) GetProfilesByIds(ctx context.Context, ids []string) ([]database.Profile, error) {
	profiles := make([]database.Profile, 0, len(ids))
	for _, id := range ids {
		var p database.Profile
		err := s.getJSON([]byte(profilePrefix+id), &p)
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	return profiles, nil
}

func (s *Store) GetProfileByUsername(ctx context.Context, username string) (database.Profile, error) {
	id, err := s.get([]byte(usernamePrefix + username))
	if err != nil {
		return database.Profile{}, err
	}

	var p database.Profile
	err = s.getJSON([]byte(profilePrefix+string(id)), &p)
	return p, err
}

// CreateMessage appends msg under its room. Keys carry a nanosecond
// timestamp and sequence so iteration yields insertion order.
func (s *Store) CreateMessage(ctx context.Context, msg database.Message) error {
	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	key := fmt.Sprintf("%s%s:%020d-%06d", chatPrefix, msg.RoomId, now.UnixNano(), s.seq.Add(1)%1000000)

	return s.setJSON([]byte(key), msg)
}

func (s *Store) GetMessages(ctx context.Context, roomId string) ([]database.Message, error) {
	msgs := make([]database.Message, 0)
	err := s.scan(roomPrefix(roomId), func(_, v []byte) error {
		var m database.Message
		if err := json.Unmarshal(v, &m); err != nil {
			return fmt.Errorf("decode message: %w", err)
		}
		msgs = append(msgs, m)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return msgs, nil
}

func (s *Store) ListRooms(ctx context.Context) ([]string, error) {
	rooms := make([]string, 0)
	err := s.scan([]byte(chatPrefix), func(k, _ []byte) error {
		rest := k[len(chatPrefix):]
		i := bytes.IndexByte(rest, ':')
		if i < 0 {
			return nil
		}
		room := string(rest[:i])
		if len(rooms) == 0 || rooms[len(rooms)-1] != room {
			rooms = append(rooms, room)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rooms, nil
}

func (s *Store) DeleteRoom(ctx context.Context, roomId string) error {
	if s.db == nil {
		return errClosed
	}

	prefix := roomPrefix(roomId)
	return s.db.DeleteRange(prefix, upperBound(prefix), pebble.Sync)
}

func (s *Store) get(key []byte) ([]byte, error) {
	if s.db == nil {
		return nil, errClosed
	}

	v, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *Store) getJSON(key []byte, dst any) error {
	v, err := s.get(key)
	if err != nil {
		return err
	}
	return json.Unmarshal(v, dst)
}

func (s *Store) setJSON(key []byte, v any) error {
	if s.db == nil {
		return errClosed
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Set(key, data, pebble.Sync)
}

// scan calls fn for every key with the given prefix in key order. The key
// and value slices are only valid for the duration of the call.
func (s *Store) scan(prefix []byte, fn func(k, v []byte) error) error {
	if s.db == nil {
		return errClosed
	}

	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer it.Close()

	for ok := it.First(); ok; ok = it.Next() {
		if err := fn(it.Key(), it.Value()); err != nil {
			return err
		}
	}

	return it.Error()
}

func roomPrefix(roomId string) []byte {
	return []byte(chatPrefix + roomId + ":")
}

// upperBound returns the smallest key greater than every key with prefix.
func upperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
