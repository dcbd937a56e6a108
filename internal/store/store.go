// Package store implements the node replica: a flat string->string map
// mirrored by a sparse Merkle tree over SHA256(key)->SHA256(value), so two
// replicas agree iff their 32-byte roots match.
package store

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/decub/kvgossip/internal/merkle"
)

// Store holds one replica's state. The zero value is not ready for use; call
// New.
type Store struct {
	data map[string]string
	tree *merkle.Tree
}

// New returns an empty store.
func New() *Store {
	return &Store{
		data: make(map[string]string),
		tree: merkle.New(),
	}
}

// Execute dispatches cmd to its handler. Either the whole command is applied
// and the root reflects it, or it returns an error with no observable
// mutation.
func (s *Store) Execute(cmd Command) (Result, error) {
	switch c := cmd.(type) {
	case DelCommand:
		count, err := s.del(c.Keys)
		if err != nil {
			return nil, err
		}
		return DelResult{Count: count}, nil
	case ExistsCommand:
		return ExistsResult{Count: s.exists(c.Keys)}, nil
	case GetCommand:
		return GetResult{Value: s.get(c.Key)}, nil
	case KeysCommand:
		keys, err := s.keys(c.Pattern)
		if err != nil {
			return nil, err
		}
		return KeysResult{Keys: keys}, nil
	case SetCommand:
		ok, err := s.set(c.Key, c.Value)
		if err != nil {
			return nil, err
		}
		return SetResult{OK: ok}, nil
	default:
		return nil, treeErr(fmt.Sprintf("unrecognized command type %T", cmd))
	}
}

func (s *Store) del(keys []string) (int, error) {
	removed := 0
	for _, key := range keys {
		if _, ok := s.data[key]; !ok {
			continue
		}
		delete(s.data, key)
		s.tree.Remove(merkle.SHA256([]byte(key)))
		removed++
	}
	return removed, nil
}

func (s *Store) exists(keys []string) int {
	count := 0
	for _, key := range keys {
		if _, ok := s.data[key]; ok {
			count++
		}
	}
	return count
}

func (s *Store) get(key string) *string {
	v, ok := s.data[key]
	if !ok {
		return nil
	}
	return &v
}

func (s *Store) keys(pattern string) ([]string, error) {
	if pattern == "*" {
		out := make([]string, 0, len(s.data))
		for k := range s.data {
			out = append(out, k)
		}
		return out, nil
	}

	regexPattern := "^" + strings.ReplaceAll(pattern, "*", ".*") + "$"
	re, err := regexp.Compile(regexPattern)
	if err != nil {
		return nil, regexErr(err)
	}

	out := make([]string, 0)
	for k := range s.data {
		if re.MatchString(k) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *Store) set(key, value string) (bool, error) {
	s.data[key] = value
	s.tree.Upsert(merkle.SHA256([]byte(key)), merkle.SHA256([]byte(value)))
	return true, nil
}

// RevealRoot returns a copy of the current Merkle root, or nil if the store
// is empty.
func (s *Store) RevealRoot() *merkle.Hash {
	return s.tree.Root()
}

// GetMainStore returns a deep copy of the flat map, used to build a
// RepairResponse.
func (s *Store) GetMainStore() map[string]string {
	out := make(map[string]string, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// UpdateFullStore replaces the flat map with main and rebuilds the tree from
// scratch. The resulting root is guaranteed equal to any other store that
// applied the same map, regardless of how each store arrived there.
func (s *Store) UpdateFullStore(main map[string]string) error {
	s.data = make(map[string]string, len(main))
	s.tree.Reset()
	for k, v := range main {
		if _, err := s.set(k, v); err != nil {
			return err
		}
	}
	return nil
}
