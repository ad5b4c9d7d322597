package distributed

import (
	"errors"
	"strconv"
	"sync"
)

var (
	ErrWriteConflict = errors.New("distributed: write conflict")
	ErrNotFound      = errors.New("distributed: not found")
)

// Store is a simple key-value store shared between the launcher and the
// workers it started. Keys are written once and read many times.
type Store struct {
	sync.RWMutex

	data map[string][]byte
}

func NewStore() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Create stores a copy of value under name. Writing an existing key is a
// conflict.
func (s *Store) Create(name string, value []byte) error {
	s.Lock()
	defer s.Unlock()
	if _, ok := s.data[name]; ok {
		return ErrWriteConflict
	}
	s.data[name] = append([]byte(nil), value...)
	return nil
}

// Get retrieves a copy of the value stored under name.
func (s *Store) Get(name string) ([]byte, error) {
	s.RLock()
	defer s.RUnlock()
	value, ok := s.data[name]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

// Well-known keys for worker layout metadata.
const (
	keyRank       = "rank"
	keyNumWorkers = "num_workers"
	keyLocalRank  = "local_rank"
)

// StoreCoordinator reads the worker layout out of a Store, so a launcher
// that populated the store can stand in for a full coordinator backend.
type StoreCoordinator struct {
	store *Store
}

func NewStoreCoordinator(store *Store) *StoreCoordinator {
	return &StoreCoordinator{store: store}
}

// PublishLayout writes the layout keys read back by Rank, NumWorkers and
// LocalRank.
func (s *StoreCoordinator) PublishLayout(rank, numWorkers, localRank int) error {
	pairs := map[string]int{
		keyRank:       rank,
		keyNumWorkers: numWorkers,
		keyLocalRank:  localRank,
	}
	for k, v := range pairs {
		if err := s.store.Create(k, []byte(strconv.Itoa(v))); err != nil {
			return err
		}
	}
	return nil
}

func (s *StoreCoordinator) intKey(name string, fallback int) int {
	value, err := s.store.Get(name)
	if err != nil {
		return fallback
	}
	n, err := strconv.Atoi(string(value))
	if err != nil {
		return fallback
	}
	return n
}

func (s *StoreCoordinator) Rank() int       { return s.intKey(keyRank, 0) }
func (s *StoreCoordinator) NumWorkers() int { return s.intKey(keyNumWorkers, 1) }
func (s *StoreCoordinator) LocalRank() int  { return s.intKey(keyLocalRank, 0) }
