package db

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/orderedcode"
	dbm "github.com/tendermint/tm-db"

	"github.com/tonlight/tonlight/light/store"
	"github.com/tonlight/tonlight/types"
)

const (
	prefixTrustedState = int64(11)
	prefixSize         = int64(12)
)

type dbs struct {
	db dbm.DB

	mtx  sync.RWMutex
	size uint16
}

// New returns a Store that wraps any DB
// If you want to share one DB across many light clients consider using PrefixDB
func New(db dbm.DB) store.Store {
	lightStore := &dbs{db: db}

	// retrieve the size of the db
	size := uint16(0)
	bz, err := lightStore.db.Get(lightStore.sizeKey())
	if err == nil && len(bz) > 0 {
		size = unmarshalSize(bz)
	}
	lightStore.size = size

	return lightStore
}

// SaveTrustedState persists ts.
//
// Safe for concurrent use by multiple goroutines.
func (s *dbs) SaveTrustedState(ts *types.TrustedState) error {
	if err := ts.ValidateBasic(); err != nil {
		return err
	}
	bz, err := json.Marshal(ts)
	if err != nil {
		return fmt.Errorf("marshaling trusted state: %w", err)
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	key := s.trustedStateKey(ts.Seqno)
	existing, err := s.db.Has(key)
	if err != nil {
		return err
	}

	b := s.db.NewBatch()
	defer b.Close()
	if err = b.Set(key, bz); err != nil {
		return err
	}
	size := s.size
	if !existing {
		size++
	}
	if err = b.Set(s.sizeKey(), marshalSize(size)); err != nil {
		return err
	}
	if err = b.WriteSync(); err != nil {
		return err
	}
	s.size = size
	return nil
}

// DeleteTrustedState deletes the state stored under seqno.
//
// Safe for concurrent use by multiple goroutines.
func (s *dbs) DeleteTrustedState(seqno uint32) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	key := s.trustedStateKey(seqno)
	existing, err := s.db.Has(key)
	if err != nil {
		return err
	}
	if !existing {
		return store.ErrTrustedStateNotFound
	}

	b := s.db.NewBatch()
	defer b.Close()
	if err = b.Delete(key); err != nil {
		return err
	}
	if err = b.Set(s.sizeKey(), marshalSize(s.size-1)); err != nil {
		return err
	}
	if err = b.WriteSync(); err != nil {
		return err
	}
	s.size--
	return nil
}

// TrustedState retrieves the state stored under seqno.
//
// Safe for concurrent use by multiple goroutines.
func (s *dbs) TrustedState(seqno uint32) (*types.TrustedState, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	bz, err := s.db.Get(s.trustedStateKey(seqno))
	if err != nil {
		return nil, err
	}
	if len(bz) == 0 {
		return nil, store.ErrTrustedStateNotFound
	}
	return unmarshalTrustedState(bz)
}

// LastTrustedState returns the state with the highest seqno.
//
// Safe for concurrent use by multiple goroutines.
func (s *dbs) LastTrustedState() (*types.TrustedState, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	itr, err := s.db.ReverseIterator(s.trustedStateRange())
	if err != nil {
		return nil, err
	}
	defer itr.Close()

	if !itr.Valid() {
		if err := itr.Error(); err != nil {
			return nil, err
		}
		return nil, store.ErrTrustedStateNotFound
	}
	return unmarshalTrustedState(itr.Value())
}

// Prune prunes states from the oldest until size states remain.
//
// Safe for concurrent use by multiple goroutines.
func (s *dbs) Prune(size uint16) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.size <= size {
		return nil
	}

	keys, err := s.oldestKeys(int(s.size - size))
	if err != nil {
		return err
	}

	b := s.db.NewBatch()
	defer b.Close()
	pruned := uint16(len(keys))
	for _, key := range keys {
		if err = b.Delete(key); err != nil {
			return err
		}
	}

	if err = b.Set(s.sizeKey(), marshalSize(s.size-pruned)); err != nil {
		return fmt.Errorf("failed to persist size: %w", err)
	}
	if err = b.WriteSync(); err != nil {
		return err
	}
	s.size -= pruned
	return nil
}

// oldestKeys returns up to n trusted state keys, lowest seqno first. The
// iterator is released before returning so that the caller can write.
func (s *dbs) oldestKeys(n int) ([][]byte, error) {
	itr, err := s.db.Iterator(s.trustedStateRange())
	if err != nil {
		return nil, err
	}
	defer itr.Close()

	var keys [][]byte
	for ; itr.Valid() && len(keys) < n; itr.Next() {
		if _, err := parseTrustedStateKey(itr.Key()); err != nil {
			return nil, err
		}
		keys = append(keys, append([]byte(nil), itr.Key()...))
	}
	return keys, itr.Error()
}

// Size returns the number of states in the store.
//
// Safe for concurrent use by multiple goroutines.
func (s *dbs) Size() uint16 {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.size
}

func (s *dbs) sizeKey() []byte {
	key, err := orderedcode.Append(nil, prefixSize)
	if err != nil {
		panic(err)
	}
	return key
}

func (s *dbs) trustedStateKey(seqno uint32) []byte {
	key, err := orderedcode.Append(nil, prefixTrustedState, int64(seqno))
	if err != nil {
		panic(err)
	}
	return key
}

// trustedStateRange covers every trusted state key: any (prefix, seqno) key
// sorts below the bare key of the next prefix.
func (s *dbs) trustedStateRange() (start, end []byte) {
	start, err := orderedcode.Append(nil, prefixTrustedState)
	if err != nil {
		panic(err)
	}
	end, err = orderedcode.Append(nil, prefixTrustedState+1)
	if err != nil {
		panic(err)
	}
	return start, end
}

func parseTrustedStateKey(key []byte) (uint32, error) {
	var (
		prefix int64
		seqno  int64
	)
	remaining, err := orderedcode.Parse(string(key), &prefix, &seqno)
	if err != nil {
		return 0, err
	}
	if len(remaining) != 0 {
		return 0, fmt.Errorf("expected complete key but got remainder: %x", remaining)
	}
	if prefix != prefixTrustedState {
		return 0, fmt.Errorf("incorrect prefix. Expected %v, got %v", prefixTrustedState, prefix)
	}
	return uint32(seqno), nil
}

func unmarshalTrustedState(bz []byte) (*types.TrustedState, error) {
	ts := new(types.TrustedState)
	if err := json.Unmarshal(bz, ts); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}
	if err := ts.ValidateBasic(); err != nil {
		return nil, err
	}
	return ts, nil
}

func marshalSize(size uint16) []byte {
	bs := make([]byte, 2)
	binary.LittleEndian.PutUint16(bs, size)
	return bs
}

func unmarshalSize(bz []byte) uint16 {
	return binary.LittleEndian.Uint16(bz)
}
