package staking

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"stakevault/core/types"
	"stakevault/crypto"
	"stakevault/native/staking"
	"stakevault/storage"
)

const (
	keyPool    = "staking/pool"
	keyStakers = "staking/stakers"

	prefixPositions  = "staking/pos/"
	prefixMultiplier = "staking/mult/"
	prefixClaimed    = "staking/claimed/"
	prefixAccount    = "bank/acct/"
)

// Store persists the staking engine state and the bank accounts in a
// key-value database. Records are JSON encoded to align with the event and
// RPC payload formats.
//
// BeginWrite opens a buffered scope: puts land in the staged overlay, reads
// see staged entries first, and CommitWrite flushes everything in one atomic
// database batch. Outside a scope every put writes through immediately.
type Store struct {
	db storage.Database

	mu     sync.RWMutex
	staged map[string][]byte
}

// NewStore wraps the supplied database.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

// BeginWrite opens a buffered write scope. Scopes do not nest; a second
// BeginWrite discards anything the first one staged.
func (s *Store) BeginWrite() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = make(map[string][]byte)
}

// CommitWrite flushes the staged entries as a single atomic batch and closes
// the scope. Without an open scope it is a no-op.
func (s *Store) CommitWrite() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staged == nil {
		return nil
	}
	batch := new(storage.Batch)
	for key, value := range s.staged {
		batch.Put([]byte(key), value)
	}
	s.staged = nil
	if batch.Len() == 0 {
		return nil
	}
	return s.db.Write(batch)
}

// DiscardWrite drops the staged entries and closes the scope.
func (s *Store) DiscardWrite() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = nil
}

func addrSuffix(addr crypto.Address) string {
	return addr.String()
}

func (s *Store) get(key string, out interface{}) (bool, error) {
	s.mu.RLock()
	raw, ok := s.staged[key]
	s.mu.RUnlock()
	if !ok {
		var err error
		raw, err = s.db.Get([]byte(key))
		if errors.Is(err, storage.ErrKeyNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) put(key string, value interface{}) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staged != nil {
		s.staged[key] = encoded
		return nil
	}
	return s.db.Put([]byte(key), encoded)
}

// GetPool loads the global pool record, or nil when genesis has not run.
func (s *Store) GetPool() (*staking.Pool, error) {
	pool := &staking.Pool{}
	ok, err := s.get(keyPool, pool)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return pool, nil
}

// PutPool persists the global pool record.
func (s *Store) PutPool(pool *staking.Pool) error {
	return s.put(keyPool, pool)
}

// GetPositions loads the owner's position list, empty when none exist.
func (s *Store) GetPositions(owner crypto.Address) ([]*staking.Position, error) {
	var positions []*staking.Position
	if _, err := s.get(prefixPositions+addrSuffix(owner), &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

// PutPositions persists the owner's full position list.
func (s *Store) PutPositions(owner crypto.Address, positions []*staking.Position) error {
	return s.put(prefixPositions+addrSuffix(owner), positions)
}

// GetPersonalMultiplier returns the stored override, nil when unset.
func (s *Store) GetPersonalMultiplier(owner crypto.Address) (*big.Int, error) {
	var encoded string
	ok, err := s.get(prefixMultiplier+addrSuffix(owner), &encoded)
	if err != nil || !ok {
		return nil, err
	}
	value, valid := new(big.Int).SetString(encoded, 10)
	if !valid {
		return nil, fmt.Errorf("state: corrupt multiplier for %s", owner.String())
	}
	return value, nil
}

// PutPersonalMultiplier stores the override.
func (s *Store) PutPersonalMultiplier(owner crypto.Address, value *big.Int) error {
	if value == nil {
		return fmt.Errorf("state: nil multiplier for %s", owner.String())
	}
	return s.put(prefixMultiplier+addrSuffix(owner), value.String())
}

// RewardsClaimed returns the cumulative rewards paid to the owner.
func (s *Store) RewardsClaimed(owner crypto.Address) (*big.Int, error) {
	var encoded string
	ok, err := s.get(prefixClaimed+addrSuffix(owner), &encoded)
	if err != nil || !ok {
		return nil, err
	}
	value, valid := new(big.Int).SetString(encoded, 10)
	if !valid {
		return nil, fmt.Errorf("state: corrupt claimed total for %s", owner.String())
	}
	return value, nil
}

// PutRewardsClaimed stores the cumulative rewards paid to the owner.
func (s *Store) PutRewardsClaimed(owner crypto.Address, total *big.Int) error {
	if total == nil {
		total = big.NewInt(0)
	}
	return s.put(prefixClaimed+addrSuffix(owner), total.String())
}

// Stakers returns every identity that has ever opened a position, in
// registration order.
func (s *Store) Stakers() ([]crypto.Address, error) {
	var encoded []string
	if _, err := s.get(keyStakers, &encoded); err != nil {
		return nil, err
	}
	stakers := make([]crypto.Address, 0, len(encoded))
	for _, entry := range encoded {
		addr, err := crypto.DecodeAddress(entry)
		if err != nil {
			return nil, fmt.Errorf("state: corrupt staker registry entry %q: %w", entry, err)
		}
		stakers = append(stakers, addr)
	}
	return stakers, nil
}

// AppendStaker registers a new identity. Callers are expected to check
// IsStaker first; the registry is append-only.
func (s *Store) AppendStaker(owner crypto.Address) error {
	var encoded []string
	if _, err := s.get(keyStakers, &encoded); err != nil {
		return err
	}
	encoded = append(encoded, addrSuffix(owner))
	return s.put(keyStakers, encoded)
}

// IsStaker reports whether the identity is already registered.
func (s *Store) IsStaker(owner crypto.Address) (bool, error) {
	target := addrSuffix(owner)
	var encoded []string
	if _, err := s.get(keyStakers, &encoded); err != nil {
		return false, err
	}
	for _, entry := range encoded {
		if entry == target {
			return true, nil
		}
	}
	return false, nil
}

// GetAccount loads a bank account, nil when the address has no history.
func (s *Store) GetAccount(addr crypto.Address) (*types.Account, error) {
	account := &types.Account{}
	ok, err := s.get(prefixAccount+addrSuffix(addr), account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return account, nil
}

// PutAccount persists a bank account.
func (s *Store) PutAccount(addr crypto.Address, account *types.Account) error {
	return s.put(prefixAccount+addrSuffix(addr), account)
}
