package stable

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/virpysec/defi-stablecoin/crypto"
	"github.com/virpysec/defi-stablecoin/storage"
)

// engineState is the persistence surface the operation engine mutates. The
// host decides what backs it; StateStore below persists through a key-value
// database, while tests use an in-memory fake.
type engineState interface {
	GetPosition(addr crypto.Address) (*Position, error)
	PutPosition(position *Position) error
	TotalDeposited(asset string) (*big.Int, error)
	PutTotalDeposited(asset string, amount *big.Int) error
}

var (
	positionKeyPrefix = []byte("stable/position/")
	totalKeyPrefix    = []byte("stable/total/")
)

type storedCollateral struct {
	Asset  string
	Amount *big.Int
}

type storedPosition struct {
	Prefix     string
	Raw        []byte
	Collateral []storedCollateral
	Debt       *big.Int
}

// StateStore persists positions and per-asset deposit totals as RLP records
// in a key-value database.
type StateStore struct {
	db storage.Database
}

// NewStateStore binds the store to the provided database.
func NewStateStore(db storage.Database) *StateStore {
	return &StateStore{db: db}
}

// GetPosition loads the stored position for the address. A missing record
// returns (nil, nil) so callers can treat absence as the zero position.
func (s *StateStore) GetPosition(addr crypto.Address) (*Position, error) {
	if s == nil || s.db == nil {
		return nil, errNilState
	}
	raw, err := s.db.Get(positionKey(addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedPosition
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("stable state: decode position: %w", err)
	}
	if len(stored.Raw) != 20 {
		return nil, fmt.Errorf("stable state: decode position: address is %d bytes, want 20", len(stored.Raw))
	}
	position := &Position{
		Account:    crypto.NewAddress(crypto.AddressPrefix(stored.Prefix), stored.Raw),
		Collateral: make(map[string]*big.Int, len(stored.Collateral)),
		Debt:       stored.Debt,
	}
	if position.Debt == nil {
		position.Debt = big.NewInt(0)
	}
	for _, entry := range stored.Collateral {
		if entry.Amount != nil {
			position.Collateral[entry.Asset] = entry.Amount
		}
	}
	return position, nil
}

// PutPosition writes the position, normalising nil amounts to zero. The
// collateral entries are stored sorted so encodings are deterministic.
func (s *StateStore) PutPosition(position *Position) error {
	if s == nil || s.db == nil {
		return errNilState
	}
	if position == nil {
		return fmt.Errorf("stable state: position must not be nil")
	}
	stored := storedPosition{
		Prefix: string(position.Account.Prefix()),
		Raw:    position.Account.Bytes(),
		Debt:   position.Debt,
	}
	if stored.Debt == nil {
		stored.Debt = big.NewInt(0)
	}
	assets := make([]string, 0, len(position.Collateral))
	for asset := range position.Collateral {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	for _, asset := range assets {
		amount := position.Collateral[asset]
		if amount == nil {
			amount = big.NewInt(0)
		}
		stored.Collateral = append(stored.Collateral, storedCollateral{Asset: asset, Amount: amount})
	}
	encoded, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return fmt.Errorf("stable state: encode position: %w", err)
	}
	return s.db.Put(positionKey(position.Account), encoded)
}

// TotalDeposited returns the aggregate deposited amount for the asset,
// defaulting to zero when nothing has been recorded.
func (s *StateStore) TotalDeposited(asset string) (*big.Int, error) {
	if s == nil || s.db == nil {
		return nil, errNilState
	}
	raw, err := s.db.Get(totalKey(asset))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	total := new(big.Int)
	if err := rlp.DecodeBytes(raw, total); err != nil {
		return nil, fmt.Errorf("stable state: decode total: %w", err)
	}
	return total, nil
}

// PutTotalDeposited records the aggregate deposited amount for the asset.
func (s *StateStore) PutTotalDeposited(asset string, amount *big.Int) error {
	if s == nil || s.db == nil {
		return errNilState
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	encoded, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return fmt.Errorf("stable state: encode total: %w", err)
	}
	return s.db.Put(totalKey(asset), encoded)
}

func positionKey(addr crypto.Address) []byte {
	key := append([]byte(nil), positionKeyPrefix...)
	key = append(key, string(addr.Prefix())...)
	key = append(key, '/')
	return append(key, addr.Bytes()...)
}

func totalKey(asset string) []byte {
	key := append([]byte(nil), totalKeyPrefix...)
	return append(key, canonicalAsset(asset)...)
}
