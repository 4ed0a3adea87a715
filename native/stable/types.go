package stable

import (
	"math/big"
	"sort"
	"strings"

	"github.com/virpysec/defi-stablecoin/crypto"
	"github.com/virpysec/defi-stablecoin/native/oracle"
)

// Position captures the collateral and debt bookkeeping for a single
// account. Positions spring into existence on first deposit; zero balances
// are a valid terminal state indistinguishable from "never existed".
type Position struct {
	// Account is the position owner.
	Account crypto.Address
	// Collateral maps asset symbols to deposited amounts in the asset's
	// native decimal scale.
	Collateral map[string]*big.Int
	// Debt is the outstanding stable issuance in the unit-of-account scale.
	Debt *big.Int
}

// CollateralOf returns the deposited amount for the asset, treating absent
// entries as zero.
func (p *Position) CollateralOf(asset string) *big.Int {
	if p == nil || p.Collateral == nil {
		return big.NewInt(0)
	}
	if amount, ok := p.Collateral[asset]; ok && amount != nil {
		return amount
	}
	return big.NewInt(0)
}

// Clone returns a deep copy so engine mutations never leak through shared
// pointers before the operation commits.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := &Position{Account: p.Account, Collateral: make(map[string]*big.Int, len(p.Collateral))}
	for asset, amount := range p.Collateral {
		if amount != nil {
			clone.Collateral[asset] = new(big.Int).Set(amount)
		}
	}
	if p.Debt != nil {
		clone.Debt = new(big.Int).Set(p.Debt)
	} else {
		clone.Debt = big.NewInt(0)
	}
	return clone
}

// Registry is the closed set of supported collateral assets and their price
// sources. It is built once at construction and never mutated afterwards.
type Registry struct {
	feeds map[string]oracle.Feed
	order []string
}

// NewRegistry pairs asset symbols with their price feeds. Construction fails
// when the sequences differ in length, a symbol repeats, or a feed is nil.
func NewRegistry(symbols []string, feeds []oracle.Feed) (*Registry, error) {
	if len(symbols) != len(feeds) {
		return nil, ErrAssetFeedMismatch
	}
	registry := &Registry{feeds: make(map[string]oracle.Feed, len(symbols))}
	for i, symbol := range symbols {
		canonical := strings.ToUpper(strings.TrimSpace(symbol))
		if canonical == "" || feeds[i] == nil {
			return nil, ErrAssetFeedMismatch
		}
		if _, exists := registry.feeds[canonical]; exists {
			return nil, ErrAssetFeedMismatch
		}
		registry.feeds[canonical] = feeds[i]
		registry.order = append(registry.order, canonical)
	}
	sort.Strings(registry.order)
	return registry, nil
}

// IsSupported reports whether the asset belongs to the registry.
func (r *Registry) IsSupported(asset string) bool {
	if r == nil {
		return false
	}
	_, ok := r.feeds[canonicalAsset(asset)]
	return ok
}

// Feed returns the registered price source for the asset.
func (r *Registry) Feed(asset string) (oracle.Feed, error) {
	if r == nil {
		return nil, ErrUnsupportedAsset
	}
	feed, ok := r.feeds[canonicalAsset(asset)]
	if !ok {
		return nil, ErrUnsupportedAsset
	}
	return feed, nil
}

// Assets returns the supported symbols in sorted order.
func (r *Registry) Assets() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.order...)
}

func canonicalAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}
