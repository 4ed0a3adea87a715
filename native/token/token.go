package token

import (
	"errors"
	"math/big"
	"sync"

	"github.com/virpysec/defi-stablecoin/crypto"
)

var (
	ErrInvalidAmount         = errors.New("token: amount must be positive")
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrUnauthorized          = errors.New("token: caller is not the mint authority")
	ErrZeroAddress           = errors.New("token: zero address")
)

// Token is an in-process fungible balance ledger. It serves both the pegged
// stable token and the collateral assets locked against it. Mint and Burn are
// gated behind a single authority address; the authority is handed to the
// operation engine once at wiring time so no other caller can expand supply.
type Token struct {
	mu         sync.RWMutex
	symbol     string
	decimals   uint8
	authority  crypto.Address
	total      *big.Int
	balances   map[string]*big.Int
	allowances map[string]map[string]*big.Int
}

// New constructs an empty ledger. The deployer address holds the mint
// authority until TransferAuthority hands it over.
func New(symbol string, decimals uint8, authority crypto.Address) *Token {
	return &Token{
		symbol:     symbol,
		decimals:   decimals,
		authority:  authority,
		total:      big.NewInt(0),
		balances:   make(map[string]*big.Int),
		allowances: make(map[string]map[string]*big.Int),
	}
}

func (t *Token) Symbol() string  { return t.symbol }
func (t *Token) Decimals() uint8 { return t.decimals }

// Authority returns the address currently allowed to mint and burn.
func (t *Token) Authority() crypto.Address {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.authority
}

// TransferAuthority moves the mint/burn capability to the next holder. Only
// the current authority may invoke it; this is the deployment-time ownership
// handover from deployer to engine.
func (t *Token) TransferAuthority(caller, next crypto.Address) error {
	if next.IsZero() {
		return ErrZeroAddress
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !caller.Equal(t.authority) {
		return ErrUnauthorized
	}
	t.authority = next
	return nil
}

func (t *Token) TotalSupply() *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(big.Int).Set(t.total)
}

func (t *Token) BalanceOf(addr crypto.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(big.Int).Set(t.balance(addr))
}

// Mint credits freshly issued units to the recipient. Restricted to the
// authority address.
func (t *Token) Mint(caller, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if to.IsZero() {
		return ErrZeroAddress
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !caller.Equal(t.authority) {
		return ErrUnauthorized
	}
	t.setBalance(to, new(big.Int).Add(t.balance(to), amount))
	t.total = new(big.Int).Add(t.total, amount)
	return nil
}

// Burn destroys units held by the caller. Restricted to the authority
// address; the engine burns repaid debt out of its own custody balance.
func (t *Token) Burn(caller crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !caller.Equal(t.authority) {
		return ErrUnauthorized
	}
	balance := t.balance(caller)
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	t.setBalance(caller, new(big.Int).Sub(balance, amount))
	t.total = new(big.Int).Sub(t.total, amount)
	return nil
}

// Transfer moves units between accounts. Failure leaves both balances
// untouched.
func (t *Token) Transfer(from, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if to.IsZero() {
		return ErrZeroAddress
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(from, to, amount)
}

// Approve grants the spender permission to move up to amount on behalf of
// the owner. A fresh approval replaces any prior allowance.
func (t *Token) Approve(owner, spender crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if spender.IsZero() {
		return ErrZeroAddress
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	grants, ok := t.allowances[key(owner)]
	if !ok {
		grants = make(map[string]*big.Int)
		t.allowances[key(owner)] = grants
	}
	grants[key(spender)] = new(big.Int).Set(amount)
	return nil
}

func (t *Token) Allowance(owner, spender crypto.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if grants, ok := t.allowances[key(owner)]; ok {
		if amount, ok := grants[key(spender)]; ok {
			return new(big.Int).Set(amount)
		}
	}
	return big.NewInt(0)
}

// TransferFrom spends the caller's allowance to move units from the owner to
// the recipient. The allowance is decremented only when the transfer
// succeeds.
func (t *Token) TransferFrom(caller, from, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if to.IsZero() {
		return ErrZeroAddress
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	grants, ok := t.allowances[key(from)]
	if !ok {
		return ErrInsufficientAllowance
	}
	allowed, ok := grants[key(caller)]
	if !ok || allowed.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := t.move(from, to, amount); err != nil {
		return err
	}
	grants[key(caller)] = new(big.Int).Sub(allowed, amount)
	return nil
}

func (t *Token) move(from, to crypto.Address, amount *big.Int) error {
	balance := t.balance(from)
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	t.setBalance(from, new(big.Int).Sub(balance, amount))
	t.setBalance(to, new(big.Int).Add(t.balance(to), amount))
	return nil
}

func (t *Token) balance(addr crypto.Address) *big.Int {
	if existing, ok := t.balances[key(addr)]; ok {
		return existing
	}
	return big.NewInt(0)
}

func (t *Token) setBalance(addr crypto.Address, amount *big.Int) {
	t.balances[key(addr)] = amount
}

func key(addr crypto.Address) string {
	return string(addr.Prefix()) + "/" + string(addr.Bytes())
}
