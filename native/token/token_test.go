package token

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/virpysec/defi-stablecoin/crypto"
)

func makeAddress(prefix crypto.AddressPrefix, seed byte) crypto.Address {
	raw := make([]byte, 20)
	raw[19] = seed
	return crypto.NewAddress(prefix, raw)
}

func TestMintRequiresAuthority(t *testing.T) {
	deployer := makeAddress(crypto.AccountPrefix, 0x01)
	engine := makeAddress(crypto.ModulePrefix, 0x02)
	user := makeAddress(crypto.AccountPrefix, 0x03)

	tok := New("DSC", 18, deployer)

	require.ErrorIs(t, tok.Mint(engine, user, big.NewInt(100)), ErrUnauthorized)
	require.NoError(t, tok.Mint(deployer, user, big.NewInt(100)))
	require.Equal(t, 0, tok.BalanceOf(user).Cmp(big.NewInt(100)))
	require.Equal(t, 0, tok.TotalSupply().Cmp(big.NewInt(100)))
}

func TestTransferAuthorityHandover(t *testing.T) {
	deployer := makeAddress(crypto.AccountPrefix, 0x01)
	engine := makeAddress(crypto.ModulePrefix, 0x02)
	user := makeAddress(crypto.AccountPrefix, 0x03)

	tok := New("DSC", 18, deployer)
	require.NoError(t, tok.TransferAuthority(deployer, engine))

	// The old authority has lost the capability.
	require.ErrorIs(t, tok.Mint(deployer, user, big.NewInt(1)), ErrUnauthorized)
	require.NoError(t, tok.Mint(engine, user, big.NewInt(1)))

	require.ErrorIs(t, tok.TransferAuthority(deployer, deployer), ErrUnauthorized)
}

func TestBurnScopedToAuthorityBalance(t *testing.T) {
	engine := makeAddress(crypto.ModulePrefix, 0x02)
	user := makeAddress(crypto.AccountPrefix, 0x03)

	tok := New("DSC", 18, engine)
	require.NoError(t, tok.Mint(engine, engine, big.NewInt(50)))

	require.ErrorIs(t, tok.Burn(user, big.NewInt(10)), ErrUnauthorized)
	require.ErrorIs(t, tok.Burn(engine, big.NewInt(60)), ErrInsufficientBalance)
	require.NoError(t, tok.Burn(engine, big.NewInt(50)))
	require.Equal(t, 0, tok.TotalSupply().Sign())
}

func TestTransferFromSpendsAllowance(t *testing.T) {
	authority := makeAddress(crypto.ModulePrefix, 0x01)
	owner := makeAddress(crypto.AccountPrefix, 0x02)
	spender := makeAddress(crypto.ModulePrefix, 0x03)
	recipient := makeAddress(crypto.AccountPrefix, 0x04)

	tok := New("WETH", 18, authority)
	require.NoError(t, tok.Mint(authority, owner, big.NewInt(1000)))

	require.ErrorIs(t, tok.TransferFrom(spender, owner, recipient, big.NewInt(100)), ErrInsufficientAllowance)

	require.NoError(t, tok.Approve(owner, spender, big.NewInt(400)))
	require.NoError(t, tok.TransferFrom(spender, owner, recipient, big.NewInt(100)))
	require.Equal(t, 0, tok.Allowance(owner, spender).Cmp(big.NewInt(300)))
	require.Equal(t, 0, tok.BalanceOf(recipient).Cmp(big.NewInt(100)))

	// Balance failures leave the allowance untouched.
	require.NoError(t, tok.Approve(owner, spender, big.NewInt(2000)))
	require.ErrorIs(t, tok.TransferFrom(spender, owner, recipient, big.NewInt(901)), ErrInsufficientBalance)
	require.Equal(t, 0, tok.Allowance(owner, spender).Cmp(big.NewInt(2000)))
}

func TestTransferRejectsInvalidInputs(t *testing.T) {
	authority := makeAddress(crypto.ModulePrefix, 0x01)
	owner := makeAddress(crypto.AccountPrefix, 0x02)
	recipient := makeAddress(crypto.AccountPrefix, 0x03)

	tok := New("WBTC", 8, authority)
	require.NoError(t, tok.Mint(authority, owner, big.NewInt(10)))

	require.ErrorIs(t, tok.Transfer(owner, recipient, big.NewInt(0)), ErrInvalidAmount)
	require.ErrorIs(t, tok.Transfer(owner, recipient, nil), ErrInvalidAmount)
	require.ErrorIs(t, tok.Transfer(owner, crypto.Address{}, big.NewInt(1)), ErrZeroAddress)
	require.ErrorIs(t, tok.Transfer(owner, recipient, big.NewInt(11)), ErrInsufficientBalance)
	require.Equal(t, 0, tok.BalanceOf(owner).Cmp(big.NewInt(10)))
}
