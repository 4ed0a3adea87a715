package events

import (
	"math/big"

	"github.com/virpysec/defi-stablecoin/crypto"
)

const (
	// TypeCollateralDeposited is emitted when collateral lands in custody.
	TypeCollateralDeposited = "stable.collateral.deposited"
	// TypeCollateralRedeemed is emitted when collateral leaves custody.
	TypeCollateralRedeemed = "stable.collateral.redeemed"
	// TypeStableMinted is emitted when new stable units are issued.
	TypeStableMinted = "stable.minted"
	// TypeStableBurned is emitted when debt is repaid and supply retired.
	TypeStableBurned = "stable.burned"
	// TypePositionLiquidated is emitted when a third party closes an
	// unhealthy position.
	TypePositionLiquidated = "stable.position.liquidated"
)

type CollateralDeposited struct {
	Account crypto.Address
	Asset   string
	Amount  *big.Int
}

func (CollateralDeposited) EventType() string { return TypeCollateralDeposited }

func (e CollateralDeposited) Attributes() map[string]string {
	return map[string]string{
		"account": e.Account.String(),
		"asset":   e.Asset,
		"amount":  amountString(e.Amount),
	}
}

type CollateralRedeemed struct {
	Account   crypto.Address
	Recipient crypto.Address
	Asset     string
	Amount    *big.Int
}

func (CollateralRedeemed) EventType() string { return TypeCollateralRedeemed }

func (e CollateralRedeemed) Attributes() map[string]string {
	return map[string]string{
		"account":   e.Account.String(),
		"recipient": e.Recipient.String(),
		"asset":     e.Asset,
		"amount":    amountString(e.Amount),
	}
}

type StableMinted struct {
	Account crypto.Address
	Amount  *big.Int
}

func (StableMinted) EventType() string { return TypeStableMinted }

func (e StableMinted) Attributes() map[string]string {
	return map[string]string{
		"account": e.Account.String(),
		"amount":  amountString(e.Amount),
	}
}

type StableBurned struct {
	Account crypto.Address
	Payer   crypto.Address
	Amount  *big.Int
}

func (StableBurned) EventType() string { return TypeStableBurned }

func (e StableBurned) Attributes() map[string]string {
	return map[string]string{
		"account": e.Account.String(),
		"payer":   e.Payer.String(),
		"amount":  amountString(e.Amount),
	}
}

type PositionLiquidated struct {
	Account    crypto.Address
	Liquidator crypto.Address
	Asset      string
	DebtCover  *big.Int
	Seized     *big.Int
}

func (PositionLiquidated) EventType() string { return TypePositionLiquidated }

func (e PositionLiquidated) Attributes() map[string]string {
	return map[string]string{
		"account":    e.Account.String(),
		"liquidator": e.Liquidator.String(),
		"asset":      e.Asset,
		"debtCover":  amountString(e.DebtCover),
		"seized":     amountString(e.Seized),
	}
}

func amountString(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}
