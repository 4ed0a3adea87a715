package stable

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	errNilState                = errors.New("stable engine: state not configured")
	ErrInvalidAmount           = errors.New("stable engine: amount must be positive")
	ErrUnsupportedAsset        = errors.New("stable engine: unsupported collateral asset")
	ErrAssetFeedMismatch       = errors.New("stable engine: asset and feed counts differ")
	ErrAssetLedgerMissing      = errors.New("stable engine: collateral ledger not configured")
	ErrInsufficientCollateral  = errors.New("stable engine: insufficient collateral")
	ErrInsufficientDebt        = errors.New("stable engine: burn exceeds outstanding debt")
	ErrTransferFailed          = errors.New("stable engine: collateral transfer failed")
	ErrMintFailed              = errors.New("stable engine: stable token mint failed")
	ErrBurnFailed              = errors.New("stable engine: stable token burn failed")
	ErrPositionHealthy         = errors.New("stable engine: position health factor above minimum")
	ErrHealthFactorNotImproved = errors.New("stable engine: liquidation did not improve health factor")
)

// HealthFactorError reports that an operation would leave (or found) a
// position below the minimum health factor. The offending value is attached
// so callers and logs can show how far the position drifted.
type HealthFactorError struct {
	HealthFactor *big.Int
}

func (e *HealthFactorError) Error() string {
	if e == nil || e.HealthFactor == nil {
		return "stable engine: health factor below minimum"
	}
	return fmt.Sprintf("stable engine: health factor %s below minimum %s", e.HealthFactor, minHealthFactor)
}
