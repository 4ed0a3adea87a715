package stable

import (
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/virpysec/defi-stablecoin/core/events"
	"github.com/virpysec/defi-stablecoin/crypto"
	nativecommon "github.com/virpysec/defi-stablecoin/native/common"
	"github.com/virpysec/defi-stablecoin/native/oracle"
	"github.com/virpysec/defi-stablecoin/observability"
)

const moduleName = "stable"

// IssuanceLedger is the stable-token surface the engine drives. Mint and
// Burn must be capability-gated so only the engine's custody address may
// invoke them once wiring completes.
type IssuanceLedger interface {
	Mint(caller, to crypto.Address, amount *big.Int) error
	Burn(caller crypto.Address, amount *big.Int) error
	Transfer(from, to crypto.Address, amount *big.Int) error
	TransferFrom(caller, from, to crypto.Address, amount *big.Int) error
	BalanceOf(addr crypto.Address) *big.Int
	TotalSupply() *big.Int
}

// CollateralLedger is the transfer surface consumed per collateral asset.
type CollateralLedger interface {
	Transfer(from, to crypto.Address, amount *big.Int) error
	TransferFrom(caller, from, to crypto.Address, amount *big.Int) error
	BalanceOf(addr crypto.Address) *big.Int
}

// Engine orchestrates the collateral and debt state transitions for the
// stablecoin module. All public mutating entry points hold the engine mutex
// for their full duration so no caller can observe a partially applied
// operation, and every failure path leaves persisted state untouched.
type Engine struct {
	mu          sync.Mutex
	state       engineState
	registry    *Registry
	stableToken IssuanceLedger
	collateral  map[string]CollateralLedger
	custody     crypto.Address
	pauses      nativecommon.PauseView
	logger      *slog.Logger
	emitter     events.Emitter
}

// NewEngine wires the engine to its custody address, the issuance ledger,
// the collateral registry, and one transfer ledger per registered asset.
// Construction fails when a registered asset has no ledger.
func NewEngine(custody crypto.Address, stableToken IssuanceLedger, registry *Registry, collateral map[string]CollateralLedger) (*Engine, error) {
	if registry == nil {
		return nil, ErrAssetFeedMismatch
	}
	ledgers := make(map[string]CollateralLedger, len(collateral))
	for asset, ledger := range collateral {
		ledgers[canonicalAsset(asset)] = ledger
	}
	for _, asset := range registry.Assets() {
		if ledgers[asset] == nil {
			return nil, fmt.Errorf("%w: %s", ErrAssetLedgerMissing, asset)
		}
	}
	return &Engine{
		registry:    registry,
		stableToken: stableToken,
		collateral:  ledgers,
		custody:     custody,
	}, nil
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPauses installs the module pause switchboard.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetLogger attaches a structured logger. A nil logger keeps the engine
// silent.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if e == nil {
		return
	}
	e.logger = logger
}

// SetEmitter attaches an event emitter for downstream subscribers.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	e.emitter = emitter
}

// Custody returns the engine's custody address, which holds deposited
// collateral and the mint/burn capability on the issuance ledger.
func (e *Engine) Custody() crypto.Address { return e.custody }

// DepositCollateral locks collateral for the user inside engine custody.
// Deposits cannot worsen a position, so no health factor check applies.
func (e *Engine) DepositCollateral(user crypto.Address, asset string, amount *big.Int) error {
	err := e.withGuard(func() error {
		return e.depositLocked(user, asset, amount)
	})
	observability.Stable().RecordOperation("deposit_collateral", err)
	return err
}

// MintStable issues new stable units against the user's collateral. The
// health factor is enforced on the projected debt before the issuance ledger
// is touched, so a rejected mint leaves no trace.
func (e *Engine) MintStable(user crypto.Address, amount *big.Int) error {
	err := e.withGuard(func() error {
		return e.mintLocked(user, amount)
	})
	observability.Stable().RecordOperation("mint_stable", err)
	return err
}

// DepositAndMint composes deposit followed by mint as a single atomic
// operation.
func (e *Engine) DepositAndMint(user crypto.Address, asset string, depositAmount, mintAmount *big.Int) error {
	err := e.withGuard(func() error {
		return e.depositAndMintLocked(user, asset, depositAmount, mintAmount)
	})
	observability.Stable().RecordOperation("deposit_and_mint", err)
	return err
}

// RedeemCollateral releases collateral back to the user while ensuring the
// remaining position stays healthy.
func (e *Engine) RedeemCollateral(user crypto.Address, asset string, amount *big.Int) error {
	err := e.withGuard(func() error {
		return e.redeemLocked(user, user, asset, amount, true)
	})
	observability.Stable().RecordOperation("redeem_collateral", err)
	return err
}

// BurnStable retires debt on behalf of a position. The payer funds the burn
// out of their stable balance; the position owner and payer differ during
// liquidation.
func (e *Engine) BurnStable(onBehalfOf, payer crypto.Address, amount *big.Int) error {
	err := e.withGuard(func() error {
		return e.burnLocked(onBehalfOf, payer, amount)
	})
	observability.Stable().RecordOperation("burn_stable", err)
	return err
}

// RedeemForStable composes burn followed by redeem: the debt reduction lands
// first so the redeem health check sees the reduced debt.
func (e *Engine) RedeemForStable(user crypto.Address, asset string, collateralAmount, debtAmount *big.Int) error {
	err := e.withGuard(func() error {
		return e.redeemForStableLocked(user, asset, collateralAmount, debtAmount)
	})
	observability.Stable().RecordOperation("redeem_for_stable", err)
	return err
}

// Liquidate lets a third party repay part of an unhealthy position's debt in
// exchange for a bonus-bearing share of its collateral.
func (e *Engine) Liquidate(liquidator, target crypto.Address, asset string, debtToCover *big.Int) error {
	err := e.withGuard(func() error {
		return e.liquidateLocked(liquidator, target, asset, debtToCover)
	})
	observability.Stable().RecordOperation("liquidate", err)
	return err
}

func (e *Engine) withGuard(op func() error) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return op()
}

func (e *Engine) depositLocked(user crypto.Address, asset string, amount *big.Int) error {
	asset = canonicalAsset(asset)
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	ledger, err := e.ledgerOf(asset)
	if err != nil {
		return err
	}
	position, err := e.ensurePosition(user)
	if err != nil {
		return err
	}
	position.Collateral[asset] = new(big.Int).Add(position.CollateralOf(asset), amount)

	if err := ledger.TransferFrom(e.custody, user, e.custody, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := e.addTotalDeposited(asset, amount); err != nil {
		return err
	}
	if err := e.state.PutPosition(position); err != nil {
		return err
	}
	e.emit(events.CollateralDeposited{Account: user, Asset: asset, Amount: amount})
	e.logDebug("collateral deposited", "account", user.String(), "asset", asset, "amount", amount.String())
	return nil
}

func (e *Engine) mintLocked(user crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	position, err := e.ensurePosition(user)
	if err != nil {
		return err
	}
	position.Debt = new(big.Int).Add(position.Debt, amount)
	if err := e.requireHealthy(position); err != nil {
		return err
	}
	if err := e.stableToken.Mint(e.custody, user, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrMintFailed, err)
	}
	if err := e.state.PutPosition(position); err != nil {
		return err
	}
	e.emit(events.StableMinted{Account: user, Amount: amount})
	e.logInfo("stable minted", "account", user.String(), "amount", amount.String())
	return nil
}

func (e *Engine) depositAndMintLocked(user crypto.Address, asset string, depositAmount, mintAmount *big.Int) error {
	asset = canonicalAsset(asset)
	if depositAmount == nil || depositAmount.Sign() <= 0 || mintAmount == nil || mintAmount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	ledger, err := e.ledgerOf(asset)
	if err != nil {
		return err
	}
	position, err := e.ensurePosition(user)
	if err != nil {
		return err
	}
	position.Collateral[asset] = new(big.Int).Add(position.CollateralOf(asset), depositAmount)
	position.Debt = new(big.Int).Add(position.Debt, mintAmount)
	if err := e.requireHealthy(position); err != nil {
		return err
	}

	if err := ledger.TransferFrom(e.custody, user, e.custody, depositAmount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := e.stableToken.Mint(e.custody, user, mintAmount); err != nil {
		// Hand the pulled collateral back so the failed mint leaves no trace.
		_ = ledger.Transfer(e.custody, user, depositAmount)
		return fmt.Errorf("%w: %v", ErrMintFailed, err)
	}
	if err := e.addTotalDeposited(asset, depositAmount); err != nil {
		return err
	}
	if err := e.state.PutPosition(position); err != nil {
		return err
	}
	e.emit(events.CollateralDeposited{Account: user, Asset: asset, Amount: depositAmount})
	e.emit(events.StableMinted{Account: user, Amount: mintAmount})
	e.logInfo("collateral deposited and stable minted",
		"account", user.String(), "asset", asset,
		"deposit", depositAmount.String(), "minted", mintAmount.String())
	return nil
}

func (e *Engine) redeemLocked(owner, recipient crypto.Address, asset string, amount *big.Int, enforceHealth bool) error {
	asset = canonicalAsset(asset)
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	ledger, err := e.ledgerOf(asset)
	if err != nil {
		return err
	}
	position, err := e.ensurePosition(owner)
	if err != nil {
		return err
	}
	balance := position.CollateralOf(asset)
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientCollateral
	}
	position.Collateral[asset] = new(big.Int).Sub(balance, amount)
	if enforceHealth {
		if err := e.requireHealthy(position); err != nil {
			return err
		}
	}

	if err := ledger.Transfer(e.custody, recipient, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := e.subTotalDeposited(asset, amount); err != nil {
		return err
	}
	if err := e.state.PutPosition(position); err != nil {
		return err
	}
	e.emit(events.CollateralRedeemed{Account: owner, Recipient: recipient, Asset: asset, Amount: amount})
	e.logDebug("collateral redeemed", "account", owner.String(), "recipient", recipient.String(), "asset", asset, "amount", amount.String())
	return nil
}

func (e *Engine) burnLocked(onBehalfOf, payer crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	position, err := e.ensurePosition(onBehalfOf)
	if err != nil {
		return err
	}
	if position.Debt.Cmp(amount) < 0 {
		return ErrInsufficientDebt
	}
	position.Debt = new(big.Int).Sub(position.Debt, amount)
	// Burning debt can only improve health; the check stays as a backstop
	// against bookkeeping errors elsewhere.
	if err := e.requireHealthy(position); err != nil {
		return err
	}

	if err := e.stableToken.TransferFrom(e.custody, payer, e.custody, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := e.stableToken.Burn(e.custody, amount); err != nil {
		_ = e.stableToken.Transfer(e.custody, payer, amount)
		return fmt.Errorf("%w: %v", ErrBurnFailed, err)
	}
	if err := e.state.PutPosition(position); err != nil {
		return err
	}
	e.emit(events.StableBurned{Account: onBehalfOf, Payer: payer, Amount: amount})
	e.logDebug("stable burned", "account", onBehalfOf.String(), "payer", payer.String(), "amount", amount.String())
	return nil
}

func (e *Engine) redeemForStableLocked(user crypto.Address, asset string, collateralAmount, debtAmount *big.Int) error {
	asset = canonicalAsset(asset)
	if collateralAmount == nil || collateralAmount.Sign() <= 0 || debtAmount == nil || debtAmount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	ledger, err := e.ledgerOf(asset)
	if err != nil {
		return err
	}
	position, err := e.ensurePosition(user)
	if err != nil {
		return err
	}
	if position.Debt.Cmp(debtAmount) < 0 {
		return ErrInsufficientDebt
	}
	balance := position.CollateralOf(asset)
	if balance.Cmp(collateralAmount) < 0 {
		return ErrInsufficientCollateral
	}
	// Burn lands before the redeem so the health check sees reduced debt.
	position.Debt = new(big.Int).Sub(position.Debt, debtAmount)
	position.Collateral[asset] = new(big.Int).Sub(balance, collateralAmount)
	if err := e.requireHealthy(position); err != nil {
		return err
	}

	if err := e.stableToken.TransferFrom(e.custody, user, e.custody, debtAmount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := e.stableToken.Burn(e.custody, debtAmount); err != nil {
		_ = e.stableToken.Transfer(e.custody, user, debtAmount)
		return fmt.Errorf("%w: %v", ErrBurnFailed, err)
	}
	if err := ledger.Transfer(e.custody, user, collateralAmount); err != nil {
		_ = e.stableToken.Mint(e.custody, user, debtAmount)
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := e.subTotalDeposited(asset, collateralAmount); err != nil {
		return err
	}
	if err := e.state.PutPosition(position); err != nil {
		return err
	}
	e.emit(events.StableBurned{Account: user, Payer: user, Amount: debtAmount})
	e.emit(events.CollateralRedeemed{Account: user, Recipient: user, Asset: asset, Amount: collateralAmount})
	e.logInfo("stable repaid and collateral redeemed",
		"account", user.String(), "asset", asset,
		"burned", debtAmount.String(), "redeemed", collateralAmount.String())
	return nil
}

func (e *Engine) liquidateLocked(liquidator, target crypto.Address, asset string, debtToCover *big.Int) error {
	asset = canonicalAsset(asset)
	if debtToCover == nil || debtToCover.Sign() <= 0 {
		return ErrInvalidAmount
	}
	ledger, err := e.ledgerOf(asset)
	if err != nil {
		return err
	}
	position, err := e.ensurePosition(target)
	if err != nil {
		return err
	}
	startingHealth, err := e.healthFactorOf(position)
	if err != nil {
		return err
	}
	if startingHealth.Cmp(minHealthFactor) >= 0 {
		return ErrPositionHealthy
	}

	price, err := e.priceOf(asset)
	if err != nil {
		return err
	}
	baseSeizure := TokenAmountFromUsd(price, debtToCover)
	bonus := new(big.Int).Mul(baseSeizure, liquidationBonus)
	bonus.Quo(bonus, liquidationPrecision)
	totalSeizure := new(big.Int).Add(baseSeizure, bonus)

	if position.CollateralOf(asset).Cmp(totalSeizure) < 0 {
		return ErrInsufficientCollateral
	}
	if position.Debt.Cmp(debtToCover) < 0 {
		return ErrInsufficientDebt
	}
	position.Collateral[asset] = new(big.Int).Sub(position.CollateralOf(asset), totalSeizure)
	position.Debt = new(big.Int).Sub(position.Debt, debtToCover)

	endingHealth, err := e.healthFactorOf(position)
	if err != nil {
		return err
	}
	// Guards against degenerate liquidations that seize collateral without
	// net-improving the position, e.g. rounding on tiny debtToCover.
	if endingHealth.Cmp(startingHealth) <= 0 {
		return ErrHealthFactorNotImproved
	}
	liquidatorPosition, err := e.ensurePosition(liquidator)
	if err != nil {
		return err
	}
	if err := e.requireHealthy(liquidatorPosition); err != nil {
		return err
	}

	// Pull the repayment from the liquidator first: it is the only external
	// step that can legitimately fail (balance or allowance), and failing
	// here leaves nothing to unwind.
	if err := e.stableToken.TransferFrom(e.custody, liquidator, e.custody, debtToCover); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := e.stableToken.Burn(e.custody, debtToCover); err != nil {
		_ = e.stableToken.Transfer(e.custody, liquidator, debtToCover)
		return fmt.Errorf("%w: %v", ErrBurnFailed, err)
	}
	if err := ledger.Transfer(e.custody, liquidator, totalSeizure); err != nil {
		_ = e.stableToken.Mint(e.custody, liquidator, debtToCover)
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := e.subTotalDeposited(asset, totalSeizure); err != nil {
		return err
	}
	if err := e.state.PutPosition(position); err != nil {
		return err
	}
	observability.Stable().RecordLiquidation(debtToCover, totalSeizure)
	e.emit(events.PositionLiquidated{
		Account:    target,
		Liquidator: liquidator,
		Asset:      asset,
		DebtCover:  debtToCover,
		Seized:     totalSeizure,
	})
	e.logInfo("position liquidated",
		"account", target.String(), "liquidator", liquidator.String(),
		"asset", asset, "debtCovered", debtToCover.String(), "seized", totalSeizure.String(),
		"startingHealthFactor", startingHealth.String(), "endingHealthFactor", endingHealth.String())
	return nil
}

// --- Query surface ---

// AccountInformation returns the user's outstanding debt and total collateral
// value in the unit of account.
func (e *Engine) AccountInformation(user crypto.Address) (*big.Int, *big.Int, error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	position, err := e.ensurePosition(user)
	if err != nil {
		return nil, nil, err
	}
	value, err := e.collateralValue(position)
	if err != nil {
		return nil, nil, err
	}
	return new(big.Int).Set(position.Debt), value, nil
}

// AccountCollateralValue returns the total unit-of-account value of the
// user's deposited collateral.
func (e *Engine) AccountCollateralValue(user crypto.Address) (*big.Int, error) {
	_, value, err := e.AccountInformation(user)
	return value, err
}

// CollateralBalanceOf returns the user's deposited amount for a single
// asset. Unknown assets and zero-state accounts report zero.
func (e *Engine) CollateralBalanceOf(user crypto.Address, asset string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	position, err := e.ensurePosition(user)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(position.CollateralOf(canonicalAsset(asset))), nil
}

// AccountHealthFactor computes the user's current health factor.
func (e *Engine) AccountHealthFactor(user crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	position, err := e.ensurePosition(user)
	if err != nil {
		return nil, err
	}
	return e.healthFactorOf(position)
}

// Assets returns the supported collateral symbols in sorted order.
func (e *Engine) Assets() []string {
	if e == nil {
		return nil
	}
	return e.registry.Assets()
}

// FeedOf returns the registered price source for the asset.
func (e *Engine) FeedOf(asset string) (oracle.Feed, error) {
	if e == nil {
		return nil, ErrUnsupportedAsset
	}
	return e.registry.Feed(asset)
}

// TotalDeposited returns the aggregate deposited amount for the asset across
// all positions.
func (e *Engine) TotalDeposited(asset string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.TotalDeposited(canonicalAsset(asset))
}

// --- Internals ---

func (e *Engine) ensurePosition(addr crypto.Address) (*Position, error) {
	position, err := e.state.GetPosition(addr)
	if err != nil {
		return nil, err
	}
	if position == nil {
		position = &Position{Account: addr}
	}
	if position.Collateral == nil {
		position.Collateral = make(map[string]*big.Int)
	}
	if position.Debt == nil {
		position.Debt = big.NewInt(0)
	}
	return position, nil
}

func (e *Engine) ledgerOf(asset string) (CollateralLedger, error) {
	if !e.registry.IsSupported(asset) {
		return nil, ErrUnsupportedAsset
	}
	ledger, ok := e.collateral[canonicalAsset(asset)]
	if !ok || ledger == nil {
		return nil, fmt.Errorf("%w: %s", ErrAssetLedgerMissing, asset)
	}
	return ledger, nil
}

func (e *Engine) priceOf(asset string) (*big.Int, error) {
	feed, err := e.registry.Feed(asset)
	if err != nil {
		return nil, err
	}
	round, err := feed.LatestRoundData()
	if err != nil {
		return nil, err
	}
	if round.Answer == nil || round.Answer.Sign() <= 0 {
		return nil, oracle.ErrInvalidPrice
	}
	return round.Answer, nil
}

func (e *Engine) collateralValue(position *Position) (*big.Int, error) {
	total := big.NewInt(0)
	for _, asset := range e.registry.Assets() {
		amount := position.CollateralOf(asset)
		if amount.Sign() == 0 {
			continue
		}
		price, err := e.priceOf(asset)
		if err != nil {
			return nil, err
		}
		total.Add(total, UsdValue(price, amount))
	}
	return total, nil
}

func (e *Engine) healthFactorOf(position *Position) (*big.Int, error) {
	value, err := e.collateralValue(position)
	if err != nil {
		return nil, err
	}
	return HealthFactor(position.Debt, value), nil
}

func (e *Engine) requireHealthy(position *Position) error {
	health, err := e.healthFactorOf(position)
	if err != nil {
		return err
	}
	if health.Cmp(minHealthFactor) < 0 {
		observability.Stable().RecordHealthRejection()
		return &HealthFactorError{HealthFactor: health}
	}
	return nil
}

func (e *Engine) addTotalDeposited(asset string, amount *big.Int) error {
	total, err := e.state.TotalDeposited(asset)
	if err != nil {
		return err
	}
	return e.state.PutTotalDeposited(asset, new(big.Int).Add(total, amount))
}

func (e *Engine) subTotalDeposited(asset string, amount *big.Int) error {
	total, err := e.state.TotalDeposited(asset)
	if err != nil {
		return err
	}
	next := new(big.Int).Sub(total, amount)
	if next.Sign() < 0 {
		next = big.NewInt(0)
	}
	return e.state.PutTotalDeposited(asset, next)
}

func (e *Engine) emit(event events.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(event)
}

func (e *Engine) logInfo(msg string, args ...any) {
	if e == nil || e.logger == nil {
		return
	}
	e.logger.Info(msg, args...)
}

func (e *Engine) logDebug(msg string, args ...any) {
	if e == nil || e.logger == nil {
		return
	}
	e.logger.Debug(msg, args...)
}
