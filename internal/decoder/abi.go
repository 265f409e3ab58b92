package decoder

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Event fragments emitted by cTokens, the Comptroller, the price oracles and
// the jump rate models. AccrueInterest is overloaded: cDAI and later tokens
// also emit cashPrior.
const compoundABIJSON = `[
  {"anonymous": false, "name": "Mint", "type": "event", "inputs": [
    {"indexed": false, "name": "minter", "type": "address"},
    {"indexed": false, "name": "mintAmount", "type": "uint256"},
    {"indexed": false, "name": "mintTokens", "type": "uint256"}]},
  {"anonymous": false, "name": "Redeem", "type": "event", "inputs": [
    {"indexed": false, "name": "redeemer", "type": "address"},
    {"indexed": false, "name": "redeemAmount", "type": "uint256"},
    {"indexed": false, "name": "redeemTokens", "type": "uint256"}]},
  {"anonymous": false, "name": "Borrow", "type": "event", "inputs": [
    {"indexed": false, "name": "borrower", "type": "address"},
    {"indexed": false, "name": "borrowAmount", "type": "uint256"},
    {"indexed": false, "name": "accountBorrows", "type": "uint256"},
    {"indexed": false, "name": "totalBorrows", "type": "uint256"}]},
  {"anonymous": false, "name": "RepayBorrow", "type": "event", "inputs": [
    {"indexed": false, "name": "payer", "type": "address"},
    {"indexed": false, "name": "borrower", "type": "address"},
    {"indexed": false, "name": "repayAmount", "type": "uint256"},
    {"indexed": false, "name": "accountBorrows", "type": "uint256"},
    {"indexed": false, "name": "totalBorrows", "type": "uint256"}]},
  {"anonymous": false, "name": "LiquidateBorrow", "type": "event", "inputs": [
    {"indexed": false, "name": "liquidator", "type": "address"},
    {"indexed": false, "name": "borrower", "type": "address"},
    {"indexed": false, "name": "repayAmount", "type": "uint256"},
    {"indexed": false, "name": "cTokenCollateral", "type": "address"},
    {"indexed": false, "name": "seizeTokens", "type": "uint256"}]},
  {"anonymous": false, "name": "Transfer", "type": "event", "inputs": [
    {"indexed": true, "name": "from", "type": "address"},
    {"indexed": true, "name": "to", "type": "address"},
    {"indexed": false, "name": "amount", "type": "uint256"}]},
  {"anonymous": false, "name": "AccrueInterest", "type": "event", "inputs": [
    {"indexed": false, "name": "interestAccumulated", "type": "uint256"},
    {"indexed": false, "name": "borrowIndex", "type": "uint256"},
    {"indexed": false, "name": "totalBorrows", "type": "uint256"}]},
  {"anonymous": false, "name": "AccrueInterest", "type": "event", "inputs": [
    {"indexed": false, "name": "cashPrior", "type": "uint256"},
    {"indexed": false, "name": "interestAccumulated", "type": "uint256"},
    {"indexed": false, "name": "borrowIndex", "type": "uint256"},
    {"indexed": false, "name": "totalBorrows", "type": "uint256"}]},
  {"anonymous": false, "name": "ReservesAdded", "type": "event", "inputs": [
    {"indexed": false, "name": "benefactor", "type": "address"},
    {"indexed": false, "name": "addAmount", "type": "uint256"},
    {"indexed": false, "name": "newTotalReserves", "type": "uint256"}]},
  {"anonymous": false, "name": "ReservesReduced", "type": "event", "inputs": [
    {"indexed": false, "name": "admin", "type": "address"},
    {"indexed": false, "name": "reduceAmount", "type": "uint256"},
    {"indexed": false, "name": "newTotalReserves", "type": "uint256"}]},
  {"anonymous": false, "name": "NewReserveFactor", "type": "event", "inputs": [
    {"indexed": false, "name": "oldReserveFactorMantissa", "type": "uint256"},
    {"indexed": false, "name": "newReserveFactorMantissa", "type": "uint256"}]},
  {"anonymous": false, "name": "NewComptroller", "type": "event", "inputs": [
    {"indexed": false, "name": "oldComptroller", "type": "address"},
    {"indexed": false, "name": "newComptroller", "type": "address"}]},
  {"anonymous": false, "name": "NewMarketInterestRateModel", "type": "event", "inputs": [
    {"indexed": false, "name": "oldInterestRateModel", "type": "address"},
    {"indexed": false, "name": "newInterestRateModel", "type": "address"}]},
  {"anonymous": false, "name": "NewImplementation", "type": "event", "inputs": [
    {"indexed": false, "name": "oldImplementation", "type": "address"},
    {"indexed": false, "name": "newImplementation", "type": "address"}]},
  {"anonymous": false, "name": "MarketListed", "type": "event", "inputs": [
    {"indexed": false, "name": "cToken", "type": "address"}]},
  {"anonymous": false, "name": "MarketEntered", "type": "event", "inputs": [
    {"indexed": false, "name": "cToken", "type": "address"},
    {"indexed": false, "name": "account", "type": "address"}]},
  {"anonymous": false, "name": "MarketExited", "type": "event", "inputs": [
    {"indexed": false, "name": "cToken", "type": "address"},
    {"indexed": false, "name": "account", "type": "address"}]},
  {"anonymous": false, "name": "NewCloseFactor", "type": "event", "inputs": [
    {"indexed": false, "name": "oldCloseFactorMantissa", "type": "uint256"},
    {"indexed": false, "name": "newCloseFactorMantissa", "type": "uint256"}]},
  {"anonymous": false, "name": "NewCollateralFactor", "type": "event", "inputs": [
    {"indexed": false, "name": "cToken", "type": "address"},
    {"indexed": false, "name": "oldCollateralFactorMantissa", "type": "uint256"},
    {"indexed": false, "name": "newCollateralFactorMantissa", "type": "uint256"}]},
  {"anonymous": false, "name": "NewPriceOracle", "type": "event", "inputs": [
    {"indexed": false, "name": "oldPriceOracle", "type": "address"},
    {"indexed": false, "name": "newPriceOracle", "type": "address"}]},
  {"anonymous": false, "name": "PricePosted", "type": "event", "inputs": [
    {"indexed": false, "name": "asset", "type": "address"},
    {"indexed": false, "name": "previousPriceMantissa", "type": "uint256"},
    {"indexed": false, "name": "requestedPriceMantissa", "type": "uint256"},
    {"indexed": false, "name": "newPriceMantissa", "type": "uint256"}]},
  {"anonymous": false, "name": "PriceUpdated", "type": "event", "inputs": [
    {"indexed": false, "name": "symbol", "type": "string"},
    {"indexed": false, "name": "price", "type": "uint256"}]},
  {"anonymous": false, "name": "NewInterestParams", "type": "event", "inputs": [
    {"indexed": false, "name": "baseRatePerBlock", "type": "uint256"},
    {"indexed": false, "name": "multiplierPerBlock", "type": "uint256"},
    {"indexed": false, "name": "jumpMultiplierPerBlock", "type": "uint256"},
    {"indexed": false, "name": "kink", "type": "uint256"}]}
]`

var (
	compoundABI     abi.ABI
	compoundABIOnce sync.Once
	compoundABIErr  error
)

// CompoundABI returns the parsed Compound event ABI.
func CompoundABI() (abi.ABI, error) {
	compoundABIOnce.Do(func() {
		compoundABI, compoundABIErr = abi.JSON(strings.NewReader(compoundABIJSON))
	})
	return compoundABI, compoundABIErr
}
