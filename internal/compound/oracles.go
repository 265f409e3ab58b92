package compound

import (
	"errors"
	"fmt"
	"math/big"

	"lendingScope/internal/num"
	"lendingScope/internal/oracle"
)

const (
	USDCOracleKey     = "0x0000000000000000000000000000000000000001"
	DAIOracleKey      = "0x0000000000000000000000000000000000000002"
	MakerUSDOracleKey = "0x89d24a6b4ccb1b6faa2625fe562bdd9a23260359"

	UniswapAnchorViewAddress = "0x9b8eb8b3d6e2e0db36f41455185fef7049a35cae"
)

var (
	ethBaseUnit = num.Pow10(18)
	scale12     = num.Pow10(12)
	lowerBand   = num.MustParse("950000000000000000")
	upperBand   = num.MustParse("1050000000000000000")

	errETHPriceNotSet = errors.New("eth price not set, cannot convert to dollars")
)

func priceV1(r oracle.Resolution, cToken string) (*big.Int, error) {
	m, ok := MarketByAddress(cToken)
	if !ok || !r.IsListed(cToken) {
		return new(big.Int), nil
	}
	return r.Price(m.UnderlyingAddress), nil
}

func priceV11(r oracle.Resolution, cToken string) (*big.Int, error) {
	if isToken(cToken, "ETH") {
		return new(big.Int).Set(ethBaseUnit), nil
	}
	return priceV1(r, cToken)
}

func priceV12(r oracle.Resolution, cToken string) (*big.Int, error) {
	if isToken(cToken, "USDC") {
		return r.Price(USDCOracleKey), nil
	}
	return priceV11(r, cToken)
}

func priceV13(r oracle.Resolution, cToken string) (*big.Int, error) {
	switch {
	case isToken(cToken, "ETH"):
		return new(big.Int).Set(ethBaseUnit), nil
	case isToken(cToken, "USDC"):
		return new(big.Int).Mul(r.Price(MakerUSDOracleKey), scale12), nil
	case isToken(cToken, "SAI"):
		return clampedDAIPrice(r)
	}
	return priceV1(r, cToken)
}

func priceV14(r oracle.Resolution, cToken string) (*big.Int, error) {
	if isToken(cToken, "DAI") || isToken(cToken, "SAI") {
		return clampedDAIPrice(r)
	}
	return priceV13(r, cToken)
}

// clampedDAIPrice scales the maker price by the posted DAI/USDC ratio,
// bounded to [0.95, 1.05].
func clampedDAIPrice(r oracle.Resolution) (*big.Int, error) {
	maker := r.Price(MakerUSDOracleKey)
	usdc := r.Price(USDCOracleKey)
	if usdc.Sign() == 0 {
		return nil, fmt.Errorf("dai price: usdc price not set")
	}
	dai := new(big.Int).Mul(r.Price(DAIOracleKey), scale12)
	ratio := num.MulDiv(dai, ethBaseUnit, usdc)
	switch {
	case ratio.Cmp(lowerBand) < 0:
		ratio = lowerBand
	case ratio.Cmp(upperBand) > 0:
		ratio = upperBand
	}
	return num.MulDiv(maker, ratio, ethBaseUnit), nil
}

func priceV15(r oracle.Resolution, cToken string) (*big.Int, error) {
	switch {
	case isToken(cToken, "ETH"):
		return new(big.Int).Set(ethBaseUnit), nil
	case isToken(cToken, "USDC"):
		return r.Price(USDCOracleKey), nil
	case isToken(cToken, "DAI"):
		return r.Price(DAIOracleKey), nil
	case isToken(cToken, "SAI"):
		if sai := r.Oracle.SaiPrice; sai != nil && sai.Sign() > 0 {
			return new(big.Int).Set(sai), nil
		}
		return r.Price(DAIOracleKey), nil
	}
	return priceV1(r, cToken)
}

func priceV16(r oracle.Resolution, cToken string) (*big.Int, error) {
	if isToken(cToken, "USDT") {
		return r.Price(USDCOracleKey), nil
	}
	return priceV15(r, cToken)
}

type priceSource int

const (
	sourceFixedETH priceSource = iota
	sourceFixedUSD
	sourceReporter
)

type tokenConfig struct {
	underlying string
	baseUnit   *big.Int
	source     priceSource
	fixedPrice *big.Int
}

var anchorScale = num.Pow10(30)

var tokenConfigs = map[string]tokenConfig{
	"0x6c8c6b02e7b2be14d4fa6022dfd6d75921d90e4e": {underlying: "0x0d8775f648430679a709e98d2b0cb6250d2887ef", baseUnit: num.Pow10(18), source: sourceReporter},
	CDAIAddress: {underlying: "0x6b175474e89094c44da98b954eedeac495271d0f", baseUnit: num.Pow10(18), source: sourceReporter},
	CETHAddress: {underlying: ETHAddress, baseUnit: num.Pow10(18), source: sourceReporter},
	"0x158079ee67fce2f58472a96584a73c7ab9ac95c1": {underlying: "0x1985365e9f78359a9b6ad760e32412f4a445e862", baseUnit: num.Pow10(18), source: sourceReporter},
	"0xf5dce57282a584d2746faf1593d3121fcac444dc": {underlying: "0x89d24a6b4ccb1b6faa2625fe562bdd9a23260359", baseUnit: num.Pow10(18), source: sourceFixedETH, fixedPrice: big.NewInt(5285000000000000)},
	"0x39aa39c021dfbae8fac545936693ac917d5e7563": {underlying: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", baseUnit: num.Pow10(6), source: sourceFixedUSD, fixedPrice: num.Pow10(6)},
	"0xf650c3d88d12db855b8bf7d11be6c55a4e07dcc9": {underlying: "0xdac17f958d2ee523a2206206994597c13d831ec7", baseUnit: num.Pow10(6), source: sourceFixedUSD, fixedPrice: num.Pow10(6)},
	"0xc11b1268c1a384e55c48c2391d8d480264a3a7f4": {underlying: "0x2260fac5e5542a773aa44fbcfedf7c193bc2c599", baseUnit: num.Pow10(8), source: sourceReporter},
	"0xb3319f5d18bc0d84dd1b4825dcde5d5f7266d407": {underlying: "0xe41d2489571d322189246dafa5ebde1f4699f498", baseUnit: num.Pow10(18), source: sourceReporter},
}

// priceAnchorView returns USD prices with 6 decimals rescaled to
// 1e(36 - baseUnit) as the comptroller expects.
func priceAnchorView(r oracle.Resolution, cToken string) (*big.Int, error) {
	cfg, ok := tokenConfigs[cToken]
	if !ok {
		return new(big.Int), nil
	}
	var price *big.Int
	switch cfg.source {
	case sourceReporter:
		price = r.Price(cfg.underlying)
	case sourceFixedUSD:
		price = new(big.Int).Set(cfg.fixedPrice)
	default:
		usdPerETH := r.Price(ETHAddress)
		if usdPerETH.Sign() == 0 {
			return nil, errETHPriceNotSet
		}
		price = num.MulDiv(usdPerETH, cfg.fixedPrice, ethBaseUnit)
	}
	return num.MulDiv(anchorScale, price, cfg.baseUnit), nil
}

// RegisterOracles adds every Compound price oracle contract. The v1
// descendants read the v1 price map.
func RegisterOracles(reg *oracle.Registry) error {
	variants := []struct {
		address string
		variant oracle.Variant
	}{
		{PriceOracleV1Address, oracle.Variant{Name: "PriceOracleV1", Resolve: priceV1}},
		{"0x28f829f473638ba82710c8404a778f9a66029aad", oracle.Variant{Name: "PriceOracleV1.1", PriceSource: PriceOracleV1Address, Resolve: priceV11}},
		{"0xe7664229833ae4abf4e269b8f23a86b657e2338d", oracle.Variant{Name: "PriceOracleV1.2", PriceSource: PriceOracleV1Address, Resolve: priceV12}},
		{"0x2c9e6bdaa0ef0284eecef0e0cc102dcdeae4887e", oracle.Variant{Name: "PriceOracleV1.3", PriceSource: PriceOracleV1Address, Resolve: priceV13}},
		{"0x1d8aedc9e924730dd3f9641cdb4d1b92b848b4bd", oracle.Variant{Name: "PriceOracleV1.4", PriceSource: PriceOracleV1Address, Resolve: priceV14}},
		{"0xda17fbeda95222f331cb1d252401f4b44f49f7a0", oracle.Variant{Name: "PriceOracleV1.5", PriceSource: PriceOracleV1Address, Resolve: priceV15}},
		{"0xddc46a3b076aec7ab3fc37420a8edd2959764ec4", oracle.Variant{Name: "PriceOracleV1.6", PriceSource: PriceOracleV1Address, Resolve: priceV16}},
		{UniswapAnchorViewAddress, oracle.Variant{Name: "UniswapAnchorView", Resolve: priceAnchorView}},
	}
	for _, v := range variants {
		if err := reg.Register(v.address, v.variant); err != nil {
			return fmt.Errorf("compound oracles: %w", err)
		}
	}
	return nil
}
