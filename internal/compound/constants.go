// Package compound replays Compound cToken, Comptroller and price oracle
// events into a state.State.
package compound

import "strings"

const (
	// ProtocolName is the registry key of the Compound protocol.
	ProtocolName = "compound"

	CTokenDecimals  = 8
	FactorsDecimals = 18

	CDAIAddress = "0x5d3a536e4d6dbd6114cc1ead35777bab948e3643"
	CETHAddress = "0x4ddc2d193948926d02f9b1fe9e1daa0718270ed5"
	NullAddress = "0x0000000000000000000000000000000000000000"
	ETHAddress  = NullAddress

	PriceOracleV1Address = "0x02557a5e05defeffd4cae6d83ea3d173b272c904"

	// ComptrollerAddress is the Unitroller proxy emitting Comptroller events.
	ComptrollerAddress = "0x3d9819210a31b4961b30ef54be2aed79b9c9cd3b"
)

// Market describes a deployed cToken.
type Market struct {
	Address           string
	Decimals          int32
	UnderlyingAddress string
	UnderlyingSymbol  string
}

// Markets lists the cTokens the replay knows about.
var Markets = []Market{
	{Address: CETHAddress, Decimals: 18, UnderlyingAddress: ETHAddress, UnderlyingSymbol: "ETH"},
	{Address: "0x6c8c6b02e7b2be14d4fa6022dfd6d75921d90e4e", Decimals: 18, UnderlyingAddress: "0x0d8775f648430679a709e98d2b0cb6250d2887ef", UnderlyingSymbol: "BAT"},
	{Address: CDAIAddress, Decimals: 18, UnderlyingAddress: "0x6b175474e89094c44da98b954eedeac495271d0f", UnderlyingSymbol: "DAI"},
	{Address: "0xf5dce57282a584d2746faf1593d3121fcac444dc", Decimals: 18, UnderlyingAddress: "0x89d24a6b4ccb1b6faa2625fe562bdd9a23260359", UnderlyingSymbol: "SAI"},
	{Address: "0x158079ee67fce2f58472a96584a73c7ab9ac95c1", Decimals: 18, UnderlyingAddress: "0x1985365e9f78359a9b6ad760e32412f4a445e862", UnderlyingSymbol: "REP"},
	{Address: "0x39aa39c021dfbae8fac545936693ac917d5e7563", Decimals: 6, UnderlyingAddress: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", UnderlyingSymbol: "USDC"},
	{Address: "0xf650c3d88d12db855b8bf7d11be6c55a4e07dcc9", Decimals: 6, UnderlyingAddress: "0xdac17f958d2ee523a2206206994597c13d831ec7", UnderlyingSymbol: "USDT"},
	{Address: "0xc11b1268c1a384e55c48c2391d8d480264a3a7f4", Decimals: 8, UnderlyingAddress: "0x2260fac5e5542a773aa44fbcfedf7c193bc2c599", UnderlyingSymbol: "BTC"},
	{Address: "0xb3319f5d18bc0d84dd1b4825dcde5d5f7266d407", Decimals: 18, UnderlyingAddress: "0xe41d2489571d322189246dafa5ebde1f4699f498", UnderlyingSymbol: "ZRX"},
}

// DSValueTokens maps DSValue reader contracts to the tokens priced by them
// in the v1 oracle.
var DSValueTokens = map[string][]string{
	"0x729d19f657bd0614b4985cf1d82531c67569197b": {
		"0x89d24a6b4ccb1b6faa2625fe562bdd9a23260359",
		"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
	},
}

// MarketByAddress returns the known market for a cToken.
func MarketByAddress(cToken string) (Market, bool) {
	cToken = strings.ToLower(cToken)
	for _, m := range Markets {
		if m.Address == cToken {
			return m, true
		}
	}
	return Market{}, false
}

// MarketBySymbol returns the known market whose underlying has symbol.
func MarketBySymbol(symbol string) (Market, bool) {
	for _, m := range Markets {
		if m.UnderlyingSymbol == symbol {
			return m, true
		}
	}
	return Market{}, false
}

func isToken(cToken, symbol string) bool {
	m, ok := MarketByAddress(cToken)
	return ok && m.UnderlyingSymbol == symbol
}
