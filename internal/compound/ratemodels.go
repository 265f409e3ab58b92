package compound

import (
	"fmt"
	"math/big"

	"lendingScope/internal/num"
	"lendingScope/internal/ratemodel"
)

type rateModelEntry struct {
	address string
	def     ratemodel.Definition
}

func jumpParams(base, mult, jump int64, kink string) ratemodel.Params {
	return ratemodel.Params{
		BaseRatePerBlock:       big.NewInt(base),
		MultiplierPerBlock:     big.NewInt(mult),
		JumpMultiplierPerBlock: big.NewInt(jump),
		Kink:                   num.MustParse(kink),
	}
}

func baseSlopeParams(multiplier, baseRate string) ratemodel.Params {
	return ratemodel.Params{Multiplier: num.MustParse(multiplier), BaseRate: num.MustParse(baseRate)}
}

var rateModels = []rateModelEntry{
	{"0x6bc8fe27d0c7207733656595e73c0d5cf7afae36", ratemodel.Definition{
		Name: "USDTRateModel", Kind: ratemodel.KindJump,
		Params: jumpParams(9512937595, 95129375951, 951293759512, "900000000000000000"),
	}},
	{"0x5562024784cc914069d67d89a28e3201bf7b57e7", ratemodel.Definition{
		Name: "JumpRateModel", Kind: ratemodel.KindJump,
		Params: jumpParams(9512937595, 10569930661, 951293759512, "800000000000000000"),
	}},
	{"0xfb564da37b41b2f6b6edcc3e56fbf523bd9f2012", ratemodel.Definition{
		Name: "JumpRateModelV2", Kind: ratemodel.KindJump,
		Params: jumpParams(0, 23782343987, 518455098934, "800000000000000000"),
	}},
	{"0xc64c4cba055efa614ce01f4bad8a9f519c4f8fab", ratemodel.Definition{
		Name: "Base0bpsSlope2000bps", Kind: ratemodel.KindBaseSlope,
		Params: baseSlopeParams("200000000000000000", "0"),
	}},
	{"0x0c3f8df27e1a00b47653fde878d68d35f00714c0", ratemodel.Definition{
		Name: "Base200bpsSlope1000bps", Kind: ratemodel.KindBaseSlope,
		Params: baseSlopeParams("100000000000000000", "20000000000000000"),
	}},
	{"0xbae04cbf96391086dc643e842b517734e214d698", ratemodel.Definition{
		Name: "Base200bpsSlope3000bps", Kind: ratemodel.KindBaseSlope,
		Params: baseSlopeParams("300000000000000000", "20000000000000000"),
	}},
	{"0xa1046abfc2598f48c44fb320d281d3f3c0733c9a", ratemodel.Definition{
		Name: "Base500bpsSlope1200bps", Kind: ratemodel.KindBaseSlope,
		Params: baseSlopeParams("120000000000000000", "50000000000000000"),
	}},
	{"0xd928c8ead620bb316d2cefe3caf81dc2dec6ff63", ratemodel.Definition{
		Name: "Base500bpsSlope1500bps", Kind: ratemodel.KindBaseSlope,
		Params: baseSlopeParams("150000000000000000", "50000000000000000"),
	}},
	{"0xec163986cc9a6593d6addcbff5509430d348030f", ratemodel.Definition{
		Name: "DAIInterestRateModel", Kind: ratemodel.KindDAI,
		Params: jumpParams(0, 264248265, 570776255707, "900000000000000000"),
	}},
	{"0x000000007675b5e1da008f037a0800b309e0c493", ratemodel.Definition{
		Name: "DAIInterestRateModelV2", Kind: ratemodel.KindDAI,
		Params: jumpParams(0, 10569930661, 570776255707, "900000000000000000"),
	}},
	{"0xfed941d39905b23d6faf02c8301d40bd4834e27f", ratemodel.Definition{
		Name: "DAIInterestRateModelV3", Kind: ratemodel.KindDAI,
		Params: jumpParams(0, 23782343987, 518455098934, "800000000000000000"),
	}},
}

// RegisterRateModels adds every deployed Compound interest rate model.
func RegisterRateModels(reg *ratemodel.Registry) error {
	for _, e := range rateModels {
		if err := reg.Register(e.address, e.def); err != nil {
			return fmt.Errorf("compound rate models: %w", err)
		}
	}
	return nil
}
