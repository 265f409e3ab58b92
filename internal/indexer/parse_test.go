package indexer

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddressesDeduplicates(t *testing.T) {
	got, err := ParseAddresses([]string{
		"0x39aa39c021dfbae8fac545936693ac917d5e7563",
		" ",
		"0x39AA39c021dfbaE8faC545936693aC917d5E7563",
		"0x3d9819210a31b4961b30ef54be2aed79b9c9cd3b",
	})
	require.NoError(t, err)
	assert.Equal(t, []common.Address{
		common.HexToAddress("0x39aa39c021dfbae8fac545936693ac917d5e7563"),
		common.HexToAddress("0x3d9819210a31b4961b30ef54be2aed79b9c9cd3b"),
	}, got)
}

func TestParseAddressesRejectsInvalid(t *testing.T) {
	_, err := ParseAddresses([]string{"0x1234"})
	require.Error(t, err)
}
