package probe

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claucondor/more-liquidation-bot/pkg/types"
)

func newTestProbe(t *testing.T) *Probe {
	t.Helper()
	p, err := New(nil)
	require.NoError(t, err)
	return p
}

func tokenA() common.Address { return common.HexToAddress("0xB1") }
func tokenB() common.Address { return common.HexToAddress("0xB2") }

func poolRefV2() types.PoolRef {
	return types.PoolRef{Venue: types.VenueV2, Address: common.HexToAddress("0xA1")}
}

func poolRefV3() types.PoolRef {
	return types.PoolRef{Venue: types.VenueV3, Address: common.HexToAddress("0xA2"), Token0: tokenA(), FeeMicro: 3000}
}

func TestBuildCallV2(t *testing.T) {
	p := newTestProbe(t)
	pool := poolRefV2()

	call, err := p.buildCall(pool, tokenA(), tokenB(), big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, pool.Address, call.Target)
}

func TestBuildCallV3(t *testing.T) {
	p := newTestProbe(t)
	pool := poolRefV3()

	call, err := p.buildCall(pool, tokenA(), tokenB(), big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, pool.Address, call.Target)
}

func TestDecodeResultV2(t *testing.T) {
	p := newTestProbe(t)
	pool := poolRefV2()

	amounts := []*big.Int{big.NewInt(1000), big.NewInt(990)}
	returnData, err := p.v2Router.Methods["getAmountsOut"].Outputs.Pack(amounts)
	require.NoError(t, err)

	q, ok := p.decodeResult(pool, tokenA(), tokenB(), big.NewInt(1000), returnData)
	require.True(t, ok)
	assert.Equal(t, big.NewInt(990).String(), q.AmountOut.String())
}

func TestDecodeResultV3(t *testing.T) {
	p := newTestProbe(t)
	pool := poolRefV3()

	sqrtPriceX96 := new(big.Int).Lsh(big.NewInt(1), 96)
	returnData, err := p.v3Pool.Methods["slot0"].Outputs.Pack(
		sqrtPriceX96, int32(0), uint16(0), uint16(0), uint16(0), uint8(0), false,
	)
	require.NoError(t, err)

	q, ok := p.decodeResult(pool, tokenA(), tokenB(), big.NewInt(1_000_000), returnData)
	require.True(t, ok)
	assert.Equal(t, big.NewInt(997000).String(), q.AmountOut.String())
}

func TestBestQuote(t *testing.T) {
	low := types.Quote{AmountOut: big.NewInt(100)}
	high := types.Quote{AmountOut: big.NewInt(200)}

	best, ok := Best([]types.Quote{low, high})
	require.True(t, ok)
	assert.Equal(t, high.AmountOut, best.AmountOut)

	_, ok = Best(nil)
	assert.False(t, ok)
}
