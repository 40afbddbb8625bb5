package contract

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustless-academy/academy/internal/chain"
)

var (
	me      = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	kitchen = NewKitchenToken(common.HexToAddress("0x0000000000000000000000000000000000000001"))
)

// fakeBackend answers eth_call with canned bytes or an error.
type fakeBackend struct {
	out  []byte
	err  error
	last chain.CallMsg
}

func (f *fakeBackend) CallContract(_ context.Context, msg chain.CallMsg, _ *big.Int) ([]byte, error) {
	f.last = msg
	return f.out, f.err
}

func word(n int64) []byte { return common.LeftPadBytes(big.NewInt(n).Bytes(), 32) }

// ---------------------------------------------------------------------------
// registry
// ---------------------------------------------------------------------------

func TestAllKindsRegistered(t *testing.T) {
	var ids []string
	for _, k := range All() {
		ids = append(ids, k.ID)
	}
	assert.Equal(t, []string{
		"dish-nft", "garden-deposit", "greenhouse", "ingredients",
		"kitchen-token", "seed-token", "staked-seed-token",
	}, ids)
}

func TestGetKind(t *testing.T) {
	k, ok := Get("seed-token")
	require.True(t, ok)
	assert.Equal(t, "SeedToken", k.Name)
	_, ok = Get("w3token")
	assert.False(t, ok)
}

func TestIsRead(t *testing.T) {
	assert.True(t, KitchenTokenKind.IsRead("canClaimFaucet"))
	assert.True(t, GardenDepositKind.IsRead("earnedRewards"))
	assert.False(t, KitchenTokenKind.IsRead("faucet"))
	assert.False(t, KitchenTokenKind.IsRead("nope"))
}

func TestSelectors(t *testing.T) {
	tests := map[string]string{
		"balanceOf": "0x70a08231",
		"approve":   "0x095ea7b3",
		"allowance": "0xdd62ed3e",
	}
	for name, sel := range tests {
		m, ok := KitchenTokenKind.Method(name)
		require.True(t, ok, name)
		assert.Equal(t, sel, hexutil.Encode(m.ID), name)
	}
}

func TestMethodByID(t *testing.T) {
	data, err := kitchen.Faucet().Pack()
	require.NoError(t, err)
	m, err := KitchenTokenKind.MethodByID(data)
	require.NoError(t, err)
	assert.Equal(t, "faucet", m.Name)

	_, err = KitchenTokenKind.MethodByID([]byte{0x01})
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// Call
// ---------------------------------------------------------------------------

func TestCallKeyDistinguishesArgsAndSender(t *testing.T) {
	a := kitchen.BalanceOf(me)
	b := kitchen.BalanceOf(common.HexToAddress("0xbb"))
	assert.NotEqual(t, a.Key(), b.Key())
	assert.Equal(t, a.Key(), kitchen.BalanceOf(me).Key())

	g := Garden{Address: common.HexToAddress("0x05")}
	assert.NotEqual(t, g.EarnedRewards(me).Key(), g.EarnedRewards(common.HexToAddress("0xbb")).Key())
}

func TestCallString(t *testing.T) {
	assert.Equal(t, "KitchenToken.faucet()", kitchen.Faucet().String())
	ids, amounts := Basket{1: 2}.Arrays()
	call := Pantry{Address: common.HexToAddress("0x02")}.BuyBatch(ids, amounts)
	assert.Equal(t, "Ingredients.buyBatch([1], [2])", call.String())
}

func TestCallValid(t *testing.T) {
	assert.True(t, kitchen.Faucet().Valid())
	assert.False(t, Call{Kind: KitchenTokenKind, Method: "faucet"}.Valid())
	assert.False(t, Call{Kind: KitchenTokenKind, To: me}.Valid())
	assert.False(t, Call{To: me, Method: "faucet"}.Valid())
}

func TestPackBadArguments(t *testing.T) {
	call := kitchen.BalanceOf(me)
	call.Args = []any{"not an address"}
	_, err := call.Pack()
	assert.Error(t, err)

	_, err = Call{Kind: KitchenTokenKind, To: me, Method: "mint"}.Pack()
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

// ---------------------------------------------------------------------------
// Caller
// ---------------------------------------------------------------------------

func TestReadUint(t *testing.T) {
	be := &fakeBackend{out: word(82800)}
	out, err := NewCaller(be).Read(context.Background(), kitchen.TimeUntilNextClaim(me))
	require.NoError(t, err)
	n, err := Uint(out)
	require.NoError(t, err)
	assert.Equal(t, int64(82800), n.Int64())
	assert.Equal(t, kitchen.Address, be.last.To)
}

func TestReadBool(t *testing.T) {
	be := &fakeBackend{out: word(1)}
	out, err := NewCaller(be).Read(context.Background(), kitchen.CanClaimFaucet(me))
	require.NoError(t, err)
	ok, err := Bool(out)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReadPassesSender(t *testing.T) {
	be := &fakeBackend{out: word(5)}
	g := Garden{Address: common.HexToAddress("0x05")}
	_, err := NewCaller(be).Read(context.Background(), g.EarnedRewards(me))
	require.NoError(t, err)
	assert.Equal(t, me, be.last.From)
}

func TestReadRejectsWrite(t *testing.T) {
	_, err := NewCaller(&fakeBackend{}).Read(context.Background(), kitchen.Faucet())
	assert.ErrorIs(t, err, ErrNotRead)
}

func TestReadMalformed(t *testing.T) {
	_, err := NewCaller(&fakeBackend{out: []byte{0x01}}).Read(context.Background(), kitchen.BalanceOf(me))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestReadRevertPassesThrough(t *testing.T) {
	be := &fakeBackend{err: &chain.RevertError{Reason: "nope"}}
	_, err := NewCaller(be).Read(context.Background(), kitchen.BalanceOf(me))
	var rev *chain.RevertError
	require.True(t, errors.As(err, &rev))
	assert.Equal(t, "nope", rev.Reason)
}

func TestSimulate(t *testing.T) {
	be := &fakeBackend{err: &chain.RevertError{Reason: "Faucet: cooldown"}}
	call := kitchen.Faucet()
	call.From = me
	err := NewCaller(be).Simulate(context.Background(), call, big.NewInt(7))
	var rev *chain.RevertError
	require.True(t, errors.As(err, &rev))
	assert.Equal(t, me, be.last.From)
	assert.Equal(t, kitchen.Address, be.last.To)
	assert.Equal(t, int64(7), be.last.Value.Int64())
}

func TestDecodeHelpersRejectShape(t *testing.T) {
	_, err := Uint(nil)
	assert.ErrorIs(t, err, ErrDecode)
	_, err = Uint([]any{true})
	assert.ErrorIs(t, err, ErrDecode)
	_, err = Bool([]any{big.NewInt(1)})
	assert.ErrorIs(t, err, ErrDecode)
}

func TestTokenCapabilities(t *testing.T) {
	assert.True(t, kitchen.HasFaucet())
	assert.True(t, kitchen.HasLastClaim())
	seed := NewSeedToken(me)
	assert.True(t, seed.HasFaucet())
	assert.False(t, seed.HasLastClaim())
	assert.False(t, NewStakedSeedToken(me).HasFaucet())
}
