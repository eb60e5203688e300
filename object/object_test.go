package object_test

import (
	"crypto/rand"
	"slices"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/test"
	"github.com/mynextid/zk-callbacks/common"
	"github.com/mynextid/zk-callbacks/crypto/rr"
	"github.com/mynextid/zk-callbacks/object"
	"github.com/stretchr/testify/require"
)

type tokens struct {
	Token1 uint64
	Token2 uint64
}

func (t tokens) Serialize() []fr.Element {
	return []fr.Element{common.FromUint64(t.Token1), common.FromUint64(t.Token2)}
}

func newTicket(t *testing.T, methodID uint64) object.CallbackCom {
	t.Helper()
	sk, err := rr.GenerateKey(rand.Reader)
	require.NoError(t, err)
	encKey, err := common.RandomElement(rand.Reader)
	require.NoError(t, err)
	comRand, err := common.RandomElement(rand.Reader)
	require.NoError(t, err)
	return object.CallbackCom{
		Ticket: object.CallbackTicket{
			Tik:        sk.PubKey(),
			MethodID:   methodID,
			Expirable:  true,
			Expiration: 301,
			EncKey:     encKey,
		},
		ComRand: comRand,
	}
}

func TestCreate(t *testing.T) {
	u, err := object.Create(tokens{Token1: 0}, rand.Reader)
	require.NoError(t, err)

	require.True(t, u.ZK.IsIngestOver)
	require.False(t, u.IsScanning())
	require.Zero(t, u.NumOutstanding())
	require.True(t, u.ZK.CallbackHash.IsZero())
	require.True(t, u.ZK.OldInProgress.IsZero())
	require.True(t, u.ZK.NewInProgress.IsZero())
	require.False(t, u.ZK.Nul.IsZero())

	_, err = u.GetTicket(0)
	require.ErrorIs(t, err, object.ErrTicketIndex)
}

func TestCommitmentBinding(t *testing.T) {
	u, err := object.Create(tokens{Token1: 1, Token2: 2}, rand.Reader)
	require.NoError(t, err)
	base := u.Commit()

	one := fr.One()
	mutations := map[string]func(v *object.User[tokens]){
		"data":            func(v *object.User[tokens]) { v.Data.Token2++ },
		"nul":             func(v *object.User[tokens]) { v.ZK.Nul.Add(&v.ZK.Nul, &one) },
		"com_rand":        func(v *object.User[tokens]) { v.ZK.ComRand.Add(&v.ZK.ComRand, &one) },
		"callback_hash":   func(v *object.User[tokens]) { v.ZK.CallbackHash.Add(&v.ZK.CallbackHash, &one) },
		"new_in_progress": func(v *object.User[tokens]) { v.ZK.NewInProgress.Add(&v.ZK.NewInProgress, &one) },
		"old_in_progress": func(v *object.User[tokens]) { v.ZK.OldInProgress.Add(&v.ZK.OldInProgress, &one) },
		"is_ingest_over":  func(v *object.User[tokens]) { v.ZK.IsIngestOver = false },
	}
	for name, mutate := range mutations {
		v := u.Clone()
		mutate(&v)
		require.NotEqual(t, base, v.Commit(), name)
	}

	// the new_in_progress and old_in_progress positions are not interchangeable
	a := u.Clone()
	a.ZK.NewInProgress = common.FromUint64(5)
	b := u.Clone()
	b.ZK.OldInProgress = common.FromUint64(5)
	require.NotEqual(t, a.Commit(), b.Commit())
}

type commitCircuit struct {
	User object.UserVar
	Com  frontend.Variable `gnark:",public"`
}

func (c *commitCircuit) Define(api frontend.API) error {
	com, err := object.CommitVar(api, c.User)
	if err != nil {
		return err
	}
	api.AssertIsEqual(com, c.Com)
	return nil
}

func TestCommitMatchesCircuit(t *testing.T) {
	u, err := object.Create(tokens{Token1: 3, Token2: 4}, rand.Reader)
	require.NoError(t, err)
	u.ZK.CallbackHash = object.AddTicketToChain(u.ZK.CallbackHash, newTicket(t, 0).Ticket)

	assignment := &commitCircuit{User: u.Assign(), Com: common.Big(u.Commit())}
	template := &commitCircuit{User: object.NewUserVar(2)}
	require.NoError(t, test.IsSolved(template, assignment, ecc.BN254.ScalarField()))
}

type chainCircuit struct {
	Tickets [2]object.CallbackComVar
	Coms    [2]frontend.Variable `gnark:",public"`
	Chain   frontend.Variable    `gnark:",public"`
}

func (c *chainCircuit) Define(api frontend.API) error {
	chain := frontend.Variable(0)
	for i := range c.Tickets {
		com, err := object.CommitTicketVar(api, c.Tickets[i])
		if err != nil {
			return err
		}
		api.AssertIsEqual(com, c.Coms[i])
		chain, err = object.AddTicketToChainVar(api, chain, c.Tickets[i].Ticket)
		if err != nil {
			return err
		}
	}
	api.AssertIsEqual(chain, c.Chain)
	return nil
}

func TestHashChain(t *testing.T) {
	t0, t1 := newTicket(t, 0), newTicket(t, 1)

	var zero fr.Element
	forward := object.AddTicketToChain(object.AddTicketToChain(zero, t0.Ticket), t1.Ticket)
	backward := object.AddTicketToChain(object.AddTicketToChain(zero, t1.Ticket), t0.Ticket)
	require.NotEqual(t, forward, backward, "the chain is order sensitive")

	assignment := &chainCircuit{
		Tickets: [2]object.CallbackComVar{t0.Assign(), t1.Assign()},
		Coms:    [2]frontend.Variable{common.Big(t0.Commit()), common.Big(t1.Commit())},
		Chain:   common.Big(forward),
	}
	require.NoError(t, test.IsSolved(&chainCircuit{}, assignment, ecc.BN254.ScalarField()))

	assignment.Chain = common.Big(backward)
	require.Error(t, test.IsSolved(&chainCircuit{}, assignment, ecc.BN254.ScalarField()))
}

func TestCallbackCodec(t *testing.T) {
	c := newTicket(t, 3)
	b, err := object.EncodeCallbackCom(c)
	require.NoError(t, err)

	again, err := object.EncodeCallbackCom(c)
	require.NoError(t, err)
	require.Equal(t, b, again, "encoding is deterministic")

	back, err := object.DecodeCallbackCom(b)
	require.NoError(t, err)
	require.True(t, back.Ticket.Same(c.Ticket))
	require.Equal(t, c.Commit(), back.Commit())

	_, err = object.DecodeCallbackCom(b[:len(b)-3])
	require.ErrorIs(t, err, object.ErrMalformedTicket)
}

func TestCloneIsIndependent(t *testing.T) {
	u, err := object.Create(tokens{}, rand.Reader)
	require.NoError(t, err)
	blob, err := object.EncodeCallbackCom(newTicket(t, 0))
	require.NoError(t, err)
	u.Callbacks = append(u.Callbacks, blob)
	idx := 0
	u.ScanIndex = &idx

	v := u.Clone()
	v.Callbacks[0][0] ^= 0xff
	*v.ScanIndex = 1
	v.Data.Token1 = 9

	require.Equal(t, blob, u.Callbacks[0])
	require.Equal(t, 0, *u.ScanIndex)
	require.Zero(t, u.Data.Token1)

	got, err := u.GetTicket(0)
	require.NoError(t, err)
	require.Equal(t, uint64(0), got.Ticket.MethodID)
}

type balances struct {
	Vals []uint64
}

func (b balances) Serialize() []fr.Element {
	out := make([]fr.Element, len(b.Vals))
	for i, v := range b.Vals {
		out[i] = common.FromUint64(v)
	}
	return out
}

type clonedBalances struct {
	balances
}

func (b clonedBalances) Clone() clonedBalances {
	return clonedBalances{balances{Vals: slices.Clone(b.Vals)}}
}

func TestSliceData(t *testing.T) {
	_, err := object.Create(balances{Vals: []uint64{1}}, rand.Reader)
	require.ErrorIs(t, err, object.ErrSharedData)

	u, err := object.Create(clonedBalances{balances{Vals: []uint64{1, 2}}}, rand.Reader)
	require.NoError(t, err)
	v := u.Clone()
	v.Data.Vals[0] = 7
	require.Equal(t, []uint64{1, 2}, u.Data.Vals)
}
