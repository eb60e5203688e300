package sigstore_test

import (
	"crypto/rand"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/test"
	"github.com/mynextid/zk-callbacks/bulletin/sigstore"
	"github.com/mynextid/zk-callbacks/common"
	"github.com/mynextid/zk-callbacks/crypto/rr"
	"github.com/mynextid/zk-callbacks/crypto/sig"
	"github.com/mynextid/zk-callbacks/object"
	"github.com/stretchr/testify/require"
)

func randomElement(t *testing.T) fr.Element {
	t.Helper()
	e, err := common.RandomElement(rand.Reader)
	require.NoError(t, err)
	return e
}

func verifyMembership(t *testing.T, pub, wit []fr.Element, msg fr.Element) bool {
	t.Helper()
	pk, err := sig.PublicKeyFromElements(pub)
	require.NoError(t, err)
	s, err := sig.SignatureFromElements(wit)
	require.NoError(t, err)
	return pk.Verify(msg, s)
}

func TestObjStore(t *testing.T) {
	store, err := sigstore.NewObjStore(rand.Reader)
	require.NoError(t, err)

	com := randomElement(t)
	_, ok := store.GetMembershipData(com)
	require.False(t, ok)

	require.NoError(t, store.JoinBul(com))
	require.ErrorIs(t, store.JoinBul(com), sigstore.ErrAlreadyJoined)

	data, ok := store.GetMembershipData(com)
	require.True(t, ok)
	require.Equal(t, store.MembershipPub(), data.Pub)
	require.True(t, verifyMembership(t, data.Pub, data.Witness, com))

	next, nul := randomElement(t), randomElement(t)
	require.True(t, store.HasNeverReceivedNul(nul))
	require.NoError(t, store.AppendValue(next, nul, nil, nil, nil))
	require.False(t, store.HasNeverReceivedNul(nul))
	require.ErrorIs(t, store.AppendValue(randomElement(t), nul, nil, nil, nil), sigstore.ErrNullifierSeen)
	require.Len(t, store.Records(), 2)

	t.Run("rotation invalidates old witnesses", func(t *testing.T) {
		before, ok := store.GetMembershipData(next)
		require.True(t, ok)
		require.NoError(t, store.RotateKey())

		after, ok := store.GetMembershipData(next)
		require.True(t, ok)
		require.NotEqual(t, before.Pub, after.Pub)
		require.True(t, verifyMembership(t, after.Pub, after.Witness, next))
		require.False(t, verifyMembership(t, after.Pub, before.Witness, next))
	})
}

func TestRangeStore(t *testing.T) {
	store, err := sigstore.NewRangeStore(rand.Reader)
	require.NoError(t, err)
	require.Zero(t, store.Epoch())

	id, other := randomElement(t), randomElement(t)
	stale, ok := store.NonMembershipOf(other)
	require.True(t, ok)
	require.True(t, sigstore.VerifyNonMembership(stale.Pub, stale.Witness, other))

	require.NoError(t, store.Insert(id))
	require.ErrorIs(t, store.Insert(id), sigstore.ErrAlreadyInserted)
	require.Equal(t, uint64(1), store.Epoch())
	require.True(t, store.Contains(id))

	_, ok = store.NonMembershipOf(id)
	require.False(t, ok)

	fresh, ok := store.NonMembershipOf(other)
	require.True(t, ok)
	pub := store.NonMembershipPub()
	require.Equal(t, pub, fresh.Pub)
	require.True(t, sigstore.VerifyNonMembership(pub, fresh.Witness, other))
	// signed for the previous epoch
	require.False(t, sigstore.VerifyNonMembership(pub, stale.Witness, other))
	// a gap of the current epoch does not cover the inserted id
	require.False(t, sigstore.VerifyNonMembership(pub, fresh.Witness, id))
}

type nonMembershipCircuit struct {
	Tik      object.CallbackTicketVar
	Pub      []frontend.Variable `gnark:",public"`
	Wit      []frontend.Variable
	Expected frontend.Variable `gnark:",public"`
}

func (c *nonMembershipCircuit) Define(api frontend.API) error {
	ok, err := sigstore.GapNonMembership{}.IsNotCalled(api, c.Tik, c.Pub, c.Wit)
	if err != nil {
		return err
	}
	api.AssertIsEqual(ok, c.Expected)
	return nil
}

type callCircuit struct {
	Tik      object.CallbackTicketVar
	EncArgs  []frontend.Variable
	PostTime frontend.Variable
	Pub      []frontend.Variable `gnark:",public"`
	Wit      []frontend.Variable
	Expected frontend.Variable `gnark:",public"`
}

func (c *callCircuit) Define(api frontend.API) error {
	ok, err := sigstore.CallMembership{}.IsCalled(api, c.Tik, c.EncArgs, c.PostTime, c.Pub, c.Wit)
	if err != nil {
		return err
	}
	api.AssertIsEqual(ok, c.Expected)
	return nil
}

func ticketWith(t *testing.T, tik rr.PubKey) object.CallbackTicket {
	t.Helper()
	return object.CallbackTicket{Tik: tik, MethodID: 0, Expirable: true, Expiration: 50, EncKey: randomElement(t)}
}

func TestGadgets(t *testing.T) {
	store, err := sigstore.NewCallbackStore(rand.Reader)
	require.NoError(t, err)
	sk, err := rr.GenerateKey(rand.Reader)
	require.NoError(t, err)

	called := ticketWith(t, sk.PubKey())
	other, err := rr.GenerateKey(rand.Reader)
	require.NoError(t, err)
	uncalled := ticketWith(t, other.PubKey())

	staleNmemb, ok := store.GetNonMembershipData(called.Tik)
	require.True(t, ok)

	encArgs := []fr.Element{randomElement(t)}
	require.NoError(t, store.AppendValue(called.Tik, encArgs, rr.Signature{}, 20))
	require.ErrorIs(t, store.AppendValue(called.Tik, encArgs, rr.Signature{}, 21), sigstore.ErrTicketCalled)
	require.False(t, store.HasNeverReceivedTik(called.Tik))
	require.False(t, store.VerifyNotIn(called.Tik))
	require.True(t, store.VerifyNotIn(uncalled.Tik))

	gotArgs, postTime, ok := store.VerifyIn(called.Tik)
	require.True(t, ok)
	require.Equal(t, encArgs, gotArgs)
	require.Equal(t, common.Time(20), postTime)

	memb, ok := store.GetMembershipData(called.Tik)
	require.True(t, ok)
	_, ok = store.GetNonMembershipData(called.Tik)
	require.False(t, ok)
	nmemb, ok := store.GetNonMembershipData(uncalled.Tik)
	require.True(t, ok)

	field := ecc.BN254.ScalarField()
	nmembTemplate := &nonMembershipCircuit{Pub: common.Placeholders(3), Wit: common.Placeholders(5)}
	nmembCases := map[string]struct {
		tik      object.CallbackTicket
		wit      []fr.Element
		expected int
	}{
		"uncalled":       {uncalled, nmemb.Witness, 1},
		"stale epoch":    {called, staleNmemb.Witness, 0},
		"gap of another": {called, nmemb.Witness, 0},
		"dummy witness":  {uncalled, sigstore.GapNonMembership{}.DummyWitness(), 0},
	}
	for name, tc := range nmembCases {
		assignment := &nonMembershipCircuit{
			Tik:      tc.tik.Assign(),
			Pub:      common.Vars(store.NonMembershipPub()),
			Wit:      common.Vars(tc.wit),
			Expected: tc.expected,
		}
		require.NoError(t, test.IsSolved(nmembTemplate, assignment, field), name)
	}

	callTemplate := &callCircuit{EncArgs: common.Placeholders(1), Pub: common.Placeholders(2), Wit: common.Placeholders(3)}
	callCases := map[string]struct {
		args     []fr.Element
		postTime common.Time
		wit      []fr.Element
		expected int
	}{
		"called":        {encArgs, 20, memb.Witness, 1},
		"other time":    {encArgs, 19, memb.Witness, 0},
		"other args":    {[]fr.Element{randomElement(t)}, 20, memb.Witness, 0},
		"dummy witness": {encArgs, 20, sigstore.CallMembership{}.DummyWitness(), 0},
	}
	for name, tc := range callCases {
		assignment := &callCircuit{
			Tik:      called.Assign(),
			EncArgs:  common.Vars(tc.args),
			PostTime: tc.postTime,
			Pub:      common.Vars(memb.Pub),
			Wit:      common.Vars(tc.wit),
			Expected: tc.expected,
		}
		require.NoError(t, test.IsSolved(callTemplate, assignment, field), name)
	}
}
