package scan_test

import (
	"crypto/rand"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/mynextid/zk-callbacks/bulletin"
	"github.com/mynextid/zk-callbacks/bulletin/sigstore"
	"github.com/mynextid/zk-callbacks/circuits/interaction"
	"github.com/mynextid/zk-callbacks/circuits/scan"
	"github.com/mynextid/zk-callbacks/common"
	"github.com/mynextid/zk-callbacks/crypto/enc"
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

type anyone struct{}

func (anyone) MembershipShape() (int, int) { return 0, 0 }

func (anyone) EnforceMembershipOf(api frontend.API, com frontend.Variable, pub, wit []frontend.Variable) (frontend.Variable, error) {
	return 1, nil
}

var open = interaction.MembershipConfig{Gadget: anyone{}, Constant: true}

// rules: 0 adds its argument to Token2 and expires after 100, 1 sets Token1
// and never expires
var rules = []interaction.Callback[tokens]{
	{
		MethodID:   0,
		Expirable:  true,
		Expiration: 100,
		Method: func(u object.User[tokens], args []fr.Element) object.User[tokens] {
			u.Data.Token2 += args[0].Uint64()
			return u
		},
		Predicate: func(api frontend.API, u object.UserVar, args []frontend.Variable) (object.UserVar, error) {
			return u.WithData([]frontend.Variable{u.Data[0], api.Add(u.Data[1], args[0])}), nil
		},
	},
	{
		MethodID: 1,
		Method: func(u object.User[tokens], args []fr.Element) object.User[tokens] {
			u.Data.Token1 = args[0].Uint64()
			return u
		},
		Predicate: func(api frontend.API, u object.UserVar, args []frontend.Variable) (object.UserVar, error) {
			return u.WithData([]frontend.Variable{args[0], u.Data[1]}), nil
		},
	},
}

type fixture struct {
	store  *sigstore.CallbackStore
	sk     rr.SecretKey
	user   *object.User[tokens]
	issued []interaction.IssuedCallback
}

// newFixture issues one ticket per rule at time 10
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sigstore.NewCallbackStore(rand.Reader)
	require.NoError(t, err)
	sk, err := rr.GenerateKey(rand.Reader)
	require.NoError(t, err)
	u, err := object.Create(tokens{Token1: 1}, rand.Reader)
	require.NoError(t, err)

	in := interaction.Interaction[tokens, object.FieldArgs, object.FieldArgs]{
		Method: func(u object.User[tokens], _, _ object.FieldArgs) object.User[tokens] { return u },
		Predicate: func(api frontend.API, old, new object.UserVar, _, _ []frontend.Variable) (frontend.Variable, error) {
			return 1, nil
		},
		Callbacks: rules,
	}
	rpks := []rr.PubKey{sk.PubKey(), sk.PubKey()}
	prep, err := interaction.Prepare(rand.Reader, u, in, open, rpks, 10, interaction.MembershipData{}, object.FieldArgs{}, object.FieldArgs{})
	require.NoError(t, err)
	require.NoError(t, common.IsSolved(prep.Template, prep.Assignment))

	nu := prep.NewUser
	return &fixture{store: store, sk: sk, user: &nu, issued: prep.Executed.CbTikList}
}

func (f *fixture) call(t *testing.T, i int, arg uint64, postTime common.Time) {
	t.Helper()
	cb := f.issued[i]
	encArgs := enc.Encrypt(cb.Com.Ticket.EncKey, []fr.Element{common.FromUint64(arg)})
	s, err := f.sk.Rerand(cb.Rand).Sign(rand.Reader, bulletin.CallMessage(encArgs, postTime))
	require.NoError(t, err)
	require.NoError(t, bulletin.VerifyCallAndAppend(f.store, cb.Com.Ticket.Tik, encArgs, s, postTime))
}

func (f *fixture) config(batch int) scan.Config[tokens] {
	return scan.ConfigFor(f.store, rules, batch, 1, open)
}

// scanAll runs batches until the scan completes, checking every step in the
// circuit.
func scanAll(t *testing.T, u *object.User[tokens], reg scan.Registry, cfg scan.Config[tokens], curTime common.Time) *object.User[tokens] {
	t.Helper()
	for steps := 0; steps == 0 || u.IsScanning(); steps++ {
		require.Less(t, steps, 10)
		pub, priv, err := scan.GetScanArguments(u, reg, cfg, curTime)
		require.NoError(t, err)
		prep, err := scan.PrepareScan(rand.Reader, u, cfg, interaction.MembershipData{}, pub, priv)
		require.NoError(t, err)
		require.NoError(t, common.IsSolved(prep.Template, prep.Assignment))
		nu := prep.NewUser
		u = &nu
	}
	return u
}

func TestScanAppliesCalledTickets(t *testing.T) {
	f := newFixture(t)
	f.call(t, 0, 5, 20)

	u := scanAll(t, f.user, f.store, f.config(1), 30)

	require.Equal(t, tokens{Token1: 1, Token2: 5}, u.Data)
	require.False(t, u.IsScanning())
	require.True(t, u.ZK.IsIngestOver)
	require.True(t, u.ZK.OldInProgress.IsZero())
	require.True(t, u.ZK.NewInProgress.IsZero())
	require.Nil(t, u.InProgress)

	// the uncalled ticket survives
	require.Equal(t, 1, u.NumOutstanding())
	left, err := u.GetTicket(0)
	require.NoError(t, err)
	require.True(t, left.Ticket.Same(f.issued[1].Com.Ticket))
	require.Equal(t, object.AddTicketToChain(fr.Element{}, left.Ticket), u.ZK.CallbackHash)
}

func TestScanPartitionEquivalence(t *testing.T) {
	f := newFixture(t)
	f.call(t, 0, 5, 20)
	f.call(t, 1, 9, 20)

	one := scanAll(t, f.user, f.store, f.config(1), 30)
	two := scanAll(t, f.user, f.store, f.config(2), 30)

	require.Equal(t, tokens{Token1: 9, Token2: 5}, one.Data)
	require.Equal(t, one.Data, two.Data)
	require.Equal(t, one.ZK.CallbackHash, two.ZK.CallbackHash)
	require.Equal(t, one.NumOutstanding(), two.NumOutstanding())
	require.Zero(t, two.NumOutstanding())
	require.True(t, two.ZK.CallbackHash.IsZero())
}

func TestScanExpiry(t *testing.T) {
	t.Run("uncalled ticket past expiration is dropped", func(t *testing.T) {
		f := newFixture(t)
		u := scanAll(t, f.user, f.store, f.config(2), 111)
		require.Equal(t, tokens{Token1: 1}, u.Data)
		require.Equal(t, 1, u.NumOutstanding())
		left, err := u.GetTicket(0)
		require.NoError(t, err)
		require.True(t, left.Ticket.Same(f.issued[1].Com.Ticket))
	})

	t.Run("uncalled ticket at expiration is kept", func(t *testing.T) {
		f := newFixture(t)
		u := scanAll(t, f.user, f.store, f.config(2), 110)
		require.Equal(t, 2, u.NumOutstanding())
	})

	t.Run("call posted after expiration is ignored", func(t *testing.T) {
		f := newFixture(t)
		f.call(t, 0, 5, 111)
		u := scanAll(t, f.user, f.store, f.config(2), 120)
		require.Equal(t, tokens{Token1: 1}, u.Data)
		require.Equal(t, 1, u.NumOutstanding())
	})
}

func TestScanOrder(t *testing.T) {
	f := newFixture(t)
	cfg := f.config(2)

	pub, priv, err := scan.GetScanArguments(f.user, f.store, cfg, 30)
	require.NoError(t, err)
	priv.Tickets[0], priv.Tickets[1] = priv.Tickets[1], priv.Tickets[0]

	_, err = scan.PrepareScan(rand.Reader, f.user, cfg, interaction.MembershipData{}, pub, priv)
	require.ErrorIs(t, err, scan.ErrScanOrder)

	// bypassing the native check, a completion claimed over a misordered
	// window does not satisfy the circuit
	in, err := scan.GetScanInteraction(cfg)
	require.NoError(t, err)
	prep, err := interaction.Prepare(rand.Reader, f.user, in, open, nil, 30, interaction.MembershipData{}, pub, priv)
	require.NoError(t, err)
	require.True(t, prep.NewUser.IsScanning())

	claimed := prep.NewUser.Clone()
	claimed.ZK.CallbackHash = claimed.ZK.NewInProgress
	claimed.ZK.OldInProgress = fr.Element{}
	claimed.ZK.NewInProgress = fr.Element{}
	claimed.ZK.IsIngestOver = true
	prep.Assignment.NewUser = claimed.Assign()
	prep.Assignment.NewCom = common.Big(claimed.Commit())
	require.Error(t, common.IsSolved(prep.Template, prep.Assignment))
}

func TestScanPreconditions(t *testing.T) {
	f := newFixture(t)

	_, _, err := scan.GetScanArguments(f.user, f.store, f.config(3), 30)
	require.ErrorIs(t, err, scan.ErrScanRange)

	bad := f.config(1)
	bad.Callbacks = rules[1:]
	_, _, err = scan.GetScanArguments(f.user, f.store, bad, 30)
	require.ErrorIs(t, err, scan.ErrMethodIDs)

	// a forged call result is rejected by the circuit
	f.call(t, 0, 5, 20)
	cfg := f.config(2)
	pub, priv, err := scan.GetScanArguments(f.user, f.store, cfg, 30)
	require.NoError(t, err)
	require.True(t, priv.Tickets[0].Called)
	priv.Tickets[0].EncArgs = enc.Encrypt(f.issued[0].Com.Ticket.EncKey, []fr.Element{common.FromUint64(500)})
	prep, err := scan.PrepareScan(rand.Reader, f.user, cfg, interaction.MembershipData{}, pub, priv)
	require.NoError(t, err)
	require.Equal(t, uint64(500), prep.NewUser.Data.Token2)
	require.Error(t, common.IsSolved(prep.Template, prep.Assignment))
}

func TestNonScanRefusedWhileScanning(t *testing.T) {
	f := newFixture(t)
	cfg := f.config(1)
	pub, priv, err := scan.GetScanArguments(f.user, f.store, cfg, 30)
	require.NoError(t, err)
	prep, err := scan.PrepareScan(rand.Reader, f.user, cfg, interaction.MembershipData{}, pub, priv)
	require.NoError(t, err)
	u := prep.NewUser
	require.True(t, u.IsScanning())
	require.Equal(t, 1, u.ScanStart())

	noop := interaction.Interaction[tokens, object.FieldArgs, object.FieldArgs]{
		Method: func(u object.User[tokens], _, _ object.FieldArgs) object.User[tokens] { return u },
		Predicate: func(api frontend.API, old, new object.UserVar, _, _ []frontend.Variable) (frontend.Variable, error) {
			return 1, nil
		},
	}
	_, err = interaction.Prepare(rand.Reader, &u, noop, open, nil, 30, interaction.MembershipData{}, object.FieldArgs{}, object.FieldArgs{})
	require.ErrorIs(t, err, interaction.ErrScanInProgress)
}

func TestCheckPublic(t *testing.T) {
	f := newFixture(t)
	cfg := f.config(1)

	pub, _, err := scan.GetScanArguments(f.user, f.store, cfg, 50)
	require.NoError(t, err)
	pubArgs := pub.Serialize()

	memb, nmemb, curTime, err := cfg.SplitPub(pubArgs)
	require.NoError(t, err)
	require.Equal(t, f.store.MembershipPub(), memb)
	require.Equal(t, f.store.NonMembershipPub(), nmemb)
	require.Equal(t, common.Time(50), curTime)

	require.NoError(t, cfg.CheckPublic(f.store, pubArgs, 50))
	require.ErrorIs(t, cfg.CheckPublic(f.store, pubArgs, 51), scan.ErrStalePublic)

	// a call moves the gaps to a new epoch
	f.call(t, 0, 5, 20)
	require.ErrorIs(t, cfg.CheckPublic(f.store, pubArgs, 50), scan.ErrStalePublic)

	_, _, _, err = cfg.SplitPub(pubArgs[1:])
	require.Error(t, err)
}
