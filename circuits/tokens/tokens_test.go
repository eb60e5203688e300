package tokens_test

import (
	"crypto/rand"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/mynextid/zk-callbacks/bulletin/sigstore"
	"github.com/mynextid/zk-callbacks/circuits/interaction"
	"github.com/mynextid/zk-callbacks/circuits/scan"
	"github.com/mynextid/zk-callbacks/circuits/tokens"
	"github.com/mynextid/zk-callbacks/common"
	"github.com/mynextid/zk-callbacks/crypto/rr"
	"github.com/mynextid/zk-callbacks/object"
	"github.com/stretchr/testify/require"
)

func TestIncrementRateLimit(t *testing.T) {
	objs, err := sigstore.NewObjStore(rand.Reader)
	require.NoError(t, err)
	sk, err := rr.GenerateKey(rand.Reader)
	require.NoError(t, err)

	u, err := object.Create(tokens.Data{}, rand.Reader)
	require.NoError(t, err)
	require.NoError(t, objs.JoinBul(u.Commit()))

	for i := range tokens.MaxCount + 1 {
		membData, ok := objs.GetMembershipData(u.Commit())
		require.True(t, ok)
		prep, err := interaction.Prepare(rand.Reader, u, tokens.Increment, objs.MembershipConfig(), []rr.PubKey{sk.PubKey()}, 10, membData, object.FieldArgs{}, object.FieldArgs{})
		require.NoError(t, err)

		err = common.IsSolved(prep.Template, prep.Assignment)
		if i == tokens.MaxCount {
			require.Error(t, err, "increment past the limit")
			break
		}
		require.NoError(t, err, "increment %d", i)
		*u = prep.NewUser
		require.NoError(t, objs.JoinBul(u.Commit()))
	}
	require.Equal(t, uint64(tokens.MaxCount), u.Data.Count)
	require.Equal(t, tokens.MaxCount, u.NumOutstanding())
}

func TestFresh(t *testing.T) {
	u, err := object.Create(tokens.Data{}, rand.Reader)
	require.NoError(t, err)

	template, err := interaction.NewStatementCircuit(tokens.Fresh, nil, 2, 0)
	require.NoError(t, err)
	require.NoError(t, common.IsSolved(template, interaction.StatementAssignment(u, object.FieldArgs{}, nil, nil)))

	used := u.Clone()
	used.Data.Reward = 1
	require.Error(t, common.IsSolved(template, interaction.StatementAssignment(&used, object.FieldArgs{}, nil, nil)))

	scanning := u.Clone()
	scanning.ZK.IsIngestOver = false
	require.Error(t, common.IsSolved(template, interaction.StatementAssignment(&scanning, object.FieldArgs{}, nil, nil)))
}

func TestFreshMember(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup")
	}
	objs, err := sigstore.NewObjStore(rand.Reader)
	require.NoError(t, err)
	memb := objs.MembershipConfig()
	keys, err := interaction.StatementKeygen(tokens.Fresh, &memb, tokens.Data{}, object.FieldArgs{})
	require.NoError(t, err)

	u, err := object.Create(tokens.Data{}, rand.Reader)
	require.NoError(t, err)
	require.NoError(t, objs.JoinBul(u.Commit()))
	membData, ok := objs.GetMembershipData(u.Commit())
	require.True(t, ok)

	proof, err := interaction.ProveStatementAndIn(u, keys, object.FieldArgs{}, memb, membData)
	require.NoError(t, err)
	require.NoError(t, interaction.VerifyStatement(keys.VerifyingKey, proof, u.Commit(), nil, objs.MembershipPub()))

	// a user the store never signed cannot prove membership
	stranger, err := object.Create(tokens.Data{}, rand.Reader)
	require.NoError(t, err)
	_, err = interaction.ProveStatementAndIn(stranger, keys, object.FieldArgs{}, memb, membData)
	require.ErrorIs(t, err, interaction.ErrUnsatisfied)

	require.NoError(t, objs.RotateKey())

	// the old proof names the old key
	require.Error(t, interaction.VerifyStatement(keys.VerifyingKey, proof, u.Commit(), nil, objs.MembershipPub()))

	// the old witness does not verify under the new key
	stale := interaction.MembershipData{Pub: objs.MembershipPub(), Witness: membData.Witness}
	_, err = interaction.ProveStatementAndIn(u, keys, object.FieldArgs{}, memb, stale)
	require.ErrorIs(t, err, interaction.ErrUnsatisfied)

	current, ok := objs.GetMembershipData(u.Commit())
	require.True(t, ok)
	proof, err = interaction.ProveStatementAndIn(u, keys, object.FieldArgs{}, memb, current)
	require.NoError(t, err)
	require.NoError(t, interaction.VerifyStatement(keys.VerifyingKey, proof, u.Commit(), nil, objs.MembershipPub()))
}

func TestReward(t *testing.T) {
	u := object.User[tokens.Data]{Data: tokens.Data{Count: 2, Reward: 3}}
	got := tokens.Reward.Method(u, []fr.Element{common.FromUint64(4)})
	require.Equal(t, tokens.Data{Count: 2, Reward: 7}, got.Data)
}

func TestScanConfig(t *testing.T) {
	calls, err := sigstore.NewCallbackStore(rand.Reader)
	require.NoError(t, err)
	objs, err := sigstore.NewObjStore(rand.Reader)
	require.NoError(t, err)

	cfg := tokens.ScanConfig(calls.CalledGadget(), calls.UncalledGadget(), objs.MembershipConfig())
	_, err = scan.GetScanInteraction(cfg)
	require.NoError(t, err)
	template, err := scan.Template(cfg, tokens.Data{})
	require.NoError(t, err)
	require.Len(t, template.CbComs, 0)
}
