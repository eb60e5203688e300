package sig_test

import (
	"crypto/rand"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/test"
	"github.com/mynextid/zk-callbacks/common"
	"github.com/mynextid/zk-callbacks/crypto/sig"
	"github.com/stretchr/testify/require"
)

type verifyCircuit struct {
	Pub   [sig.PublicKeyLen]frontend.Variable `gnark:",public"`
	Msg   frontend.Variable                   `gnark:",public"`
	Sig   [sig.SignatureLen]frontend.Variable
	Valid frontend.Variable `gnark:",public"`
}

func (c *verifyCircuit) Define(api frontend.API) error {
	ok, err := sig.VerifyVar(api, sig.PublicKeyVarFrom(c.Pub[:]), sig.SignatureVarFrom(c.Sig[:]), c.Msg)
	if err != nil {
		return err
	}
	api.AssertIsEqual(ok, c.Valid)
	return nil
}

func assign(pub sig.PublicKey, msg uint64, s sig.Signature, valid int) *verifyCircuit {
	c := &verifyCircuit{Msg: msg, Valid: valid}
	copy(c.Pub[:], common.Vars(pub.Elements()))
	copy(c.Sig[:], common.Vars(s.Elements()))
	return c
}

func TestSignVerify(t *testing.T) {
	kp, err := sig.GenerateKey(rand.Reader)
	require.NoError(t, err)

	s, err := kp.Sign(common.FromUint64(11))
	require.NoError(t, err)
	require.True(t, kp.Public().Verify(common.FromUint64(11), s))
	require.False(t, kp.Public().Verify(common.FromUint64(12), s))
	require.False(t, kp.Public().Verify(common.FromUint64(11), sig.DummySignature()))

	back, err := sig.SignatureFromElements(s.Elements())
	require.NoError(t, err)
	require.True(t, kp.Public().Verify(common.FromUint64(11), back))

	pk, err := sig.PublicKeyFromElements(kp.Public().Elements())
	require.NoError(t, err)
	require.True(t, pk.Verify(common.FromUint64(11), s))
}

func TestVerifyVar(t *testing.T) {
	kp, err := sig.GenerateKey(rand.Reader)
	require.NoError(t, err)
	s, err := kp.Sign(common.FromUint64(11))
	require.NoError(t, err)

	field := ecc.BN254.ScalarField()
	require.NoError(t, test.IsSolved(&verifyCircuit{}, assign(kp.Public(), 11, s, 1), field))

	// wrong message and placeholder signatures evaluate to false without
	// making the circuit unsatisfiable
	require.NoError(t, test.IsSolved(&verifyCircuit{}, assign(kp.Public(), 12, s, 0), field))
	require.NoError(t, test.IsSolved(&verifyCircuit{}, assign(kp.Public(), 11, sig.DummySignature(), 0), field))

	// claiming validity of a wrong signature fails
	require.Error(t, test.IsSolved(&verifyCircuit{}, assign(kp.Public(), 12, s, 1), field))
}
