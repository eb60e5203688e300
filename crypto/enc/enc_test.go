package enc_test

import (
	"crypto/rand"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/test"
	"github.com/mynextid/zk-callbacks/common"
	"github.com/mynextid/zk-callbacks/crypto/enc"
	"github.com/stretchr/testify/require"
)

type decryptCircuit struct {
	Key frontend.Variable
	Ct  [2]frontend.Variable
	Msg [2]frontend.Variable `gnark:",public"`
}

func (c *decryptCircuit) Define(api frontend.API) error {
	msg, err := enc.DecryptVars(api, c.Key, c.Ct[:])
	if err != nil {
		return err
	}
	for i := range msg {
		api.AssertIsEqual(msg[i], c.Msg[i])
	}
	return nil
}

func TestEncryptDecrypt(t *testing.T) {
	key, err := enc.NewKey(rand.Reader)
	require.NoError(t, err)

	msg := []fr.Element{common.FromUint64(5), common.FromUint64(9)}
	ct := enc.Encrypt(key, msg)
	require.NotEqual(t, msg, ct)
	require.Equal(t, msg, enc.Decrypt(key, ct))

	other, err := enc.NewKey(rand.Reader)
	require.NoError(t, err)
	require.NotEqual(t, msg, enc.Decrypt(other, ct))

	assignment := &decryptCircuit{
		Key: common.Big(key),
		Ct:  [2]frontend.Variable{common.Big(ct[0]), common.Big(ct[1])},
		Msg: [2]frontend.Variable{5, 9},
	}
	require.NoError(t, test.IsSolved(&decryptCircuit{}, assignment, ecc.BN254.ScalarField()))

	assignment.Key = common.Big(other)
	require.Error(t, test.IsSolved(&decryptCircuit{}, assignment, ecc.BN254.ScalarField()))
}
