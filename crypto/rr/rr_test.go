package rr_test

import (
	"crypto/rand"
	"testing"

	"github.com/mynextid/zk-callbacks/common"
	"github.com/mynextid/zk-callbacks/crypto/rr"
	"github.com/stretchr/testify/require"
)

func TestRerandomizedKeysSign(t *testing.T) {
	sk, err := rr.GenerateKey(rand.Reader)
	require.NoError(t, err)

	r, err := rr.RandomScalar(rand.Reader)
	require.NoError(t, err)

	tik := sk.PubKey().Rerand(r)
	require.False(t, tik.Equal(sk.PubKey()), "rerandomized key must be unlinkable")

	rsk := sk.Rerand(r)
	require.True(t, rsk.PubKey().Equal(tik))

	msg := common.FromUint64(42)
	sig, err := rsk.Sign(rand.Reader, msg)
	require.NoError(t, err)
	require.True(t, tik.Verify(msg, sig))

	// the base key does not verify for the ticket
	require.False(t, sk.PubKey().Verify(msg, sig))
	require.False(t, tik.Verify(common.FromUint64(43), sig))
}

func TestFromElements(t *testing.T) {
	sk, err := rr.GenerateKey(rand.Reader)
	require.NoError(t, err)

	xy := sk.PubKey().Elements()
	pk, err := rr.FromElements(xy[0], xy[1])
	require.NoError(t, err)
	require.True(t, pk.Equal(sk.PubKey()))

	_, err = rr.FromElements(xy[0], common.FromUint64(5))
	require.ErrorIs(t, err, rr.ErrInvalidKey)
}
