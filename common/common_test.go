package common_test

import (
	"crypto/rand"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/test"
	"github.com/mynextid/zk-callbacks/common"
	"github.com/stretchr/testify/require"
)

type hashCircuit struct {
	In  [3]frontend.Variable
	Out frontend.Variable `gnark:",public"`
}

func (c *hashCircuit) Define(api frontend.API) error {
	h, err := common.HashVars(api, c.In[:]...)
	if err != nil {
		return err
	}
	api.AssertIsEqual(h, c.Out)
	return nil
}

func TestHashMatchesCircuit(t *testing.T) {
	a, err := common.RandomElement(rand.Reader)
	require.NoError(t, err)
	b := common.FromUint64(7)
	c := common.BoolElement(true)

	out := common.Hash(a, b, c)
	assignment := &hashCircuit{
		In:  [3]frontend.Variable{common.Big(a), common.Big(b), common.Big(c)},
		Out: common.Big(out),
	}
	require.NoError(t, test.IsSolved(&hashCircuit{}, assignment, ecc.BN254.ScalarField()))

	// order matters
	require.NotEqual(t, out, common.Hash(b, a, c))
	bad := &hashCircuit{
		In:  [3]frontend.Variable{common.Big(b), common.Big(a), common.Big(c)},
		Out: common.Big(out),
	}
	require.Error(t, test.IsSolved(&hashCircuit{}, bad, ecc.BN254.ScalarField()))
}

type compareCircuit struct {
	A, B      frontend.Variable
	IsGreater frontend.Variable `gnark:",public"`
}

func (c *compareCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(common.IsGreater64(api, c.A, c.B), c.IsGreater)
	return nil
}

func TestIsGreater64(t *testing.T) {
	cases := []struct {
		a, b    uint64
		greater int
	}{
		{a: 301, b: 300, greater: 1},
		{a: 300, b: 300, greater: 0},
		{a: 0, b: 1, greater: 0},
		{a: 1 << 63, b: (1 << 63) - 1, greater: 1},
		{a: ^uint64(0), b: 0, greater: 1},
	}
	for _, tc := range cases {
		assignment := &compareCircuit{A: tc.a, B: tc.b, IsGreater: tc.greater}
		require.NoError(t, test.IsSolved(&compareCircuit{}, assignment, ecc.BN254.ScalarField()), "%d > %d", tc.a, tc.b)
	}

	// operands wider than 64 bits cannot be decomposed
	wide := common.Big(common.FromUint64(1))
	wide.Lsh(wide, 70)
	assignment := &compareCircuit{A: wide, B: 0, IsGreater: 1}
	require.Error(t, test.IsSolved(&compareCircuit{}, assignment, ecc.BN254.ScalarField()))
}

type betweenCircuit struct {
	Lo, X, Hi frontend.Variable
	Inside    frontend.Variable `gnark:",public"`
}

func (c *betweenCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(common.IsStrictlyBetween(api, c.Lo, c.X, c.Hi), c.Inside)
	return nil
}

func TestIsStrictlyBetween(t *testing.T) {
	cases := []struct {
		lo, x, hi uint64
		inside    int
	}{
		{lo: 1, x: 5, hi: 9, inside: 1},
		{lo: 1, x: 1, hi: 9, inside: 0},
		{lo: 1, x: 9, hi: 9, inside: 0},
		{lo: 5, x: 2, hi: 9, inside: 0},
	}
	for _, tc := range cases {
		assignment := &betweenCircuit{Lo: tc.lo, X: tc.x, Hi: tc.hi, Inside: tc.inside}
		require.NoError(t, test.IsSolved(&betweenCircuit{}, assignment, ecc.BN254.ScalarField()))
	}
}

func TestElementHex(t *testing.T) {
	e, err := common.RandomElement(rand.Reader)
	require.NoError(t, err)

	s := common.ElementToHex(e)
	back, err := common.ElementFromHex(s)
	require.NoError(t, err)
	require.True(t, back.Equal(&e))

	_, err = common.ElementFromHex("0xzz")
	require.Error(t, err)
	_, err = common.ElementFromHex("0x" + "ff" + s[2:])
	require.Error(t, err)
}

func TestSetupProveVerify(t *testing.T) {
	dir := t.TempDir()
	keys, err := common.InitCircuit(dir+"/hash.ccs", dir+"/hash.pk", dir+"/hash.vk", true, &hashCircuit{})
	require.NoError(t, err)

	a := common.FromUint64(1)
	b := common.FromUint64(2)
	c := common.FromUint64(3)
	assignment := &hashCircuit{
		In:  [3]frontend.Variable{1, 2, 3},
		Out: common.Big(common.Hash(a, b, c)),
	}
	require.NoError(t, common.TestCircuit(assignment, keys))

	// loading the stored setup gives working keys
	loaded, err := common.InitCircuit(dir+"/hash.ccs", dir+"/hash.pk", dir+"/hash.vk", false, &hashCircuit{})
	require.NoError(t, err)
	require.NoError(t, common.TestCircuit(assignment, loaded))

	wrong := &hashCircuit{In: [3]frontend.Variable{1, 2, 4}, Out: assignment.Out}
	_, err = keys.Prove(wrong)
	require.ErrorIs(t, err, common.ErrUnsatisfied)

	_, err = common.InitCircuit("../escape/x.ccs", dir+"/a.pk", dir+"/a.vk", false, &hashCircuit{})
	require.Error(t, err)
}

// funcCircuit carries its check as a func field, like the interaction
// circuits do
type funcCircuit struct {
	X frontend.Variable `gnark:",public"`

	check func(api frontend.API, x frontend.Variable) `gnark:"-"`
}

func (c *funcCircuit) Define(api frontend.API) error {
	c.check(api, c.X)
	return nil
}

func TestIsSolvedWithFuncFields(t *testing.T) {
	isSeven := func(api frontend.API, x frontend.Variable) { api.AssertIsEqual(x, 7) }
	template := &funcCircuit{check: isSeven}

	require.NoError(t, common.IsSolved(template, &funcCircuit{X: 7}))
	require.ErrorIs(t, common.IsSolved(template, &funcCircuit{X: 8}), common.ErrUnsatisfied)

	ccs, err := common.Compile(&funcCircuit{check: isSeven})
	require.NoError(t, err)
	keys := &common.Keys{CS: ccs}
	_, err = keys.Prove(&funcCircuit{X: 8})
	require.ErrorIs(t, err, common.ErrUnsatisfied)
}
