package sig

import (
	"fmt"

	tedwards "github.com/consensys/gnark-crypto/ecc/twistededwards"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/native/twistededwards"
	"github.com/mynextid/zk-callbacks/common"
)

type PublicKeyVar struct {
	A twistededwards.Point
}

type SignatureVar struct {
	R twistededwards.Point
	S frontend.Variable
}

// PublicKeyVarFrom reads a key laid out as in PublicKey.Elements
func PublicKeyVarFrom(vars []frontend.Variable) PublicKeyVar {
	return PublicKeyVar{A: twistededwards.Point{X: vars[0], Y: vars[1]}}
}

// SignatureVarFrom reads a signature laid out as in Signature.Elements
func SignatureVarFrom(vars []frontend.Variable) SignatureVar {
	return SignatureVar{R: twistededwards.Point{X: vars[0], Y: vars[1]}, S: vars[2]}
}

// VerifyVar checks an EdDSA signature on msg and returns 1 if it is valid
// and 0 otherwise. Unlike eddsa.Verify from the gnark std library it does
// not assert, so it can be combined with other conditions.
func VerifyVar(api frontend.API, pk PublicKeyVar, sig SignatureVar, msg frontend.Variable) (frontend.Variable, error) {
	curve, err := twistededwards.NewEdCurve(api, tedwards.BN254)
	if err != nil {
		return nil, fmt.Errorf("twisted edwards curve: %w", err)
	}

	hRAM, err := common.HashVars(api, sig.R.X, sig.R.Y, pk.A.X, pk.A.Y, msg)
	if err != nil {
		return nil, err
	}

	params := curve.Params()
	base := twistededwards.Point{X: params.Base[0], Y: params.Base[1]}

	// [S]G - [H(R,A,M)]A - R
	Q := curve.DoubleBaseScalarMul(base, curve.Neg(pk.A), sig.S, hRAM)
	Q = curve.Add(curve.Neg(Q), sig.R)

	if !params.Cofactor.IsUint64() {
		return nil, fmt.Errorf("unsupported cofactor %s", params.Cofactor)
	}
	for c := params.Cofactor.Uint64(); c > 1; c >>= 1 {
		Q = curve.Double(Q)
	}

	return api.And(api.IsZero(Q.X), api.IsZero(api.Sub(Q.Y, 1))), nil
}
