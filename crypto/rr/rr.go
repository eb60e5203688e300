// Package rr implements rerandomizable Schnorr keys on the BN254 twisted
// Edwards curve. A service publishes one key; every callback ticket carries a
// fresh multiple of it that only the service can sign for.
package rr

import (
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"
	"github.com/mynextid/zk-callbacks/common"
)

var ErrInvalidKey = errors.New("rr: invalid public key")

// PubKey is a rerandomizable verification key
type PubKey struct {
	Point twistededwards.PointAffine
}

// SecretKey holds the scalar of a key and its public point
type SecretKey struct {
	Scalar *big.Int
	Pub    PubKey
}

// Signature is a Schnorr signature (R, S) with S = k + e*sk
type Signature struct {
	R twistededwards.PointAffine
	S *big.Int
}

// RandomScalar samples a non-zero scalar modulo the subgroup order
func RandomScalar(rng io.Reader) (*big.Int, error) {
	params := twistededwards.GetEdwardsCurve()
	buf, err := common.GenerateRandomBytes(rng, 48)
	if err != nil {
		return nil, err
	}
	s := new(big.Int).SetBytes(buf)
	s.Mod(s, &params.Order)
	if s.Sign() == 0 {
		s.SetInt64(1)
	}
	return s, nil
}

func GenerateKey(rng io.Reader) (SecretKey, error) {
	s, err := RandomScalar(rng)
	if err != nil {
		return SecretKey{}, fmt.Errorf("rr keygen: %w", err)
	}
	return newSecretKey(s), nil
}

func newSecretKey(s *big.Int) SecretKey {
	params := twistededwards.GetEdwardsCurve()
	var p twistededwards.PointAffine
	p.ScalarMultiplication(&params.Base, s)
	return SecretKey{Scalar: s, Pub: PubKey{Point: p}}
}

func (sk SecretKey) PubKey() PubKey {
	return sk.Pub
}

// Rerand maps the key to r*sk. Its public key equals Pub.Rerand(r).
func (sk SecretKey) Rerand(r *big.Int) SecretKey {
	params := twistededwards.GetEdwardsCurve()
	s := new(big.Int).Mul(sk.Scalar, r)
	s.Mod(s, &params.Order)
	return newSecretKey(s)
}

// Rerand maps the key to r*pk
func (pk PubKey) Rerand(r *big.Int) PubKey {
	var p twistededwards.PointAffine
	p.ScalarMultiplication(&pk.Point, r)
	return PubKey{Point: p}
}

func (pk PubKey) Equal(other PubKey) bool {
	return pk.Point.Equal(&other.Point)
}

// Elements returns the coordinates (X, Y)
func (pk PubKey) Elements() [2]fr.Element {
	return [2]fr.Element{pk.Point.X, pk.Point.Y}
}

// FromElements rebuilds a key from its coordinates, checking it is on the curve
func FromElements(x, y fr.Element) (PubKey, error) {
	p := twistededwards.PointAffine{X: x, Y: y}
	if !p.IsOnCurve() {
		return PubKey{}, ErrInvalidKey
	}
	return PubKey{Point: p}, nil
}

// Sign signs a single field element
func (sk SecretKey) Sign(rng io.Reader, msg fr.Element) (Signature, error) {
	params := twistededwards.GetEdwardsCurve()
	k, err := RandomScalar(rng)
	if err != nil {
		return Signature{}, fmt.Errorf("rr sign: %w", err)
	}
	var R twistededwards.PointAffine
	R.ScalarMultiplication(&params.Base, k)

	e := challenge(R, sk.Pub, msg)
	s := new(big.Int).Mul(e, sk.Scalar)
	s.Add(s, k)
	s.Mod(s, &params.Order)
	return Signature{R: R, S: s}, nil
}

// Verify checks S*G == R + e*pk
func (pk PubKey) Verify(msg fr.Element, sig Signature) bool {
	if sig.S == nil || !pk.Point.IsOnCurve() || !sig.R.IsOnCurve() {
		return false
	}
	params := twistededwards.GetEdwardsCurve()
	if sig.S.Cmp(&params.Order) >= 0 {
		return false
	}
	var lhs, rhs, eA twistededwards.PointAffine
	lhs.ScalarMultiplication(&params.Base, sig.S)
	eA.ScalarMultiplication(&pk.Point, challenge(sig.R, pk, msg))
	rhs.Add(&sig.R, &eA)
	return lhs.Equal(&rhs)
}

func challenge(R twistededwards.PointAffine, pk PubKey, msg fr.Element) *big.Int {
	params := twistededwards.GetEdwardsCurve()
	h := common.Hash(R.X, R.Y, pk.Point.X, pk.Point.Y, msg)
	e := common.Big(h)
	return e.Mod(e, &params.Order)
}
