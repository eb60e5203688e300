// Package sig wraps EdDSA over the BN254 twisted Edwards curve with MiMC as
// the challenge hash, so signatures can be checked inside circuits.
package sig

import (
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	nativemimc "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	"github.com/mynextid/zk-callbacks/common"
)

const (
	// PublicKeyLen is the number of field elements of a serialized key
	PublicKeyLen = 2
	// SignatureLen is the number of field elements of a serialized signature
	SignatureLen = 3
)

type PublicKey struct {
	A twistededwards.PointAffine
}

type Signature struct {
	R twistededwards.PointAffine
	S *big.Int
}

// KeyPair is a signing key
type KeyPair struct {
	priv *eddsa.PrivateKey
}

func GenerateKey(rng io.Reader) (*KeyPair, error) {
	priv, err := eddsa.GenerateKey(rng)
	if err != nil {
		return nil, fmt.Errorf("eddsa keygen: %w", err)
	}
	return &KeyPair{priv: priv}, nil
}

func (k *KeyPair) Public() PublicKey {
	return PublicKey{A: k.priv.PublicKey.A}
}

// Sign signs one field element
func (k *KeyPair) Sign(msg fr.Element) (Signature, error) {
	b := msg.Bytes()
	raw, err := k.priv.Sign(b[:], nativemimc.NewMiMC())
	if err != nil {
		return Signature{}, fmt.Errorf("eddsa sign: %w", err)
	}
	var s eddsa.Signature
	if _, err := s.SetBytes(raw); err != nil {
		return Signature{}, fmt.Errorf("eddsa signature: %w", err)
	}
	return Signature{R: s.R, S: new(big.Int).SetBytes(s.S[:])}, nil
}

func (pk PublicKey) Verify(msg fr.Element, sig Signature) bool {
	if sig.S == nil || sig.S.Sign() < 0 || sig.S.BitLen() > 256 {
		return false
	}
	var s eddsa.Signature
	s.R = sig.R
	sig.S.FillBytes(s.S[:])

	pub := eddsa.PublicKey{A: pk.A}
	b := msg.Bytes()
	ok, err := pub.Verify(s.Bytes(), b[:], nativemimc.NewMiMC())
	return err == nil && ok
}

// Elements returns (A.X, A.Y)
func (pk PublicKey) Elements() []fr.Element {
	return []fr.Element{pk.A.X, pk.A.Y}
}

// Elements returns (R.X, R.Y, S)
func (s Signature) Elements() []fr.Element {
	var S fr.Element
	if s.S != nil {
		S.SetBigInt(s.S)
	}
	return []fr.Element{s.R.X, s.R.Y, S}
}

// DummySignature is a well formed placeholder witness that never verifies.
// R is the identity so the in-circuit point arithmetic stays defined.
func DummySignature() Signature {
	return Signature{
		R: twistededwards.PointAffine{X: fr.Element{}, Y: fr.One()},
		S: new(big.Int),
	}
}

// SignatureFromElements is the inverse of Signature.Elements
func SignatureFromElements(es []fr.Element) (Signature, error) {
	if len(es) != SignatureLen {
		return Signature{}, fmt.Errorf("signature: want %d elements, got %d", SignatureLen, len(es))
	}
	return Signature{
		R: twistededwards.PointAffine{X: es[0], Y: es[1]},
		S: common.Big(es[2]),
	}, nil
}

// PublicKeyFromElements is the inverse of PublicKey.Elements
func PublicKeyFromElements(es []fr.Element) (PublicKey, error) {
	if len(es) != PublicKeyLen {
		return PublicKey{}, fmt.Errorf("public key: want %d elements, got %d", PublicKeyLen, len(es))
	}
	p := twistededwards.PointAffine{X: es[0], Y: es[1]}
	if !p.IsOnCurve() {
		return PublicKey{}, fmt.Errorf("public key not on curve")
	}
	return PublicKey{A: p}, nil
}
