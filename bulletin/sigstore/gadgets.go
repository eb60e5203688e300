// Package sigstore implements the user and callback bulletins with EdDSA
// signatures. Membership of a value is a signature on it under the store
// key; nonmembership of a ticket is a signed gap between called tickets.
package sigstore

import (
	"slices"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/mynextid/zk-callbacks/common"
	"github.com/mynextid/zk-callbacks/crypto/sig"
	"github.com/mynextid/zk-callbacks/object"
)

// ObjMembership checks a signature on a user commitment
type ObjMembership struct{}

func (ObjMembership) MembershipShape() (int, int) {
	return sig.PublicKeyLen, sig.SignatureLen
}

func (ObjMembership) EnforceMembershipOf(api frontend.API, com frontend.Variable, pub, wit []frontend.Variable) (frontend.Variable, error) {
	return sig.VerifyVar(api, sig.PublicKeyVarFrom(pub), sig.SignatureVarFrom(wit), com)
}

// CallMembership checks the store signature on a posted call
type CallMembership struct{}

func (CallMembership) Shape() (int, int) {
	return sig.PublicKeyLen, sig.SignatureLen
}

func (CallMembership) DummyWitness() []fr.Element {
	return sig.DummySignature().Elements()
}

func (CallMembership) IsCalled(api frontend.API, tik object.CallbackTicketVar, encArgs []frontend.Variable, postTime frontend.Variable, pub, wit []frontend.Variable) (frontend.Variable, error) {
	msg, err := common.HashVars(api, slices.Concat([]frontend.Variable{tik.TikX, tik.TikY}, encArgs, []frontend.Variable{postTime})...)
	if err != nil {
		return nil, err
	}
	return sig.VerifyVar(api, sig.PublicKeyVarFrom(pub), sig.SignatureVarFrom(wit), msg)
}

// callMessage is what the callback store signs for a posted call
func callMessage(tik [2]fr.Element, encArgs []fr.Element, postTime common.Time) fr.Element {
	return common.Hash(slices.Concat(tik[:], encArgs, []fr.Element{common.FromUint64(postTime)})...)
}

// GapNonMembership checks that a ticket id lies strictly inside a gap signed
// for the current epoch. The public data is (A.X, A.Y, epoch), the witness
// (lo, hi, R.X, R.Y, S).
type GapNonMembership struct{}

const gapWitnessLen = 2 + sig.SignatureLen

func (GapNonMembership) Shape() (int, int) {
	return sig.PublicKeyLen + 1, gapWitnessLen
}

func (GapNonMembership) DummyWitness() []fr.Element {
	return append([]fr.Element{{}, {}}, sig.DummySignature().Elements()...)
}

func (GapNonMembership) IsNotCalled(api frontend.API, tik object.CallbackTicketVar, pub, wit []frontend.Variable) (frontend.Variable, error) {
	id, err := object.TicketIDVar(api, tik.TikX, tik.TikY)
	if err != nil {
		return nil, err
	}
	lo, hi := wit[0], wit[1]
	msg, err := common.HashVars(api, lo, hi, pub[sig.PublicKeyLen])
	if err != nil {
		return nil, err
	}
	signed, err := sig.VerifyVar(api, sig.PublicKeyVarFrom(pub[:sig.PublicKeyLen]), sig.SignatureVarFrom(wit[2:]), msg)
	if err != nil {
		return nil, err
	}
	return api.And(signed, common.IsStrictlyBetween(api, lo, id, hi)), nil
}

func gapMessage(lo, hi fr.Element, epoch uint64) fr.Element {
	return common.Hash(lo, hi, common.FromUint64(epoch))
}
