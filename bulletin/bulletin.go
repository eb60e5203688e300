// Package bulletin defines the public boards a user and the services share:
// the user bulletin holding object commitments and nullifiers, and the
// callback bulletin holding posted calls.
package bulletin

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/mynextid/zk-callbacks/circuits/interaction"
	"github.com/mynextid/zk-callbacks/circuits/scan"
	"github.com/mynextid/zk-callbacks/common"
	"github.com/mynextid/zk-callbacks/crypto/rr"
)

var (
	ErrVerify = errors.New("bulletin verification failed")
	ErrAppend = errors.New("bulletin append failed")
)

type ErrorKind int

const (
	VerifyError ErrorKind = iota
	AppendError
)

func (k ErrorKind) String() string {
	switch k {
	case VerifyError:
		return "verify"
	case AppendError:
		return "append"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// BulError is returned by the verify-and-append operations
type BulError struct {
	Kind ErrorKind
	Err  error
}

func (e *BulError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("bulletin %s error", e.Kind)
	}
	return fmt.Sprintf("bulletin %s error: %v", e.Kind, e.Err)
}

func (e *BulError) Unwrap() error {
	return e.Err
}

// Is matches ErrVerify and ErrAppend by kind
func (e *BulError) Is(target error) bool {
	switch target {
	case ErrVerify:
		return e.Kind == VerifyError
	case ErrAppend:
		return e.Kind == AppendError
	}
	return false
}

// PublicUserBul is the read side of a user bulletin
type PublicUserBul interface {
	VerifyIn(em *interaction.ExecutedMethod, pubArgs, membPub []fr.Element, vk groth16.VerifyingKey) bool
	GetMembershipData(com fr.Element) (interaction.MembershipData, bool)
	Gadget() interaction.Membership
}

// UserBul is a user bulletin that accepts new commitments
type UserBul interface {
	PublicUserBul
	HasNeverReceivedNul(nul fr.Element) bool
	AppendValue(com, nul fr.Element, cbComs, pubArgs []fr.Element, proof groth16.Proof) error
}

// JoinableBulletin registers the commitments of new users
type JoinableBulletin interface {
	JoinBul(com fr.Element) error
}

// PublicCallbackBul is the read side of a callback bulletin
type PublicCallbackBul interface {
	scan.Registry
}

// CallbackBul is a callback bulletin that accepts calls
type CallbackBul interface {
	PublicCallbackBul
	HasNeverReceivedTik(tik rr.PubKey) bool
	AppendValue(tik rr.PubKey, encArgs []fr.Element, tikSig rr.Signature, postTime common.Time) error
}

// VerifyInteractAndAppend appends the result of em only if its proof
// verifies and its nullifier is fresh.
func VerifyInteractAndAppend(bul UserBul, em *interaction.ExecutedMethod, pubArgs, membPub []fr.Element, vk groth16.VerifyingKey) error {
	if !bul.VerifyIn(em, pubArgs, membPub, vk) {
		return &BulError{Kind: VerifyError, Err: errors.New("executed method does not verify")}
	}
	if !bul.HasNeverReceivedNul(em.OldNullifier) {
		return &BulError{Kind: AppendError, Err: fmt.Errorf("nullifier %s already used", common.ElementToHex(em.OldNullifier))}
	}
	if err := bul.AppendValue(em.NewObject, em.OldNullifier, em.CbComList, pubArgs, em.Proof); err != nil {
		return &BulError{Kind: AppendError, Err: err}
	}
	return nil
}

// CallMessage is what a service signs with the ticket key to call it
func CallMessage(encArgs []fr.Element, postTime common.Time) fr.Element {
	return common.Hash(append(append([]fr.Element{}, encArgs...), common.FromUint64(postTime))...)
}

// VerifyCallAndAppend posts a call if the ticket is fresh and the call is
// signed by the ticket key.
func VerifyCallAndAppend(bul CallbackBul, tik rr.PubKey, encArgs []fr.Element, tikSig rr.Signature, postTime common.Time) error {
	if !tik.Verify(CallMessage(encArgs, postTime), tikSig) {
		return &BulError{Kind: VerifyError, Err: errors.New("call is not signed by the ticket key")}
	}
	if !bul.HasNeverReceivedTik(tik) {
		return &BulError{Kind: VerifyError, Err: errors.New("ticket already called")}
	}
	if err := bul.AppendValue(tik, encArgs, tikSig, postTime); err != nil {
		return &BulError{Kind: AppendError, Err: err}
	}
	return nil
}
