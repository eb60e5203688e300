// Package interaction executes a method on a committed user, proves the
// transition in a groth16 circuit and issues callback tickets.
package interaction

import (
	"errors"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/mynextid/zk-callbacks/common"
	"github.com/mynextid/zk-callbacks/object"
)

var (
	ErrCallbackCount       = errors.New("one service key is required per issued callback")
	ErrScanInProgress      = errors.New("a scan is in progress")
	ErrScanIssuesCallbacks = errors.New("scan interactions cannot issue callbacks")
	ErrExpirationOverflow  = errors.New("ticket expiration does not fit in 64 bits")
	ErrUnsatisfied         = common.ErrUnsatisfied
	ErrProve               = common.ErrProve
)

// Predicate decides in the circuit whether old -> new is a valid transition.
// It returns a boolean variable.
type Predicate func(api frontend.API, old, new object.UserVar, pub, priv []frontend.Variable) (frontend.Variable, error)

// Interaction is a method with its predicate and the callbacks issued every
// time it runs.
type Interaction[D object.UserData, Pub, Priv object.Args] struct {
	Method    func(u object.User[D], pub Pub, priv Priv) object.User[D]
	Predicate Predicate
	Callbacks []Callback[D]
	// IsScan marks the scan interaction, which manages the callback
	// accumulators itself.
	IsScan bool
}

// Membership is the in-circuit check that a commitment is in a registry
type Membership interface {
	// MembershipShape is the number of elements of the public data and of
	// the witness.
	MembershipShape() (pubLen, witLen int)
	EnforceMembershipOf(api frontend.API, com frontend.Variable, pub, wit []frontend.Variable) (frontend.Variable, error)
}

// MembershipConfig fixes how a circuit checks membership. When Constant is
// set, Pub is compiled into the circuit and omitted from the public inputs.
type MembershipConfig struct {
	Gadget   Membership
	Constant bool
	Pub      []fr.Element
}

// MembershipData is what a registry returns for a commitment
type MembershipData struct {
	Pub     []fr.Element
	Witness []fr.Element
}

// ExecutedMethod is the transaction a prover hands to a verifier
type ExecutedMethod struct {
	NewObject    fr.Element
	OldNullifier fr.Element
	CbTikList    []IssuedCallback
	CbComList    []fr.Element
	CurTime      common.Time
	Proof        groth16.Proof
}
