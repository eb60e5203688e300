// Package scan ingests the outstanding callback tickets of a user, applying
// the called ones and dropping expired ones, in batches proven by the
// interaction circuit.
package scan

import (
	"errors"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/mynextid/zk-callbacks/circuits/interaction"
	"github.com/mynextid/zk-callbacks/common"
	"github.com/mynextid/zk-callbacks/crypto/rr"
	"github.com/mynextid/zk-callbacks/object"
)

var (
	ErrScanRange = errors.New("scan batch runs past the outstanding tickets")
	ErrScanOrder = errors.New("scan arguments do not follow the outstanding tickets")
	ErrMethodIDs = interaction.ErrMethodIDs
	// ErrUnknownTicket is returned when the registry can prove neither
	// membership nor nonmembership of a ticket.
	ErrUnknownTicket = errors.New("ticket is neither called nor provably uncalled")
	// ErrStalePublic is returned when scan public arguments do not match
	// the current state of the callback bulletin.
	ErrStalePublic = errors.New("scan public arguments are not current")
)

// CalledGadget proves in the circuit that a ticket was called with the given
// encrypted arguments at postTime. It returns a boolean.
type CalledGadget interface {
	Shape() (pubLen, witLen int)
	// DummyWitness is a well formed witness for tickets that were not called
	DummyWitness() []fr.Element
	IsCalled(api frontend.API, tik object.CallbackTicketVar, encArgs []frontend.Variable, postTime frontend.Variable, pub, wit []frontend.Variable) (frontend.Variable, error)
}

// UncalledGadget proves in the circuit that a ticket has not been called. It
// returns a boolean.
type UncalledGadget interface {
	Shape() (pubLen, witLen int)
	DummyWitness() []fr.Element
	IsNotCalled(api frontend.API, tik object.CallbackTicketVar, pub, wit []frontend.Variable) (frontend.Variable, error)
}

// Registry is the read side of a callback bulletin that a scan needs
type Registry interface {
	// VerifyIn returns the posted call of tik, if any
	VerifyIn(tik rr.PubKey) (encArgs []fr.Element, postTime common.Time, ok bool)
	VerifyNotIn(tik rr.PubKey) bool

	GetMembershipData(tik rr.PubKey) (interaction.MembershipData, bool)
	GetNonMembershipData(tik rr.PubKey) (interaction.MembershipData, bool)
	MembershipPub() []fr.Element
	NonMembershipPub() []fr.Element

	CalledGadget() CalledGadget
	UncalledGadget() UncalledGadget
}
