// Package object holds the committed user state and the callback tickets
// issued against it, with their canonical field serializations.
package object

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/mynextid/zk-callbacks/common"
)

// ZKFieldsLen is the number of elements ZKFields serializes to
const ZKFieldsLen = 6

// ZKFields is the protocol bookkeeping committed alongside the user data
type ZKFields struct {
	// Nul is revealed and retired on every state transition
	Nul     fr.Element
	ComRand fr.Element
	// CallbackHash is the hash chain over the outstanding tickets
	CallbackHash fr.Element
	// NewInProgress and OldInProgress are only meaningful while scanning
	NewInProgress fr.Element
	OldInProgress fr.Element
	IsIngestOver  bool
}

// Serialize flattens the fields in wire order
func (z ZKFields) Serialize() []fr.Element {
	return []fr.Element{
		z.Nul,
		z.ComRand,
		z.CallbackHash,
		z.NewInProgress,
		z.OldInProgress,
		common.BoolElement(z.IsIngestOver),
	}
}

// Assign returns the circuit assignment of the fields
func (z ZKFields) Assign() ZKFieldsVar {
	v := common.Vars(z.Serialize())
	return ZKFieldsVar{
		Nul:           v[0],
		ComRand:       v[1],
		CallbackHash:  v[2],
		NewInProgress: v[3],
		OldInProgress: v[4],
		IsIngestOver:  v[5],
	}
}

type ZKFieldsVar struct {
	Nul           frontend.Variable
	ComRand       frontend.Variable
	CallbackHash  frontend.Variable
	NewInProgress frontend.Variable
	OldInProgress frontend.Variable
	IsIngestOver  frontend.Variable
}

func (z ZKFieldsVar) Serialize() []frontend.Variable {
	return []frontend.Variable{
		z.Nul,
		z.ComRand,
		z.CallbackHash,
		z.NewInProgress,
		z.OldInProgress,
		z.IsIngestOver,
	}
}
