package api

import (
	"github.com/consensys/gnark/frontend"
	"github.com/mynextid/zk-callbacks/bulletin/sigstore"
	"github.com/mynextid/zk-callbacks/circuits/interaction"
	"github.com/mynextid/zk-callbacks/circuits/scan"
	"github.com/mynextid/zk-callbacks/circuits/tokens"
	"github.com/mynextid/zk-callbacks/object"
)

const (
	CircuitJoin      = "join"
	CircuitIncrement = "increment"
	CircuitScan      = "scan"
)

// UserMembership is how every bundled circuit checks the user bulletin. The
// store key rotates, so its public key is a public input.
var UserMembership = interaction.MembershipConfig{Gadget: sigstore.ObjMembership{}}

// ScanConfig is the bundled reward scan over a signature callback store
var ScanConfig = tokens.ScanConfig(sigstore.CallMembership{}, sigstore.GapNonMembership{}, UserMembership)

var CircuitList = map[string]CircuitInfo{
	CircuitJoin: {
		Name:    CircuitJoin,
		Version: 1,
		Template: func() (frontend.Circuit, error) {
			return interaction.NewStatementCircuit(tokens.Fresh, nil, len(tokens.Data{}.Serialize()), 0)
		},
	},
	CircuitIncrement: {
		Name:    CircuitIncrement,
		Version: 1,
		Template: func() (frontend.Circuit, error) {
			return interaction.Template(tokens.Increment, UserMembership, tokens.Data{}, object.FieldArgs{}, object.FieldArgs{})
		},
	},
	CircuitScan: {
		Name:    CircuitScan,
		Version: 1,
		Template: func() (frontend.Circuit, error) {
			return scan.Template(ScanConfig, tokens.Data{})
		},
	},
}
