package interaction

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/mynextid/zk-callbacks/common"
	"github.com/mynextid/zk-callbacks/object"
)

// StatementPredicate is a claim about a single committed user
type StatementPredicate func(api frontend.API, u object.UserVar, pub []frontend.Variable) (frontend.Variable, error)

// StatementCircuit proves a predicate over the user committed in Com and,
// optionally, that Com is in a registry. Nothing is mutated.
type StatementCircuit struct {
	Com     frontend.Variable   `gnark:",public"`
	PubArgs []frontend.Variable `gnark:",public"`
	MembPub []frontend.Variable `gnark:",public"`

	User    object.UserVar
	MembWit []frontend.Variable

	predicate StatementPredicate  `gnark:"-"`
	gadget    Membership          `gnark:"-"`
	membConst []frontend.Variable `gnark:"-"`
}

// NewStatementCircuit sizes a statement circuit. memb is nil for a statement
// without membership.
func NewStatementCircuit(pred StatementPredicate, memb *MembershipConfig, dataLen, pubLen int) (*StatementCircuit, error) {
	if pred == nil {
		return nil, fmt.Errorf("statement has no predicate")
	}
	c := &StatementCircuit{
		User:      object.NewUserVar(dataLen),
		PubArgs:   common.Placeholders(pubLen),
		MembPub:   []frontend.Variable{},
		MembWit:   []frontend.Variable{},
		predicate: pred,
	}
	if memb == nil {
		return c, nil
	}
	if memb.Gadget == nil {
		return nil, fmt.Errorf("membership gadget is required")
	}
	pubLenM, witLen := memb.Gadget.MembershipShape()
	c.gadget = memb.Gadget
	c.MembWit = common.Placeholders(witLen)
	if memb.Constant {
		if len(memb.Pub) != pubLenM {
			return nil, fmt.Errorf("constant membership data: want %d elements, got %d", pubLenM, len(memb.Pub))
		}
		c.membConst = common.Vars(memb.Pub)
	} else {
		c.MembPub = common.Placeholders(pubLenM)
	}
	return c, nil
}

func (c *StatementCircuit) Define(api frontend.API) error {
	com, err := object.CommitVar(api, c.User)
	if err != nil {
		return err
	}
	api.AssertIsEqual(c.Com, com)

	if c.gadget != nil {
		pub := c.MembPub
		if c.membConst != nil {
			pub = c.membConst
		}
		isMember, err := c.gadget.EnforceMembershipOf(api, com, pub, c.MembWit)
		if err != nil {
			return fmt.Errorf("membership: %w", err)
		}
		api.AssertIsEqual(isMember, 1)
	}

	ok, err := c.predicate(api, c.User, c.PubArgs)
	if err != nil {
		return fmt.Errorf("statement: %w", err)
	}
	api.AssertIsEqual(ok, 1)
	return nil
}

// StatementKeygen compiles a statement circuit and runs the setup
func StatementKeygen[D object.UserData](pred StatementPredicate, memb *MembershipConfig, data D, pub object.Args) (*common.Keys, error) {
	template, err := NewStatementCircuit(pred, memb, len(data.Serialize()), len(pub.Serialize()))
	if err != nil {
		return nil, err
	}
	return common.Setup(template)
}

// ProveStatement proves pred over u. The commitment is revealed.
func ProveStatement[D object.UserData](u *object.User[D], keys *common.Keys, pub object.Args) (groth16.Proof, error) {
	return keys.Prove(StatementAssignment(u, pub, nil, nil))
}

// ProveStatementAndIn proves pred over u and that u is in the registry
// described by memb.
func ProveStatementAndIn[D object.UserData](u *object.User[D], keys *common.Keys, pub object.Args, memb MembershipConfig, membData MembershipData) (groth16.Proof, error) {
	return keys.Prove(StatementAssignment(u, pub, &memb, &membData))
}

// StatementAssignment builds the full assignment of a statement circuit
func StatementAssignment[D object.UserData](u *object.User[D], pub object.Args, memb *MembershipConfig, membData *MembershipData) *StatementCircuit {
	c := &StatementCircuit{
		Com:     common.Big(u.Commit()),
		PubArgs: common.Vars(pub.Serialize()),
		MembPub: []frontend.Variable{},
		MembWit: []frontend.Variable{},
		User:    u.Assign(),
	}
	if memb != nil && membData != nil {
		c.MembWit = common.Vars(membData.Witness)
		if !memb.Constant {
			c.MembPub = common.Vars(membData.Pub)
		}
	}
	return c
}

// VerifyStatement verifies a statement proof. membPub is nil for statements
// without membership or with constant membership data.
func VerifyStatement(vk groth16.VerifyingKey, proof groth16.Proof, com fr.Element, pubArgs, membPub []fr.Element) error {
	return common.VerifyProof(vk, proof, &StatementCircuit{
		Com:     common.Big(com),
		PubArgs: common.Vars(pubArgs),
		MembPub: common.Vars(membPub),
	})
}
