package interaction

import (
	"fmt"

	"github.com/consensys/gnark/frontend"
	"github.com/mynextid/zk-callbacks/common"
	"github.com/mynextid/zk-callbacks/object"
)

// ExecMethodCircuit proves that NewCom commits to the result of a valid
// transition from a registered user whose nullifier is OldNul, and that
// CbComs commit to correctly formed tickets.
type ExecMethodCircuit struct {
	NewCom  frontend.Variable   `gnark:",public"`
	OldNul  frontend.Variable   `gnark:",public"`
	PubArgs []frontend.Variable `gnark:",public"`
	CbComs  []frontend.Variable `gnark:",public"`
	CurTime frontend.Variable   `gnark:",public"`
	// MembPub is empty when the registry data is constant
	MembPub []frontend.Variable `gnark:",public"`

	OldUser  object.UserVar
	NewUser  object.UserVar
	PrivArgs []frontend.Variable
	Issued   []object.CallbackComVar
	MembWit  []frontend.Variable

	rules     []rule              `gnark:"-"`
	predicate Predicate           `gnark:"-"`
	gadget    Membership          `gnark:"-"`
	membConst []frontend.Variable `gnark:"-"`
	isScan    bool                `gnark:"-"`
}

// newTemplate sizes a circuit for the given interaction
func newTemplate[D object.UserData, Pub, Priv object.Args](in Interaction[D, Pub, Priv], memb MembershipConfig, dataLen, pubLen, privLen int) (*ExecMethodCircuit, error) {
	if in.Predicate == nil {
		return nil, fmt.Errorf("interaction has no predicate")
	}
	if memb.Gadget == nil {
		return nil, fmt.Errorf("membership gadget is required")
	}
	membPubLen, membWitLen := memb.Gadget.MembershipShape()

	c := &ExecMethodCircuit{
		PubArgs:   common.Placeholders(pubLen),
		CbComs:    common.Placeholders(len(in.Callbacks)),
		OldUser:   object.NewUserVar(dataLen),
		NewUser:   object.NewUserVar(dataLen),
		PrivArgs:  common.Placeholders(privLen),
		Issued:    make([]object.CallbackComVar, len(in.Callbacks)),
		MembWit:   common.Placeholders(membWitLen),
		rules:     rulesOf(in.Callbacks),
		predicate: in.Predicate,
		gadget:    memb.Gadget,
		isScan:    in.IsScan,
	}
	if memb.Constant {
		if len(memb.Pub) != membPubLen {
			return nil, fmt.Errorf("constant membership data: want %d elements, got %d", membPubLen, len(memb.Pub))
		}
		c.MembPub = []frontend.Variable{}
		c.membConst = common.Vars(memb.Pub)
	} else {
		c.MembPub = common.Placeholders(membPubLen)
	}
	return c, nil
}

func (c *ExecMethodCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(c.OldNul, c.OldUser.ZK.Nul)
	api.AssertIsBoolean(c.NewUser.ZK.IsIngestOver)

	// the old state is registered
	oldCom, err := object.CommitVar(api, c.OldUser)
	if err != nil {
		return err
	}
	membPub := c.MembPub
	if c.membConst != nil {
		membPub = c.membConst
	}
	isMember, err := c.gadget.EnforceMembershipOf(api, oldCom, membPub, c.MembWit)
	if err != nil {
		return fmt.Errorf("membership: %w", err)
	}
	api.AssertIsEqual(isMember, 1)

	newCom, err := object.CommitVar(api, c.NewUser)
	if err != nil {
		return err
	}
	api.AssertIsEqual(c.NewCom, newCom)

	// issued tickets follow their rules and are folded in order
	chain := c.OldUser.ZK.CallbackHash
	for i := range c.Issued {
		cb := c.Issued[i]
		com, err := object.CommitTicketVar(api, cb)
		if err != nil {
			return err
		}
		api.AssertIsEqual(c.CbComs[i], com)

		r := c.rules[i]
		api.AssertIsEqual(cb.Ticket.MethodID, r.methodID)
		api.AssertIsEqual(cb.Ticket.Expirable, r.expirable)
		api.AssertIsEqual(cb.Ticket.Expiration, api.Add(c.CurTime, r.expiration))

		chain, err = object.AddTicketToChainVar(api, chain, cb.Ticket)
		if err != nil {
			return err
		}
	}

	if !c.isScan {
		api.AssertIsEqual(c.OldUser.ZK.IsIngestOver, 1)
		api.AssertIsEqual(c.NewUser.ZK.IsIngestOver, 1)
		api.AssertIsEqual(c.NewUser.ZK.CallbackHash, chain)
		api.AssertIsEqual(c.NewUser.ZK.OldInProgress, chain)
		api.AssertIsEqual(c.NewUser.ZK.NewInProgress, c.OldUser.ZK.NewInProgress)
	}

	ok, err := c.predicate(api, c.OldUser, c.NewUser, c.PubArgs, c.PrivArgs)
	if err != nil {
		return fmt.Errorf("predicate: %w", err)
	}
	api.AssertIsEqual(ok, 1)

	return nil
}
