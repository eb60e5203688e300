package object

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/mynextid/zk-callbacks/common"
	"github.com/mynextid/zk-callbacks/crypto/rr"
)

// TicketLen is the number of elements a CallbackTicket serializes to
const TicketLen = 6

// CallbackTicket is one issued callback. Tik is the handle given to the
// service, the rest is known only to the user until the ticket is called.
type CallbackTicket struct {
	Tik       rr.PubKey
	MethodID  uint64
	Expirable bool
	// Expiration is absolute: rule expiration plus issuance time
	Expiration common.Time
	EncKey     fr.Element
}

func (t CallbackTicket) Serialize() []fr.Element {
	xy := t.Tik.Elements()
	return []fr.Element{
		xy[0],
		xy[1],
		common.FromUint64(t.MethodID),
		common.BoolElement(t.Expirable),
		common.FromUint64(t.Expiration),
		t.EncKey,
	}
}

// Same reports whether both tickets are the same issued instance
func (t CallbackTicket) Same(other CallbackTicket) bool {
	return t.Tik.Equal(other.Tik)
}

func (t CallbackTicket) Assign() CallbackTicketVar {
	return TicketVarFrom(common.Vars(t.Serialize()))
}

type CallbackTicketVar struct {
	TikX       frontend.Variable
	TikY       frontend.Variable
	MethodID   frontend.Variable
	Expirable  frontend.Variable
	Expiration frontend.Variable
	EncKey     frontend.Variable
}

// TicketVarFrom reads a ticket laid out as in CallbackTicket.Serialize
func TicketVarFrom(v []frontend.Variable) CallbackTicketVar {
	return CallbackTicketVar{
		TikX:       v[0],
		TikY:       v[1],
		MethodID:   v[2],
		Expirable:  v[3],
		Expiration: v[4],
		EncKey:     v[5],
	}
}

func (t CallbackTicketVar) Serialize() []frontend.Variable {
	return []frontend.Variable{t.TikX, t.TikY, t.MethodID, t.Expirable, t.Expiration, t.EncKey}
}

// CallbackCom is a ticket with the randomness hiding its commitment
type CallbackCom struct {
	Ticket  CallbackTicket
	ComRand fr.Element
}

// Commit returns H(ticket ++ com_rand)
func (c CallbackCom) Commit() fr.Element {
	return common.Hash(append(c.Ticket.Serialize(), c.ComRand)...)
}

func (c CallbackCom) Assign() CallbackComVar {
	return CallbackComVar{Ticket: c.Ticket.Assign(), ComRand: common.Big(c.ComRand)}
}

type CallbackComVar struct {
	Ticket  CallbackTicketVar
	ComRand frontend.Variable
}

func CommitTicketVar(api frontend.API, c CallbackComVar) (frontend.Variable, error) {
	return common.HashVars(api, append(c.Ticket.Serialize(), c.ComRand)...)
}

// AddTicketToChain folds a ticket into a hash chain: H(chain ++ ticket)
func AddTicketToChain(chain fr.Element, t CallbackTicket) fr.Element {
	return common.Hash(append([]fr.Element{chain}, t.Serialize()...)...)
}

func AddTicketToChainVar(api frontend.API, chain frontend.Variable, t CallbackTicketVar) (frontend.Variable, error) {
	return common.HashVars(api, append([]frontend.Variable{chain}, t.Serialize()...)...)
}

// TicketID is the identity registries index a ticket by
func TicketID(tik rr.PubKey) fr.Element {
	xy := tik.Elements()
	return common.Hash(xy[0], xy[1])
}

func TicketIDVar(api frontend.API, tikX, tikY frontend.Variable) (frontend.Variable, error) {
	return common.HashVars(api, tikX, tikY)
}
