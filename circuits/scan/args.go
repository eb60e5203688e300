package scan

import (
	"fmt"
	"slices"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/mynextid/zk-callbacks/circuits/interaction"
	"github.com/mynextid/zk-callbacks/common"
	"github.com/mynextid/zk-callbacks/object"
)

// PubScanArgs are the public arguments of a scan batch. Callbacks are bound
// into the keys and are not part of the serialization.
type PubScanArgs[D object.UserData] struct {
	MembPub    []fr.Element
	NmembPub   []fr.Element
	MembConst  bool
	NmembConst bool
	CurTime    common.Time

	Callbacks []interaction.Callback[D]
}

// Serialize returns memb_pub ++ nmemb_pub ++ cur_time, leaving out the parts
// compiled into the circuit.
func (p PubScanArgs[D]) Serialize() []fr.Element {
	var out []fr.Element
	if !p.MembConst {
		out = append(out, p.MembPub...)
	}
	if !p.NmembConst {
		out = append(out, p.NmembPub...)
	}
	return append(out, common.FromUint64(p.CurTime))
}

// ScannedTicket is one outstanding ticket with the bulletin evidence about it
type ScannedTicket struct {
	Com object.CallbackCom
	// Called is informational; the circuit derives it from the witnesses
	Called   bool
	EncArgs  []fr.Element
	PostTime common.Time
	MembWit  []fr.Element
	NmembWit []fr.Element
}

func (t ScannedTicket) serialize() []fr.Element {
	return slices.Concat(
		t.Com.Ticket.Serialize(),
		[]fr.Element{t.Com.ComRand},
		t.EncArgs,
		[]fr.Element{common.FromUint64(t.PostTime)},
		t.MembWit,
		t.NmembWit,
	)
}

// PrivScanArgs are the private arguments of a scan batch, one entry per
// scanned ticket in callback order.
type PrivScanArgs struct {
	Tickets []ScannedTicket
}

func (p PrivScanArgs) Serialize() []fr.Element {
	var out []fr.Element
	for _, t := range p.Tickets {
		out = append(out, t.serialize()...)
	}
	return out
}

// layout is the shape of the serialized scan arguments
type layout struct {
	argsLen     int
	membPubLen  int
	membWitLen  int
	nmembPubLen int
	nmembWitLen int
	membConst   bool
	nmembConst  bool
}

func (l layout) ticketLen() int {
	return object.TicketLen + 1 + l.argsLen + 1 + l.membWitLen + l.nmembWitLen
}

func (l layout) pubLen() int {
	n := 1
	if !l.membConst {
		n += l.membPubLen
	}
	if !l.nmembConst {
		n += l.nmembPubLen
	}
	return n
}

// TicketVar is a ScannedTicket inside the circuit
type TicketVar struct {
	Com      object.CallbackComVar
	EncArgs  []frontend.Variable
	PostTime frontend.Variable
	MembWit  []frontend.Variable
	NmembWit []frontend.Variable
}

func (l layout) readTicket(v []frontend.Variable) TicketVar {
	off := 0
	take := func(n int) []frontend.Variable {
		s := v[off : off+n]
		off += n
		return s
	}
	var t TicketVar
	t.Com.Ticket = object.TicketVarFrom(take(object.TicketLen))
	t.Com.ComRand = take(1)[0]
	t.EncArgs = take(l.argsLen)
	t.PostTime = take(1)[0]
	t.MembWit = take(l.membWitLen)
	t.NmembWit = take(l.nmembWitLen)
	return t
}

// readPriv splits the private argument vector into tickets
func (l layout) readPriv(priv []frontend.Variable) ([]TicketVar, error) {
	tl := l.ticketLen()
	if len(priv)%tl != 0 {
		return nil, fmt.Errorf("private scan arguments: %d elements is not a multiple of %d", len(priv), tl)
	}
	out := make([]TicketVar, 0, len(priv)/tl)
	for off := 0; off < len(priv); off += tl {
		out = append(out, l.readTicket(priv[off:off+tl]))
	}
	return out, nil
}

// readPub returns the membership and nonmembership public data and the
// current time. Constant parts come from the config.
func (l layout) readPub(pub []frontend.Variable, membConst, nmembConst []frontend.Variable) (memb, nmemb []frontend.Variable, curTime frontend.Variable, err error) {
	if len(pub) != l.pubLen() {
		return nil, nil, nil, fmt.Errorf("public scan arguments: want %d elements, got %d", l.pubLen(), len(pub))
	}
	off := 0
	if l.membConst {
		memb = membConst
	} else {
		memb = pub[off : off+l.membPubLen]
		off += l.membPubLen
	}
	if l.nmembConst {
		nmemb = nmembConst
	} else {
		nmemb = pub[off : off+l.nmembPubLen]
		off += l.nmembPubLen
	}
	return memb, nmemb, pub[off], nil
}

// SplitPub splits serialized public scan arguments into the membership and
// nonmembership public data and the current time. Constant parts come from
// cfg.
func (cfg Config[D]) SplitPub(pubArgs []fr.Element) (memb, nmemb []fr.Element, curTime common.Time, err error) {
	l, err := cfg.layout()
	if err != nil {
		return nil, nil, 0, err
	}
	if len(pubArgs) != l.pubLen() {
		return nil, nil, 0, fmt.Errorf("public scan arguments: want %d elements, got %d", l.pubLen(), len(pubArgs))
	}
	off := 0
	if l.membConst {
		memb = cfg.MembPub
	} else {
		memb = pubArgs[off : off+l.membPubLen]
		off += l.membPubLen
	}
	if l.nmembConst {
		nmemb = cfg.NmembPub
	} else {
		nmemb = pubArgs[off : off+l.nmembPubLen]
		off += l.nmembPubLen
	}
	if !pubArgs[off].IsUint64() {
		return nil, nil, 0, fmt.Errorf("scan time does not fit in 64 bits")
	}
	return memb, nmemb, pubArgs[off].Uint64(), nil
}

// CheckPublic requires the public scan arguments to name the current public
// data of reg and curTime, the time the executed method was proven at.
func (cfg Config[D]) CheckPublic(reg Registry, pubArgs []fr.Element, curTime common.Time) error {
	memb, nmemb, t, err := cfg.SplitPub(pubArgs)
	if err != nil {
		return err
	}
	switch {
	case !slices.Equal(memb, reg.MembershipPub()):
		return fmt.Errorf("%w: membership data", ErrStalePublic)
	case !slices.Equal(nmemb, reg.NonMembershipPub()):
		return fmt.Errorf("%w: nonmembership data", ErrStalePublic)
	case t != curTime:
		return fmt.Errorf("%w: scan time %d, proven at %d", ErrStalePublic, t, curTime)
	}
	return nil
}
