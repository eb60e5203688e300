package sigstore

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/mynextid/zk-callbacks/circuits/interaction"
	"github.com/mynextid/zk-callbacks/circuits/scan"
	"github.com/mynextid/zk-callbacks/common"
	"github.com/mynextid/zk-callbacks/crypto/rr"
	"github.com/mynextid/zk-callbacks/crypto/sig"
	"github.com/mynextid/zk-callbacks/object"
)

var ErrTicketCalled = errors.New("ticket already called")

// Call is a posted callback
type Call struct {
	Tik      rr.PubKey
	EncArgs  []fr.Element
	PostTime common.Time
	// TikSig is the service signature authorizing the call
	TikSig rr.Signature
	// Sig is the store signature proving membership
	Sig sig.Signature
}

// CallbackStore is a callback bulletin. Posted calls are signed with the
// store key; every called ticket id also goes into a RangeStore so uncalled
// tickets can be proven as such.
type CallbackStore struct {
	mu    sync.RWMutex
	rng   io.Reader
	key   *sig.KeyPair
	calls map[fr.Element]*Call
	order []fr.Element
	nmemb *RangeStore
}

func NewCallbackStore(rng io.Reader) (*CallbackStore, error) {
	key, err := sig.GenerateKey(rng)
	if err != nil {
		return nil, err
	}
	nmemb, err := NewRangeStore(rng)
	if err != nil {
		return nil, err
	}
	return &CallbackStore{
		rng:   rng,
		key:   key,
		calls: make(map[fr.Element]*Call),
		nmemb: nmemb,
	}, nil
}

var _ scan.Registry = (*CallbackStore)(nil)

func (s *CallbackStore) CalledGadget() scan.CalledGadget {
	return CallMembership{}
}

func (s *CallbackStore) UncalledGadget() scan.UncalledGadget {
	return GapNonMembership{}
}

// MembershipPub is the store key
func (s *CallbackStore) MembershipPub() []fr.Element {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key.Public().Elements()
}

func (s *CallbackStore) NonMembershipPub() []fr.Element {
	return s.nmemb.NonMembershipPub()
}

func (s *CallbackStore) VerifyIn(tik rr.PubKey) ([]fr.Element, common.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.calls[object.TicketID(tik)]
	if !ok {
		return nil, 0, false
	}
	return slices.Clone(c.EncArgs), c.PostTime, true
}

func (s *CallbackStore) VerifyNotIn(tik rr.PubKey) bool {
	return s.nmemb.VerifyNotIn(tik)
}

func (s *CallbackStore) GetMembershipData(tik rr.PubKey) (interaction.MembershipData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.calls[object.TicketID(tik)]
	if !ok {
		return interaction.MembershipData{}, false
	}
	return interaction.MembershipData{
		Pub:     s.key.Public().Elements(),
		Witness: c.Sig.Elements(),
	}, true
}

func (s *CallbackStore) GetNonMembershipData(tik rr.PubKey) (interaction.MembershipData, bool) {
	return s.nmemb.GetNonMembershipData(tik)
}

func (s *CallbackStore) HasNeverReceivedTik(tik rr.PubKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.calls[object.TicketID(tik)]
	return !ok
}

// AppendValue posts a call. The ticket is checked again under the write
// lock, then signed and inserted into the nonmembership store.
func (s *CallbackStore) AppendValue(tik rr.PubKey, encArgs []fr.Element, tikSig rr.Signature, postTime common.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := object.TicketID(tik)
	if _, ok := s.calls[id]; ok {
		return fmt.Errorf("%w: %s", ErrTicketCalled, common.ElementToHex(id))
	}
	signature, err := s.key.Sign(callMessage(tik.Elements(), encArgs, postTime))
	if err != nil {
		return fmt.Errorf("sign call: %w", err)
	}
	if err := s.nmemb.Insert(id); err != nil {
		return err
	}
	s.calls[id] = &Call{
		Tik:      tik,
		EncArgs:  slices.Clone(encArgs),
		PostTime: postTime,
		TikSig:   tikSig,
		Sig:      signature,
	}
	s.order = append(s.order, id)
	return nil
}

// Calls returns the posted calls in posting order
func (s *CallbackStore) Calls() []Call {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Call, len(s.order))
	for i, id := range s.order {
		out[i] = *s.calls[id]
	}
	return out
}

// RotateKey replaces the membership key, re-signs every call and rotates
// the nonmembership store as well.
func (s *CallbackStore) RotateKey() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, err := sig.GenerateKey(s.rng)
	if err != nil {
		return err
	}
	sigs := make(map[fr.Element]sig.Signature, len(s.calls))
	for id, c := range s.calls {
		if sigs[id], err = key.Sign(callMessage(c.Tik.Elements(), c.EncArgs, c.PostTime)); err != nil {
			return fmt.Errorf("re-sign call: %w", err)
		}
	}
	if err := s.nmemb.RotateKey(); err != nil {
		return err
	}
	s.key = key
	for id, c := range s.calls {
		c.Sig = sigs[id]
	}
	return nil
}
