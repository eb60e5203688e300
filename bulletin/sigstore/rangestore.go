package sigstore

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/mynextid/zk-callbacks/circuits/interaction"
	"github.com/mynextid/zk-callbacks/common"
	"github.com/mynextid/zk-callbacks/crypto/rr"
	"github.com/mynextid/zk-callbacks/crypto/sig"
	"github.com/mynextid/zk-callbacks/object"
)

var ErrAlreadyInserted = errors.New("ticket id already in the range store")

type gap struct {
	lo, hi fr.Element
	sig    sig.Signature
}

// RangeStore proves nonmembership of ticket ids. It keeps the called ids
// sorted and signs every gap between neighbours together with an epoch; the
// epoch moves on every insert so gaps signed earlier stop verifying.
type RangeStore struct {
	mu    sync.RWMutex
	rng   io.Reader
	key   *sig.KeyPair
	epoch uint64
	ids   []fr.Element
	// gaps[i] is (ids[i-1], ids[i]) with 0 and p-1 at the ends
	gaps []gap
}

func NewRangeStore(rng io.Reader) (*RangeStore, error) {
	key, err := sig.GenerateKey(rng)
	if err != nil {
		return nil, err
	}
	s := &RangeStore{rng: rng, key: key}
	if err := s.resign(); err != nil {
		return nil, err
	}
	return s, nil
}

func fieldMax() fr.Element {
	var m fr.Element
	m.SetOne()
	m.Neg(&m)
	return m
}

// resign signs all gaps for the current epoch. Callers hold the write lock.
func (s *RangeStore) resign() error {
	bounds := make([]fr.Element, 0, len(s.ids)+2)
	bounds = append(bounds, fr.Element{})
	bounds = append(bounds, s.ids...)
	bounds = append(bounds, fieldMax())

	gaps := make([]gap, len(bounds)-1)
	for i := range gaps {
		lo, hi := bounds[i], bounds[i+1]
		signature, err := s.key.Sign(gapMessage(lo, hi, s.epoch))
		if err != nil {
			return fmt.Errorf("sign gap %d: %w", i, err)
		}
		gaps[i] = gap{lo: lo, hi: hi, sig: signature}
	}
	s.gaps = gaps
	return nil
}

// search returns the position of id in ids and whether it is present
func (s *RangeStore) search(id fr.Element) (int, bool) {
	return slices.BinarySearchFunc(s.ids, id, func(a, b fr.Element) int {
		return a.Cmp(&b)
	})
}

// Insert records id as called and starts a new epoch
func (s *RangeStore) Insert(id fr.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, found := s.search(id)
	if found {
		return fmt.Errorf("%w: %s", ErrAlreadyInserted, common.ElementToHex(id))
	}
	s.ids = slices.Insert(s.ids, pos, id)
	s.epoch++
	if err := s.resign(); err != nil {
		return err
	}
	common.Logger("sigstore").Debug().Uint64("epoch", s.epoch).Int("ids", len(s.ids)).Msg("range store updated")
	return nil
}

func (s *RangeStore) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// NonMembershipPub is (A.X, A.Y, epoch)
func (s *RangeStore) NonMembershipPub() []fr.Element {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pub()
}

func (s *RangeStore) pub() []fr.Element {
	return append(s.key.Public().Elements(), common.FromUint64(s.epoch))
}

// Contains reports whether id has been inserted
func (s *RangeStore) Contains(id fr.Element) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, found := s.search(id)
	return found
}

// NonMembershipOf returns the signed gap strictly containing id
func (s *RangeStore) NonMembershipOf(id fr.Element) (interaction.MembershipData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, found := s.search(id)
	if found {
		return interaction.MembershipData{}, false
	}
	g := s.gaps[pos]
	// ids at the very ends of the field have no strict gap
	if id.Equal(&g.lo) || id.Equal(&g.hi) {
		return interaction.MembershipData{}, false
	}
	return interaction.MembershipData{
		Pub:     s.pub(),
		Witness: append([]fr.Element{g.lo, g.hi}, g.sig.Elements()...),
	}, true
}

func (s *RangeStore) VerifyNotIn(tik rr.PubKey) bool {
	return !s.Contains(object.TicketID(tik))
}

func (s *RangeStore) GetNonMembershipData(tik rr.PubKey) (interaction.MembershipData, bool) {
	return s.NonMembershipOf(object.TicketID(tik))
}

// RotateKey replaces the signing key and re-signs every gap
func (s *RangeStore) RotateKey() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, err := sig.GenerateKey(s.rng)
	if err != nil {
		return err
	}
	old := s.key
	s.key = key
	if err := s.resign(); err != nil {
		s.key = old
		return err
	}
	return nil
}

// VerifyNonMembership checks a nonmembership witness for id natively
func VerifyNonMembership(pub, wit []fr.Element, id fr.Element) bool {
	if len(pub) != sig.PublicKeyLen+1 || len(wit) != gapWitnessLen {
		return false
	}
	pk, err := sig.PublicKeyFromElements(pub[:sig.PublicKeyLen])
	if err != nil {
		return false
	}
	signature, err := sig.SignatureFromElements(wit[2:])
	if err != nil {
		return false
	}
	lo, hi := wit[0], wit[1]
	msg := common.Hash(lo, hi, pub[sig.PublicKeyLen])
	return pk.Verify(msg, signature) && lo.Cmp(&id) < 0 && id.Cmp(&hi) < 0
}
