package sigstore

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/mynextid/zk-callbacks/circuits/interaction"
	"github.com/mynextid/zk-callbacks/common"
	"github.com/mynextid/zk-callbacks/crypto/sig"
)

var (
	ErrNullifierSeen = errors.New("nullifier already used")
	ErrAlreadyJoined = errors.New("commitment already in the bulletin")
)

// ObjRecord is one accepted user commitment
type ObjRecord struct {
	Com    fr.Element
	OldNul fr.Element
	CbComs []fr.Element
	Sig    sig.Signature
	// Joined marks commitments of freshly created users
	Joined bool
}

// ObjStore is a user bulletin. Every accepted commitment is signed with the
// store key, and a user proves membership with that signature.
type ObjStore struct {
	mu   sync.RWMutex
	rng  io.Reader
	key  *sig.KeyPair
	recs []ObjRecord
	// index maps a commitment to its record
	index map[fr.Element]int
	nuls  map[fr.Element]struct{}
}

func NewObjStore(rng io.Reader) (*ObjStore, error) {
	key, err := sig.GenerateKey(rng)
	if err != nil {
		return nil, err
	}
	return &ObjStore{
		rng:   rng,
		key:   key,
		index: make(map[fr.Element]int),
		nuls:  make(map[fr.Element]struct{}),
	}, nil
}

func (s *ObjStore) PublicKey() sig.PublicKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key.Public()
}

// MembershipPub is the public membership data: the store key
func (s *ObjStore) MembershipPub() []fr.Element {
	return s.PublicKey().Elements()
}

func (s *ObjStore) Gadget() interaction.Membership {
	return ObjMembership{}
}

// MembershipConfig is the circuit configuration matching this store. The
// key is a public input so it can be rotated without new circuit keys.
func (s *ObjStore) MembershipConfig() interaction.MembershipConfig {
	return interaction.MembershipConfig{Gadget: ObjMembership{}}
}

func (s *ObjStore) GetMembershipData(com fr.Element) (interaction.MembershipData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[com]
	if !ok {
		return interaction.MembershipData{}, false
	}
	return interaction.MembershipData{
		Pub:     s.key.Public().Elements(),
		Witness: s.recs[i].Sig.Elements(),
	}, true
}

// VerifyIn checks the proof of em against the current store key
func (s *ObjStore) VerifyIn(em *interaction.ExecutedMethod, pubArgs, membPub []fr.Element, vk groth16.VerifyingKey) bool {
	log := common.Logger("sigstore")
	if membPub != nil && !slices.Equal(membPub, s.MembershipPub()) {
		log.Debug().Msg("executed method proven against a stale store key")
		return false
	}
	if err := interaction.VerifyExecuted(vk, em, pubArgs, membPub); err != nil {
		log.Debug().Err(err).Msg("executed method rejected")
		return false
	}
	return true
}

func (s *ObjStore) HasNeverReceivedNul(nul fr.Element) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, seen := s.nuls[nul]
	return !seen
}

// AppendValue signs and stores com. The nullifier is checked again under
// the write lock.
func (s *ObjStore) AppendValue(com, nul fr.Element, cbComs, pubArgs []fr.Element, proof groth16.Proof) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.nuls[nul]; seen {
		return fmt.Errorf("%w: %s", ErrNullifierSeen, common.ElementToHex(nul))
	}
	signature, err := s.key.Sign(com)
	if err != nil {
		return fmt.Errorf("sign commitment: %w", err)
	}
	s.nuls[nul] = struct{}{}
	s.put(ObjRecord{Com: com, OldNul: nul, CbComs: slices.Clone(cbComs), Sig: signature})
	return nil
}

// JoinBul registers the commitment of a new user
func (s *ObjStore) JoinBul(com fr.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[com]; ok {
		return ErrAlreadyJoined
	}
	signature, err := s.key.Sign(com)
	if err != nil {
		return fmt.Errorf("sign commitment: %w", err)
	}
	s.put(ObjRecord{Com: com, Sig: signature, Joined: true})
	return nil
}

func (s *ObjStore) put(r ObjRecord) {
	s.index[r.Com] = len(s.recs)
	s.recs = append(s.recs, r)
}

// RotateKey replaces the store key and signs every commitment again.
// Membership witnesses obtained before the rotation stop verifying.
func (s *ObjStore) RotateKey() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, err := sig.GenerateKey(s.rng)
	if err != nil {
		return err
	}
	sigs := make([]sig.Signature, len(s.recs))
	for i := range s.recs {
		if sigs[i], err = key.Sign(s.recs[i].Com); err != nil {
			return fmt.Errorf("re-sign commitment %d: %w", i, err)
		}
	}
	s.key = key
	for i := range s.recs {
		s.recs[i].Sig = sigs[i]
	}
	common.Logger("sigstore").Debug().Int("commitments", len(s.recs)).Msg("object store key rotated")
	return nil
}

// Records returns a copy of the accepted commitments in append order
func (s *ObjStore) Records() []ObjRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.recs)
}
