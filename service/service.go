// Package service is the service side of the protocol: it approves executed
// interactions, keeps the tickets they issued and calls them.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"runtime"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/mynextid/zk-callbacks/bulletin"
	"github.com/mynextid/zk-callbacks/circuits/interaction"
	"github.com/mynextid/zk-callbacks/common"
	"github.com/mynextid/zk-callbacks/crypto/enc"
	"github.com/mynextid/zk-callbacks/crypto/rr"
	"github.com/mynextid/zk-callbacks/object"
	"golang.org/x/sync/errgroup"
)

var (
	ErrProof            = errors.New("executed method proof does not verify")
	ErrTicketCount      = errors.New("executed method carries the wrong number of tickets")
	ErrTicketRule       = errors.New("ticket does not follow its rule")
	ErrTicketCommitment = errors.New("ticket does not match its commitment")
	ErrTicketKey        = errors.New("ticket key is not derived from the service key")
	ErrTicketSeen       = errors.New("ticket already issued")
	ErrUnknownTicket    = errors.New("ticket not held by this service")
	ErrTicketCalled     = errors.New("ticket already called")
)

// StoredTicket is a ticket the service can call
type StoredTicket struct {
	Com      object.CallbackCom
	Rand     *big.Int
	IssuedAt common.Time
	Called   bool
}

// ServiceProvider holds the service key and the tickets issued to it
type ServiceProvider[D object.UserData] struct {
	mu      sync.RWMutex
	sk      rr.SecretKey
	tickets map[fr.Element]*StoredTicket
}

func New[D object.UserData](rng io.Reader) (*ServiceProvider[D], error) {
	sk, err := rr.GenerateKey(rng)
	if err != nil {
		return nil, err
	}
	return &ServiceProvider[D]{sk: sk, tickets: make(map[fr.Element]*StoredTicket)}, nil
}

// PubKey is the key users rerandomize into tickets for this service
func (sp *ServiceProvider[D]) PubKey() rr.PubKey {
	return sp.sk.PubKey()
}

// ApproveInteraction verifies em and every ticket it issued to this
// service. rules are the callbacks of the interaction, in issuance order.
func (sp *ServiceProvider[D]) ApproveInteraction(em *interaction.ExecutedMethod, rules []interaction.Callback[D], pubArgs, membPub []fr.Element, vk groth16.VerifyingKey) error {
	if len(em.CbTikList) != len(rules) || len(em.CbComList) != len(rules) {
		return fmt.Errorf("%w: %d tickets, %d commitments for %d rules", ErrTicketCount, len(em.CbTikList), len(em.CbComList), len(rules))
	}
	if err := interaction.VerifyExecuted(vk, em, pubArgs, membPub); err != nil {
		return fmt.Errorf("%w: %v", ErrProof, err)
	}

	sp.mu.RLock()
	defer sp.mu.RUnlock()
	for i, cb := range em.CbTikList {
		if err := sp.checkTicket(cb, rules[i], em.CbComList[i], em.CurTime); err != nil {
			return fmt.Errorf("ticket %d: %w", i, err)
		}
	}
	return nil
}

func (sp *ServiceProvider[D]) checkTicket(cb interaction.IssuedCallback, rule interaction.Callback[D], com fr.Element, curTime common.Time) error {
	tk := cb.Com.Ticket
	if tk.MethodID != rule.MethodID || tk.Expirable != rule.Expirable || tk.Expiration != rule.Expiration+curTime {
		return ErrTicketRule
	}
	if cb.Com.Commit() != com {
		return ErrTicketCommitment
	}
	if cb.Rand == nil || !sp.sk.Rerand(cb.Rand).PubKey().Equal(tk.Tik) {
		return ErrTicketKey
	}
	if _, seen := sp.tickets[object.TicketID(tk.Tik)]; seen {
		return ErrTicketSeen
	}
	return nil
}

// StoreInteraction keeps the tickets of an approved interaction
func (sp *ServiceProvider[D]) StoreInteraction(em *interaction.ExecutedMethod) error {
	return sp.store(em)
}

// store keeps the tickets of every em, or none of them if any ticket is
// already held or repeats within ems.
func (sp *ServiceProvider[D]) store(ems ...*interaction.ExecutedMethod) error {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	batch := make(map[fr.Element]struct{})
	for _, em := range ems {
		for _, cb := range em.CbTikList {
			if cb.Rand == nil {
				return ErrTicketKey
			}
			id := object.TicketID(cb.Com.Ticket.Tik)
			_, held := sp.tickets[id]
			_, repeated := batch[id]
			if held || repeated {
				return fmt.Errorf("%w: %s", ErrTicketSeen, common.ElementToHex(id))
			}
			batch[id] = struct{}{}
		}
	}
	for _, em := range ems {
		for _, cb := range em.CbTikList {
			sp.tickets[object.TicketID(cb.Com.Ticket.Tik)] = &StoredTicket{
				Com:      cb.Com,
				Rand:     new(big.Int).Set(cb.Rand),
				IssuedAt: em.CurTime,
			}
		}
	}
	return nil
}

func (sp *ServiceProvider[D]) ApproveInteractionAndStore(em *interaction.ExecutedMethod, rules []interaction.Callback[D], pubArgs, membPub []fr.Element, vk groth16.VerifyingKey) error {
	if err := sp.ApproveInteraction(em, rules, pubArgs, membPub, vk); err != nil {
		return err
	}
	return sp.StoreInteraction(em)
}

// Approval is one executed method awaiting approval
type Approval[D object.UserData] struct {
	Executed *interaction.ExecutedMethod
	Rules    []interaction.Callback[D]
	PubArgs  []fr.Element
	MembPub  []fr.Element
	VK       groth16.VerifyingKey
}

// ApproveAll verifies independent executed methods concurrently and stores
// the tickets of all of them if every one is approved and no ticket repeats
// across the batch. Otherwise nothing is stored.
func (sp *ServiceProvider[D]) ApproveAll(ctx context.Context, batch []Approval[D]) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, a := range batch {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := sp.ApproveInteraction(a.Executed, a.Rules, a.PubArgs, a.MembPub, a.VK); err != nil {
				return fmt.Errorf("executed method %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	ems := make([]*interaction.ExecutedMethod, len(batch))
	for i, a := range batch {
		ems[i] = a.Executed
	}
	return sp.store(ems...)
}

// Ticket returns the stored ticket with the given Tik
func (sp *ServiceProvider[D]) Ticket(tik rr.PubKey) (StoredTicket, bool) {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	t, ok := sp.tickets[object.TicketID(tik)]
	if !ok {
		return StoredTicket{}, false
	}
	return *t, true
}

// Call encrypts args under the ticket key, signs them with the ticket
// secret key and posts the call to cbul.
func (sp *ServiceProvider[D]) Call(rng io.Reader, tik rr.PubKey, args []fr.Element, curTime common.Time, cbul bulletin.CallbackBul) error {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	t, ok := sp.tickets[object.TicketID(tik)]
	if !ok {
		return ErrUnknownTicket
	}
	if t.Called {
		return ErrTicketCalled
	}

	encArgs := enc.Encrypt(t.Com.Ticket.EncKey, args)
	tikSig, err := sp.sk.Rerand(t.Rand).Sign(rng, bulletin.CallMessage(encArgs, curTime))
	if err != nil {
		return fmt.Errorf("sign call: %w", err)
	}
	if err := bulletin.VerifyCallAndAppend(cbul, tik, encArgs, tikSig, curTime); err != nil {
		return err
	}
	t.Called = true

	common.Logger("service").Debug().
		Uint64("method", t.Com.Ticket.MethodID).
		Uint64("time", curTime).
		Msg("ticket called")
	return nil
}
