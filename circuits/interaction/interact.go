package interaction

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/mynextid/zk-callbacks/common"
	"github.com/mynextid/zk-callbacks/crypto/rr"
	"github.com/mynextid/zk-callbacks/object"
)

// Keygen compiles the circuit of an interaction and runs the setup. The
// sample values only fix the sizes of the data and arguments.
func Keygen[D object.UserData, Pub, Priv object.Args](in Interaction[D, Pub, Priv], memb MembershipConfig, data D, pub Pub, priv Priv) (*common.Keys, error) {
	template, err := newTemplate(in, memb, len(data.Serialize()), len(pub.Serialize()), len(priv.Serialize()))
	if err != nil {
		return nil, err
	}
	keys, err := common.Setup(template)
	if err != nil {
		return nil, fmt.Errorf("interaction keygen: %w", err)
	}
	return keys, nil
}

// Template returns the sized circuit of an interaction, for tools that
// compile or solve it directly.
func Template[D object.UserData, Pub, Priv object.Args](in Interaction[D, Pub, Priv], memb MembershipConfig, data D, pub Pub, priv Priv) (*ExecMethodCircuit, error) {
	return newTemplate(in, memb, len(data.Serialize()), len(pub.Serialize()), len(priv.Serialize()))
}

// Prepared is an interaction computed but not yet proven
type Prepared[D object.UserData] struct {
	NewUser    object.User[D]
	Template   *ExecMethodCircuit
	Assignment *ExecMethodCircuit
	Executed   *ExecutedMethod
}

// Prepare runs the method, issues the tickets and builds the circuit
// assignment. u is not modified.
func Prepare[D object.UserData, Pub, Priv object.Args](
	rng io.Reader,
	u *object.User[D],
	in Interaction[D, Pub, Priv],
	memb MembershipConfig,
	rpks []rr.PubKey,
	curTime common.Time,
	membData MembershipData,
	pub Pub,
	priv Priv,
) (*Prepared[D], error) {
	if len(rpks) != len(in.Callbacks) {
		return nil, fmt.Errorf("%w: %d keys for %d callbacks", ErrCallbackCount, len(rpks), len(in.Callbacks))
	}
	if in.IsScan && len(in.Callbacks) > 0 {
		return nil, ErrScanIssuesCallbacks
	}
	if !in.IsScan && u.IsScanning() {
		return nil, ErrScanInProgress
	}
	for i, cb := range in.Callbacks {
		if cb.Expiration > math.MaxUint64-curTime {
			return nil, fmt.Errorf("%w: callback %d at time %d", ErrExpirationOverflow, i, curTime)
		}
	}

	old := u.Clone()
	newUser := in.Method(u.Clone(), pub, priv)

	nul, err := common.RandomElement(rng)
	if err != nil {
		return nil, fmt.Errorf("nullifier: %w", err)
	}
	comRand, err := common.RandomElement(rng)
	if err != nil {
		return nil, fmt.Errorf("commitment randomness: %w", err)
	}
	newUser.ZK.Nul = nul
	newUser.ZK.ComRand = comRand

	issued, err := issueCallbacks(rng, in.Callbacks, rpks, curTime)
	if err != nil {
		return nil, err
	}
	cbComs := make([]fr.Element, len(issued))
	issuedVars := make([]object.CallbackComVar, len(issued))
	for i, cb := range issued {
		blob, err := object.EncodeCallbackCom(cb.Com)
		if err != nil {
			return nil, err
		}
		newUser.Callbacks = append(newUser.Callbacks, blob)
		newUser.ZK.CallbackHash = object.AddTicketToChain(newUser.ZK.CallbackHash, cb.Com.Ticket)
		cbComs[i] = cb.Com.Commit()
		issuedVars[i] = cb.Com.Assign()
	}
	if !in.IsScan {
		newUser.ZK.OldInProgress = newUser.ZK.CallbackHash
	}

	pubArgs := pub.Serialize()
	privArgs := priv.Serialize()
	dataLen := len(old.Data.Serialize())
	template, err := newTemplate(in, memb, dataLen, len(pubArgs), len(privArgs))
	if err != nil {
		return nil, err
	}

	newCom := newUser.Commit()
	assignment := &ExecMethodCircuit{
		NewCom:   common.Big(newCom),
		OldNul:   common.Big(old.ZK.Nul),
		PubArgs:  common.Vars(pubArgs),
		CbComs:   common.Vars(cbComs),
		CurTime:  curTime,
		MembPub:  []frontend.Variable{},
		OldUser:  old.Assign(),
		NewUser:  newUser.Assign(),
		PrivArgs: common.Vars(privArgs),
		Issued:   issuedVars,
		MembWit:  common.Vars(membData.Witness),
	}
	if !memb.Constant {
		assignment.MembPub = common.Vars(membData.Pub)
	}

	return &Prepared[D]{
		NewUser:    newUser,
		Template:   template,
		Assignment: assignment,
		Executed: &ExecutedMethod{
			NewObject:    newCom,
			OldNullifier: old.ZK.Nul,
			CbTikList:    issued,
			CbComList:    cbComs,
			CurTime:      curTime,
		},
	}, nil
}

// Interact executes in on u and proves it. u is replaced by the new state
// only once the proof has been generated; on any error it is left untouched.
func Interact[D object.UserData, Pub, Priv object.Args](
	rng io.Reader,
	u *object.User[D],
	in Interaction[D, Pub, Priv],
	memb MembershipConfig,
	keys *common.Keys,
	rpks []rr.PubKey,
	curTime common.Time,
	membData MembershipData,
	pub Pub,
	priv Priv,
) (*ExecutedMethod, error) {
	log := common.Logger("interaction")

	prep, err := Prepare(rng, u, in, memb, rpks, curTime, membData, pub, priv)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	proof, err := keys.Prove(prep.Assignment)
	if err != nil {
		log.Debug().Err(err).Bool("scan", in.IsScan).Msg("interaction rejected")
		return nil, err
	}
	log.Debug().
		Bool("scan", in.IsScan).
		Int("callbacks", len(in.Callbacks)).
		Dur("took", time.Since(start)).
		Msg("interaction proven")

	*u = prep.NewUser
	prep.Executed.Proof = proof
	return prep.Executed, nil
}

// VerifyExecuted checks the proof of an executed method. membPub must be nil
// when the membership data was compiled into the circuit.
func VerifyExecuted(vk groth16.VerifyingKey, em *ExecutedMethod, pubArgs, membPub []fr.Element) error {
	if em.Proof == nil {
		return fmt.Errorf("executed method has no proof")
	}
	return common.VerifyProof(vk, em.Proof, PublicAssignment(em, pubArgs, membPub))
}

// PublicAssignment is the public part of the circuit assignment for em
func PublicAssignment(em *ExecutedMethod, pubArgs, membPub []fr.Element) *ExecMethodCircuit {
	return &ExecMethodCircuit{
		NewCom:  common.Big(em.NewObject),
		OldNul:  common.Big(em.OldNullifier),
		PubArgs: common.Vars(pubArgs),
		CbComs:  common.Vars(em.CbComList),
		CurTime: em.CurTime,
		MembPub: common.Vars(membPub),
	}
}
