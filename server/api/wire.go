package api

import (
	"encoding/base64"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"
	"github.com/mynextid/zk-callbacks/circuits/interaction"
	"github.com/mynextid/zk-callbacks/common"
	"github.com/mynextid/zk-callbacks/crypto/rr"
	"github.com/mynextid/zk-callbacks/object"
)

// InteractionRequest is the CBOR body of POST /users/interactions. The ticket
// list of the executed method stays with the service and is not posted.
type InteractionRequest struct {
	// Key is the fingerprint of the verifying key
	Key          string   `cbor:"1,keyasint"`
	NewObject    []byte   `cbor:"2,keyasint"`
	OldNullifier []byte   `cbor:"3,keyasint"`
	CbComs       [][]byte `cbor:"4,keyasint"`
	CurTime      uint64   `cbor:"5,keyasint"`
	PubArgs      [][]byte `cbor:"6,keyasint"`
	MembPub      [][]byte `cbor:"7,keyasint"`
	Proof        []byte   `cbor:"8,keyasint"`
}

func NewInteractionRequest(key string, em *interaction.ExecutedMethod, pubArgs, membPub []fr.Element) (*InteractionRequest, error) {
	proof, err := common.ProofBytes(em.Proof)
	if err != nil {
		return nil, err
	}
	return &InteractionRequest{
		Key:          key,
		NewObject:    object.ElementBytes(em.NewObject),
		OldNullifier: object.ElementBytes(em.OldNullifier),
		CbComs:       object.ElementsBytes(em.CbComList),
		CurTime:      em.CurTime,
		PubArgs:      object.ElementsBytes(pubArgs),
		MembPub:      object.ElementsBytes(membPub),
		Proof:        proof,
	}, nil
}

// Decode rebuilds the executed method and its public arguments
func (r *InteractionRequest) Decode() (*interaction.ExecutedMethod, []fr.Element, []fr.Element, error) {
	newObject, err := object.ElementFromBytes(r.NewObject)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("new object: %w", err)
	}
	nul, err := object.ElementFromBytes(r.OldNullifier)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("old nullifier: %w", err)
	}
	cbComs, err := object.ElementsFromBytes(r.CbComs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("callback commitments: %w", err)
	}
	pubArgs, err := object.ElementsFromBytes(r.PubArgs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("public arguments: %w", err)
	}
	membPub, err := object.ElementsFromBytes(r.MembPub)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("membership data: %w", err)
	}
	proof, err := common.ReadProof(r.Proof)
	if err != nil {
		return nil, nil, nil, err
	}
	return &interaction.ExecutedMethod{
		NewObject:    newObject,
		OldNullifier: nul,
		CbComList:    cbComs,
		CurTime:      r.CurTime,
		Proof:        proof,
	}, pubArgs, membPub, nil
}

// InteractionResponse acknowledges an appended commitment
type InteractionResponse struct {
	Com       string `json:"com"`
	Nullifier string `json:"nullifier"`
}

// JoinRequest registers a new user. Proof is a base64 statement proof that
// Com commits to a fresh user.
type JoinRequest struct {
	Com   string `json:"com"`
	Proof string `json:"proof"`
}

func NewJoinRequest(com fr.Element, proof []byte) JoinRequest {
	return JoinRequest{
		Com:   common.ElementToHex(com),
		Proof: base64.StdEncoding.EncodeToString(proof),
	}
}

// MembershipResponse carries the membership data of a commitment
type MembershipResponse struct {
	Com     string   `json:"com"`
	Pub     []string `json:"pub"`
	Witness []string `json:"witness"`
}

// CallbackResponse is the state of a ticket on the callback bulletin. Pub
// and Witness prove membership when Called is set, nonmembership otherwise.
type CallbackResponse struct {
	Called   bool     `json:"called"`
	EncArgs  []string `json:"enc_args,omitempty"`
	PostTime uint64   `json:"post_time,omitempty"`
	Pub      []string `json:"pub"`
	Witness  []string `json:"witness"`
}

// Signature is a ticket signature with hex coordinates
type Signature struct {
	RX string `json:"r_x"`
	RY string `json:"r_y"`
	S  string `json:"s"`
}

// CallRequest is the body of POST /callbacks
type CallRequest struct {
	TikX     string    `json:"tik_x"`
	TikY     string    `json:"tik_y"`
	EncArgs  []string  `json:"enc_args"`
	PostTime uint64    `json:"post_time"`
	Sig      Signature `json:"sig"`
}

func NewCallRequest(tik rr.PubKey, encArgs []fr.Element, tikSig rr.Signature, postTime common.Time) CallRequest {
	xy := tik.Elements()
	var s fr.Element
	s.SetBigInt(tikSig.S)
	return CallRequest{
		TikX:     common.ElementToHex(xy[0]),
		TikY:     common.ElementToHex(xy[1]),
		EncArgs:  hexList(encArgs),
		PostTime: postTime,
		Sig: Signature{
			RX: common.ElementToHex(tikSig.R.X),
			RY: common.ElementToHex(tikSig.R.Y),
			S:  common.ElementToHex(s),
		},
	}
}

// Decode parses the ticket, the arguments and the signature of a call
func (r CallRequest) Decode() (rr.PubKey, []fr.Element, rr.Signature, error) {
	tik, err := parseTicket(r.TikX, r.TikY)
	if err != nil {
		return rr.PubKey{}, nil, rr.Signature{}, err
	}
	encArgs, err := parseHexList(r.EncArgs)
	if err != nil {
		return rr.PubKey{}, nil, rr.Signature{}, fmt.Errorf("enc_args: %w", err)
	}
	var R twistededwards.PointAffine
	if R.X, err = common.ElementFromHex(r.Sig.RX); err != nil {
		return rr.PubKey{}, nil, rr.Signature{}, fmt.Errorf("sig.r_x: %w", err)
	}
	if R.Y, err = common.ElementFromHex(r.Sig.RY); err != nil {
		return rr.PubKey{}, nil, rr.Signature{}, fmt.Errorf("sig.r_y: %w", err)
	}
	s, err := common.ElementFromHex(r.Sig.S)
	if err != nil {
		return rr.PubKey{}, nil, rr.Signature{}, fmt.Errorf("sig.s: %w", err)
	}
	return tik, encArgs, rr.Signature{R: R, S: common.Big(s)}, nil
}

func parseTicket(x, y string) (rr.PubKey, error) {
	tx, err := common.ElementFromHex(x)
	if err != nil {
		return rr.PubKey{}, fmt.Errorf("tik_x: %w", err)
	}
	ty, err := common.ElementFromHex(y)
	if err != nil {
		return rr.PubKey{}, fmt.Errorf("tik_y: %w", err)
	}
	return rr.FromElements(tx, ty)
}

func hexList(es []fr.Element) []string {
	out := make([]string, len(es))
	for i := range es {
		out[i] = common.ElementToHex(es[i])
	}
	return out
}

func parseHexList(ss []string) ([]fr.Element, error) {
	out := make([]fr.Element, len(ss))
	for i, s := range ss {
		e, err := common.ElementFromHex(s)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = e
	}
	return out, nil
}
