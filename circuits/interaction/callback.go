package interaction

import (
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/mynextid/zk-callbacks/common"
	"github.com/mynextid/zk-callbacks/crypto/enc"
	"github.com/mynextid/zk-callbacks/crypto/rr"
	"github.com/mynextid/zk-callbacks/object"
)

var ErrMethodIDs = errors.New("callback method ids must be 0..n-1 in order")

// Callback is a rule a service may later force on the user: the native
// Method and the circuit Predicate must compute the same transition.
type Callback[D object.UserData] struct {
	MethodID  uint64
	Expirable bool
	// Expiration is relative to the issuance time
	Expiration common.Time

	Method    func(u object.User[D], args []fr.Element) object.User[D]
	Predicate func(api frontend.API, u object.UserVar, args []frontend.Variable) (object.UserVar, error)
}

// ValidateMethodIDs checks that ids are dense and sequential from 0, which
// makes in-circuit dispatch over the list total.
func ValidateMethodIDs[D object.UserData](cbs []Callback[D]) error {
	for i, cb := range cbs {
		if cb.MethodID != uint64(i) {
			return fmt.Errorf("%w: position %d has id %d", ErrMethodIDs, i, cb.MethodID)
		}
		if cb.Method == nil || cb.Predicate == nil {
			return fmt.Errorf("callback %d: method and predicate are required", i)
		}
	}
	return nil
}

// IssuedCallback is a freshly issued ticket with the randomness that
// rerandomized the service key into its Tik.
type IssuedCallback struct {
	Com  object.CallbackCom
	Rand *big.Int
}

func issueCallbacks[D object.UserData](rng io.Reader, cbs []Callback[D], rpks []rr.PubKey, curTime common.Time) ([]IssuedCallback, error) {
	out := make([]IssuedCallback, len(cbs))
	for i, cb := range cbs {
		r, err := rr.RandomScalar(rng)
		if err != nil {
			return nil, fmt.Errorf("ticket %d: %w", i, err)
		}
		encKey, err := enc.NewKey(rng)
		if err != nil {
			return nil, fmt.Errorf("ticket %d: %w", i, err)
		}
		comRand, err := common.RandomElement(rng)
		if err != nil {
			return nil, fmt.Errorf("ticket %d: %w", i, err)
		}
		out[i] = IssuedCallback{
			Com: object.CallbackCom{
				Ticket: object.CallbackTicket{
					Tik:        rpks[i].Rerand(r),
					MethodID:   cb.MethodID,
					Expirable:  cb.Expirable,
					Expiration: cb.Expiration + curTime,
					EncKey:     encKey,
				},
				ComRand: comRand,
			},
			Rand: r,
		}
	}
	return out, nil
}

// rule is the part of a Callback fixed into the circuit
type rule struct {
	methodID   uint64
	expirable  int
	expiration common.Time
}

func rulesOf[D object.UserData](cbs []Callback[D]) []rule {
	out := make([]rule, len(cbs))
	for i, cb := range cbs {
		out[i] = rule{methodID: cb.MethodID, expiration: cb.Expiration}
		if cb.Expirable {
			out[i].expirable = 1
		}
	}
	return out
}
