// Package tokens is the bundled example system: a rate-limited counter whose
// every increment hands the service a ticket for paying out a reward.
package tokens

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/mynextid/zk-callbacks/circuits/interaction"
	"github.com/mynextid/zk-callbacks/circuits/scan"
	"github.com/mynextid/zk-callbacks/common"
	"github.com/mynextid/zk-callbacks/object"
)

const (
	// MaxCount is the number of increments a user may ever make
	MaxCount = 3
	// RewardExpiration is how long the service may call a reward ticket
	RewardExpiration common.Time = 100
	// ScanBatch is the number of tickets ingested per scan step
	ScanBatch = 1
	// RewardArgs is the number of elements a reward call carries
	RewardArgs = 1
)

// Data is the user state
type Data struct {
	Count  uint64
	Reward uint64
}

func (d Data) Serialize() []fr.Element {
	return []fr.Element{common.FromUint64(d.Count), common.FromUint64(d.Reward)}
}

// Reward adds args[0] to the reward balance
var Reward = interaction.Callback[Data]{
	MethodID:   0,
	Expirable:  true,
	Expiration: RewardExpiration,
	Method: func(u object.User[Data], args []fr.Element) object.User[Data] {
		u.Data.Reward += args[0].Uint64()
		return u
	},
	Predicate: func(api frontend.API, u object.UserVar, args []frontend.Variable) (object.UserVar, error) {
		return u.WithData([]frontend.Variable{u.Data[0], api.Add(u.Data[1], args[0])}), nil
	},
}

// Callbacks are the rules of every ticket Increment issues
var Callbacks = []interaction.Callback[Data]{Reward}

// Increment bumps Count by one, up to MaxCount, and issues a reward ticket.
var Increment = interaction.Interaction[Data, object.FieldArgs, object.FieldArgs]{
	Method: func(u object.User[Data], _, _ object.FieldArgs) object.User[Data] {
		u.Data.Count++
		return u
	},
	Predicate: func(api frontend.API, old, new object.UserVar, _, _ []frontend.Variable) (frontend.Variable, error) {
		count := new.Data[0]
		inRange := common.Not(api, common.IsGreater64(api, count, MaxCount))
		step := api.IsZero(api.Sub(count, api.Add(old.Data[0], 1)))
		same := api.IsZero(api.Sub(new.Data[1], old.Data[1]))
		return api.And(api.And(inRange, step), same), nil
	},
	Callbacks: Callbacks,
}

// Fresh holds for a user that never interacted: zero data, an empty
// callback list and no scan in progress.
func Fresh(api frontend.API, u object.UserVar, _ []frontend.Variable) (frontend.Variable, error) {
	ok := api.IsZero(u.Data[0])
	ok = api.And(ok, api.IsZero(u.Data[1]))
	ok = api.And(ok, api.IsZero(u.ZK.CallbackHash))
	ok = api.And(ok, api.IsZero(u.ZK.NewInProgress))
	ok = api.And(ok, api.IsZero(u.ZK.OldInProgress))
	return api.And(ok, u.ZK.IsIngestOver), nil
}

// ScanConfig is the scan of reward tickets with the gadgets of a callback
// registry.
func ScanConfig(called scan.CalledGadget, uncalled scan.UncalledGadget, user interaction.MembershipConfig) scan.Config[Data] {
	return scan.Config[Data]{
		Callbacks: Callbacks,
		BatchSize: ScanBatch,
		ArgsLen:   RewardArgs,
		Called:    called,
		Uncalled:  uncalled,
		User:      user,
	}
}
