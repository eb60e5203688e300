package scan

import (
	"fmt"

	"github.com/consensys/gnark/frontend"
	"github.com/mynextid/zk-callbacks/circuits/interaction"
	"github.com/mynextid/zk-callbacks/common"
	"github.com/mynextid/zk-callbacks/crypto/enc"
	"github.com/mynextid/zk-callbacks/object"
)

// ApplyScanVar computes in the circuit the state ApplyScan produces from old.
// nul and com_rand of the result are those of old.
func ApplyScanVar[D object.UserData](
	api frontend.API,
	old object.UserVar,
	cbs []interaction.Callback[D],
	called CalledGadget,
	uncalled UncalledGadget,
	membPub, nmembPub []frontend.Variable,
	curTime frontend.Variable,
	tickets []TicketVar,
) (object.UserVar, error) {
	starting := old.ZK.IsIngestOver
	oldIP := api.Select(starting, 0, old.ZK.OldInProgress)
	newIP := api.Select(starting, 0, old.ZK.NewInProgress)
	cur := old

	for i, t := range tickets {
		tik := t.Com.Ticket
		var err error
		oldIP, err = object.AddTicketToChainVar(api, oldIP, tik)
		if err != nil {
			return object.UserVar{}, err
		}

		isMemb, err := called.IsCalled(api, tik, t.EncArgs, t.PostTime, membPub, t.MembWit)
		if err != nil {
			return object.UserVar{}, fmt.Errorf("ticket %d membership: %w", i, err)
		}
		isNmemb, err := uncalled.IsNotCalled(api, tik, nmembPub, t.NmembWit)
		if err != nil {
			return object.UserVar{}, fmt.Errorf("ticket %d nonmembership: %w", i, err)
		}
		api.AssertIsEqual(api.Add(isMemb, isNmemb), 1)

		api.AssertIsBoolean(tik.Expirable)
		postExpired := api.And(tik.Expirable, common.IsGreater64(api, t.PostTime, tik.Expiration))
		curExpired := api.And(tik.Expirable, common.IsGreater64(api, curTime, tik.Expiration))
		apply := api.And(isMemb, common.Not(api, postExpired))

		args, err := enc.DecryptVars(api, tik.EncKey, t.EncArgs)
		if err != nil {
			return object.UserVar{}, err
		}
		data := cur.Data
		for _, cb := range cbs {
			hit := api.And(apply, api.IsZero(api.Sub(tik.MethodID, cb.MethodID)))
			next, err := cb.Predicate(api, cur.WithData(data), args)
			if err != nil {
				return object.UserVar{}, fmt.Errorf("callback %d: %w", cb.MethodID, err)
			}
			if len(next.Data) != len(data) {
				return object.UserVar{}, fmt.Errorf("callback %d changed the data length", cb.MethodID)
			}
			selected := make([]frontend.Variable, len(data))
			for j := range data {
				selected[j] = api.Select(hit, next.Data[j], data[j])
			}
			data = selected
		}
		cur = cur.WithData(data)

		keep := api.And(isNmemb, common.Not(api, curExpired))
		kept, err := object.AddTicketToChainVar(api, newIP, tik)
		if err != nil {
			return object.UserVar{}, err
		}
		newIP = api.Select(keep, kept, newIP)
	}

	complete := api.IsZero(api.Sub(oldIP, old.ZK.CallbackHash))
	cur.ZK.CallbackHash = api.Select(complete, newIP, old.ZK.CallbackHash)
	cur.ZK.OldInProgress = api.Select(complete, 0, oldIP)
	cur.ZK.NewInProgress = api.Select(complete, 0, newIP)
	cur.ZK.IsIngestOver = complete
	return cur, nil
}

// predicate binds the scan arithmetic to the new user: data and every
// bookkeeping field except nul and com_rand must match.
func predicate[D object.UserData](cfg Config[D], l layout) interaction.Predicate {
	var membConst, nmembConst []frontend.Variable
	if cfg.MembConst {
		membConst = common.Vars(cfg.MembPub)
	}
	if cfg.NmembConst {
		nmembConst = common.Vars(cfg.NmembPub)
	}
	return func(api frontend.API, old, new object.UserVar, pub, priv []frontend.Variable) (frontend.Variable, error) {
		membPub, nmembPub, curTime, err := l.readPub(pub, membConst, nmembConst)
		if err != nil {
			return nil, err
		}
		tickets, err := l.readPriv(priv)
		if err != nil {
			return nil, err
		}
		want, err := ApplyScanVar(api, old, cfg.Callbacks, cfg.Called, cfg.Uncalled, membPub, nmembPub, curTime, tickets)
		if err != nil {
			return nil, err
		}
		if len(want.Data) != len(new.Data) {
			return nil, fmt.Errorf("data length mismatch")
		}

		ok := frontend.Variable(1)
		eq := func(a, b frontend.Variable) {
			ok = api.And(ok, api.IsZero(api.Sub(a, b)))
		}
		for j := range want.Data {
			eq(want.Data[j], new.Data[j])
		}
		eq(want.ZK.CallbackHash, new.ZK.CallbackHash)
		eq(want.ZK.OldInProgress, new.ZK.OldInProgress)
		eq(want.ZK.NewInProgress, new.ZK.NewInProgress)
		eq(want.ZK.IsIngestOver, new.ZK.IsIngestOver)
		return ok, nil
	}
}
