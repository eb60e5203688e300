package scan

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/mynextid/zk-callbacks/crypto/enc"
	"github.com/mynextid/zk-callbacks/crypto/rr"
	"github.com/mynextid/zk-callbacks/object"
)

// ApplyScan is the native method of the scan interaction. It processes one
// batch of tickets starting at the scan index and finishes the scan once
// every ticket taken at the start has been seen.
func ApplyScan[D object.UserData](u object.User[D], pub PubScanArgs[D], priv PrivScanArgs) object.User[D] {
	if !u.IsScanning() {
		u.InProgress = u.Callbacks
		u.ZK.OldInProgress = fr.Element{}
		u.ZK.NewInProgress = fr.Element{}
		u.ZK.IsIngestOver = false
		idx := 0
		u.ScanIndex = &idx
	}

	var drop []rr.PubKey
	for _, t := range priv.Tickets {
		tik := t.Com.Ticket
		u.ZK.OldInProgress = object.AddTicketToChain(u.ZK.OldInProgress, tik)

		switch {
		case t.Called:
			if !(tik.Expirable && t.PostTime > tik.Expiration) && tik.MethodID < uint64(len(pub.Callbacks)) {
				args := enc.Decrypt(tik.EncKey, t.EncArgs)
				u = pub.Callbacks[tik.MethodID].Method(u, args)
			}
			drop = append(drop, tik.Tik)
		case tik.Expirable && pub.CurTime > tik.Expiration:
			drop = append(drop, tik.Tik)
		default:
			u.ZK.NewInProgress = object.AddTicketToChain(u.ZK.NewInProgress, tik)
		}
		*u.ScanIndex++
	}
	u.InProgress = removeTickets(u.InProgress, drop)

	if u.ZK.OldInProgress == u.ZK.CallbackHash {
		u.ZK.CallbackHash = u.ZK.NewInProgress
		u.ZK.OldInProgress = fr.Element{}
		u.ZK.NewInProgress = fr.Element{}
		u.ZK.IsIngestOver = true
		u.Callbacks = u.InProgress
		u.InProgress = nil
		u.ScanIndex = nil
	}
	return u
}

// removeTickets returns blobs without the tickets whose Tik is in drop.
// Blobs that fail to decode are kept.
func removeTickets(blobs [][]byte, drop []rr.PubKey) [][]byte {
	if len(drop) == 0 {
		return blobs
	}
	out := make([][]byte, 0, len(blobs))
	for _, b := range blobs {
		com, err := object.DecodeCallbackCom(b)
		if err == nil && containsTik(drop, com.Ticket.Tik) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func containsTik(tiks []rr.PubKey, tik rr.PubKey) bool {
	for _, t := range tiks {
		if t.Equal(tik) {
			return true
		}
	}
	return false
}
