package object

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"slices"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/mynextid/zk-callbacks/common"
)

var (
	ErrTicketIndex = errors.New("ticket index out of range")
	ErrSharedData  = errors.New("user data holds slices, maps or pointers but has no Clone method")
)

// UserData is application state that flattens to a fixed number of field
// elements. The circuit sees it as a []frontend.Variable in the same order.
// Data holding slices, maps or pointers must also implement Cloner.
type UserData interface {
	Serialize() []fr.Element
}

// Cloner deep-copies user data
type Cloner[D any] interface {
	Clone() D
}

// Args are method or callback arguments
type Args interface {
	Serialize() []fr.Element
}

// FieldArgs are arguments that already are field elements
type FieldArgs []fr.Element

func (a FieldArgs) Serialize() []fr.Element {
	return a
}

// User is a committed object. It must not be mutated concurrently.
type User[D UserData] struct {
	Data D
	ZK   ZKFields

	// Callbacks are the encoded CallbackCom still outstanding, in issuance order
	Callbacks [][]byte
	// ScanIndex is nil unless a scan is in progress
	ScanIndex *int
	// InProgress is the snapshot of Callbacks taken when the scan started
	InProgress [][]byte
}

// Create returns a fresh user owning data
func Create[D UserData](data D, rng io.Reader) (*User[D], error) {
	if _, ok := any(data).(Cloner[D]); !ok && holdsRefs(reflect.TypeOf(data)) {
		return nil, fmt.Errorf("%w: %T", ErrSharedData, data)
	}
	nul, err := common.RandomElement(rng)
	if err != nil {
		return nil, fmt.Errorf("nullifier: %w", err)
	}
	comRand, err := common.RandomElement(rng)
	if err != nil {
		return nil, fmt.Errorf("commitment randomness: %w", err)
	}
	return &User[D]{
		Data: data,
		ZK: ZKFields{
			Nul:          nul,
			ComRand:      comRand,
			IsIngestOver: true,
		},
	}, nil
}

// Serialize returns data ++ zk_fields
func (u User[D]) Serialize() []fr.Element {
	return slices.Concat(u.Data.Serialize(), u.ZK.Serialize())
}

// Commit hashes the serialized user
func (u User[D]) Commit() fr.Element {
	return common.Hash(u.Serialize()...)
}

// GetTicket decodes the i-th outstanding ticket
func (u User[D]) GetTicket(i int) (CallbackCom, error) {
	if i < 0 || i >= len(u.Callbacks) {
		return CallbackCom{}, fmt.Errorf("%w: %d of %d", ErrTicketIndex, i, len(u.Callbacks))
	}
	return DecodeCallbackCom(u.Callbacks[i])
}

func (u User[D]) NumOutstanding() int {
	return len(u.Callbacks)
}

func (u User[D]) IsScanning() bool {
	return u.ScanIndex != nil
}

// ScanStart is the index the next scan batch starts at
func (u User[D]) ScanStart() int {
	if u.ScanIndex == nil {
		return 0
	}
	return *u.ScanIndex
}

// Clone returns a copy that shares no slices with u. Data is copied with its
// Clone method when it has one, by value otherwise.
func (u User[D]) Clone() User[D] {
	out := u
	if c, ok := any(u.Data).(Cloner[D]); ok {
		out.Data = c.Clone()
	}
	out.Callbacks = cloneBlobs(u.Callbacks)
	out.InProgress = cloneBlobs(u.InProgress)
	if u.ScanIndex != nil {
		idx := *u.ScanIndex
		out.ScanIndex = &idx
	}
	return out
}

// holdsRefs reports whether values of t can share memory when copied
func holdsRefs(t reflect.Type) bool {
	if t == nil {
		return true
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Map, reflect.Pointer, reflect.Interface,
		reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return true
	case reflect.Array:
		return holdsRefs(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if holdsRefs(t.Field(i).Type) {
				return true
			}
		}
	}
	return false
}

func cloneBlobs(in [][]byte) [][]byte {
	if in == nil {
		return nil
	}
	out := make([][]byte, len(in))
	for i := range in {
		out[i] = slices.Clone(in[i])
	}
	return out
}

// Assign returns the circuit assignment of the user
func (u User[D]) Assign() UserVar {
	return UserVar{
		Data: common.Vars(u.Data.Serialize()),
		ZK:   u.ZK.Assign(),
	}
}

// UserVar is the in-circuit user
type UserVar struct {
	Data []frontend.Variable
	ZK   ZKFieldsVar
}

// NewUserVar returns a template with room for dataLen data elements
func NewUserVar(dataLen int) UserVar {
	return UserVar{Data: common.Placeholders(dataLen)}
}

func (u UserVar) Serialize() []frontend.Variable {
	return append(slices.Clone(u.Data), u.ZK.Serialize()...)
}

// CommitVar computes the user commitment in the circuit
func CommitVar(api frontend.API, u UserVar) (frontend.Variable, error) {
	return common.HashVars(api, u.Serialize()...)
}

// WithData returns a copy of u holding data
func (u UserVar) WithData(data []frontend.Variable) UserVar {
	u.Data = slices.Clone(data)
	return u
}
