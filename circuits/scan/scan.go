package scan

import (
	"errors"
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/mynextid/zk-callbacks/circuits/interaction"
	"github.com/mynextid/zk-callbacks/common"
	"github.com/mynextid/zk-callbacks/object"
)

// Config fixes the shape of a scan circuit. One set of keys serves every
// batch with the same config.
type Config[D object.UserData] struct {
	// Callbacks are the rules the tickets were issued under, ids 0..n-1
	Callbacks []interaction.Callback[D]
	// BatchSize is the number of tickets per scan step
	BatchSize int
	// ArgsLen is the number of encrypted argument elements of a call
	ArgsLen int

	Called   CalledGadget
	Uncalled UncalledGadget

	// MembConst compiles MembPub into the circuit
	MembConst  bool
	MembPub    []fr.Element
	NmembConst bool
	NmembPub   []fr.Element

	// User is the membership check of the user commitment
	User interaction.MembershipConfig
}

// ConfigFor fills the gadgets of cfg from a registry
func ConfigFor[D object.UserData](reg Registry, cbs []interaction.Callback[D], batchSize, argsLen int, user interaction.MembershipConfig) Config[D] {
	return Config[D]{
		Callbacks: cbs,
		BatchSize: batchSize,
		ArgsLen:   argsLen,
		Called:    reg.CalledGadget(),
		Uncalled:  reg.UncalledGadget(),
		User:      user,
	}
}

func (cfg Config[D]) validate() error {
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("scan batch size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.ArgsLen < 0 {
		return fmt.Errorf("negative argument length %d", cfg.ArgsLen)
	}
	if cfg.Called == nil || cfg.Uncalled == nil {
		return errors.New("scan needs membership and nonmembership gadgets")
	}
	return ValidateCallbacks(cfg.Callbacks)
}

func (cfg Config[D]) layout() (layout, error) {
	l := layout{
		argsLen:    cfg.ArgsLen,
		membConst:  cfg.MembConst,
		nmembConst: cfg.NmembConst,
	}
	l.membPubLen, l.membWitLen = cfg.Called.Shape()
	l.nmembPubLen, l.nmembWitLen = cfg.Uncalled.Shape()
	if cfg.MembConst && len(cfg.MembPub) != l.membPubLen {
		return layout{}, fmt.Errorf("constant membership data: want %d elements, got %d", l.membPubLen, len(cfg.MembPub))
	}
	if cfg.NmembConst && len(cfg.NmembPub) != l.nmembPubLen {
		return layout{}, fmt.Errorf("constant nonmembership data: want %d elements, got %d", l.nmembPubLen, len(cfg.NmembPub))
	}
	return l, nil
}

// ValidateCallbacks requires method ids 0..n-1 in order
func ValidateCallbacks[D object.UserData](cbs []interaction.Callback[D]) error {
	return interaction.ValidateMethodIDs(cbs)
}

// GetScanInteraction returns the scan interaction for cfg
func GetScanInteraction[D object.UserData](cfg Config[D]) (interaction.Interaction[D, PubScanArgs[D], PrivScanArgs], error) {
	if err := cfg.validate(); err != nil {
		return interaction.Interaction[D, PubScanArgs[D], PrivScanArgs]{}, err
	}
	l, err := cfg.layout()
	if err != nil {
		return interaction.Interaction[D, PubScanArgs[D], PrivScanArgs]{}, err
	}
	return interaction.Interaction[D, PubScanArgs[D], PrivScanArgs]{
		Method:    ApplyScan[D],
		Predicate: predicate(cfg, l),
		IsScan:    true,
	}, nil
}

// Keygen compiles the scan circuit for cfg and runs the setup
func Keygen[D object.UserData](cfg Config[D], data D) (*common.Keys, error) {
	in, err := GetScanInteraction(cfg)
	if err != nil {
		return nil, err
	}
	pub, priv := sampleArgs(cfg)
	return interaction.Keygen(in, cfg.User, data, pub, priv)
}

// Template returns the sized scan circuit for cfg
func Template[D object.UserData](cfg Config[D], data D) (*interaction.ExecMethodCircuit, error) {
	in, err := GetScanInteraction(cfg)
	if err != nil {
		return nil, err
	}
	pub, priv := sampleArgs(cfg)
	return interaction.Template(in, cfg.User, data, pub, priv)
}

// sampleArgs returns arguments with the serialized sizes of cfg
func sampleArgs[D object.UserData](cfg Config[D]) (PubScanArgs[D], PrivScanArgs) {
	membPubLen, membWitLen := cfg.Called.Shape()
	nmembPubLen, nmembWitLen := cfg.Uncalled.Shape()
	pub := PubScanArgs[D]{
		MembPub:    make([]fr.Element, membPubLen),
		NmembPub:   make([]fr.Element, nmembPubLen),
		MembConst:  cfg.MembConst,
		NmembConst: cfg.NmembConst,
		Callbacks:  cfg.Callbacks,
	}
	priv := PrivScanArgs{Tickets: make([]ScannedTicket, cfg.BatchSize)}
	for i := range priv.Tickets {
		priv.Tickets[i] = ScannedTicket{
			EncArgs:  make([]fr.Element, cfg.ArgsLen),
			MembWit:  make([]fr.Element, membWitLen),
			NmembWit: make([]fr.Element, nmembWitLen),
		}
	}
	return pub, priv
}

// GetScanArguments collects from reg the evidence for the next batch of u
func GetScanArguments[D object.UserData](u *object.User[D], reg Registry, cfg Config[D], curTime common.Time) (PubScanArgs[D], PrivScanArgs, error) {
	if err := cfg.validate(); err != nil {
		return PubScanArgs[D]{}, PrivScanArgs{}, err
	}
	start := u.ScanStart()
	if start+cfg.BatchSize > u.NumOutstanding() {
		return PubScanArgs[D]{}, PrivScanArgs{}, fmt.Errorf("%w: %d+%d of %d", ErrScanRange, start, cfg.BatchSize, u.NumOutstanding())
	}

	pub := PubScanArgs[D]{
		MembPub:    reg.MembershipPub(),
		NmembPub:   reg.NonMembershipPub(),
		MembConst:  cfg.MembConst,
		NmembConst: cfg.NmembConst,
		CurTime:    curTime,
		Callbacks:  cfg.Callbacks,
	}
	if cfg.MembConst {
		pub.MembPub = cfg.MembPub
	}
	if cfg.NmembConst {
		pub.NmembPub = cfg.NmembPub
	}

	priv := PrivScanArgs{Tickets: make([]ScannedTicket, cfg.BatchSize)}
	for i := range priv.Tickets {
		com, err := u.GetTicket(start + i)
		if err != nil {
			return PubScanArgs[D]{}, PrivScanArgs{}, err
		}
		t, err := evidence(reg, cfg, com)
		if err != nil {
			return PubScanArgs[D]{}, PrivScanArgs{}, fmt.Errorf("ticket %d: %w", start+i, err)
		}
		priv.Tickets[i] = t
	}
	return pub, priv, nil
}

func evidence[D object.UserData](reg Registry, cfg Config[D], com object.CallbackCom) (ScannedTicket, error) {
	tik := com.Ticket.Tik
	if encArgs, postTime, ok := reg.VerifyIn(tik); ok {
		if len(encArgs) != cfg.ArgsLen {
			return ScannedTicket{}, fmt.Errorf("called with %d arguments, want %d", len(encArgs), cfg.ArgsLen)
		}
		memb, ok := reg.GetMembershipData(tik)
		if !ok {
			return ScannedTicket{}, ErrUnknownTicket
		}
		return ScannedTicket{
			Com:      com,
			Called:   true,
			EncArgs:  encArgs,
			PostTime: postTime,
			MembWit:  memb.Witness,
			NmembWit: cfg.Uncalled.DummyWitness(),
		}, nil
	}

	nmemb, ok := reg.GetNonMembershipData(tik)
	if !ok {
		return ScannedTicket{}, ErrUnknownTicket
	}
	return ScannedTicket{
		Com:      com,
		EncArgs:  make([]fr.Element, cfg.ArgsLen),
		MembWit:  cfg.Called.DummyWitness(),
		NmembWit: nmemb.Witness,
	}, nil
}

// checkOrder requires the scanned tickets to be the next outstanding ones
func checkOrder[D object.UserData](u *object.User[D], cfg Config[D], priv PrivScanArgs) error {
	start := u.ScanStart()
	if len(priv.Tickets) != cfg.BatchSize {
		return fmt.Errorf("%w: %d tickets for a batch of %d", ErrScanOrder, len(priv.Tickets), cfg.BatchSize)
	}
	if start+cfg.BatchSize > u.NumOutstanding() {
		return fmt.Errorf("%w: %d+%d of %d", ErrScanRange, start, cfg.BatchSize, u.NumOutstanding())
	}
	for i, t := range priv.Tickets {
		com, err := u.GetTicket(start + i)
		if err != nil {
			return err
		}
		if !com.Ticket.Same(t.Com.Ticket) {
			return fmt.Errorf("%w: position %d", ErrScanOrder, start+i)
		}
	}
	return nil
}

// PrepareScan checks the batch and builds its circuit assignment without
// proving. u is not modified.
func PrepareScan[D object.UserData](rng io.Reader, u *object.User[D], cfg Config[D], membData interaction.MembershipData, pub PubScanArgs[D], priv PrivScanArgs) (*interaction.Prepared[D], error) {
	in, err := GetScanInteraction(cfg)
	if err != nil {
		return nil, err
	}
	if err := checkOrder(u, cfg, priv); err != nil {
		return nil, err
	}
	return interaction.Prepare(rng, u, in, cfg.User, nil, pub.CurTime, membData, pub, priv)
}

// Scan proves one batch with the given arguments and advances u
func Scan[D object.UserData](rng io.Reader, u *object.User[D], cfg Config[D], keys *common.Keys, membData interaction.MembershipData, pub PubScanArgs[D], priv PrivScanArgs) (*interaction.ExecutedMethod, error) {
	in, err := GetScanInteraction(cfg)
	if err != nil {
		return nil, err
	}
	if err := checkOrder(u, cfg, priv); err != nil {
		return nil, err
	}
	return interaction.Interact(rng, u, in, cfg.User, keys, nil, pub.CurTime, membData, pub, priv)
}

// ScanCallbacks fetches the evidence for the next batch of u from reg,
// proves the batch and advances u. The returned arguments are what a
// verifier needs besides the executed method.
func ScanCallbacks[D object.UserData](rng io.Reader, u *object.User[D], cfg Config[D], keys *common.Keys, reg Registry, membData interaction.MembershipData, curTime common.Time) (*interaction.ExecutedMethod, PubScanArgs[D], error) {
	pub, priv, err := GetScanArguments(u, reg, cfg, curTime)
	if err != nil {
		return nil, PubScanArgs[D]{}, err
	}
	em, err := Scan(rng, u, cfg, keys, membData, pub, priv)
	if err != nil {
		return nil, PubScanArgs[D]{}, err
	}
	common.Logger("scan").Debug().
		Int("batch", cfg.BatchSize).
		Bool("complete", !u.IsScanning()).
		Int("outstanding", u.NumOutstanding()).
		Msg("scan step proven")
	return em, pub, nil
}
