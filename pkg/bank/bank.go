// Package bank is an in-process ledger that executes signed transactions
// against the native runtime, with a controllable clock.
package bank

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/julianzamt/bankrun-counter/pkg/accounts"
	"github.com/julianzamt/bankrun-counter/pkg/cu"
	"github.com/julianzamt/bankrun-counter/pkg/features"
	"github.com/julianzamt/bankrun-counter/pkg/fees"
	"github.com/julianzamt/bankrun-counter/pkg/safemath"
	"github.com/julianzamt/bankrun-counter/pkg/sealevel"
	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/klog/v2"
)

// MaxComputeUnitLimit caps the compute budget of a single transaction.
const MaxComputeUnitLimit = 1_400_000

type Config struct {
	LamportsPerSignature uint64
	// StartUnixTimestamp seeds the clock sysvar at genesis. Zero takes the
	// time from Clock.
	StartUnixTimestamp int64
	// ComputeUnitLimit is the budget of each instruction of a transaction.
	ComputeUnitLimit uint64
	Features         *features.Features
	// Accounts is the backing store. Nil means a fresh in-memory store.
	Accounts   accounts.Accounts
	Clock      clockwork.Clock
	Registerer prometheus.Registerer
	// Workers bounds the parallelism of ProcessTransactions.
	Workers  int
	Airdrops map[solana.PublicKey]uint64
}

func DefaultConfig() Config {
	return Config{
		LamportsPerSignature: fees.DefaultLamportsPerSignature,
		ComputeUnitLimit:     cu.DefaultInstructionComputeUnitLimit,
		Features:             features.NewFeaturesDefault(),
		Clock:                clockwork.NewRealClock(),
		Workers:              runtime.NumCPU(),
	}
}

type Bank struct {
	cfg      Config
	store    accounts.Accounts
	features *features.Features
	clock    clockwork.Clock
	metrics  *bankMetrics
	registry *prometheus.Registry
	locks    *accountLocks

	mu          sync.Mutex
	slot        uint64
	blockhashes *blockhashQueue
	statusCache map[solana.Signature]struct{}
}

// New creates a bank and runs genesis on its store: builtin programs and
// sysvars are installed and configured airdrops are paid. A store that already
// holds a clock sysvar resumes from its slot, keeping its sysvars and
// balances.
func New(cfg Config) (*Bank, error) {
	defaults := DefaultConfig()
	if cfg.ComputeUnitLimit == 0 {
		cfg.ComputeUnitLimit = defaults.ComputeUnitLimit
	}
	if cfg.Features == nil {
		cfg.Features = defaults.Features
	}
	if cfg.Clock == nil {
		cfg.Clock = defaults.Clock
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.Accounts == nil {
		cfg.Accounts = accounts.NewMemAccounts()
	}

	b := &Bank{
		cfg:         cfg,
		store:       cfg.Accounts,
		features:    cfg.Features.Clone(),
		clock:       cfg.Clock,
		locks:       newAccountLocks(),
		blockhashes: newBlockhashQueue(),
		statusCache: make(map[solana.Signature]struct{}),
	}

	registerer := cfg.Registerer
	if registerer == nil {
		b.registry = prometheus.NewRegistry()
		registerer = b.registry
	}
	var err error
	b.metrics, err = newMetrics(registerer)
	if err != nil {
		return nil, fmt.Errorf("registering bank metrics: %w", err)
	}

	err = b.genesis()
	if err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}
	return b, nil
}

func (b *Bank) genesis() error {
	for _, builtin := range sealevel.Builtins() {
		acct := accounts.Account{Key: builtin.ProgramId, Lamports: 1, Data: []byte(builtin.Name), Owner: sealevel.NativeLoaderAddr, Executable: true}
		err := b.SetAccount(acct)
		if err != nil {
			return err
		}
	}

	clock, err := sealevel.ReadClockSysvar(b.store)
	fresh := errors.Is(err, sealevel.InstrErrUnsupportedSysvar)
	if fresh {
		unixTimestamp := b.cfg.StartUnixTimestamp
		if unixTimestamp == 0 {
			unixTimestamp = b.clock.Now().Unix()
		}
		clock = &sealevel.SysvarClock{Slot: 1, EpochStartTimestamp: unixTimestamp, UnixTimestamp: unixTimestamp}
		err = sealevel.WriteClockSysvar(b.store, *clock)
		if err != nil {
			return err
		}
	} else if err != nil {
		return err
	} else {
		klog.Infof("resuming bank at slot %d", clock.Slot)
	}

	_, err = sealevel.ReadRentSysvar(b.store)
	if errors.Is(err, sealevel.InstrErrUnsupportedSysvar) {
		err = sealevel.WriteRentSysvar(b.store, sealevel.DefaultRent())
		if err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	for _, enabled := range b.features.AllEnabled() {
		klog.Infof("%s", enabled)
	}

	b.slot = clock.Slot
	b.blockhashes.push(genesisBlockhash(b.slot), b.slot)
	b.metrics.slot.Set(float64(b.slot))

	if !fresh {
		return nil
	}
	for pubkey, lamports := range b.cfg.Airdrops {
		err = b.Airdrop(pubkey, lamports)
		if err != nil {
			return err
		}
	}

	klog.Infof("bank genesis complete at slot %d, unix_timestamp %d, %d builtins", b.slot, clock.UnixTimestamp, len(sealevel.Builtins()))
	return nil
}

// Registry is the registry bank metrics were registered on when the config
// did not provide one.
func (b *Bank) Registry() *prometheus.Registry {
	return b.registry
}

func (b *Bank) Features() *features.Features {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.features.Clone()
}

func (b *Bank) EnableFeature(gate features.FeatureGate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.features.EnableFeature(gate, b.slot)
	klog.Infof("enabled feature %s at slot %d", gate.Name, b.slot)
}

// GetAccount returns nil for an account that does not exist.
func (b *Bank) GetAccount(pubkey solana.PublicKey) (*accounts.Account, error) {
	key := [32]byte(pubkey)
	return b.store.GetAccount(&key)
}

func (b *Bank) GetBalance(pubkey solana.PublicKey) (uint64, error) {
	acct, err := b.GetAccount(pubkey)
	if err != nil || acct == nil {
		return 0, err
	}
	return acct.Lamports, nil
}

// SetAccount overwrites an account outside of any transaction.
func (b *Bank) SetAccount(acct accounts.Account) error {
	if acct.Data == nil {
		acct.Data = []byte{}
	}
	key := [32]byte(acct.Key)
	return b.store.SetAccount(&key, &acct)
}

// Airdrop credits lamports to pubkey, creating a system account if needed.
func (b *Bank) Airdrop(pubkey solana.PublicKey, lamports uint64) error {
	acct, err := b.GetAccount(pubkey)
	if err != nil {
		return err
	}
	if acct == nil {
		acct = &accounts.Account{Key: pubkey, Data: []byte{}, Owner: sealevel.SystemProgramAddr}
	}

	acct.Lamports, err = safemath.CheckedAddU64(acct.Lamports, lamports)
	if err != nil {
		return fmt.Errorf("airdrop to %s: %w", pubkey, err)
	}
	return b.SetAccount(*acct)
}

func (b *Bank) GetClock() (*sealevel.SysvarClock, error) {
	return sealevel.ReadClockSysvar(b.store)
}

// SetClock replaces the clock sysvar. The bank keeps producing slots from the
// new clock's slot.
func (b *Bank) SetClock(clock sealevel.SysvarClock) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := sealevel.WriteClockSysvar(b.store, clock)
	if err != nil {
		return err
	}
	b.slot = clock.Slot
	b.metrics.slot.Set(float64(b.slot))
	return nil
}

// WarpToSlot moves the bank forward to slot without changing the unix
// timestamp, and issues a new blockhash.
func (b *Bank) WarpToSlot(slot uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if slot <= b.slot {
		return fmt.Errorf("cannot warp backwards from slot %d to %d", b.slot, slot)
	}
	return b.advanceSlotLocked(slot)
}

// LatestBlockhash returns the newest blockhash and the slot it was issued at.
func (b *Bank) LatestBlockhash() (solana.Hash, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.blockhashes.latest(), b.slot
}

func (b *Bank) Slot() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.slot
}

func (b *Bank) advanceSlot() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.advanceSlotLocked(b.slot + 1)
}

func (b *Bank) advanceSlotLocked(slot uint64) error {
	clock, err := sealevel.ReadClockSysvar(b.store)
	if err != nil {
		return err
	}
	clock.Slot = slot
	err = sealevel.WriteClockSysvar(b.store, *clock)
	if err != nil {
		return err
	}

	b.blockhashes.push(nextBlockhash(b.blockhashes.latest(), slot), slot)
	b.slot = slot
	b.metrics.slot.Set(float64(slot))
	return nil
}
