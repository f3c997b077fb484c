package sealevel

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/julianzamt/bankrun-counter/pkg/accounts"
	"github.com/julianzamt/bankrun-counter/pkg/counter"
	"github.com/julianzamt/bankrun-counter/pkg/cu"
	"github.com/julianzamt/bankrun-counter/pkg/features"
	"github.com/julianzamt/bankrun-counter/pkg/global"
	"github.com/julianzamt/bankrun-counter/pkg/token"
	"github.com/stretchr/testify/require"
)

const testStartUnixTimestamp = 1_700_000_000

type testEnv struct {
	t        *testing.T
	store    *accounts.MemAccounts
	features *features.Features
	log      *LogRecorder
}

func newTestEnv(t *testing.T) *testEnv {
	store := accounts.NewMemAccounts()
	require.NoError(t, WriteRentSysvar(store, DefaultRent()))
	require.NoError(t, WriteClockSysvar(store, SysvarClock{Slot: 1, UnixTimestamp: testStartUnixTimestamp}))

	env := &testEnv{t: t, store: store, features: features.NewFeaturesDefault(), log: new(LogRecorder)}
	for _, builtin := range Builtins() {
		env.set(builtinAccount(builtin.ProgramId))
	}
	return env
}

func builtinAccount(programId solana.PublicKey) accounts.Account {
	return accounts.Account{Key: programId, Lamports: 1, Data: []byte{}, Owner: NativeLoaderAddr, Executable: true}
}

func walletAccount(key solana.PublicKey, lamports uint64) accounts.Account {
	return accounts.Account{Key: key, Lamports: lamports, Data: []byte{}, Owner: SystemProgramAddr}
}

func newWallet(t *testing.T) solana.PublicKey {
	privKey, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return privKey.PublicKey()
}

func (env *testEnv) set(acct accounts.Account) {
	pk := [32]byte(acct.Key)
	require.NoError(env.t, env.store.SetAccount(&pk, &acct))
}

func (env *testEnv) get(key solana.PublicKey) accounts.Account {
	pk := [32]byte(key)
	acct, err := env.store.GetAccount(&pk)
	require.NoError(env.t, err)
	if acct == nil {
		return accounts.Account{Key: key, Data: []byte{}, Owner: SystemProgramAddr}
	}
	return *acct
}

func (env *testEnv) warp(seconds int64) {
	clock, err := ReadClockSysvar(env.store)
	require.NoError(env.t, err)
	clock.UnixTimestamp += seconds
	clock.Slot++
	require.NoError(env.t, WriteClockSysvar(env.store, *clock))
}

// execute runs ix as a top-level instruction over the store's current view of
// every account it names, and commits touched accounts on success.
func (env *testEnv) execute(ix solana.Instruction) error {
	instr, err := InstructionFromSolana(ix)
	require.NoError(env.t, err)

	var accts []accounts.Account
	seen := make(map[solana.PublicKey]bool)
	for _, key := range append([]solana.PublicKey{instr.ProgramId}, metaKeys(instr.Accounts)...) {
		if seen[key] {
			continue
		}
		seen[key] = true
		accts = append(accts, env.get(key))
	}

	txAccts := NewTransactionAccounts(accts)
	instrAccts := InstructionAcctsFromAccountMetas(instr.Accounts, *txAccts)

	txCtx := NewTransactionCtx(*txAccts, MaxInstructionStackDepth)
	execCtx := ExecutionCtx{Log: env.log, TransactionContext: txCtx, ComputeMeter: cu.NewComputeMeterDefault()}
	execCtx.GlobalCtx = global.GlobalCtx{Accounts: env.store, Features: *env.features}

	err = execCtx.ProcessInstruction(instr.Data, instrAccts, []uint64{0})
	if err != nil {
		return err
	}
	for _, acct := range txCtx.Accounts.TouchedAccounts() {
		env.set(*acct)
	}
	return nil
}

func metaKeys(metas []AccountMeta) []solana.PublicKey {
	keys := make([]solana.PublicKey, 0, len(metas))
	for _, meta := range metas {
		keys = append(keys, meta.Pubkey)
	}
	return keys
}

// createMint allocates and initializes a mint with zero decimals.
func (env *testEnv) createMint(payer solana.PublicKey, authority solana.PublicKey) solana.PublicKey {
	mint := newWallet(env.t)
	rent := DefaultRent()
	for _, ix := range token.NewCreateMintInstructions(payer, mint, authority, 0, rent.MinimumBalance(token.MintSize)) {
		require.NoError(env.t, env.execute(ix))
	}
	return mint
}

func (env *testEnv) tokenAccount(key solana.PublicKey) *token.Account {
	acct := env.get(key)
	tokenAcct, err := token.UnpackAccount(acct.Data)
	require.NoError(env.t, err)
	return tokenAcct
}

func (env *testEnv) counter(owner solana.PublicKey) *counter.Counter {
	addr, _, err := counter.DeriveCounterAddress(counter.ProgramID, owner)
	require.NoError(env.t, err)
	state, err := counter.Unmarshal(env.get(addr).Data)
	require.NoError(env.t, err)
	return state
}

func accountsWithOwner(key solana.PublicKey, owner solana.PublicKey, lamports uint64, size int) accounts.Account {
	return accounts.Account{Key: key, Lamports: lamports, Data: make([]byte, size), Owner: owner}
}
