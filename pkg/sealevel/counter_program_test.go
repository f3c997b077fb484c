package sealevel

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/julianzamt/bankrun-counter/pkg/counter"
	"github.com/julianzamt/bankrun-counter/pkg/features"
	"github.com/julianzamt/bankrun-counter/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterFixture struct {
	*tokenFixture
	authorityAta solana.PublicKey
}

// newCounterFixture funds the authority's associated token account with
// supply tokens.
func newCounterFixture(t *testing.T, supply uint64) *counterFixture {
	f := newTokenFixture(t)
	authority, _, err := counter.DeriveAuthorityAddress(counter.ProgramID)
	require.NoError(t, err)

	require.NoError(t, f.env.execute(token.NewCreateAssociatedTokenAccountInstruction(f.payer, authority, f.mint)))
	authorityAta, _, err := token.FindAssociatedTokenAddress(authority, f.mint)
	require.NoError(t, err)
	if supply > 0 {
		require.NoError(t, f.env.execute(token.NewMintToInstruction(supply, f.mint, authorityAta, f.authority)))
	}
	return &counterFixture{tokenFixture: f, authorityAta: authorityAta}
}

func (f *counterFixture) newUser() solana.PublicKey {
	user := newWallet(f.env.t)
	f.env.set(walletAccount(user, 1_000_000_000))
	return user
}

func (f *counterFixture) initialize(user solana.PublicKey) error {
	ix, err := counter.NewInitializeInstruction(counter.ProgramID, user)
	require.NoError(f.env.t, err)
	return f.env.execute(ix)
}

func (f *counterFixture) addOne(user solana.PublicKey) error {
	ix, err := counter.NewAddOneInstruction(counter.ProgramID, user)
	require.NoError(f.env.t, err)
	return f.env.execute(ix)
}

func (f *counterFixture) transferOne(user solana.PublicKey) error {
	ix, err := counter.NewTransferOneTokenInstruction(counter.ProgramID, user, f.mint)
	require.NoError(f.env.t, err)
	return f.env.execute(ix)
}

func TestExecute_Tx_Counter_Initialize(t *testing.T) {
	f := newCounterFixture(t, 0)
	user := f.newUser()

	require.NoError(t, f.initialize(user))

	addr, bump, err := counter.DeriveCounterAddress(counter.ProgramID, user)
	require.NoError(t, err)
	acct := f.env.get(addr)
	assert.Equal(t, counter.ProgramID, solana.PublicKeyFromBytes(acct.Owner[:]))
	assert.Equal(t, counter.AccountSize, len(acct.Data))
	rent := DefaultRent()
	assert.Equal(t, rent.MinimumBalance(counter.AccountSize), acct.Lamports)

	state := f.env.counter(user)
	assert.Equal(t, counter.Counter{Owner: user, Bump: bump}, *state)

	// the owner paid rent
	assert.Equal(t, uint64(1_000_000_000)-acct.Lamports, f.env.get(user).Lamports)

	err = f.initialize(user)
	assert.ErrorIs(t, err, InstrErrAccountAlreadyInitialized)
}

func TestExecute_Tx_Counter_Initialize_WrongAddress(t *testing.T) {
	f := newCounterFixture(t, 0)
	user := f.newUser()
	other := f.newUser()

	// the counter address of a different owner
	wrong, _, err := counter.DeriveCounterAddress(counter.ProgramID, other)
	require.NoError(t, err)
	ix := &solana.GenericInstruction{
		ProgID: counter.ProgramID,
		AccountValues: solana.AccountMetaSlice{
			solana.NewAccountMeta(user, true, true),
			solana.NewAccountMeta(wrong, true, false),
			solana.NewAccountMeta(SystemProgramAddr, false, false),
		},
		DataBytes: counter.InitializeDiscriminator[:],
	}
	assert.ErrorIs(t, f.env.execute(ix), InstrErrInvalidSeeds)
}

func TestExecute_Tx_Counter_AddOne_Cooldown(t *testing.T) {
	f := newCounterFixture(t, 0)
	user := f.newUser()
	require.NoError(t, f.initialize(user))

	// never updated: immediately eligible
	require.NoError(t, f.addOne(user))
	state := f.env.counter(user)
	assert.Equal(t, uint64(1), state.Counter)
	assert.Equal(t, int64(testStartUnixTimestamp), state.LastUpdated)

	err := f.addOne(user)
	assert.ErrorIs(t, err, CounterErrCannotAddYet)
	assert.Contains(t, f.env.log.String(), "Error Code: CannotAddYet. Error Number: 6000. Error Message: must pass 5 minutes since last add.")
	assert.Contains(t, f.env.log.String(), "failed: custom program error: 0x1770")
	assert.Equal(t, uint64(1), f.env.counter(user).Counter)

	// one second short
	f.env.warp(counter.CooldownSeconds - 1)
	assert.ErrorIs(t, f.addOne(user), CounterErrCannotAddYet)

	f.env.warp(1)
	require.NoError(t, f.addOne(user))
	assert.Equal(t, uint64(2), f.env.counter(user).Counter)
}

func TestExecute_Tx_Counter_AddOne_Validation(t *testing.T) {
	f := newCounterFixture(t, 0)
	user := f.newUser()
	intruder := f.newUser()

	// not initialized yet
	assert.ErrorIs(t, f.addOne(user), InstrErrUninitializedAccount)

	require.NoError(t, f.initialize(user))
	counterAddr, _, err := counter.DeriveCounterAddress(counter.ProgramID, user)
	require.NoError(t, err)

	// someone else signs for the user's counter
	ix := &solana.GenericInstruction{
		ProgID: counter.ProgramID,
		AccountValues: solana.AccountMetaSlice{
			solana.NewAccountMeta(counterAddr, true, false),
			solana.NewAccountMeta(intruder, false, true),
		},
		DataBytes: counter.AddOneDiscriminator[:],
	}
	assert.ErrorIs(t, f.env.execute(ix), InstrErrInvalidSeeds)

	// the owner without a signature
	ix.AccountValues[1] = solana.NewAccountMeta(user, false, false)
	assert.ErrorIs(t, f.env.execute(ix), InstrErrMissingRequiredSignature)

	// a record the program does not own
	stray := f.newUser()
	ix.AccountValues[0] = solana.NewAccountMeta(stray, true, false)
	ix.AccountValues[1] = solana.NewAccountMeta(user, false, true)
	f.env.set(accountsWithOwner(stray, TokenProgramAddr, 1, counter.AccountSize))
	assert.ErrorIs(t, f.env.execute(ix), InstrErrInvalidAccountOwner)

	assert.Equal(t, uint64(0), f.env.counter(user).Counter)
}

func TestExecute_Tx_Counter_TransferOneToken(t *testing.T) {
	f := newCounterFixture(t, 100)
	user := f.newUser()
	require.NoError(t, f.initialize(user))

	require.NoError(t, f.transferOne(user))

	receiverAta, _, err := token.FindAssociatedTokenAddress(user, f.mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.env.tokenAccount(receiverAta).Amount)
	assert.Equal(t, uint64(99), f.env.tokenAccount(f.authorityAta).Amount)

	state := f.env.counter(user)
	assert.Equal(t, int64(testStartUnixTimestamp), state.LastTransfer)
	assert.Equal(t, int64(testStartUnixTimestamp), state.LastUpdated)
	assert.Equal(t, uint64(0), state.Counter)

	// the receiver paid for its token account
	rent := DefaultRent()
	assert.Equal(t, uint64(1_000_000_000)-rent.MinimumBalance(counter.AccountSize)-rent.MinimumBalance(token.AccountSize), f.env.get(user).Lamports)

	err = f.transferOne(user)
	assert.ErrorIs(t, err, CounterErrCannotTransferYet)
	assert.Contains(t, f.env.log.String(), "Error Code: CannotTransferYet. Error Number: 6001.")

	f.env.warp(counter.CooldownSeconds + 60)
	require.NoError(t, f.transferOne(user))
	assert.Equal(t, uint64(2), f.env.tokenAccount(receiverAta).Amount)
	assert.Equal(t, uint64(98), f.env.tokenAccount(f.authorityAta).Amount)
}

func TestExecute_Tx_Counter_SharedCooldown(t *testing.T) {
	f := newCounterFixture(t, 10)
	user := f.newUser()
	require.NoError(t, f.initialize(user))
	require.NoError(t, f.addOne(user))

	// add_one just moved the shared timestamp
	assert.ErrorIs(t, f.transferOne(user), CounterErrCannotTransferYet)

	f.env.warp(counter.CooldownSeconds)
	require.NoError(t, f.transferOne(user))

	// and the transfer moved it for add_one
	assert.ErrorIs(t, f.addOne(user), CounterErrCannotAddYet)
}

func TestExecute_Tx_Counter_IndependentCooldown(t *testing.T) {
	f := newCounterFixture(t, 10)
	f.env.features.EnableFeature(features.IndependentTransferCooldown, 0)
	user := f.newUser()
	require.NoError(t, f.initialize(user))
	require.NoError(t, f.addOne(user))

	// the transfer clock has never run
	require.NoError(t, f.transferOne(user))
	assert.ErrorIs(t, f.transferOne(user), CounterErrCannotTransferYet)

	f.env.warp(360)
	require.NoError(t, f.addOne(user))
	require.NoError(t, f.transferOne(user))
	assert.Equal(t, uint64(2), f.env.counter(user).Counter)
}

func TestExecute_Tx_Counter_SupplyExhausted(t *testing.T) {
	f := newCounterFixture(t, 1)
	first := f.newUser()
	second := f.newUser()
	require.NoError(t, f.initialize(first))
	require.NoError(t, f.initialize(second))

	require.NoError(t, f.transferOne(first))

	err := f.transferOne(second)
	assert.ErrorIs(t, err, TokenErrInsufficientFunds)
	assert.Contains(t, f.env.log.String(), "Program log: Error: insufficient funds")

	// the failed transfer left no trace
	state := f.env.counter(second)
	assert.Equal(t, int64(0), state.LastTransfer)
	receiverAta, _, err := token.FindAssociatedTokenAddress(second, f.mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), f.env.get(receiverAta).Lamports)
}

func TestExecute_Tx_Counter_TransferOneToken_WrongReceiverAta(t *testing.T) {
	f := newCounterFixture(t, 5)
	user := f.newUser()
	require.NoError(t, f.initialize(user))

	ix, err := counter.NewTransferOneTokenInstruction(counter.ProgramID, user, f.mint)
	require.NoError(t, err)
	generic := ix.(*solana.GenericInstruction)
	generic.AccountValues[5] = solana.NewAccountMeta(newWallet(t), true, false)

	assert.ErrorIs(t, f.env.execute(generic), InstrErrInvalidSeeds)
}

func TestExecute_Tx_Counter_UnknownInstruction(t *testing.T) {
	f := newCounterFixture(t, 0)
	ix := &solana.GenericInstruction{ProgID: counter.ProgramID, DataBytes: []byte{1, 2, 3, 4, 5, 6, 7, 8}}
	assert.ErrorIs(t, f.env.execute(ix), InstrErrInvalidInstructionData)
}
