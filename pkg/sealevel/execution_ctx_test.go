package sealevel

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/julianzamt/bankrun-counter/pkg/accounts"
	"github.com/julianzamt/bankrun-counter/pkg/cu"
	pda "github.com/julianzamt/bankrun-counter/pkg/solana"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBareExecCtx(accts []accounts.Account) *ExecutionCtx {
	txCtx := NewTransactionCtx(*NewTransactionAccounts(accts), MaxInstructionStackDepth)
	return &ExecutionCtx{TransactionContext: txCtx, ComputeMeter: cu.NewComputeMeterDefault(), Log: new(LogRecorder)}
}

func TestBorrowedAccount_SingleBorrow(t *testing.T) {
	owner := newWallet(t)
	execCtx := newBareExecCtx([]accounts.Account{builtinAccount(SystemProgramAddr), walletAccount(owner, 10)})
	instrCtx := &InstructionCtx{ProgramAccounts: []uint64{0},
		InstructionAccounts: []InstructionAccount{{IndexInTransaction: 1, IsWritable: true, IsSigner: true}}}
	txCtx := execCtx.TransactionContext
	require.NoError(t, txCtx.Push(instrCtx))

	acct, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
	require.NoError(t, err)

	_, err = instrCtx.BorrowInstructionAccount(txCtx, 0)
	assert.ErrorIs(t, err, InstrErrAccountBorrowFailed)

	acct.Drop()
	acct.Drop()
	again, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
	require.NoError(t, err)
	again.Drop()
}

func TestBorrowedAccount_ModificationRules(t *testing.T) {
	wallet := newWallet(t)
	foreign := newWallet(t)
	execCtx := newBareExecCtx([]accounts.Account{
		builtinAccount(SystemProgramAddr),
		walletAccount(wallet, 100),
		accountsWithOwner(foreign, TokenProgramAddr, 100, 8),
	})
	instrCtx := &InstructionCtx{ProgramAccounts: []uint64{0},
		InstructionAccounts: []InstructionAccount{
			{IndexInTransaction: 1, IndexInCallee: 0, IsWritable: false},
			{IndexInTransaction: 2, IndexInCallee: 1, IsWritable: true},
		}}
	txCtx := execCtx.TransactionContext
	require.NoError(t, txCtx.Push(instrCtx))

	readonly, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
	require.NoError(t, err)
	defer readonly.Drop()
	assert.ErrorIs(t, readonly.CheckedAddLamports(1), InstrErrReadonlyLamportChange)
	assert.ErrorIs(t, readonly.SetData([]byte{1}), InstrErrReadonlyDataModified)

	external, err := instrCtx.BorrowInstructionAccount(txCtx, 1)
	require.NoError(t, err)
	defer external.Drop()

	// the system program does not own it
	assert.ErrorIs(t, external.CheckedSubLamports(1), InstrErrExternalAccountLamportSpend)
	assert.ErrorIs(t, external.SetData([]byte{1}), InstrErrExternalAccountDataModified)
	assert.ErrorIs(t, external.SetOwner(SystemProgramAddr), InstrErrModifiedProgramId)

	// crediting is allowed
	assert.NoError(t, external.CheckedAddLamports(5))
	assert.Equal(t, uint64(105), external.Lamports())
	assert.Len(t, txCtx.Accounts.TouchedAccounts(), 1)
}

func TestNativeInvokeSigned_ForeignSignerRejected(t *testing.T) {
	owner := newWallet(t)
	execCtx := newBareExecCtx([]accounts.Account{builtinAccount(CounterProgramAddr), walletAccount(owner, 10), builtinAccount(SystemProgramAddr)})
	instrCtx := &InstructionCtx{ProgramAccounts: []uint64{0},
		InstructionAccounts: []InstructionAccount{
			{IndexInTransaction: 1, IndexInCallee: 0, IsWritable: true, IsSigner: true},
			{IndexInTransaction: 2, IndexInCallee: 1},
		}}
	require.NoError(t, execCtx.TransactionContext.Push(instrCtx))

	// derived under the token program, not the running counter program
	_, bump, err := pda.FindProgramAddress([][]byte{[]byte("seed")}, TokenProgramAddr)
	require.NoError(t, err)
	signer, err := DeriveSigner(TokenProgramAddr, []byte("seed"), []byte{bump})
	require.NoError(t, err)

	ix := Instruction{ProgramId: SystemProgramAddr, Data: []byte{2, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0},
		Accounts: []AccountMeta{{Pubkey: owner, IsSigner: true, IsWritable: true}, {Pubkey: signer.Address(), IsWritable: true}}}
	err = execCtx.NativeInvokeSigned(ix, signer)
	assert.ErrorIs(t, err, InstrErrPrivilegeEscalation)
}

func TestPrepareInstruction_PrivilegeEscalation(t *testing.T) {
	owner := newWallet(t)
	other := newWallet(t)
	execCtx := newBareExecCtx([]accounts.Account{builtinAccount(CounterProgramAddr), walletAccount(owner, 10), walletAccount(other, 0), builtinAccount(SystemProgramAddr)})
	instrCtx := &InstructionCtx{ProgramAccounts: []uint64{0},
		InstructionAccounts: []InstructionAccount{
			{IndexInTransaction: 1, IndexInCallee: 0, IsWritable: true, IsSigner: false},
			{IndexInTransaction: 2, IndexInCallee: 1, IsWritable: false},
			{IndexInTransaction: 3, IndexInCallee: 2},
		}}
	require.NoError(t, execCtx.TransactionContext.Push(instrCtx))

	// owner did not sign the caller
	_, _, err := execCtx.PrepareInstruction(Instruction{ProgramId: SystemProgramAddr,
		Accounts: []AccountMeta{{Pubkey: owner, IsSigner: true, IsWritable: true}}}, nil)
	assert.ErrorIs(t, err, InstrErrPrivilegeEscalation)

	// other is read-only in the caller
	_, _, err = execCtx.PrepareInstruction(Instruction{ProgramId: SystemProgramAddr,
		Accounts: []AccountMeta{{Pubkey: other, IsWritable: true}}}, nil)
	assert.ErrorIs(t, err, InstrErrPrivilegeEscalation)

	// unknown callee program
	_, _, err = execCtx.PrepareInstruction(Instruction{ProgramId: TokenProgramAddr}, nil)
	assert.ErrorIs(t, err, InstrErrMissingAccount)

	// signed by the caller's program-derived signer list
	instrAccts, programIndices, err := execCtx.PrepareInstruction(Instruction{ProgramId: SystemProgramAddr,
		Accounts: []AccountMeta{{Pubkey: owner, IsSigner: true, IsWritable: true}}}, []solana.PublicKey{owner})
	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, programIndices)
	assert.True(t, instrAccts[0].IsSigner)
}

func TestExecuteInstruction_UnsupportedProgram(t *testing.T) {
	notAProgram := newWallet(t)
	execCtx := newBareExecCtx([]accounts.Account{walletAccount(notAProgram, 1)})

	err := execCtx.ProcessInstruction(nil, nil, []uint64{0})
	assert.ErrorIs(t, err, InstrErrUnsupportedProgramId)
	assert.Contains(t, execCtx.Log.(*LogRecorder).String(), "failed: InstrErrUnsupportedProgramId")
}

func TestTransactionCtx_CallDepth(t *testing.T) {
	txCtx := NewTransactionCtx(*NewTransactionAccounts([]accounts.Account{builtinAccount(SystemProgramAddr)}), 2)
	require.NoError(t, txCtx.Push(&InstructionCtx{ProgramAccounts: []uint64{0}}))
	require.NoError(t, txCtx.Push(&InstructionCtx{ProgramAccounts: []uint64{0}}))
	assert.ErrorIs(t, txCtx.Push(&InstructionCtx{ProgramAccounts: []uint64{0}}), InstrErrCallDepth)
	assert.Equal(t, uint64(2), txCtx.InstructionTraceLength())

	require.NoError(t, txCtx.Pop())
	require.NoError(t, txCtx.Pop())
	assert.ErrorIs(t, txCtx.Pop(), InstrErrCallDepth)
}
