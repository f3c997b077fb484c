package sealevel

import (
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/julianzamt/bankrun-counter/pkg/counter"
	"github.com/julianzamt/bankrun-counter/pkg/features"
	"github.com/julianzamt/bankrun-counter/pkg/safemath"
	"github.com/julianzamt/bankrun-counter/pkg/token"
	"k8s.io/klog/v2"
)

const transferOneTokenAmount = 1

func CounterProgramExecute(execCtx *ExecutionCtx) error {
	err := execCtx.ComputeMeter.Consume(CUCounterProgramDefaultComputeUnits)
	if err != nil {
		return err
	}

	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	programId, err := instrCtx.ProgramId(txCtx)
	if err != nil {
		return err
	}

	if len(instrCtx.Data) < 8 {
		return InstrErrInvalidInstructionData
	}
	var disc [8]byte
	copy(disc[:], instrCtx.Data[:8])

	switch disc {
	case counter.InitializeDiscriminator:
		execCtx.ProgramLog("Instruction: Initialize")
		err = counterInitialize(execCtx, instrCtx, programId)
	case counter.AddOneDiscriminator:
		execCtx.ProgramLog("Instruction: AddOne")
		err = counterAddOne(execCtx, instrCtx, programId)
	case counter.TransferOneTokenDiscriminator:
		execCtx.ProgramLog("Instruction: TransferOneToken")
		err = counterTransferOneToken(execCtx, instrCtx, programId)
	default:
		return InstrErrInvalidInstructionData
	}

	var custom *CustomErr
	if errors.As(err, &custom) && custom.Code >= 6000 {
		execCtx.ProgramLog("AnchorError occurred. Error Code: %s. Error Number: %d. Error Message: %s.", custom.Name, custom.Code, custom.Msg)
	}
	return err
}

func counterInitialize(execCtx *ExecutionCtx, instrCtx *InstructionCtx, programId solana.PublicKey) error {
	txCtx := execCtx.TransactionContext
	err := instrCtx.CheckNumOfInstructionAccounts(3)
	if err != nil {
		return err
	}

	owner, err := instrCtx.KeyOfInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	ownerSigned, err := instrCtx.IsInstructionAccountSigner(0)
	if err != nil {
		return err
	}
	if !ownerSigned {
		return InstrErrMissingRequiredSignature
	}

	counterAddr, err := instrCtx.KeyOfInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}
	expected, bump, err := counter.DeriveCounterAddress(programId, owner)
	if err != nil || expected != counterAddr {
		execCtx.ProgramLog("counter address %s does not match derived %s", counterAddr, expected)
		return InstrErrInvalidSeeds
	}

	systemProgram, err := instrCtx.KeyOfInstructionAccount(txCtx, 2)
	if err != nil {
		return err
	}
	if systemProgram != SystemProgramAddr {
		return InstrErrIncorrectProgramId
	}

	counterAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}
	inUse := counterAcct.Lamports() != 0 || len(counterAcct.Data()) != 0 || counterAcct.Owner() != SystemProgramAddr
	counterAcct.Drop()
	if inUse {
		execCtx.ProgramLog("counter %s already initialized", counterAddr)
		return InstrErrAccountAlreadyInitialized
	}

	rent, err := execCtx.Rent()
	if err != nil {
		return err
	}

	signer, err := DeriveSigner(programId, counter.CounterSignerSeeds(owner, bump)...)
	if err != nil {
		return err
	}

	createIx := system.NewCreateAccountInstruction(rent.MinimumBalance(counter.AccountSize), counter.AccountSize, programId, owner, counterAddr).Build()
	if err = execCtx.invokeSolana(createIx, signer); err != nil {
		return err
	}

	state := counter.Counter{Owner: owner, Bump: bump}
	data, err := state.Marshal()
	if err != nil {
		return InstrErrInvalidAccountData
	}

	counterAcct, err = instrCtx.BorrowInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}
	defer counterAcct.Drop()

	klog.V(2).Infof("initialized counter %s for owner %s", counterAddr, owner)
	return counterAcct.SetData(data)
}

// loadCounter validates the counter record at instrAcctIdx against the
// expected owner and returns its state.
func loadCounter(execCtx *ExecutionCtx, instrCtx *InstructionCtx, programId solana.PublicKey, instrAcctIdx uint64, owner solana.PublicKey) (*counter.Counter, error) {
	txCtx := execCtx.TransactionContext

	acct, err := instrCtx.BorrowInstructionAccount(txCtx, instrAcctIdx)
	if err != nil {
		return nil, err
	}
	defer acct.Drop()

	if acct.Owner() == SystemProgramAddr && len(acct.Data()) == 0 {
		execCtx.ProgramLog("counter %s is not initialized", acct.Key())
		return nil, InstrErrUninitializedAccount
	}
	if acct.Owner() != programId {
		return nil, InstrErrInvalidAccountOwner
	}

	state, err := counter.Unmarshal(acct.Data())
	if err != nil {
		return nil, InstrErrUninitializedAccount
	}

	if state.Owner != owner {
		execCtx.ProgramLog("counter %s belongs to %s", acct.Key(), state.Owner)
		return nil, InstrErrInvalidSeeds
	}
	expected, err := DeriveSigner(programId, counter.CounterSignerSeeds(owner, state.Bump)...)
	if err != nil || expected.Address() != acct.Key() {
		return nil, InstrErrInvalidSeeds
	}
	return state, nil
}

func storeCounter(execCtx *ExecutionCtx, instrCtx *InstructionCtx, instrAcctIdx uint64, state *counter.Counter) error {
	data, err := state.Marshal()
	if err != nil {
		return InstrErrInvalidAccountData
	}
	acct, err := instrCtx.BorrowInstructionAccount(execCtx.TransactionContext, instrAcctIdx)
	if err != nil {
		return err
	}
	defer acct.Drop()
	return acct.SetData(data)
}

func counterAddOne(execCtx *ExecutionCtx, instrCtx *InstructionCtx, programId solana.PublicKey) error {
	txCtx := execCtx.TransactionContext
	err := instrCtx.CheckNumOfInstructionAccounts(2)
	if err != nil {
		return err
	}

	owner, err := instrCtx.KeyOfInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}
	ownerSigned, err := instrCtx.IsInstructionAccountSigner(1)
	if err != nil {
		return err
	}

	state, err := loadCounter(execCtx, instrCtx, programId, 0, owner)
	if err != nil {
		return err
	}
	if !ownerSigned {
		return InstrErrMissingRequiredSignature
	}

	clock, err := execCtx.Clock()
	if err != nil {
		return err
	}
	if !counter.CooldownElapsed(state.LastUpdated, clock.UnixTimestamp) {
		return CounterErrCannotAddYet
	}

	state.Counter, err = safemath.CheckedAddU64(state.Counter, 1)
	if err != nil {
		return InstrErrArithmeticOverflow
	}
	state.LastUpdated = clock.UnixTimestamp

	execCtx.ProgramLog("counter = %d", state.Counter)
	return storeCounter(execCtx, instrCtx, 0, state)
}

const (
	transferAcctAssociatedTokenProgram = iota
	transferAcctMint
	transferAcctAuthority
	transferAcctAuthorityAta
	transferAcctReceiver
	transferAcctReceiverAta
	transferAcctSystemProgram
	transferAcctTokenProgram
	transferAcctCounter
	transferAcctCount
)

func counterTransferOneToken(execCtx *ExecutionCtx, instrCtx *InstructionCtx, programId solana.PublicKey) error {
	txCtx := execCtx.TransactionContext
	err := instrCtx.CheckNumOfInstructionAccounts(transferAcctCount)
	if err != nil {
		return err
	}

	keys := make([]solana.PublicKey, transferAcctCount)
	for idx := range keys {
		keys[idx], err = instrCtx.KeyOfInstructionAccount(txCtx, uint64(idx))
		if err != nil {
			return err
		}
	}

	if keys[transferAcctAssociatedTokenProgram] != AssociatedTokenProgramAddr ||
		keys[transferAcctSystemProgram] != SystemProgramAddr ||
		keys[transferAcctTokenProgram] != TokenProgramAddr {
		return InstrErrIncorrectProgramId
	}

	mint := keys[transferAcctMint]
	receiver := keys[transferAcctReceiver]

	receiverSigned, err := instrCtx.IsInstructionAccountSigner(transferAcctReceiver)
	if err != nil {
		return err
	}
	if !receiverSigned {
		return InstrErrMissingRequiredSignature
	}

	authority, authorityBump, err := counter.DeriveAuthorityAddress(programId)
	if err != nil || authority != keys[transferAcctAuthority] {
		return InstrErrInvalidSeeds
	}

	authorityAta, _, err := token.FindAssociatedTokenAddress(authority, mint)
	if err != nil || authorityAta != keys[transferAcctAuthorityAta] {
		return InstrErrInvalidSeeds
	}
	source, err := loadTokenAccount(txCtx, instrCtx, transferAcctAuthorityAta)
	if err != nil {
		return err
	}
	if source.Mint != mint || source.Owner != authority {
		return InstrErrInvalidAccountData
	}

	receiverAta, _, err := token.FindAssociatedTokenAddress(receiver, mint)
	if err != nil || receiverAta != keys[transferAcctReceiverAta] {
		execCtx.ProgramLog("receiver token account %s is not the associated account %s", keys[transferAcctReceiverAta], receiverAta)
		return InstrErrInvalidSeeds
	}

	state, err := loadCounter(execCtx, instrCtx, programId, transferAcctCounter, receiver)
	if err != nil {
		return err
	}

	clock, err := execCtx.Clock()
	if err != nil {
		return err
	}
	gate := state.LastUpdated
	if execCtx.GlobalCtx.Features.IsActive(features.IndependentTransferCooldown) {
		gate = state.LastTransfer
	}
	if !counter.CooldownElapsed(gate, clock.UnixTimestamp) {
		return CounterErrCannotTransferYet
	}

	receiverAtaAcct, err := instrCtx.BorrowInstructionAccount(txCtx, transferAcctReceiverAta)
	if err != nil {
		return err
	}
	needsAta := receiverAtaAcct.Owner() == SystemProgramAddr && receiverAtaAcct.Lamports() == 0
	receiverAtaAcct.Drop()

	if needsAta {
		ataIx, err := token.NewAssociatedTokenInstruction(token.AssociatedTokenCreate, receiver, receiver, mint)
		if err != nil {
			return err
		}
		if err = execCtx.invokeSolana(ataIx); err != nil {
			return err
		}
	}

	signer, err := DeriveSigner(programId, counter.AuthoritySignerSeeds(authorityBump)...)
	if err != nil {
		return err
	}
	transferIx := token.NewTransferInstruction(transferOneTokenAmount, authorityAta, receiverAta, authority)
	if err = execCtx.invokeSolana(transferIx, signer); err != nil {
		return err
	}

	state.LastUpdated = clock.UnixTimestamp
	state.LastTransfer = clock.UnixTimestamp

	execCtx.ProgramLog("transferred %d token to %s", transferOneTokenAmount, receiver)
	return storeCounter(execCtx, instrCtx, transferAcctCounter, state)
}
