package sealevel

import (
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	tokenprog "github.com/gagliardetto/solana-go/programs/token"
	"github.com/julianzamt/bankrun-counter/pkg/token"
	"k8s.io/klog/v2"
)

// AssociatedTokenProgramExecute creates the canonical token account of a
// wallet for a mint. Empty data or 0 is Create, 1 is CreateIdempotent.
func AssociatedTokenProgramExecute(execCtx *ExecutionCtx) error {
	err := execCtx.ComputeMeter.Consume(CUAssociatedTokenDefaultComputeUnits)
	if err != nil {
		return err
	}

	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	idempotent := false
	switch {
	case len(instrCtx.Data) == 0 || instrCtx.Data[0] == token.AssociatedTokenCreate:
		execCtx.ProgramLog("Create")
	case instrCtx.Data[0] == token.AssociatedTokenCreateIdempotent:
		execCtx.ProgramLog("CreateIdempotent")
		idempotent = true
	default:
		return InstrErrInvalidInstructionData
	}

	err = instrCtx.CheckNumOfInstructionAccounts(6)
	if err != nil {
		return err
	}

	keys := make([]solana.PublicKey, 6)
	for idx := range keys {
		keys[idx], err = instrCtx.KeyOfInstructionAccount(txCtx, uint64(idx))
		if err != nil {
			return err
		}
	}
	funder, ataAddr, wallet, mint, systemProgram, tokenProgram := keys[0], keys[1], keys[2], keys[3], keys[4], keys[5]

	if systemProgram != SystemProgramAddr || tokenProgram != TokenProgramAddr {
		return InstrErrIncorrectProgramId
	}

	expected, bump, err := token.FindAssociatedTokenAddress(wallet, mint)
	if err != nil {
		return InstrErrInvalidSeeds
	}
	if expected != ataAddr {
		execCtx.ProgramLog("Error: Associated address does not match seed derivation")
		return InstrErrInvalidSeeds
	}

	ataAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}
	ataOwner := ataAcct.Owner()
	ataData := ataAcct.Data()
	var existing *token.Account
	if ataOwner == TokenProgramAddr {
		existing, err = token.UnpackAccount(ataData)
	}
	ataAcct.Drop()

	if ataOwner == TokenProgramAddr {
		if !idempotent {
			return InstrErrAccountAlreadyInitialized
		}
		if err != nil {
			return InstrErrInvalidAccountData
		}
		if existing.Owner != wallet {
			execCtx.ProgramLog("Error: Associated token account owner does not match address derivation")
			return InstrErrIllegalOwner
		}
		return nil
	}
	if ataOwner != SystemProgramAddr {
		return InstrErrIllegalOwner
	}

	rent, err := execCtx.Rent()
	if err != nil {
		return err
	}

	signer, err := DeriveSigner(AssociatedTokenProgramAddr, wallet.Bytes(), tokenProgram.Bytes(), mint.Bytes(), []byte{bump})
	if err != nil {
		return err
	}

	klog.V(2).Infof("creating associated token account %s for wallet %s", ataAddr, wallet)

	createIx := system.NewCreateAccountInstruction(rent.MinimumBalance(token.AccountSize), token.AccountSize, TokenProgramAddr, funder, ataAddr).Build()
	if err = execCtx.invokeSolana(createIx, signer); err != nil {
		return err
	}

	initIx := tokenprog.NewInitializeAccount3Instruction(wallet, ataAddr, mint).Build()
	return execCtx.invokeSolana(initIx)
}
