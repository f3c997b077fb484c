package sealevel

import (
	"errors"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/julianzamt/bankrun-counter/pkg/safemath"
	"github.com/julianzamt/bankrun-counter/pkg/token"
	"k8s.io/klog/v2"
)

const (
	TokenInstrTypeTransfer           = 3
	TokenInstrTypeMintTo             = 7
	TokenInstrTypeInitializeAccount3 = 18
	TokenInstrTypeInitializeMint2    = 20
)

type TokenInstrInitializeMint2 struct {
	Decimals        uint8
	MintAuthority   solana.PublicKey
	FreezeAuthority *solana.PublicKey
}

func (instr *TokenInstrInitializeMint2) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	instr.Decimals, err = decoder.ReadUint8()
	if err != nil {
		return err
	}

	pk, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	instr.MintAuthority = solana.PublicKeyFromBytes(pk)

	// the freeze authority option may be truncated when absent
	if decoder.Remaining() == 0 {
		return nil
	}
	hasFreeze, err := decoder.ReadUint8()
	if err != nil {
		return err
	}
	switch hasFreeze {
	case 0:
	case 1:
		pk, err = decoder.ReadBytes(solana.PublicKeyLength)
		if err != nil {
			return err
		}
		freeze := solana.PublicKeyFromBytes(pk)
		instr.FreezeAuthority = &freeze
	default:
		return InstrErrInvalidInstructionData
	}
	return nil
}

func SplTokenProgramExecute(execCtx *ExecutionCtx) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	decoder := bin.NewBinDecoder(instrCtx.Data)
	instructionType, err := decoder.ReadUint8()
	if err != nil {
		return InstrErrInvalidInstructionData
	}

	switch instructionType {
	case TokenInstrTypeInitializeMint2:
		execCtx.ProgramLog("Instruction: InitializeMint2")
		if err = execCtx.ComputeMeter.Consume(CUSplTokenInitializeComputeUnits); err != nil {
			return err
		}
		var instr TokenInstrInitializeMint2
		if err = instr.UnmarshalWithDecoder(decoder); err != nil {
			return InstrErrInvalidInstructionData
		}
		err = tokenInitializeMint(execCtx, instrCtx, instr)

	case TokenInstrTypeInitializeAccount3:
		execCtx.ProgramLog("Instruction: InitializeAccount3")
		if err = execCtx.ComputeMeter.Consume(CUSplTokenInitializeComputeUnits); err != nil {
			return err
		}
		owner, decodeErr := decoder.ReadBytes(solana.PublicKeyLength)
		if decodeErr != nil {
			return InstrErrInvalidInstructionData
		}
		err = tokenInitializeAccount(execCtx, instrCtx, solana.PublicKeyFromBytes(owner))

	case TokenInstrTypeMintTo:
		execCtx.ProgramLog("Instruction: MintTo")
		if err = execCtx.ComputeMeter.Consume(CUSplTokenMintToComputeUnits); err != nil {
			return err
		}
		amount, decodeErr := decoder.ReadUint64(bin.LE)
		if decodeErr != nil {
			return InstrErrInvalidInstructionData
		}
		err = tokenMintTo(execCtx, instrCtx, amount)

	case TokenInstrTypeTransfer:
		execCtx.ProgramLog("Instruction: Transfer")
		if err = execCtx.ComputeMeter.Consume(CUSplTokenTransferComputeUnits); err != nil {
			return err
		}
		amount, decodeErr := decoder.ReadUint64(bin.LE)
		if decodeErr != nil {
			return InstrErrInvalidInstructionData
		}
		err = tokenTransfer(execCtx, instrCtx, amount)

	default:
		klog.V(2).Infof("unsupported token instruction %d", instructionType)
		return InstrErrInvalidInstructionData
	}

	var custom *CustomErr
	if errors.As(err, &custom) {
		execCtx.ProgramLog("Error: %s", custom.Msg)
	}
	return err
}

func checkTokenRentExempt(execCtx *ExecutionCtx, acct *BorrowedAccount) error {
	rent, err := execCtx.Rent()
	if err != nil {
		return err
	}
	if !rent.IsExempt(acct.Lamports(), uint64(len(acct.Data()))) {
		return TokenErrNotRentExempt
	}
	return nil
}

func tokenInitializeMint(execCtx *ExecutionCtx, instrCtx *InstructionCtx, instr TokenInstrInitializeMint2) error {
	txCtx := execCtx.TransactionContext
	err := instrCtx.CheckNumOfInstructionAccounts(1)
	if err != nil {
		return err
	}

	mintAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	defer mintAcct.Drop()

	if mintAcct.Owner() != TokenProgramAddr {
		return InstrErrIncorrectProgramId
	}

	mint, err := token.UnpackMint(mintAcct.Data())
	if err != nil {
		return InstrErrInvalidAccountData
	}
	if mint.IsInitialized {
		return TokenErrAlreadyInUse
	}
	if err = checkTokenRentExempt(execCtx, mintAcct); err != nil {
		return err
	}

	mintAuthority := instr.MintAuthority
	mint.MintAuthority = &mintAuthority
	mint.Decimals = instr.Decimals
	mint.IsInitialized = true
	mint.FreezeAuthority = instr.FreezeAuthority

	return mintAcct.SetData(mint.Marshal())
}

func tokenInitializeAccount(execCtx *ExecutionCtx, instrCtx *InstructionCtx, owner solana.PublicKey) error {
	txCtx := execCtx.TransactionContext
	err := instrCtx.CheckNumOfInstructionAccounts(2)
	if err != nil {
		return err
	}

	mintAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}
	mintKey := mintAcct.Key()
	mintOwner := mintAcct.Owner()
	mint, mintErr := token.UnpackMint(mintAcct.Data())
	mintAcct.Drop()

	if mintOwner != TokenProgramAddr || mintErr != nil || !mint.IsInitialized {
		return TokenErrInvalidMint
	}

	acct, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	defer acct.Drop()

	if acct.Owner() != TokenProgramAddr {
		return InstrErrIncorrectProgramId
	}

	tokenAcct, err := token.UnpackAccount(acct.Data())
	if err != nil {
		return InstrErrInvalidAccountData
	}
	if tokenAcct.IsInitialized() {
		return TokenErrAlreadyInUse
	}
	if err = checkTokenRentExempt(execCtx, acct); err != nil {
		return err
	}

	tokenAcct.Mint = mintKey
	tokenAcct.Owner = owner
	tokenAcct.State = token.AccountStateInitialized

	return acct.SetData(tokenAcct.Marshal())
}

func tokenMintTo(execCtx *ExecutionCtx, instrCtx *InstructionCtx, amount uint64) error {
	txCtx := execCtx.TransactionContext
	err := instrCtx.CheckNumOfInstructionAccounts(3)
	if err != nil {
		return err
	}

	authority, err := instrCtx.KeyOfInstructionAccount(txCtx, 2)
	if err != nil {
		return err
	}
	authoritySigned, err := instrCtx.IsInstructionAccountSigner(2)
	if err != nil {
		return err
	}

	destAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}
	if destAcct.Owner() != TokenProgramAddr {
		destAcct.Drop()
		return InstrErrIncorrectProgramId
	}
	dest, err := token.UnpackAccount(destAcct.Data())
	if err != nil {
		destAcct.Drop()
		return InstrErrInvalidAccountData
	}
	destAcct.Drop()

	if !dest.IsInitialized() {
		return TokenErrUninitializedState
	}
	if dest.IsFrozen() {
		return TokenErrAccountFrozen
	}

	mintAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	defer mintAcct.Drop()

	if dest.Mint != mintAcct.Key() {
		return TokenErrMintMismatch
	}
	if mintAcct.Owner() != TokenProgramAddr {
		return InstrErrIncorrectProgramId
	}
	mint, err := token.UnpackMint(mintAcct.Data())
	if err != nil {
		return InstrErrInvalidAccountData
	}
	if !mint.IsInitialized {
		return TokenErrUninitializedState
	}
	if mint.MintAuthority == nil || *mint.MintAuthority != authority {
		return TokenErrOwnerMismatch
	}
	if !authoritySigned {
		return InstrErrMissingRequiredSignature
	}

	mint.Supply, err = safemath.CheckedAddU64(mint.Supply, amount)
	if err != nil {
		return TokenErrOverflow
	}
	dest.Amount, err = safemath.CheckedAddU64(dest.Amount, amount)
	if err != nil {
		return TokenErrOverflow
	}

	if err = mintAcct.SetData(mint.Marshal()); err != nil {
		return err
	}
	mintAcct.Drop()

	destAcct, err = instrCtx.BorrowInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}
	defer destAcct.Drop()
	return destAcct.SetData(dest.Marshal())
}

func tokenTransfer(execCtx *ExecutionCtx, instrCtx *InstructionCtx, amount uint64) error {
	txCtx := execCtx.TransactionContext
	err := instrCtx.CheckNumOfInstructionAccounts(3)
	if err != nil {
		return err
	}

	sourceKey, err := instrCtx.KeyOfInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	destKey, err := instrCtx.KeyOfInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}
	authority, err := instrCtx.KeyOfInstructionAccount(txCtx, 2)
	if err != nil {
		return err
	}
	authoritySigned, err := instrCtx.IsInstructionAccountSigner(2)
	if err != nil {
		return err
	}

	source, err := loadTokenAccount(txCtx, instrCtx, 0)
	if err != nil {
		return err
	}
	dest, err := loadTokenAccount(txCtx, instrCtx, 1)
	if err != nil {
		return err
	}

	if !source.IsInitialized() || !dest.IsInitialized() {
		return TokenErrUninitializedState
	}
	if source.IsFrozen() || dest.IsFrozen() {
		return TokenErrAccountFrozen
	}
	if source.Amount < amount {
		return TokenErrInsufficientFunds
	}
	if source.Mint != dest.Mint {
		return TokenErrMintMismatch
	}
	if source.Owner != authority {
		return TokenErrOwnerMismatch
	}
	if !authoritySigned {
		return InstrErrMissingRequiredSignature
	}

	// self transfers only validate
	if sourceKey == destKey {
		return nil
	}

	source.Amount -= amount
	dest.Amount, err = safemath.CheckedAddU64(dest.Amount, amount)
	if err != nil {
		return TokenErrOverflow
	}

	if err = storeTokenAccount(txCtx, instrCtx, 0, source); err != nil {
		return err
	}
	return storeTokenAccount(txCtx, instrCtx, 1, dest)
}

func loadTokenAccount(txCtx *TransactionCtx, instrCtx *InstructionCtx, instrAcctIdx uint64) (*token.Account, error) {
	acct, err := instrCtx.BorrowInstructionAccount(txCtx, instrAcctIdx)
	if err != nil {
		return nil, err
	}
	defer acct.Drop()

	if acct.Owner() != TokenProgramAddr {
		return nil, InstrErrIncorrectProgramId
	}
	tokenAcct, err := token.UnpackAccount(acct.Data())
	if err != nil {
		return nil, InstrErrInvalidAccountData
	}
	return tokenAcct, nil
}

func storeTokenAccount(txCtx *TransactionCtx, instrCtx *InstructionCtx, instrAcctIdx uint64, tokenAcct *token.Account) error {
	acct, err := instrCtx.BorrowInstructionAccount(txCtx, instrAcctIdx)
	if err != nil {
		return err
	}
	defer acct.Drop()
	return acct.SetData(tokenAcct.Marshal())
}
