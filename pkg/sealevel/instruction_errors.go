package sealevel

import (
	"errors"
	"fmt"
)

// instruction errors
var (
	InstrErrInvalidArgument             = errors.New("InstrErrInvalidArgument")
	InstrErrInvalidInstructionData      = errors.New("InstrErrInvalidInstructionData")
	InstrErrInvalidAccountData          = errors.New("InstrErrInvalidAccountData")
	InstrErrAccountDataTooSmall         = errors.New("InstrErrAccountDataTooSmall")
	InstrErrInsufficientFunds           = errors.New("InstrErrInsufficientFunds")
	InstrErrIncorrectProgramId          = errors.New("InstrErrIncorrectProgramId")
	InstrErrMissingRequiredSignature    = errors.New("InstrErrMissingRequiredSignature")
	InstrErrAccountAlreadyInitialized   = errors.New("InstrErrAccountAlreadyInitialized")
	InstrErrUninitializedAccount        = errors.New("InstrErrUninitializedAccount")
	InstrErrNotEnoughAccountKeys        = errors.New("InstrErrNotEnoughAccountKeys")
	InstrErrAccountBorrowFailed         = errors.New("InstrErrAccountBorrowFailed")
	InstrErrModifiedProgramId           = errors.New("InstrErrModifiedProgramId")
	InstrErrExternalAccountLamportSpend = errors.New("InstrErrExternalAccountLamportSpend")
	InstrErrExternalAccountDataModified = errors.New("InstrErrExternalAccountDataModified")
	InstrErrReadonlyLamportChange       = errors.New("InstrErrReadonlyLamportChange")
	InstrErrReadonlyDataModified        = errors.New("InstrErrReadonlyDataModified")
	InstrErrExecutableDataModified      = errors.New("InstrErrExecutableDataModified")
	InstrErrExecutableLamportChange     = errors.New("InstrErrExecutableLamportChange")
	InstrErrUnsupportedProgramId        = errors.New("InstrErrUnsupportedProgramId")
	InstrErrCallDepth                   = errors.New("InstrErrCallDepth")
	InstrErrMissingAccount              = errors.New("InstrErrMissingAccount")
	InstrErrReentrancyNotAllowed        = errors.New("InstrErrReentrancyNotAllowed")
	InstrErrPrivilegeEscalation         = errors.New("InstrErrPrivilegeEscalation")
	InstrErrAccountNotExecutable        = errors.New("InstrErrAccountNotExecutable")
	InstrErrInvalidSeeds                = errors.New("InstrErrInvalidSeeds")
	InstrErrInvalidRealloc              = errors.New("InstrErrInvalidRealloc")
	InstrErrComputationalBudgetExceeded = errors.New("InstrErrComputationalBudgetExceeded")
	InstrErrInvalidAccountOwner         = errors.New("InstrErrInvalidAccountOwner")
	InstrErrArithmeticOverflow          = errors.New("InstrErrArithmeticOverflow")
	InstrErrUnsupportedSysvar           = errors.New("InstrErrUnsupportedSysvar")
	InstrErrIllegalOwner                = errors.New("InstrErrIllegalOwner")
)

// CustomErr is a program-defined error, reported by the runtime as
// "custom program error: 0x<code>".
type CustomErr struct {
	Code uint32
	Name string
	Msg  string
}

func (e *CustomErr) Error() string {
	return e.Name
}

// token program errors
var (
	TokenErrNotRentExempt        = &CustomErr{Code: 0, Name: "TokenErrNotRentExempt", Msg: "Lamport balance below rent-exempt threshold"}
	TokenErrInsufficientFunds    = &CustomErr{Code: 1, Name: "TokenErrInsufficientFunds", Msg: "insufficient funds"}
	TokenErrInvalidMint          = &CustomErr{Code: 2, Name: "TokenErrInvalidMint", Msg: "Invalid Mint"}
	TokenErrMintMismatch         = &CustomErr{Code: 3, Name: "TokenErrMintMismatch", Msg: "Account not associated with this Mint"}
	TokenErrOwnerMismatch        = &CustomErr{Code: 4, Name: "TokenErrOwnerMismatch", Msg: "owner does not match"}
	TokenErrAlreadyInUse         = &CustomErr{Code: 6, Name: "TokenErrAlreadyInUse", Msg: "account or token already in use"}
	TokenErrUninitializedState   = &CustomErr{Code: 9, Name: "TokenErrUninitializedState", Msg: "State is unititialized"}
	TokenErrOverflow             = &CustomErr{Code: 14, Name: "TokenErrOverflow", Msg: "Operation overflowed"}
	TokenErrAccountFrozen        = &CustomErr{Code: 17, Name: "TokenErrAccountFrozen", Msg: "Account is frozen"}
	TokenErrMintDecimalsMismatch = &CustomErr{Code: 18, Name: "TokenErrMintDecimalsMismatch", Msg: "The provided decimals value different from the Mint decimals"}
)

// counter program errors
var (
	CounterErrCannotAddYet      = &CustomErr{Code: 6000, Name: "CannotAddYet", Msg: "must pass 5 minutes since last add"}
	CounterErrCannotTransferYet = &CustomErr{Code: 6001, Name: "CannotTransferYet", Msg: "must pass 5 minutes since last transfer"}
)

func IsCustomErr(err error, code uint32) bool {
	var custom *CustomErr
	if errors.As(err, &custom) {
		return custom.Code == code
	}
	return false
}

// instrErrLogString renders an instruction error the way the runtime log
// reports it.
func instrErrLogString(err error) string {
	var custom *CustomErr
	if errors.As(err, &custom) {
		return fmt.Sprintf("custom program error: 0x%x", custom.Code)
	}
	return err.Error()
}
