package bank

import (
	"errors"
	"fmt"

	"github.com/julianzamt/bankrun-counter/pkg/fees"
	"github.com/julianzamt/bankrun-counter/pkg/rent"
	"github.com/julianzamt/bankrun-counter/pkg/sealevel"
)

type TxErrInvalidSignature struct {
	msg string
}

func NewTxErrInvalidSignature(msg string) error {
	return &TxErrInvalidSignature{msg: msg}
}

func (err *TxErrInvalidSignature) Error() string {
	return err.msg
}

var (
	TxErrBlockhashNotFound        = errors.New("TxErrBlockhashNotFound")
	TxErrAlreadyProcessed         = errors.New("TxErrAlreadyProcessed")
	TxErrAccountInUse             = errors.New("TxErrAccountInUse")
	TxErrSanitizeFailure          = errors.New("TxErrSanitizeFailure")
	TxErrInsufficientFundsForFee  = fees.ErrInsufficientFundsForFee
	TxErrInvalidAccountForFee     = fees.ErrInvalidAccountForFee
	TxErrInsufficientFundsForRent = rent.ErrRentStateTransition
)

// InstructionError is the failure of one instruction, which fails the whole
// transaction.
type InstructionError struct {
	Index int
	Err   error
}

func (e *InstructionError) Error() string {
	var custom *sealevel.CustomErr
	if errors.As(e.Err, &custom) {
		return fmt.Sprintf("Error processing Instruction %d: custom program error: 0x%x", e.Index, custom.Code)
	}
	return fmt.Sprintf("Error processing Instruction %d: %s", e.Index, e.Err)
}

func (e *InstructionError) Unwrap() error {
	return e.Err
}
