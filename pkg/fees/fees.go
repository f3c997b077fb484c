package fees

import (
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/julianzamt/bankrun-counter/pkg/safemath"
	"github.com/julianzamt/bankrun-counter/pkg/sealevel"
	"k8s.io/klog/v2"
)

const DefaultLamportsPerSignature = 5000

var (
	ErrInsufficientFundsForFee = errors.New("TxErrInsufficientFundsForFee")
	ErrInvalidAccountForFee    = errors.New("TxErrInvalidAccountForFee")
)

const feePayerIdx = 0

// CalculateFee is the flat per-signature fee of tx.
func CalculateFee(tx *solana.Transaction, lamportsPerSignature uint64) (uint64, error) {
	numSignatures := uint64(tx.Message.Header.NumRequiredSignatures)
	return safemath.CheckedMulU64(numSignatures, lamportsPerSignature)
}

// ApplyTxFees debits the transaction fee from the fee payer, which is always
// the first account of the transaction. It returns the fee and the payer's
// balance after the debit.
func ApplyTxFees(tx *solana.Transaction, transactionAccts *sealevel.TransactionAccounts, lamportsPerSignature uint64) (uint64, uint64, error) {
	feePayerAcct, err := transactionAccts.GetAccount(feePayerIdx)
	if err != nil {
		return 0, 0, ErrInvalidAccountForFee
	}

	if solana.PublicKey(feePayerAcct.Owner) != sealevel.SystemProgramAddr || len(feePayerAcct.Data) != 0 {
		return 0, 0, ErrInvalidAccountForFee
	}

	totalTxFee, err := CalculateFee(tx, lamportsPerSignature)
	if err != nil {
		return 0, 0, err
	}

	if feePayerAcct.Lamports < totalTxFee {
		return totalTxFee, 0, ErrInsufficientFundsForFee
	}

	klog.V(3).Infof("tx fee: %d", totalTxFee)

	feePayerAcct.Lamports -= totalTxFee
	err = transactionAccts.Touch(feePayerIdx)
	if err != nil {
		return 0, 0, err
	}

	return totalTxFee, feePayerAcct.Lamports, nil
}
