package rent

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/julianzamt/bankrun-counter/pkg/accounts"
	"github.com/julianzamt/bankrun-counter/pkg/sealevel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRentStateTransitions(t *testing.T) {
	rent := sealevel.DefaultRent()
	exempt := rent.MinimumBalance(0)

	txAccts := sealevel.NewTransactionAccounts([]accounts.Account{
		{Key: solana.NewWallet().PublicKey(), Lamports: exempt},
		{Key: solana.NewWallet().PublicKey(), Lamports: 0},
		{Key: solana.NewWallet().PublicKey(), Lamports: 100},
		{Key: solana.NewWallet().PublicKey(), Lamports: 100},
	})
	allWritable := func(int) bool { return true }

	pre := NewRentStateInfo(&rent, txAccts, allWritable)
	require.Len(t, pre, 4)
	assert.EqualValues(t, RentStateRentExempt, pre[0].RentState)
	assert.EqualValues(t, RentStateUninitialized, pre[1].RentState)
	assert.EqualValues(t, RentStateRentPaying, pre[2].RentState)

	// rent paying account that only loses lamports stays allowed
	txAccts.Accounts[2].Lamports = 50
	post := NewRentStateInfo(&rent, txAccts, allWritable)
	assert.NoError(t, VerifyRentStateChanges(pre, post))

	// exempt account dropping below the threshold is rejected
	txAccts.Accounts[0].Lamports = exempt - 1
	post = NewRentStateInfo(&rent, txAccts, allWritable)
	assert.ErrorIs(t, VerifyRentStateChanges(pre, post), ErrRentStateTransition)

	// a new account funded below the threshold is rejected
	txAccts.Accounts[0].Lamports = exempt
	txAccts.Accounts[1].Lamports = 1
	post = NewRentStateInfo(&rent, txAccts, allWritable)
	assert.ErrorIs(t, VerifyRentStateChanges(pre, post), ErrRentStateTransition)
}

func TestRentStateTransitions_ReadOnlyIgnored(t *testing.T) {
	rent := sealevel.DefaultRent()
	txAccts := sealevel.NewTransactionAccounts([]accounts.Account{{Key: solana.NewWallet().PublicKey(), Lamports: 0}})
	readOnly := func(int) bool { return false }

	pre := NewRentStateInfo(&rent, txAccts, readOnly)
	txAccts.Accounts[0].Lamports = 1
	post := NewRentStateInfo(&rent, txAccts, readOnly)
	assert.Nil(t, pre[0])
	assert.NoError(t, VerifyRentStateChanges(pre, post))
}
