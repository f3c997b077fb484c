package sealevel

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/julianzamt/bankrun-counter/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenFixture struct {
	env       *testEnv
	payer     solana.PublicKey
	authority solana.PublicKey
	mint      solana.PublicKey
}

func newTokenFixture(t *testing.T) *tokenFixture {
	env := newTestEnv(t)
	payer := newWallet(t)
	env.set(walletAccount(payer, 1_000_000_000))
	authority := newWallet(t)
	mint := env.createMint(payer, authority)
	return &tokenFixture{env: env, payer: payer, authority: authority, mint: mint}
}

// newTokenAccount creates and initializes a plain token account owned by owner.
func (f *tokenFixture) newTokenAccount(owner solana.PublicKey) solana.PublicKey {
	t := f.env.t
	acct := newWallet(t)
	rent := DefaultRent()
	f.env.set(accountsWithOwner(acct, TokenProgramAddr, rent.MinimumBalance(token.AccountSize), token.AccountSize))
	require.NoError(t, f.env.execute(token.NewInitializeAccountInstruction(acct, f.mint, owner)))
	return acct
}

func TestExecute_Tx_Token_InitializeMint(t *testing.T) {
	f := newTokenFixture(t)

	mintAcct := f.env.get(f.mint)
	assert.Equal(t, TokenProgramAddr, solana.PublicKeyFromBytes(mintAcct.Owner[:]))

	mint, err := token.UnpackMint(mintAcct.Data)
	require.NoError(t, err)
	assert.True(t, mint.IsInitialized)
	assert.Equal(t, f.authority, *mint.MintAuthority)
	assert.Equal(t, uint64(0), mint.Supply)

	// initializing twice fails
	rent := DefaultRent()
	ixs := token.NewCreateMintInstructions(f.payer, f.mint, f.authority, 0, rent.MinimumBalance(token.MintSize))
	err = f.env.execute(ixs[1])
	assert.ErrorIs(t, err, TokenErrAlreadyInUse)
	assert.Contains(t, f.env.log.String(), "Program log: Error: account or token already in use")
}

func TestExecute_Tx_Token_MintTo_And_Transfer(t *testing.T) {
	f := newTokenFixture(t)
	alice := newWallet(t)
	bob := newWallet(t)
	aliceAta := f.newTokenAccount(alice)
	bobAta := f.newTokenAccount(bob)

	require.NoError(t, f.env.execute(token.NewMintToInstruction(100, f.mint, aliceAta, f.authority)))
	assert.Equal(t, uint64(100), f.env.tokenAccount(aliceAta).Amount)

	mint, err := token.UnpackMint(f.env.get(f.mint).Data)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), mint.Supply)

	require.NoError(t, f.env.execute(token.NewTransferInstruction(30, aliceAta, bobAta, alice)))
	assert.Equal(t, uint64(70), f.env.tokenAccount(aliceAta).Amount)
	assert.Equal(t, uint64(30), f.env.tokenAccount(bobAta).Amount)
}

func TestExecute_Tx_Token_Transfer_Failures(t *testing.T) {
	f := newTokenFixture(t)
	alice := newWallet(t)
	bob := newWallet(t)
	aliceAta := f.newTokenAccount(alice)
	bobAta := f.newTokenAccount(bob)
	require.NoError(t, f.env.execute(token.NewMintToInstruction(5, f.mint, aliceAta, f.authority)))

	// more than the balance
	err := f.env.execute(token.NewTransferInstruction(6, aliceAta, bobAta, alice))
	assert.ErrorIs(t, err, TokenErrInsufficientFunds)
	assert.True(t, IsCustomErr(err, 1))
	assert.Contains(t, f.env.log.String(), "failed: custom program error: 0x1")

	// wrong authority
	err = f.env.execute(token.NewTransferInstruction(1, aliceAta, bobAta, bob))
	assert.ErrorIs(t, err, TokenErrOwnerMismatch)

	// a different mint
	otherMint := f.env.createMint(f.payer, f.authority)
	otherFixture := &tokenFixture{env: f.env, payer: f.payer, authority: f.authority, mint: otherMint}
	otherAta := otherFixture.newTokenAccount(bob)
	err = f.env.execute(token.NewTransferInstruction(1, aliceAta, otherAta, alice))
	assert.ErrorIs(t, err, TokenErrMintMismatch)

	// balances unchanged
	assert.Equal(t, uint64(5), f.env.tokenAccount(aliceAta).Amount)
	assert.Equal(t, uint64(0), f.env.tokenAccount(bobAta).Amount)
}

func TestExecute_Tx_Token_MintTo_WrongAuthority(t *testing.T) {
	f := newTokenFixture(t)
	alice := newWallet(t)
	aliceAta := f.newTokenAccount(alice)

	err := f.env.execute(token.NewMintToInstruction(1, f.mint, aliceAta, alice))
	assert.ErrorIs(t, err, TokenErrOwnerMismatch)
}

func TestExecute_Tx_Token_InitializeAccount_NotRentExempt(t *testing.T) {
	f := newTokenFixture(t)
	acct := newWallet(t)
	f.env.set(accountsWithOwner(acct, TokenProgramAddr, 1, token.AccountSize))

	err := f.env.execute(token.NewInitializeAccountInstruction(acct, f.mint, newWallet(t)))
	assert.ErrorIs(t, err, TokenErrNotRentExempt)
}
