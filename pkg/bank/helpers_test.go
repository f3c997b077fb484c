package bank

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/julianzamt/bankrun-counter/pkg/counter"
	"github.com/julianzamt/bankrun-counter/pkg/sealevel"
	"github.com/julianzamt/bankrun-counter/pkg/token"
	"github.com/stretchr/testify/require"
)

const (
	testStartUnixTimestamp = 1_700_000_000
	lamportsPerSol         = 1_000_000_000
)

type testBank struct {
	*Bank
	t *testing.T
}

func newTestBank(t *testing.T, opts ...func(*Config)) *testBank {
	cfg := DefaultConfig()
	cfg.Clock = clockwork.NewFakeClockAt(time.Unix(testStartUnixTimestamp, 0))
	for _, opt := range opts {
		opt(&cfg)
	}

	b, err := New(cfg)
	require.NoError(t, err)
	return &testBank{Bank: b, t: t}
}

func (tb *testBank) newKeypair(lamports uint64) solana.PrivateKey {
	privKey, err := solana.NewRandomPrivateKey()
	require.NoError(tb.t, err)
	if lamports > 0 {
		require.NoError(tb.t, tb.Airdrop(privKey.PublicKey(), lamports))
	}
	return privKey
}

func (tb *testBank) buildTx(payer solana.PrivateKey, ixs []solana.Instruction, signers ...solana.PrivateKey) *solana.Transaction {
	blockhash, _ := tb.LatestBlockhash()
	tx, err := solana.NewTransaction(ixs, blockhash, solana.TransactionPayer(payer.PublicKey()))
	require.NoError(tb.t, err)

	signers = append([]solana.PrivateKey{payer}, signers...)
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for idx := range signers {
			if signers[idx].PublicKey() == key {
				return &signers[idx]
			}
		}
		return nil
	})
	require.NoError(tb.t, err)
	return tx
}

func (tb *testBank) send(payer solana.PrivateKey, ixs []solana.Instruction, signers ...solana.PrivateKey) *TransactionResult {
	return tb.TryProcessTransaction(tb.buildTx(payer, ixs, signers...))
}

func (tb *testBank) balance(pubkey solana.PublicKey) uint64 {
	lamports, err := tb.GetBalance(pubkey)
	require.NoError(tb.t, err)
	return lamports
}

func (tb *testBank) warp(seconds int64) {
	clock, err := tb.GetClock()
	require.NoError(tb.t, err)
	clock.UnixTimestamp += seconds
	require.NoError(tb.t, tb.SetClock(*clock))
}

func (tb *testBank) tokenBalance(ata solana.PublicKey) uint64 {
	acct, err := tb.GetAccount(ata)
	require.NoError(tb.t, err)
	require.NotNil(tb.t, acct)
	tokenAcct, err := token.UnpackAccount(acct.Data)
	require.NoError(tb.t, err)
	return tokenAcct.Amount
}

func (tb *testBank) counterState(owner solana.PublicKey) *counter.Counter {
	addr, _, err := counter.DeriveCounterAddress(counter.ProgramID, owner)
	require.NoError(tb.t, err)
	acct, err := tb.GetAccount(addr)
	require.NoError(tb.t, err)
	require.NotNil(tb.t, acct)
	state, err := counter.Unmarshal(acct.Data)
	require.NoError(tb.t, err)
	return state
}

// counterFixture is a bank with a mint whose supply sits in the counter
// authority's associated token account.
type counterFixture struct {
	*testBank
	mintAuthority solana.PrivateKey
	mint          solana.PublicKey
	authorityAta  solana.PublicKey
}

func newCounterFixture(t *testing.T, supply uint64, opts ...func(*Config)) *counterFixture {
	tb := newTestBank(t, opts...)
	mintAuthority := tb.newKeypair(10 * lamportsPerSol)
	mintKey := tb.newKeypair(0)

	rent := sealevel.DefaultRent()
	ixs := token.NewCreateMintInstructions(mintAuthority.PublicKey(), mintKey.PublicKey(), mintAuthority.PublicKey(), 0, rent.MinimumBalance(token.MintSize))
	require.NoError(t, tb.send(mintAuthority, ixs, mintKey).Err)

	authority, _, err := counter.DeriveAuthorityAddress(counter.ProgramID)
	require.NoError(t, err)
	authorityAta, _, err := token.FindAssociatedTokenAddress(authority, mintKey.PublicKey())
	require.NoError(t, err)

	ixs = []solana.Instruction{token.NewCreateAssociatedTokenAccountInstruction(mintAuthority.PublicKey(), authority, mintKey.PublicKey())}
	if supply > 0 {
		ixs = append(ixs, token.NewMintToInstruction(supply, mintKey.PublicKey(), authorityAta, mintAuthority.PublicKey()))
	}
	require.NoError(t, tb.send(mintAuthority, ixs).Err)

	return &counterFixture{testBank: tb, mintAuthority: mintAuthority, mint: mintKey.PublicKey(), authorityAta: authorityAta}
}

func (f *counterFixture) initialize(user solana.PrivateKey) *TransactionResult {
	ix, err := counter.NewInitializeInstruction(counter.ProgramID, user.PublicKey())
	require.NoError(f.t, err)
	return f.send(user, []solana.Instruction{ix})
}

func (f *counterFixture) addOne(user solana.PrivateKey) *TransactionResult {
	ix, err := counter.NewAddOneInstruction(counter.ProgramID, user.PublicKey())
	require.NoError(f.t, err)
	return f.send(user, []solana.Instruction{ix})
}

func (f *counterFixture) transferOneTx(receiver solana.PrivateKey) *solana.Transaction {
	ix, err := counter.NewTransferOneTokenInstruction(counter.ProgramID, receiver.PublicKey(), f.mint)
	require.NoError(f.t, err)
	return f.buildTx(receiver, []solana.Instruction{ix})
}

func (f *counterFixture) transferOne(receiver solana.PrivateKey) *TransactionResult {
	return f.TryProcessTransaction(f.transferOneTx(receiver))
}

func (f *counterFixture) receiverAta(receiver solana.PublicKey) solana.PublicKey {
	ata, _, err := token.FindAssociatedTokenAddress(receiver, f.mint)
	require.NoError(f.t, err)
	return ata
}
