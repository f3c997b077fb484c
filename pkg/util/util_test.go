package util

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/julianzamt/bankrun-counter/pkg/accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupePubkeys(t *testing.T) {
	a := solana.MustPublicKeyFromBase58("11111111111111111111111111111111")
	b := solana.TokenProgramID
	c := solana.SPLAssociatedTokenAccountProgramID

	deduped := DedupePubkeys([]solana.PublicKey{c, a, b, c, a})
	require.Len(t, deduped, 3)
	assert.Equal(t, a, deduped[0])
	for i := 1; i < len(deduped); i++ {
		assert.True(t, PubkeyCmp(deduped[i-1], deduped[i]))
	}
}

func TestCalculateAcctHash_CoversEveryField(t *testing.T) {
	base := accounts.Account{Key: solana.TokenProgramID, Lamports: 10, Data: []byte{1, 2, 3}, Owner: solana.SystemProgramID}
	baseHash := CalculateAcctHash(base)
	assert.Len(t, baseHash, 32)

	modified := []accounts.Account{
		{Key: solana.SystemProgramID, Lamports: 10, Data: []byte{1, 2, 3}, Owner: solana.SystemProgramID},
		{Key: solana.TokenProgramID, Lamports: 11, Data: []byte{1, 2, 3}, Owner: solana.SystemProgramID},
		{Key: solana.TokenProgramID, Lamports: 10, Data: []byte{1, 2, 4}, Owner: solana.SystemProgramID},
		{Key: solana.TokenProgramID, Lamports: 10, Data: []byte{1, 2, 3}, Owner: solana.TokenProgramID},
		{Key: solana.TokenProgramID, Lamports: 10, Data: []byte{1, 2, 3}, Owner: solana.SystemProgramID, Executable: true},
	}
	for _, acct := range modified {
		assert.NotEqual(t, baseHash, CalculateAcctHash(acct))
	}
}

func TestAccountsDeltaHash_OrderIndependent(t *testing.T) {
	acct1 := &accounts.Account{Key: solana.TokenProgramID, Lamports: 1}
	acct2 := &accounts.Account{Key: solana.SystemProgramID, Lamports: 2}

	assert.Nil(t, AccountsDeltaHash(nil))
	assert.Equal(t, AccountsDeltaHash([]*accounts.Account{acct1, acct2}), AccountsDeltaHash([]*accounts.Account{acct2, acct1}))
	assert.NotEqual(t, AccountsDeltaHash([]*accounts.Account{acct1}), AccountsDeltaHash([]*accounts.Account{acct1, acct2}))
}
