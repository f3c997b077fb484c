package pda

import (
	"bytes"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/julianzamt/bankrun-counter/pkg/counter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPdaCommand(t *testing.T) {
	ownerKey := solana.NewWallet().PublicKey()
	var out bytes.Buffer
	Cmd.SetOut(&out)
	Cmd.SetArgs([]string{"--owner", ownerKey.String()})
	require.NoError(t, Cmd.Execute())

	counterAddr, _, err := counter.DeriveCounterAddress(counter.ProgramID, ownerKey)
	require.NoError(t, err)
	authorityAddr, _, err := counter.DeriveAuthorityAddress(counter.ProgramID)
	require.NoError(t, err)

	assert.Contains(t, out.String(), counterAddr.String())
	assert.Contains(t, out.String(), authorityAddr.String())
}

func TestPdaCommand_InvalidOwner(t *testing.T) {
	Cmd.SetArgs([]string{"--owner", "not-base58-0OIl"})
	Cmd.SilenceUsage = true
	assert.Error(t, Cmd.Execute())
}
