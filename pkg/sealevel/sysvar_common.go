package sealevel

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/julianzamt/bankrun-counter/pkg/accounts"
	"github.com/julianzamt/bankrun-counter/pkg/base58"
)

const SysvarOwnerAddrStr = "Sysvar1111111111111111111111111111111111111"

var SysvarOwnerAddr = solana.PublicKey(base58.MustDecodeFromString(SysvarOwnerAddrStr))

type sysvar interface {
	UnmarshalWithDecoder(decoder *bin.Decoder) error
	MarshalWithEncoder(encoder *bin.Encoder) error
}

func readSysvar(accts accounts.Accounts, addr solana.PublicKey, sv sysvar) error {
	pk := [32]byte(addr)
	acct, err := accts.GetAccount(&pk)
	if err != nil {
		return err
	}
	if acct == nil {
		return InstrErrUnsupportedSysvar
	}
	return sv.UnmarshalWithDecoder(bin.NewBinDecoder(acct.Data))
}

// writeSysvar stores sv at addr, keeping the lamport balance of an existing
// sysvar account.
func writeSysvar(accts accounts.Accounts, addr solana.PublicKey, sv sysvar) error {
	buf := new(bytes.Buffer)
	if err := sv.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		return err
	}

	pk := [32]byte(addr)
	acct, err := accts.GetAccount(&pk)
	if err != nil {
		return err
	}
	if acct == nil {
		acct = &accounts.Account{Key: addr, Lamports: 1, Owner: SysvarOwnerAddr}
	}
	acct.SetData(buf.Bytes())
	return accts.SetAccount(&pk, acct)
}
