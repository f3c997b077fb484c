// Package token holds the SPL token mint and account layouts, the associated
// token account derivation and client-side instruction builders.
package token

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const (
	MintSize    = 82
	AccountSize = 165
)

type AccountState uint8

const (
	AccountStateUninitialized AccountState = iota
	AccountStateInitialized
	AccountStateFrozen
)

var (
	ErrInvalidMintSize    = errors.New("invalid mint data length")
	ErrInvalidAccountSize = errors.New("invalid token account data length")
	ErrInvalidOptionTag   = errors.New("invalid COption tag")
)

type Mint struct {
	MintAuthority   *solana.PublicKey
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority *solana.PublicKey
}

type Account struct {
	Mint            solana.PublicKey
	Owner           solana.PublicKey
	Amount          uint64
	Delegate        *solana.PublicKey
	State           AccountState
	IsNative        *uint64
	DelegatedAmount uint64
	CloseAuthority  *solana.PublicKey
}

// COption fields are a u32 tag followed by the value, which occupies its
// space whether or not it is set.

func readOptionPubkey(decoder *bin.Decoder) (*solana.PublicKey, error) {
	tag, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return nil, err
	}
	b, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return nil, err
	}
	switch tag {
	case 0:
		return nil, nil
	case 1:
		pk := solana.PublicKeyFromBytes(b)
		return &pk, nil
	default:
		return nil, ErrInvalidOptionTag
	}
}

func writeOptionPubkey(encoder *bin.Encoder, pk *solana.PublicKey) error {
	if pk == nil {
		if err := encoder.WriteUint32(0, bin.LE); err != nil {
			return err
		}
		return encoder.WriteBytes(make([]byte, solana.PublicKeyLength), false)
	}
	if err := encoder.WriteUint32(1, bin.LE); err != nil {
		return err
	}
	return encoder.WriteBytes(pk[:], false)
}

func (mint *Mint) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	mint.MintAuthority, err = readOptionPubkey(decoder)
	if err != nil {
		return fmt.Errorf("failed to read mint authority: %w", err)
	}
	mint.Supply, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}
	mint.Decimals, err = decoder.ReadUint8()
	if err != nil {
		return err
	}
	mint.IsInitialized, err = decoder.ReadBool()
	if err != nil {
		return err
	}
	mint.FreezeAuthority, err = readOptionPubkey(decoder)
	if err != nil {
		return fmt.Errorf("failed to read freeze authority: %w", err)
	}
	return nil
}

func (mint *Mint) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := writeOptionPubkey(encoder, mint.MintAuthority); err != nil {
		return err
	}
	if err := encoder.WriteUint64(mint.Supply, bin.LE); err != nil {
		return err
	}
	if err := encoder.WriteUint8(mint.Decimals); err != nil {
		return err
	}
	if err := encoder.WriteBool(mint.IsInitialized); err != nil {
		return err
	}
	return writeOptionPubkey(encoder, mint.FreezeAuthority)
}

func (mint *Mint) Marshal() []byte {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	// writes to a bytes.Buffer do not fail
	_ = mint.MarshalWithEncoder(enc)
	return buf.Bytes()
}

func UnpackMint(data []byte) (*Mint, error) {
	if len(data) != MintSize {
		return nil, ErrInvalidMintSize
	}
	mint := new(Mint)
	if err := mint.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, err
	}
	return mint, nil
}

func (acct *Account) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	mint, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	acct.Mint = solana.PublicKeyFromBytes(mint)

	owner, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	acct.Owner = solana.PublicKeyFromBytes(owner)

	acct.Amount, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	acct.Delegate, err = readOptionPubkey(decoder)
	if err != nil {
		return fmt.Errorf("failed to read delegate: %w", err)
	}

	state, err := decoder.ReadUint8()
	if err != nil {
		return err
	}
	if state > uint8(AccountStateFrozen) {
		return fmt.Errorf("invalid account state %d", state)
	}
	acct.State = AccountState(state)

	nativeTag, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return err
	}
	nativeVal, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}
	switch nativeTag {
	case 0:
		acct.IsNative = nil
	case 1:
		acct.IsNative = &nativeVal
	default:
		return ErrInvalidOptionTag
	}

	acct.DelegatedAmount, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	acct.CloseAuthority, err = readOptionPubkey(decoder)
	if err != nil {
		return fmt.Errorf("failed to read close authority: %w", err)
	}
	return nil
}

func (acct *Account) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteBytes(acct.Mint[:], false); err != nil {
		return err
	}
	if err := encoder.WriteBytes(acct.Owner[:], false); err != nil {
		return err
	}
	if err := encoder.WriteUint64(acct.Amount, bin.LE); err != nil {
		return err
	}
	if err := writeOptionPubkey(encoder, acct.Delegate); err != nil {
		return err
	}
	if err := encoder.WriteUint8(uint8(acct.State)); err != nil {
		return err
	}
	if acct.IsNative == nil {
		if err := encoder.WriteUint32(0, bin.LE); err != nil {
			return err
		}
		if err := encoder.WriteUint64(0, bin.LE); err != nil {
			return err
		}
	} else {
		if err := encoder.WriteUint32(1, bin.LE); err != nil {
			return err
		}
		if err := encoder.WriteUint64(*acct.IsNative, bin.LE); err != nil {
			return err
		}
	}
	if err := encoder.WriteUint64(acct.DelegatedAmount, bin.LE); err != nil {
		return err
	}
	return writeOptionPubkey(encoder, acct.CloseAuthority)
}

func (acct *Account) Marshal() []byte {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	_ = acct.MarshalWithEncoder(enc)
	return buf.Bytes()
}

func UnpackAccount(data []byte) (*Account, error) {
	if len(data) != AccountSize {
		return nil, ErrInvalidAccountSize
	}
	acct := new(Account)
	if err := acct.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, err
	}
	return acct, nil
}

func (acct *Account) IsInitialized() bool {
	return acct.State != AccountStateUninitialized
}

func (acct *Account) IsFrozen() bool {
	return acct.State == AccountStateFrozen
}
