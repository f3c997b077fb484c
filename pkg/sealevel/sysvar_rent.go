package sealevel

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/julianzamt/bankrun-counter/pkg/accounts"
	"github.com/julianzamt/bankrun-counter/pkg/base58"
)

const SysvarRentAddrStr = "SysvarRent111111111111111111111111111111111"

var SysvarRentAddr = solana.PublicKey(base58.MustDecodeFromString(SysvarRentAddrStr))

const SysvarRentStructLen = 17

// AccountStorageOverhead is charged on top of the data length of every account.
const AccountStorageOverhead = 128

type SysvarRent struct {
	LamportsPerUint8Year uint64
	ExemptionThreshold   float64
	BurnPercent          byte
}

func DefaultRent() SysvarRent {
	return SysvarRent{LamportsPerUint8Year: 3480, ExemptionThreshold: 2.0, BurnPercent: 50}
}

func (sr *SysvarRent) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	sr.LamportsPerUint8Year, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read LamportsPerUint8Year when decoding SysvarRent: %w", err)
	}

	sr.ExemptionThreshold, err = decoder.ReadFloat64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read ExemptionThreshold when decoding SysvarRent: %w", err)
	}

	sr.BurnPercent, err = decoder.ReadByte()
	if err != nil {
		return fmt.Errorf("failed to read BurnPercent when decoding SysvarRent: %w", err)
	}
	return
}

func (sr *SysvarRent) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteUint64(sr.LamportsPerUint8Year, bin.LE); err != nil {
		return err
	}
	if err := encoder.WriteFloat64(sr.ExemptionThreshold, bin.LE); err != nil {
		return err
	}
	return encoder.WriteByte(sr.BurnPercent)
}

// MinimumBalance is the lamport balance an account of dataLen bytes needs
// to be rent exempt.
func (sr *SysvarRent) MinimumBalance(dataLen uint64) uint64 {
	bytes := dataLen + AccountStorageOverhead
	return uint64(float64(bytes*sr.LamportsPerUint8Year) * sr.ExemptionThreshold)
}

func (sr *SysvarRent) IsExempt(lamports uint64, dataLen uint64) bool {
	return lamports >= sr.MinimumBalance(dataLen)
}

func ReadRentSysvar(accts accounts.Accounts) (*SysvarRent, error) {
	var rent SysvarRent
	if err := readSysvar(accts, SysvarRentAddr, &rent); err != nil {
		return nil, err
	}
	return &rent, nil
}

func WriteRentSysvar(accts accounts.Accounts, rent SysvarRent) error {
	return writeSysvar(accts, SysvarRentAddr, &rent)
}

func (execCtx *ExecutionCtx) Rent() (*SysvarRent, error) {
	if execCtx.GlobalCtx.Accounts == nil {
		return nil, InstrErrUnsupportedSysvar
	}
	return ReadRentSysvar(execCtx.GlobalCtx.Accounts)
}
