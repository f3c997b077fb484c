package sealevel

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/julianzamt/bankrun-counter/pkg/accounts"
	"github.com/julianzamt/bankrun-counter/pkg/base58"
)

const SysvarClockAddrStr = "SysvarC1ock11111111111111111111111111111111"

var SysvarClockAddr = solana.PublicKey(base58.MustDecodeFromString(SysvarClockAddrStr))

const SysvarClockStructLen = 40

type SysvarClock struct {
	Slot                uint64
	EpochStartTimestamp int64
	Epoch               uint64
	LeaderScheduleEpoch uint64
	UnixTimestamp       int64
}

func (sc *SysvarClock) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	sc.Slot, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read Slot when decoding SysvarClock: %w", err)
	}

	sc.EpochStartTimestamp, err = decoder.ReadInt64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read EpochStartTimestamp when decoding SysvarClock: %w", err)
	}

	sc.Epoch, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read Epoch when decoding SysvarClock: %w", err)
	}

	sc.LeaderScheduleEpoch, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read LeaderScheduleEpoch when decoding SysvarClock: %w", err)
	}

	sc.UnixTimestamp, err = decoder.ReadInt64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read UnixTimestamp when decoding SysvarClock: %w", err)
	}
	return
}

func (sc *SysvarClock) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteUint64(sc.Slot, bin.LE); err != nil {
		return err
	}
	if err := encoder.WriteInt64(sc.EpochStartTimestamp, bin.LE); err != nil {
		return err
	}
	if err := encoder.WriteUint64(sc.Epoch, bin.LE); err != nil {
		return err
	}
	if err := encoder.WriteUint64(sc.LeaderScheduleEpoch, bin.LE); err != nil {
		return err
	}
	return encoder.WriteInt64(sc.UnixTimestamp, bin.LE)
}

func ReadClockSysvar(accts accounts.Accounts) (*SysvarClock, error) {
	var clock SysvarClock
	if err := readSysvar(accts, SysvarClockAddr, &clock); err != nil {
		return nil, err
	}
	return &clock, nil
}

func WriteClockSysvar(accts accounts.Accounts, clock SysvarClock) error {
	return writeSysvar(accts, SysvarClockAddr, &clock)
}

// Clock reads the clock sysvar as seen by the running transaction.
func (execCtx *ExecutionCtx) Clock() (*SysvarClock, error) {
	if execCtx.GlobalCtx.Accounts == nil {
		return nil, InstrErrUnsupportedSysvar
	}
	return ReadClockSysvar(execCtx.GlobalCtx.Accounts)
}
