package sealevel

import (
	"github.com/gagliardetto/solana-go"
	"github.com/julianzamt/bankrun-counter/pkg/base58"
	"github.com/julianzamt/bankrun-counter/pkg/counter"
	"github.com/julianzamt/bankrun-counter/pkg/token"
)

const NativeLoaderAddrStr = "NativeLoader1111111111111111111111111111111"

var NativeLoaderAddr = solana.PublicKey(base58.MustDecodeFromString(NativeLoaderAddrStr))

const SystemProgramAddrStr = "11111111111111111111111111111111"

var SystemProgramAddr = solana.PublicKey(base58.MustDecodeFromString(SystemProgramAddrStr))

var (
	TokenProgramAddr           = token.ProgramID
	AssociatedTokenProgramAddr = token.AssociatedTokenProgramID
	CounterProgramAddr         = counter.ProgramID
)

type NativeProgramFn func(execCtx *ExecutionCtx) error

// Builtin is a program installed at genesis and executed natively.
type Builtin struct {
	Name      string
	ProgramId solana.PublicKey
	Execute   NativeProgramFn
}

func Builtins() []Builtin {
	return []Builtin{
		{Name: "system_program", ProgramId: SystemProgramAddr, Execute: SystemProgramExecute},
		{Name: "spl_token", ProgramId: TokenProgramAddr, Execute: SplTokenProgramExecute},
		{Name: "spl_associated_token_account", ProgramId: AssociatedTokenProgramAddr, Execute: AssociatedTokenProgramExecute},
		{Name: "bankrun_counter", ProgramId: CounterProgramAddr, Execute: CounterProgramExecute},
	}
}

func resolveNativeProgramById(programId solana.PublicKey) (NativeProgramFn, error) {
	switch programId {
	case SystemProgramAddr:
		return SystemProgramExecute, nil
	case TokenProgramAddr:
		return SplTokenProgramExecute, nil
	case AssociatedTokenProgramAddr:
		return AssociatedTokenProgramExecute, nil
	case CounterProgramAddr:
		return CounterProgramExecute, nil
	}
	return nil, InstrErrUnsupportedProgramId
}

func verifySigner(authorized solana.PublicKey, signers []solana.PublicKey) error {
	for _, signer := range signers {
		if signer == authorized {
			return nil
		}
	}
	return InstrErrMissingRequiredSignature
}
