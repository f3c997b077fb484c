package sealevel

import (
	"github.com/gagliardetto/solana-go"
	pda "github.com/julianzamt/bankrun-counter/pkg/solana"
)

// DerivedSigner is a program address together with the program it was
// derived for. Only the owning program can sign with it, through
// ExecutionCtx.NativeInvokeSigned.
type DerivedSigner struct {
	programId solana.PublicKey
	address   solana.PublicKey
}

// DeriveSigner recomputes the address from seeds, bump included, under
// programId.
func DeriveSigner(programId solana.PublicKey, seeds ...[]byte) (DerivedSigner, error) {
	addr, err := pda.CreateProgramAddress(seeds, programId)
	if err != nil {
		return DerivedSigner{}, InstrErrInvalidSeeds
	}
	return DerivedSigner{programId: programId, address: addr}, nil
}

func (s DerivedSigner) Address() solana.PublicKey {
	return s.address
}

func (s DerivedSigner) ProgramId() solana.PublicKey {
	return s.programId
}
