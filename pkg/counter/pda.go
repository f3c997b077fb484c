package counter

import (
	"github.com/gagliardetto/solana-go"
	pda "github.com/julianzamt/bankrun-counter/pkg/solana"
)

func DeriveCounterAddress(programID solana.PublicKey, owner solana.PublicKey) (solana.PublicKey, uint8, error) {
	return pda.FindProgramAddress([][]byte{SeedCounter, owner.Bytes()}, programID)
}

func DeriveAuthorityAddress(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return pda.FindProgramAddress([][]byte{SeedAuthority}, programID)
}

// CounterSignerSeeds returns the full seed set, bump included, of an owner's
// counter record.
func CounterSignerSeeds(owner solana.PublicKey, bump uint8) [][]byte {
	return [][]byte{SeedCounter, owner.Bytes(), {bump}}
}

func AuthoritySignerSeeds(bump uint8) [][]byte {
	return [][]byte{SeedAuthority, {bump}}
}
