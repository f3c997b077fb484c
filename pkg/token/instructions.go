package token

import (
	"github.com/gagliardetto/solana-go"
	ata "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	tokenprog "github.com/gagliardetto/solana-go/programs/token"
	pda "github.com/julianzamt/bankrun-counter/pkg/solana"
)

var (
	ProgramID                = solana.TokenProgramID
	AssociatedTokenProgramID = solana.SPLAssociatedTokenAccountProgramID
)

const (
	AssociatedTokenCreate           = 0
	AssociatedTokenCreateIdempotent = 1
)

// FindAssociatedTokenAddress derives the associated token account of wallet
// for mint.
func FindAssociatedTokenAddress(wallet solana.PublicKey, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	seeds := [][]byte{wallet.Bytes(), ProgramID.Bytes(), mint.Bytes()}
	return pda.FindProgramAddress(seeds, AssociatedTokenProgramID)
}

// NewCreateMintInstructions allocates mint as a token-program account and
// initializes it. mint must sign the transaction.
func NewCreateMintInstructions(payer, mint, mintAuthority solana.PublicKey, decimals uint8, lamports uint64) []solana.Instruction {
	return []solana.Instruction{
		system.NewCreateAccountInstruction(lamports, MintSize, ProgramID, payer, mint).Build(),
		tokenprog.NewInitializeMint2Instruction(decimals, mintAuthority, mintAuthority, mint).Build(),
	}
}

func NewInitializeAccountInstruction(account, mint, owner solana.PublicKey) solana.Instruction {
	return tokenprog.NewInitializeAccount3Instruction(owner, account, mint).Build()
}

func NewMintToInstruction(amount uint64, mint, destination, authority solana.PublicKey) solana.Instruction {
	return tokenprog.NewMintToInstruction(amount, mint, destination, authority, []solana.PublicKey{}).Build()
}

func NewTransferInstruction(amount uint64, source, destination, owner solana.PublicKey) solana.Instruction {
	return tokenprog.NewTransferInstruction(amount, source, destination, owner, []solana.PublicKey{}).Build()
}

// NewCreateAssociatedTokenAccountInstruction is the wallet-facing builder;
// it lists the rent sysvar as a trailing account.
func NewCreateAssociatedTokenAccountInstruction(payer, wallet, mint solana.PublicKey) solana.Instruction {
	return ata.NewCreateInstruction(payer, wallet, mint).Build()
}

// NewAssociatedTokenInstruction builds the six-account form used by programs
// invoking the associated token program. kind is AssociatedTokenCreate or
// AssociatedTokenCreateIdempotent.
func NewAssociatedTokenInstruction(kind uint8, payer, wallet, mint solana.PublicKey) (solana.Instruction, error) {
	address, _, err := FindAssociatedTokenAddress(wallet, mint)
	if err != nil {
		return nil, err
	}
	return &solana.GenericInstruction{
		ProgID: AssociatedTokenProgramID,
		AccountValues: solana.AccountMetaSlice{
			solana.NewAccountMeta(payer, true, true),
			solana.NewAccountMeta(address, true, false),
			solana.NewAccountMeta(wallet, false, false),
			solana.NewAccountMeta(mint, false, false),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
			solana.NewAccountMeta(ProgramID, false, false),
		},
		DataBytes: []byte{kind},
	}, nil
}
