package counter

import (
	"github.com/gagliardetto/solana-go"
	"github.com/julianzamt/bankrun-counter/pkg/token"
)

func NewInitializeInstruction(programID solana.PublicKey, owner solana.PublicKey) (solana.Instruction, error) {
	counterAddr, _, err := DeriveCounterAddress(programID, owner)
	if err != nil {
		return nil, err
	}
	return &solana.GenericInstruction{
		ProgID: programID,
		AccountValues: solana.AccountMetaSlice{
			solana.NewAccountMeta(owner, true, true),
			solana.NewAccountMeta(counterAddr, true, false),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
		},
		DataBytes: InitializeDiscriminator[:],
	}, nil
}

func NewAddOneInstruction(programID solana.PublicKey, owner solana.PublicKey) (solana.Instruction, error) {
	counterAddr, _, err := DeriveCounterAddress(programID, owner)
	if err != nil {
		return nil, err
	}
	return &solana.GenericInstruction{
		ProgID: programID,
		AccountValues: solana.AccountMetaSlice{
			solana.NewAccountMeta(counterAddr, true, false),
			solana.NewAccountMeta(owner, false, true),
		},
		DataBytes: AddOneDiscriminator[:],
	}, nil
}

// NewTransferOneTokenInstruction disburses one token of mint from the
// authority's associated token account to receiver's.
func NewTransferOneTokenInstruction(programID solana.PublicKey, receiver solana.PublicKey, mint solana.PublicKey) (solana.Instruction, error) {
	authority, _, err := DeriveAuthorityAddress(programID)
	if err != nil {
		return nil, err
	}
	authorityAta, _, err := token.FindAssociatedTokenAddress(authority, mint)
	if err != nil {
		return nil, err
	}
	receiverAta, _, err := token.FindAssociatedTokenAddress(receiver, mint)
	if err != nil {
		return nil, err
	}
	counterAddr, _, err := DeriveCounterAddress(programID, receiver)
	if err != nil {
		return nil, err
	}
	return &solana.GenericInstruction{
		ProgID: programID,
		AccountValues: solana.AccountMetaSlice{
			solana.NewAccountMeta(token.AssociatedTokenProgramID, false, false),
			solana.NewAccountMeta(mint, false, false),
			solana.NewAccountMeta(authority, false, false),
			solana.NewAccountMeta(authorityAta, true, false),
			solana.NewAccountMeta(receiver, true, true),
			solana.NewAccountMeta(receiverAta, true, false),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
			solana.NewAccountMeta(token.ProgramID, false, false),
			solana.NewAccountMeta(counterAddr, true, false),
		},
		DataBytes: TransferOneTokenDiscriminator[:],
	}, nil
}
