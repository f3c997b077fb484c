package sealevel

import (
	"github.com/gagliardetto/solana-go"
)

type Instruction struct {
	Accounts  []AccountMeta
	Data      []byte
	ProgramId solana.PublicKey
}

type AccountMeta struct {
	Pubkey     solana.PublicKey
	IsSigner   bool
	IsWritable bool
}

type InstructionAccount struct {
	IndexInTransaction uint64
	IndexInCaller      uint64
	IndexInCallee      uint64
	IsSigner           bool
	IsWritable         bool
}

// InstructionFromSolana converts an instruction produced by the solana-go
// builders into the runtime's representation, so native programs can reuse
// the same builders as off-chain callers for their CPIs.
func InstructionFromSolana(ix solana.Instruction) (Instruction, error) {
	data, err := ix.Data()
	if err != nil {
		return Instruction{}, err
	}

	metas := ix.Accounts()
	instr := Instruction{ProgramId: ix.ProgramID(), Data: data, Accounts: make([]AccountMeta, 0, len(metas))}
	for _, meta := range metas {
		instr.Accounts = append(instr.Accounts, AccountMeta{Pubkey: meta.PublicKey, IsSigner: meta.IsSigner, IsWritable: meta.IsWritable})
	}
	return instr, nil
}

// InstructionAcctsFromAccountMetas maps an instruction's account metas onto
// transaction account indices. Repeated keys point back at their first
// occurrence in the instruction.
func InstructionAcctsFromAccountMetas(instrAcctMetas []AccountMeta, txAccounts TransactionAccounts) []InstructionAccount {
	instrAccts := make([]InstructionAccount, 0, len(instrAcctMetas))

	for instrAcctIdx, accountMeta := range instrAcctMetas {
		idxInTx := -1
		for pos, acct := range txAccounts.Accounts {
			if acct.Key == accountMeta.Pubkey {
				idxInTx = pos
				break
			}
		}

		idxInCallee := instrAcctIdx
		for pos, instrAcct := range instrAccts {
			if instrAcct.IndexInTransaction == uint64(idxInTx) {
				idxInCallee = pos
				break
			}
		}

		instrAccts = append(instrAccts, InstructionAccount{IndexInTransaction: uint64(idxInTx), IndexInCaller: uint64(idxInTx),
			IndexInCallee: uint64(idxInCallee), IsSigner: accountMeta.IsSigner, IsWritable: accountMeta.IsWritable})
	}

	return instrAccts
}
