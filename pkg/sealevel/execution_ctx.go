package sealevel

import (
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/julianzamt/bankrun-counter/pkg/cu"
	"github.com/julianzamt/bankrun-counter/pkg/global"
	"k8s.io/klog/v2"
)

// ExecutionCtx is the state threaded through one transaction's instructions,
// including those invoked by other programs.
type ExecutionCtx struct {
	Log                Logger
	TransactionContext *TransactionCtx
	GlobalCtx          global.GlobalCtx
	ComputeMeter       cu.ComputeMeter
}

func (execCtx *ExecutionCtx) PrepareInstruction(ix Instruction, signers []solana.PublicKey) ([]InstructionAccount, []uint64, error) {
	txCtx := execCtx.TransactionContext

	ixCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return nil, nil, err
	}

	dedupInstructionAccounts := make([]InstructionAccount, 0)
	duplicateIndices := make([]uint64, 0)

	for instructionAcctIndex, accountMeta := range ix.Accounts {
		indexInTx, err := txCtx.IndexOfAccount(accountMeta.Pubkey)
		if err != nil {
			klog.Errorf("instruction references unknown account %s", accountMeta.Pubkey)
			return nil, nil, err
		}

		duplicateIndex := -1
		for index, instrAcct := range dedupInstructionAccounts {
			if instrAcct.IndexInTransaction == indexInTx {
				duplicateIndex = index
				break
			}
		}

		if duplicateIndex != -1 {
			duplicateIndices = append(duplicateIndices, uint64(duplicateIndex))
			dedupInstructionAccounts[duplicateIndex].IsSigner = dedupInstructionAccounts[duplicateIndex].IsSigner || accountMeta.IsSigner
			dedupInstructionAccounts[duplicateIndex].IsWritable = dedupInstructionAccounts[duplicateIndex].IsWritable || accountMeta.IsWritable
		} else {
			indexInCaller, err := ixCtx.IndexOfInstructionAccount(txCtx, accountMeta.Pubkey)
			if err != nil {
				klog.Errorf("instruction account %s is not available to the caller", accountMeta.Pubkey)
				return nil, nil, err
			}
			duplicateIndices = append(duplicateIndices, uint64(len(dedupInstructionAccounts)))

			instrAcct := InstructionAccount{IndexInTransaction: indexInTx,
				IndexInCaller: indexInCaller,
				IndexInCallee: uint64(instructionAcctIndex),
				IsSigner:      accountMeta.IsSigner,
				IsWritable:    accountMeta.IsWritable}

			dedupInstructionAccounts = append(dedupInstructionAccounts, instrAcct)
		}
	}

	for _, instructionAcct := range dedupInstructionAccounts {
		borrowedAcct, err := ixCtx.BorrowInstructionAccount(txCtx, instructionAcct.IndexInCaller)
		if err != nil {
			return nil, nil, err
		}

		// read-only in the caller cannot become writable in the callee
		if instructionAcct.IsWritable && !borrowedAcct.IsWritable() {
			borrowedAcct.Drop()
			klog.Errorf("%s writable privilege escalated", borrowedAcct.Key())
			return nil, nil, InstrErrPrivilegeEscalation
		}

		// a callee signer must have signed the caller or be derived by it
		presentInSigners := false
		for _, addr := range signers {
			if addr == borrowedAcct.Key() {
				presentInSigners = true
				break
			}
		}
		if instructionAcct.IsSigner && !(borrowedAcct.IsSigner() || presentInSigners) {
			borrowedAcct.Drop()
			klog.Errorf("%s signer privilege escalated", borrowedAcct.Key())
			return nil, nil, InstrErrPrivilegeEscalation
		}
		borrowedAcct.Drop()
	}

	instructionAccounts := make([]InstructionAccount, 0, len(duplicateIndices))
	for _, duplicateIndex := range duplicateIndices {
		if duplicateIndex >= uint64(len(dedupInstructionAccounts)) {
			return nil, nil, InstrErrNotEnoughAccountKeys
		}
		instructionAccounts = append(instructionAccounts, dedupInstructionAccounts[duplicateIndex])
	}

	calleeProgramId := ix.ProgramId
	programAcctIdx, err := ixCtx.IndexOfInstructionAccount(txCtx, calleeProgramId)
	if err != nil {
		klog.Errorf("unknown program %s", calleeProgramId)
		return nil, nil, err
	}

	borrowedProgramAcct, err := ixCtx.BorrowInstructionAccount(txCtx, programAcctIdx)
	if err != nil {
		return nil, nil, err
	}
	defer borrowedProgramAcct.Drop()

	if !borrowedProgramAcct.IsExecutable() {
		klog.Errorf("account %s is not executable", calleeProgramId)
		return nil, nil, InstrErrAccountNotExecutable
	}

	return instructionAccounts, []uint64{borrowedProgramAcct.IndexInTransaction}, nil
}

func (execCtx *ExecutionCtx) ProcessInstruction(instrData []byte, instructionAccts []InstructionAccount, programIndices []uint64) error {
	instrCtx := &InstructionCtx{ProgramAccounts: programIndices, InstructionAccounts: instructionAccts, Data: instrData}

	err := execCtx.Push(instrCtx)
	if err != nil {
		return err
	}

	err1 := execCtx.ExecuteInstruction()
	err2 := execCtx.Pop()

	if err1 != nil {
		return err1
	}
	return err2
}

func (execCtx *ExecutionCtx) ExecuteInstruction() error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	programAcct, err := instrCtx.BorrowProgramAccount(txCtx)
	if err != nil {
		return InstrErrUnsupportedProgramId
	}
	programId := programAcct.Key()
	ownerId := programAcct.Owner()
	executable := programAcct.IsExecutable()
	programAcct.Drop()

	execCtx.logInvoke(programId, instrCtx.StackHeight)

	if ownerId != NativeLoaderAddr || !executable {
		klog.V(2).Infof("program %s is not a native builtin (owner %s)", programId, ownerId)
		execCtx.logResult(programId, InstrErrUnsupportedProgramId)
		return InstrErrUnsupportedProgramId
	}

	nativeProgramFn, err := resolveNativeProgramById(programId)
	if err != nil {
		execCtx.logResult(programId, err)
		return err
	}

	budget := execCtx.ComputeMeter.Remaining()
	err = nativeProgramFn(execCtx)
	if errors.Is(err, cu.ErrComputeExceeded) {
		err = InstrErrComputationalBudgetExceeded
	}
	execCtx.logConsumed(programId, budget-execCtx.ComputeMeter.Remaining(), budget)
	execCtx.logResult(programId, err)

	return err
}

func (execCtx *ExecutionCtx) Push(instrCtx *InstructionCtx) error {
	txCtx := execCtx.TransactionContext

	programId, err := instrCtx.ProgramId(txCtx)
	if err != nil {
		return InstrErrUnsupportedProgramId
	}

	if txCtx.InstructionCtxStackHeight() != 0 {
		var contains bool
		for level := uint64(0); level < txCtx.InstructionCtxStackHeight(); level++ {
			ic, err := txCtx.InstructionCtxAtNestingLevel(level)
			if err != nil {
				return err
			}
			levelProgramId, err := ic.ProgramId(txCtx)
			if err == nil && levelProgramId == programId {
				contains = true
				break
			}
		}

		current, err := txCtx.CurrentInstructionCtx()
		if err != nil {
			return err
		}
		currentProgramId, err := current.ProgramId(txCtx)
		isLast := err == nil && currentProgramId == programId

		if contains && !isLast {
			return InstrErrReentrancyNotAllowed
		}
	}

	return txCtx.Push(instrCtx)
}

func (execCtx *ExecutionCtx) Pop() error {
	return execCtx.TransactionContext.Pop()
}

func (execCtx *ExecutionCtx) StackHeight() uint64 {
	return execCtx.TransactionContext.InstructionCtxStackHeight()
}

func (execCtx *ExecutionCtx) NativeInvoke(instruction Instruction, signers []solana.PublicKey) error {
	err := execCtx.ComputeMeter.Consume(CUInvokeUnits)
	if err != nil {
		return err
	}

	instrAccts, programIndices, err := execCtx.PrepareInstruction(instruction, signers)
	if err != nil {
		return err
	}

	return execCtx.ProcessInstruction(instruction.Data, instrAccts, programIndices)
}

// NativeInvokeSigned invokes instruction with the derived signers of the
// currently executing program counted as signatures.
func (execCtx *ExecutionCtx) NativeInvokeSigned(instruction Instruction, derivedSigners ...DerivedSigner) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}
	callerId, err := instrCtx.ProgramId(txCtx)
	if err != nil {
		return err
	}

	signers := make([]solana.PublicKey, 0, len(derivedSigners))
	for _, signer := range derivedSigners {
		if signer.programId != callerId {
			klog.Errorf("program %s cannot sign for %s derived under %s", callerId, signer.address, signer.programId)
			return InstrErrPrivilegeEscalation
		}
		err = execCtx.ComputeMeter.Consume(CUCreateProgramAddressUnits)
		if err != nil {
			return err
		}
		signers = append(signers, signer.address)
	}

	return execCtx.NativeInvoke(instruction, signers)
}

func (execCtx *ExecutionCtx) invokeSolana(ix solana.Instruction, derivedSigners ...DerivedSigner) error {
	instr, err := InstructionFromSolana(ix)
	if err != nil {
		return InstrErrInvalidInstructionData
	}
	return execCtx.NativeInvokeSigned(instr, derivedSigners...)
}
