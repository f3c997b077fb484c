package bank

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/julianzamt/bankrun-counter/pkg/accounts"
	"github.com/julianzamt/bankrun-counter/pkg/cu"
	"github.com/julianzamt/bankrun-counter/pkg/fees"
	"github.com/julianzamt/bankrun-counter/pkg/rent"
	"github.com/julianzamt/bankrun-counter/pkg/safemath"
	"github.com/julianzamt/bankrun-counter/pkg/sealevel"
	"github.com/julianzamt/bankrun-counter/pkg/util"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

type TransactionResult struct {
	Signature            solana.Signature
	Err                  error
	Logs                 []string
	ComputeUnitsConsumed uint64
	Fee                  uint64
	// Executed is set once the fee was charged and instructions ran, whether
	// or not they succeeded.
	Executed          bool
	AccountsDeltaHash []byte
}

// ProcessTransaction executes tx and returns its result. The error is the
// transaction's own failure, if any.
func (b *Bank) ProcessTransaction(tx *solana.Transaction) (*TransactionResult, error) {
	result := b.TryProcessTransaction(tx)
	return result, result.Err
}

// TryProcessTransaction executes tx in its own slot. Failures are reported in
// the result along with the logs produced up to the failure.
func (b *Bank) TryProcessTransaction(tx *solana.Transaction) *TransactionResult {
	result := b.processTransaction(tx)

	err := b.advanceSlot()
	if err != nil {
		klog.Errorf("failed to advance slot after tx %s: %s", result.Signature, err)
	}
	return result
}

// ProcessTransactions executes txs concurrently in one slot. Transactions that
// share a writable account run one after the other, in no particular order.
// Results are in the order of txs. The error is only set when ctx ends the
// batch early, in which case skipped transactions have a nil result.
func (b *Bank) ProcessTransactions(ctx context.Context, txs []*solana.Transaction) ([]*TransactionResult, error) {
	results := make([]*TransactionResult, len(txs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Workers)
	for idx, tx := range txs {
		idx, tx := idx, tx
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[idx] = b.processTransaction(tx)
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return results, err
	}
	return results, b.advanceSlot()
}

func (b *Bank) processTransaction(tx *solana.Transaction) *TransactionResult {
	start := b.clock.Now()
	result := &TransactionResult{}
	defer func() {
		b.metrics.record(result, b.clock.Since(start).Seconds())
	}()

	if len(tx.Signatures) == 0 || len(tx.Signatures) != int(tx.Message.Header.NumRequiredSignatures) {
		result.Err = TxErrSanitizeFailure
		return result
	}
	result.Signature = tx.Signatures[0]

	err := tx.VerifySignatures()
	if err != nil {
		result.Err = NewTxErrInvalidSignature(err.Error())
		return result
	}

	instrs, err := instrsFromTx(tx)
	if err != nil {
		result.Err = fmt.Errorf("%w: %s", TxErrSanitizeFailure, err)
		return result
	}

	acctMetas, err := accountMetasFromTx(tx)
	if err != nil {
		result.Err = fmt.Errorf("%w: %s", TxErrSanitizeFailure, err)
		return result
	}

	err = b.reserveSignature(tx)
	if err != nil {
		result.Err = err
		return result
	}

	writable := lo.FilterMap(acctMetas, func(am *solana.AccountMeta, _ int) (solana.PublicKey, bool) {
		return am.PublicKey, am.IsWritable
	})
	readonly := lo.FilterMap(acctMetas, func(am *solana.AccountMeta, _ int) (solana.PublicKey, bool) {
		return am.PublicKey, !am.IsWritable
	})
	set := b.locks.Lock(writable, readonly)
	defer b.locks.Unlock(set)

	transactionAccts, err := b.transactionAcctsFromTx(acctMetas)
	if err != nil {
		b.releaseSignature(result.Signature)
		result.Err = err
		return result
	}

	rentSysvar, err := sealevel.ReadRentSysvar(b.store)
	if err != nil {
		b.releaseSignature(result.Signature)
		result.Err = err
		return result
	}
	isWritableIdx := func(idx int) bool { return acctMetas[idx].IsWritable }
	preTxRentStates := rent.NewRentStateInfo(rentSysvar, transactionAccts, isWritableIdx)

	totalFee, _, err := fees.ApplyTxFees(tx, transactionAccts, b.cfg.LamportsPerSignature)
	if err != nil {
		b.releaseSignature(result.Signature)
		result.Err = err
		return result
	}
	result.Fee = totalFee
	result.Executed = true
	payerAcct := transactionAccts.Accounts[0].Clone()

	var log sealevel.LogRecorder
	execCtx := b.newExecCtx(transactionAccts, len(instrs), &log)

	var txErr error
	for instrIdx, instr := range instrs {
		instructionAccts := sealevel.InstructionAcctsFromAccountMetas(instr.Accounts, execCtx.TransactionContext.Accounts)
		err = execCtx.ProcessInstruction(instr.Data, instructionAccts, programIndices(tx, instrIdx))
		if err != nil {
			txErr = &InstructionError{Index: instrIdx, Err: err}
			break
		}
	}

	result.Logs = log.Logs
	result.ComputeUnitsConsumed = execCtx.ComputeMeter.Used()
	for _, l := range log.Logs {
		klog.V(2).Infof("%s", l)
	}

	if txErr == nil {
		postTxRentStates := rent.NewRentStateInfo(rentSysvar, &execCtx.TransactionContext.Accounts, isWritableIdx)
		txErr = rent.VerifyRentStateChanges(preTxRentStates, postTxRentStates)
	}

	// a failed transaction still pays its fee, nothing else is kept
	modified := []*accounts.Account{payerAcct}
	if txErr == nil {
		modified = execCtx.TransactionContext.Accounts.TouchedAccounts()
	}

	err = b.commit(modified)
	if err != nil {
		// the store is in an unknown state, which tests cannot recover from
		panic(fmt.Sprintf("unable to commit accounts of tx %s: %s", result.Signature, err))
	}
	result.AccountsDeltaHash = util.AccountsDeltaHash(modified)
	result.Err = txErr

	klog.V(1).Infof("tx %s - fee %d, compute units consumed: %d, err: %v", result.Signature, totalFee, result.ComputeUnitsConsumed, txErr)
	return result
}

func (b *Bank) reserveSignature(tx *solana.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.blockhashes.isValid(tx.Message.RecentBlockhash) {
		return TxErrBlockhashNotFound
	}
	if _, ok := b.statusCache[tx.Signatures[0]]; ok {
		return TxErrAlreadyProcessed
	}
	b.statusCache[tx.Signatures[0]] = struct{}{}
	return nil
}

// releaseSignature forgets a transaction rejected before it was charged, so
// it may be submitted again.
func (b *Bank) releaseSignature(sig solana.Signature) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.statusCache, sig)
}

func (b *Bank) commit(modified []*accounts.Account) error {
	for _, acct := range modified {
		key := [32]byte(acct.Key)
		err := b.store.SetAccount(&key, acct)
		if err != nil {
			return err
		}
		klog.V(3).Infof("modified account %s after tx", acct.Key)
	}
	return nil
}

func (b *Bank) newExecCtx(transactionAccts *sealevel.TransactionAccounts, numInstrs int, log sealevel.Logger) *sealevel.ExecutionCtx {
	budget := min(safemath.SaturatingMulU64(b.cfg.ComputeUnitLimit, uint64(numInstrs)), MaxComputeUnitLimit)

	txCtx := sealevel.NewTransactionCtx(*transactionAccts, sealevel.MaxInstructionStackDepth)
	execCtx := &sealevel.ExecutionCtx{Log: log, TransactionContext: txCtx, ComputeMeter: cu.NewComputeMeter(budget)}
	execCtx.GlobalCtx.Accounts = b.store
	execCtx.GlobalCtx.Features = *b.Features()
	return execCtx
}

func (b *Bank) transactionAcctsFromTx(acctMetas []*solana.AccountMeta) (*sealevel.TransactionAccounts, error) {
	acctsForTx := make([]accounts.Account, 0, len(acctMetas))

	for _, acctMeta := range acctMetas {
		acct, err := b.GetAccount(acctMeta.PublicKey)
		if err != nil {
			return nil, err
		}
		if acct == nil {
			acct = &accounts.Account{Key: acctMeta.PublicKey, Data: []byte{}, Owner: sealevel.SystemProgramAddr}
		}
		acctsForTx = append(acctsForTx, *acct)
	}

	return sealevel.NewTransactionAccounts(acctsForTx), nil
}

// accountMetasFromTx lists the accounts of tx in message order, with programs
// and sysvars demoted to read-only.
func accountMetasFromTx(tx *solana.Transaction) ([]*solana.AccountMeta, error) {
	acctMetas, err := tx.AccountMetaList()
	if err != nil {
		return nil, err
	}

	programIds, err := tx.GetProgramIDs()
	if err != nil {
		return nil, err
	}

	for _, am := range acctMetas {
		am.IsWritable = isWritable(am, programIds)
	}
	return acctMetas, nil
}

func instrsFromTx(tx *solana.Transaction) ([]sealevel.Instruction, error) {
	programIds, err := tx.GetProgramIDs()
	if err != nil {
		return nil, err
	}

	instrs := make([]sealevel.Instruction, len(tx.Message.Instructions))
	for idx, compiledInstr := range tx.Message.Instructions {
		programId, err := tx.ResolveProgramIDIndex(compiledInstr.ProgramIDIndex)
		if err != nil {
			return nil, err
		}

		ams, err := compiledInstr.ResolveInstructionAccounts(&tx.Message)
		if err != nil {
			return nil, err
		}

		acctMetas := make([]sealevel.AccountMeta, 0, len(ams))
		for _, am := range ams {
			acctMetas = append(acctMetas, sealevel.AccountMeta{Pubkey: am.PublicKey, IsSigner: am.IsSigner, IsWritable: isWritable(am, programIds)})
		}

		instrs[idx] = sealevel.Instruction{Accounts: acctMetas, ProgramId: programId, Data: compiledInstr.Data}
	}

	return instrs, nil
}

func programIndices(tx *solana.Transaction, instrIdx int) []uint64 {
	idx := uint64(tx.Message.Instructions[instrIdx].ProgramIDIndex)
	return []uint64{idx}
}

func isWritable(am *solana.AccountMeta, programIds solana.PublicKeySlice) bool {
	if !am.IsWritable {
		return false
	}

	if isNativeProgram(am.PublicKey) || isSysvar(am.PublicKey) {
		return false
	}

	return !programIds.Contains(am.PublicKey)
}

func isNativeProgram(pubkey solana.PublicKey) bool {
	return lo.ContainsBy(sealevel.Builtins(), func(builtin sealevel.Builtin) bool {
		return builtin.ProgramId == pubkey
	}) || pubkey == sealevel.NativeLoaderAddr
}

func isSysvar(pubkey solana.PublicKey) bool {
	return pubkey == sealevel.SysvarClockAddr || pubkey == sealevel.SysvarRentAddr
}
