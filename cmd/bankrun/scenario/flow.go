package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/julianzamt/bankrun-counter/pkg/bank"
	"github.com/julianzamt/bankrun-counter/pkg/config"
	"github.com/julianzamt/bankrun-counter/pkg/counter"
	"github.com/julianzamt/bankrun-counter/pkg/sealevel"
	"github.com/julianzamt/bankrun-counter/pkg/token"
	"k8s.io/klog/v2"
)

const (
	lamportsPerSol  = 1_000_000_000
	transferAmount  = 100 * lamportsPerSol
	clockAdvanceSec = 360
)

var ErrUnexpectedOutcome = errors.New("unexpected scenario outcome")

type Report struct {
	ReceiverLamports uint64
	Counter          uint64
	ReceiverTokens   uint64
	AuthorityTokens  uint64
	FeesPaid         uint64
}

type runner struct {
	ctx    context.Context
	bank   *bank.Bank
	out    io.Writer
	report *Report
}

// Run drives the reference flow against b: a plain SOL transfer, add_one with
// its cooldown, then token disbursement with its cooldown.
func Run(ctx context.Context, b *bank.Bank, tokenCfg config.Token, out io.Writer) (*Report, error) {
	r := &runner{ctx: ctx, bank: b, out: out, report: new(Report)}

	payer, err := r.newKeypair(1000 * lamportsPerSol)
	if err != nil {
		return nil, err
	}
	receiver, err := r.newKeypair(0)
	if err != nil {
		return nil, err
	}

	// baseline ledger semantics
	ix := system.NewTransferInstruction(transferAmount, payer.PublicKey(), receiver.PublicKey()).Build()
	if err = r.expectSuccess("transfer 100 SOL", payer, []solana.Instruction{ix}); err != nil {
		return nil, err
	}
	r.report.ReceiverLamports, err = b.GetBalance(receiver.PublicKey())
	if err != nil {
		return nil, err
	}
	if r.report.ReceiverLamports != transferAmount {
		return nil, fmt.Errorf("%w: receiver holds %d lamports", ErrUnexpectedOutcome, r.report.ReceiverLamports)
	}

	// counter
	initIx, err := counter.NewInitializeInstruction(counter.ProgramID, receiver.PublicKey())
	if err != nil {
		return nil, err
	}
	addIx, err := counter.NewAddOneInstruction(counter.ProgramID, receiver.PublicKey())
	if err != nil {
		return nil, err
	}
	if err = r.expectSuccess("initialize", receiver, []solana.Instruction{initIx}); err != nil {
		return nil, err
	}
	if err = r.expectSuccess("add_one", receiver, []solana.Instruction{addIx}); err != nil {
		return nil, err
	}
	if err = r.expectCustomErr("add_one again", receiver, []solana.Instruction{addIx}, counter.ErrorCodeCannotAddYet); err != nil {
		return nil, err
	}
	if err = r.advanceClock(clockAdvanceSec); err != nil {
		return nil, err
	}
	if err = r.expectSuccess("add_one after cooldown", receiver, []solana.Instruction{addIx}); err != nil {
		return nil, err
	}

	// token disbursement
	mint, authorityAta, err := r.setupMint(payer, tokenCfg)
	if err != nil {
		return nil, err
	}
	if err = r.advanceClock(clockAdvanceSec); err != nil {
		return nil, err
	}
	transferIx, err := counter.NewTransferOneTokenInstruction(counter.ProgramID, receiver.PublicKey(), mint)
	if err != nil {
		return nil, err
	}
	if err = r.expectSuccess("transfer_one_token", receiver, []solana.Instruction{transferIx}); err != nil {
		return nil, err
	}
	if err = r.expectCustomErr("transfer_one_token again", receiver, []solana.Instruction{transferIx}, counter.ErrorCodeCannotTransferYet); err != nil {
		return nil, err
	}
	if err = r.advanceClock(clockAdvanceSec); err != nil {
		return nil, err
	}
	if err = r.expectSuccess("transfer_one_token after cooldown", receiver, []solana.Instruction{transferIx}); err != nil {
		return nil, err
	}

	receiverAta, _, err := token.FindAssociatedTokenAddress(receiver.PublicKey(), mint)
	if err != nil {
		return nil, err
	}
	if r.report.ReceiverTokens, err = r.tokenBalance(receiverAta); err != nil {
		return nil, err
	}
	if r.report.AuthorityTokens, err = r.tokenBalance(authorityAta); err != nil {
		return nil, err
	}

	addr, _, err := counter.DeriveCounterAddress(counter.ProgramID, receiver.PublicKey())
	if err != nil {
		return nil, err
	}
	acct, err := b.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	state, err := counter.Unmarshal(acct.Data)
	if err != nil {
		return nil, err
	}
	r.report.Counter = state.Counter

	fmt.Fprintf(out, "receiver lamports: %d\ncounter: %d\nreceiver tokens: %d\nauthority tokens: %d\nfees paid: %d\n",
		r.report.ReceiverLamports, r.report.Counter, r.report.ReceiverTokens, r.report.AuthorityTokens, r.report.FeesPaid)
	return r.report, nil
}

func (r *runner) newKeypair(lamports uint64) (solana.PrivateKey, error) {
	privKey, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, err
	}
	if lamports > 0 {
		err = r.bank.Airdrop(privKey.PublicKey(), lamports)
	}
	return privKey, err
}

func (r *runner) send(step string, payer solana.PrivateKey, ixs []solana.Instruction, signers ...solana.PrivateKey) (*bank.TransactionResult, error) {
	if err := r.ctx.Err(); err != nil {
		return nil, err
	}

	blockhash, _ := r.bank.LatestBlockhash()
	tx, err := solana.NewTransaction(ixs, blockhash, solana.TransactionPayer(payer.PublicKey()))
	if err != nil {
		return nil, err
	}

	signers = append([]solana.PrivateKey{payer}, signers...)
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for idx := range signers {
			if signers[idx].PublicKey() == key {
				return &signers[idx]
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := r.bank.TryProcessTransaction(tx)
	r.report.FeesPaid += result.Fee

	fmt.Fprintf(r.out, "== %s: %s\n", step, outcome(result.Err))
	for _, line := range result.Logs {
		fmt.Fprintf(r.out, "   %s\n", line)
	}
	return result, nil
}

func (r *runner) expectSuccess(step string, payer solana.PrivateKey, ixs []solana.Instruction, signers ...solana.PrivateKey) error {
	result, err := r.send(step, payer, ixs, signers...)
	if err != nil {
		return err
	}
	if result.Err != nil {
		return fmt.Errorf("%w: %s failed: %s", ErrUnexpectedOutcome, step, result.Err)
	}
	return nil
}

func (r *runner) expectCustomErr(step string, payer solana.PrivateKey, ixs []solana.Instruction, code uint32) error {
	result, err := r.send(step, payer, ixs)
	if err != nil {
		return err
	}
	if !sealevel.IsCustomErr(result.Err, code) {
		return fmt.Errorf("%w: %s should fail with custom error %d, got %v", ErrUnexpectedOutcome, step, code, result.Err)
	}
	return nil
}

func (r *runner) advanceClock(seconds int64) error {
	clock, err := r.bank.GetClock()
	if err != nil {
		return err
	}
	clock.UnixTimestamp += seconds
	klog.V(1).Infof("advancing clock to %d", clock.UnixTimestamp)
	fmt.Fprintf(r.out, "== clock advanced %ds\n", seconds)
	return r.bank.SetClock(*clock)
}

// setupMint creates a mint owned by payer and funds the counter authority's
// token account with the configured supply.
func (r *runner) setupMint(payer solana.PrivateKey, tokenCfg config.Token) (solana.PublicKey, solana.PublicKey, error) {
	mintKey, err := r.newKeypair(0)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, err
	}
	mint := mintKey.PublicKey()

	rent := sealevel.DefaultRent()
	ixs := token.NewCreateMintInstructions(payer.PublicKey(), mint, payer.PublicKey(), tokenCfg.Decimals, rent.MinimumBalance(token.MintSize))
	if err = r.expectSuccess("create mint", payer, ixs, mintKey); err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, err
	}

	authority, _, err := counter.DeriveAuthorityAddress(counter.ProgramID)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, err
	}
	authorityAta, _, err := token.FindAssociatedTokenAddress(authority, mint)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, err
	}

	ixs = []solana.Instruction{
		token.NewCreateAssociatedTokenAccountInstruction(payer.PublicKey(), authority, mint),
		token.NewMintToInstruction(tokenCfg.Supply, mint, authorityAta, payer.PublicKey()),
	}
	if err = r.expectSuccess("fund authority", payer, ixs); err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, err
	}
	return mint, authorityAta, nil
}

func (r *runner) tokenBalance(ata solana.PublicKey) (uint64, error) {
	acct, err := r.bank.GetAccount(ata)
	if err != nil {
		return 0, err
	}
	if acct == nil {
		return 0, nil
	}
	tokenAcct, err := token.UnpackAccount(acct.Data)
	if err != nil {
		return 0, err
	}
	return tokenAcct.Amount, nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return "failed: " + err.Error()
}
