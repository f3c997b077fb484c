package sealevel

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

type Logger interface {
	Log(s string)
}

// LogRecorder is a Logger that keeps every line.
type LogRecorder struct {
	Logs []string
}

func (r *LogRecorder) Log(s string) {
	r.Logs = append(r.Logs, s)
}

func (r *LogRecorder) String() string {
	return strings.Join(r.Logs, "\n")
}

func (execCtx *ExecutionCtx) logf(format string, args ...any) {
	if execCtx.Log == nil {
		return
	}
	execCtx.Log.Log(fmt.Sprintf(format, args...))
}

// ProgramLog writes a "Program log:" line on behalf of the executing program.
func (execCtx *ExecutionCtx) ProgramLog(format string, args ...any) {
	execCtx.logf("Program log: "+format, args...)
}

func (execCtx *ExecutionCtx) logInvoke(programId solana.PublicKey, height uint64) {
	execCtx.logf("Program %s invoke [%d]", programId, height)
}

func (execCtx *ExecutionCtx) logResult(programId solana.PublicKey, err error) {
	if err != nil {
		execCtx.logf("Program %s failed: %s", programId, instrErrLogString(err))
		return
	}
	execCtx.logf("Program %s success", programId)
}

func (execCtx *ExecutionCtx) logConsumed(programId solana.PublicKey, consumed uint64, budget uint64) {
	execCtx.logf("Program %s consumed %d of %d compute units", programId, consumed, budget)
}
