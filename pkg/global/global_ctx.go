package global

import (
	"github.com/julianzamt/bankrun-counter/pkg/accounts"
	"github.com/julianzamt/bankrun-counter/pkg/features"
)

// GlobalCtx carries the state shared by every transaction of a bank: the
// account store sysvars are read from and the active feature set.
type GlobalCtx struct {
	Accounts accounts.Accounts
	Features features.Features
}
