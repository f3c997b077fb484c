// Package rent checks that a transaction leaves every writable account in an
// allowed rent state.
package rent

import (
	"errors"

	"github.com/julianzamt/bankrun-counter/pkg/accounts"
	"github.com/julianzamt/bankrun-counter/pkg/sealevel"
)

var ErrRentStateTransition = errors.New("TxErrInsufficientFundsForRent")

const (
	RentStateUninitialized = iota
	RentStateRentPaying
	RentStateRentExempt
)

type RentPayingInfo struct {
	Lamports uint64
	DataSize uint64
}

type RentStateInfo struct {
	RentState      uint64
	RentPayingInfo RentPayingInfo
}

func rentStateFromAcct(acct *accounts.Account, rent *sealevel.SysvarRent) *RentStateInfo {
	if acct.Lamports == 0 {
		return &RentStateInfo{RentState: RentStateUninitialized}
	} else if rent.IsExempt(acct.Lamports, uint64(len(acct.Data))) {
		return &RentStateInfo{RentState: RentStateRentExempt}
	} else {
		return &RentStateInfo{RentState: RentStateRentPaying, RentPayingInfo: RentPayingInfo{Lamports: acct.Lamports, DataSize: uint64(len(acct.Data))}}
	}
}

// NewRentStateInfo snapshots the rent state of each transaction account. Read
// only accounts get a nil entry.
func NewRentStateInfo(rent *sealevel.SysvarRent, txAccts *sealevel.TransactionAccounts, isWritable func(idx int) bool) []*RentStateInfo {
	rentStateInfos := make([]*RentStateInfo, 0, len(txAccts.Accounts))

	for idx, acct := range txAccts.Accounts {
		if isWritable(idx) {
			rentStateInfos = append(rentStateInfos, rentStateFromAcct(acct, rent))
		} else {
			rentStateInfos = append(rentStateInfos, nil)
		}
	}

	return rentStateInfos
}

func checkRentStateTransitionAllowed(preRentState *RentStateInfo, postRentState *RentStateInfo) error {
	if preRentState == nil || postRentState == nil {
		return nil
	}

	switch postRentState.RentState {
	case RentStateUninitialized, RentStateRentExempt:
		return nil
	}

	// a rent paying account may only stay rent paying if it neither grew nor
	// gained lamports
	if preRentState.RentState == RentStateRentPaying &&
		postRentState.RentPayingInfo.DataSize == preRentState.RentPayingInfo.DataSize &&
		postRentState.RentPayingInfo.Lamports <= preRentState.RentPayingInfo.Lamports {
		return nil
	}

	return ErrRentStateTransition
}

func VerifyRentStateChanges(preStates []*RentStateInfo, postStates []*RentStateInfo) error {
	if len(preStates) != len(postStates) {
		panic("programming error - pre tx states and post tx states must be same length")
	}

	for idx := range preStates {
		err := checkRentStateTransitionAllowed(preStates[idx], postStates[idx])
		if err != nil {
			return err
		}
	}

	return nil
}
