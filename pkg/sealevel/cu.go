package sealevel

const (
	CUInvokeUnits                        = 1000
	CUCreateProgramAddressUnits          = 1500
	CUSystemProgramDefaultComputeUnits   = 150
	CUSplTokenTransferComputeUnits       = 4645
	CUSplTokenMintToComputeUnits         = 4538
	CUSplTokenInitializeComputeUnits     = 2967
	CUAssociatedTokenDefaultComputeUnits = 3500
	CUCounterProgramDefaultComputeUnits  = 2000
)
