package types

// OperationKind identifies a balance-affecting ledger operation for hook
// dispatch. Mint shares the deposit kind and redeem the withdraw kind: hooks
// care about the direction of value flow, not the unit the caller quoted.
type OperationKind string

const (
	OperationDeposit  OperationKind = "DEPOSIT"
	OperationWithdraw OperationKind = "WITHDRAW"
	OperationTransfer OperationKind = "TRANSFER"
)

func (k OperationKind) String() string {
	return string(k)
}

// OperationMask is the capability tag declaring which operation kinds a hook
// applies to.
type OperationMask uint8

const (
	MaskDeposit OperationMask = 1 << iota
	MaskWithdraw
	MaskTransfer

	MaskAll = MaskDeposit | MaskWithdraw | MaskTransfer
)

func (k OperationKind) Mask() OperationMask {
	switch k {
	case OperationDeposit:
		return MaskDeposit
	case OperationWithdraw:
		return MaskWithdraw
	case OperationTransfer:
		return MaskTransfer
	}
	return 0
}

// Includes reports whether the mask covers the given operation kind.
func (m OperationMask) Includes(k OperationKind) bool {
	return m&k.Mask() != 0
}

// OperationKinds lists every dispatchable kind, used for per-kind bounds.
func OperationKinds() []OperationKind {
	return []OperationKind{OperationDeposit, OperationWithdraw, OperationTransfer}
}
