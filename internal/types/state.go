package types

// Enum values for redemption request state
type RedemptionState string

const (
	RedemptionStatePending    RedemptionState = "PENDING"
	RedemptionStateApproved   RedemptionState = "APPROVED"
	RedemptionStateProcessing RedemptionState = "PROCESSING"
	RedemptionStateCompleted  RedemptionState = "COMPLETED"
	RedemptionStateFailed     RedemptionState = "FAILED"
	RedemptionStateRejected   RedemptionState = "REJECTED"
	RedemptionStateCancelled  RedemptionState = "CANCELLED"
)

func (s RedemptionState) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition can leave s.
func (s RedemptionState) IsTerminal() bool {
	switch s {
	case RedemptionStateCompleted, RedemptionStateFailed,
		RedemptionStateRejected, RedemptionStateCancelled:
		return true
	default:
		return false
	}
}

// QualifiedStatesForApproval returns the qualified current states for a manager approval
func QualifiedStatesForApproval() []RedemptionState {
	return []RedemptionState{RedemptionStatePending}
}

// QualifiedStatesForRejection returns the qualified current states for a manager rejection
func QualifiedStatesForRejection() []RedemptionState {
	return []RedemptionState{RedemptionStatePending, RedemptionStateApproved}
}

// QualifiedStatesForCancellation returns the qualified current states for an owner cancel
func QualifiedStatesForCancellation() []RedemptionState {
	return []RedemptionState{RedemptionStatePending}
}

// QualifiedStatesForProcessing returns the qualified current states for entering settlement
func QualifiedStatesForProcessing() []RedemptionState {
	return []RedemptionState{RedemptionStateApproved}
}

// QualifiedStatesForSettlementOutcome returns the qualified current states for leaving settlement
func QualifiedStatesForSettlementOutcome() []RedemptionState {
	return []RedemptionState{RedemptionStateProcessing}
}
