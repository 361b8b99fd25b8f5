package types

import (
	"time"

	"cosmossdk.io/math"
)

type EventKind string

func (e EventKind) String() string {
	return string(e)
}

const (
	EventDeposit     EventKind = "vault.ledger.v1.Deposit"
	EventMint        EventKind = "vault.ledger.v1.Mint"
	EventWithdraw    EventKind = "vault.ledger.v1.Withdraw"
	EventRedeem      EventKind = "vault.ledger.v1.Redeem"
	EventTransfer    EventKind = "vault.ledger.v1.Transfer"
	EventPriceUpdate EventKind = "vault.oracle.v1.PriceUpdate"
)

const (
	EventRedemptionSubmitted EventKind = "vault.queue.v1.RedemptionSubmitted"
	EventRedemptionApproved  EventKind = "vault.queue.v1.RedemptionApproved"
	EventRedemptionRejected  EventKind = "vault.queue.v1.RedemptionRejected"
	EventRedemptionCancelled EventKind = "vault.queue.v1.RedemptionCancelled"
	EventRedemptionSettled   EventKind = "vault.queue.v1.RedemptionSettled"
	EventRedemptionFailed    EventKind = "vault.queue.v1.RedemptionFailed"
	EventRedemptionSkipped   EventKind = "vault.queue.v1.RedemptionSkipped"
	EventPostHookFailure     EventKind = "vault.hooks.v1.PostHookFailure"
)

// Event is one record of the observability stream, emitted per state
// transition for external indexing.
type Event struct {
	Kind           EventKind         `json:"kind"`
	SubjectID      string            `json:"subject_id"`
	Amounts        map[string]string `json:"amounts,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
	ResultingState string            `json:"resulting_state,omitempty"`
}

func NewEvent(kind EventKind, subjectID string, resultingState string) Event {
	return Event{
		Kind:           kind,
		SubjectID:      subjectID,
		Timestamp:      time.Now().UTC(),
		ResultingState: resultingState,
	}
}

// WithAmount attaches a named quantity, rendered as a decimal string so the
// stream stays precision-safe for consumers.
func (e Event) WithAmount(name string, amount math.Int) Event {
	if e.Amounts == nil {
		e.Amounts = make(map[string]string)
	}
	e.Amounts[name] = amount.String()
	return e
}

func (e Event) WithDetail(name, value string) Event {
	if e.Amounts == nil {
		e.Amounts = make(map[string]string)
	}
	e.Amounts[name] = value
	return e
}
