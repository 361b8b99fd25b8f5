package model

const (
	CounterCollection = "counters"

	// QueuePositionCounterID sequences approval order for the redemption
	// queue's fairness tie-break.
	QueuePositionCounterID = "queue_position"
)

type CounterDocument struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}
