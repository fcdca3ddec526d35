package domain

import "time"

// JournalStatus is the recorded state of one submission attempt.
type JournalStatus string

const (
	JournalPending        JournalStatus = "pending"
	JournalAccepted       JournalStatus = "accepted"
	JournalRejected       JournalStatus = "rejected"
	JournalPartialFailure JournalStatus = "partial_failure"
	JournalTransportError JournalStatus = "transport_error"
	JournalError          JournalStatus = "error"
)

// JournalEntry records one order submission: what was about to be sent and,
// once known, what the brokerage answered. An entry left pending means the
// process stopped between the two.
type JournalEntry struct {
	ID int64 `json:"id"`
	// Reference is the client order id, or the linked group id for a
	// bracket or OCO group.
	Reference string        `json:"reference"`
	Tool      string        `json:"tool"`
	Class     OrderClass    `json:"order_class"`
	Symbol    string        `json:"symbol"`
	Request   string        `json:"request"` // JSON of the submitted descriptor(s)
	Status    JournalStatus `json:"status"`
	OrderIDs  []string      `json:"order_ids,omitempty"`
	Detail    string        `json:"detail,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// JournalQuery filters journal listings. Zero values mean no bound.
type JournalQuery struct {
	Since  time.Time
	Until  time.Time
	Status JournalStatus
	Limit  int
}
