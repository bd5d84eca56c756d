package types

// TxState is the finality state reported by the status monitor.
type TxState string

const (
	TxPending   TxState = "pending"
	TxConfirmed TxState = "confirmed"
	TxFailed    TxState = "failed"
)

// TxStatus is the result of a status query. BlockNumber and Confirmations are nil when not
// applicable.
type TxStatus struct {
	State         TxState `json:"state"`
	BlockNumber   *uint64 `json:"blockNumber,omitempty"`
	Confirmations *uint64 `json:"confirmations,omitempty"`
	Reason        string  `json:"reason,omitempty"`
}
