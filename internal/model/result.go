package model

// DeliveryResult summarises the outcome of a smart send.
//
// Persistent sends are queued: Queued is true and EntryID/InboxID identify
// the created records. Ephemeral sends resolve synchronously: Delivered
// reflects the push outcome and Reason explains a non-delivery.
type DeliveryResult struct {
	Delivered bool   `json:"delivered"`
	Queued    bool   `json:"queued"`
	Method    string `json:"method,omitempty"`
	Reason    string `json:"reason,omitempty"`
	EntryID   string `json:"entryId,omitempty"`
	InboxID   string `json:"inboxId,omitempty"`
}
