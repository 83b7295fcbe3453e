package models

// PendingBook is a queue entry created when a scanned ISBN is not yet
// cataloged. At most one entry exists per ISBN. The worker deletes it on
// success or flags it stuck; stuck entries stay until an operator drains them.
type PendingBook struct {
	ID      int64  `json:"id"`
	ISBN    string `json:"isbn"` // ISBN-13 as scanned
	Stucked bool   `json:"stucked"`
}
