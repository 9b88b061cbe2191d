package models

type Ticket struct {
	Queue     string `json:"queue"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
	Row       int    `json:"-"`
}

const (
	StatusEmpty  = "empty"
	StatusAttend = "attend"
	StatusAbsent = "absent"
)

// Resolved reports whether the ticket already carries an outcome.
func (t Ticket) Resolved() bool {
	return t.Status != StatusEmpty
}
