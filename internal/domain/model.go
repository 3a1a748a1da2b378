package domain

// ChangeStatus is the state of a submitted change batch as reported back to the caller.
type ChangeStatus string

const (
	StatusPending ChangeStatus = "PENDING"
	StatusInSync  ChangeStatus = "INSYNC"
	StatusError   ChangeStatus = "ERROR"
)

// Change actions and record types understood by the provider client.
const (
	ActionUpsert = "UPSERT"
	RecordTypeA  = "A"
)

// UpdateRequest is one validated update, built fresh per incoming call.
type UpdateRequest struct {
	ZoneID string
	Names  []string // lower-cased, order preserved
	TTL    int64    // seconds, already clamped
	IP     string   // dotted-quad IPv4
}

// Change is a single record change inside a batch.
type Change struct {
	Action     string
	RecordType string
	Name       string
	TTL        int64
	Value      string
}

// ChangeInfo is what the provider returns for a submitted batch.
type ChangeInfo struct {
	ID     string
	Status ChangeStatus
}
