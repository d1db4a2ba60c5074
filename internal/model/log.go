package model

import "strconv"

// Field names of an activity log record as stored in the remote store.
const (
	LogFieldTimestamp = "timestamp"
	LogFieldStatus    = "status"
	LogFieldSlot      = "slot"
	LogFieldDetails   = "details"
	LogFieldDate      = "date"
)

// Entry is one immutable activity log fact. Entries are appended at the
// remote store and never mutated afterwards.
type Entry struct {
	Timestamp string
	Status    Status
	Slot      int
	Details   string
	Date      string
}

// EntryFromRecord builds an Entry from a raw log record.
func EntryFromRecord(fields map[string]string) Entry {
	return Entry{
		Timestamp: fields[LogFieldTimestamp],
		Status:    ParseStatus(fields[LogFieldStatus]),
		Slot:      atoiOrZero(fields[LogFieldSlot]),
		Details:   fields[LogFieldDetails],
		Date:      fields[LogFieldDate],
	}
}

// Record serializes the entry into the flat string form used by the store.
// The details field is omitted when empty.
func (e Entry) Record() map[string]string {
	fields := map[string]string{
		LogFieldTimestamp: e.Timestamp,
		LogFieldStatus:    string(e.Status),
		LogFieldSlot:      strconv.Itoa(e.Slot),
		LogFieldDate:      e.Date,
	}
	if e.Details != "" {
		fields[LogFieldDetails] = e.Details
	}
	return fields
}
