// Package model defines the slot and activity log entities shared by the
// dispenser core.
package model

import (
	"fmt"
	"strconv"
)

// Status represents the dispensing state of a slot's current cycle.
type Status string

const (
	StatusPending       Status = "pending"
	StatusStarted       Status = "started"
	StatusInProgress    Status = "in_progress"
	StatusManualTrigger Status = "manual_trigger"
	StatusTaken         Status = "taken"
	StatusMissed        Status = "missed"
)

// ParseStatus maps a raw store value to a Status. An empty value defaults
// to pending, matching a freshly enabled slot.
func ParseStatus(raw string) Status {
	if raw == "" {
		return StatusPending
	}
	return Status(raw)
}

// IsValid reports whether the status belongs to the known enumeration.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusStarted, StatusInProgress,
		StatusManualTrigger, StatusTaken, StatusMissed:
		return true
	}
	return false
}

// Field names of a slot record as stored in the remote store.
const (
	FieldEnabled        = "enabled"
	FieldHour           = "hour"
	FieldMinute         = "minute"
	FieldMedicationName = "medicationName"
	FieldStatus         = "status"
	FieldManualTrigger  = "manualTrigger"
	FieldLastUpdated    = "lastUpdated"
)

// Slot represents one physical dispensing position.
type Slot struct {
	SlotID         int
	Enabled        bool
	Hour           int
	Minute         int
	MedicationName string
	Status         Status
	ManualTrigger  bool
	LastUpdated    string
}

// DefaultMedicationName returns the placeholder label for a slot without
// a configured medication name.
func DefaultMedicationName(slotID int) string {
	return fmt.Sprintf("Medicine %d", slotID)
}

// SlotFromRecord builds a Slot from a raw store record. Missing or
// malformed numeric fields are treated as zero, a missing medication name
// is replaced with the placeholder and a missing status defaults to
// pending. Raw records never fail to parse.
func SlotFromRecord(slotID int, fields map[string]string) Slot {
	s := Slot{
		SlotID:         slotID,
		Enabled:        fields[FieldEnabled] == "true",
		Hour:           atoiOrZero(fields[FieldHour]),
		Minute:         atoiOrZero(fields[FieldMinute]),
		MedicationName: fields[FieldMedicationName],
		Status:         ParseStatus(fields[FieldStatus]),
		ManualTrigger:  fields[FieldManualTrigger] == "true",
		LastUpdated:    fields[FieldLastUpdated],
	}
	if s.MedicationName == "" {
		s.MedicationName = DefaultMedicationName(slotID)
	}
	return s
}

// Record serializes the slot into the flat string form used by the store.
func (s Slot) Record() map[string]string {
	return map[string]string{
		FieldEnabled:        strconv.FormatBool(s.Enabled),
		FieldHour:           strconv.Itoa(s.Hour),
		FieldMinute:         strconv.Itoa(s.Minute),
		FieldMedicationName: s.MedicationName,
		FieldStatus:         string(s.Status),
		FieldManualTrigger:  strconv.FormatBool(s.ManualTrigger),
		FieldLastUpdated:    s.LastUpdated,
	}
}

// TimeKey returns the zero-padded "HH:MM" display key for the slot's
// scheduled dispensing time.
func (s Slot) TimeKey() string {
	return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
}

func atoiOrZero(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
