package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"pilldock/internal/journal"
	"pilldock/internal/metrics"
	"pilldock/internal/model"
	"pilldock/internal/store"
)

var (
	// ErrSlotOutOfRange rejects a command addressed outside [1, N].
	ErrSlotOutOfRange = errors.New("slot id out of range")

	// ErrInvalidTime rejects an hour outside [0,23] or minute outside [0,59].
	ErrInvalidTime = errors.New("hour or minute out of range")

	// ErrTriggerInFlight rejects a dispense trigger while another one is
	// still in flight anywhere in the process.
	ErrTriggerInFlight = errors.New("another dispense trigger is in flight")

	// ErrTriggerRateLimited rejects a dispense trigger over the configured
	// command rate.
	ErrTriggerRateLimited = errors.New("dispense triggers rate limited")
)

// triggerDetails is the fixed journal message for a manual trigger.
const triggerDetails = "Manually triggered from dashboard"

// Service is the schedule state machine: it owns the legal status
// transitions and performs the remote writes behind every slot command.
// It keeps no durable state of its own; failed remote operations are
// returned to the caller unretried.
type Service struct {
	store   store.Store
	journal *journal.Journal
	slots   int
	fsm     *FSM
	limiter *rate.Limiter
	logger  zerolog.Logger

	// Single-flight guard for TriggerDispense, process-wide by contract.
	triggerBusy atomic.Bool
}

// NewService creates the state machine over the given store. slotCount
// bounds valid slot IDs. limiter may be nil to disable trigger rate
// limiting.
func NewService(st store.Store, jrnl *journal.Journal, slotCount int, limiter *rate.Limiter, logger *zerolog.Logger) *Service {
	return &Service{
		store:   st,
		journal: jrnl,
		slots:   slotCount,
		fsm:     NewFSM(),
		limiter: limiter,
		logger:  logger.With().Str("component", "schedule").Logger(),
	}
}

// SlotCount returns the configured slot bound N.
func (s *Service) SlotCount() int { return s.slots }

// Configure validates and writes a full slot record: enabled, pending,
// with the given time and medication name. Any prior status for the slot
// is discarded; the overwrite is idempotent. Validation failures happen
// before any write reaches the store.
func (s *Service) Configure(ctx context.Context, slotID, hour, minute int, medicationName string) error {
	if err := s.checkSlotID(slotID); err != nil {
		metrics.IncSlotCommand("configure", "rejected")
		return err
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		metrics.IncSlotCommand("configure", "rejected")
		return ErrInvalidTime
	}

	if medicationName == "" {
		medicationName = model.DefaultMedicationName(slotID)
	}
	slot := model.Slot{
		SlotID:         slotID,
		Enabled:        true,
		Hour:           hour,
		Minute:         minute,
		MedicationName: medicationName,
		Status:         model.StatusPending,
		LastUpdated:    stamp(),
	}
	if err := s.store.SetSlot(ctx, slotID, slot.Record()); err != nil {
		metrics.IncSlotCommand("configure", "failed")
		return fmt.Errorf("configure slot %d: %w", slotID, err)
	}

	metrics.IncSlotCommand("configure", "ok")
	s.logger.Info().
		Int("slot", slotID).
		Str("time", slot.TimeKey()).
		Str("medication", medicationName).
		Msg("slot configured")
	return nil
}

// Disable overwrites the slot as disabled with its schedule cleared. The
// journal keeps the slot's history.
func (s *Service) Disable(ctx context.Context, slotID int) error {
	if err := s.checkSlotID(slotID); err != nil {
		metrics.IncSlotCommand("disable", "rejected")
		return err
	}

	slot := model.Slot{
		SlotID:      slotID,
		Enabled:     false,
		Status:      model.StatusPending,
		LastUpdated: stamp(),
	}
	// A disabled slot carries no medication label, not the placeholder.
	if err := s.store.SetSlot(ctx, slotID, slot.Record()); err != nil {
		metrics.IncSlotCommand("disable", "failed")
		return fmt.Errorf("disable slot %d: %w", slotID, err)
	}

	metrics.IncSlotCommand("disable", "ok")
	s.logger.Info().Int("slot", slotID).Msg("slot disabled")
	return nil
}

// TriggerDispense requests a manual dispense for the slot. At most one
// trigger may be in flight across the whole process; a concurrent call is
// rejected. A disabled or absent slot is a silent no-op. Otherwise the slot
// record is rewritten to manual_trigger and a journal entry is appended as
// a second, separate write. A crash between the two writes leaves the slot
// updated with no matching journal entry; that window is accepted and not
// compensated.
func (s *Service) TriggerDispense(ctx context.Context, slotID int) error {
	if err := s.checkSlotID(slotID); err != nil {
		metrics.IncSlotCommand("trigger", "rejected")
		return err
	}
	if !s.triggerBusy.CompareAndSwap(false, true) {
		metrics.IncSlotCommand("trigger", "in_flight")
		return ErrTriggerInFlight
	}
	defer s.triggerBusy.Store(false)

	if s.limiter != nil && !s.limiter.Allow() {
		metrics.IncSlotCommand("trigger", "rate_limited")
		return ErrTriggerRateLimited
	}

	opID := uuid.New().String()
	log := s.logger.With().Str("op_id", opID).Int("slot", slotID).Logger()

	fields, err := s.store.GetSlot(ctx, slotID)
	if err != nil {
		metrics.IncSlotCommand("trigger", "failed")
		return fmt.Errorf("trigger dispense: read slot %d: %w", slotID, err)
	}
	if len(fields) == 0 || fields[model.FieldEnabled] != "true" {
		metrics.IncSlotCommand("trigger", "noop")
		log.Debug().Msg("trigger ignored: slot absent or disabled")
		return nil
	}

	from := model.ParseStatus(fields[model.FieldStatus])
	if !s.fsm.CanTransition(from, model.StatusManualTrigger) {
		log.Warn().Str("from", string(from)).Msg("manual trigger outside the normal cycle")
	}

	now := time.Now()
	fields[model.FieldManualTrigger] = "true"
	fields[model.FieldStatus] = string(model.StatusManualTrigger)
	fields[model.FieldLastUpdated] = now.Format("15:04")
	if err := s.store.SetSlot(ctx, slotID, fields); err != nil {
		metrics.IncSlotCommand("trigger", "failed")
		return fmt.Errorf("trigger dispense: write slot %d: %w", slotID, err)
	}

	entry := model.Entry{
		Timestamp: now.Format("15:04:05"),
		Status:    model.StatusManualTrigger,
		Slot:      slotID,
		Details:   triggerDetails,
		Date:      now.Format("2006-01-02"),
	}
	if _, err := s.journal.Append(ctx, entry); err != nil {
		// The slot write already landed; the pair is non-atomic by contract.
		metrics.IncSlotCommand("trigger", "partial")
		log.Error().Err(err).Msg("slot updated but journal append failed")
		return err
	}

	metrics.IncSlotCommand("trigger", "ok")
	log.Info().Msg("manual dispense triggered")
	return nil
}

// ResetStatus moves the slot back to pending after a completed cycle,
// touching only the status, the manual trigger flag and the timestamp.
// An absent slot is a silent no-op.
func (s *Service) ResetStatus(ctx context.Context, slotID int) error {
	if err := s.checkSlotID(slotID); err != nil {
		metrics.IncSlotCommand("reset", "rejected")
		return err
	}

	fields, err := s.store.GetSlot(ctx, slotID)
	if err != nil {
		metrics.IncSlotCommand("reset", "failed")
		return fmt.Errorf("reset status: read slot %d: %w", slotID, err)
	}
	if len(fields) == 0 {
		metrics.IncSlotCommand("reset", "noop")
		s.logger.Debug().Int("slot", slotID).Msg("reset ignored: slot absent")
		return nil
	}

	from := model.ParseStatus(fields[model.FieldStatus])
	if !s.fsm.CanTransition(from, model.StatusPending) && from != model.StatusPending {
		s.logger.Warn().
			Int("slot", slotID).
			Str("from", string(from)).
			Msg("reset from a non-terminal status")
	}

	update := map[string]string{
		model.FieldStatus:        string(model.StatusPending),
		model.FieldManualTrigger: "false",
		model.FieldLastUpdated:   stamp(),
	}
	if err := s.store.UpdateSlot(ctx, slotID, update); err != nil {
		metrics.IncSlotCommand("reset", "failed")
		return fmt.Errorf("reset status: slot %d: %w", slotID, err)
	}

	metrics.IncSlotCommand("reset", "ok")
	s.logger.Info().Int("slot", slotID).Msg("slot status reset")
	return nil
}

func (s *Service) checkSlotID(slotID int) error {
	if slotID < 1 || slotID > s.slots {
		return ErrSlotOutOfRange
	}
	return nil
}

// stamp is the wall clock string stored in lastUpdated; display/audit
// only, never used for conflict resolution.
func stamp() string {
	return time.Now().Format("15:04")
}
