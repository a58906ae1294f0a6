package schedule

import (
	"errors"
	"fmt"
	"time"
)

// Status is the stored lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusArchived  Status = "archived"
	StatusNoShow    Status = "no_show"
)

// Transition names the automatic state change an appointment is due for.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionConfirm
	TransitionComplete
	TransitionArchive
)

// TargetStatus returns the status a transition moves an appointment into.
func (tr Transition) TargetStatus() Status {
	switch tr {
	case TransitionConfirm:
		return StatusConfirmed
	case TransitionComplete:
		return StatusCompleted
	case TransitionArchive:
		return StatusArchived
	default:
		return ""
	}
}

func (tr Transition) String() string {
	switch tr {
	case TransitionConfirm:
		return "confirm"
	case TransitionComplete:
		return "complete"
	case TransitionArchive:
		return "archive"
	default:
		return "none"
	}
}

// ErrInvalidAppointment reports an appointment whose stored date or time
// cannot be parsed. Callers log and skip the record instead of aborting the
// batch.
var ErrInvalidAppointment = errors.New("schedule: invalid appointment record")

// Appointment carries the fields the classifier needs.
type Appointment struct {
	Date      string // "YYYY-MM-DD"
	Time      string // "HH:MM"
	Status    Status
	CreatedAt time.Time
}

// Service carries the linked service's duration. A nil Service means the
// service was deleted; classification falls back to the default duration.
type Service struct {
	DurationMinutes int
}

// Thresholds tune the automatic transitions. They are configuration, not
// constants, so operators can adjust them without a deploy.
type Thresholds struct {
	ConfirmAfter           time.Duration
	ArchiveAfterDays       int
	DefaultServiceDuration time.Duration
}

// DefaultThresholds returns the stock tuning: confirm after 2 hours, archive
// after 7 days, 60-minute fallback duration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ConfirmAfter:           2 * time.Hour,
		ArchiveAfterDays:       7,
		DefaultServiceDuration: 60 * time.Minute,
	}
}

// Classify decides which automatic transition, if any, the appointment is due
// for at the injected instant. It never reads the system clock and never
// mutates its inputs, so repeated calls with identical arguments return
// identical decisions. A record whose stored date or time does not parse
// reports ErrInvalidAppointment whatever its status, even when the decision
// itself would not read those fields.
//
// State machine:
//
//	pending   --[age > ConfirmAfter]----------------> confirmed
//	confirmed --[now past date+time+duration]-------> completed
//	completed --[now.date past date+ArchiveAfterDays]-> archived
//	archived, cancelled, no_show: terminal
func Classify(appt Appointment, svc *Service, now time.Time, th Thresholds) (Transition, error) {
	if _, err := ParseDate(appt.Date); err != nil {
		return TransitionNone, fmt.Errorf("%w: %v", ErrInvalidAppointment, err)
	}
	if _, err := ParseTimeOfDay(appt.Time); err != nil {
		return TransitionNone, fmt.Errorf("%w: %v", ErrInvalidAppointment, err)
	}

	switch appt.Status {
	case StatusPending:
		if now.Sub(appt.CreatedAt) > th.ConfirmAfter {
			return TransitionConfirm, nil
		}
		return TransitionNone, nil

	case StatusConfirmed:
		end, err := appointmentEnd(appt, svc, now.Location(), th)
		if err != nil {
			return TransitionNone, err
		}
		if now.After(end) {
			return TransitionComplete, nil
		}
		return TransitionNone, nil

	case StatusCompleted:
		day, err := ParseDate(appt.Date)
		if err != nil {
			return TransitionNone, fmt.Errorf("%w: %v", ErrInvalidAppointment, err)
		}
		if DateOf(now).After(day.AddDays(th.ArchiveAfterDays)) {
			return TransitionArchive, nil
		}
		return TransitionNone, nil

	default:
		// archived, cancelled, no_show and anything unknown are terminal.
		return TransitionNone, nil
	}
}

func appointmentEnd(appt Appointment, svc *Service, loc *time.Location, th Thresholds) (time.Time, error) {
	day, err := ParseDate(appt.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidAppointment, err)
	}
	start, err := ParseTimeOfDay(appt.Time)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidAppointment, err)
	}
	duration := th.DefaultServiceDuration
	if svc != nil && svc.DurationMinutes > 0 {
		duration = time.Duration(svc.DurationMinutes) * time.Minute
	}
	return day.At(start, loc).Add(duration), nil
}
