// Package apperrors defines the structured errors returned by the allocation
// workflows and the strategy registry.
//
// Every error carries a Kind and, where one exists, the identifier of the
// offending entity so callers can render an actionable message. Sentinels such
// as ErrRoomNotFound match any error of the same kind through errors.Is.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

// Input validation.
const (
	KindNoEligibleRooms        Kind = "NoEligibleRooms"
	KindNoEligibleExaminees    Kind = "NoEligibleExaminees"
	KindInvalidAllocationInput Kind = "InvalidAllocationInput"
	KindRoomNotFound           Kind = "RoomNotFound"
	KindCourseNotFound         Kind = "CourseNotFound"
)

// State conflicts.
const (
	KindRoomAlreadyOccupied      Kind = "RoomAlreadyOccupied"
	KindDuplicateStrategyName    Kind = "DuplicateStrategyName"
	KindStrategyNotFound         Kind = "StrategyNotFound"
	KindDefaultStrategyProtected Kind = "DefaultStrategyProtected"
)

const KindPersistenceFailure Kind = "PersistenceFailure"

var (
	ErrNoEligibleRooms          = &Error{Kind: KindNoEligibleRooms}
	ErrNoEligibleExaminees      = &Error{Kind: KindNoEligibleExaminees}
	ErrInvalidAllocationInput   = &Error{Kind: KindInvalidAllocationInput}
	ErrRoomNotFound             = &Error{Kind: KindRoomNotFound}
	ErrCourseNotFound           = &Error{Kind: KindCourseNotFound}
	ErrRoomAlreadyOccupied      = &Error{Kind: KindRoomAlreadyOccupied}
	ErrDuplicateStrategyName    = &Error{Kind: KindDuplicateStrategyName}
	ErrStrategyNotFound         = &Error{Kind: KindStrategyNotFound}
	ErrDefaultStrategyProtected = &Error{Kind: KindDefaultStrategyProtected}
	ErrPersistenceFailure       = &Error{Kind: KindPersistenceFailure}
)

// Store-level sentinels. Workflows translate these into a Kind.
var (
	ErrRecordNotFound  = errors.New("record not found")
	ErrDuplicateRecord = errors.New("duplicate record")
)

type Error struct {
	Kind    Kind
	Subject string // entity type of ID, e.g. "room", "course", "strategy"
	ID      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Subject != "" && e.ID != "" {
		msg += fmt.Sprintf(" (%s %s)", e.Subject, e.ID)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind only.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// For builds an error about a specific entity.
func For(kind Kind, subject string, id any, message string) *Error {
	return &Error{Kind: kind, Subject: subject, ID: fmt.Sprint(id), Message: message}
}

// Persistence wraps a collaborator failure. Errors that already carry a Kind
// are returned unchanged.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: KindPersistenceFailure, Message: op, Err: err}
}

// KindOf reports the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IDOf reports the offending identifier carried by err.
func IDOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.ID
	}
	return ""
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindRoomNotFound, KindCourseNotFound, KindStrategyNotFound:
		return http.StatusNotFound
	case KindRoomAlreadyOccupied, KindDuplicateStrategyName, KindDefaultStrategyProtected:
		return http.StatusConflict
	case KindNoEligibleRooms, KindNoEligibleExaminees, KindInvalidAllocationInput:
		return http.StatusUnprocessableEntity
	case KindPersistenceFailure:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
