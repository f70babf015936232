package game

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidInput
	KindForbidden
	KindConflict
	KindExhausted
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidInput:
		return "invalid_input"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindExhausted:
		return "exhausted"
	default:
		return "internal"
	}
}

// Rejection reasons reported to callers.
const (
	ReasonNotFound        = "not_found"
	ReasonInvalidPlayer   = "invalid_player"
	ReasonInvalidFact     = "invalid_fact"
	ReasonInvalidTarget   = "invalid_target"
	ReasonDuplicateGuess  = "duplicate_guess"
	ReasonFactGuessed     = "fact_guessed"
	ReasonNotCurrentFact  = "not_current_fact"
	ReasonAuthorSelfGuess = "author_self_guess"
	ReasonNotStoryTeller  = "not_story_teller"
	ReasonInvalidRating   = "invalid_rating"
	ReasonAuthorSelfRate  = "author_self_rate"
	ReasonWrongPhase      = "wrong_phase"
	ReasonGameEnded       = "game_ended"
	ReasonForbidden       = "forbidden"
	ReasonTokenExhausted  = "token_exhausted"
	ReasonInvalidName     = "invalid_name"
)

// Error is a structured rejection. errors.Is matches on Kind, and also on
// Reason when the target sets one.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = e.Reason
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrInvalidInput = &Error{Kind: KindInvalidInput}
	ErrForbidden    = &Error{Kind: KindForbidden}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrExhausted    = &Error{Kind: KindExhausted}
)

func rejectNotFound(reason, message string) *Error {
	return &Error{Kind: KindNotFound, Reason: reason, Message: message}
}

func rejectInvalid(reason, message string) *Error {
	return &Error{Kind: KindInvalidInput, Reason: reason, Message: message}
}

func rejectForbidden(reason, message string) *Error {
	return &Error{Kind: KindForbidden, Reason: reason, Message: message}
}

func rejectConflict(reason, message string) *Error {
	return &Error{Kind: KindConflict, Reason: reason, Message: message}
}

// KindOf reports the Kind of err, or KindInternal for unstructured errors.
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return KindInternal
}

// ReasonOf reports the rejection reason carried by err, if any.
func ReasonOf(err error) string {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Reason
	}
	return ""
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
