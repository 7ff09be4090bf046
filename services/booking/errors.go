package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	bookingRepo "slotbook/database/repository/booking"

	"github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrBookerNameRequired = errors.New("booker name is required")
	ErrInvalidBookingTime = errors.New("booking time must be an RFC 3339 timestamp")
	ErrAlreadyStarted     = errors.New("booking store already subscribed")
	ErrClosed             = errors.New("booking store closed")
	ErrSlotTaken          = bookingRepo.ErrSlotTaken
)

// ErrorKind classifies failures surfaced to consumers.
type ErrorKind string

const (
	KindTimeout    ErrorKind = "timeout"
	KindPermission ErrorKind = "permission"
	KindRead       ErrorKind = "read"
	KindCreate     ErrorKind = "create"
	KindCancel     ErrorKind = "cancel"
	KindSlotTaken  ErrorKind = "slot_taken"
)

// User facing messages per kind.
const (
	MsgTimeout    = "server responding too slowly, check connection"
	MsgPermission = "no access to the data store"
	MsgRead       = "failed to load booking data, check configuration"
	MsgCreate     = "failed to create booking, please try again"
	MsgCancel     = "failed to cancel booking, please try again"
	MsgSlotTaken  = "this slot has already been booked"
)

// StoreError is a classified failure. Message is safe to show to users.
type StoreError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ClassifyRead maps a failed read (fetch or subscription) to timeout,
// permission or generic read.
func ClassifyRead(err error) *StoreError {
	switch {
	case isTimeout(err):
		return &StoreError{Kind: KindTimeout, Message: MsgTimeout, Err: err}
	case isPermission(err):
		return &StoreError{Kind: KindPermission, Message: MsgPermission, Err: err}
	default:
		return &StoreError{Kind: KindRead, Message: MsgRead, Err: err}
	}
}

func classifyWrite(kind ErrorKind, err error) *StoreError {
	switch {
	case errors.Is(err, ErrSlotTaken):
		return &StoreError{Kind: KindSlotTaken, Message: MsgSlotTaken, Err: err}
	case isPermission(err):
		return &StoreError{Kind: KindPermission, Message: MsgPermission, Err: err}
	case kind == KindCancel:
		return &StoreError{Kind: KindCancel, Message: MsgCancel, Err: err}
	default:
		return &StoreError{Kind: KindCreate, Message: MsgCreate, Err: err}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err) {
		return true
	}
	if s, ok := status.FromError(err); ok && s.Code() == codes.DeadlineExceeded {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "57014" { // query_canceled, statement_timeout
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out")
}

func isPermission(err error) bool {
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.PermissionDenied, codes.Unauthenticated:
			return true
		}
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		// 13 Unauthorized, 18 AuthenticationFailed
		if se.HasErrorCode(13) || se.HasErrorCode(18) {
			return true
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "42501", "28000", "28P01":
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission denied") || strings.Contains(msg, "missing or insufficient permissions")
}
