package booking

import (
	"errors"
	"strings"
)

// Kind classifies a booking failure. The set is closed.
type Kind uint8

const (
	KindNone Kind = iota
	KindDuplicateBooking
	KindQuotaExceeded
	KindSlotFull
	KindUnknownSlot
	KindUnknownBooking
	KindNotOwner
	KindAlreadyCancelled
	KindInternal
)

var kindNames = [...]string{
	KindNone:             "ok",
	KindDuplicateBooking: "duplicate_booking",
	KindQuotaExceeded:    "quota_exceeded",
	KindSlotFull:         "slot_full",
	KindUnknownSlot:      "unknown_slot",
	KindUnknownBooking:   "unknown_booking",
	KindNotOwner:         "not_owner",
	KindAlreadyCancelled: "already_cancelled",
	KindInternal:         "internal",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "internal"
}

// Code is the upper-case form used as err_code in logs.
func (k Kind) Code() string { return strings.ToUpper(k.String()) }

// Error is a typed booking failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(strings.ReplaceAll(e.Kind.String(), "_", " "))
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrSlotFull) works
// regardless of Op and cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Code exposes the kind code to the router's err_code derivation.
func (e *Error) Code() string { return e.Kind.Code() }

// Sentinels for errors.Is checks.
var (
	ErrDuplicateBooking = &Error{Kind: KindDuplicateBooking}
	ErrQuotaExceeded    = &Error{Kind: KindQuotaExceeded}
	ErrSlotFull         = &Error{Kind: KindSlotFull}
	ErrUnknownSlot      = &Error{Kind: KindUnknownSlot}
	ErrUnknownBooking   = &Error{Kind: KindUnknownBooking}
	ErrNotOwner         = &Error{Kind: KindNotOwner}
	ErrAlreadyCancelled = &Error{Kind: KindAlreadyCancelled}
	ErrInternal         = &Error{Kind: KindInternal}
)

// E builds an *Error. With KindNone the kind is taken from err. A bare
// sentinel of the same kind is absorbed rather than kept as the cause.
func E(op string, kind Kind, err error) *Error {
	if kind == KindNone {
		kind = KindOf(err)
	}
	if be, ok := err.(*Error); ok && be.Kind == kind && be.Op == "" {
		err = be.Err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind carried by err. Nil yields KindNone and errors
// outside the taxonomy collapse to KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindInternal
}
