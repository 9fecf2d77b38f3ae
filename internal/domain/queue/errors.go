package queue

import "errors"

var (
	// ErrEmptyQueue is returned by CallNext when the tenant has no WAITING
	// tickets.
	ErrEmptyQueue = errors.New("no waiting tickets")
	// ErrTicketNotFound covers both nonexistent tickets and tickets that
	// belong to another tenant; callers cannot tell the two apart.
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrInvalidState is returned for a transition the state machine does
	// not allow, e.g. reopening a DONE ticket.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrConflict surfaces a unique violation on (tenant_id, number).
	ErrConflict = errors.New("ticket number already allocated")
)
