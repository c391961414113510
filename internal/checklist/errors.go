package checklist

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an item, or a team within a review, does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPreconditionFailed is the parent of every gating error. A call that
	// returns it changed nothing and recorded nothing.
	ErrPreconditionFailed = errors.New("precondition failed")

	ErrBlocked         = fmt.Errorf("%w: dependencies not complete", ErrPreconditionFailed)
	ErrAlreadyComplete = fmt.Errorf("%w: already complete", ErrPreconditionFailed)
	ErrLocked          = fmt.Errorf("%w: team already approved", ErrPreconditionFailed)
	ErrNoDecision      = fmt.Errorf("%w: draft has no decision", ErrPreconditionFailed)
	ErrNoFiles         = fmt.Errorf("%w: no files", ErrPreconditionFailed)

	ErrInvalidGraph = errors.New("invalid checklist graph")
	ErrNoTemplate   = errors.New("no checklist template for request type")
)
