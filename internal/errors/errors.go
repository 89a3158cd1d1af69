// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

var (
	ErrRoundNotActive    = errors.New("round is not active")
	ErrInvalidFrequency  = errors.New("invalid campaign frequency")
	ErrInvalidTransition = errors.New("invalid campaign status transition")
	ErrQuotaExceeded     = errors.New("company invite quota exceeded")
)

// ErrCampaignNotFound is returned when a campaign id does not resolve.
type ErrCampaignNotFound struct {
	CampaignID string
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %s not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id string) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

type ErrRoundNotFound struct {
	RoundID string
}

func (e *ErrRoundNotFound) Error() string {
	return fmt.Sprintf("round with ID %s not found", e.RoundID)
}

func NewRoundNotFound(id string) error {
	return &ErrRoundNotFound{RoundID: id}
}

// PersistenceError wraps a store or transaction failure. The operation is
// aborted and nothing it wrote is visible.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Persistence wraps err unless it is nil or already a domain error that the
// caller must see unchanged.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) || IsNotFound(err) ||
		errors.Is(err, ErrRoundNotActive) || errors.Is(err, ErrInvalidFrequency) ||
		errors.Is(err, ErrInvalidTransition) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func IsNotFound(err error) bool {
	var c *ErrCampaignNotFound
	var r *ErrRoundNotFound
	return errors.As(err, &c) || errors.As(err, &r)
}
