package domain

import "errors"

var (
	// ErrNotFound is returned when a referenced order or batch does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks bad caller input (unknown ids, unconfirmed or already batched orders).
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState marks an operation that is not allowed in the batch's current status.
	ErrInvalidState = errors.New("invalid state")
	// ErrConflict is returned when an order association changed between read and write.
	ErrConflict = errors.New("conflict")
)

// InfeasibleError reports that a set of orders cannot form a batch.
// It is a normal outcome; Reason is suitable for showing to an operator.
type InfeasibleError struct {
	Reason string
}

func (e *InfeasibleError) Error() string {
	return "not feasible: " + e.Reason
}

// IsInfeasible reports whether err carries an InfeasibleError.
func IsInfeasible(err error) bool {
	var ie *InfeasibleError
	return errors.As(err, &ie)
}
