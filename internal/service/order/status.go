package order

import (
	"fmt"

	"github.com/sabinhyoju/kinmel/internal/models"
)

// statusFlow is one-directional with no skipping; delivered is terminal.
var statusFlow = map[string][]string{
	models.StatusPending:        {models.StatusShipped},
	models.StatusShipped:        {models.StatusOutForDelivery},
	models.StatusOutForDelivery: {models.StatusDelivered},
	models.StatusDelivered:      {},
}

func KnownStatus(status string) bool {
	_, ok := statusFlow[status]
	return ok
}

// ValidateTransition fires only when the status actually changes, so a
// save that repeats the stored status is a no-op.
func ValidateTransition(from, to string) error {
	if from == to {
		return nil
	}
	for _, allowed := range statusFlow[from] {
		if to == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: invalid status transition from %q to %q", ErrValidation, from, to)
}
