package tax

import (
	"fmt"
	"math/rand"
	"time"

	"bizledger-go/internal/models"
	"bizledger-go/internal/store"
)

// filingTransitions is the legal status graph for a tax filing. "pending"
// is treated as draft-equivalent so an interrupted filing can still be
// submitted, and a rejected filing may be submitted again.
var filingTransitions = map[string][]string{
	models.FilingStatusDraft:     {models.FilingStatusSubmitted},
	models.FilingStatusPending:   {models.FilingStatusSubmitted},
	models.FilingStatusSubmitted: {models.FilingStatusAccepted, models.FilingStatusRejected},
	models.FilingStatusAccepted:  {},
	models.FilingStatusRejected:  {models.FilingStatusSubmitted},
}

// CanTransition reports whether a filing may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range filingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckSubmittable returns ErrInvalidState unless the filing's current
// status permits submission. Rejected filings may be resubmitted: the
// resubmission history lives in tax_submissions, the filing itself moves to
// submitted again.
func CheckSubmittable(status string) error {
	if CanTransition(status, models.FilingStatusSubmitted) {
		return nil
	}
	return fmt.Errorf("%w: filing with status %q cannot be submitted", store.ErrInvalidState, status)
}

// NewConfirmationNumber generates an opaque submission reference. It is a
// human-quotable receipt identifier, not a secret.
func NewConfirmationNumber(now time.Time) string {
	return fmt.Sprintf("TX-%s-%06d", now.UTC().Format("20060102"), rand.Intn(1000000))
}
