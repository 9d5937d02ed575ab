package identity

import (
	"time"

	"github.com/congo-pay/escrow/internal/audit"
)

// NationalIDLength is the exact number of digits a national identity number carries.
const NationalIDLength = 13

// Record is the verification record held for a participant.
type Record struct {
	Holder      string
	FullName    string
	NationalID  string
	Verified    bool
	Exists      bool
	SubmittedAt time.Time
}

// Mutation computes the next state of a holder's record from its current
// state. A zero event Kind means the mutation is a no-op and nothing is
// written. Returning an error aborts without side effects.
type Mutation func(current Record) (next Record, event audit.Event, err error)
