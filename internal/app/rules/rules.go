// Package rules implements the field-level validation chain applied to trip
// and ticket submissions before they reach the ledgers.
//
// Each rule is a pure check scoped to one logical field. Rules are
// cooperative: a rule skips its field when the field already carries a
// different rule's error, but always re-evaluates (and can clear) an error of
// its own kind. The reducer collects every violation so callers can report
// all failing fields at once, never just the first.
package rules

import "github.com/shared-wheels/carpool-ledger-api/internal/domain"

type Kind string

const (
	MustBePositive   Kind = "MUST_BE_POSITIVE"
	MustBeInRange    Kind = "MUST_BE_IN_RANGE"
	MustBeSequential Kind = "MUST_BE_SEQUENTIAL"
)

type Field string

const (
	FieldDate    Field = "date"
	FieldStartKm Field = "startKm"
	FieldEndKm   Field = "endKm"
)

// Violations maps each failing field to the kind of error it carries.
type Violations map[Field]Kind

func (v Violations) OK() bool { return len(v) == 0 }

// Submission is the plain-value view of a trip or ticket form the chain
// evaluates. Km fields are ignored by ticket rule sets.
type Submission struct {
	Date    domain.Date
	StartKm float64
	EndKm   float64

	WindowStart domain.Date
	WindowEnd   domain.Date

	// LastTripEndKm is the end reading of the member's latest trip in the
	// project; zero means the member has no prior trip.
	LastTripEndKm float64
}

// Rule is one field-scoped check. Passes reports whether the field is valid.
type Rule struct {
	Field  Field
	Kind   Kind
	Passes func(Submission) bool
}

// PositiveRange requires the odometer range to move forward.
func PositiveRange() Rule {
	return Rule{
		Field: FieldEndKm,
		Kind:  MustBePositive,
		Passes: func(s Submission) bool {
			return s.EndKm > s.StartKm
		},
	}
}

// DateInRange requires the date to fall inside the project window.
func DateInRange() Rule {
	return Rule{
		Field: FieldDate,
		Kind:  MustBeInRange,
		Passes: func(s Submission) bool {
			return s.Date.Between(s.WindowStart, s.WindowEnd)
		},
	}
}

// SequentialStart requires startKm to continue where the member's last trip
// ended. A member's very first trip is accepted regardless of startKm.
func SequentialStart() Rule {
	return Rule{
		Field: FieldStartKm,
		Kind:  MustBeSequential,
		Passes: func(s Submission) bool {
			return s.LastTripEndKm == 0 || s.StartKm == s.LastTripEndKm
		},
	}
}

// TripRules is the full chain for trip submissions.
func TripRules() []Rule {
	return []Rule{PositiveRange(), DateInRange(), SequentialStart()}
}

// TicketRules is the chain for ticket submissions; value positivity is
// enforced by the ticket ledger itself.
func TicketRules() []Rule {
	return []Rule{DateInRange()}
}

// Evaluate runs every rule against the submission, starting from prior
// violations (an empty Violations for a fresh submission). A rule leaves a
// different rule's error on its field untouched; its own error is cleared
// when the check now passes.
func Evaluate(s Submission, chain []Rule, prior Violations) Violations {
	out := make(Violations, len(prior))
	for f, k := range prior {
		out[f] = k
	}
	for _, r := range chain {
		if k, ok := out[r.Field]; ok && k != r.Kind {
			continue
		}
		if r.Passes(s) {
			if out[r.Field] == r.Kind {
				delete(out, r.Field)
			}
			continue
		}
		out[r.Field] = r.Kind
	}
	return out
}
