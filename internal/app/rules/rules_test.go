package rules

import (
	"testing"
	"time"

	"github.com/shared-wheels/carpool-ledger-api/internal/domain"
)

func window() (domain.Date, domain.Date) {
	return domain.NewDate(2026, time.March, 1), domain.NewDate(2026, time.March, 31)
}

func validSubmission() Submission {
	start, end := window()
	return Submission{
		Date:          domain.NewDate(2026, time.March, 10),
		StartKm:       100,
		EndKm:         150,
		WindowStart:   start,
		WindowEnd:     end,
		LastTripEndKm: 100,
	}
}

func TestEvaluate_AllRulesPass(t *testing.T) {
	t.Parallel()

	got := Evaluate(validSubmission(), TripRules(), nil)
	if !got.OK() {
		t.Fatalf("expected no violations, got %v", got)
	}
}

func TestEvaluate_CollectsEveryFailingField(t *testing.T) {
	t.Parallel()

	s := validSubmission()
	s.Date = domain.NewDate(2026, time.April, 2) // outside window
	s.StartKm = 120                              // not sequential
	s.EndKm = 90                                 // range not positive

	got := Evaluate(s, TripRules(), nil)
	if len(got) != 3 {
		t.Fatalf("len=%d, want 3 (%v)", len(got), got)
	}
	if got[FieldEndKm] != MustBePositive {
		t.Fatalf("endKm=%v, want MustBePositive", got[FieldEndKm])
	}
	if got[FieldDate] != MustBeInRange {
		t.Fatalf("date=%v, want MustBeInRange", got[FieldDate])
	}
	if got[FieldStartKm] != MustBeSequential {
		t.Fatalf("startKm=%v, want MustBeSequential", got[FieldStartKm])
	}
}

func TestSequentialStart_Continuity(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		lastEnd float64
		startKm float64
		wantOK  bool
	}{
		{"exact continuation", 100, 100, true},
		{"one short", 100, 99, false},
		{"one over", 100, 101, false},
		{"first trip zero start", 0, 0, true},
		{"first trip arbitrary start", 0, 500, true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := validSubmission()
			s.LastTripEndKm = tc.lastEnd
			s.StartKm = tc.startKm
			s.EndKm = tc.startKm + 50

			got := Evaluate(s, TripRules(), nil)
			_, failed := got[FieldStartKm]
			if failed == tc.wantOK {
				t.Fatalf("lastEnd=%v startKm=%v: violations=%v, wantOK=%v", tc.lastEnd, tc.startKm, got, tc.wantOK)
			}
		})
	}
}

func TestEvaluate_DoesNotClobberAnotherRulesError(t *testing.T) {
	t.Parallel()

	s := validSubmission()
	prior := Violations{FieldStartKm: "SOME_OTHER_RULE"}

	got := Evaluate(s, TripRules(), prior)
	if got[FieldStartKm] != "SOME_OTHER_RULE" {
		t.Fatalf("startKm=%v, want foreign error preserved", got[FieldStartKm])
	}
}

func TestEvaluate_ClearsItsOwnStaleError(t *testing.T) {
	t.Parallel()

	s := validSubmission()
	prior := Violations{FieldStartKm: MustBeSequential}

	got := Evaluate(s, TripRules(), prior)
	if _, ok := got[FieldStartKm]; ok {
		t.Fatalf("stale MustBeSequential should be cleared on re-evaluation, got %v", got)
	}
}

func TestTicketRules_OnlyDateIsChecked(t *testing.T) {
	t.Parallel()

	start, end := window()
	s := Submission{
		Date:        domain.NewDate(2026, time.February, 1),
		WindowStart: start,
		WindowEnd:   end,
	}
	got := Evaluate(s, TicketRules(), nil)
	if len(got) != 1 || got[FieldDate] != MustBeInRange {
		t.Fatalf("violations=%v, want only date MustBeInRange", got)
	}

	s.Date = domain.NewDate(2026, time.March, 31) // inclusive upper bound
	if got := Evaluate(s, TicketRules(), nil); !got.OK() {
		t.Fatalf("end date of window must be accepted, got %v", got)
	}
}
