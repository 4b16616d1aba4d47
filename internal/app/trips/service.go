package trips

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/shared-wheels/carpool-ledger-api/internal/app/rules"
	"github.com/shared-wheels/carpool-ledger-api/internal/domain"
	"github.com/shared-wheels/carpool-ledger-api/internal/ledger"
	"github.com/shared-wheels/carpool-ledger-api/internal/platform/keylock"
	clockport "github.com/shared-wheels/carpool-ledger-api/internal/ports/out/clock"
	"github.com/shared-wheels/carpool-ledger-api/internal/ports/out/treestore"
)

// Service owns the trip and ticket ledgers and the aggregate propagation
// that keeps project and membership totals consistent with them.
//
// Every write takes the project's lock around the whole read-merge-apply
// sequence, and the ledger record lands in the same multi-path apply as its
// aggregate deltas. Two concurrent submissions for the same member and date
// therefore cannot both compute a delta against stale state, and a reader
// sees either none or all of a submission.
type Service struct {
	store  treestore.Store
	locks  *keylock.Keyed
	clk    clockport.Clock
	logger *slog.Logger

	newTripID   func() domain.TripID
	newTicketID func() domain.TicketID
}

func NewService(store treestore.Store, locks *keylock.Keyed, clk clockport.Clock, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		locks:  locks,
		clk:    clk,
		logger: logger,
		newTripID: func() domain.TripID {
			return domain.TripID(uuid.NewString())
		},
		newTicketID: func() domain.TicketID {
			return domain.TicketID(uuid.NewString())
		},
	}
}

// SetNewTripIDForTest overrides trip ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewTripIDForTest(fn func() domain.TripID) {
	if fn != nil {
		s.newTripID = fn
	}
}

// ValidateTrip runs the validation chain against a trip submission without
// touching the ledger. It is the entry point the form collaborator uses to
// surface all field errors at once.
func (s *Service) ValidateTrip(ctx context.Context, caller domain.MemberID, projectID domain.ProjectID, in TripInput) (rules.Violations, error) {
	s.locks.RLock(string(projectID))
	defer s.locks.RUnlock(string(projectID))

	project, _, err := s.projectAndMembership(ctx, caller, projectID)
	if err != nil {
		return nil, err
	}
	recs, err := s.tripRecords(ctx, projectID)
	if err != nil {
		return nil, err
	}
	sub := submissionFor(recs, caller, project, in)
	return rules.Evaluate(sub, rules.TripRules(), nil), nil
}

// RecordTrip appends the caller's trip for the given date, or merges it into
// the existing same-day trip by widening the odometer range. The resulting
// delta — never the new absolute total — is added to the membership and
// project aggregates in the same atomic apply as the trip record itself.
func (s *Service) RecordTrip(ctx context.Context, caller domain.MemberID, projectID domain.ProjectID, in TripInput) (domain.Trip, error) {
	s.locks.Lock(string(projectID))
	defer s.locks.Unlock(string(projectID))

	project, membership, err := s.projectAndMembership(ctx, caller, projectID)
	if err != nil {
		return domain.Trip{}, err
	}
	if in.EndKm <= in.StartKm {
		return domain.Trip{}, errInvalidRange()
	}

	recs, err := s.tripRecords(ctx, projectID)
	if err != nil {
		return domain.Trip{}, err
	}
	if v := rules.Evaluate(submissionFor(recs, caller, project, in), rules.TripRules(), nil); !v.OK() {
		return domain.Trip{}, errValidation(v)
	}

	var (
		rec     ledger.TripRecord
		deltaKm float64
	)
	if existing, ok := findSameDay(recs, caller, in.Date); ok {
		trip := existing.Domain(projectID)
		deltaKm = trip.Merge(in.StartKm, in.EndKm)
		existing.StartKm = trip.StartKm
		existing.EndKm = trip.EndKm
		existing.TotalKm = trip.TotalKm
		rec = existing
	} else {
		memberName, err := s.memberName(ctx, caller)
		if err != nil {
			return domain.Trip{}, err
		}
		rec = ledger.TripRecord{
			ID:         s.newTripID(),
			MemberID:   caller,
			MemberName: memberName,
			Date:       in.Date,
			StartKm:    in.StartKm,
			EndKm:      in.EndKm,
			TotalKm:    in.EndKm - in.StartKm,
			CreatedAt:  s.clk.Now(),
		}
		deltaKm = rec.TotalKm
	}

	newProject, newMembership, err := s.applyDelta(project, membership, deltaKm, 0)
	if err != nil {
		return domain.Trip{}, err
	}

	err = s.store.Apply(ctx,
		treestore.Write{Path: ledger.TripPath(projectID, rec.ID), Value: rec},
		treestore.Write{Path: ledger.MembershipPath(caller), Value: newMembership},
		treestore.Write{Path: ledger.ProjectPath(projectID), Value: newProject},
	)
	if err != nil {
		return domain.Trip{}, err
	}
	return rec.Domain(projectID), nil
}

// RecordTicket appends an expense ticket. Tickets never merge: every
// submission is a new record, and its full value is the delta.
func (s *Service) RecordTicket(ctx context.Context, caller domain.MemberID, projectID domain.ProjectID, in TicketInput) (domain.Ticket, error) {
	s.locks.Lock(string(projectID))
	defer s.locks.Unlock(string(projectID))

	project, membership, err := s.projectAndMembership(ctx, caller, projectID)
	if err != nil {
		return domain.Ticket{}, err
	}
	if in.Value <= 0 {
		return domain.Ticket{}, errInvalidValue()
	}

	sub := rules.Submission{
		Date:        in.Date,
		WindowStart: project.StartDate,
		WindowEnd:   project.EndDate,
	}
	if v := rules.Evaluate(sub, rules.TicketRules(), nil); !v.OK() {
		return domain.Ticket{}, errValidation(v)
	}

	memberName, err := s.memberName(ctx, caller)
	if err != nil {
		return domain.Ticket{}, err
	}
	rec := ledger.TicketRecord{
		ID:         s.newTicketID(),
		MemberID:   caller,
		MemberName: memberName,
		Date:       in.Date,
		Value:      in.Value,
		CreatedAt:  s.clk.Now(),
	}

	newProject, newMembership, err := s.applyDelta(project, membership, 0, in.Value)
	if err != nil {
		return domain.Ticket{}, err
	}

	err = s.store.Apply(ctx,
		treestore.Write{Path: ledger.TicketPath(projectID, rec.ID), Value: rec},
		treestore.Write{Path: ledger.MembershipPath(caller), Value: newMembership},
		treestore.Write{Path: ledger.ProjectPath(projectID), Value: newProject},
	)
	if err != nil {
		return domain.Ticket{}, err
	}
	return rec.Domain(projectID), nil
}

// Trips lists the project's trips ordered by date, then by recording time.
func (s *Service) Trips(ctx context.Context, projectID domain.ProjectID) ([]domain.Trip, error) {
	s.locks.RLock(string(projectID))
	defer s.locks.RUnlock(string(projectID))

	recs, err := s.tripRecords(ctx, projectID)
	if err != nil {
		return nil, err
	}
	sortTripRecords(recs)
	out := make([]domain.Trip, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Domain(projectID))
	}
	return out, nil
}

// Tickets lists the project's tickets ordered by date, then by recording time.
func (s *Service) Tickets(ctx context.Context, projectID domain.ProjectID) ([]domain.Ticket, error) {
	s.locks.RLock(string(projectID))
	defer s.locks.RUnlock(string(projectID))

	kids, err := s.store.Children(ctx, ledger.TicketsPath(projectID))
	if err != nil {
		return nil, err
	}
	recs := make([]ledger.TicketRecord, 0, len(kids))
	for seg, raw := range kids {
		var r ledger.TicketRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("decode ticket %s: %w", seg, err)
		}
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].Date.Equal(recs[j].Date) {
			return recs[i].Date.Before(recs[j].Date)
		}
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})
	out := make([]domain.Ticket, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Domain(projectID))
	}
	return out, nil
}

// LastTrip returns the member's most recent trip in the project, by date then
// recording time. The second return is false when the member has none.
func (s *Service) LastTrip(ctx context.Context, projectID domain.ProjectID, member domain.MemberID) (domain.Trip, bool, error) {
	s.locks.RLock(string(projectID))
	defer s.locks.RUnlock(string(projectID))

	recs, err := s.tripRecords(ctx, projectID)
	if err != nil {
		return domain.Trip{}, false, err
	}
	rec, ok := latestOf(recs, member)
	if !ok {
		return domain.Trip{}, false, nil
	}
	return rec.Domain(projectID), true, nil
}

// applyDelta adds the ledger deltas to the project and membership aggregates.
// Totals can only grow, so a negative result means the stored state no longer
// matches the ledger; that is surfaced as a fatal consistency error, never
// retried.
func (s *Service) applyDelta(project ledger.ProjectRecord, membership ledger.MembershipRecord, deltaKm, deltaPayment float64) (ledger.ProjectRecord, ledger.MembershipRecord, error) {
	project.TotalKms += deltaKm
	project.TotalPayment += deltaPayment
	membership.KmsAccrued += deltaKm
	membership.PaymentAccrued += deltaPayment

	if project.TotalKms < 0 || project.TotalPayment < 0 || membership.KmsAccrued < 0 || membership.PaymentAccrued < 0 {
		s.logger.Error("aggregate would go negative",
			"projectId", project.ID,
			"deltaKm", deltaKm,
			"deltaPayment", deltaPayment,
			"totalKms", project.TotalKms,
			"totalPayment", project.TotalPayment,
		)
		return ledger.ProjectRecord{}, ledger.MembershipRecord{}, errAggregateCorruption("aggregate update would drive a total negative")
	}
	return project, membership, nil
}

func (s *Service) projectAndMembership(ctx context.Context, caller domain.MemberID, projectID domain.ProjectID) (ledger.ProjectRecord, ledger.MembershipRecord, error) {
	var project ledger.ProjectRecord
	ok, err := s.store.Get(ctx, ledger.ProjectPath(projectID), &project)
	if err != nil {
		return ledger.ProjectRecord{}, ledger.MembershipRecord{}, err
	}
	if !ok {
		return ledger.ProjectRecord{}, ledger.MembershipRecord{}, errProjectNotFound()
	}

	var membership ledger.MembershipRecord
	ok, err = s.store.Get(ctx, ledger.MembershipPath(caller), &membership)
	if err != nil {
		return ledger.ProjectRecord{}, ledger.MembershipRecord{}, err
	}
	if !ok || membership.ProjectID != projectID {
		return ledger.ProjectRecord{}, ledger.MembershipRecord{}, errNotMember()
	}
	return project, membership, nil
}

func submissionFor(recs []ledger.TripRecord, caller domain.MemberID, project ledger.ProjectRecord, in TripInput) rules.Submission {
	// A same-day submission merges into the caller's existing trip for that
	// date: the merge recomputes from the full stored range, so continuity is
	// not re-checked against a reading the submission is about to absorb.
	// Re-recording an identical trip must stay a valid no-op.
	lastEnd := 0.0
	if _, sameDay := findSameDay(recs, caller, in.Date); !sameDay {
		if last, ok := latestOf(recs, caller); ok {
			lastEnd = last.EndKm
		}
	}
	return rules.Submission{
		Date:          in.Date,
		StartKm:       in.StartKm,
		EndKm:         in.EndKm,
		WindowStart:   project.StartDate,
		WindowEnd:     project.EndDate,
		LastTripEndKm: lastEnd,
	}
}

func (s *Service) tripRecords(ctx context.Context, projectID domain.ProjectID) ([]ledger.TripRecord, error) {
	kids, err := s.store.Children(ctx, ledger.TripsPath(projectID))
	if err != nil {
		return nil, err
	}
	out := make([]ledger.TripRecord, 0, len(kids))
	for seg, raw := range kids {
		var r ledger.TripRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("decode trip %s: %w", seg, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Service) memberName(ctx context.Context, id domain.MemberID) (string, error) {
	var rec ledger.MemberRecord
	if _, err := s.store.Get(ctx, ledger.MemberPath(id), &rec); err != nil {
		return "", err
	}
	return rec.DisplayName, nil
}

func findSameDay(recs []ledger.TripRecord, member domain.MemberID, date domain.Date) (ledger.TripRecord, bool) {
	for _, r := range recs {
		if r.MemberID == member && r.Date.Equal(date) {
			return r, true
		}
	}
	return ledger.TripRecord{}, false
}

func latestOf(recs []ledger.TripRecord, member domain.MemberID) (ledger.TripRecord, bool) {
	var (
		best  ledger.TripRecord
		found bool
	)
	for _, r := range recs {
		if r.MemberID != member {
			continue
		}
		if !found || r.Date.After(best.Date) || (r.Date.Equal(best.Date) && r.CreatedAt.After(best.CreatedAt)) {
			best = r
			found = true
		}
	}
	return best, found
}

func sortTripRecords(recs []ledger.TripRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].Date.Equal(recs[j].Date) {
			return recs[i].Date.Before(recs[j].Date)
		}
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})
}
