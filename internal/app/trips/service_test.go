package trips

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	memclock "github.com/shared-wheels/carpool-ledger-api/internal/adapters/memory/clock"
	memtreestore "github.com/shared-wheels/carpool-ledger-api/internal/adapters/memory/treestore"
	"github.com/shared-wheels/carpool-ledger-api/internal/app/apperr"
	"github.com/shared-wheels/carpool-ledger-api/internal/domain"
	"github.com/shared-wheels/carpool-ledger-api/internal/ledger"
	"github.com/shared-wheels/carpool-ledger-api/internal/platform/keylock"
	"github.com/shared-wheels/carpool-ledger-api/internal/ports/out/treestore"
)

const (
	testProject domain.ProjectID = "p-1"
	testMember  domain.MemberID  = "m-1"
)

type fixture struct {
	svc   *Service
	store *memtreestore.Store
	clk   *memclock.ManualClock
}

// newFixture seeds a project with one member so ledger operations can run
// without going through the projects service.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memtreestore.NewStore()
	clk := memclock.NewManualClock(time.Unix(1_000_000, 0).UTC())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(store, keylock.New(), clk, logger)

	next := 0
	svc.SetNewTripIDForTest(func() domain.TripID {
		next++
		return domain.TripID(fmt.Sprintf("trip-%d", next))
	})

	f := &fixture{svc: svc, store: store, clk: clk}
	f.seedMember(t, testMember, "Ann")
	project := ledger.ProjectRecord{
		ID:        testProject,
		Name:      "March Pool",
		StartDate: domain.NewDate(2026, 3, 1),
		EndDate:   domain.NewDate(2026, 3, 31),
		Members:   map[domain.MemberID]bool{testMember: true},
	}
	if err := store.Apply(context.Background(), treestore.Write{Path: ledger.ProjectPath(testProject), Value: project}); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return f
}

func (f *fixture) seedMember(t *testing.T, id domain.MemberID, name string) {
	t.Helper()
	member := ledger.MemberRecord{ID: id, DisplayName: name, Email: string(id) + "@example.com"}
	membership := ledger.MembershipRecord{ProjectID: testProject, Role: domain.RoleUser}
	err := f.store.Apply(context.Background(),
		treestore.Write{Path: ledger.MemberPath(id), Value: member},
		treestore.Write{Path: ledger.MembershipPath(id), Value: membership},
	)
	if err != nil {
		t.Fatalf("seed member %s: %v", id, err)
	}
}

func (f *fixture) totals(t *testing.T) (projectKms, projectPayment, memberKms, memberPayment float64) {
	t.Helper()
	var project ledger.ProjectRecord
	if _, err := f.store.Get(context.Background(), ledger.ProjectPath(testProject), &project); err != nil {
		t.Fatalf("load project: %v", err)
	}
	var membership ledger.MembershipRecord
	if _, err := f.store.Get(context.Background(), ledger.MembershipPath(testMember), &membership); err != nil {
		t.Fatalf("load membership: %v", err)
	}
	return project.TotalKms, project.TotalPayment, membership.KmsAccrued, membership.PaymentAccrued
}

func wantAppError(t *testing.T, err error, status int, code string) {
	t.Helper()
	ae := (*apperr.Error)(nil)
	if !errors.As(err, &ae) || ae.Status != status || ae.Code != code {
		t.Fatalf("err=%v (type=%T), want %s %d", err, err, code, status)
	}
}

func TestRecordTripAppendsAndAggregates(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	trip, err := f.svc.RecordTrip(ctx, testMember, testProject, TripInput{
		Date: domain.NewDate(2026, 3, 2), StartKm: 100, EndKm: 150,
	})
	if err != nil {
		t.Fatalf("RecordTrip err=%v", err)
	}
	if trip.TotalKm != 50 {
		t.Fatalf("totalKm=%v, want 50", trip.TotalKm)
	}
	if trip.MemberName != "Ann" {
		t.Fatalf("memberName=%q", trip.MemberName)
	}

	pk, pp, mk, mp := f.totals(t)
	if pk != 50 || mk != 50 || pp != 0 || mp != 0 {
		t.Fatalf("totals=(%v,%v,%v,%v), want kms 50/50 and payments 0/0", pk, pp, mk, mp)
	}
}

func TestRecordTripSameDayMergeWidensRange(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	day := domain.NewDate(2026, 3, 2)

	first, err := f.svc.RecordTrip(ctx, testMember, testProject, TripInput{Date: day, StartKm: 10, EndKm: 50})
	if err != nil {
		t.Fatalf("first RecordTrip err=%v", err)
	}

	merged, err := f.svc.RecordTrip(ctx, testMember, testProject, TripInput{Date: day, StartKm: 5, EndKm: 60})
	if err != nil {
		t.Fatalf("second RecordTrip err=%v", err)
	}
	if merged.ID != first.ID {
		t.Fatalf("merge must keep the original trip identity: %s vs %s", merged.ID, first.ID)
	}
	if merged.StartKm != 5 || merged.EndKm != 60 || merged.TotalKm != 55 {
		t.Fatalf("merged=%+v, want range [5,60] total 55", merged)
	}

	// The aggregate moved by the delta (15), not the new absolute total.
	pk, _, mk, _ := f.totals(t)
	if pk != 55 || mk != 55 {
		t.Fatalf("totals=(%v,%v), want 55 after 40+15", pk, mk)
	}

	trips, err := f.svc.Trips(ctx, testProject)
	if err != nil {
		t.Fatalf("Trips err=%v", err)
	}
	if len(trips) != 1 {
		t.Fatalf("len=%d, want the merged trip only", len(trips))
	}
}

func TestRecordTripMergeIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	in := TripInput{Date: domain.NewDate(2026, 3, 2), StartKm: 100, EndKm: 150}

	if _, err := f.svc.RecordTrip(ctx, testMember, testProject, in); err != nil {
		t.Fatalf("first RecordTrip err=%v", err)
	}
	before, _, beforeMk, _ := f.totals(t)

	// A client retry delivers the identical submission again.
	trip, err := f.svc.RecordTrip(ctx, testMember, testProject, in)
	if err != nil {
		t.Fatalf("retried RecordTrip err=%v", err)
	}
	if trip.TotalKm != 50 {
		t.Fatalf("totalKm=%v, want unchanged 50", trip.TotalKm)
	}
	after, _, afterMk, _ := f.totals(t)
	if after != before || afterMk != beforeMk {
		t.Fatalf("totals moved on retry: %v -> %v", before, after)
	}
}

func TestRecordTripConcurrentSameDayNoDoubleCount(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	date := domain.NewDate(2026, 3, 2)

	// Overlapping same-day submissions racing for the same trip record.
	// Without serialized read-merge-apply, two of these can both diff
	// against the pre-merge range and double-count the delta.
	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			in := TripInput{Date: date, StartKm: 100, EndKm: float64(110 + i*5)}
			if _, err := f.svc.RecordTrip(ctx, testMember, testProject, in); err != nil {
				t.Errorf("RecordTrip end=%v err=%v", in.EndKm, err)
			}
		}()
	}
	wg.Wait()

	trips, err := f.svc.Trips(ctx, testProject)
	if err != nil {
		t.Fatalf("Trips err=%v", err)
	}
	if len(trips) != 1 {
		t.Fatalf("got %d trips, want one merged record", len(trips))
	}
	if trips[0].StartKm != 100 || trips[0].EndKm != 185 || trips[0].TotalKm != 85 {
		t.Fatalf("merged trip=%+v, want [100,185] totalKm 85", trips[0])
	}

	pk, _, mk, _ := f.totals(t)
	if pk != trips[0].TotalKm || mk != trips[0].TotalKm {
		t.Fatalf("totals=(%v,%v), want both equal to merged totalKm %v", pk, mk, trips[0].TotalKm)
	}
}

func TestRecordTripSequentialContinuity(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.RecordTrip(ctx, testMember, testProject, TripInput{
		Date: domain.NewDate(2026, 3, 2), StartKm: 100, EndKm: 150,
	}); err != nil {
		t.Fatalf("first RecordTrip err=%v", err)
	}

	_, err := f.svc.RecordTrip(ctx, testMember, testProject, TripInput{
		Date: domain.NewDate(2026, 3, 3), StartKm: 160, EndKm: 200,
	})
	wantAppError(t, err, 422, "VALIDATION_ERROR")
	ae := (*apperr.Error)(nil)
	if !errors.As(err, &ae) || ae.Details["startKm"] != "MUST_BE_SEQUENTIAL" {
		t.Fatalf("details=%v, want startKm MUST_BE_SEQUENTIAL", ae.Details)
	}

	if _, err := f.svc.RecordTrip(ctx, testMember, testProject, TripInput{
		Date: domain.NewDate(2026, 3, 3), StartKm: 150, EndKm: 200,
	}); err != nil {
		t.Fatalf("continuous trip err=%v", err)
	}
}

func TestRecordTripCollectsAllViolations(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.RecordTrip(ctx, testMember, testProject, TripInput{
		Date: domain.NewDate(2026, 3, 2), StartKm: 100, EndKm: 150,
	}); err != nil {
		t.Fatalf("seed trip err=%v", err)
	}

	// Out-of-window date and a non-continuous start at once.
	_, err := f.svc.RecordTrip(ctx, testMember, testProject, TripInput{
		Date: domain.NewDate(2026, 4, 10), StartKm: 180, EndKm: 200,
	})
	wantAppError(t, err, 422, "VALIDATION_ERROR")
	ae := (*apperr.Error)(nil)
	if !errors.As(err, &ae) {
		t.Fatalf("err=%v", err)
	}
	if ae.Details["date"] != "MUST_BE_IN_RANGE" || ae.Details["startKm"] != "MUST_BE_SEQUENTIAL" {
		t.Fatalf("details=%v, want both failing fields reported", ae.Details)
	}
}

func TestRecordTripRejectsNonPositiveRange(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RecordTrip(ctx, testMember, testProject, TripInput{
		Date: domain.NewDate(2026, 3, 2), StartKm: 150, EndKm: 150,
	})
	wantAppError(t, err, 422, "INVALID_RANGE")

	_, err = f.svc.RecordTrip(ctx, testMember, testProject, TripInput{
		Date: domain.NewDate(2026, 3, 2), StartKm: 150, EndKm: 100,
	})
	wantAppError(t, err, 422, "INVALID_RANGE")
}

func TestRecordTripRequiresMembership(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RecordTrip(ctx, "m-outsider", testProject, TripInput{
		Date: domain.NewDate(2026, 3, 2), StartKm: 10, EndKm: 20,
	})
	wantAppError(t, err, 403, "NOT_A_MEMBER")

	_, err = f.svc.RecordTrip(ctx, testMember, "p-missing", TripInput{
		Date: domain.NewDate(2026, 3, 2), StartKm: 10, EndKm: 20,
	})
	wantAppError(t, err, 404, "PROJECT_NOT_FOUND")
}

func TestRecordTicketAppendsAndAggregates(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	day := domain.NewDate(2026, 3, 2)

	first, err := f.svc.RecordTicket(ctx, testMember, testProject, TicketInput{Date: day, Value: 30})
	if err != nil {
		t.Fatalf("first RecordTicket err=%v", err)
	}
	f.clk.Advance(time.Minute)
	second, err := f.svc.RecordTicket(ctx, testMember, testProject, TicketInput{Date: day, Value: 30})
	if err != nil {
		t.Fatalf("second RecordTicket err=%v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("tickets must never merge, both got id %s", first.ID)
	}

	_, pp, _, mp := f.totals(t)
	if pp != 60 || mp != 60 {
		t.Fatalf("payments=(%v,%v), want 60/60", pp, mp)
	}

	tickets, err := f.svc.Tickets(ctx, testProject)
	if err != nil {
		t.Fatalf("Tickets err=%v", err)
	}
	if len(tickets) != 2 {
		t.Fatalf("len=%d, want 2 separate tickets", len(tickets))
	}
}

func TestRecordTicketRejectsNonPositiveValue(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	for _, value := range []float64{0, -5} {
		_, err := f.svc.RecordTicket(ctx, testMember, testProject, TicketInput{
			Date: domain.NewDate(2026, 3, 2), Value: value,
		})
		wantAppError(t, err, 422, "INVALID_VALUE")
	}
}

func TestRecordTicketChecksDateWindow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RecordTicket(ctx, testMember, testProject, TicketInput{
		Date: domain.NewDate(2026, 4, 1), Value: 30,
	})
	wantAppError(t, err, 422, "VALIDATION_ERROR")

	// Window edges are inclusive.
	for _, day := range []domain.Date{domain.NewDate(2026, 3, 1), domain.NewDate(2026, 3, 31)} {
		if _, err := f.svc.RecordTicket(ctx, testMember, testProject, TicketInput{Date: day, Value: 10}); err != nil {
			t.Fatalf("ticket on %s err=%v", day, err)
		}
	}
}

func TestAggregatesStayConsistentWithLedger(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.seedMember(t, "m-2", "Bob")

	submissions := []struct {
		member domain.MemberID
		in     TripInput
	}{
		{testMember, TripInput{Date: domain.NewDate(2026, 3, 2), StartKm: 100, EndKm: 150}},
		{"m-2", TripInput{Date: domain.NewDate(2026, 3, 2), StartKm: 200, EndKm: 260}},
		{testMember, TripInput{Date: domain.NewDate(2026, 3, 3), StartKm: 150, EndKm: 180}},
		{testMember, TripInput{Date: domain.NewDate(2026, 3, 3), StartKm: 140, EndKm: 190}}, // merges
	}
	for i, s := range submissions {
		f.clk.Advance(time.Minute)
		if _, err := f.svc.RecordTrip(ctx, s.member, testProject, s.in); err != nil {
			t.Fatalf("submission %d err=%v", i, err)
		}
	}

	trips, err := f.svc.Trips(ctx, testProject)
	if err != nil {
		t.Fatalf("Trips err=%v", err)
	}
	var ledgerSum float64
	for _, trip := range trips {
		ledgerSum += trip.TotalKm
	}

	var project ledger.ProjectRecord
	if _, err := f.store.Get(ctx, ledger.ProjectPath(testProject), &project); err != nil {
		t.Fatalf("load project: %v", err)
	}
	if project.TotalKms != ledgerSum {
		t.Fatalf("project total %v != ledger sum %v", project.TotalKms, ledgerSum)
	}

	var memberSum float64
	for _, id := range []domain.MemberID{testMember, "m-2"} {
		var m ledger.MembershipRecord
		if _, err := f.store.Get(ctx, ledger.MembershipPath(id), &m); err != nil {
			t.Fatalf("load membership: %v", err)
		}
		memberSum += m.KmsAccrued
	}
	if memberSum != project.TotalKms {
		t.Fatalf("membership sum %v != project total %v", memberSum, project.TotalKms)
	}
}

func TestValidateTripDoesNotTouchLedger(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.ValidateTrip(ctx, testMember, testProject, TripInput{
		Date: domain.NewDate(2026, 4, 10), StartKm: 20, EndKm: 10,
	})
	if err != nil {
		t.Fatalf("ValidateTrip err=%v", err)
	}
	if v.OK() {
		t.Fatalf("expected violations")
	}
	if len(v) != 2 {
		t.Fatalf("violations=%v, want endKm and date", v)
	}

	trips, err := f.svc.Trips(ctx, testProject)
	if err != nil {
		t.Fatalf("Trips err=%v", err)
	}
	if len(trips) != 0 {
		t.Fatalf("validation must not record trips, got %d", len(trips))
	}
	pk, pp, _, _ := f.totals(t)
	if pk != 0 || pp != 0 {
		t.Fatalf("validation must not move totals: (%v,%v)", pk, pp)
	}
}

func TestLastTrip(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	if _, found, err := f.svc.LastTrip(ctx, testProject, testMember); err != nil || found {
		t.Fatalf("found=%v err=%v, want no last trip", found, err)
	}

	if _, err := f.svc.RecordTrip(ctx, testMember, testProject, TripInput{
		Date: domain.NewDate(2026, 3, 2), StartKm: 100, EndKm: 150,
	}); err != nil {
		t.Fatalf("RecordTrip err=%v", err)
	}
	f.clk.Advance(time.Minute)
	if _, err := f.svc.RecordTrip(ctx, testMember, testProject, TripInput{
		Date: domain.NewDate(2026, 3, 5), StartKm: 150, EndKm: 170,
	}); err != nil {
		t.Fatalf("RecordTrip err=%v", err)
	}

	last, found, err := f.svc.LastTrip(ctx, testProject, testMember)
	if err != nil || !found {
		t.Fatalf("found=%v err=%v", found, err)
	}
	if !last.Date.Equal(domain.NewDate(2026, 3, 5)) || last.EndKm != 170 {
		t.Fatalf("last=%+v, want the March 5 trip", last)
	}
}
