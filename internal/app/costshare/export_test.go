package costshare

import (
	"context"
	"strings"
	"testing"

	"github.com/shared-wheels/carpool-ledger-api/internal/domain"
)

func TestBuildReport(t *testing.T) {
	t.Parallel()

	svc, store := newServices(t)
	seedProject(t, store, 100, map[domain.MemberID]float64{
		"ann": 60,
		"bob": 40,
	})

	report, err := svc.BuildReport(context.Background(), testProject)
	if err != nil {
		t.Fatalf("BuildReport err=%v", err)
	}
	if report.ProjectName != "March Pool" || report.TotalKms != 100 || report.TotalPayment != 100 {
		t.Fatalf("report header=%+v", report)
	}
	if len(report.Rows) != 2 {
		t.Fatalf("rows=%d, want 2", len(report.Rows))
	}
	// Standings order: accrued kms descending.
	if report.Rows[0].Member != "ann" || report.Rows[1].Member != "bob" {
		t.Fatalf("row order %q, %q", report.Rows[0].Member, report.Rows[1].Member)
	}
	if report.Rows[0].CostShare != 60 || report.Rows[1].CostShare != 40 {
		t.Fatalf("shares=(%v,%v), want 60/40", report.Rows[0].CostShare, report.Rows[1].CostShare)
	}
	if report.Rows[0].UsagePercent != 60 || report.Rows[1].UsagePercent != 40 {
		t.Fatalf("percents=(%d,%d), want 60/40", report.Rows[0].UsagePercent, report.Rows[1].UsagePercent)
	}
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	report := Report{
		ProjectName:  "March Pool",
		StartDate:    domain.NewDate(2026, 3, 1),
		EndDate:      domain.NewDate(2026, 3, 31),
		TotalKms:     100,
		TotalPayment: 123.4,
		Rows: []ReportRow{
			{Member: "Ann", TotalKms: 60.5, UsagePercent: 61, CostShare: 74.66},
			{Member: "Bob", TotalKms: 39.5, UsagePercent: 40, CostShare: 48.74},
		},
	}

	var sb strings.Builder
	if err := WriteCSV(&sb, report); err != nil {
		t.Fatalf("WriteCSV err=%v", err)
	}

	want := strings.Join([]string{
		"Project,March Pool",
		"Start Date,2026-03-01",
		"End Date,2026-03-31",
		"Total Kms,100",
		"Total Payment,123.40",
		"",
		"Member,Total Kms,Usage %,Cost Share",
		"Ann,60.5,61,74.66",
		"Bob,39.5,40,48.74",
		"",
	}, "\n")
	if got := sb.String(); got != want {
		t.Fatalf("csv mismatch:\n got: %q\nwant: %q", got, want)
	}
}
