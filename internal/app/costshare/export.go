package costshare

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/shared-wheels/carpool-ledger-api/internal/domain"
)

// ReportRow is one member line of the usage report. Field order and the
// 2-decimal money formatting are the interoperability contract with existing
// consumers of the export.
type ReportRow struct {
	Member       string
	TotalKms     float64
	UsagePercent int
	CostShare    float64
}

type Report struct {
	ProjectName string
	StartDate   domain.Date
	EndDate     domain.Date

	TotalKms     float64
	TotalPayment float64

	Rows []ReportRow
}

// BuildReport assembles the usage report for a project, allocating the
// project's own expense pool (its total payment) across members. Rows follow
// the standings order: accrued kms descending.
func (s *Service) BuildReport(ctx context.Context, projectID domain.ProjectID) (Report, error) {
	project, err := s.projects.Project(ctx, projectID)
	if err != nil {
		return Report{}, err
	}
	standings, err := s.projects.Members(ctx, projectID)
	if err != nil {
		return Report{}, err
	}
	alloc, err := s.Allocate(ctx, projectID, project.TotalPayment)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		ProjectName:  project.Name,
		StartDate:    project.StartDate,
		EndDate:      project.EndDate,
		TotalKms:     project.TotalKms,
		TotalPayment: project.TotalPayment,
		Rows:         make([]ReportRow, 0, len(standings)),
	}
	for _, st := range standings {
		report.Rows = append(report.Rows, ReportRow{
			Member:       st.Member.DisplayName,
			TotalKms:     st.Membership.KmsAccrued,
			UsagePercent: UsagePercent(st.Membership.KmsAccrued, project.TotalKms),
			CostShare:    RoundMoney(alloc.Shares[st.Member.ID]),
		})
	}
	return report, nil
}

// WriteCSV serialises a usage report: project summary first, then the member
// table in the fixed column order member, totalKms, usagePercent, costShare.
func WriteCSV(w io.Writer, report Report) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	summary := [][]string{
		{"Project", report.ProjectName},
		{"Start Date", report.StartDate.String()},
		{"End Date", report.EndDate.String()},
		{"Total Kms", formatKms(report.TotalKms)},
		{"Total Payment", formatMoney(report.TotalPayment)},
		{},
		{"Member", "Total Kms", "Usage %", "Cost Share"},
	}
	for _, record := range summary {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	for _, row := range report.Rows {
		record := []string{
			row.Member,
			formatKms(row.TotalKms),
			strconv.Itoa(row.UsagePercent),
			formatMoney(row.CostShare),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatKms(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
