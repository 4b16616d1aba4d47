// Package costshare computes each member's proportional share of a total
// expense pool from the current project aggregates. Shares are derived on
// demand and never persisted.
package costshare

import (
	"context"
	"math"

	"github.com/shared-wheels/carpool-ledger-api/internal/app/projects"
	"github.com/shared-wheels/carpool-ledger-api/internal/domain"
)

// Allocation is the result of one proportional split. Shares are kept at
// full precision; rounding happens only at presentation time so the member
// shares still sum to the pool.
type Allocation struct {
	Pool      float64
	TotalKms  float64
	CostPerKm float64

	Shares map[domain.MemberID]float64
}

type Service struct {
	projects *projects.Service
}

func NewService(projectsSvc *projects.Service) *Service {
	return &Service{projects: projectsSvc}
}

// Allocate splits pool across the project's members in proportion to their
// accrued kms. A non-positive pool, or a project with no distance recorded,
// yields an all-zero allocation; that is policy, not an error.
func (s *Service) Allocate(ctx context.Context, projectID domain.ProjectID, pool float64) (Allocation, error) {
	project, err := s.projects.Project(ctx, projectID)
	if err != nil {
		return Allocation{}, err
	}
	standings, err := s.projects.Members(ctx, projectID)
	if err != nil {
		return Allocation{}, err
	}

	totalKms := project.TotalKms

	out := Allocation{
		Pool:     pool,
		TotalKms: totalKms,
		Shares:   make(map[domain.MemberID]float64, len(standings)),
	}
	if pool <= 0 || totalKms <= 0 {
		for _, st := range standings {
			out.Shares[st.Member.ID] = 0
		}
		return out, nil
	}

	out.CostPerKm = pool / totalKms
	for _, st := range standings {
		out.Shares[st.Member.ID] = st.Membership.KmsAccrued * out.CostPerKm
	}
	return out, nil
}

// UsagePercent is a member's share of the project distance, as the rounded
// whole percentage shown next to their name. Zero when nothing is recorded.
func UsagePercent(kms, totalKms float64) int {
	if totalKms == 0 {
		return 0
	}
	return int(math.Round(kms / totalKms * 100))
}

// RoundMoney rounds a currency value to 2 decimal places. Only presentation
// surfaces call this; internal arithmetic stays at full precision.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
