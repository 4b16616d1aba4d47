package projects

import "github.com/shared-wheels/carpool-ledger-api/internal/domain"

type CreateProjectInput struct {
	Name        string
	Description string
	Password    string

	StartDate domain.Date
	EndDate   domain.Date
}

// MemberStanding pairs a member's profile with their membership aggregates,
// for the project standings view and the export table.
type MemberStanding struct {
	Member     domain.Member
	Membership domain.Membership
}
