// Package ledger defines the persistence shapes and tree paths shared by the
// project, trip and cost-share services. These are storage records, not HTTP
// DTOs and not domain types.
package ledger

import (
	"time"

	"github.com/shared-wheels/carpool-ledger-api/internal/domain"
)

// MemberRecord lives at members/{memberID}.
type MemberRecord struct {
	ID          domain.MemberID `json:"id"`
	DisplayName string          `json:"displayName"`
	Email       string          `json:"email"`
}

// MembershipRecord lives at members/{memberID}/membership. A member carries
// at most one; its absence means the member is in no project.
type MembershipRecord struct {
	ProjectID domain.ProjectID `json:"projectId"`
	Role      domain.Role      `json:"role"`

	KmsAccrued     float64 `json:"kmsAccrued"`
	PaymentAccrued float64 `json:"paymentAccrued"`

	JoinedAt time.Time `json:"joinedAt"`
}

// ProjectRecord lives at projects/{projectID}. Members holds the member-id
// set registered under the project (mirrors the membership records).
type ProjectRecord struct {
	ID           domain.ProjectID `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	PasswordHash string           `json:"passwordHash"`

	StartDate domain.Date `json:"startDate"`
	EndDate   domain.Date `json:"endDate"`

	TotalKms     float64 `json:"totalKms"`
	TotalPayment float64 `json:"totalPayment"`

	Members map[domain.MemberID]bool `json:"members"`

	CreatedAt time.Time `json:"createdAt"`
}

// TripRecord lives at trips/{projectID}/{tripID}. There is at most one per
// (member, date): same-day submissions merge into the existing record.
type TripRecord struct {
	ID         domain.TripID   `json:"id"`
	MemberID   domain.MemberID `json:"memberId"`
	MemberName string          `json:"memberName"`

	Date    domain.Date `json:"date"`
	StartKm float64     `json:"startKm"`
	EndKm   float64     `json:"endKm"`
	TotalKm float64     `json:"totalKm"`

	// CreatedAt orders trips recorded on the same date.
	CreatedAt time.Time `json:"createdAt"`
}

// TicketRecord lives at tickets/{projectID}/{ticketID}.
type TicketRecord struct {
	ID         domain.TicketID `json:"id"`
	MemberID   domain.MemberID `json:"memberId"`
	MemberName string          `json:"memberName"`

	Date  domain.Date `json:"date"`
	Value float64     `json:"value"`

	CreatedAt time.Time `json:"createdAt"`
}

func (r ProjectRecord) Domain() domain.Project {
	return domain.Project{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description,
		PasswordHash: r.PasswordHash,
		StartDate:    r.StartDate,
		EndDate:      r.EndDate,
		TotalKms:     r.TotalKms,
		TotalPayment: r.TotalPayment,
	}
}

func (r MembershipRecord) Domain(memberID domain.MemberID) domain.Membership {
	return domain.Membership{
		ProjectID:      r.ProjectID,
		MemberID:       memberID,
		Role:           r.Role,
		KmsAccrued:     r.KmsAccrued,
		PaymentAccrued: r.PaymentAccrued,
	}
}

func (r TripRecord) Domain(projectID domain.ProjectID) domain.Trip {
	return domain.Trip{
		ID:         r.ID,
		ProjectID:  projectID,
		MemberID:   r.MemberID,
		MemberName: r.MemberName,
		Date:       r.Date,
		StartKm:    r.StartKm,
		EndKm:      r.EndKm,
		TotalKm:    r.TotalKm,
	}
}

func (r TicketRecord) Domain(projectID domain.ProjectID) domain.Ticket {
	return domain.Ticket{
		ID:         r.ID,
		ProjectID:  projectID,
		MemberID:   r.MemberID,
		MemberName: r.MemberName,
		Date:       r.Date,
		Value:      r.Value,
	}
}
