package domain

// MaxProjectMembers bounds how many members can share one project.
const MaxProjectMembers = 5

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Project is a shared, time-boxed vehicle-usage pool. Totals are derived
// aggregates: they are mutated only through delta application and must stay
// equal to the sums over the project's trips and tickets.
type Project struct {
	ID          ProjectID
	Name        string
	Description string

	// PasswordHash is the join credential, never the plaintext password.
	PasswordHash string

	StartDate Date
	EndDate   Date

	TotalKms     float64
	TotalPayment float64
}

// Membership is a member's participation record in exactly one project.
// KmsAccrued and PaymentAccrued are maintained via deltas and never decrease.
type Membership struct {
	ProjectID ProjectID
	MemberID  MemberID
	Role      Role

	KmsAccrued     float64
	PaymentAccrued float64
}
