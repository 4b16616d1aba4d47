package domain

// Ticket is one expense entry contributing to a project's shared cost pool.
// Tickets are append-only: there is no merge rule.
type Ticket struct {
	ID         TicketID
	ProjectID  ProjectID
	MemberID   MemberID
	MemberName string

	Date  Date
	Value float64
}
