package domain

// MemberID is the stable identifier for a member, as issued by the identity
// collaborator. We model it as an opaque identifier: its format is controlled
// by the IdP and the core never inspects it.
type MemberID string

// ProjectID is an internal identifier for a shared vehicle-usage project.
type ProjectID string

// TripID is an internal identifier for a trip record.
type TripID string

// TicketID is an internal identifier for an expense ticket record.
type TicketID string
