package domain

// Member is the domain representation of a registered member profile.
// Identity (login, sessions) is handled entirely by the identity
// collaborator; the core only stores display data keyed by MemberID.
type Member struct {
	ID          MemberID
	DisplayName string
	Email       string
}
