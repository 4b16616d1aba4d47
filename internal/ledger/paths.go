package ledger

import "github.com/shared-wheels/carpool-ledger-api/internal/domain"

// Tree layout:
//
//	members/{memberID}             MemberRecord
//	members/{memberID}/membership  MembershipRecord
//	projects/{projectID}           ProjectRecord
//	trips/{projectID}/{tripID}     TripRecord
//	tickets/{projectID}/{ticketID} TicketRecord
func MemberPath(id domain.MemberID) string { return "members/" + string(id) }

func MembershipPath(id domain.MemberID) string { return MemberPath(id) + "/membership" }

func ProjectPath(id domain.ProjectID) string { return "projects/" + string(id) }

func TripsPath(id domain.ProjectID) string { return "trips/" + string(id) }

func TripPath(projectID domain.ProjectID, tripID domain.TripID) string {
	return TripsPath(projectID) + "/" + string(tripID)
}

func TicketsPath(id domain.ProjectID) string { return "tickets/" + string(id) }

func TicketPath(projectID domain.ProjectID, ticketID domain.TicketID) string {
	return TicketsPath(projectID) + "/" + string(ticketID)
}
