package trips

import "github.com/shared-wheels/carpool-ledger-api/internal/domain"

type TripInput struct {
	Date    domain.Date
	StartKm float64
	EndKm   float64
}

type TicketInput struct {
	Date  domain.Date
	Value float64
}
