package domain

// Trip is one merged daily odometer-range record per member per project.
// Invariant: EndKm > StartKm and TotalKm == EndKm - StartKm.
type Trip struct {
	ID         TripID
	ProjectID  ProjectID
	MemberID   MemberID
	MemberName string

	Date    Date
	StartKm float64
	EndKm   float64
	TotalKm float64
}

// Merge widens the trip's odometer range to cover [startKm, endKm] and
// returns the resulting change in TotalKm. The merged range only grows, so
// the delta is never negative; re-applying the same range yields zero.
func (t *Trip) Merge(startKm, endKm float64) (deltaKm float64) {
	if startKm < t.StartKm {
		t.StartKm = startKm
	}
	if endKm > t.EndKm {
		t.EndKm = endKm
	}
	newTotal := t.EndKm - t.StartKm
	deltaKm = newTotal - t.TotalKm
	t.TotalKm = newTotal
	return deltaKm
}
