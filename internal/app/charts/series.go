// Package charts shapes trip data into the per-member line series the chart
// collaborator renders. Presentation only: nothing here feeds the ledgers.
package charts

import (
	"sort"

	"github.com/shared-wheels/carpool-ledger-api/internal/domain"
)

// Color pairs the stroke and the translucent fill variant of one palette entry.
type Color struct {
	RGB  string `json:"rgb"`
	RGBA string `json:"rgba"`
}

// palette is the fixed series palette; series beyond its length wrap around.
var palette = [...]Color{
	{RGB: "rgb(255, 99, 132)", RGBA: "rgba(255, 99, 132, 0.5)"},
	{RGB: "rgb(54, 162, 235)", RGBA: "rgba(54, 162, 235, 0.5)"},
	{RGB: "rgb(255, 206, 86)", RGBA: "rgba(255, 206, 86, 0.5)"},
	{RGB: "rgb(75, 192, 192)", RGBA: "rgba(75, 192, 192, 0.5)"},
	{RGB: "rgb(153, 102, 255)", RGBA: "rgba(153, 102, 255, 0.5)"},
	{RGB: "rgb(255, 159, 64)", RGBA: "rgba(255, 159, 64, 0.5)"},
}

// ColorAt returns the palette entry for series i, cycling past the end.
func ColorAt(i int) Color {
	return palette[i%len(palette)]
}

// Point is one chart sample: the day of month and the kms driven that day.
type Point struct {
	Day int     `json:"x"`
	Kms float64 `json:"y"`
}

// Series is one member's line on the usage chart.
type Series struct {
	Label  string  `json:"label"`
	Points []Point `json:"data"`
	Color  Color   `json:"color"`
}

// BuildSeries groups trips per member into day/kms points. Series are ordered
// by member id so colors stay stable across refreshes.
func BuildSeries(trips []domain.Trip) []Series {
	byMember := make(map[domain.MemberID][]Point)
	labels := make(map[domain.MemberID]string)
	for _, t := range trips {
		byMember[t.MemberID] = append(byMember[t.MemberID], Point{Day: t.Date.Day(), Kms: t.TotalKm})
		labels[t.MemberID] = t.MemberName
	}

	ids := make([]domain.MemberID, 0, len(byMember))
	for id := range byMember {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Series, 0, len(ids))
	for i, id := range ids {
		out = append(out, Series{
			Label:  labels[id],
			Points: byMember[id],
			Color:  ColorAt(i),
		})
	}
	return out
}
