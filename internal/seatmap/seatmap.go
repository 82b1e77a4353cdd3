// Package seatmap generates the mock cinema seat map used by the booking
// screens. Nothing is persisted; every map is generated fresh.
package seatmap

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Layout and pricing of the generated hall.
const (
	Rows        = 10
	SeatsPerRow = 20
	VIPRow      = 10

	StandardPrice = 50
	VIPPrice      = 150

	// ReservedRatio is the chance a standard seat is already taken.
	ReservedRatio = 0.15
)

var (
	ErrSeatNotFound = errors.New("seat not found")
	ErrSeatReserved = errors.New("seat is reserved")
)

// Status is the booking status of a seat.
type Status string

// Seat statuses.
const (
	StatusAvailable   Status = "available"
	StatusSelected    Status = "selected"
	StatusReserved    Status = "reserved"
	StatusVIP         Status = "vip"
	StatusVIPSelected Status = "vip-selected"
)

// Seat is one seat of the hall.
type Seat struct {
	ID     string `json:"id"`
	Row    int    `json:"row"`
	Number int    `json:"number"`
	Status Status `json:"status"`
	Price  int    `json:"price"`
}

// IsVIP reports whether the seat belongs to the VIP row.
func (s Seat) IsVIP() bool {
	return s.Status == StatusVIP || s.Status == StatusVIPSelected
}

// IsSelected reports whether the seat is part of the current selection.
func (s Seat) IsSelected() bool {
	return s.Status == StatusSelected || s.Status == StatusVIPSelected
}

// Map is a generated seat map. It is not safe for concurrent use.
type Map struct {
	Seats [][]Seat `json:"seats"`
	index map[string]*Seat
}

// SeatID formats the identifier of a seat.
func SeatID(row, number int) string {
	return fmt.Sprintf("%d-%d", row, number)
}

// Generate builds a new map. rng drives the reserved seats; nil uses the
// package-level source.
func Generate(rng *rand.Rand) *Map {
	chance := rand.Float64
	if rng != nil {
		chance = rng.Float64
	}

	m := &Map{
		Seats: make([][]Seat, Rows),
		index: make(map[string]*Seat, Rows*SeatsPerRow),
	}
	for r := 1; r <= Rows; r++ {
		row := make([]Seat, SeatsPerRow)
		for n := 1; n <= SeatsPerRow; n++ {
			seat := Seat{ID: SeatID(r, n), Row: r, Number: n, Status: StatusAvailable, Price: StandardPrice}
			switch {
			case r == VIPRow:
				seat.Status = StatusVIP
				seat.Price = VIPPrice
			case chance() < ReservedRatio:
				seat.Status = StatusReserved
			}
			row[n-1] = seat
		}
		m.Seats[r-1] = row
	}
	for r := range m.Seats {
		for n := range m.Seats[r] {
			s := &m.Seats[r][n]
			m.index[s.ID] = s
		}
	}
	return m
}

// Seat returns the seat with the given id.
func (m *Map) Seat(id string) (Seat, bool) {
	s, ok := m.index[id]
	if !ok {
		return Seat{}, false
	}
	return *s, true
}

// Toggle flips the selection of seat id and returns its new state.
// Reserved seats cannot be selected.
func (m *Map) Toggle(id string) (Seat, error) {
	s, ok := m.index[id]
	if !ok {
		return Seat{}, fmt.Errorf("%w: %s", ErrSeatNotFound, id)
	}
	switch s.Status {
	case StatusAvailable:
		s.Status = StatusSelected
	case StatusSelected:
		s.Status = StatusAvailable
	case StatusVIP:
		s.Status = StatusVIPSelected
	case StatusVIPSelected:
		s.Status = StatusVIP
	case StatusReserved:
		return *s, fmt.Errorf("%w: %s", ErrSeatReserved, id)
	}
	return *s, nil
}

// Selected returns the selected seats in row order.
func (m *Map) Selected() []Seat {
	var out []Seat
	for _, row := range m.Seats {
		for _, s := range row {
			if s.IsSelected() {
				out = append(out, s)
			}
		}
	}
	return out
}

// Total is the price of the selected seats.
func (m *Map) Total() int {
	total := 0
	for _, s := range m.Selected() {
		total += s.Price
	}
	return total
}

// Clear deselects every seat.
func (m *Map) Clear() {
	for _, s := range m.index {
		switch s.Status {
		case StatusSelected:
			s.Status = StatusAvailable
		case StatusVIPSelected:
			s.Status = StatusVIP
		}
	}
}

// Counts returns the number of seats per status.
func (m *Map) Counts() map[Status]int {
	out := make(map[Status]int, 5)
	for _, s := range m.index {
		out[s.Status]++
	}
	return out
}

// ShowDate is a bookable day.
type ShowDate struct {
	Day     int    `json:"day"`
	Month   string `json:"month"`
	Weekday string `json:"weekday"`
}

// TimeSlot is a screening of the movie.
type TimeSlot struct {
	Time  string `json:"time"`
	Hall  string `json:"hall"`
	Price int    `json:"price"`
}

// Dates returns the five bookable days starting at 5 March of year.
func Dates(year int) []ShowDate {
	start := time.Date(year, time.March, 5, 0, 0, 0, 0, time.UTC)
	out := make([]ShowDate, 5)
	for i := range out {
		d := start.AddDate(0, 0, i)
		out[i] = ShowDate{
			Day:     d.Day(),
			Month:   d.Month().String()[:3],
			Weekday: d.Weekday().String()[:3],
		}
	}
	return out
}

// TimeSlots returns the screenings offered each day.
func TimeSlots() []TimeSlot {
	return []TimeSlot{
		{Time: "12:30", Hall: "Cinetech + Hall 1", Price: 50},
		{Time: "13:30", Hall: "Cinetech + Hall 2", Price: 75},
	}
}
