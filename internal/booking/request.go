package booking

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the textual travel date format the e-ticket site expects,
// e.g. "15-Nov-2026".
const DateLayout = "02-Jan-2006"

// Request holds everything one booking run needs. It is constructed once,
// validated, and passed read-only through the whole flow.
type Request struct {
	Origin      string
	Destination string
	TravelDate  string // DateLayout
	TravelClass string
	TrainName   string

	// PreferredSeats may be shorter than SeatCount; the shortfall is covered
	// by fallback allocation.
	PreferredSeats []string
	SeatCount      int
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Origin) == "" {
		return fmt.Errorf("origin required")
	}
	if strings.TrimSpace(r.Destination) == "" {
		return fmt.Errorf("destination required")
	}
	if _, err := time.Parse(DateLayout, r.TravelDate); err != nil {
		return fmt.Errorf("travel date %q: want DD-MMM-YYYY (e.g. 15-Nov-2026)", r.TravelDate)
	}
	if strings.TrimSpace(r.TravelClass) == "" {
		return fmt.Errorf("travel class required")
	}
	if strings.TrimSpace(r.TrainName) == "" {
		return fmt.Errorf("train name required")
	}
	if r.SeatCount < 1 {
		return fmt.Errorf("seat count must be >= 1 (got %d)", r.SeatCount)
	}
	return nil
}

// SplitSeats parses a comma-separated preferred seat list ("A1,B1, C2").
func SplitSeats(s string) []string {
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
