package booking

import "fmt"

// SeatSource tags where a seat plan's identifiers came from.
type SeatSource string

const (
	SourcePreferred      SeatSource = "preferred"
	SourceGenericPattern SeatSource = "generic"
	SourceCommonPattern  SeatSource = "common"
	SourceCountOnly      SeatSource = "count-only"
)

// SeatPlan is one ordered list of seat identifiers to attempt against the
// live seat map. A CountOnly plan carries no identifiers and means "let the
// site auto-assign Count seats".
type SeatPlan struct {
	Seats  []string
	Source SeatSource
	Count  int
}

// Allocate returns the candidate seat plans for a request, in the order the
// seat-selection stage should try them. Pure and deterministic: same inputs,
// same plans.
//
// With enough preferred seats the single plan is the first count of them.
// Otherwise two synthetic sequences are derived from count alone, with a
// count-only plan as the final resort.
func Allocate(preferred []string, count int) []SeatPlan {
	if len(preferred) >= count {
		seats := make([]string, count)
		copy(seats, preferred[:count])
		return []SeatPlan{{Seats: seats, Source: SourcePreferred, Count: count}}
	}
	return []SeatPlan{
		{Seats: GenericPattern(count), Source: SourceGenericPattern, Count: count},
		{Seats: CommonPattern(count), Source: SourceCommonPattern, Count: count},
		{Source: SourceCountOnly, Count: count},
	}
}

// genericRows is the row alphabet most coaches use.
var genericRows = [6]byte{'A', 'B', 'C', 'D', 'E', 'F'}

// GenericPattern yields count seats cycling the A..F row alphabet:
// A1, B1, ..., F1, A2, B2, ...
func GenericPattern(count int) []string {
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, fmt.Sprintf("%c%d", genericRows[i%6], i/6+1))
	}
	return out
}

// commonTemplates lists 6-seat row layouts seen across coach types: numbered
// rows with letter positions, then the side row S1..S6.
var commonTemplates = buildCommonTemplates()

func buildCommonTemplates() []string {
	var out []string
	for row := 1; row <= 4; row++ {
		for _, l := range genericRows {
			out = append(out, fmt.Sprintf("%d%c", row, l))
		}
	}
	for n := 1; n <= 6; n++ {
		out = append(out, fmt.Sprintf("S%d", n))
	}
	return out
}

// CommonPattern fills count seats by walking the row templates in order:
// 1A..1F, 2A..2F, ..., S1..S6, then pads S7, S8, ... once the templates run
// out.
func CommonPattern(count int) []string {
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if i < len(commonTemplates) {
			out = append(out, commonTemplates[i])
			continue
		}
		out = append(out, fmt.Sprintf("S%d", i-len(commonTemplates)+7))
	}
	return out
}
