package main

import (
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/vadimtrunov/marquee/internal/seatmap"
)

// Seat glyphs per status.
var seatGlyphs = map[seatmap.Status]string{
	seatmap.StatusAvailable:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("○"),
	seatmap.StatusSelected:    lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("●"),
	seatmap.StatusReserved:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("×"),
	seatmap.StatusVIP:         lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Render("◇"),
	seatmap.StatusVIPSelected: lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Render("◆"),
}

type seatsOptions struct {
	selects []string
	seed    uint64
	day     int
	slot    int
}

func newSeatsCmd() *cobra.Command {
	var opts seatsOptions
	cmd := &cobra.Command{
		Use:   "seats",
		Short: "Show the seat map of a screening",
		Long: "Generate the seat map of a screening and optionally select seats.\n" +
			"Seat ids are row-number, for example 5-12. Row 10 is the VIP row.",
		Example: "  marquee seats --select 5-11 --select 5-12",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeats(cmd.OutOrStdout(), opts, time.Now().Year())
		},
	}
	cmd.Flags().StringSliceVar(&opts.selects, "select", nil, "seat ids to select (repeatable or comma separated)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "seed for the reserved seats, 0 for random")
	cmd.Flags().IntVar(&opts.day, "day", 0, "show date index (0-4)")
	cmd.Flags().IntVar(&opts.slot, "slot", 0, "time slot index")
	return cmd
}

func runSeats(w io.Writer, opts seatsOptions, year int) error {
	dates, slots := seatmap.Dates(year), seatmap.TimeSlots()
	if opts.day < 0 || opts.day >= len(dates) {
		return fmt.Errorf("day must be between 0 and %d", len(dates)-1)
	}
	if opts.slot < 0 || opts.slot >= len(slots) {
		return fmt.Errorf("slot must be between 0 and %d", len(slots)-1)
	}

	var rng *rand.Rand
	if opts.seed != 0 {
		rng = rand.New(rand.NewPCG(opts.seed, opts.seed))
	}
	m := seatmap.Generate(rng)

	for _, id := range opts.selects {
		if _, err := m.Toggle(strings.TrimSpace(id)); err != nil {
			return fmt.Errorf("select seat: %w", err)
		}
	}

	date, slot := dates[opts.day], slots[opts.slot]
	fmt.Fprintln(w, styleHeader.Render(fmt.Sprintf("%s %d %s · %s · %s",
		date.Weekday, date.Day, date.Month, slot.Time, slot.Hall)))
	fmt.Fprint(w, renderSeatMap(m))
	fmt.Fprintln(w)
	printSelection(w, m)
	return nil
}

func renderSeatMap(m *seatmap.Map) string {
	var sb strings.Builder

	screen := lipgloss.NewStyle().
		Width(seatmap.SeatsPerRow*2+3).
		Align(lipgloss.Center).
		Foreground(lipgloss.Color("12")).
		Render("SCREEN")
	sb.WriteString(screen + "\n\n")

	for _, row := range m.Seats {
		if len(row) == 0 {
			continue
		}
		sb.WriteString(styleDim.Render(fmt.Sprintf("%2d ", row[0].Row)))
		for _, s := range row {
			sb.WriteString(seatGlyphs[s.Status] + " ")
		}
		sb.WriteString("\n")
	}

	counts := m.Counts()
	sb.WriteString("\n")
	sb.WriteString(strings.Join([]string{
		fmt.Sprintf("%s available (%d)", seatGlyphs[seatmap.StatusAvailable],
			counts[seatmap.StatusAvailable]+counts[seatmap.StatusVIP]),
		fmt.Sprintf("%s selected (%d)", seatGlyphs[seatmap.StatusSelected],
			counts[seatmap.StatusSelected]+counts[seatmap.StatusVIPSelected]),
		fmt.Sprintf("%s reserved (%d)", seatGlyphs[seatmap.StatusReserved], counts[seatmap.StatusReserved]),
		fmt.Sprintf("%s VIP $%d", seatGlyphs[seatmap.StatusVIP], seatmap.VIPPrice),
	}, "  "))
	sb.WriteString("\n")
	return sb.String()
}

func printSelection(w io.Writer, m *seatmap.Map) {
	selected := m.Selected()
	if len(selected) == 0 {
		fmt.Fprintln(w, styleDim.Render("No seats selected."))
		return
	}
	ids := make([]string, len(selected))
	for i, s := range selected {
		ids[i] = s.ID
	}
	fmt.Fprintf(w, "%s %s\n", styleDim.Render("Seats:"), strings.Join(ids, ", "))
	fmt.Fprintln(w, styleSuccess.Render(fmt.Sprintf("Total: $%d", m.Total())))
}
