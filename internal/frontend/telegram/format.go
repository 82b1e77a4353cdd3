package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/vadimtrunov/marquee/internal/metadata/tmdb"
)

// mdV2Replacer escapes special characters for Telegram MarkdownV2.
var mdV2Replacer = strings.NewReplacer(
	`\`, `\\`,
	"_", "\\_",
	"*", "\\*",
	"[", "\\[",
	"]", "\\]",
	"(", "\\(",
	")", "\\)",
	"~", "\\~",
	"`", "\\`",
	">", "\\>",
	"#", "\\#",
	"+", "\\+",
	"-", "\\-",
	"=", "\\=",
	"|", "\\|",
	"{", "\\{",
	"}", "\\}",
	".", "\\.",
	"!", "\\!",
)

// EscapeMdV2 escapes a string for safe use in Telegram MarkdownV2.
func EscapeMdV2(s string) string {
	return mdV2Replacer.Replace(s)
}

// FormatBold returns MarkdownV2 bold text.
func FormatBold(s string) string {
	return "*" + EscapeMdV2(s) + "*"
}

// FormatItalic returns MarkdownV2 italic text.
func FormatItalic(s string) string {
	return "_" + EscapeMdV2(s) + "_"
}

// maxCaption is Telegram's photo caption limit in characters.
const maxCaption = 1024

// RatingBar renders a 0-10 vote average as a bar, e.g. "[███████░░░] 7.2".
func RatingBar(vote float64, width int) string {
	if width < 1 {
		width = 10
	}
	filled := int(vote / 10 * float64(width))
	filled = max(0, min(filled, width))
	return fmt.Sprintf("[%s%s] %.1f",
		strings.Repeat("█", filled),
		strings.Repeat("░", width-filled),
		vote,
	)
}

// releaseYear returns the year of a YYYY-MM-DD release date, or "".
func releaseYear(date string) string {
	if len(date) < 4 {
		return ""
	}
	if _, err := strconv.Atoi(date[:4]); err != nil {
		return ""
	}
	return date[:4]
}

// movieLabel is the plain "Title (Year)" label of a movie.
func movieLabel(m tmdb.Movie) string {
	if y := releaseYear(m.ReleaseDate); y != "" {
		return fmt.Sprintf("%s (%s)", m.Title, y)
	}
	return m.Title
}

// FormatMovieList renders a numbered movie list in MarkdownV2. page and
// totalPages are shown in the header when totalPages > 1.
func FormatMovieList(title string, movies []tmdb.Movie, page, totalPages int) string {
	var b strings.Builder
	b.WriteString(FormatBold(title))
	if totalPages > 1 {
		b.WriteString(EscapeMdV2(fmt.Sprintf(" (page %d of %d)", page, totalPages)))
	}
	b.WriteString("\n\n")

	if len(movies) == 0 {
		b.WriteString(FormatItalic("No movies found."))
		return b.String()
	}
	for i, m := range movies {
		line := fmt.Sprintf("%d. %s", i+1, movieLabel(m))
		if m.VoteAverage > 0 {
			line += fmt.Sprintf(" - %.1f", m.VoteAverage)
		}
		b.WriteString(EscapeMdV2(line))
		b.WriteString(" `/movie " + strconv.Itoa(m.ID) + "`\n")
	}
	return b.String()
}

// FormatMovieDetails renders a movie card in MarkdownV2. trailerURL may be empty.
func FormatMovieDetails(d *tmdb.MovieDetails, trailerURL string) string {
	var b strings.Builder
	title := d.Title
	if y := releaseYear(d.ReleaseDate); y != "" {
		title = fmt.Sprintf("%s (%s)", d.Title, y)
	}
	b.WriteString(FormatBold(title))
	b.WriteString("\n")

	if d.Tagline != "" {
		b.WriteString(FormatItalic(d.Tagline))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	var facts []string
	if d.Runtime > 0 {
		facts = append(facts, fmt.Sprintf("%d min", d.Runtime))
	}
	if len(d.Genres) > 0 {
		names := make([]string, len(d.Genres))
		for i, g := range d.Genres {
			names[i] = g.Name
		}
		facts = append(facts, strings.Join(names, ", "))
	}
	if d.Status != "" {
		facts = append(facts, d.Status)
	}
	if len(facts) > 0 {
		b.WriteString(EscapeMdV2(strings.Join(facts, " · ")))
		b.WriteString("\n")
	}
	if d.VoteAverage > 0 {
		b.WriteString(EscapeMdV2(RatingBar(d.VoteAverage, 10)))
		if d.VoteCount > 0 {
			b.WriteString(EscapeMdV2(fmt.Sprintf(" (%d votes)", d.VoteCount)))
		}
		b.WriteString("\n")
	}

	if d.Overview != "" {
		b.WriteString("\n")
		b.WriteString(EscapeMdV2(d.Overview))
		b.WriteString("\n")
	}
	if trailerURL != "" {
		b.WriteString("\n")
		b.WriteString("[" + EscapeMdV2("▶ Watch trailer") + "](" + escapeLinkURL(trailerURL) + ")")
	}
	return b.String()
}

// escapeLinkURL escapes the characters MarkdownV2 reserves inside (...) of a link.
func escapeLinkURL(u string) string {
	return strings.NewReplacer(`\`, `\\`, ")", "\\)").Replace(u)
}

// truncate shortens s to at most n runes, adding an ellipsis when cut.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
