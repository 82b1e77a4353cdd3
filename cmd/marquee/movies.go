package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/vadimtrunov/marquee/internal/catalog"
	"github.com/vadimtrunov/marquee/internal/filter"
	"github.com/vadimtrunov/marquee/internal/metadata/tmdb"
)

const (
	ratingBarWidth = 10
	overviewWidth  = 72
)

func newUpcomingCmd() *cobra.Command {
	var (
		page int
		expr string
	)
	cmd := &cobra.Command{
		Use:     "upcoming",
		Short:   "List upcoming movies",
		Example: `  marquee upcoming --page 2 --filter 'Rating >= 7 and HasGenre(878)'`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flt, err := compileFilter(expr)
			if err != nil {
				return err
			}
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			f := newFetcher(newTMDbClient(cfg, logger), logger)
			return runUpcoming(ctx, cmd.OutOrStdout(), f, page, flt)
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 1, "result page")
	cmd.Flags().StringVarP(&expr, "filter", "f", "", "filter expression applied to the page")
	return cmd
}

func runUpcoming(ctx context.Context, w io.Writer, f *catalog.Fetcher, page int, flt *filter.Filter) error {
	if err := f.FetchUpcoming(ctx, page); err != nil {
		return storeError(f.Store(), err)
	}
	st := f.Store().Snapshot()
	movies, err := flt.Apply(st.Upcoming)
	if err != nil {
		return err
	}
	printMovieList(w, "Upcoming movies", movies, st.Page, st.TotalPages)
	return nil
}

func newSearchCmd() *cobra.Command {
	var (
		page int
		expr string
	)
	cmd := &cobra.Command{
		Use:     "search [query]",
		Short:   "Search movies by title",
		Example: `  marquee search "the batman"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flt, err := compileFilter(expr)
			if err != nil {
				return err
			}
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			f := newFetcher(newTMDbClient(cfg, logger), logger)
			return runSearch(ctx, cmd.OutOrStdout(), f, strings.Join(args, " "), page, flt)
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 1, "result page")
	cmd.Flags().StringVarP(&expr, "filter", "f", "", "filter expression applied to the results")
	return cmd
}

func runSearch(ctx context.Context, w io.Writer, f *catalog.Fetcher, query string, page int, flt *filter.Filter) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return fmt.Errorf("search query is empty")
	}
	if err := f.Search(ctx, query, page); err != nil {
		return storeError(f.Store(), err)
	}
	movies, err := flt.Apply(f.Store().Snapshot().SearchResults)
	if err != nil {
		return err
	}
	printMovieList(w, fmt.Sprintf("Results for %q", query), movies, 1, 1)
	return nil
}

// compileFilter compiles the --filter flag. An empty flag yields nil.
func compileFilter(expr string) (*filter.Filter, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}
	return filter.Compile(expr)
}

func newMovieCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "movie [tmdb id]",
		Short:   "Show movie details and trailer",
		Example: "  marquee movie 693134",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMovieID(args[0])
			if err != nil {
				return err
			}
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			client := newTMDbClient(cfg, logger)
			return runMovie(ctx, cmd.OutOrStdout(), newFetcher(client, logger), client.ImageURL, id)
		},
	}
}

// runMovie loads details and videos together. Only a details failure is
// fatal; without videos the card is printed with a note instead of a trailer.
func runMovie(
	ctx context.Context, w io.Writer, f *catalog.Fetcher,
	imageURL func(string, tmdb.ImageSize) string, id int,
) error {
	_ = f.FetchDetailsAndVideos(ctx, id)

	st := f.Store().Snapshot()
	if st.Details == nil {
		if req := st.Requests[catalog.CategoryDetails]; req.Failed() {
			return errors.New(req.Err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return errors.New(catalog.MsgDetailsFailed)
	}

	printMovieDetails(w, st.Details, imageURL)

	if req := st.Requests[catalog.CategoryVideos]; req.Failed() {
		fmt.Fprintln(w, styleWarn.Render("Trailer unavailable: "+req.Err))
		return nil
	}
	if trailer, ok := tmdb.PickTrailer(st.Videos); ok {
		fmt.Fprintf(w, "%s %s\n", styleDim.Render("Trailer:"), styleInfo.Render(trailer.WatchURL()))
	} else {
		fmt.Fprintln(w, styleDim.Render("No trailer available."))
	}
	return nil
}

func newImagesCmd() *cobra.Command {
	var (
		size  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "images [tmdb id]",
		Short: "List poster and backdrop URLs of a movie",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMovieID(args[0])
			if err != nil {
				return err
			}
			sz, ok := tmdb.ParseImageSize(size)
			if !ok {
				return fmt.Errorf("unknown image size %q", size)
			}
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return runImages(ctx, cmd.OutOrStdout(), newTMDbClient(cfg, logger), id, sz, limit)
		},
	}
	cmd.Flags().StringVarP(&size, "size", "s", string(tmdb.Original), "image size token (w500) or name (poster-large)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "maximum images per kind, 0 for all")
	return cmd
}

// imageSource is the part of the TMDb client the images command needs.
type imageSource interface {
	GetMovieImages(ctx context.Context, id int) (*tmdb.MovieImages, error)
	ImageURL(path string, size tmdb.ImageSize) string
}

func runImages(ctx context.Context, w io.Writer, src imageSource, id int, size tmdb.ImageSize, limit int) error {
	images, err := src.GetMovieImages(ctx, id)
	if err != nil {
		if msg := tmdb.UpstreamMessage(err); msg != "" {
			return &displayError{msg: msg, err: err}
		}
		return fmt.Errorf("fetch images: %w", err)
	}

	printImages := func(kind string, list []tmdb.Image) {
		fmt.Fprintln(w, styleHeader.Render(fmt.Sprintf("%s (%d)", kind, len(list))))
		if len(list) == 0 {
			fmt.Fprintln(w, styleDim.Render("none"))
			return
		}
		for i, img := range list {
			if limit > 0 && i >= limit {
				fmt.Fprintln(w, styleDim.Render(fmt.Sprintf("… %d more", len(list)-limit)))
				break
			}
			fmt.Fprintf(w, "%s %s\n",
				styleDim.Render(fmt.Sprintf("%dx%d", img.Width, img.Height)),
				src.ImageURL(img.FilePath, size),
			)
		}
	}
	printImages("Posters", images.Posters)
	printImages("Backdrops", images.Backdrops)
	return nil
}

func parseMovieID(arg string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid movie id %q: must be a positive number", arg)
	}
	return id, nil
}

func printMovieList(w io.Writer, title string, movies []tmdb.Movie, page, totalPages int) {
	if totalPages > 1 {
		title += styleDim.Render(fmt.Sprintf(" (page %d of %d)", page, totalPages))
	}
	fmt.Fprintln(w, styleHeader.Render(title))

	if len(movies) == 0 {
		fmt.Fprintln(w, styleDim.Render("No movies found."))
		return
	}
	for i, m := range movies {
		fmt.Fprintln(w, movieLine(i+1, m))
	}
}

func movieLine(index int, m tmdb.Movie) string {
	line := fmt.Sprintf("%s %s", styleDim.Render(fmt.Sprintf("%2d.", index)), styleTitle.Render(m.Title))
	if year := releaseYear(m.ReleaseDate); year != "" {
		line += styleDim.Render(" (" + year + ")")
	}
	if m.VoteAverage > 0 {
		line += "  " + styleSuccess.Render(fmt.Sprintf("★ %.1f", m.VoteAverage))
	}
	return line + "  " + styleDim.Render(fmt.Sprintf("#%d", m.ID))
}

func printMovieDetails(w io.Writer, d *tmdb.MovieDetails, imageURL func(string, tmdb.ImageSize) string) {
	title := d.Title
	if year := releaseYear(d.ReleaseDate); year != "" {
		title += " (" + year + ")"
	}
	fmt.Fprintln(w, styleAccent.Render(title))
	if d.Tagline != "" {
		fmt.Fprintln(w, styleDim.Render(d.Tagline))
	}

	var facts []string
	if d.Runtime > 0 {
		facts = append(facts, fmt.Sprintf("%d min", d.Runtime))
	}
	for _, g := range d.Genres {
		facts = append(facts, g.Name)
	}
	if d.Status != "" {
		facts = append(facts, d.Status)
	}
	if len(facts) > 0 {
		fmt.Fprintln(w, strings.Join(facts, " · "))
	}
	if d.VoteCount > 0 {
		fmt.Fprintf(w, "%s %s\n", ratingBar(d.VoteAverage, ratingBarWidth),
			styleDim.Render(fmt.Sprintf("(%d votes)", d.VoteCount)))
	}
	if d.Overview != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, lipgloss.NewStyle().Width(overviewWidth).Render(d.Overview))
		fmt.Fprintln(w)
	}
	if d.PosterPath != "" && imageURL != nil {
		fmt.Fprintf(w, "%s %s\n", styleDim.Render("Poster:"), imageURL(d.PosterPath, tmdb.PosterLarge))
	}
}

func ratingBar(vote float64, width int) string {
	filled := int(vote / 10 * float64(width))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return styleSuccess.Render(strings.Repeat("█", filled)) +
		styleDim.Render(strings.Repeat("░", width-filled)) +
		fmt.Sprintf(" %.1f", vote)
}

func releaseYear(date string) string {
	if len(date) < 4 {
		return ""
	}
	if _, err := strconv.Atoi(date[:4]); err != nil {
		return ""
	}
	return date[:4]
}
