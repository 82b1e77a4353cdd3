// Package filter narrows movie lists with expr-lang expressions such as
//
//	Rating >= 7 and Year == 2025 and not Released
//	lower(Title) contains "dune" or HasGenre(878)
package filter

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/vadimtrunov/marquee/internal/metadata/tmdb"
)

const dateLayout = "2006-01-02"

// Env is the evaluation environment of one movie. Field and method names are
// the identifiers available in expressions.
type Env struct {
	ID          int
	Title       string
	Overview    string
	ReleaseDate string
	Year        int
	Rating      float64
	GenreIDs    []int
	HasPoster   bool
	// Released is false for movies without a parseable release date.
	Released bool
	// DaysUntil is negative for released movies and 0 without a date.
	DaysUntil int
}

// HasGenre reports whether the movie is tagged with the TMDb genre id.
func (e Env) HasGenre(id int) bool {
	return slices.Contains(e.GenreIDs, id)
}

// NewEnv builds the environment of m as seen at now.
func NewEnv(m tmdb.Movie, now time.Time) Env {
	env := Env{
		ID:          m.ID,
		Title:       m.Title,
		Overview:    m.Overview,
		ReleaseDate: m.ReleaseDate,
		Rating:      m.VoteAverage,
		GenreIDs:    m.GenreIDs,
		HasPoster:   m.PosterPath != "",
	}
	if len(m.ReleaseDate) >= 4 {
		env.Year, _ = strconv.Atoi(m.ReleaseDate[:4])
	}
	if d, err := time.Parse(dateLayout, m.ReleaseDate); err == nil {
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		env.DaysUntil = int(d.Sub(today).Hours() / 24)
		env.Released = !d.After(today)
	}
	return env
}

// Filter is a compiled expression. A nil *Filter matches everything.
type Filter struct {
	expression string
	program    *vm.Program
	now        func() time.Time
}

// Compile parses and type-checks expression against Env.
func Compile(expression string) (*Filter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, &CompilationError{Expression: expression, Reason: "empty expression"}
	}

	program, err := expr.Compile(expression, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, &CompilationError{Expression: expression, Reason: "failed to compile expression", Err: err}
	}
	return &Filter{expression: expression, program: program, now: time.Now}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expression
}

// Match evaluates the filter against m.
func (f *Filter) Match(m tmdb.Movie) (bool, error) {
	if f == nil {
		return true, nil
	}
	out, err := expr.Run(f.program, NewEnv(m, f.now()))
	if err != nil {
		return false, &EvaluationError{Expression: f.expression, MovieTitle: m.Title, Err: err}
	}
	ok, _ := out.(bool)
	return ok, nil
}

// Apply returns the movies matching the filter, in order.
func (f *Filter) Apply(movies []tmdb.Movie) ([]tmdb.Movie, error) {
	if f == nil {
		return movies, nil
	}
	out := make([]tmdb.Movie, 0, len(movies))
	for _, m := range movies {
		ok, err := f.Match(m)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// CompilationError indicates a filter expression could not be compiled.
type CompilationError struct {
	Expression string
	Reason     string
	Err        error
}

func (e *CompilationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("filter %q: %s: %v", e.Expression, e.Reason, e.Err)
	}
	return fmt.Sprintf("filter %q: %s", e.Expression, e.Reason)
}

func (e *CompilationError) Unwrap() error { return e.Err }

// EvaluationError indicates a filter failed on a specific movie.
type EvaluationError struct {
	Expression string
	MovieTitle string
	Err        error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("filter %q on %q: %v", e.Expression, e.MovieTitle, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }
