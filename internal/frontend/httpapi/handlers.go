package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vadimtrunov/marquee/internal/catalog"
	"github.com/vadimtrunov/marquee/internal/config"
	"github.com/vadimtrunov/marquee/internal/filter"
	"github.com/vadimtrunov/marquee/internal/metadata/tmdb"
)

const listPosterSize = tmdb.PosterMedium

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// PageResponse is one page of upcoming movies or search results.
type PageResponse struct {
	Page       int             `json:"page"`
	TotalPages int             `json:"total_pages,omitempty"`
	Filter     string          `json:"filter,omitempty"`
	Results    []MovieResponse `json:"results"`
}

// MovieResponse is a list entry with its poster URL resolved.
type MovieResponse struct {
	tmdb.Movie
	PosterURL string `json:"poster_url,omitempty"`
}

// VideoResponse is a video with its watch link resolved.
type VideoResponse struct {
	tmdb.Video
	WatchURL string `json:"watch_url,omitempty"`
}

// DetailsResponse combines the details and videos of one movie. Videos are
// best effort: their failure is reported in VideosError, not as a status.
type DetailsResponse struct {
	Movie       *tmdb.MovieDetails `json:"movie"`
	PosterURL   string             `json:"poster_url,omitempty"`
	BackdropURL string             `json:"backdrop_url,omitempty"`
	Trailer     *VideoResponse     `json:"trailer,omitempty"`
	Videos      []VideoResponse    `json:"videos"`
	VideosError string             `json:"videos_error,omitempty"`
}

// ImagesResponse lists image URLs of one movie at one size.
type ImagesResponse struct {
	ID        int      `json:"id"`
	Size      string   `json:"size"`
	Posters   []string `json:"posters"`
	Backdrops []string `json:"backdrops"`
	Logos     []string `json:"logos"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// listQuery holds the query parameters shared by the list endpoints.
type listQuery struct {
	Page   int    `form:"page,default=1" binding:"min=1"`
	Filter string `form:"filter"`
}

type searchQuery struct {
	Q      string `form:"q" binding:"required"`
	Page   int    `form:"page,default=1" binding:"min=1"`
	Filter string `form:"filter"`
}

func (s *Server) upcoming(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "page must be a positive integer")
		return
	}
	flt, ok := compileFilter(c, q.Filter)
	if !ok {
		return
	}

	f := s.fetcher(c)
	if err := f.FetchUpcoming(c.Request.Context(), q.Page); err != nil {
		s.fetchFailed(c, f.Store().Snapshot(), err)
		return
	}
	st := f.Store().Snapshot()
	s.writePage(c, st.Page, st.TotalPages, st.Upcoming, flt)
}

func (s *Server) search(c *gin.Context) {
	var q searchQuery
	if err := c.ShouldBindQuery(&q); err != nil || strings.TrimSpace(q.Q) == "" {
		badRequest(c, "query parameter q is required and page must be a positive integer")
		return
	}
	flt, ok := compileFilter(c, q.Filter)
	if !ok {
		return
	}

	f := s.fetcher(c)
	if err := f.Search(c.Request.Context(), strings.TrimSpace(q.Q), q.Page); err != nil {
		s.fetchFailed(c, f.Store().Snapshot(), err)
		return
	}
	// Pagination in the store tracks the upcoming list only.
	s.writePage(c, q.Page, 0, f.Store().Snapshot().SearchResults, flt)
}

func (s *Server) movie(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	f := s.fetcher(c)
	detailsDone := f.Dispatch(ctx, catalog.Details(id))
	videosDone := f.Dispatch(ctx, catalog.Videos(id))
	detailsErr, videosErr := <-detailsDone, <-videosDone

	st := f.Store().Snapshot()
	if detailsErr != nil {
		s.writeError(c, detailsErr, st.Requests[catalog.CategoryDetails].Err)
		return
	}
	if st.Details == nil {
		s.writeError(c, errors.New("details missing after fetch"), catalog.MsgDetailsFailed)
		return
	}

	resp := DetailsResponse{
		Movie:       st.Details,
		PosterURL:   s.imageURL(st.Details.PosterPath, tmdb.PosterLarge),
		BackdropURL: s.imageURL(st.Details.BackdropPath, tmdb.BackdropMedium),
		Videos:      make([]VideoResponse, 0, len(st.Videos)),
	}
	if videosErr != nil {
		resp.VideosError = st.Requests[catalog.CategoryVideos].Err
	}
	for _, v := range st.Videos {
		resp.Videos = append(resp.Videos, VideoResponse{Video: v, WatchURL: v.WatchURL()})
	}
	if t, ok := tmdb.PickTrailer(st.Videos); ok {
		resp.Trailer = &VideoResponse{Video: t, WatchURL: t.WatchURL()}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) images(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	size := tmdb.Original
	if raw := c.Query("size"); raw != "" {
		parsed, valid := tmdb.ParseImageSize(raw)
		if !valid {
			badRequest(c, "unknown image size: "+raw)
			return
		}
		size = parsed
	}

	imgs, err := s.movies.GetMovieImages(c.Request.Context(), id)
	if err != nil {
		msg := tmdb.UpstreamMessage(err)
		if msg == "" {
			msg = "Failed to fetch images"
		}
		s.writeError(c, err, msg)
		return
	}
	c.JSON(http.StatusOK, ImagesResponse{
		ID:        id,
		Size:      string(size),
		Posters:   s.imageURLs(imgs.Posters, size),
		Backdrops: s.imageURLs(imgs.Backdrops, size),
		Logos:     s.imageURLs(imgs.Logos, size),
	})
}

func (s *Server) writePage(c *gin.Context, page, totalPages int, movies []tmdb.Movie, flt *filter.Filter) {
	movies, err := flt.Apply(movies)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	resp := PageResponse{
		Page:       page,
		TotalPages: totalPages,
		Filter:     flt.String(),
		Results:    make([]MovieResponse, 0, len(movies)),
	}
	for _, m := range movies {
		resp.Results = append(resp.Results, MovieResponse{
			Movie:     m,
			PosterURL: s.imageURL(m.PosterPath, listPosterSize),
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) imageURL(path string, size tmdb.ImageSize) string {
	if path == "" {
		return ""
	}
	return s.movies.ImageURL(path, size)
}

func (s *Server) imageURLs(imgs []tmdb.Image, size tmdb.ImageSize) []string {
	out := make([]string, 0, len(imgs))
	for _, img := range imgs {
		if u := s.imageURL(img.FilePath, size); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// fetchFailed answers with the message the store recorded for the failure.
func (s *Server) fetchFailed(c *gin.Context, st catalog.MovieState, err error) {
	s.writeError(c, err, st.Error)
}

func (s *Server) writeError(c *gin.Context, err error, msg string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		config.LoggerFromContext(c.Request.Context()).Warn("upstream request failed",
			slog.String("error", err.Error()),
		)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: msg,
		Code:    status,
	})
}

// statusFor maps a fetch error onto the status returned to the caller.
func statusFor(err error) int {
	var rerr *tmdb.RemoteRequestError
	switch {
	case errors.As(err, &rerr) && rerr.IsNotFound():
		return http.StatusNotFound
	case errors.As(err, &rerr) && rerr.Kind == tmdb.KindTimeout:
		return http.StatusGatewayTimeout
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Error:   http.StatusText(http.StatusBadRequest),
		Message: msg,
		Code:    http.StatusBadRequest,
	})
}

func compileFilter(c *gin.Context, raw string) (*filter.Filter, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	flt, err := filter.Compile(raw)
	if err != nil {
		badRequest(c, err.Error())
		return nil, false
	}
	return flt, true
}

func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		badRequest(c, "movie id must be a positive integer")
		return 0, false
	}
	return id, true
}
