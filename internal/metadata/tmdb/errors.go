package tmdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vadimtrunov/marquee/internal/httpclient"
)

// ErrorKind classifies a failed request.
type ErrorKind int

const (
	// KindNetwork means no response was received.
	KindNetwork ErrorKind = iota
	// KindUpstream means the API answered with a non-2xx status.
	KindUpstream
	// KindTimeout means the request exceeded the client timeout.
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindUpstream:
		return "upstream"
	case KindTimeout:
		return "timeout"
	}
	return "unknown"
}

// maxErrorBody caps how much of an error body is kept.
const maxErrorBody = 4 << 10

// RemoteRequestError is returned by every Client endpoint on failure.
type RemoteRequestError struct {
	Kind       ErrorKind
	Path       string
	StatusCode int    // zero unless Kind is KindUpstream
	Message    string // upstream status_message, if any
	Err        error
}

func (e *RemoteRequestError) Error() string {
	switch {
	case e.Kind == KindUpstream && e.Message != "":
		return fmt.Sprintf("tmdb API error %d on %s: %s", e.StatusCode, e.Path, e.Message)
	case e.Kind == KindUpstream:
		return fmt.Sprintf("tmdb API error %d on %s", e.StatusCode, e.Path)
	case e.Err != nil:
		return fmt.Sprintf("tmdb %s error on %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("tmdb %s error on %s", e.Kind, e.Path)
}

func (e *RemoteRequestError) Unwrap() error { return e.Err }

// IsNotFound reports whether the upstream answered 404.
func (e *RemoteRequestError) IsNotFound() bool {
	return e.Kind == KindUpstream && e.StatusCode == 404
}

// UpstreamMessage extracts the human-readable upstream message from err, if any.
func UpstreamMessage(err error) string {
	var rerr *RemoteRequestError
	if errors.As(err, &rerr) {
		return rerr.Message
	}
	return ""
}

// transportError converts an httpclient failure into a RemoteRequestError.
func transportError(path string, err error) error {
	kind := KindNetwork
	if errors.Is(err, httpclient.ErrTimeout) {
		kind = KindTimeout
	}
	return &RemoteRequestError{Kind: kind, Path: path, Err: err}
}

// upstreamError builds a RemoteRequestError from a non-2xx response body.
func upstreamError(path string, status int, body []byte) error {
	var parsed errorResponse
	msg := ""
	if err := json.Unmarshal(body, &parsed); err == nil {
		msg = parsed.StatusMessage
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		// HTML error pages are not useful to show to a user.
		if strings.HasPrefix(msg, "<") {
			msg = ""
		}
	}
	return &RemoteRequestError{Kind: KindUpstream, Path: path, StatusCode: status, Message: msg}
}
