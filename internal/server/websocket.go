package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/services"
	"github.com/desertthunder/tunebox/internal/shared"
	"github.com/desertthunder/tunebox/internal/streams"
	"github.com/gorilla/websocket"
)

// listingRequest is a client message on the listing socket. Each one replaces the listing the
// socket is following.
type listingRequest struct {
	Media   string `json:"media"` // activity, albums, artists, genres or playlists
	Sort    string `json:"sort,omitempty"`
	Reverse *bool  `json:"reverse,omitempty"`
}

// listingFrame is one status of the followed listing.
type listingFrame struct {
	Media string `json:"media"`
	State string `json:"state"`
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

func errorFrame(media string, err error) <-chan listingFrame {
	return streams.Just(listingFrame{Media: media, State: models.StateError.String(), Error: err.Error()})
}

func frames[T any](ctx context.Context, media string, ch services.Stream[T]) <-chan listingFrame {
	return streams.Map(ctx, ch, func(s models.RequestStatus[T]) listingFrame {
		f := listingFrame{Media: media, State: s.State.String()}
		if s.IsSuccess() {
			f.Value = s.Value
		}
		if s.Err != nil {
			f.Error = s.Err.Error()
		}
		return f
	})
}

// listingStream follows one listing until ctx is cancelled.
func listingStream[T any](ctx context.Context, req listingRequest, t models.MediaType, list func(context.Context, *models.SortingRule) services.Stream[T]) <-chan listingFrame {
	rule, err := parseRule(t, req.Sort, req.Reverse)
	if err != nil {
		return errorFrame(req.Media, err)
	}
	return frames(ctx, req.Media, list(ctx, rule))
}

func (a *API) listingFrames(ctx context.Context, req listingRequest) <-chan listingFrame {
	switch req.Media {
	case "activity":
		return frames(ctx, req.Media, a.registry.Activity(ctx))
	case "albums":
		return listingStream(ctx, req, models.MediaTypeAlbum, a.registry.Albums)
	case "artists":
		return listingStream(ctx, req, models.MediaTypeArtist, a.registry.Artists)
	case "genres":
		return listingStream(ctx, req, models.MediaTypeGenre, a.registry.Genres)
	case "playlists":
		return listingStream(ctx, req, models.MediaTypePlaylist, a.registry.Playlists)
	default:
		return errorFrame(req.Media, fmt.Errorf("%w: unknown listing %q", shared.ErrInvalidArgument, req.Media))
	}
}

// listingSocket streams a listing over a websocket. The listing keeps following the active
// provider and backend changes; a new client message switches to the listing it names.
func (a *API) listingSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	requests := make(chan listingRequest)
	go func() {
		defer cancel()
		defer close(requests)
		for {
			var req listingRequest
			if err := conn.ReadJSON(&req); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					a.logger.Debug("listing socket closed", "error", err)
				}
				return
			}
			if !streams.Send(ctx, requests, req) {
				return
			}
		}
	}()

	for frame := range streams.SwitchMap(ctx, requests, a.listingFrames) {
		if err := conn.WriteJSON(frame); err != nil {
			a.logger.Debug("listing socket write failed", "error", err)
			return
		}
	}
}
