package blueprints

import (
	"blueprints-server/core"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type (
	// Response is the envelope of every body this API writes.
	Response struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    any    `json:"data"`
	}

	PointRequest struct {
		X *int `json:"x"`
		Y *int `json:"y"`
	}

	NewBlueprintRequest struct {
		Author string         `json:"author"`
		Name   string         `json:"name"`
		Points []PointRequest `json:"points"`
	}

	Service interface {
		AddNewBlueprint(ctx context.Context, bp core.Blueprint) error
		GetAllBlueprints(ctx context.Context) ([]core.Blueprint, error)
		GetBlueprintsByAuthor(ctx context.Context, author string) ([]core.Blueprint, error)
		GetBlueprint(ctx context.Context, author, name string) (core.Blueprint, error)
		AddPoint(ctx context.Context, author, name string, x, y int) error
	}

	// Notifier hears about every blueprint that gained a point.
	Notifier interface {
		BlueprintUpdated(bp core.Blueprint)
	}
)

func (p *PointRequest) Bind(r *http.Request) error {
	if p.X == nil || p.Y == nil {
		return errors.New("point requires both x and y")
	}
	return nil
}

func (p PointRequest) point() core.Point {
	return core.Point{X: *p.X, Y: *p.Y}
}

func (b *NewBlueprintRequest) Bind(r *http.Request) error {
	if strings.TrimSpace(b.Author) == "" {
		return errors.New("author must not be blank")
	}
	if strings.TrimSpace(b.Name) == "" {
		return errors.New("name must not be blank")
	}
	for i := range b.Points {
		if err := b.Points[i].Bind(r); err != nil {
			return fmt.Errorf("points[%d]: %w", i, err)
		}
	}
	return nil
}

func (b *NewBlueprintRequest) blueprint() core.Blueprint {
	points := make([]core.Point, len(b.Points))
	for i, p := range b.Points {
		points[i] = p.point()
	}
	return core.Blueprint{Author: b.Author, Name: b.Name, Points: points}
}

// HandleList lists every stored blueprint, unfiltered.
func HandleList(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bps, err := svc.GetAllBlueprints(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		if bps == nil {
			bps = []core.Blueprint{}
		}
		respond(w, r, http.StatusOK, "ok", bps)
	}
}

// HandleListByAuthor lists the blueprints of one author, unfiltered.
func HandleListByAuthor(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		author, err := urlParam(r, "author")
		if err != nil {
			respond(w, r, http.StatusBadRequest, err.Error(), nil)
			return
		}
		bps, err := svc.GetBlueprintsByAuthor(r.Context(), author)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respond(w, r, http.StatusOK, "ok", bps)
	}
}

// HandleGet returns one blueprint after the configured filter ran on it.
func HandleGet(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		author, name, err := keyParams(r)
		if err != nil {
			respond(w, r, http.StatusBadRequest, err.Error(), nil)
			return
		}
		bp, err := svc.GetBlueprint(r.Context(), author, name)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respond(w, r, http.StatusOK, "ok", bp)
	}
}

func HandleCreate(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req NewBlueprintRequest
		if err := bind(r, &req); err != nil {
			logrus.WithError(err).Debug("Invalid blueprint request")
			respond(w, r, http.StatusBadRequest, err.Error(), nil)
			return
		}

		bp := req.blueprint()
		if err := svc.AddNewBlueprint(r.Context(), bp); err != nil {
			writeError(w, r, err)
			return
		}

		logrus.WithFields(logrus.Fields{
			"author": bp.Author,
			"name":   bp.Name,
		}).Info("Blueprint created")
		respond(w, r, http.StatusCreated, "created", bp)
	}
}

// HandleAddPoint appends the point, then answers with the blueprint as a
// single read would return it. notifier may be nil.
func HandleAddPoint(svc Service, notifier Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		author, name, err := keyParams(r)
		if err != nil {
			respond(w, r, http.StatusBadRequest, err.Error(), nil)
			return
		}

		var req PointRequest
		if err := bind(r, &req); err != nil {
			logrus.WithError(err).Debug("Invalid point request")
			respond(w, r, http.StatusBadRequest, err.Error(), nil)
			return
		}

		p := req.point()
		if err := svc.AddPoint(r.Context(), author, name, p.X, p.Y); err != nil {
			writeError(w, r, err)
			return
		}

		updated, err := svc.GetBlueprint(r.Context(), author, name)
		if err != nil {
			writeError(w, r, err)
			return
		}

		if notifier != nil {
			notifier.BlueprintUpdated(updated)
		}
		respond(w, r, http.StatusAccepted, "accepted", updated)
	}
}

// urlParam returns a route parameter decoded. chi matches on the escaped
// path when the request has one, so "a%2Fb" arrives still escaped there.
func urlParam(r *http.Request, name string) (string, error) {
	value := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return value, nil
	}
	decoded, err := url.PathUnescape(value)
	if err != nil {
		return "", fmt.Errorf("invalid %s in path: %w", name, err)
	}
	return decoded, nil
}

func keyParams(r *http.Request) (author, name string, err error) {
	if author, err = urlParam(r, "author"); err != nil {
		return "", "", err
	}
	if name, err = urlParam(r, "bpname"); err != nil {
		return "", "", err
	}
	return author, name, nil
}

// bind decodes a JSON body whatever the Content-Type says, then validates.
func bind(r *http.Request, v render.Binder) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return v.Bind(r)
}

func respond(w http.ResponseWriter, r *http.Request, code int, message string, data any) {
	render.Status(r, code)
	render.JSON(w, r, Response{Code: code, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		respond(w, r, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, core.ErrDuplicate):
		respond(w, r, http.StatusConflict, err.Error(), nil)
	default:
		logrus.WithError(err).WithField("path", r.URL.Path).Error("Blueprint request failed")
		respond(w, r, http.StatusInternalServerError, "internal storage error", nil)
	}
}
