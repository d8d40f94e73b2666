package api

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"github.com/MJE43/fortune-wheel-go/internal/lib/logger/sl"
	"github.com/MJE43/fortune-wheel-go/internal/service"
)

func (s *Server) opLog(r *http.Request, op string) *slog.Logger {
	return s.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// decode reads and validates a JSON body. An empty body is accepted when
// optional is set and leaves dst untouched. It writes the error response
// itself and reports whether the handler should continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		if !(optional && errors.Is(err, io.EOF)) {
			s.badRequest(w, r, "body", "failed to decode request body")
			return false
		}
	}
	if err := s.validate.Struct(dst); err != nil {
		field, msg := validationMessage(err)
		s.badRequest(w, r, field, msg)
		return false
	}
	return true
}

func (s *Server) wheelID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.badRequest(w, r, "id", "invalid wheel id")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) sliceIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.badRequest(w, r, "index", "slice index must be an integer")
		return 0, false
	}
	return idx, true
}

func (s *Server) handleListWheels(w http.ResponseWriter, r *http.Request) {
	wheels, err := s.wheels.ListWheels(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{"wheels": wheels})
}

func (s *Server) handleCreateWheel(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.wheels.Create"
	log := s.opLog(r, op)

	var req createWheelRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	withDefaults := req.Defaults == nil || *req.Defaults

	view, err := s.wheels.CreateWheel(r.Context(), req.Name, withDefaults)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	log.Info("wheel created", slog.String("wheel_id", view.ID.String()))
	s.writeJSON(w, r, http.StatusCreated, view)
}

func (s *Server) handleGetWheel(w http.ResponseWriter, r *http.Request) {
	id, ok := s.wheelID(w, r)
	if !ok {
		return
	}
	view, err := s.wheels.GetWheel(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, view)
}

func (s *Server) handleDeleteWheel(w http.ResponseWriter, r *http.Request) {
	id, ok := s.wheelID(w, r)
	if !ok {
		return
	}
	if err := s.wheels.DeleteWheel(r.Context(), id); err != nil {
		s.handleError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

func (s *Server) handleAddSlice(w http.ResponseWriter, r *http.Request) {
	id, ok := s.wheelID(w, r)
	if !ok {
		return
	}
	var req addSliceRequest
	if !s.decode(w, r, &req, false) {
		return
	}

	view, err := s.wheels.AddSlice(r.Context(), id, service.NewSlice{
		Label: req.Label,
		Color: req.Color,
		Rate:  req.DropRate,
	})
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, view)
}

func (s *Server) handleCommitSlices(w http.ResponseWriter, r *http.Request) {
	id, ok := s.wheelID(w, r)
	if !ok {
		return
	}
	var req commitSlicesRequest
	if !s.decode(w, r, &req, false) {
		return
	}

	view, err := s.wheels.CommitSlices(r.Context(), id, req.toSlices())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, view)
}

func (s *Server) handleUpdateSlice(w http.ResponseWriter, r *http.Request) {
	id, ok := s.wheelID(w, r)
	if !ok {
		return
	}
	idx, ok := s.sliceIndex(w, r)
	if !ok {
		return
	}
	var req updateSliceRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	if req.Label == nil && req.Color == nil && req.DropRate == nil {
		s.badRequest(w, r, "body", "nothing to update")
		return
	}

	view, err := s.wheels.UpdateSlice(r.Context(), id, idx, service.SliceUpdate{
		Label:    req.Label,
		Color:    req.Color,
		DropRate: req.DropRate,
	})
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, view)
}

func (s *Server) handleDeleteSlice(w http.ResponseWriter, r *http.Request) {
	id, ok := s.wheelID(w, r)
	if !ok {
		return
	}
	idx, ok := s.sliceIndex(w, r)
	if !ok {
		return
	}

	view, err := s.wheels.DeleteSlice(r.Context(), id, idx)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, view)
}

func (s *Server) handleEqualize(w http.ResponseWriter, r *http.Request) {
	id, ok := s.wheelID(w, r)
	if !ok {
		return
	}
	view, err := s.wheels.Equalize(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, view)
}

func (s *Server) handleSpin(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.wheels.Spin"
	log := s.opLog(r, op)

	id, ok := s.wheelID(w, r)
	if !ok {
		return
	}
	var req spinRequest
	if !s.decode(w, r, &req, true) {
		return
	}
	if math.IsInf(req.CurrentAngle, 0) || math.IsNaN(req.CurrentAngle) {
		s.badRequest(w, r, "current_angle", "current_angle must be finite")
		return
	}

	res, err := s.wheels.Spin(r.Context(), id, req.CurrentAngle)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	log.Debug("spin served", slog.Int("index", res.Index), slog.Int64("spin_id", res.SpinID))
	s.writeJSON(w, r, http.StatusOK, spinResponse{
		SpinID:        res.SpinID,
		Index:         res.Index,
		Slice:         res.Slice,
		TargetAngle:   res.Rotation.TargetAngle,
		TotalRotation: res.Rotation.TotalRotation,
		DurationMS:    res.DurationMS,
		Message:       res.Message,
		TotalSpins:    res.TotalSpins,
	})
}

func (s *Server) handleResetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.wheelID(w, r)
	if !ok {
		return
	}
	view, err := s.wheels.ResetHistory(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, view)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	id, ok := s.wheelID(w, r)
	if !ok {
		return
	}
	stats, err := s.wheels.Stats(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, stats)
}

func (s *Server) handleListSpins(w http.ResponseWriter, r *http.Request) {
	id, ok := s.wheelID(w, r)
	if !ok {
		return
	}

	page, perPage := 1, 50
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.badRequest(w, r, "page", "page must be a positive integer")
			return
		}
		page = n
	}
	if v := q.Get("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.badRequest(w, r, "per_page", "per_page must be a positive integer")
			return
		}
		perPage = n
	}

	res, err := s.wheels.ListSpins(r.Context(), id, page, perPage)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.wheels.ExportCSV"

	id, ok := s.wheelID(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=wheel-%s-spins.csv", id))

	err := s.wheels.ExportCSV(r.Context(), id, w)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrWheelNotFound):
		// The wheel is checked before anything is written.
		w.Header().Del("Content-Disposition")
		s.handleError(w, r, err)
	default:
		s.opLog(r, op).Error("export failed", sl.Err(err))
	}
}
