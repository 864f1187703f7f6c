package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/okian/caretrack/internal/domain/model"
	"github.com/okian/caretrack/internal/domain/types"
)

// EventsHandler handles record submissions.
type EventsHandler struct {
	deps         Ingester
	maxBodyBytes int64
	errs         errorWriter
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps Ingester, maxBodyBytes int64, errs errorWriter) *EventsHandler {
	return &EventsHandler{deps: deps, maxBodyBytes: maxBodyBytes, errs: errs}
}

// HandlePostEvent handles POST /cases/{case}/events requests.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	var e model.CaseEvent
	if err := h.decode(w, r, &e); err != nil {
		h.errs.write(w, r, Wrap(op, err))
		return
	}
	ack, err := h.deps.IngestEvent(r.Context(), r.PathValue("case"), e)
	h.respond(w, r, op, ack, err)
}

// HandlePostScale handles POST /cases/{case}/scales requests.
func (h *EventsHandler) HandlePostScale(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_scale"
	var rec model.ScaleRecord
	if err := h.decode(w, r, &rec); err != nil {
		h.errs.write(w, r, Wrap(op, err))
		return
	}
	ack, err := h.deps.IngestScale(r.Context(), r.PathValue("case"), rec)
	h.respond(w, r, op, ack, err)
}

func (h *EventsHandler) respond(w http.ResponseWriter, r *http.Request, op string, ack types.Ack, err error) {
	if err != nil {
		h.errs.write(w, r, Wrap(op, err))
		return
	}
	if ack.Duplicate {
		writeJSON(w, http.StatusOK, ack)
		return
	}
	writeJSON(w, http.StatusAccepted, ack)
}

// decode reads one JSON object from a size-limited body.
func (h *EventsHandler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return ErrPayloadTooLarge
		}
		return WrapKind("decode", ErrBadRequest, err)
	}
	if dec.More() {
		return NewKind("decode: trailing data", ErrBadRequest)
	}
	if _, err := io.Copy(io.Discard, body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return ErrPayloadTooLarge
		}
	}
	return nil
}
