package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"neon/action"
	"neon/editor"
	"neon/linkage"
	"neon/mei"
	"neon/selection"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respond(w, status, errorResponse{Error: message})
}

// status maps error to HTTP status: bad input is client fault, missing
// engine is temporary.
func status(err error) int {
	switch {
	case errors.Is(err, selection.ErrUnsupportedMode),
		errors.Is(err, action.ErrUnknownAction),
		errors.Is(err, action.ErrUnknownIntent),
		errors.Is(err, mei.ErrUnknownElement),
		errors.Is(err, mei.ErrNotMEI):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoEngine):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return false
	}
	return true
}

type renderRequest struct {
	MEI string `json:"mei"`
}

type renderResponse struct {
	SVG string `json:"svg"`
}

// handleRender loads page into engine.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if !decode(w, r, &req) {
		return
	}
	eng, err := s.engine(r.Context())
	if err != nil {
		respondError(w, status(err), err.Error())
		return
	}

	s.edit.Lock()
	defer s.edit.Unlock()
	svg, err := eng.RenderData(r.Context(), req.MEI)
	if err != nil {
		respondError(w, status(err), err.Error())
		return
	}
	respond(w, http.StatusOK, renderResponse{SVG: svg})
}

type editRequest struct {
	Page string `json:"page"`
	// Action is dispatched as is when present, otherwise intent is composed
	// against selection.
	Action json.RawMessage `json:"action,omitempty"`
	Mode   selection.Mode  `json:"mode"`
	IDs    []string        `json:"ids"`
	Intent action.Intent   `json:"intent"`
	Arg    string          `json:"arg,omitempty"`
}

type editResponse struct {
	Result        bool                 `json:"result"`
	SVG           string               `json:"svg,omitempty"`
	Notifications editor.Notifications `json:"notifications"`
	Error         string               `json:"error,omitempty"`
}

// pageView keeps what session rendered for the response.
type pageView struct {
	mu         sync.Mutex
	svg        string
	menuClosed bool
}

func (v *pageView) Render(_, svg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.svg = svg
}

func (v *pageView) CloseMenu() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.menuClosed = true
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if !decode(w, r, &req) {
		return
	}
	var direct action.Action
	if len(req.Action) > 0 {
		a, err := action.Unmarshal(req.Action)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		direct = a
	}
	eng, err := s.engine(r.Context())
	if err != nil {
		respondError(w, status(err), err.Error())
		return
	}

	s.edit.Lock()
	defer s.edit.Unlock()

	view := &pageView{}
	notes := editor.Notifications{}
	var opts []editor.Option
	if s.journal != nil {
		opts = append(opts, editor.WithRecorder(s.journal))
	}
	sess := editor.New(eng, view, &notes, &s.cfg.Editor, s.log, opts...)
	defer sess.Close()

	var ok bool
	if direct != nil {
		ok, err = sess.Dispatch(r.Context(), direct, req.Page)
	} else {
		ok, err = sess.Perform(r.Context(), selection.Selection{Mode: req.Mode, IDs: req.IDs}, req.Intent, req.Arg, req.Page)
	}

	if s.rpt != nil {
		if data, merr := json.Marshal(req); merr == nil {
			s.rpt.StoreData(slug.Make(req.Page)+"-edit.json", data)
		}
	}

	resp := editResponse{Result: ok, SVG: view.svg, Notifications: notes}
	if err != nil {
		s.log.Debug("Edit failed", zap.String("page", req.Page), zap.Error(err))
		resp.Error = err.Error()
		respond(w, status(err), resp)
		return
	}
	respond(w, http.StatusOK, resp)
}

type classifyRequest struct {
	Mode selection.Mode `json:"mode"`
	IDs  []string       `json:"ids"`
}

type classifyResponse struct {
	Type      selection.Type `json:"type"`
	Groupable bool           `json:"groupable"`
	Linkable  bool           `json:"linkable"`
	Warning   string         `json:"warning,omitempty"`
}

// handleClassify tells presentation layer which options menu to show.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if !decode(w, r, &req) {
		return
	}
	eng, err := s.engine(r.Context())
	if err != nil {
		respondError(w, status(err), err.Error())
		return
	}
	text, err := eng.GetMEI(r.Context())
	if err != nil {
		respondError(w, status(err), err.Error())
		return
	}
	doc, err := mei.ParseString(text, s.log)
	if err != nil {
		respondError(w, status(err), err.Error())
		return
	}
	sel := selection.Selection{Mode: req.Mode, IDs: req.IDs}
	els, err := sel.Resolve(doc)
	if err != nil {
		respondError(w, status(err), err.Error())
		return
	}

	adj := selection.DocumentAdjacency{Doc: doc}
	typ, err := selection.Classify(req.Mode, els, adj, linkage.Linkable(doc))
	if err != nil {
		respondError(w, status(err), err.Error())
		return
	}
	linkable, diag := linkage.IsLinkable(req.Mode, doc, els)
	respond(w, http.StatusOK, classifyResponse{
		Type:      typ,
		Groupable: selection.IsGroupable(req.Mode, els, adj),
		Linkable:  linkable,
		Warning:   string(diag),
	})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		respondError(w, http.StatusNotFound, "journal is not enabled")
		return
	}
	entries, err := s.journal.Entries(r.Context(), r.URL.Query().Get("page"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respond(w, http.StatusOK, entries)
}
