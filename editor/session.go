// Package editor dispatches composed edits to the engine and handles the
// results: re-render, contour advisory and user notifications.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"neon/action"
	"neon/config"
	"neon/journal"
	"neon/linkage"
	"neon/mei"
	"neon/selection"
)

// DefaultFailure is shown when action dispatched directly was rejected.
const DefaultFailure = "Action failed"

// TimeoutFailure is shown when engine did not answer within dispatch timeout.
// Engine may still apply the action later.
const TimeoutFailure = "Action timed out, document state is unknown"

// renderPage is the only page engine documents have.
const renderPage = 1

// ErrClosed is returned by closed session.
var ErrClosed = errors.New("editor session is closed")

// Engine is the part of engine client session uses.
type Engine interface {
	Edit(ctx context.Context, a action.Action) (bool, error)
	GetMEI(ctx context.Context) (string, error)
	RenderToSVG(ctx context.Context, pageNo int) (string, error)
}

// Recorder keeps record of dispatched edits.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) (int64, error)
}

// Session is editing context of one page. Dispatches are serialized, next
// one starts when previous finished with all its follow up requests.
type Session struct {
	log    *zap.Logger
	cfg    *config.EditorConfig
	eng    Engine
	view   View
	notify Notifier
	rec    Recorder

	mu     sync.Mutex
	closed bool
}

// Option customizes session.
type Option func(*Session)

// WithRecorder makes session journal every dispatched edit.
func WithRecorder(r Recorder) Option {
	return func(s *Session) {
		s.rec = r
	}
}

// New creates session.
func New(eng Engine, view View, notifier Notifier, cfg *config.EditorConfig, log *zap.Logger, opts ...Option) *Session {
	s := &Session{
		log:    log.Named("editor"),
		cfg:    cfg,
		eng:    eng,
		view:   view,
		notify: notifier,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Close makes session refuse further work. It waits for dispatch in
// progress.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Dispatch sends action to the engine and handles result. It reports if
// engine accepted the action. Options menu is closed whatever happens.
func (s *Session) Dispatch(ctx context.Context, a action.Action, pageURI string) (bool, error) {
	defer s.view.CloseMenu()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatch(ctx, action.Plan{Action: a, Failure: DefaultFailure}, "", pageURI)
}

// Perform composes intent against fresh document snapshot and dispatches
// the result. Refused intents are reported as warnings and nothing is sent
// to the engine.
func (s *Session) Perform(ctx context.Context, sel selection.Selection, intent action.Intent, arg, pageURI string) (bool, error) {
	defer s.view.CloseMenu()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}

	doc, err := s.snapshot(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.notify.Notify(LevelError, TimeoutFailure)
		}
		return false, err
	}
	in := action.Input{Doc: doc, Mode: sel.Mode, Arg: arg}
	if !intent.PageWide() {
		if in.Elements, err = sel.Resolve(doc); err != nil {
			return false, fmt.Errorf("unable to resolve selection: %w", err)
		}
	}

	plan, err := action.Compose(intent, in)
	var refusal *action.Refusal
	switch {
	case errors.As(err, &refusal):
		s.log.Debug("Intent refused", zap.Stringer("intent", intent), zap.Stringer("mode", sel.Mode), zap.String("reason", refusal.Message))
		if refusal.Message != "" {
			s.notify.Notify(LevelWarning, refusal.Message)
		}
		return false, nil
	case errors.Is(err, linkage.ErrNoToggleEndpoints):
		s.log.Debug("Nothing to toggle", zap.Strings("ids", sel.IDs))
		return false, nil
	case err != nil:
		return false, err
	}
	return s.dispatch(ctx, plan, intent.String(), pageURI)
}

func (s *Session) snapshot(ctx context.Context) (*mei.Document, error) {
	if s.cfg.DispatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.DispatchTimeout)
		defer cancel()
	}
	text, err := s.eng.GetMEI(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to get document from engine: %w", err)
	}
	doc, err := mei.ParseString(text, s.log)
	if err != nil {
		return nil, fmt.Errorf("unable to parse engine document: %w", err)
	}
	return doc, nil
}

// dispatch must be called with session lock held.
func (s *Session) dispatch(ctx context.Context, plan action.Plan, intent, pageURI string) (bool, error) {
	if s.closed {
		return false, ErrClosed
	}
	if s.cfg.DispatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.DispatchTimeout)
		defer cancel()
	}

	ok, err := s.eng.Edit(ctx, plan.Action)
	s.record(ctx, plan, intent, pageURI, ok, err)

	failure := plan.Failure
	if failure == "" {
		failure = DefaultFailure
	}
	if errors.Is(err, context.DeadlineExceeded) {
		failure = TimeoutFailure
	}
	if err != nil {
		s.log.Warn("Edit failed", zap.String("page", pageURI), zap.Stringer("action", plan.Action.Kind()), zap.Error(err))
		s.notify.Notify(LevelError, failure)
		return false, fmt.Errorf("unable to dispatch %s: %w", plan.Action.Kind(), err)
	}
	if !ok {
		s.log.Info("Edit rejected by engine", zap.String("page", pageURI), zap.Stringer("action", plan.Action.Kind()))
		s.notify.Notify(LevelError, failure)
		return false, nil
	}

	if plan.Success != "" && s.cfg.NotifySuccess {
		s.notify.Notify(LevelInfo, plan.Success)
	}
	s.rerender(ctx, pageURI)
	if plan.ContourNC != "" && s.cfg.ContourCheck {
		s.checkContour(ctx, plan.ContourNC)
	}
	return true, nil
}

func (s *Session) rerender(ctx context.Context, pageURI string) {
	svg, err := s.eng.RenderToSVG(ctx, renderPage)
	if err != nil {
		// edit is already applied, page will be stale until next render
		s.log.Warn("Unable to render page", zap.String("page", pageURI), zap.Error(err))
		return
	}
	s.view.Render(pageURI, svg)
}

// checkContour warns when neume holding nc does not match any known
// contour. Edit is not rolled back.
func (s *Session) checkContour(ctx context.Context, ncID string) {
	doc, err := s.snapshot(ctx)
	if err != nil {
		s.log.Warn("Unable to check contour", zap.Error(err))
		return
	}
	neume := doc.ByID(ncID).Closest(mei.KindNeume)
	if neume == nil {
		s.log.Debug("Grouped component is gone", zap.String("id", ncID))
		return
	}
	name, ok := action.NeumeName(neume.ChildrenOf(mei.KindNC))
	if !ok {
		s.notify.Notify(LevelWarning, action.UnrecognizedContourWarning)
		return
	}
	s.log.Debug("Grouped neume", zap.String("id", neume.ID), zap.String("contour", name))
}

func (s *Session) record(ctx context.Context, plan action.Plan, intent, pageURI string, ok bool, err error) {
	if s.rec == nil {
		return
	}
	e := journal.Entry{
		Page:    pageURI,
		Intent:  intent,
		Action:  action.String(plan.Action),
		Result:  ok && err == nil,
		Message: plan.Success,
	}
	if err != nil {
		e.Message = err.Error()
	} else if !ok {
		e.Message = plan.Failure
	}
	// journal failure must not affect the edit
	if _, err := s.rec.Record(context.WithoutCancel(ctx), e); err != nil {
		s.log.Warn("Unable to journal edit", zap.Error(err))
	}
}
