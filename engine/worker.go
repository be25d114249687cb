package engine

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Worker owns the toolkit and answers requests one at a time in arrival
// order. Requests received before toolkit is ready are kept and replayed
// once it is.
type Worker struct {
	log   *zap.Logger
	reply func(Response)

	mu      sync.Mutex
	toolkit Toolkit
	backlog []Request
}

// NewWorker creates worker which is not ready yet. Every response is passed
// to reply.
func NewWorker(reply func(Response), log *zap.Logger) *Worker {
	return &Worker{
		log:   log.Named("worker"),
		reply: reply,
	}
}

// Ready installs toolkit and drains requests received so far.
func (w *Worker) Ready(tk Toolkit) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.toolkit != nil {
		return ErrAlreadyReady
	}
	w.toolkit = tk
	w.log.Debug("Toolkit ready", zap.Int("backlog", len(w.backlog)))

	backlog := w.backlog
	w.backlog = nil
	for _, req := range backlog {
		w.reply(w.process(req))
	}
	return nil
}

// IsReady reports if toolkit is installed.
func (w *Worker) IsReady() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.toolkit != nil
}

// Handle processes request or puts it into backlog.
func (w *Worker) Handle(req Request) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.toolkit == nil {
		w.backlog = append(w.backlog, req)
		return
	}
	w.reply(w.process(req))
}

func (w *Worker) process(req Request) (resp Response) {
	resp = Response{ID: req.ID}

	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Toolkit panicked", zap.String("id", req.ID), zap.String("action", req.Action), zap.Any("panic", r))
			resp = Response{ID: req.ID, Error: fmt.Sprintf("%v", r)}
		}
	}()

	var err error
	switch req.Action {
	case RenderData:
		resp.SVG, err = w.toolkit.RenderData(req.MEI)
	case GetElementAttr:
		resp.Attributes, err = w.toolkit.GetElementAttr(req.ElementID)
	case Edit:
		var ok bool
		if ok, err = w.toolkit.Edit(req.EditorAction); err == nil {
			resp.Result = &ok
		}
	case GetMEI:
		resp.MEI, err = w.toolkit.GetMEI()
	case EditInfo:
		resp.Info, err = w.toolkit.EditInfo()
	case RenderToSVG:
		resp.SVG, err = w.toolkit.RenderToSVG(req.PageNo)
	default:
		err = fmt.Errorf("Unknown action: %s", req.Action)
	}
	if err != nil {
		w.log.Debug("Request failed", zap.String("id", req.ID), zap.String("action", req.Action), zap.Error(err))
		return Response{ID: req.ID, Error: err.Error()}
	}
	return resp
}
