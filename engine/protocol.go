// Package engine is the boundary with the rendering engine. Engine runs
// behind a Worker which answers Requests with Responses correlated by id,
// Client issues requests over any Transport and waits for the answers.
package engine

import (
	"encoding/json"
	"errors"
)

// Request kinds understood by the worker.
const (
	RenderData     = "renderData"
	GetElementAttr = "getElementAttr"
	Edit           = "edit"
	GetMEI         = "getMEI"
	EditInfo       = "editInfo"
	RenderToSVG    = "renderToSVG"
)

var (
	// ErrEngine wraps error messages reported by the engine.
	ErrEngine = errors.New("engine error")
	// ErrClosed is returned for requests issued after transport is closed.
	ErrClosed = errors.New("engine connection closed")
	// ErrAlreadyReady is returned when worker is made ready twice.
	ErrAlreadyReady = errors.New("engine worker is already ready")
	// ErrUnsupported is returned by toolkits for operations they can not
	// perform.
	ErrUnsupported = errors.New("operation is not supported by toolkit")
)

// Request is a single message sent to engine worker.
type Request struct {
	ID           string          `json:"id"`
	Action       string          `json:"action"`
	MEI          string          `json:"mei,omitempty"`
	ElementID    string          `json:"elementId,omitempty"`
	EditorAction json.RawMessage `json:"editorAction,omitempty"`
	PageNo       int             `json:"pageNo,omitempty"`
}

// Response answers request with the same id. When engine failed only Error
// is set.
type Response struct {
	ID         string            `json:"id"`
	SVG        string            `json:"svg,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Result     *bool             `json:"result,omitempty"`
	MEI        string            `json:"mei,omitempty"`
	Info       json.RawMessage   `json:"info,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// Toolkit is the rendering engine itself. Implementations are not expected
// to be safe for concurrent use, worker serializes all calls.
type Toolkit interface {
	RenderData(mei string) (string, error)
	GetElementAttr(id string) (map[string]string, error)
	Edit(editorAction json.RawMessage) (bool, error)
	GetMEI() (string, error)
	EditInfo() (json.RawMessage, error)
	RenderToSVG(pageNo int) (string, error)
}

// Info is the structure reported by toolkits in response to editInfo.
type Info struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	UUID    string `json:"uuid,omitempty"`
}
