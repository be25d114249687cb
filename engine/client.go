package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"neon/action"
)

// Transport carries requests to worker and brings responses back.
type Transport interface {
	Send(ctx context.Context, req Request) error
	Responses() <-chan Response
	Close() error
}

// Client correlates responses with outstanding requests. It is safe for
// concurrent use.
type Client struct {
	log *zap.Logger
	tr  Transport

	mu      sync.Mutex
	pending map[string]chan Response
	closed  bool
	done    chan struct{}
}

// NewClient starts receiving responses from transport.
func NewClient(tr Transport, log *zap.Logger) *Client {
	c := &Client{
		log:     log.Named("engine"),
		tr:      tr,
		pending: make(map[string]chan Response),
		done:    make(chan struct{}),
	}
	go c.receive()
	return c
}

func (c *Client) receive() {
	defer close(c.done)
	for resp := range c.tr.Responses() {
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()

		if !ok {
			c.log.Warn("Response to unknown request", zap.String("id", resp.ID))
			continue
		}
		ch <- resp
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// Close closes transport and fails all outstanding requests.
func (c *Client) Close() error {
	err := c.tr.Close()
	<-c.done
	return err
}

func (c *Client) call(ctx context.Context, req Request) (Response, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Response{}, fmt.Errorf("unable to generate request id: %w", err)
	}
	req.ID = id.String()
	ch := make(chan Response, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Response{}, ErrClosed
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	forget := func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}

	c.log.Debug("Request", zap.String("id", req.ID), zap.String("action", req.Action))
	if err := c.tr.Send(ctx, req); err != nil {
		forget()
		return Response{}, fmt.Errorf("unable to send %s request: %w", req.Action, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return Response{}, ErrClosed
		}
		if resp.Error != "" {
			return resp, fmt.Errorf("%s: %w: %s", req.Action, ErrEngine, resp.Error)
		}
		return resp, nil
	case <-ctx.Done():
		forget()
		return Response{}, fmt.Errorf("%s request: %w", req.Action, ctx.Err())
	}
}

// RenderData loads MEI into engine and returns SVG of the first page.
func (c *Client) RenderData(ctx context.Context, mei string) (string, error) {
	resp, err := c.call(ctx, Request{Action: RenderData, MEI: mei})
	return resp.SVG, err
}

// GetElementAttr returns attributes of an element.
func (c *Client) GetElementAttr(ctx context.Context, id string) (map[string]string, error) {
	resp, err := c.call(ctx, Request{Action: GetElementAttr, ElementID: id})
	return resp.Attributes, err
}

// Edit applies action and reports if engine accepted it. Rejected chains
// leave engine state untouched.
func (c *Client) Edit(ctx context.Context, a action.Action) (bool, error) {
	data, err := action.Marshal(a)
	if err != nil {
		return false, err
	}
	resp, err := c.call(ctx, Request{Action: Edit, EditorAction: json.RawMessage(data)})
	if err != nil {
		return false, err
	}
	if resp.Result == nil {
		return false, errors.New("engine response to edit has no result")
	}
	return *resp.Result, nil
}

// GetMEI returns current engine document.
func (c *Client) GetMEI(ctx context.Context) (string, error) {
	resp, err := c.call(ctx, Request{Action: GetMEI})
	return resp.MEI, err
}

// EditInfo returns information about the last edit.
func (c *Client) EditInfo(ctx context.Context) (Info, error) {
	resp, err := c.call(ctx, Request{Action: EditInfo})
	if err != nil {
		return Info{}, err
	}
	var info Info
	if len(resp.Info) > 0 {
		if err := json.Unmarshal(resp.Info, &info); err != nil {
			return Info{}, fmt.Errorf("unable to decode edit info: %w", err)
		}
	}
	return info, nil
}

// RenderToSVG renders page of the current document.
func (c *Client) RenderToSVG(ctx context.Context, pageNo int) (string, error) {
	resp, err := c.call(ctx, Request{Action: RenderToSVG, PageNo: pageNo})
	return resp.SVG, err
}

// Raw sends request as is, caller is responsible for the action name. It
// is used by relays which forward presentation layer requests.
func (c *Client) Raw(ctx context.Context, req Request) (Response, error) {
	return c.call(ctx, req)
}
