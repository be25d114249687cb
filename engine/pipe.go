package engine

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Pipe is in-process transport running worker on its own goroutine.
type Pipe struct {
	worker    *Worker
	requests  chan Request
	responses chan Response

	once   sync.Once
	quit   chan struct{}
	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

// NewPipe creates transport with a worker which is not ready yet, use
// Worker().Ready to install toolkit.
func NewPipe(log *zap.Logger) *Pipe {
	p := &Pipe{
		requests:  make(chan Request, 64),
		responses: make(chan Response, 64),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	p.worker = NewWorker(p.deliver, log)
	go p.run()
	return p
}

func (p *Pipe) run() {
	defer close(p.done)
	for {
		select {
		case req := <-p.requests:
			p.worker.Handle(req)
		case <-p.quit:
			return
		}
	}
}

// deliver may be called from the pipe goroutine or from whoever makes
// worker ready.
func (p *Pipe) deliver(resp Response) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.responses <- resp:
	case <-p.quit:
	}
}

// Worker returns worker on the other end of the pipe.
func (p *Pipe) Worker() *Worker {
	return p.worker
}

// Send implements Transport.
func (p *Pipe) Send(ctx context.Context, req Request) error {
	select {
	case p.requests <- req:
		return nil
	case <-p.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Responses implements Transport.
func (p *Pipe) Responses() <-chan Response {
	return p.responses
}

// Close implements Transport.
func (p *Pipe) Close() error {
	p.once.Do(func() {
		close(p.quit)
		<-p.done
		p.mu.Lock()
		p.closed = true
		close(p.responses)
		p.mu.Unlock()
	})
	return nil
}
