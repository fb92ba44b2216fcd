package ingest

import (
	"errors"
	"sync"

	"github.com/Rla102277/FUji-ai-lab/pkg/fimage"
)

var ErrWorkerClosed = errors.New("raw worker is closed")

type Result struct {
	Image *fimage.LinearImage
	Err   error
}

type job struct {
	src []byte
	out chan<- Result
}

// A Worker runs native decodes, one at a time, off the caller's
// goroutine.
type Worker struct {
	decoder RawDecoder
	jobs    chan job

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func NewWorker(d RawDecoder) *Worker {
	if d == nil {
		d = Unavailable{}
	}
	w := &Worker{
		decoder: d,
		jobs:    make(chan job, 4),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *Worker) run() {
	defer close(w.done)
	for j := range w.jobs {
		j.out <- w.decode(j.src)
		close(j.out)
	}
}

func (w *Worker) decode(src []byte) Result {
	r, err := w.decoder.Decode(src)
	if err != nil {
		return Result{Err: err}
	}
	img, err := FromRaster(r)
	if err != nil {
		return Result{Err: &EngineUnavailableError{"raster", err}}
	}
	return Result{Image: img}
}

// Submit hands src over to the worker. This is a move: the worker owns
// the slice from now on, and the caller must not read or write it
// again. The result arrives on the returned channel, exactly once.
// There is no way to cancel a decode; if the result isn't wanted any
// more, just don't read it.
func (w *Worker) Submit(src []byte) <-chan Result {
	out := make(chan Result, 1)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		out <- Result{Err: ErrWorkerClosed}
		close(out)
		return out
	}

	w.jobs <- job{src: src, out: out}
	return out
}

// Close stops accepting work, and waits for queued decodes to finish.
func (w *Worker) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()
	<-w.done
}
