package workers

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	ErrTerminated = errors.New("terminated")
	ErrBusy       = errors.New("queue is full")
)

// Workers is a fixed pool of goroutines executing queued tasks.
type Workers struct {
	quit     chan struct{}
	quitOnce sync.Once
	wg       sync.WaitGroup
	tasks    chan func()

	running int32
}

// New creates a pool which queues up to maxTasks tasks.
func New(maxTasks int) *Workers {
	return &Workers{
		tasks: make(chan func(), maxTasks),
		quit:  make(chan struct{}),
	}
}

// Start spawns the workers.
func (w *Workers) Start(workersN int) {
	for i := 0; i < workersN; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.worker()
		}()
	}
}

// Stop drops queued tasks and waits until the running ones are finished.
func (w *Workers) Stop() {
	w.quitOnce.Do(func() {
		close(w.quit)
	})
	w.Drain()
	w.wg.Wait()
}

// TryEnqueue queues the task only if there's room for it.
func (w *Workers) TryEnqueue(fn func()) error {
	select {
	case <-w.quit:
		return ErrTerminated
	default:
	}
	select {
	case w.tasks <- fn:
		return nil
	default:
		return ErrBusy
	}
}

// Drain drops all the queued tasks.
func (w *Workers) Drain() {
	for {
		select {
		case <-w.tasks:
			continue
		default:
			return
		}
	}
}

// TasksCount returns the number of queued tasks.
func (w *Workers) TasksCount() int {
	return len(w.tasks)
}

// Running returns the number of tasks being executed.
func (w *Workers) Running() int {
	return int(atomic.LoadInt32(&w.running))
}

func (w *Workers) worker() {
	for {
		select {
		case <-w.quit:
			return
		case job := <-w.tasks:
			atomic.AddInt32(&w.running, 1)
			job()
			atomic.AddInt32(&w.running, -1)
		}
	}
}
