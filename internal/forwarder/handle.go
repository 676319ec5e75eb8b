package forwarder

import (
	"errors"
	"sync"
)

var (
	ErrKilled        = errors.New("forwarder killed")
	errProcessExited = errors.New("forwarder process exited")
)

// Handle is a running forward. Done is closed once, when the process
// exits or the handle is killed, whichever happens first.
type Handle struct {
	kill func()

	killOnce sync.Once
	exitOnce sync.Once
	done     chan struct{}

	lock sync.Mutex
	err  error
}

func NewHandle(kill func()) *Handle {
	return &Handle{
		kill: kill,
		done: make(chan struct{}),
	}
}

func (h *Handle) Kill() {
	h.killOnce.Do(func() {
		if h.kill != nil {
			h.kill()
		}
		h.exit(ErrKilled)
	})
}

func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the reason the forward ended, nil while it runs
func (h *Handle) Err() error {
	h.lock.Lock()
	defer h.lock.Unlock()

	return h.err
}

func (h *Handle) exit(err error) {
	h.exitOnce.Do(func() {
		h.lock.Lock()
		h.err = err
		h.lock.Unlock()
		close(h.done)
	})
}

// Exited marks the forward as terminated by its producer
func (h *Handle) Exited(err error) {
	if err == nil {
		err = errProcessExited
	}
	h.exit(err)
}
