package listing

// Watcher receives state snapshots after every change. Only the latest
// snapshot is buffered; a slow reader skips intermediate states.
type Watcher[T any] struct {
	ch     chan State[T]
	c      *Controller[T]
	closed bool
}

// Watch subscribes to state changes. The current state is delivered first.
// Watching a closed controller returns an already closed watcher.
func (c *Controller[T]) Watch() *Watcher[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := &Watcher[T]{ch: make(chan State[T], 1), c: c}
	if c.closed {
		w.closeLocked()
		return w
	}
	c.watchers[w] = struct{}{}
	w.ch <- c.state.clone()
	return w
}

// C returns the snapshot channel. It is closed by Close or by the
// controller's Close.
func (w *Watcher[T]) C() <-chan State[T] {
	return w.ch
}

// Close unsubscribes. It is safe to call more than once.
func (w *Watcher[T]) Close() {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	if w.c.watchers != nil {
		delete(w.c.watchers, w)
	}
	w.closeLocked()
}

func (w *Watcher[T]) closeLocked() {
	if w.closed {
		return
	}
	w.closed = true
	close(w.ch)
}

// notifyLocked pushes the current state to every watcher, replacing any
// snapshot the reader has not consumed yet. c.mu must be held.
func (c *Controller[T]) notifyLocked() {
	if len(c.watchers) == 0 {
		return
	}
	for w := range c.watchers {
		select {
		case <-w.ch:
		default:
		}
		w.ch <- c.state.clone()
	}
}
