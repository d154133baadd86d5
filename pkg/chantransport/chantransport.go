// In-process invocation transport backed by Go channels. The local serve
// mode and the test suites use it; production deployments plug a real RPC
// transport into blobmux.Transport instead.
package chantransport

import (
	"sync"

	"github.com/google/uuid"

	"github.com/blobmux/blobmux/pkg/blobmux"
)

const queueDepth = 64

// stream is the per-kind state. queue outlives subscriptions, so
// invocations sent while no subscriber is attached (or between a
// termination and the next Subscribe) are held, not dropped. pending is
// the one arrival a pump may have had in hand when it was stopped.
type stream struct {
	queue   chan blobmux.Arrival
	mu      sync.Mutex
	pending *blobmux.Arrival
	stop    chan struct{}
	done    chan struct{}
}

func newStream() *stream {
	done := make(chan struct{})
	close(done)
	return &stream{
		queue: make(chan blobmux.Arrival, queueDepth),
		done:  done,
	}
}

// Transport multiplexes invocations onto one stream per operation kind.
type Transport struct {
	mu      sync.Mutex
	streams map[blobmux.OpKind]*stream
}

var _ blobmux.Transport = (*Transport)(nil)

func New() *Transport {
	return &Transport{streams: make(map[blobmux.OpKind]*stream)}
}

func (t *Transport) stream(kind blobmux.OpKind) *stream {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.streams[kind]
	if !ok {
		s = newStream()
		t.streams[kind] = s
	}
	return s
}

// Subscribe returns a fresh arrival channel for kind, terminating any
// previous subscription for that kind. Arrivals queued while nothing was
// subscribed are delivered on the new channel.
func (t *Transport) Subscribe(kind blobmux.OpKind) (<-chan blobmux.Arrival, error) {
	s := t.stream(kind)
	s.halt()

	out := make(chan blobmux.Arrival)
	stop := make(chan struct{})
	done := make(chan struct{})
	s.mu.Lock()
	s.stop, s.done = stop, done
	s.mu.Unlock()
	go s.pump(out, stop, done)
	return out, nil
}

// halt stops the current pump, if any, and waits for it to park whatever
// it held. The wait makes the pending handoff deterministic.
func (s *stream) halt() {
	s.mu.Lock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	done := s.done
	s.mu.Unlock()
	<-done
}

// pump copies queued arrivals to out until stopped. It holds at most one
// arrival in hand; if stopped mid-delivery that arrival is parked in
// pending for the next subscriber, so nothing is lost across a
// resubscription.
func (s *stream) pump(out chan blobmux.Arrival, stop, done chan struct{}) {
	defer close(done)
	defer close(out)
	for {
		s.mu.Lock()
		a := s.pending
		s.pending = nil
		s.mu.Unlock()

		if a == nil {
			select {
			case <-stop:
				return
			case item := <-s.queue:
				a = &item
			}
		}

		select {
		case out <- *a:
		case <-stop:
			s.mu.Lock()
			s.pending = a
			s.mu.Unlock()
			return
		}
	}
}

// Send queues an invocation for kind, assigning a request id if the
// invocation has none. Blocks if the stream's queue is full.
func (t *Transport) Send(kind blobmux.OpKind, inv *blobmux.Invocation) {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	t.stream(kind).queue <- blobmux.Arrival{Invocation: inv}
}

// Fail injects a transport-level delivery error on kind's stream.
func (t *Transport) Fail(kind blobmux.OpKind, err error) {
	t.stream(kind).queue <- blobmux.Arrival{Err: err}
}

// Interrupt terminates the current subscription for kind, simulating a
// dropped transport channel. Queued arrivals survive for the next
// subscriber.
func (t *Transport) Interrupt(kind blobmux.OpKind) {
	t.stream(kind).halt()
}

// Call injects an invocation for kind on behalf of source and returns the
// two outcome channels; exactly one of them receives exactly one value.
func (t *Transport) Call(kind blobmux.OpKind, source string, params interface{}) (<-chan interface{}, <-chan string) {
	result := make(chan interface{}, 1)
	errMsg := make(chan string, 1)
	t.Send(kind, &blobmux.Invocation{
		ID:     uuid.New().String(),
		Source: source,
		Op:     kind,
		Params: params,
		Tx:     &chanTransmitter{result: result, errMsg: errMsg},
	})
	return result, errMsg
}

// chanTransmitter delivers an invocation's single outcome on one of two
// buffered channels.
type chanTransmitter struct {
	result chan interface{}
	errMsg chan string
}

func (tx *chanTransmitter) TransmitResult(v interface{}) error {
	tx.result <- v
	return nil
}

func (tx *chanTransmitter) TransmitError(msg string) error {
	tx.errMsg <- msg
	return nil
}
