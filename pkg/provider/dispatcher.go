package provider

import (
	"reflect"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/blobmux/blobmux/pkg/blobmux"
)

// Dispatcher multiplexes one inbound channel per operation kind into a
// single service loop and spawns an isolated goroutine per accepted
// invocation. The loop itself shares nothing mutable with handlers beyond
// the registry handle, so a failing handler cannot take the loop down.
type Dispatcher struct {
	transport blobmux.Transport
	registry  *Registry
	log       *logrus.Entry
}

func NewDispatcher(transport blobmux.Transport, registry *Registry, log *logrus.Entry) *Dispatcher {
	return &Dispatcher{
		transport: transport,
		registry:  registry,
		log:       log,
	}
}

// Serve runs until shutdown is closed or establishing an operation channel
// fails. Termination of any one channel re-establishes all of them: coarse,
// but it keeps recovery in a single place. On shutdown the loop stops
// accepting and returns immediately; in-flight handlers are not awaited,
// trading drain completeness for shutdown latency.
func (d *Dispatcher) Serve(shutdown <-chan struct{}) error {
	for {
		arrivals := make([]<-chan blobmux.Arrival, len(blobmux.AllOps))
		for i, op := range blobmux.AllOps {
			ch, err := d.transport.Subscribe(op)
			if err != nil {
				return errors.Wrapf(err, "failed to serve %s invocations", op)
			}
			arrivals[i] = ch
		}

		// One select case per operation kind plus the shutdown signal.
		// reflect.Select picks uniformly among ready cases, so no kind
		// can starve another.
		cases := make([]reflect.SelectCase, len(arrivals)+1)
		for i, ch := range arrivals {
			cases[i] = reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ch)}
		}
		shutdownIdx := len(arrivals)
		cases[shutdownIdx] = reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(shutdown)}

		resubscribe := false
		for !resubscribe {
			chosen, recv, ok := reflect.Select(cases)
			if chosen == shutdownIdx {
				d.log.Debug("shutdown signal received")
				return nil
			}

			op := blobmux.AllOps[chosen]
			if !ok {
				d.log.WithField("op", op.String()).
					Warn("invocation channel unexpectedly finished, resubscribing")
				resubscribe = true
				continue
			}

			arrival := recv.Interface().(blobmux.Arrival)
			if arrival.Err != nil {
				d.log.WithError(arrival.Err).WithField("op", op.String()).
					Error("failed to accept invocation")
				continue
			}
			go d.handle(arrival.Invocation)
		}
	}
}
