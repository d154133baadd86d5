package provider

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/blobmux/blobmux/pkg/blobmux"
)

// handle runs one invocation to completion and transmits exactly one
// outcome. Panics, hangs and errors stay confined to this goroutine; none
// of them can reach the dispatch loop.
func (d *Dispatcher) handle(inv *blobmux.Invocation) {
	log := d.log.WithFields(logrus.Fields{
		"op":         inv.Op.String(),
		"invocation": inv.ID,
		"source":     inv.Source,
	})

	sent := false
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("handler panicked: %v", r)
			if !sent {
				if err := inv.Tx.TransmitError(fmt.Sprintf("internal error: %v", r)); err != nil {
					log.WithError(err).Error("failed to transmit error")
				}
			}
		}
	}()

	result, err := d.dispatch(inv)
	if err != nil {
		log.WithError(err).
			WithField("code", blobmux.StatusFromError(err).Code().String()).
			Debug("invocation failed")
		sent = true
		if terr := inv.Tx.TransmitError(err.Error()); terr != nil {
			log.WithError(terr).Error("failed to transmit error")
		}
		return
	}
	sent = true
	if terr := inv.Tx.TransmitResult(result); terr != nil {
		log.WithError(terr).Error("failed to transmit result")
		// an undeliverable stream result would otherwise hold its backend
		// response open forever
		if body, ok := result.(io.Closer); ok {
			body.Close()
		}
	}
}

// link resolves the caller's registered session. Invocations without a
// source id are rejected; falling back to a default shared client is a
// possible future relaxation, not current behavior.
func (d *Dispatcher) link(inv *blobmux.Invocation) (*Link, error) {
	if inv.Source == "" {
		return nil, errors.Wrap(blobmux.ErrUnknownLink, "invocation carries no source id")
	}
	return d.registry.Lookup(inv.Source)
}

// dispatch binds an invocation to its operation handler. Every handler has
// the same shape: resolve the link, resolve container aliases, delegate to
// the facade.
func (d *Dispatcher) dispatch(inv *blobmux.Invocation) (interface{}, error) {
	ctx := context.Background()
	link, err := d.link(inv)
	if err != nil {
		return nil, err
	}

	switch inv.Op {
	case blobmux.OpClearContainer:
		p, ok := inv.Params.(blobmux.ContainerParams)
		if !ok {
			return nil, errors.Errorf("invalid parameters for %s", inv.Op)
		}
		// list-then-delete, not atomic: a concurrent writer may observe a
		// partially cleared container
		bucket := link.Aliases.Resolve(p.Name)
		objects, err := link.Store.ListObjects(ctx, bucket, nil, nil)
		if err != nil {
			return nil, errors.Wrap(err, "failed to list container objects")
		}
		return nil, link.Store.DeleteObjects(ctx, bucket, objects)

	case blobmux.OpContainerExists:
		p, ok := inv.Params.(blobmux.ContainerParams)
		if !ok {
			return nil, errors.Errorf("invalid parameters for %s", inv.Op)
		}
		return link.Store.ContainerExists(ctx, link.Aliases.Resolve(p.Name))

	case blobmux.OpCreateContainer:
		p, ok := inv.Params.(blobmux.ContainerParams)
		if !ok {
			return nil, errors.Errorf("invalid parameters for %s", inv.Op)
		}
		return nil, link.Store.CreateContainer(ctx, link.Aliases.Resolve(p.Name))

	case blobmux.OpDeleteContainer:
		p, ok := inv.Params.(blobmux.ContainerParams)
		if !ok {
			return nil, errors.Errorf("invalid parameters for %s", inv.Op)
		}
		return nil, link.Store.DeleteContainer(ctx, link.Aliases.Resolve(p.Name))

	case blobmux.OpGetContainerInfo:
		p, ok := inv.Params.(blobmux.ContainerParams)
		if !ok {
			return nil, errors.Errorf("invalid parameters for %s", inv.Op)
		}
		return link.Store.GetContainerInfo(ctx, link.Aliases.Resolve(p.Name))

	case blobmux.OpListContainerObjects:
		p, ok := inv.Params.(blobmux.ListParams)
		if !ok {
			return nil, errors.Errorf("invalid parameters for %s", inv.Op)
		}
		return link.Store.ListObjects(ctx, link.Aliases.Resolve(p.Container), p.Limit, p.Offset)

	case blobmux.OpCopyObject:
		p, ok := inv.Params.(blobmux.CopyParams)
		if !ok {
			return nil, errors.Errorf("invalid parameters for %s", inv.Op)
		}
		src, dest := resolveCopy(link, p)
		return nil, link.Store.CopyObject(ctx, src, dest)

	case blobmux.OpMoveObject:
		p, ok := inv.Params.(blobmux.CopyParams)
		if !ok {
			return nil, errors.Errorf("invalid parameters for %s", inv.Op)
		}
		// copy then delete source; a delete failure leaves the object in
		// both locations and is surfaced as-is, no rollback of the copy
		src, dest := resolveCopy(link, p)
		if err := link.Store.CopyObject(ctx, src, dest); err != nil {
			return nil, errors.Wrap(err, "failed to copy object")
		}
		if err := link.Store.DeleteObject(ctx, src.Container, src.Object); err != nil {
			return nil, errors.Wrap(err, "failed to delete source object")
		}
		return nil, nil

	case blobmux.OpDeleteObject:
		p, ok := inv.Params.(blobmux.ObjectParams)
		if !ok {
			return nil, errors.Errorf("invalid parameters for %s", inv.Op)
		}
		return nil, link.Store.DeleteObject(ctx, link.Aliases.Resolve(p.ID.Container), p.ID.Object)

	case blobmux.OpDeleteObjects:
		p, ok := inv.Params.(blobmux.DeleteObjectsParams)
		if !ok {
			return nil, errors.Errorf("invalid parameters for %s", inv.Op)
		}
		return nil, link.Store.DeleteObjects(ctx, link.Aliases.Resolve(p.Container), p.Objects)

	case blobmux.OpGetContainerData:
		p, ok := inv.Params.(blobmux.GetDataParams)
		if !ok {
			return nil, errors.Errorf("invalid parameters for %s", inv.Op)
		}
		if p.End <= p.Start {
			return nil, &blobmux.RangeError{Start: p.Start, End: p.End}
		}
		id := blobmux.ObjectID{Container: link.Aliases.Resolve(p.ID.Container), Object: p.ID.Object}
		return link.Store.GetObjectRange(ctx, id, p.Start, p.End)

	case blobmux.OpGetObjectInfo:
		p, ok := inv.Params.(blobmux.ObjectParams)
		if !ok {
			return nil, errors.Errorf("invalid parameters for %s", inv.Op)
		}
		return link.Store.GetObjectInfo(ctx, link.Aliases.Resolve(p.ID.Container), p.ID.Object)

	case blobmux.OpHasObject:
		p, ok := inv.Params.(blobmux.ObjectParams)
		if !ok {
			return nil, errors.Errorf("invalid parameters for %s", inv.Op)
		}
		return link.Store.HasObject(ctx, link.Aliases.Resolve(p.ID.Container), p.ID.Object)

	case blobmux.OpWriteContainerData:
		p, ok := inv.Params.(blobmux.WriteDataParams)
		if !ok {
			return nil, errors.Errorf("invalid parameters for %s", inv.Op)
		}
		// buffer the whole stream before contacting the backend; a source
		// error therefore never results in a partial write
		data, err := ioutil.ReadAll(p.Data)
		if err != nil {
			return nil, errors.Wrap(err, "failed to receive data stream")
		}
		id := blobmux.ObjectID{Container: link.Aliases.Resolve(p.ID.Container), Object: p.ID.Object}
		return nil, link.Store.PutObject(ctx, id, data)
	}

	return nil, errors.Errorf("unsupported operation kind %d", inv.Op)
}

func resolveCopy(link *Link, p blobmux.CopyParams) (src, dest blobmux.ObjectID) {
	src = blobmux.ObjectID{Container: link.Aliases.Resolve(p.Src.Container), Object: p.Src.Object}
	dest = blobmux.ObjectID{Container: link.Aliases.Resolve(p.Dest.Container), Object: p.Dest.Object}
	return src, dest
}
