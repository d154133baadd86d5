// Standard interfaces and datatypes for the blobmux provider.
// Terms:
//   "link"       : a registered binding between a caller identity (source id)
//                  and a backend configuration plus alias table
//   "invocation" : one inbound request for a specific operation kind
//   "container"  : a named collection of objects in the backend (an S3 bucket)
package blobmux

import (
	"context"
	"io"
)

// OpKind enumerates the supported blobstore operations. The set is closed:
// the dispatcher switches over it exhaustively and every kind is bound to
// exactly one handler.
type OpKind int

const (
	OpClearContainer OpKind = iota
	OpContainerExists
	OpCreateContainer
	OpDeleteContainer
	OpGetContainerInfo
	OpListContainerObjects
	OpCopyObject
	OpDeleteObject
	OpDeleteObjects
	OpGetContainerData
	OpGetObjectInfo
	OpHasObject
	OpMoveObject
	OpWriteContainerData
)

// AllOps lists every operation kind in subscription order. The dispatcher
// indexes its select cases by position in this slice.
var AllOps = []OpKind{
	OpClearContainer,
	OpContainerExists,
	OpCreateContainer,
	OpDeleteContainer,
	OpGetContainerInfo,
	OpListContainerObjects,
	OpCopyObject,
	OpDeleteObject,
	OpDeleteObjects,
	OpGetContainerData,
	OpGetObjectInfo,
	OpHasObject,
	OpMoveObject,
	OpWriteContainerData,
}

func (k OpKind) String() string {
	switch k {
	case OpClearContainer:
		return "clear-container"
	case OpContainerExists:
		return "container-exists"
	case OpCreateContainer:
		return "create-container"
	case OpDeleteContainer:
		return "delete-container"
	case OpGetContainerInfo:
		return "get-container-info"
	case OpListContainerObjects:
		return "list-container-objects"
	case OpCopyObject:
		return "copy-object"
	case OpDeleteObject:
		return "delete-object"
	case OpDeleteObjects:
		return "delete-objects"
	case OpGetContainerData:
		return "get-container-data"
	case OpGetObjectInfo:
		return "get-object-info"
	case OpHasObject:
		return "has-object"
	case OpMoveObject:
		return "move-object"
	case OpWriteContainerData:
		return "write-container-data"
	}
	return "unknown"
}

// ObjectID names one object within a container. Container may be a logical
// alias; handlers resolve it before touching the backend.
type ObjectID struct {
	Container string `json:"container"`
	Object    string `json:"object"`
}

// Parameter payloads, one per operation shape. The transport is responsible
// for decoding the wire representation into the right one for the kind.

type ContainerParams struct {
	Name string `json:"name"`
}

type ListParams struct {
	Container string  `json:"container"`
	Limit     *uint64 `json:"limit,omitempty"`
	Offset    *uint64 `json:"offset,omitempty"`
}

type ObjectParams struct {
	ID ObjectID `json:"id"`
}

type CopyParams struct {
	Src  ObjectID `json:"src"`
	Dest ObjectID `json:"dest"`
}

type DeleteObjectsParams struct {
	Container string   `json:"container"`
	Objects   []string `json:"objects"`
}

type GetDataParams struct {
	ID    ObjectID `json:"id"`
	Start uint64   `json:"start"`
	End   uint64   `json:"end"`
}

type WriteDataParams struct {
	ID ObjectID `json:"id"`
	// Data is the inbound byte stream. It is buffered fully in memory
	// before the backend is contacted.
	Data io.Reader `json:"-"`
}

// ContainerMetadata describes a container. S3 reports no creation time on
// a head-bucket call, so CreatedAt stays zero there.
type ContainerMetadata struct {
	CreatedAt int64 `json:"createdAt"`
}

// ObjectMetadata describes an object.
type ObjectMetadata struct {
	CreatedAt int64  `json:"createdAt"`
	Size      uint64 `json:"size"`
}

// Transmitter delivers the single outcome of an invocation back to the
// caller. Exactly one of TransmitResult or TransmitError fires per accepted
// invocation, exactly once.
type Transmitter interface {
	TransmitResult(v interface{}) error
	TransmitError(msg string) error
}

// Invocation is one inbound request: an operation kind, its decoded
// parameters, the caller's source id (empty if the transport carried none)
// and the transmitter for its outcome. Consumed exactly once by one handler.
type Invocation struct {
	// ID is a transport-assigned request id, used for log correlation.
	ID     string
	Source string
	Op     OpKind
	Params interface{}
	Tx     Transmitter
}

// Arrival is one item on an operation channel: either an accepted
// invocation or a transport-level delivery/decoding error. A closed channel
// signals stream termination.
type Arrival struct {
	Invocation *Invocation
	Err        error
}

// Transport provides one independent inbound stream per operation kind.
// Delivery is attempted at least once to the correct subject, but channel
// continuity is not guaranteed: subscribers must tolerate termination and
// call Subscribe again.
type Transport interface {
	Subscribe(kind OpKind) (<-chan Arrival, error)
}

// Storage is the per-link backend client facade. Implementations are
// expected to be safe for concurrent use once constructed, and must not
// retry internally; classification of backend failures follows errors.go.
type Storage interface {
	ContainerExists(ctx context.Context, container string) (bool, error)
	CreateContainer(ctx context.Context, container string) error
	DeleteContainer(ctx context.Context, container string) error
	GetContainerInfo(ctx context.Context, container string) (ContainerMetadata, error)
	ListObjects(ctx context.Context, container string, limit, offset *uint64) ([]string, error)
	CopyObject(ctx context.Context, src, dest ObjectID) error
	DeleteObject(ctx context.Context, container, object string) error
	DeleteObjects(ctx context.Context, container string, objects []string) error
	GetObjectRange(ctx context.Context, id ObjectID, start, end uint64) (io.ReadCloser, error)
	PutObject(ctx context.Context, id ObjectID, data []byte) error
	HasObject(ctx context.Context, container, object string) (bool, error)
	GetObjectInfo(ctx context.Context, container, object string) (ObjectMetadata, error)
}
