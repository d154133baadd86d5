// S3 implementation of the blobmux.Storage facade.
package s3store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/blobmux/blobmux/pkg/blobmux"
)

// StorageClient is a thin per-link wrapper over one S3 account/config.
// Read-only after construction and safe for concurrent use.
type StorageClient struct {
	api *s3.S3
	log *logrus.Entry
}

var _ blobmux.Storage = (*StorageClient)(nil)

// NewClient builds a storage client from cfg. Construction is purely
// local: the first S3 request is what validates credentials.
func NewClient(cfg StorageConfig, log *logrus.Entry) (*StorageClient, error) {
	sess, err := cfg.newSession()
	if err != nil {
		return nil, err
	}
	return &StorageClient{
		api: s3.New(sess),
		log: log,
	}, nil
}

// notFound reports whether err is any of the S3 not-found shapes. The SDK
// is not consistent about these: head calls yield a bare "NotFound" code,
// others the NoSuch* service errors.
func notFound(err error) bool {
	aerr, ok := err.(awserr.Error)
	if !ok {
		return false
	}
	switch aerr.Code() {
	case s3.ErrCodeNoSuchBucket, s3.ErrCodeNoSuchKey, "NotFound":
		return true
	}
	if reqErr, ok := err.(awserr.RequestFailure); ok {
		return reqErr.StatusCode() == http.StatusNotFound
	}
	return false
}

// backendErr wraps err for the taxonomy, classifying throttling and 5xx
// responses as transient.
func backendErr(op string, err error) error {
	transient := false
	if reqErr, ok := err.(awserr.RequestFailure); ok {
		switch {
		case reqErr.StatusCode() >= 500:
			transient = true
		case reqErr.Code() == "SlowDown",
			reqErr.Code() == "RequestTimeout",
			reqErr.Code() == "ThrottlingException":
			transient = true
		}
	}
	return &blobmux.BackendError{Op: op, Transient: transient, Err: err}
}

func (c *StorageClient) ContainerExists(ctx context.Context, container string) (bool, error) {
	_, err := c.api.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(container),
	})
	if err == nil {
		return true, nil
	}
	if notFound(err) {
		return false, nil
	}
	return false, backendErr("failed to head bucket", err)
}

// CreateContainer creates the bucket. A bucket we already own counts as
// success, making creation idempotent.
func (c *StorageClient) CreateContainer(ctx context.Context, container string) error {
	out, err := c.api.CreateBucketWithContext(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(container),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeBucketAlreadyOwnedByYou {
			return nil
		}
		return backendErr("failed to create bucket", err)
	}
	c.log.WithFields(logrus.Fields{
		"bucket":   container,
		"location": aws.StringValue(out.Location),
	}).Debug("bucket created")
	return nil
}

func (c *StorageClient) DeleteContainer(ctx context.Context, container string) error {
	_, err := c.api.DeleteBucketWithContext(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(container),
	})
	if err != nil {
		return backendErr("failed to delete bucket", err)
	}
	return nil
}

func (c *StorageClient) GetContainerInfo(ctx context.Context, container string) (blobmux.ContainerMetadata, error) {
	_, err := c.api.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(container),
	})
	if err != nil {
		if notFound(err) {
			return blobmux.ContainerMetadata{}, &blobmux.NotFoundError{Kind: "container", Name: container}
		}
		return blobmux.ContainerMetadata{}, backendErr("failed to head bucket", err)
	}
	// head-bucket reports no creation date, so there is nothing to fill in
	return blobmux.ContainerMetadata{CreatedAt: 0}, nil
}

// ListObjects returns object names in order, paging through the backend as
// needed. offset skips leading names, limit bounds the count returned;
// nil means unbounded.
func (c *StorageClient) ListObjects(ctx context.Context, container string, limit, offset *uint64) ([]string, error) {
	names := []string{}
	input := &s3.ListObjectsV2Input{Bucket: aws.String(container)}
	err := c.api.ListObjectsV2PagesWithContext(ctx, input,
		func(page *s3.ListObjectsV2Output, lastPage bool) bool {
			for _, obj := range page.Contents {
				if obj.Key != nil {
					names = append(names, *obj.Key)
				}
			}
			return !pageDone(uint64(len(names)), limit, offset)
		})
	if err != nil {
		if notFound(err) {
			return nil, &blobmux.NotFoundError{Kind: "container", Name: container}
		}
		return nil, backendErr("failed to list objects", err)
	}
	return sliceListing(names, limit, offset), nil
}

// pageDone reports whether enough names are in hand to stop paging: the
// window [offset, offset+limit) is covered. Without a limit every page is
// needed.
func pageDone(have uint64, limit, offset *uint64) bool {
	if limit == nil {
		return false
	}
	want := *limit
	if offset != nil {
		want += *offset
	}
	return have >= want
}

// sliceListing applies offset then limit to the collected names. An offset
// past the end yields an empty listing, not an error.
func sliceListing(names []string, limit, offset *uint64) []string {
	if offset != nil {
		if *offset >= uint64(len(names)) {
			return []string{}
		}
		names = names[*offset:]
	}
	if limit != nil && uint64(len(names)) > *limit {
		names = names[:*limit]
	}
	return names
}

func (c *StorageClient) CopyObject(ctx context.Context, src, dest blobmux.ObjectID) error {
	_, err := c.api.CopyObjectWithContext(ctx, &s3.CopyObjectInput{
		CopySource: aws.String(src.Container + "/" + src.Object),
		Bucket:     aws.String(dest.Container),
		Key:        aws.String(dest.Object),
	})
	if err != nil {
		if notFound(err) {
			return &blobmux.NotFoundError{Kind: "object", Name: src.Container + "/" + src.Object}
		}
		return backendErr("failed to copy object", err)
	}
	return nil
}

func (c *StorageClient) DeleteObject(ctx context.Context, container, object string) error {
	_, err := c.api.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(object),
	})
	if err != nil {
		return backendErr("failed to delete object", err)
	}
	return nil
}

// DeleteObjects removes the given keys in one bulk call. An empty key set
// is a trivial success, no backend call made. Keys the backend failed to
// delete are surfaced together as a PartialFailureError.
func (c *StorageClient) DeleteObjects(ctx context.Context, container string, objects []string) error {
	if len(objects) == 0 {
		c.log.WithField("bucket", container).Debug("no objects to delete")
		return nil
	}

	ids := make([]*s3.ObjectIdentifier, len(objects))
	for i, key := range objects {
		ids[i] = &s3.ObjectIdentifier{Key: aws.String(key)}
	}
	out, err := c.api.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(container),
		Delete: &s3.Delete{Objects: ids},
	})
	if err != nil {
		return backendErr("failed to delete objects", err)
	}
	if len(out.Errors) > 0 {
		failed := make([]blobmux.KeyError, len(out.Errors))
		for i, e := range out.Errors {
			failed[i] = blobmux.KeyError{
				Key:     aws.StringValue(e.Key),
				Code:    aws.StringValue(e.Code),
				Message: aws.StringValue(e.Message),
			}
		}
		return &blobmux.PartialFailureError{Container: container, Failed: failed}
	}
	return nil
}

// GetObjectRange reads [start, end) of an object as a lazy byte stream.
// The reader is bounded to end-start bytes and is not restartable; the
// caller owns closing it.
func (c *StorageClient) GetObjectRange(ctx context.Context, id blobmux.ObjectID, start, end uint64) (io.ReadCloser, error) {
	out, err := c.api.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(id.Container),
		Key:    aws.String(id.Object),
		// HTTP ranges are end-inclusive
		Range: aws.String(fmt.Sprintf("bytes=%d-%d", start, end-1)),
	})
	if err != nil {
		if notFound(err) {
			return nil, &blobmux.NotFoundError{Kind: "object", Name: id.Container + "/" + id.Object}
		}
		return nil, backendErr("failed to get object", err)
	}
	return newBoundedBody(out.Body, end-start), nil
}

func (c *StorageClient) PutObject(ctx context.Context, id blobmux.ObjectID, data []byte) error {
	_, err := c.api.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(id.Container),
		Key:    aws.String(id.Object),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return backendErr("failed to put object", err)
	}
	return nil
}

func (c *StorageClient) HasObject(ctx context.Context, container, object string) (bool, error) {
	_, err := c.api.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(object),
	})
	if err == nil {
		return true, nil
	}
	if notFound(err) {
		return false, nil
	}
	return false, backendErr("failed to head object", err)
}

func (c *StorageClient) GetObjectInfo(ctx context.Context, container, object string) (blobmux.ObjectMetadata, error) {
	out, err := c.api.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(object),
	})
	if err != nil {
		if notFound(err) {
			return blobmux.ObjectMetadata{}, &blobmux.NotFoundError{Kind: "object", Name: container + "/" + object}
		}
		return blobmux.ObjectMetadata{}, backendErr("failed to head object", err)
	}
	size := aws.Int64Value(out.ContentLength)
	if size < 0 {
		size = 0
	}
	return blobmux.ObjectMetadata{
		// S3 does not report object creation time on a head call
		CreatedAt: 0,
		Size:      uint64(size),
	}, nil
}

// boundedBody caps a response body at n bytes while keeping Close wired to
// the underlying stream.
type boundedBody struct {
	io.Reader
	body io.ReadCloser
}

func newBoundedBody(body io.ReadCloser, n uint64) io.ReadCloser {
	return &boundedBody{
		Reader: io.LimitReader(body, int64(n)),
		body:   body,
	}
}

func (b *boundedBody) Close() error {
	return b.body.Close()
}
