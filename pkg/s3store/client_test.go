package s3store

import (
	"bytes"
	"context"
	"io/ioutil"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blobmux/blobmux/pkg/blobmux"
)

func testClient(t *testing.T) *StorageClient {
	log := logrus.New()
	log.SetOutput(ioutil.Discard)
	client, err := NewClient(StorageConfig{
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		Region:          "us-west-2",
		Endpoint:        "http://localhost:0", // never contacted in these tests
		ForcePathStyle:  true,
	}, logrus.NewEntry(log))
	require.NoError(t, err)
	return client
}

func TestNotFoundClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"no such bucket", awserr.New(s3.ErrCodeNoSuchBucket, "gone", nil), true},
		{"no such key", awserr.New(s3.ErrCodeNoSuchKey, "gone", nil), true},
		{"bare head NotFound", awserr.New("NotFound", "", nil), true},
		{"404 request failure", awserr.NewRequestFailure(
			awserr.New("Mystery", "", nil), http.StatusNotFound, "req-1"), true},
		{"access denied", awserr.New("AccessDenied", "nope", nil), false},
		{"plain error", errors.New("dial tcp: refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, notFound(tt.err))
		})
	}
}

func TestBackendErrClassification(t *testing.T) {
	throttled := backendErr("failed to put object", awserr.NewRequestFailure(
		awserr.New("SlowDown", "slow down", nil), http.StatusServiceUnavailable, "req-2"))
	var be *blobmux.BackendError
	require.True(t, errors.As(throttled, &be))
	assert.True(t, be.Transient)

	denied := backendErr("failed to put object", awserr.NewRequestFailure(
		awserr.New("AccessDenied", "nope", nil), http.StatusForbidden, "req-3"))
	require.True(t, errors.As(denied, &be))
	assert.False(t, be.Transient)

	plain := backendErr("failed to put object", errors.New("dial tcp: refused"))
	require.True(t, errors.As(plain, &be))
	assert.False(t, be.Transient)
	assert.Contains(t, plain.Error(), "failed to put object")
}

// Deleting an empty key set succeeds without any backend call; the
// endpoint above is unreachable, so a request would fail loudly.
func TestDeleteObjectsEmptySet(t *testing.T) {
	client := testClient(t)
	assert.NoError(t, client.DeleteObjects(context.Background(), "bucket", nil))
	assert.NoError(t, client.DeleteObjects(context.Background(), "bucket", []string{}))
}

func uptr(v uint64) *uint64 { return &v }

func TestPageDone(t *testing.T) {
	tests := []struct {
		name          string
		have          uint64
		limit, offset *uint64
		want          bool
	}{
		{"no limit keeps paging", 100, nil, uptr(3), false},
		{"below limit", 1, uptr(2), nil, false},
		{"at limit", 2, uptr(2), nil, true},
		{"below offset+limit", 4, uptr(2), uptr(3), false},
		{"at offset+limit", 5, uptr(2), uptr(3), true},
		{"past offset+limit", 6, uptr(2), uptr(3), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pageDone(tt.have, tt.limit, tt.offset))
		})
	}
}

func TestSliceListing(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e"}

	tests := []struct {
		name          string
		limit, offset *uint64
		want          []string
	}{
		{"unbounded", nil, nil, []string{"a", "b", "c", "d", "e"}},
		{"limit only", uptr(2), nil, []string{"a", "b"}},
		{"offset only", nil, uptr(2), []string{"c", "d", "e"}},
		{"offset and limit", uptr(2), uptr(2), []string{"c", "d"}},
		{"limit past end", uptr(10), uptr(3), []string{"d", "e"}},
		{"offset at end", nil, uptr(5), []string{}},
		{"offset past end", uptr(1), uptr(9), []string{}},
		{"zero limit", uptr(0), nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sliceListing(names, tt.limit, tt.offset))
		})
	}
}

func TestBoundedBody(t *testing.T) {
	src := ioutil.NopCloser(bytes.NewReader([]byte("0123456789")))
	body := newBoundedBody(src, 4)

	data, err := ioutil.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, []byte("0123"), data)
	assert.NoError(t, body.Close())
}
