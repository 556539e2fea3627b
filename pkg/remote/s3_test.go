package remote

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	inputs []*s3.GetObjectInput
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.inputs = append(f.inputs, in)
	if aws.ToString(in.Key) != "path/to/archive.zip" {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("PK"))}, nil
}

func TestS3Fetcher_Fetch(t *testing.T) {
	svc := &fakeS3{}
	f, err := NewS3FetcherWithClient("s3://example-bucket/path/to/archive.zip", svc)
	require.NoError(t, err)

	end := int64(65536)
	r, err := f.Fetch(context.Background(), nil, &end)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "PK", string(data))
	require.Len(t, svc.inputs, 1)
	assert.Equal(t, "example-bucket", aws.ToString(svc.inputs[0].Bucket))
	assert.Equal(t, "bytes=-65536", aws.ToString(svc.inputs[0].Range))

	missing, err := NewS3FetcherWithClient("s3://example-bucket/nope.zip", svc)
	require.NoError(t, err)
	_, err = missing.Fetch(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrDoesNotExist)
}
