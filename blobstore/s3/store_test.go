package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecindex/blobstore"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

func (m *mockClient) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func (m *mockClient) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.DeleteObjectOutput)
	return out, args.Error(1)
}

func (m *mockClient) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.ListObjectsV2Output)
	return out, args.Error(1)
}

func (m *mockClient) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.HeadObjectOutput)
	return out, args.Error(1)
}

func keyIs(bucket, key string) any {
	return mock.MatchedBy(func(in any) bool {
		switch in := in.(type) {
		case *s3.GetObjectInput:
			return *in.Bucket == bucket && *in.Key == key
		case *s3.PutObjectInput:
			return *in.Bucket == bucket && *in.Key == key
		case *s3.DeleteObjectInput:
			return *in.Bucket == bucket && *in.Key == key
		case *s3.HeadObjectInput:
			return *in.Bucket == bucket && *in.Key == key
		}
		return false
	})
}

func TestStore_Get(t *testing.T) {
	client := new(mockClient)
	store := NewStore(client, "test-bucket", "prefix")

	t.Run("NotFound", func(t *testing.T) {
		client.On("GetObject", mock.Anything, keyIs("test-bucket", "prefix/missing")).
			Return(nil, &types.NoSuchKey{}).Once()

		_, err := store.Get(context.Background(), "missing")
		assert.True(t, errors.Is(err, blobstore.ErrNotFound))
	})

	t.Run("Success", func(t *testing.T) {
		client.On("GetObject", mock.Anything, keyIs("test-bucket", "prefix/page-0000000001")).
			Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("payload"))}, nil).Once()

		got, err := store.Get(context.Background(), "page-0000000001")
		require.NoError(t, err)
		assert.Equal(t, "payload", string(got))
	})

	client.AssertExpectations(t)
}

func TestStore_Put(t *testing.T) {
	client := new(mockClient)
	store := NewStore(client, "test-bucket", "prefix")

	client.On("PutObject", mock.Anything, keyIs("test-bucket", "prefix/new")).
		Run(func(args mock.Arguments) {
			in := args.Get(1).(*s3.PutObjectInput)
			body, err := io.ReadAll(in.Body)
			assert.NoError(t, err)
			assert.Equal(t, "content", string(body))
			assert.Equal(t, int64(7), aws.ToInt64(in.ContentLength))
		}).
		Return(&s3.PutObjectOutput{}, nil).Once()

	require.NoError(t, store.Put(context.Background(), "new", []byte("content")))
	client.AssertExpectations(t)
}

func TestStore_Delete(t *testing.T) {
	client := new(mockClient)
	store := NewStore(client, "test-bucket", "prefix")

	client.On("DeleteObject", mock.Anything, keyIs("test-bucket", "prefix/del")).
		Return(&s3.DeleteObjectOutput{}, nil).Once()
	client.On("DeleteObject", mock.Anything, keyIs("test-bucket", "prefix/gone")).
		Return(nil, &types.NotFound{}).Once()

	assert.NoError(t, store.Delete(context.Background(), "del"))
	assert.NoError(t, store.Delete(context.Background(), "gone"))
	client.AssertExpectations(t)
}

func TestStore_Exists(t *testing.T) {
	client := new(mockClient)
	store := NewStore(client, "b", "")

	client.On("HeadObject", mock.Anything, keyIs("b", "yes")).
		Return(&s3.HeadObjectOutput{ContentLength: aws.Int64(3)}, nil).Once()
	client.On("HeadObject", mock.Anything, keyIs("b", "no")).
		Return(nil, &types.NotFound{}).Once()

	ok, err := store.Exists(context.Background(), "yes")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(context.Background(), "no")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_List_Pagination(t *testing.T) {
	client := new(mockClient)
	store := NewStore(client, "test-bucket", "prefix/")

	client.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return in.ContinuationToken == nil && *in.Prefix == "prefix/page-"
	})).Return(&s3.ListObjectsV2Output{
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("token"),
		Contents:              []types.Object{{Key: aws.String("prefix/page-0000000002")}},
	}, nil).Once()

	client.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return in.ContinuationToken != nil && *in.ContinuationToken == "token"
	})).Return(&s3.ListObjectsV2Output{
		IsTruncated: aws.Bool(false),
		Contents:    []types.Object{{Key: aws.String("prefix/page-0000000001")}},
	}, nil).Once()

	names, err := store.List(context.Background(), "page-")
	require.NoError(t, err)
	assert.Equal(t, []string{"page-0000000001", "page-0000000002"}, names)
	client.AssertExpectations(t)
}
