package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 keeps objects in memory and pages listings two keys at a time.
type fakeS3 struct {
	objects   map[string][]byte
	deleteErr error
	listCalls int
}

func newFakeS3(keys ...string) *fakeS3 {
	f := &fakeS3{objects: map[string][]byte{}}
	for _, k := range keys {
		f.objects[k] = []byte("content of " + k)
	}
	return f
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.listCalls++
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if in.ContinuationToken != nil {
		for i, k := range keys {
			if k == *in.ContinuationToken {
				start = i
			}
		}
	}
	end := start + 2
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[end])
	} else {
		end = len(keys)
	}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestBucketListFollowsPages(t *testing.T) {
	api := newFakeS3(
		"transactions/ID1/a.csv",
		"transactions/ID1/b.csv",
		"transactions/ID1/c.txt",
		"transactions/ID1/d.csv",
		"transactions/ID2/e.csv",
	)
	b := &Bucket{client: api, name: "bucket"}

	keys, err := b.List(context.Background(), "transactions/ID1/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"transactions/ID1/a.csv",
		"transactions/ID1/b.csv",
		"transactions/ID1/c.txt",
		"transactions/ID1/d.csv",
	}, keys)
	assert.Equal(t, 2, api.listCalls)
}

func TestBucketListEmpty(t *testing.T) {
	b := &Bucket{client: newFakeS3(), name: "bucket"}

	keys, err := b.List(context.Background(), "transactions/ID1/")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestBucketGetPutDelete(t *testing.T) {
	api := newFakeS3()
	b := &Bucket{client: api, name: "bucket"}
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, "k.csv", []byte("a,b\n")))
	data, err := b.Get(ctx, "k.csv")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))

	require.NoError(t, b.Delete(ctx, "k.csv"))
	_, err = b.Get(ctx, "k.csv")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLayout(t *testing.T) {
	l := Layout{Pending: "transactions", Imported: "transactions_imported"}

	assert.Equal(t, "transactions/NL12ABCD1234567890/", l.PendingPrefix("NL12ABCD1234567890"))
	assert.Equal(t,
		"transactions_imported/NL12ABCD1234567890/2024-01-01.csv",
		l.ImportedKey("NL12ABCD1234567890", "transactions/NL12ABCD1234567890/2024-01-01.csv"))
}

func TestFilterCSV(t *testing.T) {
	keys := []string{"p/a.csv", "p/b.CSV", "p/c.json", "p/", "p/d.csv.bak"}
	assert.Equal(t, []string{"p/a.csv", "p/b.CSV"}, FilterCSV(keys))
	assert.Empty(t, FilterCSV(nil))
}

func TestArchive(t *testing.T) {
	api := newFakeS3("transactions/ID1/a.csv")
	b := &Bucket{client: api, name: "bucket"}

	err := Archive(context.Background(), b, "transactions/ID1/a.csv", []byte("body"), "transactions_imported/ID1/a.csv")
	require.NoError(t, err)

	assert.Equal(t, map[string][]byte{"transactions_imported/ID1/a.csv": []byte("body")}, api.objects)
}

func TestArchiveDeleteFails(t *testing.T) {
	api := newFakeS3("transactions/ID1/a.csv")
	api.deleteErr = errors.New("access denied")
	b := &Bucket{client: api, name: "bucket"}

	err := Archive(context.Background(), b, "transactions/ID1/a.csv", []byte("body"), "transactions_imported/ID1/a.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArchiveIncomplete)
	assert.Contains(t, api.objects, "transactions/ID1/a.csv")
	assert.Contains(t, api.objects, "transactions_imported/ID1/a.csv")
}
