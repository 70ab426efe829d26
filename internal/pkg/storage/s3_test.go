package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakePutAPI struct {
	calls  int
	length *int64
}

func (f *fakePutAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.calls++
	f.length = in.ContentLength
	return &s3.PutObjectOutput{ETag: aws.String(`"put-etag"`)}, nil
}

type fakeUploadAPI struct {
	calls int
	body  []byte
}

func (f *fakeUploadAPI) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.calls++
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = b
	return &manager.UploadOutput{ETag: aws.String(`"upload-etag"`)}, nil
}

func TestS3PutObjectUnknownLengthUsesUploader(t *testing.T) {
	put := &fakePutAPI{}
	up := &fakeUploadAPI{}
	a := &S3Adapter{putter: put, uploader: up}

	// A non-seekable stream of unknown length, like a multipart file upload.
	body := io.MultiReader(strings.NewReader("avatar"), strings.NewReader("-bytes"))

	info, err := a.PutObject(context.Background(), "bucket", "avatars/1.png", body, PutOptions{
		Size:        -1,
		ContentType: "image/png",
	})
	if err != nil {
		t.Fatalf("PutObject error = %v", err)
	}
	if up.calls != 1 || put.calls != 0 {
		t.Fatalf("uploader calls = %d, putter calls = %d, want 1 and 0", up.calls, put.calls)
	}
	if string(up.body) != "avatar-bytes" {
		t.Errorf("uploaded body = %q, want %q", up.body, "avatar-bytes")
	}
	if info.ETag != `"upload-etag"` {
		t.Errorf("ETag = %q, want %q", info.ETag, `"upload-etag"`)
	}
}

func TestS3PutObjectKnownLengthSetsContentLength(t *testing.T) {
	put := &fakePutAPI{}
	up := &fakeUploadAPI{}
	a := &S3Adapter{putter: put, uploader: up}

	_, err := a.PutObject(context.Background(), "bucket", "k", strings.NewReader("twelve bytes"), PutOptions{
		Size: 12,
	})
	if err != nil {
		t.Fatalf("PutObject error = %v", err)
	}
	if put.calls != 1 || up.calls != 0 {
		t.Fatalf("putter calls = %d, uploader calls = %d, want 1 and 0", put.calls, up.calls)
	}
	if put.length == nil || *put.length != 12 {
		t.Errorf("ContentLength = %v, want 12", put.length)
	}
}
