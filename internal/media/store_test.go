package media

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	bucket, key, contentType string
	body                     string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.bucket = *in.Bucket
	f.key = *in.Key
	f.contentType = *in.ContentType
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, nil
}

func TestUpload(t *testing.T) {
	s3c := &fakeS3{}
	store := New(s3c, "groupcast-media", "eu-central-1", "")

	url, err := store.Upload(context.Background(), "acct-1", "promo.jpg", "image/jpeg", strings.NewReader("bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if s3c.bucket != "groupcast-media" || s3c.contentType != "image/jpeg" || s3c.body != "bytes" {
		t.Errorf("put = %+v", s3c)
	}
	if !strings.HasPrefix(s3c.key, "media/acct-1/") || !strings.HasSuffix(s3c.key, ".jpg") {
		t.Errorf("key = %s", s3c.key)
	}
	want := "https://groupcast-media.s3.eu-central-1.amazonaws.com/" + s3c.key
	if url != want {
		t.Errorf("url = %s, want %s", url, want)
	}
}

func TestUploadCDNBase(t *testing.T) {
	s3c := &fakeS3{}
	store := New(s3c, "groupcast-media", "eu-central-1", "https://cdn.example.com/")

	url, err := store.Upload(context.Background(), "acct-1", "promo.png", "image/png", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasPrefix(url, "https://cdn.example.com/media/acct-1/") {
		t.Errorf("url = %s", url)
	}
}

func TestUploadKeysNeverCollide(t *testing.T) {
	s3c := &fakeS3{}
	store := New(s3c, "b", "r", "")

	first, _ := store.Upload(context.Background(), "a", "x.jpg", "image/jpeg", strings.NewReader("1"))
	second, _ := store.Upload(context.Background(), "a", "x.jpg", "image/jpeg", strings.NewReader("2"))
	if first == second {
		t.Error("same filename produced the same key twice")
	}
}
