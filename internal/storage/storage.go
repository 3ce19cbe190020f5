// Package storage reads the input CSV and writes the converted output,
// either to S3 objects or to local files.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ContentType is the content type of uploaded output objects.
const ContentType = "application/json"

// S3API defines the S3 object operations used by the converter.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ S3API = (*s3.Client)(nil)

// S3Object is a single object in a bucket.
type S3Object struct {
	Client S3API
	Bucket string
	Key    string
}

// Fetch downloads the whole object.
func (o *S3Object) Fetch(ctx context.Context) ([]byte, error) {
	out, err := o.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.Bucket),
		Key:    aws.String(o.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", o, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", o, err)
	}
	return data, nil
}

// Store uploads data, replacing the object if it exists.
func (o *S3Object) Store(ctx context.Context, data []byte) error {
	_, err := o.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(o.Bucket),
		Key:           aws.String(o.Key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(ContentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", o, err)
	}
	return nil
}

func (o *S3Object) String() string {
	return "s3://" + o.Bucket + "/" + o.Key
}

// File is a local file.
type File struct {
	Path string
}

// Fetch reads the whole file.
func (f *File) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(f.Path)
}

// Store writes data to the file, creating parent directories as needed.
func (f *File) Store(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(f.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(f.Path, data, 0o644)
}

func (f *File) String() string {
	return f.Path
}
