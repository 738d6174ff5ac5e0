package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ResourceKind selects how the object store treats an upload.
type ResourceKind string

const (
	KindRaw   ResourceKind = "raw"
	KindImage ResourceKind = "image"
	KindVideo ResourceKind = "video"
)

type UploadOptions struct {
	Folder   string
	Kind     ResourceKind
	Tags     []string
	PublicID string
}

type UploadResult struct {
	SecureURL string
	PublicID  string
	Format    string
	Bytes     int
}

// ErrNotConfigured signals that object storage credentials are missing.
var ErrNotConfigured = errors.New("storage: not configured")

// Unconfigured fails every call, naming the variables that need setting. It
// lets the API boot without credentials and report the gap on first upload.
type Unconfigured struct {
	Missing []string
}

func (u Unconfigured) Upload(context.Context, []byte, UploadOptions) (UploadResult, error) {
	return UploadResult{}, u.err()
}

func (u Unconfigured) Delete(context.Context, string, ResourceKind) error {
	return u.err()
}

func (u Unconfigured) err() error {
	return fmt.Errorf("%w: missing %s", ErrNotConfigured, strings.Join(u.Missing, ", "))
}
