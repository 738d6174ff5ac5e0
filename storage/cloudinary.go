package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// uploadAPI is the part of the Cloudinary upload API used here.
type uploadAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

// Cloudinary stores objects in a Cloudinary account.
type Cloudinary struct {
	api uploadAPI
}

func NewCloudinary(cloudName, apiKey, apiSecret string) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("storage: cloudinary client: %w", err)
	}
	return &Cloudinary{api: &cld.Upload}, nil
}

func (c *Cloudinary) Upload(ctx context.Context, data []byte, opts UploadOptions) (UploadResult, error) {
	if len(data) == 0 {
		return UploadResult{}, errors.New("storage: upload: empty payload")
	}
	kind := opts.Kind
	if kind == "" {
		kind = KindRaw
	}

	res, err := c.api.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		Folder:       opts.Folder,
		PublicID:     opts.PublicID,
		ResourceType: string(kind),
		Tags:         opts.Tags,
	})
	if err != nil {
		return UploadResult{}, fmt.Errorf("storage: upload: %w", err)
	}
	if res.Error.Message != "" {
		return UploadResult{}, fmt.Errorf("storage: upload: %s", res.Error.Message)
	}
	if res.SecureURL == "" {
		return UploadResult{}, errors.New("storage: upload: no url returned")
	}
	return UploadResult{
		SecureURL: res.SecureURL,
		PublicID:  res.PublicID,
		Format:    res.Format,
		Bytes:     res.Bytes,
	}, nil
}

// Delete removes an object. Deleting an object that is already gone is not
// an error.
func (c *Cloudinary) Delete(ctx context.Context, publicID string, kind ResourceKind) error {
	if kind == "" {
		kind = KindRaw
	}
	res, err := c.api.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: string(kind),
	})
	if err != nil {
		return fmt.Errorf("storage: delete %s: %w", publicID, err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("storage: delete %s: %s", publicID, res.Error.Message)
	}
	if res.Result != "ok" && res.Result != "not found" {
		return fmt.Errorf("storage: delete %s: unexpected result %q", publicID, res.Result)
	}
	return nil
}
