package storage

import (
	"context"
	"fmt"
	"image"

	apperrors "go-trap-coverage/internal/errors"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/disintegration/imaging"
)

// AzureStorage reads images from one blob container. References are blob
// names inside the container.
type AzureStorage struct {
	client    *azblob.Client
	container string
}

func NewAzureStorage(accountName, accountKey, container string) (*AzureStorage, error) {
	if accountName == "" || accountKey == "" || container == "" {
		return nil, apperrors.NewValidationError("azure account name, key and container are required", nil)
	}

	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid azure credentials", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net/", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to create blob client", err)
	}

	return &AzureStorage{client: client, container: container}, nil
}

func (s *AzureStorage) LoadImage(ctx context.Context, ref string) (image.Image, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, ref, nil)
	if err != nil {
		return nil, apperrors.NewImageLoadError(fmt.Sprintf("download of %s/%s failed", s.container, ref), err)
	}

	body := resp.Body
	defer body.Close()

	img, err := imaging.Decode(body, imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperrors.NewImageLoadError(fmt.Sprintf("failed to decode blob %s", ref), err)
	}
	return img, nil
}

// ListImages pages through the blobs whose name starts with prefix
func (s *AzureStorage) ListImages(ctx context.Context, prefix string) ([]string, error) {
	var opts *azblob.ListBlobsFlatOptions
	if prefix != "" {
		opts = &azblob.ListBlobsFlatOptions{Prefix: &prefix}
	}

	var refs []string
	pager := s.client.NewListBlobsFlatPager(s.container, opts)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, apperrors.NewImageLoadError(fmt.Sprintf("listing container %s failed", s.container), err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil || !IsImageFile(*item.Name) {
				continue
			}
			refs = append(refs, *item.Name)
		}
	}
	return refs, nil
}
