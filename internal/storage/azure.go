package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureStore keeps objects as block blobs in a single container.
type AzureStore struct {
	client    *azblob.Client
	account   string
	container string
}

// NewAzureStore connects to the storage account with a shared key.
func NewAzureStore(account, key, container string) (*AzureStore, error) {
	if account == "" || key == "" {
		return nil, errors.New("AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY are required for the azure backend")
	}
	if container == "" {
		return nil, errors.New("storage bucket is required")
	}

	credential, err := azblob.NewSharedKeyCredential(account, key)
	if err != nil {
		return nil, fmt.Errorf("creating shared key credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", account),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("creating blob client: %w", err)
	}

	return &AzureStore{client: client, account: account, container: container}, nil
}

// Put uploads data as a block blob with the given content type.
func (s *AzureStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return ErrInvalidKey
	}
	_, err := s.client.UploadBuffer(ctx, s.container, key, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// Delete removes a blob, ignoring blobs that do not exist.
func (s *AzureStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteBlob(ctx, s.container, key, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// PublicURL returns the blob URL.
func (s *AzureStore) PublicURL(key string) string {
	return fmt.Sprintf("https://%s.blob.core.windows.net/%s/%s",
		s.account, url.PathEscape(s.container), escapeKey(key))
}
