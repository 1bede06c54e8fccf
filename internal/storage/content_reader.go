package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/simple-content/pkg/simplecontent"
)

// ContentProvider reads source images from a simple-content service. Locators
// are content IDs.
type ContentProvider struct {
	service simplecontent.Service
	maxSize int64
}

// NewContentProvider creates a provider backed by a simple-content service.
func NewContentProvider(service simplecontent.Service, maxSize int64) *ContentProvider {
	return &ContentProvider{
		service: service,
		maxSize: maxSize,
	}
}

// Fetch downloads the content identified by locator.
func (p *ContentProvider) Fetch(ctx context.Context, locator string) ([]byte, error) {
	id, err := uuid.Parse(locator)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid content ID: %v", ErrInvalidLocator, err)
	}

	if p.maxSize > 0 {
		// Details are advisory; readLimited still enforces the cap.
		if meta, err := p.Metadata(ctx, locator); err == nil && meta.Size > p.maxSize {
			return nil, fmt.Errorf("%w: %d bytes", ErrSourceTooLarge, meta.Size)
		}
	}

	reader, err := p.service.DownloadContent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to download content: %w", err)
	}
	defer reader.Close()

	return readLimited(reader, p.maxSize)
}

// Metadata returns size and type details for the content identified by locator.
func (p *ContentProvider) Metadata(ctx context.Context, locator string) (*Metadata, error) {
	id, err := uuid.Parse(locator)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid content ID: %v", ErrInvalidLocator, err)
	}

	details, err := p.service.GetContentDetails(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get content details: %w", err)
	}

	return &Metadata{
		Size:        details.FileSize,
		ContentType: details.MimeType,
	}, nil
}
