package vision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/JaimeStill/terra/pkg/formatting"
	"github.com/JaimeStill/terra/pkg/storage"
)

var (
	ErrUnsupportedLocator = errors.New("unsupported image locator")
	ErrFetchFailed        = errors.New("image fetch failed")
)

// Image is either inline bytes or a URI the model reads directly.
type Image struct {
	Data     []byte
	URI      string
	MIMEType string
}

// BlobReader reads photos from object storage.
type BlobReader interface {
	Read(ctx context.Context, ref storage.Ref) (*storage.Blob, error)
}

// Fetcher resolves image locators. http and https are downloaded and az is
// read through blobs. gs is passed by URI when the model backend reads Cloud
// Storage itself and refused otherwise. blobs may be nil, in which case az
// locators are refused.
type Fetcher struct {
	client   *http.Client
	blobs    BlobReader
	maxBytes int64
	gcsURIs  bool
}

// NewFetcher creates a Fetcher. maxBytes bounds downloaded images.
func NewFetcher(client *http.Client, blobs BlobReader, maxBytes int64) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{
		client:   client,
		blobs:    blobs,
		maxBytes: maxBytes,
	}
}

// PassGCSURIs controls whether gs locators are handed to the model by URI.
// Enable it only for a backend that can read them, such as Vertex AI.
func (f *Fetcher) PassGCSURIs(enabled bool) *Fetcher {
	f.gcsURIs = enabled
	return f
}

// Fetch resolves locator into an Image.
func (f *Fetcher) Fetch(ctx context.Context, locator string) (*Image, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLocator, locator)
	}

	switch u.Scheme {
	case "http", "https":
		return f.fetchHTTP(ctx, locator)
	case "gs":
		if !f.gcsURIs {
			return nil, fmt.Errorf("%w: gs locators need the %s backend", ErrUnsupportedLocator, BackendVertex)
		}
		return &Image{URI: locator, MIMEType: mimeFromPath(u.Path)}, nil
	case storage.Scheme:
		return f.fetchBlob(ctx, locator)
	}
	return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedLocator, u.Scheme)
}

func (f *Fetcher) fetchHTTP(ctx context.Context, locator string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %s", ErrFetchFailed, locator, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: image exceeds %s", ErrFetchFailed, formatting.FormatBytes(f.maxBytes, 0))
	}

	mt := resp.Header.Get("Content-Type")
	if mt == "" || mt == "application/octet-stream" {
		mt = http.DetectContentType(data)
	}
	return &Image{Data: data, MIMEType: mt}, nil
}

func (f *Fetcher) fetchBlob(ctx context.Context, locator string) (*Image, error) {
	if f.blobs == nil {
		return nil, fmt.Errorf("%w: object storage not configured", ErrUnsupportedLocator)
	}

	ref, err := storage.ParseRef(locator)
	if err != nil {
		return nil, err
	}

	blob, err := f.blobs.Read(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	mt := blob.ContentType
	if mt == "" || mt == "application/octet-stream" {
		mt = http.DetectContentType(blob.Data)
	}
	return &Image{Data: blob.Data, MIMEType: mt}, nil
}

func mimeFromPath(p string) string {
	if mt := mime.TypeByExtension(strings.ToLower(path.Ext(p))); mt != "" {
		return mt
	}
	return "image/jpeg"
}
