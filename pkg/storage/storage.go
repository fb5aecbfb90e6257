// Package storage provides read access to photos held in Azure Blob Storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/JaimeStill/terra/pkg/formatting"
	"github.com/JaimeStill/terra/pkg/lifecycle"
)

// Scheme is the locator scheme served by this package.
const Scheme = "az"

// Ref identifies a blob. An empty Container means the configured default.
type Ref struct {
	Container string
	Key       string
}

// Blob is a fully read blob.
type Blob struct {
	Data        []byte
	ContentType string
}

// System manages blob reads and lifecycle coordination.
type System interface {
	// Start registers a startup hook that verifies the default container is reachable.
	Start(lc *lifecycle.Coordinator) error
	// Read downloads the blob at ref. Returns ErrNotFound if the blob does not exist
	// and ErrTooLarge if it exceeds the configured maximum size.
	Read(ctx context.Context, ref Ref) (*Blob, error)
}

type azure struct {
	client    *azblob.Client
	container string
	maxSize   int64
	logger    *slog.Logger
}

// New creates a storage system from the given configuration.
// A connection string takes precedence; otherwise the service URL is paired with
// the default Azure credential chain. No request is made until Start or Read.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &azure{
		client:    client,
		container: cfg.ContainerName,
		maxSize:   cfg.MaxBlobSizeBytes(),
		logger:    logger.With("system", "storage"),
	}, nil
}

func newClient(cfg *Config) (*azblob.Client, error) {
	if cfg.ConnectionString != "" {
		return azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	}

	var cred azcore.TokenCredential
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("default credential: %w", err)
	}
	return azblob.NewClient(cfg.ServiceURL, cred, nil)
}

// ParseRef parses an az://container/key locator.
func ParseRef(locator string) (Ref, error) {
	u, err := url.Parse(locator)
	if err != nil || u.Scheme != Scheme {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}

	ref := Ref{
		Container: u.Host,
		Key:       strings.TrimPrefix(u.Path, "/"),
	}
	if err := validateKey(ref.Key); err != nil {
		return Ref{}, err
	}
	return ref, nil
}

func (a *azure) Start(lc *lifecycle.Coordinator) error {
	a.logger.Info("starting storage system")

	lc.OnStartup(func() {
		_, err := a.client.
			ServiceClient().
			NewContainerClient(a.container).
			GetProperties(lc.Context(), nil)
		if err != nil {
			if bloberror.HasCode(err, bloberror.ContainerNotFound) {
				a.logger.Warn("default photo container missing", "container", a.container)
				return
			}
			a.logger.Error("storage container check failed", "error", err)
			return
		}

		a.logger.Info("storage container ready", "container", a.container)
	})

	return nil
}

func (a *azure) Read(ctx context.Context, ref Ref) (*Blob, error) {
	if err := validateKey(ref.Key); err != nil {
		return nil, err
	}
	container := a.containerOf(ref)

	resp, err := a.client.DownloadStream(ctx, container, ref.Key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("download blob %s/%s: %w", container, ref.Key, err)
	}
	defer resp.Body.Close()

	if resp.ContentLength != nil && *resp.ContentLength > a.maxSize {
		return nil, fmt.Errorf(
			"%w: %s/%s is %s",
			ErrTooLarge, container, ref.Key,
			formatting.FormatBytes(*resp.ContentLength, 1),
		)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, a.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read blob %s/%s: %w", container, ref.Key, err)
	}
	if int64(len(data)) > a.maxSize {
		return nil, fmt.Errorf("%w: %s/%s", ErrTooLarge, container, ref.Key)
	}

	blob := &Blob{Data: data, ContentType: "application/octet-stream"}
	if resp.ContentType != nil && *resp.ContentType != "" {
		blob.ContentType = *resp.ContentType
	}
	return blob, nil
}

func (a *azure) containerOf(ref Ref) string {
	if ref.Container != "" {
		return ref.Container
	}
	return a.container
}

func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}
