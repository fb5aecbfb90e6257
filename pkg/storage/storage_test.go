package storage_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/terra/pkg/storage"
)

const accountKey = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func connString(endpoint string) string {
	return fmt.Sprintf(
		"DefaultEndpointsProtocol=http;AccountName=terrastore;AccountKey=%s;BlobEndpoint=%s/terrastore;",
		accountKey, endpoint,
	)
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		name    string
		locator string
		want    storage.Ref
		wantErr error
	}{
		{"container and key", "az://photos/user-1/before.jpg", storage.Ref{Container: "photos", Key: "user-1/before.jpg"}, nil},
		{"wrong scheme", "https://example.com/a.jpg", storage.Ref{}, storage.ErrInvalidLocator},
		{"missing key", "az://photos", storage.Ref{}, storage.ErrEmptyKey},
		{"traversal", "az://photos/../secrets", storage.Ref{}, storage.ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := storage.ParseRef(tt.locator)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigFinalize(t *testing.T) {
	cfg := storage.Config{}
	require.NoError(t, cfg.Finalize(nil))

	assert.Equal(t, "cleanup-photos", cfg.ContainerName)
	assert.False(t, cfg.Configured())
	assert.Equal(t, int64(20*1024*1024), cfg.MaxBlobSizeBytes())

	both := storage.Config{ConnectionString: "x", ServiceURL: "https://acct.blob.core.windows.net"}
	assert.Error(t, both.Finalize(nil))

	insecure := storage.Config{ServiceURL: "http://acct.blob.core.windows.net"}
	assert.Error(t, insecure.Finalize(nil))
}

func TestConfigEnv(t *testing.T) {
	t.Setenv("TEST_STORAGE_URL", "https://acct.blob.core.windows.net")
	t.Setenv("TEST_STORAGE_MAX", "1MB")

	cfg := storage.Config{}
	require.NoError(t, cfg.Finalize(&storage.Env{ServiceURL: "TEST_STORAGE_URL", MaxBlobSize: "TEST_STORAGE_MAX"}))

	assert.True(t, cfg.Configured())
	assert.Equal(t, int64(1024*1024), cfg.MaxBlobSizeBytes())
}

func TestMapHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, storage.MapHTTPStatus(storage.ErrNotFound))
	assert.Equal(t, http.StatusBadRequest, storage.MapHTTPStatus(fmt.Errorf("x: %w", storage.ErrInvalidLocator)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, storage.MapHTTPStatus(storage.ErrTooLarge))
	assert.Equal(t, http.StatusInternalServerError, storage.MapHTTPStatus(errors.New("boom")))
}

func TestNewInvalidConnectionString(t *testing.T) {
	_, err := storage.New(&storage.Config{ContainerName: "photos", ConnectionString: "not-a-connection-string"}, discard())
	assert.Error(t, err)
}

func newBlobServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/photos/before.jpg"):
			w.Header().Set("Content-Type", "image/jpeg")
			w.WriteHeader(http.StatusOK)
			io.WriteString(w, "jpeg-bytes")
		case strings.HasSuffix(r.URL.Path, "/photos/huge.jpg"):
			w.Header().Set("Content-Type", "image/jpeg")
			w.WriteHeader(http.StatusOK)
			io.WriteString(w, strings.Repeat("x", 2048))
		default:
			w.Header().Set("x-ms-error-code", "BlobNotFound")
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestRead(t *testing.T) {
	srv := newBlobServer(t)
	defer srv.Close()

	cfg := &storage.Config{ConnectionString: connString(srv.URL), MaxBlobSize: "1KB"}
	require.NoError(t, cfg.Finalize(nil))

	sys, err := storage.New(cfg, discard())
	require.NoError(t, err)

	ctx := context.Background()

	blob, err := sys.Read(ctx, storage.Ref{Container: "photos", Key: "before.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(blob.Data))
	assert.Equal(t, "image/jpeg", blob.ContentType)

	_, err = sys.Read(ctx, storage.Ref{Container: "photos", Key: "missing.jpg"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = sys.Read(ctx, storage.Ref{Container: "photos", Key: "huge.jpg"})
	assert.ErrorIs(t, err, storage.ErrTooLarge)

	_, err = sys.Read(ctx, storage.Ref{Key: ""})
	assert.ErrorIs(t, err, storage.ErrEmptyKey)
}
