package sender

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const maxImageBytes = 10 << 20 // 10 MiB

// ImageResolver turns a step's image reference into bytes before the
// pool hands them to a sender. A reference is one of: an external URL,
// a localhost upload URL minted by the admin upload endpoint, or a bare
// file path.
type ImageResolver struct {
	client     *http.Client
	uploadsDir string
}

func NewImageResolver(uploadsDir string) *ImageResolver {
	return &ImageResolver{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		uploadsDir: uploadsDir,
	}
}

// Resolve fetches or opens the image bytes for ref.
func (r *ImageResolver) Resolve(ctx context.Context, ref string) ([]byte, error) {
	if ref == "" {
		return nil, fmt.Errorf("empty image reference")
	}

	switch {
	case isLocalUploadURL(ref):
		return r.readUpload(ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return r.fetch(ctx, ref)
	default:
		data, err := os.ReadFile(ref)
		if err != nil {
			return nil, fmt.Errorf("reading image file: %w", err)
		}
		return data, nil
	}
}

// isLocalUploadURL recognizes URLs the admin upload endpoint hands out,
// which point back at this deployment's uploads directory.
func isLocalUploadURL(ref string) bool {
	return (strings.HasPrefix(ref, "http://localhost") || strings.HasPrefix(ref, "http://127.0.0.1")) &&
		strings.Contains(ref, "/uploads/")
}

// readUpload maps a localhost upload URL into the uploads directory.
// Only the final path element is used, so a crafted URL cannot escape
// the directory.
func (r *ImageResolver) readUpload(ref string) ([]byte, error) {
	idx := strings.LastIndex(ref, "/uploads/")
	filename := filepath.Base(ref[idx+len("/uploads/"):])

	path := filepath.Join(r.uploadsDir, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading upload %s: %w", filename, err)
	}
	return data, nil
}

func (r *ImageResolver) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building image request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching image: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("reading image body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("fetching image: empty body")
	}

	return data, nil
}
