package media

import (
    "context"
    "fmt"
    "os"
    "path/filepath"
)

// DiskStore writes objects below a local directory.  It backs development
// setups where no bucket is available; the HTTP server serves the
// directory under /media.
type DiskStore struct {
    dir     string
    baseURL string
}

// NewDiskStore creates dir if needed.
func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return nil, fmt.Errorf("create media dir: %w", err)
    }
    return &DiskStore{dir: dir, baseURL: baseURL}, nil
}

// Dir returns the root directory.
func (s *DiskStore) Dir() string { return s.dir }

// Put writes body to dir/key via a temp file and rename.
func (s *DiskStore) Put(ctx context.Context, key string, body []byte, _ string) (string, error) {
    key, err := cleanKey(key)
    if err != nil {
        return "", err
    }
    if err := ctx.Err(); err != nil {
        return "", err
    }
    path := filepath.Join(s.dir, filepath.FromSlash(key))
    if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
        return "", err
    }
    tmp := path + ".tmp"
    if err := os.WriteFile(tmp, body, 0o644); err != nil {
        return "", err
    }
    if err := os.Rename(tmp, path); err != nil {
        _ = os.Remove(tmp)
        return "", err
    }
    return joinURL(s.baseURL, key), nil
}
