package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/AngelCh415/moi-etl/internal/utils"
)

// GetWithRetry downloads url, retrying transport errors and 5xx responses.
// 4xx responses are returned at once.
func GetWithRetry(ctx context.Context, c HTTPClient, url string, b utils.Backoff) ([]byte, string, error) {
	var (
		body []byte
		name string
	)
	err := b.Do(ctx, func(i int) error {
		data, hdr, err := getBody(ctx, c, url)
		if err != nil {
			var se *statusError
			if errors.As(err, &se) && se.code < 500 {
				return utils.Permanent(err)
			}
			return err
		}
		body, name = data, filenameFrom(url, hdr.Get("Content-Disposition"))
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return body, name, nil
}

func filenameFrom(rawURL, disposition string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil && params["filename"] != "" {
			return params["filename"]
		}
	}
	if u, err := url.Parse(rawURL); err == nil {
		if p, err := url.PathUnescape(path.Base(u.Path)); err == nil && p != "/" && p != "." {
			return p
		}
	}
	return rawURL
}

// Loader reads exports from local paths or http(s) URLs.
type Loader struct {
	c       HTTPClient
	backoff utils.Backoff
	log     *slog.Logger
}

func NewLoader(c HTTPClient, log *slog.Logger) *Loader {
	return &Loader{c: c, backoff: utils.NewBackoff(100*time.Millisecond, 2), log: log}
}

func (l *Loader) Load(ctx context.Context, ref string) (*SourceFile, error) {
	if ref == "" {
		return nil, nil
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		body, name, err := GetWithRetry(ctx, l.c, ref, l.backoff)
		if err != nil {
			return nil, fmt.Errorf("download %s: %w", ref, err)
		}
		l.log.Info("downloaded export", slog.String("url", ref), slog.String("name", name), slog.Int("bytes", len(body)))
		return &SourceFile{Name: name, Content: body}, nil
	}
	b, err := os.ReadFile(ref)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}
	return &SourceFile{Name: filepath.Base(ref), Content: b}, nil
}

// LoadAll resolves the three references; empty ones stay nil.
func (l *Loader) LoadAll(ctx context.Context, shopify, meta, google string) (Files, error) {
	var fs Files
	var err error
	if fs.Shopify, err = l.Load(ctx, shopify); err != nil {
		return fs, err
	}
	if fs.Meta, err = l.Load(ctx, meta); err != nil {
		return fs, err
	}
	if fs.Google, err = l.Load(ctx, google); err != nil {
		return fs, err
	}
	return fs, nil
}
