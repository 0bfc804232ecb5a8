// Package fetch downloads archives once and unpacks them once.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/liballeg/allegro-android/internal/msg"
	"github.com/liballeg/allegro-android/internal/recipe"
	"github.com/qiniu/x/log"
)

// licenseCookie accepts the Oracle binary license; other hosts ignore it.
const licenseCookie = "oraclelicense=accept-securebackup-cookie"

// Fetcher keeps downloaded archives in Downloads and unpacked trees in Dir.
type Fetcher struct {
	Dir       string
	Downloads string
	Client    *http.Client
	// Progress, if non-nil, receives a progress bar for every download.
	Progress io.Writer
}

// New returns a fetcher rooted at the destination path dest.
func New(dest string) *Fetcher {
	return &Fetcher{
		Dir:       dest,
		Downloads: filepath.Join(dest, "downloads"),
		Client:    http.DefaultClient,
		Progress:  msg.Stdout(),
	}
}

// File makes sure the archive behind url is in Downloads and returns its
// path. name overrides the file name taken from url. An existing file is
// reused; the body is streamed to <name>.part and renamed when complete, so
// the final path never holds a partial download.
func (f *Fetcher) File(ctx context.Context, url, name string) (string, error) {
	if name == "" {
		name = recipe.ArchiveName(url)
	}
	path := filepath.Join(f.Downloads, name)
	if _, err := os.Stat(path); err == nil {
		log.Debugf("fetch: reusing %s", path)
		return path, nil
	}
	if err := os.MkdirAll(f.Downloads, 0o755); err != nil {
		return "", err
	}

	msg.Info("downloading %s", url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Cookie", licenseCookie)
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("failed to download %s: %s", url, resp.Status)
	}

	part := path + ".part"
	out, err := os.Create(part)
	if err != nil {
		return "", err
	}
	var w io.Writer = out
	var bar *msg.ProgressBar
	if f.Progress != nil {
		bar = msg.NewProgressBar(resp.ContentLength, 2, f.Progress)
		w = io.MultiWriter(out, bar)
	}
	n, err := io.Copy(w, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && resp.ContentLength >= 0 && n != resp.ContentLength {
		err = fmt.Errorf("short body: got %d of %d bytes", n, resp.ContentLength)
	}
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", url, err)
	}
	if bar != nil {
		bar.Finish()
	}
	if err := os.Rename(part, path); err != nil {
		return "", err
	}
	return path, nil
}

// FolderName returns the directory an archive unpacks to: its name without
// the last extension and without a trailing ".tar".
func FolderName(archive string) string {
	name := strings.TrimSuffix(archive, filepath.Ext(archive))
	return strings.TrimSuffix(name, ".tar")
}

// Unpack makes sure the archive behind url is unpacked and returns the
// folder holding its contents. sub, when set, places the contents at
// <folder>/<sub> instead. An existing folder is returned without any
// network or extraction work.
func (f *Fetcher) Unpack(ctx context.Context, url, name, sub string) (string, error) {
	if name == "" {
		name = recipe.ArchiveName(url)
	}
	folder := filepath.Join(f.Dir, FolderName(name))
	if _, err := os.Stat(folder); err == nil {
		log.Debugf("fetch: %s already unpacked", folder)
		return folder, nil
	}

	archive, err := f.File(ctx, url, name)
	if err != nil {
		return "", err
	}

	staging := folder + ".part"
	if err := os.RemoveAll(staging); err != nil {
		return "", err
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return "", err
	}
	msg.Info("unpacking %s", filepath.Base(archive))
	if err := Extract(archive, staging); err != nil {
		os.RemoveAll(staging)
		return "", fmt.Errorf("failed to unpack %s: %w", archive, err)
	}
	if err := promote(staging, folder, sub); err != nil {
		os.RemoveAll(staging)
		return "", fmt.Errorf("failed to unpack %s: %w", archive, err)
	}
	return folder, nil
}

// promote moves the single top-level directory of staging to its final
// place and removes staging. When staging holds anything else, staging
// itself becomes the result.
func promote(staging, folder, sub string) error {
	src := staging
	entries, err := os.ReadDir(staging)
	if err != nil {
		return err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		src = filepath.Join(staging, entries[0].Name())
	}

	dst := folder
	if sub != "" {
		dst = filepath.Join(folder, sub)
		if src == staging {
			// Unpack into a nested name first so staging can be moved under
			// the folder it is going to live in.
			inner := filepath.Join(staging, ".contents")
			if err := moveContents(staging, inner); err != nil {
				return err
			}
			src = inner
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
	}
	if err := os.Rename(src, dst); err != nil {
		return err
	}
	if src == staging {
		return nil
	}
	return os.RemoveAll(staging)
}

func moveContents(dir, into string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	if err := os.Mkdir(into, 0o755); err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.Rename(filepath.Join(dir, e.Name()), filepath.Join(into, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
