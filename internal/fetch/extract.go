package fetch

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ulikunitz/xz"
)

// Format is an archive format recognised by its leading bytes.
type Format int

const (
	Unknown Format = iota
	Zip
	Gzip
	Bzip2
	Xz
	Tar
)

func (f Format) String() string {
	switch f {
	case Zip:
		return "zip"
	case Gzip:
		return "gzip"
	case Bzip2:
		return "bzip2"
	case Xz:
		return "xz"
	case Tar:
		return "tar"
	}
	return "unknown"
}

var magics = []struct {
	format Format
	offset int
	magic  []byte
}{
	{Zip, 0, []byte("PK\x03\x04")},
	{Zip, 0, []byte("PK\x05\x06")},
	{Gzip, 0, []byte{0x1f, 0x8b}},
	{Bzip2, 0, []byte("BZh")},
	{Xz, 0, []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}},
	{Tar, 257, []byte("ustar")},
}

// Sniff returns the format of an archive from its first bytes.
func Sniff(head []byte) Format {
	for _, m := range magics {
		if len(head) >= m.offset+len(m.magic) && bytes.Equal(head[m.offset:m.offset+len(m.magic)], m.magic) {
			return m.format
		}
	}
	return Unknown
}

var errEscape = errors.New("archive entry escapes destination")

// Extract unpacks archive into dir, which must exist.
func Extract(archive, dir string) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return err
	}
	format := Sniff(head[:n])
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	switch format {
	case Zip:
		info, err := f.Stat()
		if err != nil {
			return err
		}
		return extractZip(f, info.Size(), dir)
	case Gzip:
		zr, err := gzip.NewReader(bufio.NewReader(f))
		if err != nil {
			return err
		}
		defer zr.Close()
		return extractTar(zr, dir)
	case Bzip2:
		return extractTar(bzip2.NewReader(bufio.NewReader(f)), dir)
	case Xz:
		xzr, err := xz.NewReader(bufio.NewReader(f))
		if err != nil {
			return fmt.Errorf("failed to create xz reader: %w", err)
		}
		return extractTar(xzr, dir)
	case Tar:
		return extractTar(f, dir)
	}
	return fmt.Errorf("%s: unrecognized archive format", filepath.Base(archive))
}

// target returns the path of an archive entry below dir. Directories
// between dir and the entry must not be symlinks, so nothing is written
// through a link the archive planted earlier.
func target(dir, name string) (string, error) {
	p := filepath.Join(dir, filepath.FromSlash(name))
	rel, err := filepath.Rel(dir, p)
	if err != nil || escapes(rel) {
		return "", fmt.Errorf("%w: %s", errEscape, name)
	}
	parent := dir
	for _, elem := range strings.Split(filepath.Dir(rel), string(filepath.Separator)) {
		if elem == "." {
			continue
		}
		parent = filepath.Join(parent, elem)
		fi, err := os.Lstat(parent)
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		if err != nil {
			return "", err
		}
		if fi.Mode()&os.ModeSymlink != 0 {
			return "", fmt.Errorf("%w: %s is below symlink %s", errEscape, name, parent)
		}
	}
	return p, nil
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// checkLink rejects a symlink at path whose target leaves dir. Targets are
// relative, and ".." may only lead them, so resolving never climbs out of
// a directory reached through another link.
func checkLink(dir, path, link string) error {
	bad := fmt.Errorf("%w: %s -> %s", errEscape, path, link)
	if link == "" || filepath.IsAbs(link) || strings.HasPrefix(link, "/") {
		return bad
	}
	elems := strings.Split(filepath.ToSlash(link), "/")
	i := 0
	for i < len(elems) && elems[i] == ".." {
		i++
	}
	if slices.Contains(elems[i:], "..") {
		return bad
	}
	rel, err := filepath.Rel(dir, filepath.Join(filepath.Dir(path), filepath.FromSlash(link)))
	if err != nil || escapes(rel) {
		return bad
	}
	return nil
}

func extractTar(r io.Reader, dir string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("error reading tar: %w", err)
		}
		path, err := target(dir, hdr.Name)
		if err != nil {
			return err
		}
		mode := os.FileMode(hdr.Mode).Perm()
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, mode|0o700); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(path, tr, mode); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := symlink(dir, hdr.Linkname, path); err != nil {
				return err
			}
		case tar.TypeLink:
			old, err := target(dir, hdr.Linkname)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.Link(old, path); err != nil {
				return err
			}
		}
	}
}

func extractZip(r io.ReaderAt, size int64, dir string) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return err
	}
	for _, zf := range zr.File {
		path, err := target(dir, zf.Name)
		if err != nil {
			return err
		}
		mode := zf.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(path, mode.Perm()|0o700); err != nil {
				return err
			}
		case mode&os.ModeSymlink != 0:
			rc, err := zf.Open()
			if err != nil {
				return err
			}
			link, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return err
			}
			if err := symlink(dir, string(link), path); err != nil {
				return err
			}
		default:
			rc, err := zf.Open()
			if err != nil {
				return err
			}
			perm := mode.Perm()
			if perm == 0 {
				perm = 0o644
			}
			err = writeFile(path, rc, perm)
			rc.Close()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func writeFile(path string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	// A regular entry replaces a symlink of the same name.
	if fi, err := os.Lstat(path); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(path); err != nil {
			return err
		}
	}
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return out.Close()
}

func symlink(dir, link, path string) error {
	if err := checkLink(dir, path, link); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.Symlink(link, path); err != nil && !os.IsExist(err) {
		return fmt.Errorf("failed to create symlink %s -> %s: %w", path, link, err)
	}
	return nil
}
