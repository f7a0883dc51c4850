package installer

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"
)

// Format is a supported package container.
type Format int

const (
	FormatUnknown Format = iota
	FormatZip
	FormatTarGz
	FormatTarXz
)

func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatTarGz:
		return "tar.gz"
	case FormatTarXz:
		return "tar.xz"
	default:
		return "unknown"
	}
}

var (
	ErrUnsupportedFormat = errors.New("unsupported package format")
	ErrUnsafePath        = errors.New("archive entry escapes destination")
)

var (
	zipMagic  = []byte("PK\x03\x04")
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// DetectFormat sniffs the container from its leading bytes.
func DetectFormat(header []byte) Format {
	switch {
	case bytes.HasPrefix(header, zipMagic):
		return FormatZip
	case bytes.HasPrefix(header, gzipMagic):
		return FormatTarGz
	case bytes.HasPrefix(header, xzMagic):
		return FormatTarXz
	default:
		return FormatUnknown
	}
}

func extractArchive(archivePath, dest string) error {
	//nolint:gosec // G304: archive lives in the launcher work directory
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	br := bufio.NewReader(f)
	header, _ := br.Peek(len(xzMagic))
	format := DetectFormat(header)
	log.Logf("extracting %s package", format)

	switch format {
	case FormatZip:
		info, err := f.Stat()
		if err != nil {
			return err
		}
		return extractZip(f, info.Size(), dest)
	case FormatTarGz:
		gzr, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("open gzip stream: %w", err)
		}
		defer func() { _ = gzr.Close() }()
		return extractTar(gzr, dest)
	case FormatTarXz:
		xzr, err := xz.NewReader(br)
		if err != nil {
			return fmt.Errorf("open xz stream: %w", err)
		}
		return extractTar(xzr, dest)
	default:
		return ErrUnsupportedFormat
	}
}

// safeJoin resolves name under dest, rejecting absolute paths and "..".
func safeJoin(dest, name string) (string, error) {
	clean := filepath.FromSlash(name)
	if !filepath.IsLocal(clean) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return filepath.Join(dest, clean), nil
}

func extractZip(r io.ReaderAt, size int64, dest string) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	for _, zf := range zr.File {
		target, err := safeJoin(dest, zf.Name)
		if err != nil {
			return err
		}
		if zf.FileInfo().IsDir() {
			//nolint:gosec // G301: game directories need standard permissions
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		if err := writeZipEntry(zf, target); err != nil {
			return err
		}
	}
	return nil
}

func writeZipEntry(zf *zip.File, target string) error {
	rc, err := zf.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", zf.Name, err)
	}
	defer func() { _ = rc.Close() }()
	return writeFile(target, rc, zf.Mode())
}

func extractTar(r io.Reader, dest string) error {
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar: %w", err)
		}
		target, err := safeJoin(dest, header.Name)
		if err != nil {
			return err
		}
		switch header.Typeflag {
		case tar.TypeDir:
			//nolint:gosec // G301: game directories need standard permissions
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, header.FileInfo().Mode()); err != nil {
				return err
			}
		default:
			log.Logf("skipping tar entry %s (type %c)", header.Name, header.Typeflag)
		}
	}
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	//nolint:gosec // G301: game directories need standard permissions
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	perm := mode.Perm() | 0600
	//nolint:gosec // G304: target was validated by safeJoin
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	//nolint:gosec // G110: packages come from the publisher's own manifest
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", target, err)
	}
	return out.Close()
}
