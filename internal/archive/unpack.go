package archive

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mholt/archiver/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Archive is a downloaded file waiting to be unpacked.
type Archive struct {
	Path string // local file
	Name string // file name from the download URL, used to detect the format
}

// Unpacker extracts an archive into a directory.
type Unpacker interface {
	Unpack(ctx context.Context, a Archive, dir string) error
}

// Native extracts any archive format known to archiver.
type Native struct{}

func (Native) Unpack(ctx context.Context, a Archive, dir string) error {
	file, err := os.Open(a.Path)
	if err != nil {
		return errors.Wrap(err, "opening archive")
	}
	defer func() { _ = file.Close() }()

	format, input, err := archiver.Identify(ctx, a.Name, file)
	if errors.Is(err, archiver.NoMatch) {
		return errors.Wrapf(ErrUnsupportedArchive, "%s", a.Name)
	}
	if err != nil {
		return errors.Wrapf(err, "identifying %s", a.Name)
	}

	extractor, ok := format.(archiver.Extractor)
	if !ok {
		return errors.Wrapf(ErrUnsupportedArchive, "%s is not an archive", a.Name)
	}

	err = extractor.Extract(ctx, input, func(ctx context.Context, f archiver.FileInfo) error {
		target, err := safeJoin(dir, f.NameInArchive)
		if err != nil {
			return err
		}
		if f.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !f.Mode().IsRegular() {
			return nil
		}

		rc, err := f.Open()
		if err != nil {
			return err
		}
		defer func() { _ = rc.Close() }()

		return writeFile(target, rc)
	})
	if err != nil {
		return errors.Wrapf(err, "extracting %s", a.Name)
	}
	return nil
}

// Command extracts zip archives with the unzip binary.
type Command struct {
	Path string
}

func (c Command) Unpack(ctx context.Context, a Archive, dir string) error {
	if c.Path == "" {
		return errors.Wrap(ErrNoEngine, "unzip command not available")
	}
	cmd := exec.CommandContext(ctx, c.Path, "-qq", "-o", a.Path, "-d", dir)
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrapf(err, "unzip %s: %s", a.Name, strings.TrimSpace(string(out)))
	}
	return nil
}

// Decompress writes the single decompressed stream of a gzip or xz file.
type Decompress struct {
	Format archiver.Decompressor
}

func (d Decompress) Unpack(_ context.Context, a Archive, dir string) error {
	file, err := os.Open(a.Path)
	if err != nil {
		return errors.Wrap(err, "opening archive")
	}
	defer func() { _ = file.Close() }()

	rc, err := d.Format.OpenReader(file)
	if err != nil {
		return errors.Wrapf(err, "decompressing %s", a.Name)
	}
	defer func() { _ = rc.Close() }()

	name := strings.TrimSuffix(a.Name, filepath.Ext(a.Name))
	target, err := safeJoin(dir, name)
	if err != nil {
		return err
	}
	return writeFile(target, rc)
}

// Fallback tries Primary and, when it fails, Secondary. The error of the
// second attempt is returned.
type Fallback struct {
	Primary   Unpacker
	Secondary Unpacker
	Logger    *zap.Logger
}

func (f Fallback) Unpack(ctx context.Context, a Archive, dir string) error {
	err := f.Primary.Unpack(ctx, a, dir)
	if err == nil {
		return nil
	}
	if f.Secondary == nil {
		return err
	}
	if f.Logger != nil {
		f.Logger.Debug("unpacking failed, trying fallback engine", zap.String("archive", a.Name), zap.Error(err))
	}
	if err2 := f.Secondary.Unpack(ctx, a, dir); err2 != nil {
		return errors.Wrapf(err2, "fallback after %v", err)
	}
	return nil
}

// safeJoin joins name onto dir and rejects entries that would end up outside dir.
func safeJoin(dir, name string) (string, error) {
	target := filepath.Join(dir, filepath.FromSlash(name))
	rel, err := filepath.Rel(dir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Wrapf(ErrUnsafePath, "%s", name)
	}
	return target, nil
}

func writeFile(target string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
