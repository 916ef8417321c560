// Package archive downloads translation archives and unpacks them into
// language directories without disturbing files already there.
package archive

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mholt/archiver/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/git-pkgs/wp-translations/fetch"
	"github.com/git-pkgs/wp-translations/internal/core"
)

var (
	ErrNotDirectory       = errors.New("target exists and is not a directory")
	ErrUnknownKind        = errors.New("unknown archive kind")
	ErrUnsupportedArchive = errors.New("unsupported archive")
	ErrNoEngine           = errors.New("no unpack engine available")
	ErrUnsafePath         = errors.New("archive entry escapes target directory")
)

// Source is what to download.
type Source struct {
	URL  string
	Kind core.ArchiveKind
}

// SourceFor returns the Source of a translation record.
func SourceFor(r core.Record) Source {
	return Source{URL: r.PackageURL, Kind: r.ArchiveKind()}
}

// Downloader fetches archives and unpacks them into target directories.
type Downloader struct {
	fetcher fetch.FetcherInterface
	caps    Capabilities
	logger  *zap.Logger
	native  Unpacker
	command Unpacker
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Downloader) {
		d.logger = l
	}
}

// WithZipEngines replaces the native and command zip engines.
func WithZipEngines(native, command Unpacker) Option {
	return func(d *Downloader) {
		d.native = native
		d.command = command
	}
}

// New creates a Downloader.
func New(fetcher fetch.FetcherInterface, caps Capabilities, opts ...Option) *Downloader {
	d := &Downloader{
		fetcher: fetcher,
		caps:    caps,
		logger:  zap.NewNop(),
		native:  Native{},
		command: Command{Path: caps.UnzipCommand},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download fetches src and unpacks it into target.
//
// A missing target is created and unpacked into directly. An existing target
// directory is never cleared: the archive is unpacked into a sibling temporary
// directory whose files are then copied over, replacing files of the same name.
func (d *Downloader) Download(ctx context.Context, src Source, target string) error {
	info, err := fetch.ResolveSource(src.URL)
	if err != nil {
		return err
	}
	if src.Kind == "" {
		return errors.Wrapf(ErrUnknownKind, "%s", info.Filename)
	}
	unpacker, err := d.unpacker(src.Kind)
	if err != nil {
		return err
	}

	target = filepath.Clean(target)
	log := d.logger.With(zap.String("url", info.URL), zap.String("target", target))

	stat, err := os.Stat(target)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(target, 0o755); err != nil {
			return errors.Wrapf(err, "creating %s", target)
		}
		log.Debug("downloading into new directory")
		return d.fetchInto(ctx, info, src.Kind, unpacker, target)
	case err != nil:
		return errors.Wrapf(err, "inspecting %s", target)
	case !stat.IsDir():
		return errors.Wrapf(ErrNotDirectory, "%s", target)
	}

	tmp, err := os.MkdirTemp(filepath.Dir(target), "."+filepath.Base(target)+"-*")
	if err != nil {
		return errors.Wrap(err, "creating temporary directory")
	}
	defer func() {
		if err := os.RemoveAll(tmp); err != nil {
			log.Warn("failed to remove temporary directory", zap.String("dir", tmp), zap.Error(err))
		}
	}()

	log.Debug("downloading into temporary directory", zap.String("dir", tmp))
	if err := d.fetchInto(ctx, info, src.Kind, unpacker, tmp); err != nil {
		return err
	}
	return mergeInto(tmp, target)
}

func (d *Downloader) unpacker(kind core.ArchiveKind) (Unpacker, error) {
	switch kind {
	case core.KindFile:
		return nil, nil
	case core.KindZip:
		return d.zipUnpacker()
	case core.KindRar, core.KindTar:
		return Native{}, nil
	case core.KindGzip:
		return Decompress{Format: archiver.Gz{}}, nil
	case core.KindXz:
		return Decompress{Format: archiver.Xz{}}, nil
	}
	return nil, errors.Wrapf(ErrUnknownKind, "%s", kind)
}

func (d *Downloader) zipUnpacker() (Unpacker, error) {
	var native, command Unpacker
	if d.caps.NativeZip {
		native = d.native
	}
	if d.caps.UnzipCommand != "" {
		command = d.command
	}

	switch {
	case native == nil && command == nil:
		return nil, errors.Wrap(ErrNoEngine, "zip")
	case native == nil:
		return command, nil
	case command == nil:
		return native, nil
	case d.caps.preferCommand():
		return Fallback{Primary: command, Secondary: native, Logger: d.logger}, nil
	default:
		return Fallback{Primary: native, Secondary: command, Logger: d.logger}, nil
	}
}

func (d *Downloader) fetchInto(ctx context.Context, info *fetch.ArtifactInfo, kind core.ArchiveKind, unpacker Unpacker, dir string) error {
	artifact, err := d.fetcher.Fetch(ctx, info.URL)
	if err != nil {
		return errors.Wrapf(err, "downloading %s", info.URL)
	}
	defer func() { _ = artifact.Body.Close() }()

	if kind == core.KindFile {
		target, err := safeJoin(dir, info.Filename)
		if err != nil {
			return err
		}
		return errors.Wrapf(writeFile(target, artifact.Body), "writing %s", info.Filename)
	}

	tmp, err := os.CreateTemp("", "wp-translation-*-"+info.Filename)
	if err != nil {
		return errors.Wrap(err, "creating download file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, artifact.Body); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "downloading %s", info.URL)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing download file")
	}

	return unpacker.Unpack(ctx, Archive{Path: tmp.Name(), Name: info.Filename}, dir)
}

// mergeInto copies every file below src to the same relative path below dst.
func mergeInto(src, dst string) error {
	return filepath.WalkDir(src, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if entry.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !entry.Type().IsRegular() {
			return nil
		}

		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "replacing %s", target)
		}
		return errors.Wrapf(copyFile(path, target), "copying %s", rel)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	return writeFile(dst, in)
}
