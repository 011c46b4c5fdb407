package pack

import (
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	ferrors "git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
)

// writeZip archives files (sorted, slash separated, relative to dir) into
// target. The archive is written to a temporary file and renamed into place.
func writeZip(dir string, files []string, target string) (err error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return ferrors.FileSystemError("create package directory").WithCause(err).Build()
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".themebuilder-*.zip")
	if err != nil {
		return ferrors.FileSystemError("create archive").WithCause(err).Build()
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	zw := zip.NewWriter(tmp)
	for _, rel := range files {
		if err := addFile(zw, dir, rel); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryPackage, "add file to archive").Fatal().WithContext("path", rel).Build()
		}
	}
	if err := zw.Close(); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryPackage, "finish archive").Fatal().Build()
	}
	if err := tmp.Close(); err != nil {
		return ferrors.FileSystemError("close archive").WithCause(err).Build()
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return ferrors.FileSystemError("move archive into place").WithCause(err).Build()
	}
	return nil
}

func addFile(zw *zip.Writer, dir, rel string) error {
	f, err := os.Open(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = rel
	hdr.Method = zip.Deflate
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}
