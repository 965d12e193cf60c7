// Package download saves full documents from the library service to local
// storage.
package download

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/dharsanguruparan/ShelfView/internal/model"
)

// ErrNotPDF is returned when the service answered with something other than a
// PDF document.
var ErrNotPDF = errors.New("downloaded file is not a pdf")

// Source streams the stored document of a book. *client.Client implements it.
type Source interface {
	Download(ctx context.Context, bookID string, w io.Writer) error
}

type Saver struct {
	src    Source
	fs     afero.Fs
	dir    string
	logger *slog.Logger
}

func NewSaver(src Source, fs afero.Fs, dir string, logger *slog.Logger) *Saver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Saver{src: src, fs: fs, dir: dir, logger: logger}
}

// Save writes the document of book to <dir>/<title>.pdf and returns the path.
// The file is written under a temporary name and renamed once complete, so a
// failed download never leaves a partial document behind.
func (s *Saver) Save(ctx context.Context, book model.Book) (string, error) {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create download dir %s", s.dir)
	}
	path := filepath.Join(s.dir, book.FileName())
	partial := path + ".part"

	f, err := s.fs.Create(partial)
	if err != nil {
		return "", errors.Wrapf(err, "create %s", partial)
	}
	counter := &countingWriter{w: f}
	err = s.src.Download(ctx, book.ID, counter)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = s.fs.Remove(partial)
		return "", errors.Wrapf(err, "download book %s", book.ID)
	}

	if err := s.checkPDF(partial); err != nil {
		_ = s.fs.Remove(partial)
		return "", err
	}
	if err := s.fs.Rename(partial, path); err != nil {
		_ = s.fs.Remove(partial)
		return "", errors.Wrapf(err, "rename %s", partial)
	}

	s.logger.Info("document saved", "book_id", book.ID, "path", path, "size", humanize.Bytes(uint64(counter.n)))
	return path, nil
}

func (s *Saver) checkPDF(path string) error {
	f, err := s.fs.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return errors.Wrapf(err, "inspect %s", path)
	}
	if !mtype.Is("application/pdf") {
		return errors.Wrapf(ErrNotPDF, "got %s", mtype.String())
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
