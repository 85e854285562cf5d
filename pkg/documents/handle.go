package documents

import (
	"sync"

	"github.com/spf13/afero"
)

/*
Handle is an open document. It is an io.ReadWriteSeeker, io.ReaderAt and
io.Closer; Close is idempotent.
*/
type Handle struct {
	file    afero.File
	mode    Mode
	doc     Document
	onClose func()
	once    sync.Once
	err     error
}

func (h *Handle) Read(p []byte) (int, error) {
	return h.file.Read(p)
}

func (h *Handle) ReadAt(p []byte, off int64) (int, error) {
	return h.file.ReadAt(p, off)
}

func (h *Handle) Write(p []byte) (int, error) {
	return h.file.Write(p)
}

func (h *Handle) Seek(offset int64, whence int) (int64, error) {
	return h.file.Seek(offset, whence)
}

// Document is the document as it was when the handle was opened.
func (h *Handle) Document() Document {
	return h.doc
}

func (h *Handle) Mode() Mode {
	return h.mode
}

func (h *Handle) Close() error {
	h.once.Do(func() {
		if h.err = h.file.Close(); h.err != nil {
			return
		}

		if h.onClose != nil {
			h.onClose()
		}
	})

	return h.err
}
