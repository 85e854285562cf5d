package documents

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/afero"
	"github.com/theapemachine/docprovider/pkg/errors"
	"github.com/theapemachine/docprovider/pkg/metrics"
	"github.com/theapemachine/docprovider/pkg/notify"
)

type recordingHook struct {
	mu     sync.Mutex
	events []ClosedEvent
}

func (h *recordingHook) DocumentClosed(event ClosedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

func newTestProvider(fs afero.Fs, opts ...Option) *Provider {
	p, err := NewProvider([]RootConfig{{
		ID:      "docs",
		Title:   "Documents",
		Summary: "Local documents",
		Path:    "/data/docs",
		Flags:   DefaultRootFlags,
	}}, append([]Option{WithFilesystem(fs)}, opts...)...)

	So(err, ShouldBeNil)
	return p
}

func seed(fs afero.Fs) {
	So(afero.WriteFile(fs, "/data/docs/a.txt", []byte("0123456789"), 0o644), ShouldBeNil)
	So(fs.Mkdir("/data/docs/b", 0o755), ShouldBeNil)
}

func TestRoots(t *testing.T) {
	Convey("Given a provider with one root", t, func() {
		fs := afero.NewMemMapFs()
		ctx := context.Background()

		Convey("When listing roots", func() {
			p := newTestProvider(fs)
			roots, err := p.Roots(ctx)

			Convey("Then the configured root is returned", func() {
				So(err, ShouldBeNil)
				So(roots, ShouldHaveLength, 1)
				So(roots[0].ID, ShouldEqual, "docs")
				So(roots[0].Title, ShouldEqual, "Documents")
				So(roots[0].DocumentID, ShouldEqual, DocumentID("docs", ""))
				So(roots[0].AvailableBytes, ShouldEqual, DefaultAvailableBytes)
				So(roots[0].Flags.Has(RootSupportsIsChild), ShouldBeTrue)
			})

			Convey("Then the base directory exists", func() {
				ok, err := afero.DirExists(fs, "/data/docs")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When the caller is not authorized", func() {
			p := newTestProvider(fs, WithAuthorizer(func(context.Context, string) bool { return false }))
			seed(fs)
			roots, err := p.Roots(ctx)

			Convey("Then no roots are visible", func() {
				So(err, ShouldBeNil)
				So(roots, ShouldBeEmpty)
			})

			Convey("Then the root's documents are not found", func() {
				_, err := p.Root(ctx, "docs")
				So(errors.KindOf(err), ShouldEqual, errors.NotFound)

				_, err = p.Children(ctx, DocumentID("docs", ""), "")
				So(errors.KindOf(err), ShouldEqual, errors.NotFound)
			})
		})

		Convey("When the root has a capacity", func() {
			p, err := NewProvider([]RootConfig{{ID: "quota", Path: "/data/quota", Capacity: 100, Flags: DefaultRootFlags}}, WithFilesystem(fs))
			So(err, ShouldBeNil)
			So(afero.WriteFile(fs, "/data/quota/a.txt", []byte("0123456789"), 0o644), ShouldBeNil)

			root, err := p.Root(ctx, "quota")

			Convey("Then used bytes are subtracted", func() {
				So(err, ShouldBeNil)
				So(root.AvailableBytes, ShouldEqual, 90)
			})
		})

		Convey("When asking for an unknown root", func() {
			p := newTestProvider(fs)
			_, err := p.Root(ctx, "nope")

			Convey("Then it is not found", func() {
				So(errors.KindOf(err), ShouldEqual, errors.NotFound)
			})
		})
	})
}

func TestSymlinkedRoot(t *testing.T) {
	Convey("Given a root configured through a symbolic link", t, func() {
		dir := t.TempDir()
		target := filepath.Join(dir, "real")
		outside := filepath.Join(dir, "outside")

		So(os.MkdirAll(target, 0o755), ShouldBeNil)
		So(os.MkdirAll(outside, 0o755), ShouldBeNil)
		So(os.WriteFile(filepath.Join(target, "a.txt"), []byte("hello"), 0o644), ShouldBeNil)
		So(os.Symlink(target, filepath.Join(dir, "link")), ShouldBeNil)
		So(os.Symlink(outside, filepath.Join(target, "escape")), ShouldBeNil)

		p, err := NewProvider([]RootConfig{{
			ID:    "home",
			Path:  filepath.Join(dir, "link"),
			Flags: DefaultRootFlags,
		}}, WithFilesystem(afero.NewOsFs()), WithFreeSpace(func(string) (int64, error) { return 1, nil }))
		So(err, ShouldBeNil)

		ctx := context.Background()
		rootID := DocumentID("home", "")

		Convey("Then the root is a directory named after the link", func() {
			doc, err := p.Document(ctx, rootID)
			So(err, ShouldBeNil)
			So(doc.IsDir(), ShouldBeTrue)
			So(doc.DisplayName, ShouldEqual, "link")
		})

		Convey("Then its children are listed and links below it are hidden", func() {
			docs, err := p.Children(ctx, rootID, "")
			So(err, ShouldBeNil)
			So(docs, ShouldHaveLength, 1)
			So(docs[0].DisplayName, ShouldEqual, "a.txt")
		})

		Convey("Then a link below the root does not resolve", func() {
			id := p.Index().Put("home", "escape")
			_, err := p.Document(ctx, id)
			So(errors.KindOf(err), ShouldEqual, errors.NotFound)
		})
	})
}

func TestNewProviderRejectsBadConfig(t *testing.T) {
	Convey("Given a bad root configuration", t, func() {
		fs := afero.NewMemMapFs()

		Convey("Then no roots is an error", func() {
			_, err := NewProvider(nil, WithFilesystem(fs))
			So(errors.KindOf(err), ShouldEqual, errors.InvalidArgument)
		})

		Convey("Then duplicate root ids are an error", func() {
			_, err := NewProvider([]RootConfig{{ID: "a", Path: "/a"}, {ID: "a", Path: "/b"}}, WithFilesystem(fs))
			So(errors.KindOf(err), ShouldEqual, errors.AlreadyExists)
		})
	})
}

func TestChildrenScenario(t *testing.T) {
	Convey("Given a base directory with a.txt (10 bytes) and directory b", t, func() {
		fs := afero.NewMemMapFs()
		p := newTestProvider(fs)
		seed(fs)
		ctx := context.Background()
		base := DocumentID("docs", "")

		Convey("When listing the base", func() {
			docs, err := p.Children(ctx, base, "")

			Convey("Then both entries are returned in name order", func() {
				So(err, ShouldBeNil)
				So(docs, ShouldHaveLength, 2)

				So(docs[0].DisplayName, ShouldEqual, "a.txt")
				So(docs[0].MimeType, ShouldEqual, "text/plain")
				So(docs[0].Size, ShouldEqual, 10)
				So(docs[0].IsDir(), ShouldBeFalse)
				So(docs[0].Flags.Has(DocumentSupportsDelete), ShouldBeTrue)

				So(docs[1].DisplayName, ShouldEqual, "b")
				So(docs[1].MimeType, ShouldEqual, MimeTypeDir)
				So(docs[1].Flags.Has(DocumentDirSupportsCreate), ShouldBeTrue)
			})

			Convey("Then parent/child relations hold", func() {
				b := docs[1].ID
				So(p.IsChild(ctx, base, b), ShouldBeTrue)
				So(p.IsChild(ctx, b, base), ShouldBeFalse)
				So(p.IsChild(ctx, base, base), ShouldBeFalse)
			})

			Convey("Then every listed ID stats to itself", func() {
				for _, d := range docs {
					doc, err := p.Document(ctx, d.ID)
					So(err, ShouldBeNil)
					So(doc.ID, ShouldEqual, d.ID)
					So(doc.DisplayName, ShouldEqual, d.DisplayName)
				}
			})
		})

		Convey("When listing in descending name order", func() {
			docs, err := p.Children(ctx, base, "-name")

			So(err, ShouldBeNil)
			So(docs[0].DisplayName, ShouldEqual, "b")
		})

		Convey("When entries change between listings", func() {
			_, err := p.Children(ctx, base, "")
			So(err, ShouldBeNil)

			So(afero.WriteFile(fs, "/data/docs/c.md", []byte("# c"), 0o644), ShouldBeNil)
			So(fs.Remove("/data/docs/a.txt"), ShouldBeNil)

			docs, err := p.Children(ctx, base, "")

			Convey("Then the listing reflects the filesystem at call time", func() {
				So(err, ShouldBeNil)
				So(docs, ShouldHaveLength, 2)
				So(docs[0].DisplayName, ShouldEqual, "b")
				So(docs[1].DisplayName, ShouldEqual, "c.md")
			})
		})

		Convey("When listing a regular file", func() {
			docs, err := p.Children(ctx, base, "")
			So(err, ShouldBeNil)

			_, err = p.Children(ctx, docs[0].ID, "")

			Convey("Then it fails instead of returning nothing", func() {
				So(errors.KindOf(err), ShouldEqual, errors.Unsupported)
			})
		})

		Convey("When the sort order is unknown", func() {
			_, err := p.Children(ctx, base, "color")

			Convey("Then it is an invalid argument", func() {
				So(errors.KindOf(err), ShouldEqual, errors.InvalidArgument)
			})
		})
	})
}

func TestManufacturedIDs(t *testing.T) {
	Convey("Given a seeded provider", t, func() {
		fs := afero.NewMemMapFs()
		p := newTestProvider(fs)
		seed(fs)
		ctx := context.Background()

		for _, id := range []string{
			"/data/docs/a.txt",
			"a.txt",
			"../../etc/passwd",
			DocumentID("docs", "a.txt"),
			DocumentID("other", ""),
		} {
			_, err := p.Document(ctx, id)
			So(errors.KindOf(err), ShouldEqual, errors.NotFound)
			So(stderrors.Is(err, errors.NotFound), ShouldBeTrue)
		}

		Convey("Then an ID resolves once its path has been surfaced", func() {
			_, err := p.Children(ctx, DocumentID("docs", ""), "")
			So(err, ShouldBeNil)

			doc, err := p.Document(ctx, DocumentID("docs", "a.txt"))
			So(err, ShouldBeNil)
			So(doc.Size, ShouldEqual, 10)
		})
	})
}

func TestCreate(t *testing.T) {
	Convey("Given an empty root", t, func() {
		fs := afero.NewMemMapFs()
		hub := notify.NewHub()
		ops := metrics.NewOperations()
		p := newTestProvider(fs, WithNotifier(hub), WithMetrics(ops))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		base := DocumentID("docs", "")
		sub := hub.Subscribe(ctx, base)

		Convey("When creating a directory", func() {
			id, err := p.Create(ctx, base, MimeTypeDir, "sub")
			So(err, ShouldBeNil)

			Convey("Then the listing contains it as a directory", func() {
				docs, err := p.Children(ctx, base, "")
				So(err, ShouldBeNil)
				So(docs, ShouldHaveLength, 1)
				So(docs[0].ID, ShouldEqual, id)
				So(docs[0].DisplayName, ShouldEqual, "sub")
				So(docs[0].MimeType, ShouldEqual, MimeTypeDir)
			})

			Convey("Then it round-trips through Document", func() {
				doc, err := p.Document(ctx, id)
				So(err, ShouldBeNil)
				So(doc.DisplayName, ShouldEqual, "sub")
				So(doc.IsDir(), ShouldBeTrue)
				So(p.IsChild(ctx, base, id), ShouldBeTrue)
			})

			Convey("Then observers are told the parent changed", func() {
				change := <-sub.C
				So(change.Kind, ShouldEqual, notify.Created)
				So(change.ParentID, ShouldEqual, base)
				So(change.DocumentID, ShouldEqual, id)
			})

			Convey("Then the operation is measured", func() {
				So(ops.Get("create").Calls, ShouldEqual, 1)
			})
		})

		Convey("When creating a file", func() {
			id, err := p.Create(ctx, base, "text/plain", "notes.txt")
			So(err, ShouldBeNil)

			doc, err := p.Document(ctx, id)

			Convey("Then an empty file exists", func() {
				So(err, ShouldBeNil)
				So(doc.DisplayName, ShouldEqual, "notes.txt")
				So(doc.MimeType, ShouldEqual, "text/plain")
				So(doc.Size, ShouldEqual, 0)

				ok, err := afero.Exists(fs, "/data/docs/notes.txt")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
			})

			Convey("Then creating it again collides", func() {
				_, err := p.Create(ctx, base, "text/plain", "notes.txt")
				So(errors.KindOf(err), ShouldEqual, errors.AlreadyExists)
				So(ops.Get("create").Failures, ShouldEqual, 1)
			})

			Convey("Then creating inside the file is unsupported", func() {
				_, err := p.Create(ctx, id, "text/plain", "inner.txt")
				So(errors.KindOf(err), ShouldEqual, errors.Unsupported)
			})
		})

		Convey("When the name does not carry the requested type", func() {
			id, err := p.Create(ctx, base, "text/plain; charset=utf-8", "notes")
			So(err, ShouldBeNil)

			doc, err := p.Document(ctx, id)

			Convey("Then the type's extension is appended and reported back", func() {
				So(err, ShouldBeNil)
				So(doc.DisplayName, ShouldEqual, "notes.txt")
				So(doc.MimeType, ShouldEqual, "text/plain")
			})

			Convey("Then a misleading extension is kept in front of the right one", func() {
				id, err := p.Create(ctx, base, "application/json", "data.txt")
				So(err, ShouldBeNil)

				doc, err := p.Document(ctx, id)
				So(err, ShouldBeNil)
				So(doc.DisplayName, ShouldEqual, "data.txt.json")
				So(doc.MimeType, ShouldEqual, "application/json")
			})

			Convey("Then a type with no known extension is refused", func() {
				_, err := p.Create(ctx, base, "application/x-nothing-maps-here", "blob")
				So(errors.KindOf(err), ShouldEqual, errors.InvalidArgument)
			})
		})

		Convey("When the display name is not a single segment", func() {
			for _, name := range []string{"", "  ", ".", "..", "a/b", "../escape", "a\\b"} {
				_, err := p.Create(ctx, base, MimeTypeDir, name)
				So(errors.KindOf(err), ShouldEqual, errors.InvalidArgument)
			}

			Convey("Then the error names the rule that failed", func() {
				_, err := p.Create(ctx, base, MimeTypeDir, "a/b")
				So(err.Error(), ShouldContainSubstring, "single path segment")
			})

			Convey("Then nothing was created", func() {
				docs, err := p.Children(ctx, base, "")
				So(err, ShouldBeNil)
				So(docs, ShouldBeEmpty)
			})
		})
	})
}

func TestCreateRespectsRootPolicy(t *testing.T) {
	Convey("Given a read-only image root", t, func() {
		fs := afero.NewMemMapFs()
		p, err := NewProvider([]RootConfig{{
			ID:        "photos",
			Path:      "/data/photos",
			MimeTypes: []string{"image/*"},
			Flags:     RootSupportsSearch,
		}}, WithFilesystem(fs))
		So(err, ShouldBeNil)

		_, err = p.Create(context.Background(), DocumentID("photos", ""), "image/png", "a.png")

		Convey("Then creation is unsupported", func() {
			So(errors.KindOf(err), ShouldEqual, errors.Unsupported)
		})
	})

	Convey("Given an image root that supports create", t, func() {
		fs := afero.NewMemMapFs()
		p, err := NewProvider([]RootConfig{{
			ID:        "photos",
			Path:      "/data/photos",
			MimeTypes: []string{"image/*"},
			Flags:     RootSupportsCreate,
		}}, WithFilesystem(fs))
		So(err, ShouldBeNil)

		ctx := context.Background()
		base := DocumentID("photos", "")

		Convey("Then images are accepted", func() {
			_, err := p.Create(ctx, base, "image/png", "a.png")
			So(err, ShouldBeNil)
		})

		Convey("Then other types are rejected", func() {
			_, err := p.Create(ctx, base, "text/plain", "a.txt")
			So(errors.KindOf(err), ShouldEqual, errors.Unsupported)
		})

		Convey("Then directories are always accepted", func() {
			_, err := p.Create(ctx, base, MimeTypeDir, "album")
			So(err, ShouldBeNil)
		})
	})
}

func TestDelete(t *testing.T) {
	Convey("Given a seeded provider", t, func() {
		fs := afero.NewMemMapFs()
		p := newTestProvider(fs)
		seed(fs)
		ctx := context.Background()
		base := DocumentID("docs", "")

		b, err := p.Create(ctx, DocumentID("docs", ""), MimeTypeDir, "nested")
		So(err, ShouldBeNil)
		inner, err := p.Create(ctx, b, "text/plain", "inner.txt")
		So(err, ShouldBeNil)

		Convey("When deleting a directory", func() {
			So(p.Delete(ctx, b), ShouldBeNil)

			Convey("Then it and its descendants are gone", func() {
				_, err := p.Document(ctx, b)
				So(errors.KindOf(err), ShouldEqual, errors.NotFound)

				_, err = p.Document(ctx, inner)
				So(errors.KindOf(err), ShouldEqual, errors.NotFound)

				ok, _ := afero.Exists(fs, "/data/docs/nested")
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When deleting the root", func() {
			err := p.Delete(ctx, base)

			Convey("Then it is unsupported", func() {
				So(errors.KindOf(err), ShouldEqual, errors.Unsupported)
			})
		})

		Convey("When deleting something already gone", func() {
			So(fs.RemoveAll("/data/docs/nested"), ShouldBeNil)
			err := p.Delete(ctx, b)

			Convey("Then it is not found", func() {
				So(errors.KindOf(err), ShouldEqual, errors.NotFound)
			})
		})
	})
}

func TestOpen(t *testing.T) {
	Convey("Given a seeded provider with observers", t, func() {
		fs := afero.NewMemMapFs()
		hub := notify.NewHub()
		hook := &recordingHook{}
		p := newTestProvider(fs, WithNotifier(hub), WithCloseHook(hook))
		seed(fs)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		docs, err := p.Children(ctx, DocumentID("docs", ""), "")
		So(err, ShouldBeNil)
		file, dir := docs[0].ID, docs[1].ID
		sub := hub.Subscribe(ctx, "")

		Convey("When reading a file", func() {
			h, err := p.Open(ctx, file, "r")
			So(err, ShouldBeNil)

			data, err := io.ReadAll(h)
			So(err, ShouldBeNil)
			So(h.Close(), ShouldBeNil)

			Convey("Then the content is returned and no hook runs", func() {
				So(string(data), ShouldEqual, "0123456789")
				So(hook.events, ShouldBeEmpty)
			})
		})

		Convey("When writing a file", func() {
			h, err := p.Open(ctx, file, "wt")
			So(err, ShouldBeNil)

			_, err = h.Write([]byte("hello"))
			So(err, ShouldBeNil)
			So(h.Close(), ShouldBeNil)
			So(h.Close(), ShouldBeNil)

			Convey("Then the content is replaced", func() {
				data, err := afero.ReadFile(fs, "/data/docs/a.txt")
				So(err, ShouldBeNil)
				So(string(data), ShouldEqual, "hello")
			})

			Convey("Then the close hook runs exactly once", func() {
				So(hook.events, ShouldHaveLength, 1)
				So(hook.events[0].RelPath, ShouldEqual, "a.txt")
				So(hook.events[0].Document.Size, ShouldEqual, 5)

				rc, err := hook.events[0].Open()
				So(err, ShouldBeNil)
				defer rc.Close()
				data, _ := io.ReadAll(rc)
				So(string(data), ShouldEqual, "hello")
			})

			Convey("Then a modified change is published", func() {
				change := <-sub.C
				So(change.Kind, ShouldEqual, notify.Modified)
				So(change.DocumentID, ShouldEqual, file)
			})
		})

		Convey("When appending", func() {
			h, err := p.Open(ctx, file, "wa")
			So(err, ShouldBeNil)
			_, err = h.Write([]byte("ab"))
			So(err, ShouldBeNil)
			So(h.Close(), ShouldBeNil)

			data, _ := afero.ReadFile(fs, "/data/docs/a.txt")
			So(string(data), ShouldEqual, "0123456789ab")
		})

		Convey("When opening a directory", func() {
			_, err := p.Open(ctx, dir, "r")
			So(errors.KindOf(err), ShouldEqual, errors.Unsupported)
		})

		Convey("When the mode is malformed", func() {
			_, err := p.Open(ctx, file, "x")
			So(errors.KindOf(err), ShouldEqual, errors.InvalidArgument)
		})

		Convey("When the file was removed", func() {
			So(fs.Remove("/data/docs/a.txt"), ShouldBeNil)
			_, err := p.Open(ctx, file, "r")
			So(errors.KindOf(err), ShouldEqual, errors.NotFound)
		})

		Convey("When the context is already canceled", func() {
			cctx, ccancel := context.WithCancel(context.Background())
			ccancel()
			_, err := p.Open(cctx, file, "r")
			So(err, ShouldEqual, context.Canceled)
		})
	})
}

func TestSearchAndRecent(t *testing.T) {
	Convey("Given a tree of documents", t, func() {
		fs := afero.NewMemMapFs()
		p := newTestProvider(fs)
		seed(fs)
		So(afero.WriteFile(fs, "/data/docs/b/Alpha.md", []byte("alpha"), 0o644), ShouldBeNil)
		So(afero.WriteFile(fs, "/data/docs/b/zeta.txt", []byte("z"), 0o644), ShouldBeNil)

		now := time.Now()
		So(fs.Chtimes("/data/docs/a.txt", now, now.Add(-time.Hour)), ShouldBeNil)
		So(fs.Chtimes("/data/docs/b/Alpha.md", now, now.Add(-time.Minute)), ShouldBeNil)
		So(fs.Chtimes("/data/docs/b/zeta.txt", now, now.Add(-2*time.Hour)), ShouldBeNil)

		ctx := context.Background()

		Convey("When searching case-insensitively", func() {
			docs, err := p.Search(ctx, "docs", "A", 0)

			Convey("Then every matching name is found, by name", func() {
				So(err, ShouldBeNil)
				So(docs, ShouldHaveLength, 3)
				So(docs[0].DisplayName, ShouldEqual, "Alpha.md")
				So(docs[1].DisplayName, ShouldEqual, "a.txt")
				So(docs[2].DisplayName, ShouldEqual, "zeta.txt")
			})

			Convey("Then results are addressable and below the root", func() {
				doc, err := p.Document(ctx, docs[0].ID)
				So(err, ShouldBeNil)
				So(doc.Size, ShouldEqual, 5)
				So(p.IsChild(ctx, DocumentID("docs", ""), docs[0].ID), ShouldBeTrue)
			})
		})

		Convey("When searching with a limit", func() {
			docs, err := p.Search(ctx, "docs", "a", 1)
			So(err, ShouldBeNil)
			So(docs, ShouldHaveLength, 1)
		})

		Convey("When the query is blank", func() {
			_, err := p.Search(ctx, "docs", " ", 0)
			So(errors.KindOf(err), ShouldEqual, errors.InvalidArgument)
		})

		Convey("When the search is canceled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := p.Search(cctx, "docs", "a", 0)
			So(err, ShouldEqual, context.Canceled)
		})

		Convey("When listing recents", func() {
			docs, err := p.Recent(ctx, "docs", 0)

			Convey("Then files come newest first", func() {
				So(err, ShouldBeNil)
				So(docs, ShouldHaveLength, 3)
				So(docs[0].DisplayName, ShouldEqual, "Alpha.md")
				So(docs[1].DisplayName, ShouldEqual, "a.txt")
				So(docs[2].DisplayName, ShouldEqual, "zeta.txt")
			})
		})
	})
}

func TestIndexPersistence(t *testing.T) {
	Convey("Given a provider with an index file", t, func() {
		fs := afero.NewMemMapFs()
		ctx := context.Background()

		p := newTestProvider(fs, WithIndexFile("/state/index.json"))
		id, err := p.Create(ctx, DocumentID("docs", ""), "text/plain", "kept.txt")
		So(err, ShouldBeNil)
		So(p.Close(), ShouldBeNil)

		Convey("When a new provider loads it", func() {
			q := newTestProvider(fs, WithIndexFile("/state/index.json"))
			doc, err := q.Document(ctx, id)

			Convey("Then previously surfaced IDs still resolve", func() {
				So(err, ShouldBeNil)
				So(doc.DisplayName, ShouldEqual, "kept.txt")
			})
		})

		Convey("When the saved index was tampered with", func() {
			forged := `{"` + DocumentID("docs", "../../etc/passwd") + `":{"root":"docs","path":"../../etc/passwd"},` +
				`"deadbeef":{"root":"docs","path":"kept.txt"}}`
			So(afero.WriteFile(fs, "/state/index.json", []byte(forged), 0o600), ShouldBeNil)

			q := newTestProvider(fs, WithIndexFile("/state/index.json"))

			Convey("Then forged entries are dropped", func() {
				_, err := q.Document(ctx, DocumentID("docs", "../../etc/passwd"))
				So(errors.KindOf(err), ShouldEqual, errors.NotFound)

				_, err = q.Document(ctx, "deadbeef")
				So(errors.KindOf(err), ShouldEqual, errors.NotFound)
			})
		})
	})
}

func TestIndexFileInsideRoot(t *testing.T) {
	Convey("Given an index file kept inside the root it indexes", t, func() {
		fs := afero.NewMemMapFs()
		ctx := context.Background()
		seed(fs)

		p := newTestProvider(fs, WithIndexFile("/data/docs/index.json"))
		_, err := p.Children(ctx, DocumentID("docs", ""), "")
		So(err, ShouldBeNil)
		So(p.Close(), ShouldBeNil)

		exists, _ := afero.Exists(fs, "/data/docs/index.json")
		So(exists, ShouldBeTrue)

		q := newTestProvider(fs, WithIndexFile("/data/docs/index.json"))

		Convey("Then listings leave it out", func() {
			docs, err := q.Children(ctx, DocumentID("docs", ""), "")
			So(err, ShouldBeNil)
			So(docs, ShouldHaveLength, 2)

			found, err := q.Search(ctx, "docs", "index", 0)
			So(err, ShouldBeNil)
			So(found, ShouldBeEmpty)

			recent, err := q.Recent(ctx, "docs", 0)
			So(err, ShouldBeNil)
			for _, doc := range recent {
				So(doc.DisplayName, ShouldNotEqual, "index.json")
			}
		})

		Convey("Then it cannot be reached or replaced", func() {
			_, err := q.Document(ctx, q.Index().Put("docs", "index.json"))
			So(errors.KindOf(err), ShouldEqual, errors.NotFound)

			_, err = q.Create(ctx, DocumentID("docs", ""), "application/json", "index.json")
			So(errors.KindOf(err), ShouldEqual, errors.Unsupported)
		})
	})
}
