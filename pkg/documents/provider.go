package documents

import (
	"context"
	stderrors "errors"
	"io"
	"mime"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/theapemachine/docprovider/pkg/errors"
	"github.com/theapemachine/docprovider/pkg/metrics"
	"github.com/theapemachine/docprovider/pkg/notify"
)

/*
Provider is the document namespace mapper. Apart from the ID index it keeps
no state: every answer is read from the filesystem at call time. It is safe
for concurrent use; concurrent writers race on the filesystem's own
semantics.
*/
type Provider struct {
	backing      afero.Fs
	mounts       map[string]*mount
	order        []string
	index        *Index
	indexPath    string
	authorize    Authorizer
	notifier     Notifier
	closeHooks   []CloseHook
	metrics      *metrics.Operations
	freeSpace    func(path string) (int64, error)
	freeSpaceSet bool
}

/*
NewProvider mounts the configured roots, creating their base directories,
and loads the saved index when one is configured.
*/
func NewProvider(roots []RootConfig, opts ...Option) (*Provider, error) {
	p := &Provider{
		backing:   afero.NewOsFs(),
		mounts:    make(map[string]*mount, len(roots)),
		index:     NewIndex(),
		authorize: func(context.Context, string) bool { return true },
	}

	for _, opt := range opts {
		opt(p)
	}

	if !p.freeSpaceSet {
		if _, ok := p.backing.(*afero.OsFs); ok {
			p.freeSpace = diskFree
		}
	}

	if len(roots) == 0 {
		return nil, errors.Newf(errors.InvalidArgument, "mount", "", "no roots configured")
	}

	for _, cfg := range roots {
		if cfg.ID == "" {
			return nil, errors.Newf(errors.InvalidArgument, "mount", "", "root without id")
		}

		if _, dup := p.mounts[cfg.ID]; dup {
			return nil, errors.Newf(errors.AlreadyExists, "mount", cfg.ID, "duplicate root")
		}

		m, err := newMount(p.backing, cfg)
		if err != nil {
			return nil, errors.FromFS("mount", cfg.ID, err)
		}

		if p.indexPath != "" {
			m.hide(hostPath(p.backing, p.indexPath))
		}

		p.mounts[cfg.ID] = m
		p.order = append(p.order, cfg.ID)
		p.index.Put(cfg.ID, "")

		log.Debug("mounted root", "root", cfg.ID, "path", m.base)
	}

	if p.indexPath != "" {
		if err := p.index.Load(p.backing, p.indexPath); err != nil {
			return nil, err
		}
	}

	return p, nil
}

/*
Close persists the index when an index file is configured.
*/
func (p *Provider) Close() error {
	if p.indexPath == "" {
		return nil
	}

	return p.index.Save(p.backing, p.indexPath)
}

func (p *Provider) Index() *Index {
	return p.index
}

func (p *Provider) observe(op string, start time.Time, err error) {
	if p.metrics != nil {
		p.metrics.Record(op, err, time.Since(start))
	}
}

func (p *Provider) publish(kind notify.Kind, m *mount, id, rel string) {
	if p.notifier == nil {
		return
	}

	p.notifier.Publish(notify.Change{
		Kind:       kind,
		RootID:     m.cfg.ID,
		DocumentID: id,
		ParentID:   DocumentID(m.cfg.ID, parentRel(rel)),
		At:         time.Now(),
	})
}

/*
resolve turns an ID into its mount and relative path. Unknown IDs, raw paths
included, are not found.
*/
func (p *Provider) resolve(ctx context.Context, op, id string) (*mount, string, error) {
	rootID, rel, ok := p.index.Lookup(id)
	if !ok || !p.authorize(ctx, rootID) {
		return nil, "", errors.New(errors.NotFound, op, id, nil)
	}

	m, ok := p.mounts[rootID]
	if !ok {
		return nil, "", errors.New(errors.NotFound, op, id, nil)
	}

	return m, rel, nil
}

func (p *Provider) mount(ctx context.Context, op, rootID string) (*mount, error) {
	m, ok := p.mounts[rootID]
	if !ok || !p.authorize(ctx, rootID) {
		return nil, errors.Newf(errors.NotFound, op, rootID, "no such root")
	}

	return m, nil
}

func (p *Provider) rootRecord(m *mount) Root {
	return Root{
		ID:             m.cfg.ID,
		DocumentID:     DocumentID(m.cfg.ID, ""),
		Title:          m.cfg.Title,
		Summary:        m.cfg.Summary,
		MimeTypes:      m.cfg.MimeTypes,
		AvailableBytes: p.availableBytes(m),
		Icon:           m.cfg.Icon,
		Flags:          m.cfg.Flags,
	}
}

func (p *Provider) availableBytes(m *mount) int64 {
	if m.cfg.Capacity > 0 {
		used, err := m.usage()
		if err != nil {
			log.Warn("failed to measure root usage", "root", m.cfg.ID, "error", err)
			return m.cfg.Capacity
		}

		return max(m.cfg.Capacity-used, 0)
	}

	if p.freeSpace != nil {
		if free, err := p.freeSpace(m.base); err == nil {
			return free
		}
	}

	return DefaultAvailableBytes
}

/*
Roots lists every configured root the caller is authorized to see.
*/
func (p *Provider) Roots(ctx context.Context) (roots []Root, err error) {
	defer p.observe("roots", time.Now(), nil)

	roots = make([]Root, 0, len(p.order))

	for _, id := range p.order {
		if p.authorize(ctx, id) {
			roots = append(roots, p.rootRecord(p.mounts[id]))
		}
	}

	return roots, nil
}

/*
Root returns a single root by its root ID.
*/
func (p *Provider) Root(ctx context.Context, rootID string) (root Root, err error) {
	defer func(start time.Time) { p.observe("root", start, err) }(time.Now())

	m, err := p.mount(ctx, "root", rootID)
	if err != nil {
		return Root{}, err
	}

	return p.rootRecord(m), nil
}

/*
Document stats a single document.
*/
func (p *Provider) Document(ctx context.Context, id string) (doc Document, err error) {
	defer func(start time.Time) { p.observe("document", start, err) }(time.Now())

	if err = ctx.Err(); err != nil {
		return Document{}, err
	}

	m, rel, err := p.resolve(ctx, "document", id)
	if err != nil {
		return Document{}, err
	}

	info, err := m.stat("document", id, rel)
	if err != nil {
		return Document{}, err
	}

	return m.document(id, rel, info), nil
}

/*
Children lists the immediate entries of a directory in the requested order.
Listing a regular file is unsupported rather than empty.
*/
func (p *Provider) Children(ctx context.Context, parentID, order string) (docs []Document, err error) {
	defer func(start time.Time) { p.observe("children", start, err) }(time.Now())

	sortOrder, err := ParseSortOrder(order)
	if err != nil {
		return nil, err
	}

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	m, rel, err := p.resolve(ctx, "children", parentID)
	if err != nil {
		return nil, err
	}

	info, err := m.stat("children", parentID, rel)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		return nil, errors.Newf(errors.Unsupported, "children", parentID, "not a directory")
	}

	entries, err := afero.ReadDir(m.fs, m.name(rel))
	if err != nil {
		return nil, errors.FromFS("children", parentID, err)
	}

	docs = make([]Document, 0, len(entries))

	for _, entry := range entries {
		childRel := joinRel(rel, entry.Name())

		if entry.Mode()&os.ModeSymlink != 0 || m.isPrivate(childRel) {
			continue
		}

		docs = append(docs, m.document(p.index.Put(m.cfg.ID, childRel), childRel, entry))
	}

	sortOrder.Sort(docs)
	return docs, nil
}

/*
IsChild reports whether child lies strictly below parent. It only compares
resolved paths and performs no filesystem I/O.
*/
func (p *Provider) IsChild(ctx context.Context, parentID, childID string) bool {
	parentRoot, parent, ok := p.index.Lookup(parentID)
	if !ok || !p.authorize(ctx, parentRoot) {
		return false
	}

	childRoot, child, ok := p.index.Lookup(childID)
	if !ok || childRoot != parentRoot {
		return false
	}

	return isDescendant(parent, child)
}

/*
Create makes a directory (directory MIME type) or an empty file named
displayName inside parentID and returns the new ID. A file whose name does
not already imply mimeType gets the type's extension appended, so Document
reports the type it was created with. Existing names are never replaced or
renamed: a collision is AlreadyExists.
*/
func (p *Provider) Create(ctx context.Context, parentID, mimeType, displayName string) (id string, err error) {
	defer func(start time.Time) { p.observe("create", start, err) }(time.Now())

	if err = validateDisplayName(displayName); err != nil {
		return "", err
	}

	if err = ctx.Err(); err != nil {
		return "", err
	}

	m, rel, err := p.resolve(ctx, "create", parentID)
	if err != nil {
		return "", err
	}

	if !m.cfg.Flags.Has(RootSupportsCreate) {
		return "", errors.Newf(errors.Unsupported, "create", parentID, "root %s is read-only", m.cfg.ID)
	}

	isDir := mimeType == MimeTypeDir

	if !isDir {
		if mimeType == "" {
			mimeType = MimeTypeFor(displayName, false)
		} else if media, _, perr := mime.ParseMediaType(mimeType); perr == nil {
			mimeType = media
		}

		if !acceptsMimeType(m.cfg.MimeTypes, mimeType) {
			return "", errors.Newf(errors.Unsupported, "create", parentID, "root does not accept %s", mimeType)
		}

		if displayName, err = nameForMimeType(displayName, mimeType); err != nil {
			return "", err
		}

		if err = validateDisplayName(displayName); err != nil {
			return "", err
		}
	}

	info, err := m.stat("create", parentID, rel)
	if err != nil {
		return "", err
	}

	if !info.IsDir() {
		return "", errors.Newf(errors.Unsupported, "create", parentID, "parent is not a directory")
	}

	childRel := joinRel(rel, displayName)
	name := m.name(childRel)

	if m.isPrivate(childRel) {
		return "", errors.Newf(errors.Unsupported, "create", parentID, "%s is reserved", displayName)
	}

	if isDir {
		err = m.fs.Mkdir(name, 0o755)
	} else {
		var f afero.File
		if f, err = m.fs.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644); err == nil {
			err = f.Close()
		}
	}

	if err != nil {
		return "", errors.FromFS("create", parentID, err)
	}

	id = p.index.Put(m.cfg.ID, childRel)
	p.publish(notify.Created, m, id, childRel)

	return id, nil
}

/*
Delete removes a document, recursively for directories. Roots cannot be
deleted.
*/
func (p *Provider) Delete(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { p.observe("delete", start, err) }(time.Now())

	if err = ctx.Err(); err != nil {
		return err
	}

	m, rel, err := p.resolve(ctx, "delete", id)
	if err != nil {
		return err
	}

	if rel == "" {
		return errors.Newf(errors.Unsupported, "delete", id, "cannot delete a root")
	}

	if _, err = m.stat("delete", id, rel); err != nil {
		return err
	}

	if err = m.fs.RemoveAll(m.name(rel)); err != nil {
		return errors.FromFS("delete", id, err)
	}

	p.index.Forget(m.cfg.ID, rel)
	p.publish(notify.Deleted, m, id, rel)

	return nil
}

/*
Open opens a regular file. The context is checked before resolving and again
before the file is opened. Closing a handle opened with write intent
publishes a modified change and runs the close hooks.
*/
func (p *Provider) Open(ctx context.Context, id, mode string) (handle *Handle, err error) {
	defer func(start time.Time) { p.observe("open", start, err) }(time.Now())

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	parsed, err := ParseMode(mode)
	if err != nil {
		return nil, err
	}

	m, rel, err := p.resolve(ctx, "open", id)
	if err != nil {
		return nil, err
	}

	info, err := m.stat("open", id, rel)
	if err != nil {
		return nil, err
	}

	if info.IsDir() {
		return nil, errors.Newf(errors.Unsupported, "open", id, "cannot open a directory")
	}

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	f, err := m.fs.OpenFile(m.name(rel), parsed.Flag(), 0)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.New(errors.NotFound, "open", id, err)
		}

		return nil, errors.New(errors.IOFailure, "open", id, err)
	}

	handle = &Handle{
		file: f,
		mode: parsed,
		doc:  m.document(id, rel, info),
	}

	if parsed.Write {
		handle.onClose = func() { p.written(m, id, rel) }
	}

	return handle, nil
}

func (p *Provider) written(m *mount, id, rel string) {
	p.publish(notify.Modified, m, id, rel)

	if len(p.closeHooks) == 0 {
		return
	}

	info, err := m.stat("close", id, rel)
	if err != nil {
		log.Warn("document vanished after close", "id", id, "error", err)
		return
	}

	event := ClosedEvent{
		Document: m.document(id, rel, info),
		RootID:   m.cfg.ID,
		RelPath:  rel,
		Open: func() (io.ReadCloser, error) {
			return m.fs.Open(m.name(rel))
		},
	}

	for _, hook := range p.closeHooks {
		hook.DocumentClosed(event)
	}
}
