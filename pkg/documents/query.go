package documents

import (
	"context"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/theapemachine/docprovider/pkg/errors"
)

const (
	defaultSearchLimit = 50
	defaultRecentLimit = 20
)

/*
SortOrder orders listings by name, modification time or size. Ties are
broken by name so the order is always deterministic.
*/
type SortOrder struct {
	Key  string
	Desc bool
}

/*
ParseSortOrder accepts name, modified and size, optionally prefixed with "-"
for descending. The empty string is ascending by name.
*/
func ParseSortOrder(s string) (SortOrder, error) {
	order := SortOrder{Key: "name"}

	if s == "" {
		return order, nil
	}

	if strings.HasPrefix(s, "-") {
		order.Desc = true
		s = s[1:]
	}

	switch s {
	case "name", "modified", "size":
		order.Key = s
		return order, nil
	}

	return SortOrder{}, errors.Newf(errors.InvalidArgument, "sort", "", "unknown sort order %q", s)
}

func (o SortOrder) Sort(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]

		var less, equal bool

		switch o.Key {
		case "modified":
			less, equal = a.LastModified.Before(b.LastModified), a.LastModified.Equal(b.LastModified)
		case "size":
			less, equal = a.Size < b.Size, a.Size == b.Size
		default:
			less, equal = a.DisplayName < b.DisplayName, a.DisplayName == b.DisplayName
		}

		if equal {
			return a.DisplayName < b.DisplayName
		}

		if o.Desc {
			return !less
		}

		return less
	})
}

/*
Search walks a root for documents whose display name contains query, case
insensitively. The walk stops as soon as ctx is done.
*/
func (p *Provider) Search(ctx context.Context, rootID, query string, limit int) (docs []Document, err error) {
	defer func(start time.Time) { p.observe("search", start, err) }(time.Now())

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.Newf(errors.InvalidArgument, "search", rootID, "empty query")
	}

	m, err := p.mount(ctx, "search", rootID)
	if err != nil {
		return nil, err
	}

	if !m.cfg.Flags.Has(RootSupportsSearch) {
		return nil, errors.Newf(errors.Unsupported, "search", rootID, "root does not support search")
	}

	if limit <= 0 {
		limit = defaultSearchLimit
	}

	needle := strings.ToLower(query)

	err = m.walk(func(rel string, info os.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if strings.Contains(strings.ToLower(path.Base(rel)), needle) {
			docs = append(docs, m.document(p.index.Put(m.cfg.ID, rel), rel, info))
		}

		return nil
	})

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, errors.FromFS("search", rootID, err)
	}

	SortOrder{Key: "name"}.Sort(docs)

	if len(docs) > limit {
		docs = docs[:limit]
	}

	return docs, nil
}

/*
Recent returns the most recently modified regular files of a root, newest
first.
*/
func (p *Provider) Recent(ctx context.Context, rootID string, limit int) (docs []Document, err error) {
	defer func(start time.Time) { p.observe("recent", start, err) }(time.Now())

	m, err := p.mount(ctx, "recent", rootID)
	if err != nil {
		return nil, err
	}

	if !m.cfg.Flags.Has(RootSupportsRecents) {
		return nil, errors.Newf(errors.Unsupported, "recent", rootID, "root does not support recents")
	}

	if limit <= 0 {
		limit = defaultRecentLimit
	}

	err = m.walk(func(rel string, info os.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if info.Mode().IsRegular() {
			docs = append(docs, m.document(p.index.Put(m.cfg.ID, rel), rel, info))
		}

		return nil
	})

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, errors.FromFS("recent", rootID, err)
	}

	SortOrder{Key: "modified", Desc: true}.Sort(docs)

	if len(docs) > limit {
		docs = docs[:limit]
	}

	return docs, nil
}
