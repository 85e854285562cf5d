package documents

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RootFlags is the capability set advertised by a root.
type RootFlags uint32

const (
	RootSupportsCreate RootFlags = 1 << iota
	RootSupportsRecents
	RootSupportsSearch
	RootSupportsIsChild
)

// DefaultRootFlags is what a root gets when its configuration names none.
const DefaultRootFlags = RootSupportsCreate | RootSupportsRecents | RootSupportsSearch | RootSupportsIsChild

var rootFlagNames = []struct {
	flag RootFlags
	name string
}{
	{RootSupportsCreate, "create"},
	{RootSupportsRecents, "recents"},
	{RootSupportsSearch, "search"},
	{RootSupportsIsChild, "is_child"},
}

func (f RootFlags) Has(flag RootFlags) bool {
	return f&flag == flag
}

func (f RootFlags) Strings() []string {
	out := make([]string, 0, len(rootFlagNames))

	for _, n := range rootFlagNames {
		if f.Has(n.flag) {
			out = append(out, n.name)
		}
	}

	return out
}

func (f RootFlags) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Strings())
}

func (f *RootFlags) UnmarshalJSON(data []byte) error {
	var names []string

	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}

	parsed, err := ParseRootFlags(names)
	if err != nil {
		return err
	}

	*f = parsed
	return nil
}

/*
ParseRootFlags turns configuration names (create, recents, search, is_child)
into a flag set.
*/
func ParseRootFlags(names []string) (RootFlags, error) {
	var flags RootFlags

outer:
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))

		for _, n := range rootFlagNames {
			if n.name == name {
				flags |= n.flag
				continue outer
			}
		}

		return 0, fmt.Errorf("unknown root flag %q", name)
	}

	return flags, nil
}

// DocumentFlags is the capability set of a single document.
type DocumentFlags uint32

const (
	DocumentSupportsDelete DocumentFlags = 1 << iota
	DocumentDirSupportsCreate
	DocumentSupportsWrite
)

var documentFlagNames = []struct {
	flag DocumentFlags
	name string
}{
	{DocumentSupportsDelete, "delete"},
	{DocumentDirSupportsCreate, "dir_create"},
	{DocumentSupportsWrite, "write"},
}

func (f DocumentFlags) Has(flag DocumentFlags) bool {
	return f&flag == flag
}

func (f DocumentFlags) Strings() []string {
	out := make([]string, 0, len(documentFlagNames))

	for _, n := range documentFlagNames {
		if f.Has(n.flag) {
			out = append(out, n.name)
		}
	}

	return out
}

func (f DocumentFlags) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Strings())
}

func (f *DocumentFlags) UnmarshalJSON(data []byte) error {
	var names []string

	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}

	var flags DocumentFlags

outer:
	for _, name := range names {
		for _, n := range documentFlagNames {
			if n.name == name {
				flags |= n.flag
				continue outer
			}
		}

		return fmt.Errorf("unknown document flag %q", name)
	}

	*f = flags
	return nil
}

func documentFlagsFor(isDir bool) DocumentFlags {
	if isDir {
		return DocumentSupportsDelete | DocumentDirSupportsCreate
	}

	return DocumentSupportsDelete | DocumentSupportsWrite
}
