package documents

import (
	"path"
	"strings"

	"github.com/cohesivestack/valgo"
	"github.com/theapemachine/docprovider/pkg/errors"
)

const maxDisplayName = 255

/*
validateDisplayName rejects names that could not be a single path segment.
*/
func validateDisplayName(name string) error {
	v := valgo.Is(
		valgo.String(name, "displayName").
			Not().Blank().
			MaxLength(maxDisplayName).
			Not().EqualTo(".").
			Not().EqualTo("..").
			Passing(func(s string) bool {
				return !strings.ContainsAny(s, "/\\\x00")
			}, "{{title}} must be a single path segment"),
	)

	if !v.Valid() {
		return errors.Newf(errors.InvalidArgument, "create", "", "%s", errors.ValidationMessage(v))
	}

	return nil
}

/*
cleanRel normalises a root-relative slash path. It refuses absolute paths and
any ".." segment, so a cleaned path can never climb out of its root. The root
itself is the empty string.
*/
func cleanRel(rel string) (string, error) {
	rel = strings.ReplaceAll(rel, "\\", "/")

	if strings.HasPrefix(rel, "/") {
		return "", errors.Newf(errors.InvalidArgument, "resolve", "", "absolute path %q", rel)
	}

	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return "", errors.Newf(errors.InvalidArgument, "resolve", "", "path %q leaves its root", rel)
		}
	}

	rel = path.Clean("/" + rel)[1:]
	return rel, nil
}

func joinRel(parent, name string) string {
	if parent == "" {
		return name
	}

	return parent + "/" + name
}

func parentRel(rel string) string {
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		return rel[:i]
	}

	return ""
}

func segments(rel string) []string {
	if rel == "" {
		return nil
	}

	return strings.Split(rel, "/")
}

/*
isDescendant is the structural parent/child test: child has strictly more
segments than parent and starts with all of parent's segments.
*/
func isDescendant(parent, child string) bool {
	ps, cs := segments(parent), segments(child)

	if len(cs) <= len(ps) {
		return false
	}

	for i := range ps {
		if ps[i] != cs[i] {
			return false
		}
	}

	return true
}
