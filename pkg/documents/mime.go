package documents

import (
	"mime"
	"path"
	"strings"

	"github.com/theapemachine/docprovider/pkg/errors"
)

// Types that must not depend on the host's mime.types file.
var commonExtensions = map[string]string{
	"text/plain":       ".txt",
	"text/markdown":    ".md",
	"text/csv":         ".csv",
	"text/html":        ".html",
	"application/json": ".json",
	"application/pdf":  ".pdf",
	"image/jpeg":       ".jpg",
	"image/png":        ".png",
}

var commonTypes = func() map[string]string {
	out := make(map[string]string, len(commonExtensions)+1)
	for mt, ext := range commonExtensions {
		out[ext] = mt
	}
	out[".jpeg"] = "image/jpeg"
	return out
}()

/*
MimeTypeFor derives the MIME type reported for a name. Directories get the
directory sentinel, files an extension based guess with parameters stripped.
*/
func MimeTypeFor(name string, isDir bool) string {
	if isDir {
		return MimeTypeDir
	}

	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return DefaultMimeType
	}

	if mt, ok := commonTypes[ext]; ok {
		return mt
	}

	mt := mime.TypeByExtension(ext)
	if mt == "" {
		return DefaultMimeType
	}

	if media, _, err := mime.ParseMediaType(mt); err == nil {
		return media
	}

	return mt
}

/*
acceptsMimeType applies a root's MIME filter. An empty filter, "*" or "*\/*"
accepts everything; "image/*" style entries match on the major type.
*/
func acceptsMimeType(filter []string, mimeType string) bool {
	if len(filter) == 0 || mimeType == MimeTypeDir {
		return true
	}

	major, _, _ := strings.Cut(mimeType, "/")

	for _, f := range filter {
		switch {
		case f == "*" || f == "*/*":
			return true
		case f == mimeType:
			return true
		case strings.HasSuffix(f, "/*") && strings.TrimSuffix(f, "/*") == major:
			return true
		}
	}

	return false
}

/*
extensionFor returns an extension whose derived type is mimeType, so a file
created with that type reports it back.
*/
func extensionFor(mimeType string) (string, bool) {
	if ext, ok := commonExtensions[mimeType]; ok {
		return ext, true
	}

	exts, err := mime.ExtensionsByType(mimeType)
	if err != nil {
		return "", false
	}

	for _, ext := range exts {
		if MimeTypeFor("f"+ext, false) == mimeType {
			return ext, true
		}
	}

	return "", false
}

/*
nameForMimeType makes displayName carry mimeType. A name whose extension
already maps to the type is kept; otherwise the type's extension is appended.
Types with no known extension are refused, since the type could not be read
back from the name.
*/
func nameForMimeType(displayName, mimeType string) (string, error) {
	if MimeTypeFor(displayName, false) == mimeType {
		return displayName, nil
	}

	ext, ok := extensionFor(mimeType)
	if !ok {
		return "", errors.Newf(errors.InvalidArgument, "create", "", "no file extension is known for %s", mimeType)
	}

	return displayName + ext, nil
}
