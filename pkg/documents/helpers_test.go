package documents

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theapemachine/docprovider/pkg/errors"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		flag int
	}{
		{"", Mode{Read: true}, os.O_RDONLY},
		{"r", Mode{Read: true}, os.O_RDONLY},
		{"w", Mode{Write: true, Truncate: true}, os.O_WRONLY | os.O_TRUNC},
		{"wt", Mode{Write: true, Truncate: true}, os.O_WRONLY | os.O_TRUNC},
		{"wa", Mode{Write: true, Append: true}, os.O_WRONLY | os.O_APPEND},
		{"rw", Mode{Read: true, Write: true}, os.O_RDWR},
		{"rwt", Mode{Read: true, Write: true, Truncate: true}, os.O_RDWR | os.O_TRUNC},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.flag, got.Flag())
			assert.Zero(t, got.Flag()&os.O_CREATE)
		})
	}

	for _, bad := range []string{"x", "R", "rwa", "a"} {
		_, err := ParseMode(bad)
		assert.Equal(t, errors.InvalidArgument, errors.KindOf(err), bad)
	}
}

func TestCleanRel(t *testing.T) {
	good := map[string]string{
		"":          "",
		".":         "",
		"a":         "a",
		"a/b/":      "a/b",
		"a//b/./c":  "a/b/c",
		"a\\b":      "a/b",
		"./a/./b/.": "a/b",
	}

	for in, want := range good {
		got, err := cleanRel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"/etc", "..", "../a", "a/../../b", "a/..", "a\\..\\b"} {
		_, err := cleanRel(bad)
		assert.Error(t, err, bad)
	}
}

func TestIsDescendant(t *testing.T) {
	assert.True(t, isDescendant("", "a"))
	assert.True(t, isDescendant("a", "a/b/c"))
	assert.False(t, isDescendant("a", "a"))
	assert.False(t, isDescendant("a", "ab"))
	assert.False(t, isDescendant("a/b", "a"))
	assert.False(t, isDescendant("a", ""))
}

func TestMimeTypeFor(t *testing.T) {
	assert.Equal(t, MimeTypeDir, MimeTypeFor("photos", true))
	assert.Equal(t, "text/plain", MimeTypeFor("a.txt", false))
	assert.Equal(t, "text/plain", MimeTypeFor("A.TXT", false))
	assert.Equal(t, "image/png", MimeTypeFor("pic.png", false))
	assert.Equal(t, DefaultMimeType, MimeTypeFor("Makefile", false))
	assert.Equal(t, DefaultMimeType, MimeTypeFor("blob.nosuchext", false))
}

func TestAcceptsMimeType(t *testing.T) {
	assert.True(t, acceptsMimeType(nil, "text/plain"))
	assert.True(t, acceptsMimeType([]string{"*/*"}, "text/plain"))
	assert.True(t, acceptsMimeType([]string{"image/*"}, "image/jpeg"))
	assert.True(t, acceptsMimeType([]string{"image/*"}, MimeTypeDir))
	assert.True(t, acceptsMimeType([]string{"text/plain"}, "text/plain"))
	assert.False(t, acceptsMimeType([]string{"image/*"}, "text/plain"))
	assert.False(t, acceptsMimeType([]string{"text/plain"}, "text/html"))
}

func TestRootFlagsJSON(t *testing.T) {
	data, err := json.Marshal(RootSupportsCreate | RootSupportsIsChild)
	require.NoError(t, err)
	assert.JSONEq(t, `["create","is_child"]`, string(data))

	var flags RootFlags
	require.NoError(t, json.Unmarshal([]byte(`["search"," Recents "]`), &flags))
	assert.True(t, flags.Has(RootSupportsSearch))
	assert.True(t, flags.Has(RootSupportsRecents))
	assert.False(t, flags.Has(RootSupportsCreate))

	assert.Error(t, json.Unmarshal([]byte(`["teleport"]`), &flags))
}

func TestParseSortOrder(t *testing.T) {
	order, err := ParseSortOrder("-size")
	require.NoError(t, err)
	assert.Equal(t, SortOrder{Key: "size", Desc: true}, order)

	docs := []Document{
		{DisplayName: "b", Size: 1},
		{DisplayName: "a", Size: 1},
		{DisplayName: "c", Size: 9},
	}
	order.Sort(docs)

	assert.Equal(t, "c", docs[0].DisplayName)
	assert.Equal(t, "a", docs[1].DisplayName)
	assert.Equal(t, "b", docs[2].DisplayName)

	_, err = ParseSortOrder("-")
	assert.Equal(t, errors.InvalidArgument, errors.KindOf(err))
}

func TestDocumentIDIsStable(t *testing.T) {
	assert.Equal(t, DocumentID("docs", "a/b"), DocumentID("docs", "a/b"))
	assert.NotEqual(t, DocumentID("docs", "a/b"), DocumentID("other", "a/b"))
	assert.NotEqual(t, DocumentID("docs", ""), DocumentID("docs", "a"))
	assert.NotContains(t, DocumentID("docs", "a/b"), "/")
}
