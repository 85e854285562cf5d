package documents

import (
	"os"

	"github.com/theapemachine/docprovider/pkg/errors"
)

/*
Mode is a parsed open mode. The accepted grammar is r, w, wt, wa, rw and rwt;
any mode containing w carries write intent.
*/
type Mode struct {
	Read     bool
	Write    bool
	Truncate bool
	Append   bool
}

/*
ParseMode parses an open mode string. An empty mode means read-only.
*/
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "r":
		return Mode{Read: true}, nil
	case "w", "wt":
		return Mode{Write: true, Truncate: true}, nil
	case "wa":
		return Mode{Write: true, Append: true}, nil
	case "rw":
		return Mode{Read: true, Write: true}, nil
	case "rwt":
		return Mode{Read: true, Write: true, Truncate: true}, nil
	}

	return Mode{}, errors.Newf(errors.InvalidArgument, "open", "", "bad mode %q", s)
}

// Flag converts the mode to os.OpenFile flags. It never includes O_CREATE;
// documents are created through Create only.
func (m Mode) Flag() int {
	var flag int

	switch {
	case m.Read && m.Write:
		flag = os.O_RDWR
	case m.Write:
		flag = os.O_WRONLY
	default:
		flag = os.O_RDONLY
	}

	if m.Truncate {
		flag |= os.O_TRUNC
	}

	if m.Append {
		flag |= os.O_APPEND
	}

	return flag
}

func (m Mode) String() string {
	switch {
	case m.Read && m.Write && m.Truncate:
		return "rwt"
	case m.Read && m.Write:
		return "rw"
	case m.Write && m.Append:
		return "wa"
	case m.Write:
		return "wt"
	}

	return "r"
}
