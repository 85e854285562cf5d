package errors

import (
	"sort"
	"strings"

	"github.com/cohesivestack/valgo"
)

/*
ValidationMessage flattens a failed valgo validation into one line, field by
field, instead of valgo's bare error count.
*/
func ValidationMessage(v *valgo.Validation) string {
	verr := v.ToValgoError()
	if verr == nil {
		return ""
	}

	fields := verr.Errors()

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		messages := fields[name].Messages()
		sort.Strings(messages)
		parts = append(parts, strings.Join(messages, ", "))
	}

	return strings.Join(parts, "; ")
}
