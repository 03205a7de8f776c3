package signing

import (
	"sort"
	"strings"
)

// Separator joins canonical tokens, and the canonical string with the secret.
const Separator = ":"

// Canonicalize renders p as its canonical string: top-level fields sorted by
// name in byte order, Null fields dropped, remaining tokens joined with ":".
// A payload without renderable fields yields "".
func Canonicalize(p Payload) string {
	fields := p.Fields()
	sorted := make(Fields, len(fields))
	copy(sorted, fields)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	var b strings.Builder
	written := 0
	for _, field := range sorted {
		token, ok := field.Value.Render()
		if !ok {
			continue
		}
		if written > 0 {
			b.WriteString(Separator)
		}
		b.WriteString(token)
		written++
	}
	return b.String()
}
