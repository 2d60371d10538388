package feedme

import (
	"sort"
	"strconv"
	"strings"
)

// feedKey returns a deterministic, injective string key for (name, args),
// suitable for use as a map key in the feed registry. It is never observed
// outside the package.
//
// Each component is encoded length-prefixed ("netstring" style) so that no
// combination of characters inside a name, an arg key, or an arg value can
// ever produce a collision with a different (name, args) pair.
func feedKey(name string, args map[string]string) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	writeSegment(&sb, name)
	for _, k := range keys {
		writeSegment(&sb, k)
		writeSegment(&sb, args[k])
	}
	return sb.String()
}

func writeSegment(sb *strings.Builder, s string) {
	sb.WriteString(strconv.Itoa(len(s)))
	sb.WriteByte(':')
	sb.WriteString(s)
}
