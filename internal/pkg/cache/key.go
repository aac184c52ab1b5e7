package cache

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"
)

// Key builds a deterministic cache key for an operation: parameters are
// canonically ordered before hashing so that equal parameter sets always
// produce the same key, and the operation version is embedded so a schema
// change never silently serves a stale shape.
func Key(op string, version int, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(params[k])
		sb.WriteByte('|')
	}

	return fmt.Sprintf("%s:v%d:%016x", op, version, xxh3.HashString(sb.String()))
}
