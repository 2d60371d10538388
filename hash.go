package feedme

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// feedMd5 computes the canonical MD5 fingerprint of a feed data tree, base64
// encoded to exactly 24 characters. This is a bit-for-bit interop contract
// with the server: object keys are sorted, there is no incidental
// whitespace, numbers are rendered in their shortest round-tripping form,
// and strings use the same escaping rules as encoding/json. None of that is
// something a generic JSON library promises to hold stable across
// versions, so it's computed by hand rather than borrowed.
func feedMd5(tree any) (string, error) {
	var sb strings.Builder
	if err := writeCanonical(&sb, tree); err != nil {
		return "", err
	}
	sum := md5.Sum([]byte(sb.String()))
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}

// verifyFeedMd5 reports whether want matches the canonical hash of tree,
// comparing in constant time since this travels the same path as other
// server-authenticity checks.
func verifyFeedMd5(tree any, want string) (bool, error) {
	got, err := feedMd5(tree)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1, nil
}

func writeCanonical(sb *strings.Builder, v any) error {
	switch t := v.(type) {
	case nil:
		sb.WriteString("null")
	case bool:
		if t {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case float64:
		sb.WriteString(canonicalNumber(t))
	case string:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("feedme: failed to canonicalize string: %w", err)
		}
		sb.Write(b)
	case []any:
		sb.WriteByte('[')
		for i, el := range t {
			if i > 0 {
				sb.WriteByte(',')
			}
			if err := writeCanonical(sb, el); err != nil {
				return err
			}
		}
		sb.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return fmt.Errorf("feedme: failed to canonicalize key: %w", err)
			}
			sb.Write(kb)
			sb.WriteByte(':')
			if err := writeCanonical(sb, t[k]); err != nil {
				return err
			}
		}
		sb.WriteByte('}')
	default:
		return fmt.Errorf("feedme: cannot canonicalize value of type %T", v)
	}
	return nil
}

// canonicalNumber renders f in its shortest round-tripping decimal form,
// with no trailing ".0" for integral values, matching the wire form a
// compliant server emits for the same number.
func canonicalNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
