package client

import "strings"

// StripEmptyParams removes query parameters without a value from rawURL.
// "?foo=&bar&baz=baz" becomes "?baz=baz". The order and encoding of the
// remaining parameters is kept as is, and a query left empty is dropped.
func StripEmptyParams(rawURL string) string {
	base, query, ok := strings.Cut(rawURL, "?")
	if !ok {
		return rawURL
	}

	fragment := ""
	if q, f, hasFragment := strings.Cut(query, "#"); hasFragment {
		query = q
		fragment = "#" + f
	}

	kept := make([]string, 0, strings.Count(query, "&")+1)
	for _, param := range strings.Split(query, "&") {
		_, value, _ := strings.Cut(param, "=")
		if value == "" {
			continue
		}
		kept = append(kept, param)
	}

	if len(kept) == 0 {
		return base + fragment
	}
	return base + "?" + strings.Join(kept, "&") + fragment
}
