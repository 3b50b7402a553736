package service

// scopeIsSubset reports whether every requested scope was originally granted.
// The engine narrows scope when asked but never widens it; a superset request
// is a hard error, not a silent intersection.
func scopeIsSubset(requested, granted []string) bool {
	set := make(map[string]struct{}, len(granted))
	for _, s := range granted {
		set[s] = struct{}{}
	}
	for _, s := range requested {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}

// narrowScopes returns the requested scopes when present (already validated
// as a subset), otherwise the full originally granted set.
func narrowScopes(requested, granted []string) []string {
	if len(requested) > 0 {
		return dedupe(requested)
	}
	return granted
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
