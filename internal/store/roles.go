package store

// MergeRoles agrega a have los roles de add que falten, en orden.
// No modifica have.
func MergeRoles(have, add []string) []string {
	out := append([]string(nil), have...)
	seen := make(map[string]bool, len(have)+len(add))
	for _, r := range have {
		seen[r] = true
	}
	for _, r := range add {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}
