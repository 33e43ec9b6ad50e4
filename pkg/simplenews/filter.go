package simplenews

import "strings"

// Filter returns the items whose title or description contains term
// (case-insensitive) and whose category matches. The term is used as typed,
// surrounding spaces included. An empty term matches everything; an empty category or CategoryAll matches every category.
// Input order is preserved.
func Filter(items []*ContentItem, term, category string) []*ContentItem {
	needle := strings.ToLower(term)
	category = strings.TrimSpace(category)
	anyCategory := category == "" || category == CategoryAll

	out := make([]*ContentItem, 0, len(items))
	for _, it := range items {
		if !anyCategory && string(it.Category) != category {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(it.Title), needle) &&
			!strings.Contains(strings.ToLower(it.Description), needle) {
			continue
		}
		out = append(out, it)
	}
	return out
}
