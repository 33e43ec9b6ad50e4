package simplenews

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Layout selects how a catalog view is arranged.
type Layout string

// Layout constants (typed).
const (
	LayoutCompactList Layout = "compact-list"
	LayoutGrid        Layout = "grid"
	LayoutHeroGrid    Layout = "hero-grid"
)

const (
	defaultColumns    = 3
	defaultHeroCount  = 1
	compactSummaryLen = 160
)

// ParseLayout parses a layout name. An empty name selects the grid.
func ParseLayout(s string) (Layout, error) {
	switch l := Layout(strings.ToLower(strings.TrimSpace(s))); l {
	case "":
		return LayoutGrid, nil
	case LayoutCompactList, LayoutGrid, LayoutHeroGrid:
		return l, nil
	default:
		return "", NewValidationError("view", "layout", fmt.Sprintf("unknown layout %q", s))
	}
}

// LayoutConfig parameterizes BuildView. Zero values pick the defaults.
type LayoutConfig struct {
	Layout    Layout `json:"layout"`
	Columns   int    `json:"columns,omitempty"`
	HeroCount int    `json:"hero_count,omitempty"`
}

// Card is the presentation of one content item.
type Card struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Category    Category  `json:"category,omitempty"`
	MediaURL    string    `json:"media_url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Views       int64     `json:"views"`
	Likes       int64     `json:"likes"`
}

// View is a laid-out catalog. Hero is only filled by the hero-grid layout;
// compact-list rows hold a single card.
type View struct {
	Layout Layout   `json:"layout"`
	Hero   []Card   `json:"hero,omitempty"`
	Rows   [][]Card `json:"rows"`
	Total  int      `json:"total"`
}

// BuildView arranges items according to cfg, preserving their order.
func BuildView(items []*ContentItem, cfg LayoutConfig) View {
	layout := cfg.Layout
	if layout == "" {
		layout = LayoutGrid
	}
	columns := cfg.Columns
	if columns <= 0 {
		columns = defaultColumns
	}

	v := View{Layout: layout, Rows: [][]Card{}, Total: len(items)}
	rest := items

	switch layout {
	case LayoutCompactList:
		for _, it := range items {
			c := newCard(it)
			c.Summary = truncate(c.Summary, compactSummaryLen)
			v.Rows = append(v.Rows, []Card{c})
		}
		return v
	case LayoutHeroGrid:
		hero := cfg.HeroCount
		if hero <= 0 {
			hero = defaultHeroCount
		}
		hero = min(hero, len(items))
		for _, it := range items[:hero] {
			v.Hero = append(v.Hero, newCard(it))
		}
		rest = items[hero:]
	}

	for start := 0; start < len(rest); start += columns {
		end := min(start+columns, len(rest))
		row := make([]Card, 0, end-start)
		for _, it := range rest[start:end] {
			row = append(row, newCard(it))
		}
		v.Rows = append(v.Rows, row)
	}
	return v
}

func newCard(it *ContentItem) Card {
	c := Card{
		ID:          it.ID,
		Title:       it.Title,
		Summary:     it.Description,
		Category:    it.Category,
		PublishedAt: it.CreatedAt,
		Views:       it.ViewCount,
		Likes:       it.LikeCount,
	}
	if it.HasMedia() {
		c.MediaURL = *it.MediaRef
	}
	return c
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + "…"
}
