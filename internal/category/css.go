package category

import (
	"fmt"
	"strings"

	"f2phelper/internal/uri"
)

// BatchSize caps the selectors sharing one rule.
const BatchSize = 1000

var titleReplacer = strings.NewReplacer(
	"'", "%27",
	"%20", "_",
	"%2F", "/",
	"%2C", ",",
	"%3A", ":",
)

// EscapeTitle turns a page title into the path the wiki links it under.
func EscapeTitle(title string) string {
	return titleReplacer.Replace(uri.EncodeComponent(title))
}

// Selector matches links to the page called title.
func Selector(title string) string {
	return `a[href="/w/` + EscapeTitle(title) + `"]`
}

// Selectors maps Selector over titles.
func Selectors(titles []string) []string {
	out := make([]string, len(titles))
	for i, t := range titles {
		out[i] = Selector(t)
	}
	return out
}

// Rules colors every selector with var(--varName), split into batches of
// BatchSize. Each batch starts with comments naming its category.
func Rules(wikiURL, varName, category string, selectors []string) string {
	if len(selectors) == 0 {
		return ""
	}
	link := strings.TrimRight(wikiURL, "/") + "/w/Category:" + strings.ReplaceAll(category, " ", "_")
	total := (len(selectors) + BatchSize - 1) / BatchSize
	batches := make([]string, 0, total)
	for i, n := 0, 1; i < len(selectors); i, n = i+BatchSize, n+1 {
		end := min(i+BatchSize, len(selectors))
		batches = append(batches, fmt.Sprintf("\n/* Category: %s */\n/* Link: %q */\n/* Batch: %d of %d */\n%s\n{\n  color: var(--%s);\n}",
			category, link, n, total, strings.Join(selectors[i:end], ",\n"), varName))
	}
	return strings.Join(batches, "\n")
}

// Variables declares each link color under the three wiki theme classes.
func Variables(colors []LinkColor) string {
	block := func(theme string, pick func(Palette) string) string {
		lines := make([]string, len(colors))
		for i, c := range colors {
			lines[i] = fmt.Sprintf("--%s: %s;", c.Key, pick(c.Value))
		}
		return "body.wgl-theme-" + theme + "\n{\n  " + strings.Join(lines, "\n  ") + "\n}"
	}
	return strings.Join([]string{
		block("light", func(p Palette) string { return p.Light }),
		block("dark", func(p Palette) string { return p.Dark }),
		block("browntown", func(p Palette) string { return p.Browntown }),
	}, "\n\n")
}
