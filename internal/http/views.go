package http

import (
	"net/http"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"finboard/internal/core"
	"finboard/internal/filters"
	"finboard/internal/log"
)

// addNewPaths are the pages whose header carries an "Add New" button.
var addNewPaths = map[string]bool{
	"/transactions": true,
	"/budgets":      true,
	"/pots":         true,
}

type navItem struct {
	Path   string
	Label  string
	Active bool
}

var navigation = []navItem{
	{Path: "/", Label: "Overview"},
	{Path: "/transactions", Label: "Transactions"},
	{Path: "/budgets", Label: "Budgets"},
	{Path: "/pots", Label: "Pots"},
	{Path: "/bills", Label: "Recurring Bills"},
}

// pageHeader drives the page_header partial.
type pageHeader struct {
	Heading string
	// AddNew is the noun on the "Add New" button; empty hides the button.
	AddNew string
	Back   bool
	// BackURL is the same-origin referer, or "/" when there is none.
	BackURL string
}

// page is the root value passed to every page template.
type page struct {
	Title   string
	Path    string
	URI     string
	Nav     []navItem
	Header  pageHeader
	Loading bool
	Data    any
}

// PageTitle derives a singular title from a route path: the leading slash is
// dropped, the first letter capitalised and a trailing "s" removed, so
// "/transactions" gives "Transaction". The root path is "Overview".
func PageTitle(path string) string {
	trimmed := strings.Replace(path, "/", "", 1)
	if trimmed == "" {
		return "Overview"
	}
	r, size := utf8.DecodeRuneInString(trimmed)
	title := string(unicode.ToUpper(r)) + trimmed[size:]
	return strings.TrimSuffix(title, "s")
}

func newPage(r *http.Request, heading string, data any) page {
	nav := make([]navItem, len(navigation))
	copy(nav, navigation)
	for i := range nav {
		nav[i].Active = nav[i].Path == r.URL.Path
	}

	header := pageHeader{
		Heading: heading,
		Back:    r.URL.Query().Get("from") == "link",
		BackURL: backURL(r),
	}
	if addNewPaths[r.URL.Path] {
		header.AddNew = PageTitle(r.URL.Path)
	}

	return page{
		Title:  heading,
		Path:   r.URL.Path,
		URI:    r.URL.RequestURI(),
		Nav:    nav,
		Header: header,
		Data:   data,
	}
}

// backURL returns the path of a same-host referer so the back arrow never
// leaves the dashboard.
func backURL(r *http.Request) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" || (ref.Host != "" && ref.Host != r.Host) {
		return "/"
	}
	return ref.RequestURI()
}

// parseQuery reads sort, category and q. An unknown sort key falls back to
// latest here; the filter engine itself passes unknown keys through.
func parseQuery(r *http.Request) filters.Query {
	values := r.URL.Query()
	q := filters.Query{
		Sort:     filters.Latest,
		Category: core.AllTransactions,
		Search:   sanitizeInput(values.Get("q")),
	}
	if raw := values.Get("sort"); raw != "" {
		key, err := filters.ParseSortKey(raw)
		if err != nil {
			log.FromContext(r.Context()).DebugContext(r.Context(), "Unknown sort key, using latest",
				log.FieldSortKey, raw)
		} else {
			q.Sort = key
		}
	}
	if c := sanitizeInput(values.Get("category")); c != "" {
		q.Category = c
	}
	return q
}

type sortOption struct {
	Key      filters.SortKey
	Label    string
	Selected bool
}

func sortOptions(selected filters.SortKey) []sortOption {
	out := make([]sortOption, len(filters.SortKeys))
	for i, k := range filters.SortKeys {
		out[i] = sortOption{Key: k, Label: k.Label(), Selected: k == selected}
	}
	return out
}

type categoryOption struct {
	Name     string
	Selected bool
}

// categoryOptions lists "All Transactions" followed by the categories seen
// in txs. A selected category missing from txs is still offered.
func categoryOptions(txs []core.Transaction, selected string) []categoryOption {
	names := append([]string{core.AllTransactions}, filters.Categories(txs)...)
	found := false
	out := make([]categoryOption, 0, len(names)+1)
	for _, n := range names {
		sel := n == selected
		found = found || sel
		out = append(out, categoryOption{Name: n, Selected: sel})
	}
	if !found && selected != "" {
		out = append(out, categoryOption{Name: selected, Selected: true})
	}
	return out
}
