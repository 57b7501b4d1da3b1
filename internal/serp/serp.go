// Package serp scrapes search engine result pages. A Client fetches one page
// per request, an Extractor pulls result blocks out of it, and the Search and
// SearchDesired paginators stitch pages into lazy result sequences.
package serp

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Result is one search hit.
type Result struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (r Result) String() string {
	return fmt.Sprintf("SearchResult(url=%s, title=%s, description=%s)", r.URL, r.Title, r.Description)
}

// Request describes a single SERP page request.
type Request struct {
	Query   string
	Lang    string
	Num     int
	Start   int
	Proxy   string
	Timeout time.Duration
}

// pageSlack is added to every requested page size so short pages rarely
// need a follow-up request.
const pageSlack = 2

// EscapeQuery replaces spaces with a literal '+'.
func EscapeQuery(term string) string {
	return strings.ReplaceAll(term, " ", "+")
}

// Values returns the query string parameters for r.
func (r Request) Values() url.Values {
	v := url.Values{}
	v.Set("q", r.Query)
	v.Set("num", strconv.Itoa(r.Num+pageSlack))
	v.Set("hl", r.Lang)
	v.Set("start", strconv.Itoa(r.Start))
	return v
}

// Criteria selects which results SearchDesired accepts.
type Criteria struct {
	// FileType is the required URL suffix without the dot, e.g. "pdf".
	FileType string
	// Whitelist holds domain substrings; a result's host must contain one.
	Whitelist []string
	// Target is how many accepted results to collect.
	Target int
}

// DefaultWhitelist returns a new default whitelist on every call.
func DefaultWhitelist() []string {
	return []string{"gov"}
}

// Rejection reasons reported by Criteria.Check.
const (
	RejectFileType  = "filetype"
	RejectDomain    = "domain"
	RejectDuplicate = "duplicate"
)

// Check reports why rawURL is rejected, or "" when it is accepted. seen holds
// URLs already accepted in the current invocation.
func (c Criteria) Check(rawURL string, seen map[string]struct{}) string {
	if !strings.HasSuffix(rawURL, "."+c.FileType) {
		return RejectFileType
	}
	if !HostContains(rawURL, c.Whitelist) {
		return RejectDomain
	}
	if _, dup := seen[rawURL]; dup {
		return RejectDuplicate
	}
	return ""
}

// HostContains reports whether the host of rawURL contains any of domains,
// compared case-insensitively as substrings.
func HostContains(rawURL string, domains []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Host)
	if host == "" {
		return false
	}
	for _, d := range domains {
		if strings.Contains(host, strings.ToLower(d)) {
			return true
		}
	}
	return false
}
