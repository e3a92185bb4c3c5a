package evidence

import (
	"net"
	"net/url"
	"strings"

	"github.com/ppiankov/verisum/internal/model"
)

// DomainSourceLocal names the built-in reputation lists
const DomainSourceLocal = "Local Database"

var unreliableDomains = []string{
	"naturalnews.com",
	"infowars.com",
	"beforeitsnews.com",
	"dcgazette.com",
	"worldnewsdailyreport.com",
	"nationalreport.net",
	"empirenews.net",
	"clickhole.com",
	"theonion.com",
	"newsthump.com",
}

var satireDomains = []string{
	"theonion.com",
	"clickhole.com",
	"newsthump.com",
	"thedailymash.co.uk",
	"babylonbee.com",
	"waterfallmagazine.com",
}

var mixedDomains = []string{
	"dailymail.co.uk",
	"nypost.com",
	"rt.com",
	"sputniknews.com",
	"breitbart.com",
	"huffpost.com",
}

var reliableDomains = []string{
	"reuters.com",
	"apnews.com",
	"bbc.com",
	"bbc.co.uk",
	"nytimes.com",
	"washingtonpost.com",
	"theguardian.com",
	"npr.org",
	"pbs.org",
	"cnn.com",
	"cbsnews.com",
	"nbcnews.com",
	"abcnews.go.com",
	"usatoday.com",
	"wsj.com",
	"ft.com",
	"economist.com",
	"nature.com",
	"science.org",
	"sciencedaily.com",
	"nih.gov",
	"cdc.gov",
	"who.int",
	"gov.uk",
	"wikipedia.org",
	"snopes.com",
	"factcheck.org",
	"politifact.com",
}

// classifyOrder is the category precedence for domains listed more than once
var classifyOrder = []model.DomainCategory{
	model.DomainSatire,
	model.DomainUnreliable,
	model.DomainReliable,
	model.DomainMixed,
}

// DomainClassifier rates publishing domains against static reputation lists
type DomainClassifier struct {
	sets map[model.DomainCategory]map[string]bool
}

// NewDomainClassifier builds a classifier from the built-in lists plus extra
// domains keyed by category name.
func NewDomainClassifier(extra map[string][]string) *DomainClassifier {
	c := &DomainClassifier{sets: make(map[model.DomainCategory]map[string]bool)}

	c.add(model.DomainUnreliable, unreliableDomains)
	c.add(model.DomainSatire, satireDomains)
	c.add(model.DomainMixed, mixedDomains)
	c.add(model.DomainReliable, reliableDomains)

	for category, domains := range extra {
		c.add(model.DomainCategory(strings.ToLower(category)), domains)
	}

	return c
}

func (c *DomainClassifier) add(category model.DomainCategory, domains []string) {
	set, ok := c.sets[category]
	if !ok {
		set = make(map[string]bool)
		c.sets[category] = set
	}
	for _, d := range domains {
		set[strings.ToLower(strings.TrimPrefix(d, "www."))] = true
	}
}

// Classify rates the domain of rawURL. Subdomains inherit the rating of a
// listed parent, so news.bbc.co.uk is reliable.
func (c *DomainClassifier) Classify(rawURL string) model.DomainResult {
	host := Hostname(rawURL)
	result := model.DomainResult{
		Domain:   host,
		Category: model.DomainUnknown,
		Source:   DomainSourceLocal,
	}

	if host != "" {
		for _, category := range classifyOrder {
			if c.matches(category, host) {
				result.Category = category
				break
			}
		}
	}

	result.Score = result.Category.Score()
	return result
}

func (c *DomainClassifier) matches(category model.DomainCategory, host string) bool {
	set := c.sets[category]
	if set[host] {
		return true
	}
	for domain := range set {
		if strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// Hostname returns the lowercased host of rawURL without port or leading www.
// Bare hosts without a scheme are accepted.
func Hostname(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	host := parsed.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)
	return strings.TrimPrefix(host, "www.")
}
