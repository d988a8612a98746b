package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Exclusions is a compiled matcher for targets that must never be persisted:
// browser-internal schemes, denylisted domains, and regex rules.
type Exclusions struct {
	schemes []string
	domains map[string]bool
	regexes []*regexp.Regexp
}

// Compile builds an Exclusions matcher from the configuration. Invalid regex
// rules are rejected rather than skipped so a typo does not silently widen
// capture.
func (c ExclusionsConfig) Compile() (*Exclusions, error) {
	e := &Exclusions{
		schemes: c.InternalSchemes,
		domains: make(map[string]bool, len(c.DenylistDomains)),
	}
	for _, d := range c.DenylistDomains {
		e.domains[strings.ToLower(d)] = true
	}
	for _, r := range c.DenylistRegex {
		re, err := regexp.Compile(r)
		if err != nil {
			return nil, fmt.Errorf("compile exclusion regex %q: %w", r, err)
		}
		e.regexes = append(e.regexes, re)
	}
	return e, nil
}

// Excluded reports whether a target URL must not produce a persisted record.
func (e *Exclusions) Excluded(rawURL string) bool {
	if rawURL == "" {
		return true
	}
	lower := strings.ToLower(rawURL)
	for _, s := range e.schemes {
		if strings.HasPrefix(lower, s) {
			return true
		}
	}

	host := hostOf(rawURL)
	if host == "" {
		return false
	}
	// Exact match plus parent-domain match (mail.chase.com is as sensitive
	// as chase.com).
	if e.domains[host] {
		return true
	}
	for d := range e.domains {
		if strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	for _, re := range e.regexes {
		if re.MatchString(host) {
			return true
		}
	}
	return false
}

// hostOf pulls the lowercase hostname from a URL string.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
