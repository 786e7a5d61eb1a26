package identity

import (
	"strings"

	"go.uber.org/zap"
)

// DefaultInternalDomains covers the corpus at hand. Name-based alias
// generation only makes sense for addresses on a corpus-internal domain.
var DefaultInternalDomains = []string{"enron.com"}

// DomainSet checks whether an address belongs to a corpus-internal domain.
type DomainSet struct {
	domains []string
	logger  *zap.Logger
}

// NewDomainSet creates a domain set. Domains are normalized to lowercase.
func NewDomainSet(domains []string, logger *zap.Logger) *DomainSet {
	if len(domains) == 0 {
		domains = DefaultInternalDomains
	}
	normalized := make([]string, len(domains))
	for i, domain := range domains {
		normalized[i] = strings.ToLower(strings.TrimSpace(domain))
	}
	if logger != nil {
		logger.Debug("initialized internal domain set", zap.Strings("domains", normalized))
	}
	return &DomainSet{domains: normalized, logger: logger}
}

// Matches reports whether domain is one of the internal domains.
func (d *DomainSet) Matches(domain string) bool {
	domain = strings.ToLower(strings.TrimSpace(domain))
	for _, candidate := range d.domains {
		if candidate == domain {
			return true
		}
	}
	return false
}

// Primary returns the domain used when generating alias variants.
func (d *DomainSet) Primary() string {
	return d.domains[0]
}
