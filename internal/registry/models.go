package registry

import (
	"time"

	"sto-gateway/internal/domain"
)

// Buyer captures the demographic and compliance attributes stored per
// identity. Statuses are set by authorized compliance-service providers.
type Buyer struct {
	EIN         domain.EIN
	FirstName   string
	LastName    string
	Country     string
	BirthDate   time.Time
	NetWorth    uint64
	Salary      uint64
	KYCApproved bool
	AMLApproved bool
	CFTApproved bool
}

// Age returns whole years completed at the given instant.
func (b Buyer) Age(now time.Time) int {
	years := now.Year() - b.BirthDate.Year()
	anniversary := b.BirthDate.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	return years
}

// TokenRules are the per-token compliance thresholds a buyer must clear.
type TokenRules struct {
	MinAge          int
	MinNetWorth     uint64
	MinSalary       uint64
	AMLRequired     bool
	CFTRequired     bool
	BannedCountries []string
}

// Banned reports whether the country code appears on the token's ban list.
func (r TokenRules) Banned(country string) bool {
	for _, c := range r.BannedCountries {
		if c == country {
			return true
		}
	}
	return false
}
