package registry

import (
	"time"

	dErrors "sto-gateway/pkg/domain-errors"
)

// Eligible applies the compliance gate rule chain for a buyer against a
// token's rules. Pure domain logic, no I/O; the first failing rule decides
// the reason string.
//
// Rule priority (fail-fast):
//  1. KYC approval - always required
//  2. AML / CFT approvals - per token rules
//  3. Country ban - jurisdiction screen
//  4. Age, net worth, salary thresholds
func Eligible(b Buyer, rules TokenRules, now time.Time) error {
	if !b.KYCApproved {
		return dErrors.New(dErrors.CodeComplianceRejected, "KYC not approved")
	}
	if rules.AMLRequired && !b.AMLApproved {
		return dErrors.New(dErrors.CodeComplianceRejected, "AML not approved")
	}
	if rules.CFTRequired && !b.CFTApproved {
		return dErrors.New(dErrors.CodeComplianceRejected, "CFT not approved")
	}
	if rules.Banned(b.Country) {
		return dErrors.New(dErrors.CodeComplianceRejected, "buyer country is banned")
	}
	if rules.MinAge > 0 && b.Age(now) < rules.MinAge {
		return dErrors.New(dErrors.CodeComplianceRejected, "buyer below minimum age")
	}
	if b.NetWorth < rules.MinNetWorth {
		return dErrors.New(dErrors.CodeComplianceRejected, "buyer below minimum net worth")
	}
	if b.Salary < rules.MinSalary {
		return dErrors.New(dErrors.CodeComplianceRejected, "buyer below minimum salary")
	}
	return nil
}
