package authz

import (
	"corretaje/pkg/domain"
	dErrors "corretaje/pkg/domain-errors"
)

// BrokerScope is the effective broker filter for a list query.
type BrokerScope struct {
	// Number restricts results to one broker; nil means unrestricted.
	Number *domain.BrokerNumber
	// Empty is set when the principal may see nothing at all.
	Empty bool
}

// ScopeList re-scopes a list query for broker principals: whatever broker the
// caller asked for, a broker only ever sees its own number. Other roles keep
// the requested filter.
func ScopeList(p *domain.Principal, requested *domain.BrokerNumber) BrokerScope {
	if !p.IsBroker() {
		return BrokerScope{Number: requested}
	}
	if p.BrokerNumber == nil {
		return BrokerScope{Empty: true}
	}
	own := *p.BrokerNumber
	return BrokerScope{Number: &own}
}

// CheckRecord rejects single-record access by a broker principal when the
// record belongs to another broker or to none.
func CheckRecord(p *domain.Principal, recordBroker *domain.BrokerNumber) error {
	if !p.IsBroker() {
		return nil
	}
	if p.BrokerNumber == nil || recordBroker == nil || *recordBroker != *p.BrokerNumber {
		return dErrors.New(dErrors.CodeForbidden, "record belongs to another broker")
	}
	return nil
}
