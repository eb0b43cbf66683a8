package models

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"corretaje/pkg/domain"
	dErrors "corretaje/pkg/domain-errors"
)

// SortField names an orderable column of the joined view.
type SortField string

const (
	SortStartDate     SortField = "start_date"
	SortEndDate       SortField = "end_date"
	SortInsuredAmount SortField = "insured_amount"
	SortPremium       SortField = "premium"
	SortPolicyNumber  SortField = "policy_number"
	SortGivenNames    SortField = "given_names"
	SortSurnames      SortField = "surnames"
	SortClientNumber  SortField = "client_number"
	SortID            SortField = "id"
)

var sortFields = []SortField{
	SortStartDate, SortEndDate, SortInsuredAmount, SortPremium, SortPolicyNumber,
	SortGivenNames, SortSurnames, SortClientNumber, SortID,
}

const (
	MinUpcomingDays = 1
	MaxUpcomingDays = 365
)

// Filter carries the optional predicates of a policy query as received.
type Filter struct {
	ClientID        *domain.ClientID
	BrokerNumber    *domain.BrokerNumber
	Status          *string
	StartFrom       *domain.Date
	StartTo         *domain.Date
	ExpiryFrom      *domain.Date
	ExpiryTo        *domain.Date
	IncludeExpired  *bool
	UpcomingDays    *int
	PolicyNumber    *string
	InsuranceTypeID *int64
	CurrencyID      *int64
	InsuredMin      *decimal.Decimal
	InsuredMax      *decimal.Decimal
	PremiumMin      *decimal.Decimal
	PremiumMax      *decimal.Decimal
	ClientGivenName *string
	ClientSurname   *string
	DurationClass   *DurationClass
	SortBy          string
	SortDir         string
	Skip            int
	Limit           int
}

// Query is a validated Filter resolved against a reference day.
type Query struct {
	ClientID        *domain.ClientID
	BrokerNumber    *domain.BrokerNumber
	Status          *string
	StartFrom       *domain.Date
	StartTo         *domain.Date
	ExpiryFrom      *domain.Date
	ExpiryTo        *domain.Date
	ExcludeExpired  bool
	Today           domain.Date
	PolicyNumber    string
	InsuranceTypeID *int64
	CurrencyID      *int64
	InsuredMin      *decimal.Decimal
	InsuredMax      *decimal.Decimal
	PremiumMin      *decimal.Decimal
	PremiumMax      *decimal.Decimal
	ClientGivenName string
	ClientSurname   string
	DurationClass   *DurationClass
	Sort            SortField
	Desc            bool
	Skip            int
	Limit           int
}

// Resolve validates the filter and turns it into a Query for today. An
// upcoming-expiry window replaces any explicit expiry range and always
// drops expired rows, whatever include_expired says.
func (f Filter) Resolve(today domain.Date) (*Query, error) {
	if err := checkDateRange(f.StartFrom, f.StartTo, "fecha_fin"); err != nil {
		return nil, err
	}
	if err := checkDateRange(f.ExpiryFrom, f.ExpiryTo, "vencimiento_hasta"); err != nil {
		return nil, err
	}
	if err := checkAmountRange(f.InsuredMin, f.InsuredMax, "suma_asegurada_max"); err != nil {
		return nil, err
	}
	if err := checkAmountRange(f.PremiumMin, f.PremiumMax, "prima_max"); err != nil {
		return nil, err
	}
	if f.DurationClass != nil && !f.DurationClass.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("tipo_duracion %q is not a duration class", *f.DurationClass)).WithField("tipo_duracion")
	}

	q := &Query{
		ClientID:        f.ClientID,
		BrokerNumber:    f.BrokerNumber,
		Status:          f.Status,
		StartFrom:       f.StartFrom,
		StartTo:         f.StartTo,
		ExpiryFrom:      f.ExpiryFrom,
		ExpiryTo:        f.ExpiryTo,
		ExcludeExpired:  f.IncludeExpired != nil && !*f.IncludeExpired,
		Today:           today,
		InsuranceTypeID: f.InsuranceTypeID,
		CurrencyID:      f.CurrencyID,
		InsuredMin:      f.InsuredMin,
		InsuredMax:      f.InsuredMax,
		PremiumMin:      f.PremiumMin,
		PremiumMax:      f.PremiumMax,
		DurationClass:   f.DurationClass,
		Sort:            SortID,
		Skip:            f.Skip,
		Limit:           f.Limit,
	}
	if f.PolicyNumber != nil {
		q.PolicyNumber = *f.PolicyNumber
	}
	if f.ClientGivenName != nil {
		q.ClientGivenName = *f.ClientGivenName
	}
	if f.ClientSurname != nil {
		q.ClientSurname = *f.ClientSurname
	}

	if f.UpcomingDays != nil {
		n := *f.UpcomingDays
		if n < MinUpcomingDays || n > MaxUpcomingDays {
			return nil, dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("proximo_vencimiento must be between %d and %d", MinUpcomingDays, MaxUpcomingDays)).
				WithField("proximo_vencimiento")
		}
		from, to := today, today.AddDays(n)
		q.ExpiryFrom, q.ExpiryTo = &from, &to
		q.ExcludeExpired = true
	}

	if f.SortBy != "" {
		field := SortField(f.SortBy)
		if !slices.Contains(sortFields, field) {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("ordenar_por %q is not sortable", f.SortBy)).WithField("ordenar_por")
		}
		q.Sort = field
	}
	switch strings.ToLower(f.SortDir) {
	case "", "asc":
	case "desc":
		q.Desc = true
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "orden must be asc or desc").WithField("orden")
	}
	return q, nil
}

func checkDateRange(from, to *domain.Date, field string) error {
	if from != nil && to != nil && to.Before(*from) {
		return dErrors.New(dErrors.CodeValidation, "range start must not be after range end").WithField(field)
	}
	return nil
}

func checkAmountRange(lo, hi *decimal.Decimal, field string) error {
	if lo != nil && hi != nil && hi.LessThan(*lo) {
		return dErrors.New(dErrors.CodeValidation, "minimum must not exceed maximum").WithField(field)
	}
	return nil
}

// Matches evaluates the query predicates against one joined view.
func (q *Query) Matches(v *View) bool {
	switch {
	case q.ClientID != nil && v.ClientID != *q.ClientID:
		return false
	case q.BrokerNumber != nil && (v.BrokerNumber == nil || *v.BrokerNumber != *q.BrokerNumber):
		return false
	case q.Status != nil && v.Status != *q.Status:
		return false
	case q.StartFrom != nil && v.StartDate.Before(*q.StartFrom):
		return false
	case q.StartTo != nil && v.StartDate.After(*q.StartTo):
		return false
	case q.ExpiryFrom != nil && v.EndDate.Before(*q.ExpiryFrom):
		return false
	case q.ExpiryTo != nil && v.EndDate.After(*q.ExpiryTo):
		return false
	case q.ExcludeExpired && v.EndDate.Before(q.Today):
		return false
	case q.PolicyNumber != "" && !containsFold(v.PolicyNumber, q.PolicyNumber):
		return false
	case q.InsuranceTypeID != nil && v.InsuranceTypeID != *q.InsuranceTypeID:
		return false
	case q.CurrencyID != nil && (v.CurrencyID == nil || *v.CurrencyID != *q.CurrencyID):
		return false
	case q.InsuredMin != nil && v.InsuredAmount.LessThan(*q.InsuredMin):
		return false
	case q.InsuredMax != nil && v.InsuredAmount.GreaterThan(*q.InsuredMax):
		return false
	case q.PremiumMin != nil && v.Premium.LessThan(*q.PremiumMin):
		return false
	case q.PremiumMax != nil && v.Premium.GreaterThan(*q.PremiumMax):
		return false
	case q.ClientGivenName != "" && !containsFold(v.Client.GivenNames, q.ClientGivenName):
		return false
	case q.ClientSurname != "" && !containsFold(v.Client.Surnames, q.ClientSurname):
		return false
	case q.DurationClass != nil && v.DurationClass != *q.DurationClass:
		return false
	}
	return true
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// SortViews orders views by the query's sort field and direction, breaking
// ties by ascending id regardless of direction.
func (q *Query) SortViews(views []*View) {
	slices.SortStableFunc(views, func(a, b *View) int {
		c := compareBy(q.Sort, a, b)
		if q.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// Page applies skip and limit to an ordered result.
func (q *Query) Page(views []*View) []*View {
	if q.Skip >= len(views) {
		return []*View{}
	}
	views = views[q.Skip:]
	if q.Limit > 0 && q.Limit < len(views) {
		views = views[:q.Limit]
	}
	return views
}

func compareBy(field SortField, a, b *View) int {
	switch field {
	case SortStartDate:
		return a.StartDate.Time().Compare(b.StartDate.Time())
	case SortEndDate:
		return a.EndDate.Time().Compare(b.EndDate.Time())
	case SortInsuredAmount:
		return a.InsuredAmount.Cmp(b.InsuredAmount)
	case SortPremium:
		return a.Premium.Cmp(b.Premium)
	case SortPolicyNumber:
		return cmp.Compare(a.PolicyNumber, b.PolicyNumber)
	case SortGivenNames:
		return cmp.Compare(a.Client.GivenNames, b.Client.GivenNames)
	case SortSurnames:
		return cmp.Compare(a.Client.Surnames, b.Client.Surnames)
	case SortClientNumber:
		return cmp.Compare(a.Client.Number, b.Client.Number)
	}
	return cmp.Compare(a.ID, b.ID)
}
