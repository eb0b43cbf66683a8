package httputil

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"corretaje/pkg/domain"
	dErrors "corretaje/pkg/domain-errors"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Page is a skip/limit window.
type Page struct {
	Skip  int
	Limit int
}

// ParsePage reads skip and limit, defaulting limit to DefaultLimit.
func ParsePage(q url.Values) (Page, error) {
	p := Page{Limit: DefaultLimit}
	if v := strings.TrimSpace(q.Get("skip")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Page{}, dErrors.New(dErrors.CodeValidation, "skip must be a non-negative integer").WithField("skip")
		}
		p.Skip = n
	}
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxLimit {
			return Page{}, dErrors.New(dErrors.CodeValidation, "limit must be between 1 and 1000").WithField("limit")
		}
		p.Limit = n
	}
	return p, nil
}

// QueryString returns a trimmed parameter or nil when absent.
func QueryString(q url.Values, key string) *string {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil
	}
	return &v
}

// QueryInt64 parses an optional integer parameter.
func QueryInt64(q url.Values, key string) (*int64, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, key+" must be an integer").WithField(key)
	}
	return &n, nil
}

// QueryInt parses an optional int parameter.
func QueryInt(q url.Values, key string) (*int, error) {
	n, err := QueryInt64(q, key)
	if err != nil || n == nil {
		return nil, err
	}
	i := int(*n)
	return &i, nil
}

// QueryBool parses an optional boolean parameter.
func QueryBool(q url.Values, key string) (*bool, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, key+" must be true or false").WithField(key)
	}
	return &b, nil
}

// QueryDate parses an optional YYYY-MM-DD parameter.
func QueryDate(q url.Values, key string) (*domain.Date, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil, nil
	}
	d, err := domain.ParseDate(v)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, key+" must be a date formatted YYYY-MM-DD").WithField(key)
	}
	return &d, nil
}

// QueryDecimal parses an optional decimal parameter.
func QueryDecimal(q url.Values, key string) (*decimal.Decimal, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, key+" must be a number").WithField(key)
	}
	return &d, nil
}
