// Package models defines policy vigency movements, their joined views and
// the query and aggregate shapes of the policy query engine.
package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"corretaje/pkg/domain"
	dErrors "corretaje/pkg/domain-errors"
)

// DurationClass bounds how long a policy window may run.
type DurationClass string

const (
	Daily      DurationClass = "daily"
	Weekly     DurationClass = "weekly"
	Monthly    DurationClass = "monthly"
	Quarterly  DurationClass = "quarterly"
	Semiannual DurationClass = "semiannual"
	Annual     DurationClass = "annual"
)

// DurationClasses lists every class in ascending length.
var DurationClasses = []DurationClass{Daily, Weekly, Monthly, Quarterly, Semiannual, Annual}

var maxDays = map[DurationClass]int{
	Daily:      1,
	Weekly:     7,
	Monthly:    31,
	Quarterly:  92,
	Semiannual: 183,
	Annual:     366,
}

func (c DurationClass) Valid() bool {
	_, ok := maxDays[c]
	return ok
}

// MaxDays is the longest inclusive window the class allows.
func (c DurationClass) MaxDays() int {
	return maxDays[c]
}

// StatusActive is the default movement status.
const StatusActive = "activa"

// Movement is a stored policy vigency movement.
type Movement struct {
	ID              int64                `json:"id"`
	ClientID        domain.ClientID      `json:"cliente_id"`
	BrokerNumber    *domain.BrokerNumber `json:"corredor_numero"`
	InsuranceTypeID int64                `json:"tipo_seguro_id"`
	CurrencyID      *int64               `json:"moneda_id"`
	PolicyNumber    string               `json:"numero_poliza"`
	Folder          *string              `json:"carpeta"`
	Endorsement     *string              `json:"endoso"`
	EndorsementType *string              `json:"tipo_endoso"`
	PaymentMode     *string              `json:"forma_pago"`
	StartDate       domain.Date          `json:"fecha_inicio"`
	EndDate         domain.Date          `json:"fecha_vencimiento"`
	IssuedDate      *domain.Date         `json:"fecha_emision"`
	Status          string               `json:"estado"`
	InsuredAmount   decimal.Decimal      `json:"suma_asegurada"`
	Premium         decimal.Decimal      `json:"prima"`
	Commission      *decimal.Decimal     `json:"comision"`
	Installments    *int                 `json:"cuotas"`
	Observations    string               `json:"observaciones"`
	DurationClass   DurationClass        `json:"tipo_duracion"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// Days is the inclusive length of the window.
func (m *Movement) Days() int {
	return m.StartDate.DaysUntil(m.EndDate) + 1
}

// Validate enforces the date, duration-class and amount invariants.
func (m *Movement) Validate() error {
	if !m.DurationClass.Valid() {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("tipo_duracion %q is not a duration class", m.DurationClass)).WithField("tipo_duracion")
	}
	if m.StartDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "fecha_inicio is required").WithField("fecha_inicio")
	}
	if m.EndDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "fecha_vencimiento is required").WithField("fecha_vencimiento")
	}
	if m.EndDate.Before(m.StartDate) {
		return dErrors.New(dErrors.CodeValidation, "fecha_vencimiento must not precede fecha_inicio").WithField("fecha_vencimiento")
	}
	if m.EndDate.Equal(m.StartDate) && m.DurationClass != Daily {
		return dErrors.New(dErrors.CodeValidation, "same-day windows are only allowed for daily policies").WithField("fecha_vencimiento")
	}
	if days := m.Days(); days > m.DurationClass.MaxDays() {
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("a %s policy spans at most %d days, got %d", m.DurationClass, m.DurationClass.MaxDays(), days)).
			WithField("fecha_vencimiento")
	}
	if m.InsuredAmount.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "suma_asegurada must not be negative").WithField("suma_asegurada")
	}
	if m.Premium.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "prima must not be negative").WithField("prima")
	}
	if m.Commission != nil && (m.Commission.IsNegative() || m.Commission.GreaterThan(m.Premium)) {
		return dErrors.New(dErrors.CodeValidation, "comision must be between 0 and prima").WithField("comision")
	}
	if m.Installments != nil && *m.Installments < 1 {
		return dErrors.New(dErrors.CodeValidation, "cuotas must be at least 1").WithField("cuotas")
	}
	return nil
}

// BrokerOf returns the movement's broker number, for scope checks.
func (m *Movement) BrokerOf() *domain.BrokerNumber {
	return m.BrokerNumber
}

type ClientSummary struct {
	ID         domain.ClientID `json:"id"`
	Number     int64           `json:"numero_cliente"`
	GivenNames string          `json:"nombres"`
	Surnames   string          `json:"apellidos"`
}

type BrokerSummary struct {
	Number     domain.BrokerNumber `json:"numero"`
	GivenNames string              `json:"nombres"`
	Surnames   string              `json:"apellidos"`
}

type InsuranceTypeSummary struct {
	ID   int64  `json:"id"`
	Code string `json:"codigo"`
	Name string `json:"nombre"`
}

type CurrencySummary struct {
	ID     int64  `json:"id"`
	Code   string `json:"codigo"`
	Symbol string `json:"simbolo"`
}

// View is a movement joined with its client, broker, insurance type and
// currency, plus the fields derived from today's date.
type View struct {
	Movement
	Client        ClientSummary        `json:"cliente"`
	Broker        *BrokerSummary       `json:"corredor"`
	InsuranceType InsuranceTypeSummary `json:"tipo_seguro"`
	Currency      *CurrencySummary     `json:"moneda"`
	Current       bool                 `json:"vigente"`
	DaysToExpiry  int                  `json:"dias_para_vencer"`
}

// Derive fills Current and DaysToExpiry relative to today. A movement is
// current when today lies inside its window and its status is active.
func (v *View) Derive(today domain.Date) {
	v.Current = v.Status == StatusActive && !today.Before(v.StartDate) && !today.After(v.EndDate)
	v.DaysToExpiry = today.DaysUntil(v.EndDate)
}

// ClassStats aggregates one duration class.
type ClassStats struct {
	Count      int             `json:"cantidad"`
	InsuredSum decimal.Decimal `json:"suma_asegurada_total"`
	PremiumSum decimal.Decimal `json:"prima_total"`
}

func (c *ClassStats) Add(o ClassStats) {
	c.Count += o.Count
	c.InsuredSum = c.InsuredSum.Add(o.InsuredSum)
	c.PremiumSum = c.PremiumSum.Add(o.PremiumSum)
}

// Stats holds per-class aggregates and overall totals. Every class is
// present, zeroed when no movement matches.
type Stats struct {
	ByClass map[DurationClass]ClassStats `json:"por_tipo_duracion"`
	Total   ClassStats                   `json:"total"`
}

func NewStats() *Stats {
	s := &Stats{ByClass: make(map[DurationClass]ClassStats, len(DurationClasses))}
	for _, c := range DurationClasses {
		s.ByClass[c] = ClassStats{InsuredSum: decimal.Zero, PremiumSum: decimal.Zero}
	}
	s.Total = ClassStats{InsuredSum: decimal.Zero, PremiumSum: decimal.Zero}
	return s
}

// Add folds one class aggregate into the stats.
func (s *Stats) Add(class DurationClass, c ClassStats) {
	cur := s.ByClass[class]
	cur.Add(c)
	s.ByClass[class] = cur
	s.Total.Add(c)
}
