// Package models defines the reference catalogs: document types, currencies,
// insurance types and insurers.
package models

import (
	"strings"
	"time"

	dErrors "corretaje/pkg/domain-errors"
)

// Kind names a catalog. The value is the backing table name.
type Kind string

const (
	KindDocumentTypes  Kind = "tipos_documento"
	KindCurrencies     Kind = "monedas"
	KindInsuranceTypes Kind = "tipos_seguro"
	KindInsurers       Kind = "aseguradoras"
)

// Unique is one unique-constrained column value of a row.
type Unique struct {
	Field string
	Value string
}

// Entry is implemented by the pointer type of every catalog row.
type Entry[E any] interface {
	Key() int64
	SetKey(id int64)
	Uniques() []Unique
	Active() bool
	Deactivate()
	Default() bool
	// Stamp sets timestamps for a write at now. Rows without timestamps ignore it.
	Stamp(now time.Time)
	Clone() E
	// Validate checks the invariants a row must hold after create or update.
	Validate() error
}

// Builder turns a create payload into a new row.
type Builder[E any] interface {
	Build() E
}

// Patch applies a partial update to a row.
type Patch[E any] interface {
	Apply(e E)
}

type DocumentType struct {
	ID          int64   `json:"id"`
	Code        string  `json:"codigo"`
	Name        string  `json:"nombre"`
	Description *string `json:"descripcion"`
	IsDefault   bool    `json:"es_default"`
	IsActive    bool    `json:"is_active"`
}

func (d *DocumentType) Key() int64        { return d.ID }
func (d *DocumentType) SetKey(id int64)   { d.ID = id }
func (d *DocumentType) Active() bool      { return d.IsActive }
func (d *DocumentType) Deactivate()       { d.IsActive = false }
func (d *DocumentType) Default() bool     { return d.IsDefault }
func (d *DocumentType) Stamp(time.Time)   {}
func (d *DocumentType) Uniques() []Unique { return []Unique{{"codigo", d.Code}} }

func (d *DocumentType) Clone() *DocumentType {
	cp := *d
	if d.Description != nil {
		desc := *d.Description
		cp.Description = &desc
	}
	return &cp
}

func (d *DocumentType) Validate() error {
	return requireNonEmpty(field{"codigo", d.Code}, field{"nombre", d.Name})
}

type Currency struct {
	ID        int64     `json:"id"`
	Code      string    `json:"codigo"`
	Name      string    `json:"nombre"`
	Symbol    string    `json:"simbolo"`
	IsDefault bool      `json:"es_default"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Currency) Key() int64        { return c.ID }
func (c *Currency) SetKey(id int64)   { c.ID = id }
func (c *Currency) Active() bool      { return c.IsActive }
func (c *Currency) Deactivate()       { c.IsActive = false }
func (c *Currency) Default() bool     { return c.IsDefault }
func (c *Currency) Uniques() []Unique { return []Unique{{"codigo", c.Code}} }
func (c *Currency) Stamp(now time.Time) {
	stamp(&c.CreatedAt, &c.UpdatedAt, now)
}

func (c *Currency) Clone() *Currency {
	cp := *c
	return &cp
}

func (c *Currency) Validate() error {
	return requireNonEmpty(field{"codigo", c.Code}, field{"nombre", c.Name})
}

type InsuranceType struct {
	ID               int64     `json:"id"`
	Code             string    `json:"codigo"`
	Name             string    `json:"nombre"`
	Category         string    `json:"categoria"`
	Coverage         string    `json:"cobertura"`
	DefaultTermYears int       `json:"vigencia_default"`
	InsurerID        *int64    `json:"aseguradora_id"`
	IsDefault        bool      `json:"es_default"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (t *InsuranceType) Key() int64        { return t.ID }
func (t *InsuranceType) SetKey(id int64)   { t.ID = id }
func (t *InsuranceType) Active() bool      { return t.IsActive }
func (t *InsuranceType) Deactivate()       { t.IsActive = false }
func (t *InsuranceType) Default() bool     { return t.IsDefault }
func (t *InsuranceType) Uniques() []Unique { return []Unique{{"codigo", t.Code}} }
func (t *InsuranceType) Stamp(now time.Time) {
	stamp(&t.CreatedAt, &t.UpdatedAt, now)
}

func (t *InsuranceType) Clone() *InsuranceType {
	cp := *t
	if t.InsurerID != nil {
		id := *t.InsurerID
		cp.InsurerID = &id
	}
	return &cp
}

func (t *InsuranceType) Validate() error {
	if err := requireNonEmpty(field{"codigo", t.Code}, field{"nombre", t.Name}); err != nil {
		return err
	}
	if t.DefaultTermYears < 1 {
		return dErrors.New(dErrors.CodeValidation, "vigencia_default must be at least 1").WithField("vigencia_default")
	}
	return nil
}

// Insurer has no default flag; Default always reports false.
type Insurer struct {
	ID               int64     `json:"id"`
	Name             string    `json:"nombre"`
	FiscalIdentifier string    `json:"fiscal_identifier"`
	Address          string    `json:"direccion"`
	Phone            string    `json:"telefono"`
	Email            string    `json:"email"`
	Website          string    `json:"pagina_web"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (i *Insurer) Key() int64      { return i.ID }
func (i *Insurer) SetKey(id int64) { i.ID = id }
func (i *Insurer) Active() bool    { return i.IsActive }
func (i *Insurer) Deactivate()     { i.IsActive = false }
func (i *Insurer) Default() bool   { return false }
func (i *Insurer) Uniques() []Unique {
	return []Unique{{"nombre", i.Name}, {"fiscal_identifier", i.FiscalIdentifier}}
}
func (i *Insurer) Stamp(now time.Time) {
	stamp(&i.CreatedAt, &i.UpdatedAt, now)
}

func (i *Insurer) Clone() *Insurer {
	cp := *i
	return &cp
}

func (i *Insurer) Validate() error {
	return requireNonEmpty(field{"nombre", i.Name}, field{"fiscal_identifier", i.FiscalIdentifier})
}

type field struct {
	name  string
	value string
}

func requireNonEmpty(fields ...field) error {
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return dErrors.New(dErrors.CodeValidation, f.name+" must not be empty").WithField(f.name)
		}
	}
	return nil
}

func stamp(created, updated *time.Time, now time.Time) {
	if created.IsZero() {
		*created = now
	}
	*updated = now
}
