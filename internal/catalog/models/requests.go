package models

import "strings"

// Create payloads. is_active defaults to true; is_default to false.

type CreateDocumentType struct {
	Code        string  `json:"codigo" validate:"required,max=20"`
	Name        string  `json:"nombre" validate:"required,max=100"`
	Description *string `json:"descripcion"`
	IsDefault   bool    `json:"es_default"`
	IsActive    *bool   `json:"is_active"`
}

func (r *CreateDocumentType) Normalize() {
	r.Code = strings.TrimSpace(r.Code)
	r.Name = strings.TrimSpace(r.Name)
}

func (r *CreateDocumentType) Build() *DocumentType {
	return &DocumentType{Code: r.Code, Name: r.Name, Description: r.Description, IsDefault: r.IsDefault, IsActive: activeOr(r.IsActive)}
}

type UpdateDocumentType struct {
	Code        *string `json:"codigo" validate:"omitempty,max=20"`
	Name        *string `json:"nombre" validate:"omitempty,max=100"`
	Description *string `json:"descripcion"`
	IsDefault   *bool   `json:"es_default"`
	IsActive    *bool   `json:"is_active"`
}

func (r *UpdateDocumentType) Normalize() {
	trim(r.Code)
	trim(r.Name)
}

func (r *UpdateDocumentType) Apply(d *DocumentType) {
	set(&d.Code, r.Code)
	set(&d.Name, r.Name)
	if r.Description != nil {
		desc := *r.Description
		d.Description = &desc
	}
	set(&d.IsDefault, r.IsDefault)
	set(&d.IsActive, r.IsActive)
}

type CreateCurrency struct {
	Code      string `json:"codigo" validate:"required,max=10"`
	Name      string `json:"nombre" validate:"required,max=100"`
	Symbol    string `json:"simbolo" validate:"max=10"`
	IsDefault bool   `json:"es_default"`
	IsActive  *bool  `json:"is_active"`
}

func (r *CreateCurrency) Normalize() {
	r.Code = strings.TrimSpace(r.Code)
	r.Name = strings.TrimSpace(r.Name)
	r.Symbol = strings.TrimSpace(r.Symbol)
}

func (r *CreateCurrency) Build() *Currency {
	return &Currency{Code: r.Code, Name: r.Name, Symbol: r.Symbol, IsDefault: r.IsDefault, IsActive: activeOr(r.IsActive)}
}

type UpdateCurrency struct {
	Code      *string `json:"codigo" validate:"omitempty,max=10"`
	Name      *string `json:"nombre" validate:"omitempty,max=100"`
	Symbol    *string `json:"simbolo" validate:"omitempty,max=10"`
	IsDefault *bool   `json:"es_default"`
	IsActive  *bool   `json:"is_active"`
}

func (r *UpdateCurrency) Normalize() {
	trim(r.Code)
	trim(r.Name)
	trim(r.Symbol)
}

func (r *UpdateCurrency) Apply(c *Currency) {
	set(&c.Code, r.Code)
	set(&c.Name, r.Name)
	set(&c.Symbol, r.Symbol)
	set(&c.IsDefault, r.IsDefault)
	set(&c.IsActive, r.IsActive)
}

type CreateInsuranceType struct {
	Code             string `json:"codigo" validate:"required,max=20"`
	Name             string `json:"nombre" validate:"required,max=100"`
	Category         string `json:"categoria" validate:"max=100"`
	Coverage         string `json:"cobertura"`
	DefaultTermYears *int   `json:"vigencia_default"`
	InsurerID        *int64 `json:"aseguradora_id" validate:"omitempty,gt=0"`
	IsDefault        bool   `json:"es_default"`
	IsActive         *bool  `json:"is_active"`
}

func (r *CreateInsuranceType) Normalize() {
	r.Code = strings.TrimSpace(r.Code)
	r.Name = strings.TrimSpace(r.Name)
	r.Category = strings.TrimSpace(r.Category)
}

// Build defaults vigencia_default to one year.
func (r *CreateInsuranceType) Build() *InsuranceType {
	term := 1
	if r.DefaultTermYears != nil {
		term = *r.DefaultTermYears
	}
	return &InsuranceType{
		Code: r.Code, Name: r.Name, Category: r.Category, Coverage: r.Coverage,
		DefaultTermYears: term, InsurerID: r.InsurerID, IsDefault: r.IsDefault, IsActive: activeOr(r.IsActive),
	}
}

type UpdateInsuranceType struct {
	Code             *string `json:"codigo" validate:"omitempty,max=20"`
	Name             *string `json:"nombre" validate:"omitempty,max=100"`
	Category         *string `json:"categoria" validate:"omitempty,max=100"`
	Coverage         *string `json:"cobertura"`
	DefaultTermYears *int    `json:"vigencia_default"`
	InsurerID        *int64  `json:"aseguradora_id" validate:"omitempty,gt=0"`
	IsDefault        *bool   `json:"es_default"`
	IsActive         *bool   `json:"is_active"`
}

func (r *UpdateInsuranceType) Normalize() {
	trim(r.Code)
	trim(r.Name)
	trim(r.Category)
}

func (r *UpdateInsuranceType) Apply(t *InsuranceType) {
	set(&t.Code, r.Code)
	set(&t.Name, r.Name)
	set(&t.Category, r.Category)
	set(&t.Coverage, r.Coverage)
	set(&t.DefaultTermYears, r.DefaultTermYears)
	if r.InsurerID != nil {
		id := *r.InsurerID
		t.InsurerID = &id
	}
	set(&t.IsDefault, r.IsDefault)
	set(&t.IsActive, r.IsActive)
}

type CreateInsurer struct {
	Name             string `json:"nombre" validate:"required,max=200"`
	FiscalIdentifier string `json:"fiscal_identifier" validate:"required,max=50"`
	Address          string `json:"direccion" validate:"max=255"`
	Phone            string `json:"telefono" validate:"max=50"`
	Email            string `json:"email" validate:"omitempty,email,max=255"`
	Website          string `json:"pagina_web" validate:"max=255"`
	IsActive         *bool  `json:"is_active"`
}

func (r *CreateInsurer) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.FiscalIdentifier = strings.TrimSpace(r.FiscalIdentifier)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Website = strings.TrimSpace(r.Website)
}

func (r *CreateInsurer) Build() *Insurer {
	return &Insurer{
		Name: r.Name, FiscalIdentifier: r.FiscalIdentifier, Address: r.Address, Phone: r.Phone,
		Email: r.Email, Website: r.Website, IsActive: activeOr(r.IsActive),
	}
}

type UpdateInsurer struct {
	Name             *string `json:"nombre" validate:"omitempty,max=200"`
	FiscalIdentifier *string `json:"fiscal_identifier" validate:"omitempty,max=50"`
	Address          *string `json:"direccion" validate:"omitempty,max=255"`
	Phone            *string `json:"telefono" validate:"omitempty,max=50"`
	Email            *string `json:"email" validate:"omitempty,email,max=255"`
	Website          *string `json:"pagina_web" validate:"omitempty,max=255"`
	IsActive         *bool   `json:"is_active"`
}

func (r *UpdateInsurer) Normalize() {
	trim(r.Name)
	trim(r.FiscalIdentifier)
	trim(r.Website)
	if r.Email != nil {
		*r.Email = strings.ToLower(strings.TrimSpace(*r.Email))
	}
}

func (r *UpdateInsurer) Apply(i *Insurer) {
	set(&i.Name, r.Name)
	set(&i.FiscalIdentifier, r.FiscalIdentifier)
	set(&i.Address, r.Address)
	set(&i.Phone, r.Phone)
	set(&i.Email, r.Email)
	set(&i.Website, r.Website)
	set(&i.IsActive, r.IsActive)
}

func activeOr(v *bool) bool {
	return v == nil || *v
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func trim(v *string) {
	if v != nil {
		*v = strings.TrimSpace(*v)
	}
}
