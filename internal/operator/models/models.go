package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"corretaje/pkg/domain"
	dErrors "corretaje/pkg/domain-errors"
)

var maxCommission = decimal.NewFromInt(100)

// Operator is a human account that signs in to the back-office.
type Operator struct {
	ID                domain.OperatorID    `json:"id"`
	Username          string               `json:"username"`
	Email             string               `json:"email"`
	PasswordHash      string               `json:"-"`
	GivenName         string               `json:"nombre"`
	Surname           string               `json:"apellido"`
	Role              domain.Role          `json:"rol"`
	IsActive          bool                 `json:"is_active"`
	IsSuperuser       bool                 `json:"is_superuser"`
	CommissionPercent *decimal.Decimal     `json:"comision_porcentaje,omitempty"`
	BrokerNumber      *domain.BrokerNumber `json:"corredor_numero"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// Principal projects the operator onto the request identity.
func (o *Operator) Principal() *domain.Principal {
	p := &domain.Principal{
		OperatorID:  o.ID,
		Email:       o.Email,
		Role:        o.Role,
		IsSuperuser: o.IsSuperuser,
	}
	if o.BrokerNumber != nil {
		n := *o.BrokerNumber
		p.BrokerNumber = &n
	}
	return p
}

// CreateOperatorRequest is the /usuarios create payload.
type CreateOperatorRequest struct {
	Username          string               `json:"username"`
	Email             string               `json:"email" validate:"required,email,max=255"`
	Password          string               `json:"password" validate:"required,min=8,max=72"`
	GivenName         string               `json:"nombre" validate:"max=100"`
	Surname           string               `json:"apellido" validate:"max=100"`
	Role              domain.Role          `json:"rol" validate:"required"`
	IsActive          *bool                `json:"is_active"`
	IsSuperuser       bool                 `json:"is_superuser"`
	CommissionPercent *decimal.Decimal     `json:"comision_porcentaje"`
	BrokerNumber      *domain.BrokerNumber `json:"corredor_numero"`
}

func (r *CreateOperatorRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Username = strings.TrimSpace(r.Username)
	if r.Username == "" {
		r.Username = r.Email
	}
	r.GivenName = strings.TrimSpace(r.GivenName)
	r.Surname = strings.TrimSpace(r.Surname)
	r.Role = domain.Role(strings.ToLower(strings.TrimSpace(string(r.Role))))
}

func (r *CreateOperatorRequest) Validate() error {
	if _, err := domain.ParseRole(string(r.Role)); err != nil {
		return dErrors.New(dErrors.CodeValidation, "rol must be one of admin, broker, assistant").WithField("rol")
	}
	if err := validateCommission(r.CommissionPercent); err != nil {
		return err
	}
	if r.BrokerNumber != nil {
		if err := r.BrokerNumber.Validate(); err != nil {
			return dErrors.New(dErrors.CodeValidation, "corredor_numero must be between 1000 and 9999").WithField("corredor_numero")
		}
	}
	return nil
}

// UpdateOperatorRequest carries a partial update; nil fields are left as is.
type UpdateOperatorRequest struct {
	Username          *string              `json:"username"`
	Email             *string              `json:"email" validate:"omitempty,email,max=255"`
	Password          *string              `json:"password" validate:"omitempty,min=8,max=72"`
	GivenName         *string              `json:"nombre" validate:"omitempty,max=100"`
	Surname           *string              `json:"apellido" validate:"omitempty,max=100"`
	Role              *domain.Role         `json:"rol"`
	IsActive          *bool                `json:"is_active"`
	IsSuperuser       *bool                `json:"is_superuser"`
	CommissionPercent *decimal.Decimal     `json:"comision_porcentaje"`
	BrokerNumber      *domain.BrokerNumber `json:"corredor_numero"`
}

func (r *UpdateOperatorRequest) Normalize() {
	if r.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*r.Email))
		r.Email = &e
	}
	if r.Username != nil {
		u := strings.TrimSpace(*r.Username)
		r.Username = &u
	}
	if r.Role != nil {
		role := domain.Role(strings.ToLower(strings.TrimSpace(string(*r.Role))))
		r.Role = &role
	}
}

func (r *UpdateOperatorRequest) Validate() error {
	if r.Username != nil && *r.Username == "" {
		return dErrors.New(dErrors.CodeValidation, "username must not be empty").WithField("username")
	}
	if r.Role != nil {
		if _, err := domain.ParseRole(string(*r.Role)); err != nil {
			return dErrors.New(dErrors.CodeValidation, "rol must be one of admin, broker, assistant").WithField("rol")
		}
	}
	if err := validateCommission(r.CommissionPercent); err != nil {
		return err
	}
	if r.BrokerNumber != nil {
		if err := r.BrokerNumber.Validate(); err != nil {
			return dErrors.New(dErrors.CodeValidation, "corredor_numero must be between 1000 and 9999").WithField("corredor_numero")
		}
	}
	return nil
}

func validateCommission(c *decimal.Decimal) error {
	if c == nil {
		return nil
	}
	if c.IsNegative() || c.GreaterThan(maxCommission) {
		return dErrors.New(dErrors.CodeValidation, "comision_porcentaje must be between 0 and 100").WithField("comision_porcentaje")
	}
	return nil
}

// Response hides the commission from callers without commissions_view.
func Response(o *Operator, showCommission bool) *Operator {
	out := *o
	if !showCommission {
		out.CommissionPercent = nil
	}
	return &out
}
