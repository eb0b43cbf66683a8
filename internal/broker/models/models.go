package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"corretaje/pkg/domain"
	dErrors "corretaje/pkg/domain-errors"
)

// Role is the broker-level role. Bootstrap brokers are admins.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleBroker Role = "broker"
)

// DefaultBootstrapNumber is used when the bootstrap request omits numero.
const DefaultBootstrapNumber domain.BrokerNumber = 1000

// Broker is an insurance intermediary. ID is storage-only; Number is the
// identifier users see and every other table references.
type Broker struct {
	ID             int64               `json:"id"`
	Number         domain.BrokerNumber `json:"numero"`
	Role           Role                `json:"rol"`
	GivenNames     string              `json:"nombres"`
	Surnames       string              `json:"apellidos"`
	Document       string              `json:"documento"`
	Address        string              `json:"direccion"`
	Locality       string              `json:"localidad"`
	Phone          string              `json:"telefono"`
	Mobile         string              `json:"movil"`
	Email          string              `json:"email"`
	Observations   string              `json:"observaciones"`
	License        string              `json:"matricula"`
	Specialization string              `json:"especializacion"`
	AltaDate       domain.Date         `json:"fecha_alta"`
	BajaDate       *domain.Date        `json:"fecha_baja"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// IsActive reports whether the broker has not been given a baja date.
func (b *Broker) IsActive() bool {
	return b.BajaDate == nil || b.BajaDate.IsZero()
}

// CreateBrokerRequest is the payload for POST /corredores.
type CreateBrokerRequest struct {
	Number         domain.BrokerNumber `json:"numero"`
	Role           Role                `json:"rol"`
	GivenNames     string              `json:"nombres" validate:"required,max=100"`
	Surnames       string              `json:"apellidos" validate:"required,max=100"`
	Document       string              `json:"documento" validate:"required,max=50"`
	Address        string              `json:"direccion" validate:"max=255"`
	Locality       string              `json:"localidad" validate:"max=100"`
	Phone          string              `json:"telefono" validate:"max=50"`
	Mobile         string              `json:"movil" validate:"max=50"`
	Email          string              `json:"email" validate:"required,email,max=255"`
	Observations   string              `json:"observaciones"`
	License        string              `json:"matricula" validate:"max=50"`
	Specialization string              `json:"especializacion" validate:"max=100"`
	AltaDate       domain.Date         `json:"fecha_alta"`
}

func (r *CreateBrokerRequest) Normalize() {
	r.GivenNames = strings.TrimSpace(r.GivenNames)
	r.Surnames = strings.TrimSpace(r.Surnames)
	r.Document = strings.TrimSpace(r.Document)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Address = strings.TrimSpace(r.Address)
	r.Locality = strings.TrimSpace(r.Locality)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Mobile = strings.TrimSpace(r.Mobile)
	r.License = strings.TrimSpace(r.License)
	r.Specialization = strings.TrimSpace(r.Specialization)
	r.Role = Role(strings.ToLower(strings.TrimSpace(string(r.Role))))
	if r.Role == "" {
		r.Role = RoleBroker
	}
}

func (r *CreateBrokerRequest) Validate() error {
	if err := r.Number.Validate(); err != nil {
		return err
	}
	if r.Role != RoleAdmin && r.Role != RoleBroker {
		return dErrors.New(dErrors.CodeValidation, "rol must be admin or broker").WithField("rol")
	}
	return nil
}

// UpdateBrokerRequest is a partial update. numero is accepted only when it
// equals the current number. An empty fecha_baja clears the baja date.
type UpdateBrokerRequest struct {
	Number         *domain.BrokerNumber `json:"numero"`
	Role           *Role                `json:"rol"`
	GivenNames     *string              `json:"nombres" validate:"omitempty,max=100"`
	Surnames       *string              `json:"apellidos" validate:"omitempty,max=100"`
	Document       *string              `json:"documento" validate:"omitempty,max=50"`
	Address        *string              `json:"direccion" validate:"omitempty,max=255"`
	Locality       *string              `json:"localidad" validate:"omitempty,max=100"`
	Phone          *string              `json:"telefono" validate:"omitempty,max=50"`
	Mobile         *string              `json:"movil" validate:"omitempty,max=50"`
	Email          *string              `json:"email" validate:"omitempty,email,max=255"`
	Observations   *string              `json:"observaciones"`
	License        *string              `json:"matricula" validate:"omitempty,max=50"`
	Specialization *string              `json:"especializacion" validate:"omitempty,max=100"`
	AltaDate       *domain.Date         `json:"fecha_alta"`
	BajaDate       *domain.Date         `json:"fecha_baja"`
}

func (r *UpdateBrokerRequest) Normalize() {
	for _, f := range []*string{r.GivenNames, r.Surnames, r.Document, r.Address, r.Locality, r.Phone, r.Mobile, r.License, r.Specialization} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
	if r.Email != nil {
		*r.Email = strings.ToLower(strings.TrimSpace(*r.Email))
	}
}

func (r *UpdateBrokerRequest) Validate() error {
	if r.Role != nil && *r.Role != RoleAdmin && *r.Role != RoleBroker {
		return dErrors.New(dErrors.CodeValidation, "rol must be admin or broker").WithField("rol")
	}
	required := []struct {
		field string
		value *string
	}{{"nombres", r.GivenNames}, {"apellidos", r.Surnames}, {"documento", r.Document}, {"email", r.Email}}
	for _, f := range required {
		if f.value != nil && *f.value == "" {
			return dErrors.New(dErrors.CodeValidation, f.field+" must not be empty").WithField(f.field)
		}
	}
	if r.AltaDate != nil && r.AltaDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "fecha_alta must be a date").WithField("fecha_alta")
	}
	return nil
}

// OperatorFields describes the operator account paired with a new broker.
type OperatorFields struct {
	Username          string           `json:"username"`
	Email             string           `json:"email" validate:"omitempty,email,max=255"`
	Password          string           `json:"password" validate:"required,min=8,max=72"`
	GivenName         string           `json:"nombre" validate:"max=100"`
	Surname           string           `json:"apellido" validate:"max=100"`
	CommissionPercent *decimal.Decimal `json:"comision_porcentaje"`
}

// CreateWithOperatorRequest is the payload for POST /corredores/con-usuario.
type CreateWithOperatorRequest struct {
	Broker   CreateBrokerRequest `json:"corredor"`
	Operator OperatorFields      `json:"usuario"`
}

func (r *CreateWithOperatorRequest) Normalize() {
	r.Broker.Normalize()
	r.Operator.normalizeFrom(&r.Broker)
}

func (r *CreateWithOperatorRequest) Validate() error {
	if err := r.Broker.Validate(); err != nil {
		return err
	}
	return r.Operator.validate()
}

// normalizeFrom fills operator identity fields the caller left empty with the
// broker's own.
func (o *OperatorFields) normalizeFrom(b *CreateBrokerRequest) {
	o.Email = strings.ToLower(strings.TrimSpace(o.Email))
	if o.Email == "" {
		o.Email = b.Email
	}
	o.Username = strings.TrimSpace(o.Username)
	if o.Username == "" {
		o.Username = o.Email
	}
	o.GivenName = strings.TrimSpace(o.GivenName)
	if o.GivenName == "" {
		o.GivenName = b.GivenNames
	}
	o.Surname = strings.TrimSpace(o.Surname)
	if o.Surname == "" {
		o.Surname = b.Surnames
	}
}

func (o *OperatorFields) validate() error {
	if o.CommissionPercent != nil && (o.CommissionPercent.IsNegative() || o.CommissionPercent.GreaterThan(decimal.NewFromInt(100))) {
		return dErrors.New(dErrors.CodeValidation, "comision_porcentaje must be between 0 and 100").WithField("comision_porcentaje")
	}
	return nil
}

// BootstrapRequest creates the first admin broker and its superuser account.
// numero defaults to 1000.
type BootstrapRequest struct {
	Number         *domain.BrokerNumber `json:"numero"`
	GivenNames     string               `json:"nombres" validate:"required,max=100"`
	Surnames       string               `json:"apellidos" validate:"required,max=100"`
	Document       string               `json:"documento" validate:"required,max=50"`
	Email          string               `json:"email" validate:"required,email,max=255"`
	Password       string               `json:"password" validate:"required,min=8,max=72"`
	Username       string               `json:"username"`
	Address        string               `json:"direccion"`
	Locality       string               `json:"localidad"`
	Phone          string               `json:"telefono"`
	Mobile         string               `json:"movil"`
	License        string               `json:"matricula"`
	Specialization string               `json:"especializacion"`
}

func (r *BootstrapRequest) Normalize() {
	if r.Number == nil {
		n := DefaultBootstrapNumber
		r.Number = &n
	}
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.GivenNames = strings.TrimSpace(r.GivenNames)
	r.Surnames = strings.TrimSpace(r.Surnames)
	r.Document = strings.TrimSpace(r.Document)
	r.Username = strings.TrimSpace(r.Username)
}

func (r *BootstrapRequest) Validate() error {
	return r.Number.Validate()
}

// AsOnboarding maps the bootstrap payload onto the regular onboarding shape
// with admin roles forced.
func (r *BootstrapRequest) AsOnboarding() *CreateWithOperatorRequest {
	req := &CreateWithOperatorRequest{
		Broker: CreateBrokerRequest{
			Number:         *r.Number,
			Role:           RoleAdmin,
			GivenNames:     r.GivenNames,
			Surnames:       r.Surnames,
			Document:       r.Document,
			Address:        r.Address,
			Locality:       r.Locality,
			Phone:          r.Phone,
			Mobile:         r.Mobile,
			Email:          r.Email,
			License:        r.License,
			Specialization: r.Specialization,
		},
		Operator: OperatorFields{
			Username: r.Username,
			Password: r.Password,
		},
	}
	req.Normalize()
	req.Broker.Role = RoleAdmin
	return req
}
