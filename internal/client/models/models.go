package models

import (
	"strings"
	"time"

	"corretaje/pkg/domain"
	dErrors "corretaje/pkg/domain-errors"
)

// Client is an insured person. ID is the UUID key; Number is the
// sequence-assigned number users see.
type Client struct {
	ID             domain.ClientID   `json:"id"`
	Number         int64             `json:"numero_cliente"`
	GivenNames     string            `json:"nombres"`
	Surnames       string            `json:"apellidos"`
	DocumentTypeID *int64            `json:"tipo_documento_id"`
	Document       string            `json:"documento"`
	Address        string            `json:"direccion"`
	Locality       string            `json:"localidad"`
	Phone          string            `json:"telefono"`
	Mobile         string            `json:"movil"`
	Email          string            `json:"email"`
	BirthDate      domain.Date       `json:"fecha_nacimiento"`
	Observations   string            `json:"observaciones"`
	CreatedByID    domain.OperatorID `json:"creado_por_id"`
	ModifiedByID   domain.OperatorID `json:"modificado_por_id"`
	CreatedAt      time.Time         `json:"fecha_creacion"`
	ModifiedAt     time.Time         `json:"fecha_modificacion"`
}

// Link ties a client to a broker number.
type Link struct {
	ClientID     domain.ClientID     `json:"cliente_id"`
	BrokerNumber domain.BrokerNumber `json:"corredor_numero"`
	AssignedAt   domain.Date         `json:"fecha_asignacion"`
}

type CreateClientRequest struct {
	GivenNames     string      `json:"nombres" validate:"required,max=100"`
	Surnames       string      `json:"apellidos" validate:"required,max=100"`
	DocumentTypeID *int64      `json:"tipo_documento_id" validate:"omitempty,gt=0"`
	Document       string      `json:"documento" validate:"required,max=50"`
	Address        string      `json:"direccion" validate:"max=255"`
	Locality       string      `json:"localidad" validate:"max=100"`
	Phone          string      `json:"telefono" validate:"max=50"`
	Mobile         string      `json:"movil" validate:"max=50"`
	Email          string      `json:"email" validate:"required,email,max=255"`
	BirthDate      domain.Date `json:"fecha_nacimiento"`
	Observations   string      `json:"observaciones"`
}

func (r *CreateClientRequest) Normalize() {
	r.GivenNames = strings.TrimSpace(r.GivenNames)
	r.Surnames = strings.TrimSpace(r.Surnames)
	r.Document = strings.TrimSpace(r.Document)
	r.Address = strings.TrimSpace(r.Address)
	r.Locality = strings.TrimSpace(r.Locality)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Mobile = strings.TrimSpace(r.Mobile)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

// UpdateClientRequest is a partial update; nil fields are left as is.
type UpdateClientRequest struct {
	GivenNames     *string      `json:"nombres" validate:"omitempty,max=100"`
	Surnames       *string      `json:"apellidos" validate:"omitempty,max=100"`
	DocumentTypeID *int64       `json:"tipo_documento_id" validate:"omitempty,gt=0"`
	Document       *string      `json:"documento" validate:"omitempty,max=50"`
	Address        *string      `json:"direccion" validate:"omitempty,max=255"`
	Locality       *string      `json:"localidad" validate:"omitempty,max=100"`
	Phone          *string      `json:"telefono" validate:"omitempty,max=50"`
	Mobile         *string      `json:"movil" validate:"omitempty,max=50"`
	Email          *string      `json:"email" validate:"omitempty,email,max=255"`
	BirthDate      *domain.Date `json:"fecha_nacimiento"`
	Observations   *string      `json:"observaciones"`
}

func (r *UpdateClientRequest) Normalize() {
	for _, f := range []*string{r.GivenNames, r.Surnames, r.Document, r.Address, r.Locality, r.Phone, r.Mobile} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
	if r.Email != nil {
		*r.Email = strings.ToLower(strings.TrimSpace(*r.Email))
	}
}

func (r *UpdateClientRequest) Validate() error {
	required := []struct {
		field string
		value *string
	}{{"nombres", r.GivenNames}, {"apellidos", r.Surnames}, {"documento", r.Document}, {"email", r.Email}}
	for _, f := range required {
		if f.value != nil && *f.value == "" {
			return dErrors.New(dErrors.CodeValidation, f.field+" must not be empty").WithField(f.field)
		}
	}
	return nil
}

// CreateLinkRequest attaches a broker to a client. fecha_asignacion
// defaults to today.
type CreateLinkRequest struct {
	BrokerNumber domain.BrokerNumber `json:"corredor_numero"`
	AssignedAt   domain.Date         `json:"fecha_asignacion"`
}

func (r *CreateLinkRequest) Validate() error {
	if err := r.BrokerNumber.Validate(); err != nil {
		return dErrors.New(dErrors.CodeValidation, "corredor_numero must be between 1000 and 9999").WithField("corredor_numero")
	}
	return nil
}
