package models

import (
	"strings"

	"github.com/shopspring/decimal"

	"corretaje/pkg/domain"
	dErrors "corretaje/pkg/domain-errors"
)

type CreateMovementRequest struct {
	ClientID        domain.ClientID      `json:"cliente_id"`
	BrokerNumber    *domain.BrokerNumber `json:"corredor_numero"`
	InsuranceTypeID int64                `json:"tipo_seguro_id" validate:"required,gt=0"`
	CurrencyID      *int64               `json:"moneda_id" validate:"omitempty,gt=0"`
	PolicyNumber    string               `json:"numero_poliza" validate:"required,max=50"`
	Folder          *string              `json:"carpeta" validate:"omitempty,max=50"`
	Endorsement     *string              `json:"endoso" validate:"omitempty,max=50"`
	EndorsementType *string              `json:"tipo_endoso" validate:"omitempty,max=50"`
	PaymentMode     *string              `json:"forma_pago" validate:"omitempty,max=50"`
	StartDate       domain.Date          `json:"fecha_inicio"`
	EndDate         domain.Date          `json:"fecha_vencimiento"`
	IssuedDate      *domain.Date         `json:"fecha_emision"`
	Status          string               `json:"estado" validate:"max=30"`
	InsuredAmount   decimal.Decimal      `json:"suma_asegurada"`
	Premium         decimal.Decimal      `json:"prima"`
	Commission      *decimal.Decimal     `json:"comision"`
	Installments    *int                 `json:"cuotas"`
	Observations    string               `json:"observaciones"`
	DurationClass   DurationClass        `json:"tipo_duracion"`
}

func (r *CreateMovementRequest) Normalize() {
	r.PolicyNumber = strings.TrimSpace(r.PolicyNumber)
	r.Status = strings.TrimSpace(r.Status)
	if r.Status == "" {
		r.Status = StatusActive
	}
	if r.DurationClass == "" {
		r.DurationClass = Annual
	}
}

func (r *CreateMovementRequest) Validate() error {
	if r.ClientID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "cliente_id is required").WithField("cliente_id")
	}
	if r.BrokerNumber != nil {
		if err := r.BrokerNumber.Validate(); err != nil {
			return dErrors.New(dErrors.CodeValidation, "corredor_numero must be between 1000 and 9999").WithField("corredor_numero")
		}
	}
	return nil
}

// Movement builds the record the request describes, without id or stamps.
func (r *CreateMovementRequest) Movement() *Movement {
	return &Movement{
		ClientID:        r.ClientID,
		BrokerNumber:    r.BrokerNumber,
		InsuranceTypeID: r.InsuranceTypeID,
		CurrencyID:      r.CurrencyID,
		PolicyNumber:    r.PolicyNumber,
		Folder:          r.Folder,
		Endorsement:     r.Endorsement,
		EndorsementType: r.EndorsementType,
		PaymentMode:     r.PaymentMode,
		StartDate:       r.StartDate,
		EndDate:         r.EndDate,
		IssuedDate:      r.IssuedDate,
		Status:          r.Status,
		InsuredAmount:   r.InsuredAmount,
		Premium:         r.Premium,
		Commission:      r.Commission,
		Installments:    r.Installments,
		Observations:    r.Observations,
		DurationClass:   r.DurationClass,
	}
}

// UpdateMovementRequest is a partial update; nil fields are left as is.
// The owning client cannot change.
type UpdateMovementRequest struct {
	BrokerNumber    *domain.BrokerNumber `json:"corredor_numero"`
	InsuranceTypeID *int64               `json:"tipo_seguro_id" validate:"omitempty,gt=0"`
	CurrencyID      *int64               `json:"moneda_id" validate:"omitempty,gt=0"`
	PolicyNumber    *string              `json:"numero_poliza" validate:"omitempty,max=50"`
	Folder          *string              `json:"carpeta" validate:"omitempty,max=50"`
	Endorsement     *string              `json:"endoso" validate:"omitempty,max=50"`
	EndorsementType *string              `json:"tipo_endoso" validate:"omitempty,max=50"`
	PaymentMode     *string              `json:"forma_pago" validate:"omitempty,max=50"`
	StartDate       *domain.Date         `json:"fecha_inicio"`
	EndDate         *domain.Date         `json:"fecha_vencimiento"`
	IssuedDate      *domain.Date         `json:"fecha_emision"`
	Status          *string              `json:"estado" validate:"omitempty,max=30"`
	InsuredAmount   *decimal.Decimal     `json:"suma_asegurada"`
	Premium         *decimal.Decimal     `json:"prima"`
	Commission      *decimal.Decimal     `json:"comision"`
	Installments    *int                 `json:"cuotas"`
	Observations    *string              `json:"observaciones"`
	DurationClass   *DurationClass       `json:"tipo_duracion"`
}

func (r *UpdateMovementRequest) Normalize() {
	if r.PolicyNumber != nil {
		*r.PolicyNumber = strings.TrimSpace(*r.PolicyNumber)
	}
	if r.Status != nil {
		*r.Status = strings.TrimSpace(*r.Status)
	}
}

func (r *UpdateMovementRequest) Validate() error {
	if r.PolicyNumber != nil && *r.PolicyNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "numero_poliza must not be empty").WithField("numero_poliza")
	}
	if r.Status != nil && *r.Status == "" {
		return dErrors.New(dErrors.CodeValidation, "estado must not be empty").WithField("estado")
	}
	if r.BrokerNumber != nil {
		if err := r.BrokerNumber.Validate(); err != nil {
			return dErrors.New(dErrors.CodeValidation, "corredor_numero must be between 1000 and 9999").WithField("corredor_numero")
		}
	}
	return nil
}

// Apply copies the set fields onto m. Validate on m must run afterwards.
func (r *UpdateMovementRequest) Apply(m *Movement) {
	if r.BrokerNumber != nil {
		v := *r.BrokerNumber
		m.BrokerNumber = &v
	}
	if r.InsuranceTypeID != nil {
		m.InsuranceTypeID = *r.InsuranceTypeID
	}
	if r.CurrencyID != nil {
		v := *r.CurrencyID
		m.CurrencyID = &v
	}
	if r.PolicyNumber != nil {
		m.PolicyNumber = *r.PolicyNumber
	}
	if r.Folder != nil {
		m.Folder = r.Folder
	}
	if r.Endorsement != nil {
		m.Endorsement = r.Endorsement
	}
	if r.EndorsementType != nil {
		m.EndorsementType = r.EndorsementType
	}
	if r.PaymentMode != nil {
		m.PaymentMode = r.PaymentMode
	}
	if r.StartDate != nil {
		m.StartDate = *r.StartDate
	}
	if r.EndDate != nil {
		m.EndDate = *r.EndDate
	}
	if r.IssuedDate != nil {
		m.IssuedDate = r.IssuedDate
	}
	if r.Status != nil {
		m.Status = *r.Status
	}
	if r.InsuredAmount != nil {
		m.InsuredAmount = *r.InsuredAmount
	}
	if r.Premium != nil {
		m.Premium = *r.Premium
	}
	if r.Commission != nil {
		m.Commission = r.Commission
	}
	if r.Installments != nil {
		m.Installments = r.Installments
	}
	if r.Observations != nil {
		m.Observations = *r.Observations
	}
	if r.DurationClass != nil {
		m.DurationClass = *r.DurationClass
	}
}
