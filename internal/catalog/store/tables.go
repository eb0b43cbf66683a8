package store

import (
	"database/sql"

	"corretaje/internal/catalog/models"
	"corretaje/internal/platform/postgres"
)

var DocumentTypes = Table[*models.DocumentType]{
	Name:       string(models.KindDocumentTypes),
	Columns:    []string{"codigo", "nombre", "descripcion", "es_default", "is_active"},
	HasDefault: true,
	Values: func(d *models.DocumentType) []any {
		return []any{d.Code, d.Name, nullString(d.Description), d.IsDefault, d.IsActive}
	},
	Scan: func(row scanner) (*models.DocumentType, error) {
		var (
			d    models.DocumentType
			desc sql.NullString
		)
		if err := row.Scan(&d.ID, &d.Code, &d.Name, &desc, &d.IsDefault, &d.IsActive); err != nil {
			return nil, err
		}
		if desc.Valid {
			d.Description = &desc.String
		}
		return &d, nil
	},
	Constraints: postgres.ConstraintFields{"tipos_documento_codigo_key": "codigo"},
}

var Currencies = Table[*models.Currency]{
	Name:       string(models.KindCurrencies),
	Columns:    []string{"codigo", "nombre", "simbolo", "es_default", "is_active", "created_at", "updated_at"},
	HasDefault: true,
	Values: func(c *models.Currency) []any {
		return []any{c.Code, c.Name, c.Symbol, c.IsDefault, c.IsActive, c.CreatedAt, c.UpdatedAt}
	},
	Scan: func(row scanner) (*models.Currency, error) {
		var c models.Currency
		if err := row.Scan(&c.ID, &c.Code, &c.Name, &c.Symbol, &c.IsDefault, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		return &c, nil
	},
	Constraints: postgres.ConstraintFields{"monedas_codigo_key": "codigo"},
}

var InsuranceTypes = Table[*models.InsuranceType]{
	Name: string(models.KindInsuranceTypes),
	Columns: []string{"codigo", "nombre", "categoria", "cobertura", "vigencia_default", "aseguradora_id",
		"es_default", "is_active", "created_at", "updated_at"},
	HasDefault: true,
	Values: func(t *models.InsuranceType) []any {
		return []any{t.Code, t.Name, t.Category, t.Coverage, t.DefaultTermYears, nullInt64(t.InsurerID),
			t.IsDefault, t.IsActive, t.CreatedAt, t.UpdatedAt}
	},
	Scan: func(row scanner) (*models.InsuranceType, error) {
		var (
			t       models.InsuranceType
			insurer sql.NullInt64
		)
		if err := row.Scan(&t.ID, &t.Code, &t.Name, &t.Category, &t.Coverage, &t.DefaultTermYears, &insurer,
			&t.IsDefault, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if insurer.Valid {
			t.InsurerID = &insurer.Int64
		}
		return &t, nil
	},
	Constraints: postgres.ConstraintFields{
		"tipos_seguro_codigo_key":             "codigo",
		"tipos_seguro_aseguradora_id_fkey":    "aseguradora_id",
		"tipos_seguro_vigencia_default_check": "vigencia_default",
	},
}

var Insurers = Table[*models.Insurer]{
	Name: string(models.KindInsurers),
	Columns: []string{"nombre", "fiscal_identifier", "direccion", "telefono", "email", "pagina_web",
		"is_active", "created_at", "updated_at"},
	Values: func(i *models.Insurer) []any {
		return []any{i.Name, i.FiscalIdentifier, i.Address, i.Phone, i.Email, i.Website,
			i.IsActive, i.CreatedAt, i.UpdatedAt}
	},
	Scan: func(row scanner) (*models.Insurer, error) {
		var i models.Insurer
		if err := row.Scan(&i.ID, &i.Name, &i.FiscalIdentifier, &i.Address, &i.Phone, &i.Email, &i.Website,
			&i.IsActive, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, err
		}
		return &i, nil
	},
	Constraints: postgres.ConstraintFields{
		"aseguradoras_nombre_key":            "nombre",
		"aseguradoras_fiscal_identifier_key": "fiscal_identifier",
	},
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
