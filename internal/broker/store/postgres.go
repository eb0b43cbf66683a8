package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"corretaje/internal/broker/models"
	"corretaje/internal/platform/postgres"
	"corretaje/pkg/domain"
	"corretaje/pkg/platform/sentinel"
	"corretaje/pkg/platform/tx"
)

var constraintFields = postgres.ConstraintFields{
	"corredores_numero_key":    "numero",
	"corredores_documento_key": "documento",
	"corredores_email_key":     "email",
	"corredores_numero_check":  "numero",
}

const brokerColumns = `id, numero, rol, nombres, apellidos, documento, direccion, localidad,
	telefono, movil, email, observaciones, matricula, especializacion, fecha_alta, fecha_baja,
	created_at, updated_at`

// PostgresStore persists brokers in the corredores table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, b *models.Broker) error {
	query := `
		INSERT INTO corredores (numero, rol, nombres, apellidos, documento, direccion, localidad,
			telefono, movil, email, observaciones, matricula, especializacion, fecha_alta, fecha_baja,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id`
	err := tx.Executor(ctx, s.db).QueryRowContext(ctx, query,
		int(b.Number), string(b.Role), b.GivenNames, b.Surnames, b.Document, b.Address, b.Locality,
		b.Phone, b.Mobile, b.Email, b.Observations, b.License, b.Specialization, b.AltaDate, b.BajaDate,
		b.CreatedAt, b.UpdatedAt,
	).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("create broker: %w", postgres.TranslateError(err, constraintFields))
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, b *models.Broker) error {
	query := `
		UPDATE corredores SET rol = $2, nombres = $3, apellidos = $4, documento = $5, direccion = $6,
			localidad = $7, telefono = $8, movil = $9, email = $10, observaciones = $11, matricula = $12,
			especializacion = $13, fecha_alta = $14, fecha_baja = $15, updated_at = $16
		WHERE id = $1`
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, query,
		b.ID, string(b.Role), b.GivenNames, b.Surnames, b.Document, b.Address,
		b.Locality, b.Phone, b.Mobile, b.Email, b.Observations, b.License,
		b.Specialization, b.AltaDate, b.BajaDate, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update broker: %w", postgres.TranslateError(err, constraintFields))
	}
	return requireRow(res)
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, `DELETE FROM corredores WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete broker: %w", postgres.TranslateError(err, constraintFields))
	}
	return requireRow(res)
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.Broker, error) {
	return s.queryOne(ctx, `SELECT `+brokerColumns+` FROM corredores WHERE id = $1`, id)
}

func (s *PostgresStore) FindByNumber(ctx context.Context, number domain.BrokerNumber) (*models.Broker, error) {
	return s.queryOne(ctx, `SELECT `+brokerColumns+` FROM corredores WHERE numero = $1`, int(number))
}

func (s *PostgresStore) FindByDocument(ctx context.Context, document string) (*models.Broker, error) {
	return s.queryOne(ctx, `SELECT `+brokerColumns+` FROM corredores
		WHERE documento = $1 AND fecha_baja IS NULL ORDER BY id LIMIT 1`, document)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Broker, error) {
	return s.queryOne(ctx, `SELECT `+brokerColumns+` FROM corredores
		WHERE lower(email) = lower($1) AND fecha_baja IS NULL ORDER BY id LIMIT 1`, email)
}

func (s *PostgresStore) ExistsNumber(ctx context.Context, number domain.BrokerNumber) (bool, error) {
	var exists bool
	err := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM corredores WHERE numero = $1)`, int(number)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check broker number: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) List(ctx context.Context, skip, limit int) ([]*models.Broker, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx,
		`SELECT `+brokerColumns+` FROM corredores ORDER BY id OFFSET $1 LIMIT $2`, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list brokers: %w", err)
	}
	defer rows.Close()

	out := []*models.Broker{}
	for rows.Next() {
		b, err := scanBroker(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list brokers: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := tx.Executor(ctx, s.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM corredores`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count brokers: %w", err)
	}
	return n, nil
}

// LockTable blocks concurrent writers to corredores until the surrounding
// transaction ends. Outside a transaction it is a no-op.
func (s *PostgresStore) LockTable(ctx context.Context) error {
	sqlTx, ok := tx.From(ctx)
	if !ok {
		return nil
	}
	if _, err := sqlTx.ExecContext(ctx, `LOCK TABLE corredores IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("lock brokers: %w", err)
	}
	return nil
}

func (s *PostgresStore) queryOne(ctx context.Context, query string, args ...any) (*models.Broker, error) {
	return scanBroker(tx.Executor(ctx, s.db).QueryRowContext(ctx, query, args...))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBroker(row scanner) (*models.Broker, error) {
	var (
		b      models.Broker
		number int
		role   string
		baja   domain.Date
	)
	err := row.Scan(&b.ID, &number, &role, &b.GivenNames, &b.Surnames, &b.Document, &b.Address, &b.Locality,
		&b.Phone, &b.Mobile, &b.Email, &b.Observations, &b.License, &b.Specialization, &b.AltaDate, &baja,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan broker: %w", err)
	}
	b.Number = domain.BrokerNumber(number)
	b.Role = models.Role(role)
	if !baja.IsZero() {
		b.BajaDate = &baja
	}
	return &b, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
