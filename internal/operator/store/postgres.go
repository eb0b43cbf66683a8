package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"corretaje/internal/operator/models"
	"corretaje/internal/platform/postgres"
	"corretaje/pkg/domain"
	"corretaje/pkg/platform/sentinel"
	"corretaje/pkg/platform/tx"
)

var constraintFields = postgres.ConstraintFields{
	"usuarios_username_key":         "username",
	"usuarios_email_key":            "email",
	"usuarios_corredor_numero_fkey": "corredor_numero",
}

const operatorColumns = `id, username, email, hashed_password, nombre, apellido, rol,
	is_active, is_superuser, comision_porcentaje, corredor_numero, created_at, updated_at`

// PostgresStore persists operators in the usuarios table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, op *models.Operator) error {
	query := `
		INSERT INTO usuarios (username, email, hashed_password, nombre, apellido, rol,
			is_active, is_superuser, comision_porcentaje, corredor_numero, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`
	err := tx.Executor(ctx, s.db).QueryRowContext(ctx, query,
		op.Username, op.Email, op.PasswordHash, op.GivenName, op.Surname, string(op.Role),
		op.IsActive, op.IsSuperuser, nullDecimal(op.CommissionPercent), nullBroker(op.BrokerNumber),
		op.CreatedAt, op.UpdatedAt,
	).Scan(&op.ID)
	if err != nil {
		return fmt.Errorf("create operator: %w", postgres.TranslateError(err, constraintFields))
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, op *models.Operator) error {
	query := `
		UPDATE usuarios SET username = $2, email = $3, hashed_password = $4, nombre = $5,
			apellido = $6, rol = $7, is_active = $8, is_superuser = $9,
			comision_porcentaje = $10, corredor_numero = $11, updated_at = $12
		WHERE id = $1`
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, query,
		int64(op.ID), op.Username, op.Email, op.PasswordHash, op.GivenName, op.Surname, string(op.Role),
		op.IsActive, op.IsSuperuser, nullDecimal(op.CommissionPercent), nullBroker(op.BrokerNumber),
		op.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update operator: %w", postgres.TranslateError(err, constraintFields))
	}
	return requireRow(res)
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.OperatorID) error {
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, `DELETE FROM usuarios WHERE id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("delete operator: %w", postgres.TranslateError(err, constraintFields))
	}
	return requireRow(res)
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.OperatorID) (*models.Operator, error) {
	row := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+operatorColumns+` FROM usuarios WHERE id = $1`, int64(id))
	return scanOperator(row)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Operator, error) {
	row := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+operatorColumns+` FROM usuarios WHERE lower(email) = lower($1)`, email)
	return scanOperator(row)
}

func (s *PostgresStore) List(ctx context.Context, skip, limit int) ([]*models.Operator, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx,
		`SELECT `+operatorColumns+` FROM usuarios ORDER BY id OFFSET $1 LIMIT $2`, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list operators: %w", err)
	}
	defer rows.Close()

	var out []*models.Operator
	for rows.Next() {
		op, err := scanOperator(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list operators: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountByBroker(ctx context.Context, number domain.BrokerNumber) (int, error) {
	var n int
	err := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM usuarios WHERE corredor_numero = $1`, int(number)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count operators by broker: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOperator(row scanner) (*models.Operator, error) {
	var (
		op         models.Operator
		id         int64
		role       string
		commission decimal.NullDecimal
		broker     sql.NullInt64
	)
	err := row.Scan(&id, &op.Username, &op.Email, &op.PasswordHash, &op.GivenName, &op.Surname, &role,
		&op.IsActive, &op.IsSuperuser, &commission, &broker, &op.CreatedAt, &op.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan operator: %w", err)
	}
	op.ID = domain.OperatorID(id)
	op.Role = domain.Role(role)
	if commission.Valid {
		c := commission.Decimal
		op.CommissionPercent = &c
	}
	if broker.Valid {
		n := domain.BrokerNumber(broker.Int64)
		op.BrokerNumber = &n
	}
	return &op, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func nullBroker(n *domain.BrokerNumber) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
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
