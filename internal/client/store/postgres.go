package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"corretaje/internal/client/models"
	"corretaje/internal/platform/postgres"
	"corretaje/pkg/domain"
	"corretaje/pkg/platform/sentinel"
	"corretaje/pkg/platform/tx"
)

var constraintFields = postgres.ConstraintFields{
	"clientes_documento_key":                   "documento",
	"clientes_email_key":                       "email",
	"clientes_numero_cliente_key":              "numero_cliente",
	"clientes_tipo_documento_id_fkey":          "tipo_documento_id",
	"clientes_creado_por_id_fkey":              "creado_por_id",
	"clientes_modificado_por_id_fkey":          "modificado_por_id",
	"clientes_corredores_pkey":                 "corredor_numero",
	"clientes_corredores_corredor_numero_fkey": "corredor_numero",
	"clientes_corredores_cliente_id_fkey":      "cliente_id",
	"movimientos_vigencia_cliente_id_fkey":     "cliente_id",
}

const clientColumns = `id, numero_cliente, nombres, apellidos, tipo_documento_id, documento, direccion,
	localidad, telefono, movil, email, fecha_nacimiento, observaciones, creado_por_id, modificado_por_id,
	fecha_creacion, fecha_modificacion`

// PostgresStore persists clients in the clientes table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts the client; numero_cliente is drawn from the sequence.
func (s *PostgresStore) Create(ctx context.Context, c *models.Client) error {
	query := `
		INSERT INTO clientes (id, nombres, apellidos, tipo_documento_id, documento, direccion, localidad,
			telefono, movil, email, fecha_nacimiento, observaciones, creado_por_id, modificado_por_id,
			fecha_creacion, fecha_modificacion)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING numero_cliente`
	err := tx.Executor(ctx, s.db).QueryRowContext(ctx, query,
		c.ID, c.GivenNames, c.Surnames, nullInt64(c.DocumentTypeID), c.Document, c.Address, c.Locality,
		c.Phone, c.Mobile, c.Email, c.BirthDate, c.Observations, int64(c.CreatedByID), int64(c.ModifiedByID),
		c.CreatedAt, c.ModifiedAt,
	).Scan(&c.Number)
	if err != nil {
		return fmt.Errorf("create client: %w", postgres.TranslateError(err, constraintFields))
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, c *models.Client) error {
	query := `
		UPDATE clientes SET nombres = $2, apellidos = $3, tipo_documento_id = $4, documento = $5,
			direccion = $6, localidad = $7, telefono = $8, movil = $9, email = $10, fecha_nacimiento = $11,
			observaciones = $12, modificado_por_id = $13, fecha_modificacion = $14
		WHERE id = $1`
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, query,
		c.ID, c.GivenNames, c.Surnames, nullInt64(c.DocumentTypeID), c.Document,
		c.Address, c.Locality, c.Phone, c.Mobile, c.Email, c.BirthDate,
		c.Observations, int64(c.ModifiedByID), c.ModifiedAt,
	)
	if err != nil {
		return fmt.Errorf("update client: %w", postgres.TranslateError(err, constraintFields))
	}
	return requireRow(res)
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.ClientID) error {
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, `DELETE FROM clientes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete client: %w", postgres.TranslateError(err, constraintFields))
	}
	return requireRow(res)
}

func (s *PostgresStore) CountByOperator(ctx context.Context, id domain.OperatorID) (int, error) {
	var n int
	err := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM clientes WHERE creado_por_id = $1 OR modificado_por_id = $1`, int64(id)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count clients by operator: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.ClientID) (*models.Client, error) {
	return scanClient(tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clientes WHERE id = $1`, id))
}

func (s *PostgresStore) FindByIDs(ctx context.Context, ids []domain.ClientID) ([]*models.Client, error) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, id.String())
	}
	return s.queryMany(ctx, "find clients",
		`SELECT `+clientColumns+` FROM clientes WHERE id = ANY($1::uuid[]) ORDER BY numero_cliente`,
		pq.Array(keys))
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Client, error) {
	return scanClient(tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clientes WHERE lower(email) = lower($1)`, email))
}

func (s *PostgresStore) FindByDocument(ctx context.Context, document string) (*models.Client, error) {
	return scanClient(tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clientes WHERE documento = $1`, document))
}

func (s *PostgresStore) List(ctx context.Context, skip, limit int) ([]*models.Client, error) {
	return s.queryMany(ctx, "list clients",
		`SELECT `+clientColumns+` FROM clientes ORDER BY numero_cliente OFFSET $1 LIMIT $2`, skip, limit)
}

func (s *PostgresStore) queryMany(ctx context.Context, op, query string, args ...any) ([]*models.Client, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []*models.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClient(row scanner) (*models.Client, error) {
	var (
		c          models.Client
		docType    sql.NullInt64
		createdBy  int64
		modifiedBy int64
	)
	err := row.Scan(&c.ID, &c.Number, &c.GivenNames, &c.Surnames, &docType, &c.Document, &c.Address,
		&c.Locality, &c.Phone, &c.Mobile, &c.Email, &c.BirthDate, &c.Observations, &createdBy, &modifiedBy,
		&c.CreatedAt, &c.ModifiedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan client: %w", err)
	}
	if docType.Valid {
		v := docType.Int64
		c.DocumentTypeID = &v
	}
	c.CreatedByID = domain.OperatorID(createdBy)
	c.ModifiedByID = domain.OperatorID(modifiedBy)
	return &c, nil
}

// PostgresLinks persists client-broker links in clientes_corredores.
type PostgresLinks struct {
	db *sql.DB
}

func NewPostgresLinks(db *sql.DB) *PostgresLinks {
	return &PostgresLinks{db: db}
}

func (s *PostgresLinks) Create(ctx context.Context, l *models.Link) error {
	_, err := tx.Executor(ctx, s.db).ExecContext(ctx,
		`INSERT INTO clientes_corredores (cliente_id, corredor_numero, fecha_asignacion) VALUES ($1, $2, $3)`,
		l.ClientID, int(l.BrokerNumber), l.AssignedAt)
	if err != nil {
		return fmt.Errorf("create link: %w", postgres.TranslateError(err, constraintFields))
	}
	return nil
}

func (s *PostgresLinks) Delete(ctx context.Context, client domain.ClientID, broker domain.BrokerNumber) error {
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM clientes_corredores WHERE cliente_id = $1 AND corredor_numero = $2`, client, int(broker))
	if err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresLinks) DeleteByClient(ctx context.Context, client domain.ClientID) error {
	if _, err := tx.Executor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM clientes_corredores WHERE cliente_id = $1`, client); err != nil {
		return fmt.Errorf("delete client links: %w", err)
	}
	return nil
}

func (s *PostgresLinks) ListByClient(ctx context.Context, client domain.ClientID) ([]models.Link, error) {
	return s.list(ctx, `WHERE cliente_id = $1 ORDER BY corredor_numero`, client)
}

func (s *PostgresLinks) ListByBroker(ctx context.Context, broker domain.BrokerNumber) ([]models.Link, error) {
	return s.list(ctx, `WHERE corredor_numero = $1 ORDER BY cliente_id`, int(broker))
}

func (s *PostgresLinks) CountByBroker(ctx context.Context, broker domain.BrokerNumber) (int, error) {
	var n int
	err := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM clientes_corredores WHERE corredor_numero = $1`, int(broker)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count links: %w", err)
	}
	return n, nil
}

func (s *PostgresLinks) list(ctx context.Context, where string, arg any) ([]models.Link, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx,
		`SELECT cliente_id, corredor_numero, fecha_asignacion FROM clientes_corredores `+where, arg)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	out := []models.Link{}
	for rows.Next() {
		var (
			l      models.Link
			number int
		)
		if err := rows.Scan(&l.ClientID, &number, &l.AssignedAt); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		l.BrokerNumber = domain.BrokerNumber(number)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return out, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
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
