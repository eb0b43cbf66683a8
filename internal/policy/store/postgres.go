package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"corretaje/internal/platform/postgres"
	"corretaje/internal/policy/models"
	"corretaje/pkg/domain"
	"corretaje/pkg/platform/sentinel"
	"corretaje/pkg/platform/tx"
)

var constraintFields = postgres.ConstraintFields{
	"movimientos_vigencia_numero_poliza_key":    "numero_poliza",
	"movimientos_vigencia_cliente_id_fkey":      "cliente_id",
	"movimientos_vigencia_corredor_numero_fkey": "corredor_numero",
	"movimientos_vigencia_tipo_seguro_id_fkey":  "tipo_seguro_id",
	"movimientos_vigencia_moneda_id_fkey":       "moneda_id",
	"movimientos_vigencia_fechas_check":         "fecha_vencimiento",
	"movimientos_vigencia_comision_check":       "comision",
	"movimientos_vigencia_suma_asegurada_check": "suma_asegurada",
	"movimientos_vigencia_prima_check":          "prima",
	"movimientos_vigencia_cuotas_check":         "cuotas",
}

const movementColumns = `m.id, m.cliente_id, m.corredor_numero, m.tipo_seguro_id, m.moneda_id, m.numero_poliza,
	m.carpeta, m.endoso, m.tipo_endoso, m.forma_pago, m.fecha_inicio, m.fecha_vencimiento, m.fecha_emision,
	m.estado, m.suma_asegurada, m.prima, m.comision, m.cuotas, m.observaciones, m.tipo_duracion,
	m.created_at, m.updated_at`

const viewColumns = movementColumns + `,
	c.numero_cliente, c.nombres, c.apellidos,
	co.nombres, co.apellidos,
	ts.codigo, ts.nombre,
	mo.codigo, mo.simbolo`

const viewJoins = `
	FROM movimientos_vigencia m
	JOIN clientes c ON c.id = m.cliente_id
	LEFT JOIN corredores co ON co.numero = m.corredor_numero
	JOIN tipos_seguro ts ON ts.id = m.tipo_seguro_id
	LEFT JOIN monedas mo ON mo.id = m.moneda_id`

var orderColumns = map[models.SortField]string{
	models.SortStartDate:     "m.fecha_inicio",
	models.SortEndDate:       "m.fecha_vencimiento",
	models.SortInsuredAmount: "m.suma_asegurada",
	models.SortPremium:       "m.prima",
	models.SortPolicyNumber:  "m.numero_poliza",
	models.SortGivenNames:    "c.nombres",
	models.SortSurnames:      "c.apellidos",
	models.SortClientNumber:  "c.numero_cliente",
	models.SortID:            "m.id",
}

// PostgresStore persists movements in movimientos_vigencia and runs the
// joined queries behind the policy listing and statistics.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, m *models.Movement) error {
	query := `
		INSERT INTO movimientos_vigencia (cliente_id, corredor_numero, tipo_seguro_id, moneda_id, numero_poliza,
			carpeta, endoso, tipo_endoso, forma_pago, fecha_inicio, fecha_vencimiento, fecha_emision, estado,
			suma_asegurada, prima, comision, cuotas, observaciones, tipo_duracion, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING id`
	err := tx.Executor(ctx, s.db).QueryRowContext(ctx, query,
		m.ClientID, m.BrokerNumber, m.InsuranceTypeID, m.CurrencyID, m.PolicyNumber,
		m.Folder, m.Endorsement, m.EndorsementType, m.PaymentMode, m.StartDate, m.EndDate, m.IssuedDate, m.Status,
		m.InsuredAmount, m.Premium, m.Commission, m.Installments, m.Observations, string(m.DurationClass),
		m.CreatedAt, m.UpdatedAt,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("create movement: %w", postgres.TranslateError(err, constraintFields))
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, m *models.Movement) error {
	query := `
		UPDATE movimientos_vigencia SET corredor_numero = $2, tipo_seguro_id = $3, moneda_id = $4,
			numero_poliza = $5, carpeta = $6, endoso = $7, tipo_endoso = $8, forma_pago = $9,
			fecha_inicio = $10, fecha_vencimiento = $11, fecha_emision = $12, estado = $13,
			suma_asegurada = $14, prima = $15, comision = $16, cuotas = $17, observaciones = $18,
			tipo_duracion = $19, updated_at = $20
		WHERE id = $1`
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, query,
		m.ID, m.BrokerNumber, m.InsuranceTypeID, m.CurrencyID,
		m.PolicyNumber, m.Folder, m.Endorsement, m.EndorsementType, m.PaymentMode,
		m.StartDate, m.EndDate, m.IssuedDate, m.Status,
		m.InsuredAmount, m.Premium, m.Commission, m.Installments, m.Observations,
		string(m.DurationClass), m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update movement: %w", postgres.TranslateError(err, constraintFields))
	}
	return requireRow(res)
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, `DELETE FROM movimientos_vigencia WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete movement: %w", postgres.TranslateError(err, constraintFields))
	}
	return requireRow(res)
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.Movement, error) {
	row := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+movementColumns+` FROM movimientos_vigencia m WHERE m.id = $1`, id)
	return scanMovement(row)
}

func (s *PostgresStore) List(ctx context.Context, broker *domain.BrokerNumber, skip, limit int) ([]*models.Movement, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx,
		`SELECT `+movementColumns+` FROM movimientos_vigencia m
		WHERE ($1::int IS NULL OR m.corredor_numero = $1)
		ORDER BY m.id OFFSET $2 LIMIT $3`, broker, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()

	out := []*models.Movement{}
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) FindView(ctx context.Context, id int64, today domain.Date) (*models.View, error) {
	row := tx.Executor(ctx, s.db).QueryRowContext(ctx, `SELECT `+viewColumns+viewJoins+` WHERE m.id = $1`, id)
	v, err := scanView(row)
	if err != nil {
		return nil, err
	}
	v.Derive(today)
	return v, nil
}

func (s *PostgresStore) Query(ctx context.Context, q *models.Query) ([]*models.View, error) {
	where, args := buildWhere(q)
	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	order := orderColumns[q.Sort]
	if order == "" {
		order = "m.id"
	}
	query := `SELECT ` + viewColumns + viewJoins + where +
		` ORDER BY ` + order + ` ` + dir + `, m.id ASC` +
		` OFFSET ` + placeholder(&args, q.Skip)
	if q.Limit > 0 {
		query += ` LIMIT ` + placeholder(&args, q.Limit)
	}

	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	defer rows.Close()

	out := []*models.View{}
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		v.Derive(q.Today)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Stats(ctx context.Context, q *models.Query) (*models.Stats, error) {
	where, args := buildWhere(q)
	query := `SELECT m.tipo_duracion, COUNT(*), COALESCE(SUM(m.suma_asegurada), 0), COALESCE(SUM(m.prima), 0)` +
		viewJoins + where + ` GROUP BY m.tipo_duracion`
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("movement stats: %w", err)
	}
	defer rows.Close()

	stats := models.NewStats()
	for rows.Next() {
		var (
			class string
			c     models.ClassStats
		)
		if err := rows.Scan(&class, &c.Count, &c.InsuredSum, &c.PremiumSum); err != nil {
			return nil, fmt.Errorf("scan movement stats: %w", err)
		}
		stats.Add(models.DurationClass(class), c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("movement stats: %w", err)
	}
	return stats, nil
}

func (s *PostgresStore) CountByClient(ctx context.Context, client domain.ClientID) (int, error) {
	var n int
	err := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM movimientos_vigencia WHERE cliente_id = $1`, client).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count client movements: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CountByBroker(ctx context.Context, broker domain.BrokerNumber) (int, error) {
	var n int
	err := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM movimientos_vigencia WHERE corredor_numero = $1`, int(broker)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count broker movements: %w", err)
	}
	return n, nil
}

func placeholder(args *[]any, v any) string {
	*args = append(*args, v)
	return "$" + strconv.Itoa(len(*args))
}

// buildWhere renders the query predicates as a WHERE clause with positional
// arguments. Text filters use ILIKE with escaped wildcards.
func buildWhere(q *models.Query) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(expr string, v any) {
		conds = append(conds, strings.ReplaceAll(expr, "?", placeholder(&args, v)))
	}
	if q.ClientID != nil {
		add("m.cliente_id = ?", *q.ClientID)
	}
	if q.BrokerNumber != nil {
		add("m.corredor_numero = ?", int(*q.BrokerNumber))
	}
	if q.Status != nil {
		add("m.estado = ?", *q.Status)
	}
	if q.StartFrom != nil {
		add("m.fecha_inicio >= ?", *q.StartFrom)
	}
	if q.StartTo != nil {
		add("m.fecha_inicio <= ?", *q.StartTo)
	}
	if q.ExpiryFrom != nil {
		add("m.fecha_vencimiento >= ?", *q.ExpiryFrom)
	}
	if q.ExpiryTo != nil {
		add("m.fecha_vencimiento <= ?", *q.ExpiryTo)
	}
	if q.ExcludeExpired {
		add("m.fecha_vencimiento >= ?", q.Today)
	}
	if q.PolicyNumber != "" {
		add(`m.numero_poliza ILIKE ? ESCAPE '\'`, likePattern(q.PolicyNumber))
	}
	if q.InsuranceTypeID != nil {
		add("m.tipo_seguro_id = ?", *q.InsuranceTypeID)
	}
	if q.CurrencyID != nil {
		add("m.moneda_id = ?", *q.CurrencyID)
	}
	addAmount := func(expr string, d *decimal.Decimal) {
		if d != nil {
			add(expr, *d)
		}
	}
	addAmount("m.suma_asegurada >= ?", q.InsuredMin)
	addAmount("m.suma_asegurada <= ?", q.InsuredMax)
	addAmount("m.prima >= ?", q.PremiumMin)
	addAmount("m.prima <= ?", q.PremiumMax)
	if q.ClientGivenName != "" {
		add(`c.nombres ILIKE ? ESCAPE '\'`, likePattern(q.ClientGivenName))
	}
	if q.ClientSurname != "" {
		add(`c.apellidos ILIKE ? ESCAPE '\'`, likePattern(q.ClientSurname))
	}
	if q.DurationClass != nil {
		add("m.tipo_duracion = ?", string(*q.DurationClass))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

type scanner interface {
	Scan(dest ...any) error
}

func movementDest(m *models.Movement, class *string) []any {
	return []any{
		&m.ID, &m.ClientID, &m.BrokerNumber, &m.InsuranceTypeID, &m.CurrencyID, &m.PolicyNumber,
		&m.Folder, &m.Endorsement, &m.EndorsementType, &m.PaymentMode, &m.StartDate, &m.EndDate, &m.IssuedDate,
		&m.Status, &m.InsuredAmount, &m.Premium, &m.Commission, &m.Installments, &m.Observations, class,
		&m.CreatedAt, &m.UpdatedAt,
	}
}

func scanMovement(row scanner) (*models.Movement, error) {
	var (
		m     models.Movement
		class string
	)
	if err := row.Scan(movementDest(&m, &class)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan movement: %w", err)
	}
	m.DurationClass = models.DurationClass(class)
	return &m, nil
}

func scanView(row scanner) (*models.View, error) {
	var (
		v                            models.View
		class                        string
		brokerGiven, brokerSurname   sql.NullString
		currencyCode, currencySymbol sql.NullString
	)
	dest := append(movementDest(&v.Movement, &class),
		&v.Client.Number, &v.Client.GivenNames, &v.Client.Surnames,
		&brokerGiven, &brokerSurname,
		&v.InsuranceType.Code, &v.InsuranceType.Name,
		&currencyCode, &currencySymbol,
	)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan movement view: %w", err)
	}
	v.DurationClass = models.DurationClass(class)
	v.Client.ID = v.ClientID
	v.InsuranceType.ID = v.InsuranceTypeID
	if v.BrokerNumber != nil && brokerGiven.Valid {
		v.Broker = &models.BrokerSummary{Number: *v.BrokerNumber, GivenNames: brokerGiven.String, Surnames: brokerSurname.String}
	}
	if v.CurrencyID != nil && currencyCode.Valid {
		v.Currency = &models.CurrencySummary{ID: *v.CurrencyID, Code: currencyCode.String, Symbol: currencySymbol.String}
	}
	return &v, nil
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
