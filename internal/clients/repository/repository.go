package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const clientColumns = `id, name, birth_date, gender, guardian_name, guardian_phone, guardian_email,
	address, notes, custom_fields, created_by, created_at, updated_at`

type Repo struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	err := row.Scan(
		&c.ID, &c.Name, &c.BirthDate, &c.Gender, &c.GuardianName, &c.GuardianPhone, &c.GuardianEmail,
		&c.Address, &c.Notes, &c.CustomFields, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if c.CustomFields == nil {
		c.CustomFields = map[string]any{}
	}
	return c, err
}

func (r *Repo) Create(ctx context.Context, params CreateParams) (Client, error) {
	customFields := params.CustomFields
	if customFields == nil {
		customFields = map[string]any{}
	}

	c, err := scanClient(r.pool.QueryRow(ctx, `
		INSERT INTO clients (
			name, birth_date, gender, guardian_name, guardian_phone, guardian_email,
			address, notes, custom_fields, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+clientColumns,
		params.Name, params.BirthDate, params.Gender, params.GuardianName, params.GuardianPhone, params.GuardianEmail,
		params.Address, params.Notes, customFields, params.CreatedBy,
	))
	if err != nil {
		return Client{}, fmt.Errorf("insert client: %w", err)
	}
	return c, nil
}

func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Client, error) {
	c, err := scanClient(r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	if err != nil {
		return Client{}, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}

func (r *Repo) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (Client, error) {
	c, err := scanClient(r.pool.QueryRow(ctx, `
		UPDATE clients SET
			name           = COALESCE($2, name),
			birth_date     = COALESCE($3, birth_date),
			gender         = COALESCE($4, gender),
			guardian_name  = COALESCE($5, guardian_name),
			guardian_phone = COALESCE($6, guardian_phone),
			guardian_email = COALESCE($7, guardian_email),
			address        = COALESCE($8, address),
			notes          = COALESCE($9, notes),
			custom_fields  = COALESCE($10, custom_fields),
			updated_at     = now()
		WHERE id = $1
		RETURNING `+clientColumns,
		id, params.Name, params.BirthDate, params.Gender, params.GuardianName, params.GuardianPhone,
		params.GuardianEmail, params.Address, params.Notes, params.CustomFields,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	if err != nil {
		return Client{}, fmt.Errorf("update client: %w", err)
	}
	return c, nil
}

// List returns a page of clients ordered by name and the total matching count.
func (r *Repo) List(ctx context.Context, params ListParams) ([]Client, int, error) {
	where := "TRUE"
	args := []any{}
	if s := strings.TrimSpace(params.Search); s != "" {
		args = append(args, "%"+strings.ToLower(s)+"%")
		where = "lower(name) LIKE $1"
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM clients WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count clients: %w", err)
	}

	args = append(args, params.Limit, params.Offset)
	query := fmt.Sprintf(`SELECT %s FROM clients WHERE %s ORDER BY lower(name), id LIMIT $%d OFFSET $%d`,
		clientColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	clients := make([]Client, 0)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, total, rows.Err()
}
