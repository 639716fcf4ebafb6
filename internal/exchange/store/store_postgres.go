package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"trustex/internal/exchange/models"
	"trustex/internal/platform/postgres"
	id "trustex/pkg/domain"
	"trustex/pkg/platform/sentinel"
	"trustex/pkg/platform/tx"
)

// PostgresStore persists the ledger through database/sql and lib/pq. Commit
// runs in a transaction and joins one already carried by ctx.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) conn(ctx context.Context) dbtx {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

const companyColumns = `id, name, symbol, logo, description, owner, valuation, base_price, token_price,
	supply, remaining, minimum_purchase, industry, website, registration_year,
	verification_status, verification_score, verified_at, version, created_at, updated_at`

func (s *PostgresStore) CreateCompany(ctx context.Context, c *models.Company) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO companies (`+companyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		uuid.UUID(c.ID), c.Name, c.Symbol.String(), c.Logo, c.Description, c.Owner.String(),
		c.Valuation, c.BasePrice, c.TokenPrice, c.Supply, c.Remaining, c.MinimumPurchase,
		c.Industry, c.Website, c.RegistrationYear, string(c.VerificationStatus),
		nullInt(c.VerificationScore), nullTime(c.VerifiedAt), c.Version, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert company: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindCompany(ctx context.Context, companyID id.CompanyID) (*models.Company, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, uuid.UUID(companyID))
	c, err := scanCompany(row)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find company: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) FindCompanies(ctx context.Context, ids []id.CompanyID) ([]*models.Company, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make([]string, len(ids))
	for i, companyID := range ids {
		raw[i] = companyID.String()
	}
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE id = ANY($1::uuid[]) ORDER BY created_at, id`,
		pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("find companies: %w", err)
	}
	return collectCompanies(rows)
}

func (s *PostgresStore) ListCompanies(ctx context.Context) ([]*models.Company, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	return collectCompanies(rows)
}

func (s *PostgresStore) FindHolding(ctx context.Context, companyID id.CompanyID, account models.Account) (*models.Holding, error) {
	var amount int64
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT amount FROM holdings WHERE company_id = $1 AND owner = $2 AND subaccount = $3`,
		uuid.UUID(companyID), account.Owner.String(), account.Subaccount.String(),
	).Scan(&amount)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find holding: %w", err)
	}
	return &models.Holding{Account: account, CompanyID: companyID, Amount: amount}, nil
}

func (s *PostgresStore) ListHoldingsByOwner(ctx context.Context, owner id.Principal) ([]models.Holding, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT company_id, subaccount, amount FROM holdings
		WHERE owner = $1 ORDER BY company_id, subaccount`, owner.String())
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	defer rows.Close()

	var out []models.Holding
	for rows.Next() {
		var (
			companyID  uuid.UUID
			subaccount string
			amount     int64
		)
		if err := rows.Scan(&companyID, &subaccount, &amount); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		out = append(out, models.Holding{
			Account:   models.Account{Owner: owner, Subaccount: id.Subaccount(subaccount)},
			CompanyID: id.CompanyID(companyID),
			Amount:    amount,
		})
	}
	return out, rows.Err()
}

// Commit applies m in one transaction. The company update is guarded by the
// expected version, so a concurrent writer loses with sentinel.ErrConflict.
func (s *PostgresStore) Commit(ctx context.Context, m models.Mutation) (int64, error) {
	index := int64(-1)
	err := tx.Run(ctx, s.db, nil, func(ctx context.Context) error {
		c := m.Company
		conn := s.conn(ctx)
		res, err := conn.ExecContext(ctx, `
			UPDATE companies SET
				token_price = $2, remaining = $3, verification_status = $4,
				verification_score = $5, verified_at = $6, version = $7, updated_at = $8
			WHERE id = $1 AND version = $9`,
			uuid.UUID(c.ID), c.TokenPrice, c.Remaining, string(c.VerificationStatus),
			nullInt(c.VerificationScore), nullTime(c.VerifiedAt), c.Version, c.UpdatedAt, c.Version-1,
		)
		if err != nil {
			return fmt.Errorf("update company: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update company: %w", err)
		}
		if n == 0 {
			if _, err := s.FindCompany(ctx, c.ID); errors.Is(err, sentinel.ErrNotFound) {
				return sentinel.ErrNotFound
			}
			return sentinel.ErrConflict
		}

		for _, h := range m.Holdings {
			if err := s.writeHolding(ctx, conn, h); err != nil {
				return err
			}
		}

		if m.Transfer != nil {
			index, err = s.appendTransfer(ctx, conn, m.Transfer)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return -1, err
	}
	return index, nil
}

func (s *PostgresStore) writeHolding(ctx context.Context, conn dbtx, h models.Holding) error {
	if h.Amount == 0 {
		_, err := conn.ExecContext(ctx, `
			DELETE FROM holdings WHERE company_id = $1 AND owner = $2 AND subaccount = $3`,
			uuid.UUID(h.CompanyID), h.Account.Owner.String(), h.Account.Subaccount.String())
		if err != nil {
			return fmt.Errorf("delete holding: %w", err)
		}
		return nil
	}
	_, err := conn.ExecContext(ctx, `
		INSERT INTO holdings (company_id, owner, subaccount, amount) VALUES ($1, $2, $3, $4)
		ON CONFLICT (company_id, owner, subaccount) DO UPDATE SET amount = EXCLUDED.amount`,
		uuid.UUID(h.CompanyID), h.Account.Owner.String(), h.Account.Subaccount.String(), h.Amount)
	if err != nil {
		return fmt.Errorf("upsert holding: %w", err)
	}
	return nil
}

// appendTransfer assigns the next index. The company row lock taken by the
// version update serializes appends per company.
func (s *PostgresStore) appendTransfer(ctx context.Context, conn dbtx, rec *models.TransferRecord) (int64, error) {
	var index int64
	err := conn.QueryRowContext(ctx, `
		INSERT INTO transfers (id, company_id, idx, kind, from_owner, from_subaccount, to_owner, to_subaccount,
			amount, fee, memo, created_at_time, recorded_at)
		SELECT $1::uuid, $2::uuid, COALESCE(MAX(idx) + 1, 0), $3::text, $4::text, $5::text, $6::text, $7::text,
			$8::bigint, $9::bigint, $10::bytea, $11::timestamptz, $12::timestamptz
		FROM transfers WHERE company_id = $2
		RETURNING idx`,
		uuid.UUID(rec.ID), uuid.UUID(rec.CompanyID), string(rec.Kind),
		accountOwner(rec.From), accountSub(rec.From), accountOwner(rec.To), accountSub(rec.To),
		rec.Amount, rec.Fee, rec.Memo, nullTime(rec.CreatedAtTime), rec.Timestamp,
	).Scan(&index)
	if err != nil {
		return -1, fmt.Errorf("append transfer: %w", err)
	}
	return index, nil
}

const transferColumns = `id, company_id, idx, kind, from_owner, from_subaccount, to_owner, to_subaccount,
	amount, fee, memo, created_at_time, recorded_at`

func (s *PostgresStore) ListTransfers(ctx context.Context, companyID id.CompanyID, limit int) ([]models.TransferRecord, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT `+transferColumns+` FROM transfers
		WHERE company_id = $1 ORDER BY idx DESC LIMIT $2`, uuid.UUID(companyID), limit)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var out []models.TransferRecord
	for rows.Next() {
		rec, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindDuplicateTransfer(ctx context.Context, rec *models.TransferRecord, since time.Time) (*models.TransferRecord, error) {
	if rec.CreatedAtTime == nil {
		return nil, sentinel.ErrNotFound
	}
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT `+transferColumns+` FROM transfers
		WHERE company_id = $1 AND kind = $2 AND created_at_time = $3 AND created_at_time >= $4
		  AND from_owner IS NOT DISTINCT FROM $5 AND from_subaccount IS NOT DISTINCT FROM $6
		  AND to_owner IS NOT DISTINCT FROM $7 AND to_subaccount IS NOT DISTINCT FROM $8
		  AND amount = $9 AND fee = $10 AND COALESCE(memo, ''::bytea) = COALESCE($11::bytea, ''::bytea)
		ORDER BY idx LIMIT 1`,
		uuid.UUID(rec.CompanyID), string(rec.Kind), *rec.CreatedAtTime, since,
		accountOwner(rec.From), accountSub(rec.From), accountOwner(rec.To), accountSub(rec.To),
		rec.Amount, rec.Fee, rec.Memo,
	)
	found, err := scanTransfer(row)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return found, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCompany(row scanner) (*models.Company, error) {
	var (
		c          models.Company
		companyID  uuid.UUID
		symbol     string
		owner      string
		status     string
		score      sql.NullInt64
		verifiedAt sql.NullTime
	)
	err := row.Scan(&companyID, &c.Name, &symbol, &c.Logo, &c.Description, &owner,
		&c.Valuation, &c.BasePrice, &c.TokenPrice, &c.Supply, &c.Remaining, &c.MinimumPurchase,
		&c.Industry, &c.Website, &c.RegistrationYear, &status, &score, &verifiedAt,
		&c.Version, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.ID = id.CompanyID(companyID)
	c.Symbol = id.Symbol(strings.ToUpper(symbol))
	c.Owner = id.Principal(owner)
	c.VerificationStatus = models.VerificationStatus(status)
	if score.Valid {
		v := int(score.Int64)
		c.VerificationScore = &v
	}
	if verifiedAt.Valid {
		at := verifiedAt.Time
		c.VerifiedAt = &at
	}
	return &c, nil
}

func collectCompanies(rows *sql.Rows) ([]*models.Company, error) {
	defer rows.Close()
	var out []*models.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanTransfer(row scanner) (*models.TransferRecord, error) {
	var (
		rec                models.TransferRecord
		recID, companyID   uuid.UUID
		kind               string
		fromOwner, fromSub sql.NullString
		toOwner, toSub     sql.NullString
		createdAtTime      sql.NullTime
	)
	err := row.Scan(&recID, &companyID, &rec.Index, &kind, &fromOwner, &fromSub, &toOwner, &toSub,
		&rec.Amount, &rec.Fee, &rec.Memo, &createdAtTime, &rec.Timestamp)
	if err != nil {
		return nil, err
	}
	rec.ID = id.TransferID(recID)
	rec.CompanyID = id.CompanyID(companyID)
	rec.Kind = models.TransferKind(kind)
	rec.From = toAccount(fromOwner, fromSub)
	rec.To = toAccount(toOwner, toSub)
	if createdAtTime.Valid {
		at := createdAtTime.Time
		rec.CreatedAtTime = &at
	}
	return &rec, nil
}

func toAccount(owner, sub sql.NullString) *models.Account {
	if !owner.Valid {
		return nil
	}
	return &models.Account{Owner: id.Principal(owner.String), Subaccount: id.Subaccount(sub.String)}
}

func accountOwner(a *models.Account) sql.NullString {
	if a == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: a.Owner.String(), Valid: true}
}

func accountSub(a *models.Account) sql.NullString {
	if a == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: a.Subaccount.String(), Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
