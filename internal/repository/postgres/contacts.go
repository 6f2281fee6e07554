package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/avelychko/contacthub/internal/core/domain"
	"github.com/avelychko/contacthub/internal/core/port"
	"github.com/avelychko/contacthub/internal/repository"
)

// ContactRepository implements port.ContactRepository using PostgreSQL.
// Every statement filters on owner_id, so one user can never see or touch
// another user's contacts.
type ContactRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewContactRepository wires a contact repository backed by any executor that
// satisfies pgExecutor.
func NewContactRepository(exec pgExecutor) *ContactRepository {
	return &ContactRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var contactColumns = []string{
	"id",
	"owner_id",
	"first_name",
	"last_name",
	"email",
	"phone_number",
	"birthday",
	"extra_info",
	"created_at",
	"updated_at",
}

// Create inserts a new contact row.
func (r *ContactRepository) Create(ctx context.Context, contact domain.Contact) error {
	stmt, args, err := r.builder.Insert("contacts").
		Columns(contactColumns...).
		Values(
			contact.ID,
			contact.OwnerID,
			contact.FirstName,
			contact.LastName,
			contact.Email,
			contact.PhoneNumber,
			contact.Birthday,
			contact.ExtraInfo,
			contact.CreatedAt,
			contact.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert contact sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert contact: %w", mapWriteError(err))
	}

	return nil
}

// GetByID retrieves a contact for the given owner.
func (r *ContactRepository) GetByID(ctx context.Context, ownerID, id string) (*domain.Contact, error) {
	stmt, args, err := r.builder.
		Select(contactColumns...).
		From("contacts").
		Where(squirrel.Eq{"owner_id": ownerID, "id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select contact sql: %w", err)
	}

	contact, err := scanContact(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan contact: %w", err)
	}

	return contact, nil
}

// Update applies the non-nil fields of update and returns the fresh row.
func (r *ContactRepository) Update(ctx context.Context, ownerID, id string, update domain.ContactUpdate) (*domain.Contact, error) {
	builder := r.builder.Update("contacts").
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"owner_id": ownerID, "id": id}).
		Suffix("RETURNING " + strings.Join(contactColumns, ", "))

	if update.FirstName != nil {
		builder = builder.Set("first_name", *update.FirstName)
	}
	if update.LastName != nil {
		builder = builder.Set("last_name", *update.LastName)
	}
	if update.Email != nil {
		builder = builder.Set("email", *update.Email)
	}
	if update.PhoneNumber != nil {
		builder = builder.Set("phone_number", *update.PhoneNumber)
	}
	if update.Birthday != nil {
		builder = builder.Set("birthday", *update.Birthday)
	}
	if update.ExtraInfo != nil {
		builder = builder.Set("extra_info", *update.ExtraInfo)
	}

	stmt, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update contact sql: %w", err)
	}

	contact, err := scanContact(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan updated contact: %w", mapWriteError(err))
	}

	return contact, nil
}

// Delete removes a contact for the given owner.
func (r *ContactRepository) Delete(ctx context.Context, ownerID, id string) error {
	stmt, args, err := r.builder.Delete("contacts").
		Where(squirrel.Eq{"owner_id": ownerID, "id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete contact sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Search matches the query case-insensitively against first name, last name,
// and email. An empty query lists all of the owner's contacts.
func (r *ContactRepository) Search(ctx context.Context, ownerID, query string) ([]domain.Contact, error) {
	builder := r.builder.
		Select(contactColumns...).
		From("contacts").
		Where(squirrel.Eq{"owner_id": ownerID}).
		OrderBy("last_name", "first_name")

	if query != "" {
		pattern := "%" + query + "%"
		builder = builder.Where(squirrel.Or{
			squirrel.ILike{"first_name": pattern},
			squirrel.ILike{"last_name": pattern},
			squirrel.ILike{"email": pattern},
		})
	}

	stmt, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build search contacts sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("search contacts: %w", err)
	}
	defer rows.Close()

	return collectContacts(rows)
}

// UpcomingBirthdays returns contacts whose birthday falls within days of
// from, ignoring the birth year. The year boundary is handled by checking
// both this year's and next year's occurrence.
func (r *ContactRepository) UpcomingBirthdays(ctx context.Context, ownerID string, from time.Time, days int) ([]domain.Contact, error) {
	fromDate := from.Format("2006-01-02")

	window := squirrel.Expr(
		`birthday IS NOT NULL AND (
			(birthday + make_interval(years => (date_part('year', ?::date) - date_part('year', birthday))::int))::date
				BETWEEN ?::date AND ?::date + make_interval(days => ?)
			OR (birthday + make_interval(years => (date_part('year', ?::date) - date_part('year', birthday))::int + 1))::date
				BETWEEN ?::date AND ?::date + make_interval(days => ?)
		)`,
		fromDate, fromDate, fromDate, days,
		fromDate, fromDate, fromDate, days,
	)

	stmt, args, err := r.builder.
		Select(contactColumns...).
		From("contacts").
		Where(squirrel.Eq{"owner_id": ownerID}).
		Where(window).
		OrderBy("date_part('month', birthday)", "date_part('day', birthday)").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build upcoming birthdays sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query upcoming birthdays: %w", err)
	}
	defer rows.Close()

	return collectContacts(rows)
}

func scanContact(row pgx.Row) (*domain.Contact, error) {
	var (
		contact   domain.Contact
		birthday  *time.Time
		extraInfo sql.NullString
	)

	if err := row.Scan(
		&contact.ID,
		&contact.OwnerID,
		&contact.FirstName,
		&contact.LastName,
		&contact.Email,
		&contact.PhoneNumber,
		&birthday,
		&extraInfo,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	); err != nil {
		return nil, err
	}

	contact.Birthday = birthday
	if extraInfo.Valid {
		val := extraInfo.String
		contact.ExtraInfo = &val
	}

	return &contact, nil
}

func collectContacts(rows pgx.Rows) ([]domain.Contact, error) {
	contacts := make([]domain.Contact, 0)
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact row: %w", err)
		}
		contacts = append(contacts, *contact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contact rows: %w", err)
	}

	return contacts, nil
}

var _ port.ContactRepository = (*ContactRepository)(nil)
