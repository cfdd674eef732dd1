// Package repository contains the data access functions for contacts and users. Every function
// receives the database session it runs against and never keeps a reference to it. Contact
// functions additionally take the owning user's id, which is part of every WHERE clause, so a
// user can never see or change somebody else's contacts.
//
// Lookups report a missing record as a nil result with a nil error.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"gitlab.com/dirk.krummacker/address-book/internal/model"
)

// Session is the database handle a repository call runs against. Both *sqlx.DB and *sqlx.Tx
// satisfy it, as does a sqlx wrapper around a sqlmock database.
type Session interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// monthDayLayout formats a date as month and day, ignoring the year.
const monthDayLayout = "01-02"

const contactColumns = "id, name, surname, email, phone, birthday, user_id"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListContacts returns the owner's contacts that match every non-nil filter field as a
// case-insensitive substring, ordered by id, skipping offset rows and returning at most limit.
// No match yields an empty slice.
func ListContacts(ctx context.Context, db Session, filter model.ContactFilter, limit int, offset int, owner int64) ([]model.Contact, error) {
	conditions := []string{"user_id = ?"}
	args := []interface{}{owner}
	optional := []struct {
		column string
		value  *string
	}{
		{"name", filter.Name},
		{"surname", filter.Surname},
		{"email", filter.Email},
	}
	for _, f := range optional {
		if f.value == nil {
			continue
		}
		conditions = append(conditions, fmt.Sprintf("LOWER(%s) LIKE LOWER(?)", f.column))
		args = append(args, "%"+likeEscaper.Replace(*f.value)+"%")
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
		SELECT %s
		FROM contacts
		WHERE %s
		ORDER BY id
		LIMIT ?
		OFFSET ?`, contactColumns, strings.Join(conditions, " AND "))
	contacts := []model.Contact{}
	if err := db.SelectContext(ctx, &contacts, query, args...); err != nil {
		return nil, fmt.Errorf("could not list contacts: %w", err)
	}
	return contacts, nil
}

// BirthdayWindow returns the month-day bounds ("MM-DD") of the period starting today and ending
// daysRange days later.
func BirthdayWindow(today time.Time, daysRange int) (start string, end string) {
	return today.Format(monthDayLayout), today.AddDate(0, 0, daysRange).Format(monthDayLayout)
}

// UpcomingBirthdays returns the owner's contacts whose birthday month-day lies between the bounds
// of BirthdayWindow, inclusive. The bounds are compared as strings, so a window that crosses the
// new year (start "12-28", end "01-04") matches nothing.
func UpcomingBirthdays(ctx context.Context, db Session, daysRange int, owner int64, today time.Time) ([]model.Contact, error) {
	start, end := BirthdayWindow(today, daysRange)
	query := fmt.Sprintf(`
		SELECT %s
		FROM contacts
		WHERE user_id = ?
			AND DATE_FORMAT(birthday, '%%m-%%d') BETWEEN ? AND ?
		ORDER BY id`, contactColumns)
	contacts := []model.Contact{}
	if err := db.SelectContext(ctx, &contacts, query, owner, start, end); err != nil {
		return nil, fmt.Errorf("could not select upcoming birthdays: %w", err)
	}
	return contacts, nil
}

// GetContact returns the contact with the given id if it belongs to owner, nil otherwise.
func GetContact(ctx context.Context, db Session, id int64, owner int64) (*model.Contact, error) {
	var contact model.Contact
	query := fmt.Sprintf("SELECT %s FROM contacts WHERE id = ? AND user_id = ?", contactColumns)
	err := db.GetContext(ctx, &contact, query, id, owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not select contact %d: %w", id, err)
	}
	return &contact, nil
}

// CreateContact stores the given values as a new contact of owner and returns it with the id
// assigned by the database.
func CreateContact(ctx context.Context, db Session, contact model.Contact, owner int64) (*model.Contact, error) {
	contact.Id = 0
	contact.UserId = owner
	result, err := sqlx.NamedExecContext(ctx, db, `
		INSERT INTO contacts (name, surname, email, phone, birthday, user_id)
		VALUES (:name, :surname, :email, :phone, :birthday, :user_id)`, contact)
	if err != nil {
		return nil, fmt.Errorf("could not insert contact: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("could not read id of new contact: %w", err)
	}
	contact.Id = id
	return &contact, nil
}

// UpdateContact replaces name, surname, email, phone and birthday of the owner's contact with the
// given values. It returns nil without writing if the contact does not exist for owner.
func UpdateContact(ctx context.Context, db Session, id int64, values model.Contact, owner int64) (*model.Contact, error) {
	existing, err := GetContact(ctx, db, id, owner)
	if err != nil || existing == nil {
		return nil, err
	}
	_, err = db.ExecContext(ctx, `
		UPDATE contacts
		SET name = ?, surname = ?, email = ?, phone = ?, birthday = ?
		WHERE id = ? AND user_id = ?`,
		values.Name, values.Surname, values.Email, values.Phone, values.Birthday, id, owner)
	if err != nil {
		return nil, fmt.Errorf("could not update contact %d: %w", id, err)
	}
	values.Id = existing.Id
	values.UserId = existing.UserId
	return &values, nil
}

// DeleteContact removes the owner's contact permanently and returns it as it was before the
// deletion. It returns nil without writing if the contact does not exist for owner.
func DeleteContact(ctx context.Context, db Session, id int64, owner int64) (*model.Contact, error) {
	existing, err := GetContact(ctx, db, id, owner)
	if err != nil || existing == nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM contacts WHERE id = ? AND user_id = ?", id, owner); err != nil {
		return nil, fmt.Errorf("could not delete contact %d: %w", id, err)
	}
	return existing, nil
}
