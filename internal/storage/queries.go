package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Subscription is a row of the subscriptions table.
type Subscription struct {
	ID          string
	UserID      string
	Name        string
	Amount      int64
	Cycle       string
	Category    string
	NextPayment string
	CreatedAt   string
	UpdatedAt   string
}

// Category is a row of the categories table.
type Category struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt string
}

const subscriptionColumns = `id, user_id, name, amount, cycle, category, next_payment, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscription(row rowScanner) (Subscription, error) {
	var s Subscription
	err := row.Scan(&s.ID, &s.UserID, &s.Name, &s.Amount, &s.Cycle, &s.Category, &s.NextPayment, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

const listSubscriptions = `SELECT ` + subscriptionColumns + `
FROM subscriptions
WHERE user_id = ?
ORDER BY created_at, rowid`

func (q *Queries) ListSubscriptions(ctx context.Context, userID string) ([]Subscription, error) {
	rows, err := q.db.QueryContext(ctx, listSubscriptions, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getSubscription = `SELECT ` + subscriptionColumns + `
FROM subscriptions
WHERE user_id = ? AND id = ?`

func (q *Queries) GetSubscription(ctx context.Context, userID, id string) (Subscription, error) {
	return scanSubscription(q.db.QueryRowContext(ctx, getSubscription, userID, id))
}

const createSubscription = `INSERT INTO subscriptions (` + subscriptionColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateSubscription(ctx context.Context, arg Subscription) error {
	_, err := q.db.ExecContext(ctx, createSubscription,
		arg.ID, arg.UserID, arg.Name, arg.Amount, arg.Cycle,
		arg.Category, arg.NextPayment, arg.CreatedAt, arg.UpdatedAt)
	return err
}

const updateSubscription = `UPDATE subscriptions
SET name = ?, amount = ?, cycle = ?, category = ?, next_payment = ?, updated_at = ?
WHERE user_id = ? AND id = ?`

func (q *Queries) UpdateSubscription(ctx context.Context, arg Subscription) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateSubscription,
		arg.Name, arg.Amount, arg.Cycle, arg.Category, arg.NextPayment, arg.UpdatedAt,
		arg.UserID, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteSubscription = `DELETE FROM subscriptions WHERE user_id = ? AND id = ?`

func (q *Queries) DeleteSubscription(ctx context.Context, userID, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteSubscription, userID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listUserIDs = `SELECT DISTINCT user_id FROM subscriptions ORDER BY user_id`

func (q *Queries) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listUserIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listCategories = `SELECT id, user_id, name, created_at
FROM categories
WHERE user_id = ?
ORDER BY created_at, rowid`

func (q *Queries) ListCategories(ctx context.Context, userID string) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getCategory = `SELECT id, user_id, name, created_at
FROM categories
WHERE user_id = ? AND id = ?`

func (q *Queries) GetCategory(ctx context.Context, userID, id string) (Category, error) {
	var c Category
	err := q.db.QueryRowContext(ctx, getCategory, userID, id).Scan(&c.ID, &c.UserID, &c.Name, &c.CreatedAt)
	return c, err
}

const createCategory = `INSERT INTO categories (id, user_id, name, created_at)
VALUES (?, ?, ?, ?)`

func (q *Queries) CreateCategory(ctx context.Context, arg Category) error {
	_, err := q.db.ExecContext(ctx, createCategory, arg.ID, arg.UserID, arg.Name, arg.CreatedAt)
	return err
}

const renameCategory = `UPDATE categories SET name = ? WHERE user_id = ? AND id = ?`

func (q *Queries) RenameCategory(ctx context.Context, userID, id, name string) (int64, error) {
	res, err := q.db.ExecContext(ctx, renameCategory, name, userID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteCategory = `DELETE FROM categories WHERE user_id = ? AND id = ?`

func (q *Queries) DeleteCategory(ctx context.Context, userID, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteCategory, userID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
