// Package orm is a thin timed wrapper over gorm used by the repositories.
// Every terminal call records its latency and maps gorm's not-found error to
// ErrNotFound.
package orm

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/onyxia-store/onyxia/pkg/metrics"
)

var ErrNotFound = errors.New("orm: record not found")

type Query struct {
	db *gorm.DB
}

// On starts a query bound to ctx.
func On(ctx context.Context, db *gorm.DB) *Query {
	return &Query{db: db.WithContext(ctx)}
}

func (q *Query) Model(v interface{}) *Query { return &Query{db: q.db.Model(v)} }

func (q *Query) Where(query interface{}, args ...interface{}) *Query {
	return &Query{db: q.db.Where(query, args...)}
}

func (q *Query) Order(value interface{}) *Query { return &Query{db: q.db.Order(value)} }

func (q *Query) Limit(n int) *Query { return &Query{db: q.db.Limit(n)} }

func (q *Query) Preload(query string, args ...interface{}) *Query {
	return &Query{db: q.db.Preload(query, args...)}
}

func (q *Query) Get(dest interface{}) error {
	defer metrics.ObserveDBQuery("select", time.Now())
	return q.db.Find(dest).Error
}

func (q *Query) First(dest interface{}) error {
	defer metrics.ObserveDBQuery("select", time.Now())
	return translate(q.db.First(dest).Error)
}

func (q *Query) Create(v interface{}) error {
	defer metrics.ObserveDBQuery("insert", time.Now())
	return q.db.Create(v).Error
}

func (q *Query) Save(v interface{}) error {
	defer metrics.ObserveDBQuery("update", time.Now())
	return q.db.Save(v).Error
}

// Updates applies a column map to the current Model/Where and fails with
// ErrNotFound when no row matched.
func (q *Query) Updates(values map[string]interface{}) error {
	defer metrics.ObserveDBQuery("update", time.Now())
	res := q.db.Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes matching rows and fails with ErrNotFound when none matched.
func (q *Query) Delete(model interface{}, conds ...interface{}) error {
	defer metrics.ObserveDBQuery("delete", time.Now())
	res := q.db.Delete(model, conds...)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Query) Count() (int64, error) {
	defer metrics.ObserveDBQuery("select", time.Now())
	var n int64
	err := q.db.Count(&n).Error
	return n, err
}

// Transaction runs fn inside a database transaction.
func Transaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(fn)
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
