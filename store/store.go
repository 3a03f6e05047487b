// Package store persists the contribution ledger with gorm. Every method takes
// a context; when the context carries a transaction opened by
// Store.Transaction the method runs inside it, so nested calls always join the
// outer transaction instead of opening their own.
//
// Example usage:
//
//	s, err := store.Open("contribute.db", store.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	err = s.Transaction(ctx, func(ctx context.Context) error {
//	    return s.CreateContribution(ctx, c)
//	})
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/robinvdvleuten/contribute/model"
)

// NotFoundError is returned when a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	ID     snowflake.ID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Code returns the API error code.
func (e *NotFoundError) Code() string { return "not_found" }

// GetEntity returns the kind of entity that was looked up.
func (e *NotFoundError) GetEntity() string { return e.Entity }

// Store wraps a gorm database.
type Store struct {
	db     *gorm.DB
	node   *snowflake.Node
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for query tracing.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithNode sets the snowflake node used to generate ids.
func WithNode(node *snowflake.Node) Option {
	return func(s *Store) {
		s.node = node
	}
}

// Open opens (or creates) a sqlite database at path.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: newGormLogger(s.logger),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	// sqlite allows a single writer; one connection keeps transactions and
	// plain reads from deadlocking each other.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return New(db, opts...)
}

// New wraps an existing gorm connection.
func New(db *gorm.DB, opts ...Option) (*Store, error) {
	s := &Store{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	if s.node == nil {
		node, err := snowflake.NewNode(1)
		if err != nil {
			return nil, fmt.Errorf("create snowflake node: %w", err)
		}
		s.node = node
	}

	return s, nil
}

// Migrate creates or updates every table.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(model.All()...)
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NewID generates a new snowflake id.
func (s *Store) NewID() snowflake.ID {
	return s.node.Generate()
}

type txKey struct{}

// Transaction runs fn inside a database transaction. The transaction is
// carried by the context passed to fn. When ctx already carries a
// transaction, fn joins it and no new transaction is started.
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTransaction(ctx) {
		return fn(ctx)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// InTransaction reports whether ctx carries an open transaction.
func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*gorm.DB)
	return ok
}

// conn returns the transaction carried by ctx, or the root connection.
func (s *Store) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return s.db.WithContext(ctx)
}

func (s *Store) create(ctx context.Context, id *snowflake.ID, row any) error {
	if *id == 0 {
		*id = s.node.Generate()
	}
	return s.conn(ctx).Create(row).Error
}

// Save updates every column of an existing row.
func (s *Store) Save(ctx context.Context, row any) error {
	return s.conn(ctx).Save(row).Error
}

func get[T any](ctx context.Context, s *Store, entity string, id snowflake.ID) (*T, error) {
	var row T
	err := s.conn(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Entity: entity, ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// first returns the first row matching the query, or nil without error.
func first[T any](db *gorm.DB) (*T, error) {
	var rows []T
	if err := db.Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
