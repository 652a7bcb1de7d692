package models

import (
	"time"
)

// Record is a row dive keeps between sessions. Run history is the only one today.
type Record interface {
	ID() string
	CreatedAt() time.Time
	UpdatedAt() time.Time
	Validate() error
}

// Store is the CRUD contract of a record repository.
//
// Get and Update report a missing row as an error; List returns records newest
// first and takes repository-specific criteria such as "status" or "limit".
type Store[T Record] interface {
	Create(record T) error
	Get(id string) (T, error)
	Update(record T) error
	Delete(id string) error
	List(criteria map[string]any) ([]T, error)
}
