// Package storage abstracts the keyed-record store the account service runs
// on. The backend offers four per-item operations addressed by table name and
// primary key; there is no multi-item atomicity. The only cross-record
// guarantee the rest of the code relies on is the conditional create: a Put
// with a condition fails with ErrConditionFailed when the condition does not
// hold, and that failure is distinguishable from any other error.
package storage

import (
	"context"
	"errors"
)

// Table names used by the account service.
const (
	TableUsers      = "users"
	TableNameUsers  = "nameUsers"
	TableEmailUsers = "emailUsers"
	TableTokens     = "tokens"
)

// ErrConditionFailed is returned by Put when the conditional create is
// rejected, i.e. the item already exists.
var ErrConditionFailed = errors.New("conditional write failed")

// Item is a stored record: attribute name to value. Values are strings,
// numbers or nested string maps.
type Item map[string]any

// PutCondition restricts a Put. IfNotExists names an attribute that must not
// already exist on the addressed item; since the named attribute is always the
// table's key attribute, the condition means "fail if the item exists".
type PutCondition struct {
	IfNotExists string
}

// Backend is the keyed-record store. All operations are per-item atomic and
// strongly consistent for a single key.
//
// Get returns a nil Item (and nil error) when the key is absent. When attrs
// are given only those attributes are returned.
//
// Update applies attribute-level assignments to a single item. Assignment
// names may be dotted paths ("tokens.web") to set a member of a nested map;
// a dotted path whose parent does not exist is an error, while flat
// assignments upsert.
//
// Delete of an absent key is not an error.
type Backend interface {
	Get(ctx context.Context, table string, key Item, attrs ...string) (Item, error)
	Put(ctx context.Context, table string, item Item, cond *PutCondition) error
	Update(ctx context.Context, table string, key Item, set map[string]any) error
	Delete(ctx context.Context, table string, key Item) error
}
