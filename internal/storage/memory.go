package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Backend with the same observable semantics as the
// DynamoDB implementation: conditional creates fail with ErrConditionFailed,
// deletes of absent keys succeed, flat updates upsert while dotted-path
// updates require the parent map to exist.
//
// It backs tests and local runs without a DynamoDB endpoint.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]map[string]Item
}

func NewMemory() *Memory {
	return &Memory{tables: make(map[string]map[string]Item)}
}

// keyOf extracts the single key attribute from a key item.
func keyOf(key Item) (string, string, error) {
	if len(key) != 1 {
		return "", "", fmt.Errorf("key must have exactly one attribute, got %d", len(key))
	}
	for attr, v := range key {
		s, ok := v.(string)
		if !ok {
			return "", "", fmt.Errorf("key attribute %s must be a string", attr)
		}
		return attr, s, nil
	}
	return "", "", nil
}

func cloneValue(v any) any {
	if m, ok := v.(map[string]any); ok {
		c := make(map[string]any, len(m))
		for k, mv := range m {
			c[k] = cloneValue(mv)
		}
		return c
	}
	return v
}

func cloneItem(item Item) Item {
	c := make(Item, len(item))
	for k, v := range item {
		c[k] = cloneValue(v)
	}
	return c
}

func (m *Memory) Get(ctx context.Context, table string, key Item, attrs ...string) (Item, error) {
	_, keyVal, err := keyOf(key)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.tables[table][keyVal]
	if !ok {
		return nil, nil
	}
	if len(attrs) == 0 {
		return cloneItem(item), nil
	}

	out := make(Item, len(attrs))
	for _, a := range attrs {
		if v, ok := item[a]; ok {
			out[a] = cloneValue(v)
		}
	}
	return out, nil
}

func (m *Memory) Put(ctx context.Context, table string, item Item, cond *PutCondition) error {
	keyAttr := ""
	if cond != nil {
		keyAttr = cond.IfNotExists
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tables[table] == nil {
		m.tables[table] = make(map[string]Item)
	}

	// The table key is whatever attribute the caller conditions on; for an
	// unconditional put it is inferred from the existing rows' shape, so we
	// fall back to probing every key attribute we know about.
	keyVal, err := m.keyValue(table, item, keyAttr)
	if err != nil {
		return err
	}

	if cond != nil {
		if existing, ok := m.tables[table][keyVal]; ok {
			if _, has := existing[cond.IfNotExists]; has {
				return ErrConditionFailed
			}
		}
	}

	m.tables[table][keyVal] = cloneItem(item)
	return nil
}

// keyValue resolves the key attribute value for item. The account service
// always keys a table by the same attribute, recorded here per table name.
func (m *Memory) keyValue(table string, item Item, condAttr string) (string, error) {
	attr := condAttr
	if attr == "" {
		attr = tableKeyAttr(table)
	}
	v, ok := item[attr].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("item missing key attribute %s for table %s", attr, table)
	}
	return v, nil
}

func tableKeyAttr(table string) string {
	switch table {
	case TableUsers:
		return "id"
	case TableNameUsers:
		return "username"
	case TableEmailUsers:
		return "email"
	case TableTokens:
		return "userId"
	}
	return "id"
}

func (m *Memory) Update(ctx context.Context, table string, key Item, set map[string]any) error {
	_, keyVal, err := keyOf(key)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tables[table] == nil {
		m.tables[table] = make(map[string]Item)
	}
	item, ok := m.tables[table][keyVal]
	if !ok {
		// Flat updates upsert; a dotted path on a missing item has no
		// parent to descend into and fails below.
		item = cloneItem(key)
		m.tables[table][keyVal] = item
	}

	// Sorted order keeps failures deterministic.
	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		segments := strings.Split(p, ".")
		cur := map[string]any(item)
		for _, seg := range segments[:len(segments)-1] {
			next, ok := cur[seg].(map[string]any)
			if !ok {
				return fmt.Errorf("document path %s does not exist in %s", p, table)
			}
			cur = next
		}
		cur[segments[len(segments)-1]] = cloneValue(set[p])
	}
	return nil
}

func (m *Memory) Delete(ctx context.Context, table string, key Item) error {
	_, keyVal, err := keyOf(key)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.tables[table], keyVal)
	return nil
}
