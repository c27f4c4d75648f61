// Package resolve maps semantic roles ("date", "species", "age", ...) to
// concrete columns of a loosely specified table header.
//
// A role is matched as a case-insensitive substring of each header, in column
// order, and the first match wins. A role starting with "=" must equal the whole
// header (case-insensitively), for callers that need to disambiguate headers
// sharing a substring, such as "date" inside "Update".
package resolve

import (
	"errors"
	"fmt"
	"strings"
)

// ErrColumnNotFound is matched by every ColumnNotFoundError.
var ErrColumnNotFound = errors.New("column not found")

// ColumnNotFoundError reports a role that matched no header.
type ColumnNotFoundError struct {
	Role    string
	Columns []string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("no column matches role %q (columns: %s)", e.Role, strings.Join(e.Columns, ", "))
}

func (e *ColumnNotFoundError) Is(target error) bool { return target == ErrColumnNotFound }

// Resolve returns the index of the first column whose header contains role.
func Resolve(columns []string, role string) (int, error) {
	return New(columns).Resolve(role)
}

// Resolver resolves roles against one header, normalizing it once.
type Resolver struct {
	columns []string
	lower   []string
}

// New builds a Resolver for a header.
func New(columns []string) *Resolver {
	r := &Resolver{columns: make([]string, len(columns)), lower: make([]string, len(columns))}
	copy(r.columns, columns)
	for i, c := range columns {
		r.lower[i] = strings.ToLower(c)
	}
	return r
}

// Resolve returns the index of the first matching column.
func (r *Resolver) Resolve(role string) (int, error) {
	exact := strings.HasPrefix(role, "=")
	needle := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(role, "=")))
	if needle == "" {
		return -1, &ColumnNotFoundError{Role: role, Columns: r.columns}
	}
	for i, h := range r.lower {
		if exact && strings.TrimSpace(h) == needle || !exact && strings.Contains(h, needle) {
			return i, nil
		}
	}
	return -1, &ColumnNotFoundError{Role: role, Columns: r.columns}
}

// Name returns the header at index i.
func (r *Resolver) Name(i int) string { return r.columns[i] }

// Binding maps roles to resolved column indices.
type Binding map[string]int

// Bind resolves every role. The first failure is returned with the roles
// bound so far, so callers can still use the successful ones.
func (r *Resolver) Bind(roles ...string) (Binding, error) {
	b := make(Binding, len(roles))
	var firstErr error
	for _, role := range roles {
		idx, err := r.Resolve(role)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		b[role] = idx
	}
	return b, firstErr
}

// Column returns the bound index for role.
func (b Binding) Column(role string) (int, bool) {
	idx, ok := b[role]
	return idx, ok
}
