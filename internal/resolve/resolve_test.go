package resolve

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var header = []string{"Record Update", "Visit Date", "Species", "Patient Age", "Clinic Location", "Longitude", "Latitude"}

func TestResolveFirstMatchWins(t *testing.T) {
	idx, err := Resolve(header, "date")
	require.NoError(t, err)
	// "Record Update" contains "date" and comes first.
	assert.Equal(t, 0, idx)

	idx, err = Resolve(header, "visit date")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}

func TestResolveCaseInsensitive(t *testing.T) {
	idx, err := Resolve(header, "SPECIES")
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
}

func TestResolveExact(t *testing.T) {
	idx, err := Resolve(header, "=visit date")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	_, err = Resolve(header, "=date")
	assert.True(t, errors.Is(err, ErrColumnNotFound))
}

func TestResolveNotFound(t *testing.T) {
	_, err := Resolve(header, "breed")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrColumnNotFound))

	var cnf *ColumnNotFoundError
	require.True(t, errors.As(err, &cnf))
	assert.Equal(t, "breed", cnf.Role)
	assert.Contains(t, err.Error(), `"breed"`)

	_, err = Resolve(header, "  ")
	assert.True(t, errors.Is(err, ErrColumnNotFound))
}

func TestResolveIdempotent(t *testing.T) {
	r := New(header)
	for _, role := range []string{"date", "age", "location", "long", "lat"} {
		first, err := r.Resolve(role)
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			again, err := r.Resolve(role)
			require.NoError(t, err)
			assert.Equal(t, first, again, role)
		}
	}
}

func TestBind(t *testing.T) {
	r := New(header)
	b, err := r.Bind("species", "breed", "age")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrColumnNotFound))

	idx, ok := b.Column("age")
	assert.True(t, ok)
	assert.Equal(t, 3, idx)
	_, ok = b.Column("breed")
	assert.False(t, ok)
	assert.Equal(t, "Species", r.Name(b["species"]))
}
