package generic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticDirectory []Employee

func (d staticDirectory) GetEmployee(_ context.Context, id EmployeeID) (*Employee, error) {
	for _, e := range d {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, nil
}

func (d staticDirectory) GetEmployeeByCode(_ context.Context, code string) (*Employee, error) {
	for _, e := range d {
		if e.Code == code {
			return &e, nil
		}
	}
	return nil, nil
}

func (d staticDirectory) ListEmployees(_ context.Context) ([]Employee, error) {
	return d, nil
}

func TestDepartmentFilter(t *testing.T) {
	dir := staticDirectory{
		{ID: "E001", Code: "E001", Department: "ENG"},
		{ID: "E002", Code: "E002", Department: "OPS"},
		{ID: "E003", Code: "E003", Department: "eng"},
	}
	ctx := context.Background()

	t.Run("empty department matches everyone", func(t *testing.T) {
		got, err := DepartmentFilter(ctx, dir, "")
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("department ignores case", func(t *testing.T) {
		got, err := DepartmentFilter(ctx, dir, "Eng")
		require.NoError(t, err)
		assert.Len(t, got, 2)
		assert.Contains(t, got, EmployeeID("E001"))
		assert.Contains(t, got, EmployeeID("E003"))
	})

	t.Run("unknown department is empty", func(t *testing.T) {
		got, err := DepartmentFilter(ctx, dir, "HR")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
