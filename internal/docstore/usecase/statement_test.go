package usecase

import (
	"testing"

	"mission-control/internal/docstore/domain/model"
	apperrors "mission-control/internal/shared/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSelect(t *testing.T) {
	tests := []struct {
		name     string
		filters  []FilterTerm
		order    OrderSpec
		expected string
		params   []interface{}
	}{
		{
			name:     "no filters",
			order:    OrderSpec{Field: "name", Direction: "asc"},
			expected: "SELECT * FROM `satellites` ORDER BY `name` ASC",
			params:   []interface{}{},
		},
		{
			name:     "one filter",
			filters:  []FilterTerm{{Field: "status", Value: "Active"}},
			order:    DefaultOrder,
			expected: "SELECT * FROM `satellites` WHERE `status` = ? ORDER BY `created_at` DESC",
			params:   []interface{}{"Active"},
		},
		{
			name:     "filters keep their order",
			filters:  []FilterTerm{{Field: "status", Value: "Active"}, {Field: "mission_id", Value: int64(2)}},
			order:    OrderSpec{Field: "name", Direction: model.Descending},
			expected: "SELECT * FROM `satellites` WHERE `status` = ? AND `mission_id` = ? ORDER BY `name` DESC",
			params:   []interface{}{"Active", int64(2)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, params, err := buildSelect("satellites", tt.filters, tt.order)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, stmt)
			assert.Equal(t, tt.params, params)
		})
	}
}

func TestBuildSelect_RejectsUnsafeIdentifiers(t *testing.T) {
	_, _, err := buildSelect("satellites", []FilterTerm{{Field: "name; DROP TABLE users", Value: 1}}, DefaultOrder)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.ErrorIs(t, err, apperrors.ErrInvalidIdentifier)

	_, _, err = buildSelect("satellites", nil, OrderSpec{Field: "name`", Direction: "ASC"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidIdentifier)

	_, _, err = buildSelect("sat ellites", nil, DefaultOrder)
	assert.ErrorIs(t, err, apperrors.ErrInvalidIdentifier)
}

func TestBuildInsert(t *testing.T) {
	stmt, params, err := buildInsert("anomalies", model.Record{"severity": "High", "satellite_id": int64(3), "description": "x"})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `anomalies` (`description`, `satellite_id`, `severity`) VALUES (?, ?, ?)", stmt)
	assert.Equal(t, []interface{}{"x", int64(3), "High"}, params)

	_, _, err = buildInsert("anomalies", model.Record{})
	assert.ErrorIs(t, err, apperrors.ErrEmptyPayload)
}

func TestBuildUpdate(t *testing.T) {
	stmt, params, err := buildUpdate("commands", int64(7), model.Record{"status": "Completed", "executed_at": "2025-03-01"})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE `commands` SET `executed_at` = ?, `status` = ? WHERE `id` = ?", stmt)
	assert.Equal(t, []interface{}{"2025-03-01", "Completed", int64(7)}, params)

	_, _, err = buildUpdate("commands", int64(7), nil)
	assert.ErrorIs(t, err, apperrors.ErrEmptyPayload)
}

func TestBuildByIDStatements(t *testing.T) {
	stmt, params, err := buildSelectByID("users", int64(4))
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` WHERE `id` = ? LIMIT 1", stmt)
	assert.Equal(t, []interface{}{int64(4)}, params)

	stmt, params, err = buildDelete("users", int64(4))
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM `users` WHERE `id` = ?", stmt)
	assert.Equal(t, []interface{}{int64(4)}, params)
}

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		in       interface{}
		expected interface{}
	}{
		{"42", int64(42)},
		{" 7 ", int64(7)},
		{"abc-1", "abc-1"},
		{3, int64(3)},
		{int32(5), int64(5)},
		{float64(9), int64(9)},
		{1.5, 1.5},
		{int64(11), int64(11)},
		{nil, nil},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, normalizeID(tt.in), "input %#v", tt.in)
	}
}
