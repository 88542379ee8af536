package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Behavior(t *testing.T) {
	err := NewValidationError("invalid input").WithCode("VAL001").WithDetail("field", "name").WithComponent("registry")
	assert.Equal(t, ErrorTypeValidation, err.Type)
	assert.Equal(t, "invalid input", err.Message)
	assert.Equal(t, "VAL001", err.Code)
	assert.Equal(t, "registry", err.Component)
	assert.Equal(t, "name", err.Details["field"])
	assert.Equal(t, "invalid input", err.Error())
}

func TestUnknownCollectionError(t *testing.T) {
	err := NewUnknownCollectionError("widgets")

	assert.True(t, IsUnknownCollection(err))
	assert.True(t, IsUnknownCollection(fmt.Errorf("create: %w", err)))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(err))
	assert.Equal(t, "widgets", err.Details["collection"])
	assert.Contains(t, err.Error(), `"widgets"`)
}

func TestStorageError_KeepsMessage(t *testing.T) {
	cause := errors.New("Error 1146 (42S02): Table 'ops.satellites' doesn't exist")
	err := NewStorageError("SELECT * FROM `satellites`", cause)

	require.Error(t, err)
	assert.Equal(t, cause.Error(), err.Error())
	assert.True(t, IsStorage(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(err))

	// wrapping twice does not nest
	again := NewStorageError("other", err)
	assert.Same(t, err, again)

	assert.NoError(t, NewStorageError("SELECT 1", nil))
	assert.True(t, IsStorage(NewStorageError("SELECT 1", sql.ErrConnDone)))
}

func TestValidationErrors(t *testing.T) {
	ve := NewValidationErrors()
	assert.Nil(t, ve.ToAppError(ErrUnknownColumn))

	ve.Add("colour", "unknown column", "red")
	assert.True(t, ve.HasErrors())

	appErr := ve.ToAppError(ErrUnknownColumn)
	require.NotNil(t, appErr)
	assert.Equal(t, ErrorTypeValidation, appErr.Type)
	assert.ErrorIs(t, appErr, ErrUnknownColumn)
	assert.True(t, IsValidation(appErr))
}

func TestPredicates(t *testing.T) {
	nf := NewNotFoundError("document")
	assert.True(t, IsNotFound(nf))
	assert.False(t, IsValidation(nf))
	assert.False(t, IsAuthentication(nf))

	assert.True(t, IsAuthentication(NewAuthenticationError("bad")))
	assert.True(t, IsAuthentication(ErrInvalidCredentials))
	assert.False(t, IsStorage(nf))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}
