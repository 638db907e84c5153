package util

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

type periodQuery struct {
	Period string `validate:"omitempty,oneof=7d 30d"`
	From   string `validate:"omitempty,datetime=2006-01-02"`
}

func TestValidateDTO(t *testing.T) {
	require.NoError(t, ValidateDTO(&periodQuery{}))
	require.NoError(t, ValidateDTO(&periodQuery{Period: "7d", From: "2026-03-01"}))

	err := ValidateDTO(&periodQuery{Period: "8d"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "Period")
	var vErrs validator.ValidationErrors
	require.True(t, errors.As(err, &vErrs))

	require.Error(t, ValidateDTO(&periodQuery{From: "03/01/2026"}))
}
