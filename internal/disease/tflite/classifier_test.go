package tflite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/agrisense/internal/disease"
	"github.com/tphakala/agrisense/internal/errors"
)

func TestLoadRejectsEmptyModel(t *testing.T) {
	t.Parallel()

	_, err := Load(Config{Name: "models/plant_disease.tflite", Input: disease.DefaultInputSpec()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrModelUnavailable))
}

func TestLoadRejectsBadInputSpec(t *testing.T) {
	t.Parallel()

	spec := disease.DefaultInputSpec()
	spec.Layout = "CHWN"
	_, err := Load(Config{Data: []byte{1}, Input: spec})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestDetermineThreadCount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, determineThreadCount(1))
	assert.Positive(t, determineThreadCount(0))
	assert.LessOrEqual(t, determineThreadCount(1<<20), determineThreadCount(0))
}
