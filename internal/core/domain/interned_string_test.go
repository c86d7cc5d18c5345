package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/strata/internal/core/domain"
)

func TestInternedString(t *testing.T) {
	a := domain.NewInternedString("/app/main.py")
	b := domain.NewInternedString("/app/main.py")

	assert.Equal(t, a.Value(), b.Value(), "identical paths share a handle")
	assert.Equal(t, "/app/main.py", a.String())
}

func TestInternedString_ZeroValue(t *testing.T) {
	var zero domain.InternedString
	assert.Empty(t, zero.String())
}

func TestInternedString_TextRoundTrip(t *testing.T) {
	original := domain.NewInternedString("/usr/lib/python3")

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.JSONEq(t, `"/usr/lib/python3"`, string(data))

	var decoded domain.InternedString
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original.Value(), decoded.Value())
}
