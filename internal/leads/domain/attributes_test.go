package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAttributesFlattensValues(t *testing.T) {
	attrs, err := DecodeAttributes([]byte(`{"cidade":"Campinas","faturamento":150000,"vip":true,"extra":null,"tags":["a","b"]}`))
	require.NoError(t, err)

	assert.Equal(t, "Campinas", attrs["cidade"])
	assert.Equal(t, "150000", attrs["faturamento"])
	assert.Equal(t, "true", attrs["vip"])
	assert.Equal(t, `["a","b"]`, attrs["tags"])
	_, ok := attrs["extra"]
	assert.False(t, ok)
}

func TestDecodeAttributesEmpty(t *testing.T) {
	attrs, err := DecodeAttributes(nil)
	require.NoError(t, err)
	assert.Empty(t, attrs)

	_, err = DecodeAttributes([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestDecodeAttributesDropsNulls(t *testing.T) {
	attrs, err := DecodeAttributes([]byte(`{"origem": null, "nome_indicacao": "Carlos"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"nome_indicacao": "Carlos"}, attrs)

	attrs, err = DecodeAttributes([]byte(`null`))
	require.NoError(t, err)
	assert.Empty(t, attrs)
}
