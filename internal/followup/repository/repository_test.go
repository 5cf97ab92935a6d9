package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeClaimedFillsJSONColumns(t *testing.T) {
	var item Claimed
	err := decodeClaimed(&item,
		[]byte(`[{"step":0,"type":"whatsapp","status":"sent"}]`),
		[]byte(`[{"titulo":"Oi","tipo_acao":"whatsapp","conteudo":"Oi {{nome}}"}]`),
		[]byte(`{"cidade":"Recife"}`),
	)
	require.NoError(t, err)

	require.Len(t, item.Execution.StepsExecutados, 1)
	require.Len(t, item.Sequence.Steps, 1)
	assert.Equal(t, "whatsapp", item.Sequence.Steps[0].TipoAcao)
	assert.Equal(t, "Recife", item.Lead.Attributes["cidade"])
}

func TestDecodeClaimedReportsBadRow(t *testing.T) {
	var item Claimed
	err := decodeClaimed(&item, nil, []byte(`"x"`), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sequence steps")

	err = decodeClaimed(&item, nil, nil, []byte(`[1]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lead attributes")
}
