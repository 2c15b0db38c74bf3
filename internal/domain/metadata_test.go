package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttribute_UnmarshalScalarValues(t *testing.T) {
	input := `[
		{"trait_type":"Platform","value":"NovaTok Explorer"},
		{"trait_type":"Level","value":7},
		{"trait_type":"Rare","value":true},
		{"trait_type":"Empty","value":null}
	]`

	var attrs []Attribute
	require.NoError(t, json.Unmarshal([]byte(input), &attrs))
	require.Len(t, attrs, 4)

	assert.Equal(t, Attribute{TraitType: "Platform", Value: "NovaTok Explorer"}, attrs[0])
	assert.Equal(t, "7", attrs[1].Value)
	assert.Equal(t, "true", attrs[2].Value)
	assert.Equal(t, "", attrs[3].Value)
}

func TestAttribute_UnmarshalRejectsObjectValue(t *testing.T) {
	var attr Attribute
	err := json.Unmarshal([]byte(`{"trait_type":"Nested","value":{"a":1}}`), &attr)
	assert.Error(t, err)
}

func TestTokenMetadata_Attr(t *testing.T) {
	m := &TokenMetadata{
		Attributes: []Attribute{{TraitType: "Created", Value: "2024-01-01"}},
	}

	v, ok := m.Attr("Created")
	assert.True(t, ok)
	assert.Equal(t, "2024-01-01", v)

	_, ok = m.Attr("Missing")
	assert.False(t, ok)
}

func TestTransferEvent_Kind(t *testing.T) {
	zero := "0x0000000000000000000000000000000000000000"
	holder := "0x00000000000000000000000000000000000000Aa"

	tests := []struct {
		name string
		from string
		to   string
		want TransferKind
	}{
		{"mint", zero, holder, TransferKindMint},
		{"burn", holder, zero, TransferKindBurn},
		{"transfer", holder, holder, TransferKindTransfer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &TransferEvent{From: tt.from, To: tt.to}
			assert.Equal(t, tt.want, e.Kind())
		})
	}
}

func TestMintStatus(t *testing.T) {
	assert.True(t, MintStatusPending.IsValid())
	assert.False(t, MintStatusPending.IsFinal())
	assert.True(t, MintStatusConfirmed.IsFinal())
	assert.True(t, MintStatusReverted.IsFinal())
	assert.False(t, MintStatus("unknown").IsValid())
}
