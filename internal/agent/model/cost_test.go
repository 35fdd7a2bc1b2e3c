package model

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeCost(t *testing.T) {
	c := ComputeCost("gemini-2.5-flash", &schema.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 200_000, TotalTokens: 1_200_000})
	require.NotNil(t, c)
	assert.InDelta(t, 0.30, c.InputCost, 1e-9)
	assert.InDelta(t, 0.50, c.OutputCost, 1e-9)
	assert.InDelta(t, 0.80, c.TotalCost, 1e-9)
	assert.Equal(t, "USD", c.Currency)
}

func TestComputeCostUnknownModel(t *testing.T) {
	c := ComputeCost("local-model", &schema.TokenUsage{PromptTokens: 10})
	require.NotNil(t, c)
	assert.Zero(t, c.TotalCost)

	assert.Nil(t, ComputeCost("gemini-2.5-flash", nil))
}
