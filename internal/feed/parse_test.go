package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSettleText(t *testing.T) {
	value, label, err := ParseSettleText("已结算: 结果为 14 大")
	require.NoError(t, err)
	assert.Equal(t, 14, value)
	assert.Equal(t, "big", label)

	value, label, err = ParseSettleText("本局已结算: 结果为 7 小，下局即将开始")
	require.NoError(t, err)
	assert.Equal(t, 7, value)
	assert.Equal(t, "small", label)
}

func TestParseSettleTextFullWidthColon(t *testing.T) {
	value, label, err := ParseSettleText("已结算：结果为 9 小")
	require.NoError(t, err)
	assert.Equal(t, 9, value)
	assert.Equal(t, "small", label)
}

func TestParseSettleTextRejectsOtherMessages(t *testing.T) {
	_, _, err := ParseSettleText("新一局开盘，请下注")
	assert.ErrorIs(t, err, ErrNotSettleText)

	_, _, err = ParseSettleText("已结算: 流局")
	assert.ErrorIs(t, err, ErrNotSettleText)
}
