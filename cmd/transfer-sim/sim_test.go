package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSimulate_ConservesTotal(t *testing.T) {
	rep, err := simulate(context.Background(), simArgs{
		accounts:  3,
		workers:   8,
		transfers: 200,
		initial:   "100",
		amount:    "7.25",
	}, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, int64(8*200), rep.ok+rep.insufficient+rep.timeouts)
	assert.True(t, rep.total.Equal(rep.expected), "total %s expected %s", rep.total, rep.expected)
	assert.Equal(t, "300", rep.expected.String())
	assert.Len(t, rep.balances, 3)
	// duas notificações (débito + crédito) por transferência aplicada
	assert.Equal(t, 2*rep.ok, rep.notifications)
	for _, b := range rep.balances {
		assert.False(t, b.Balance.IsNegative(), "%s negative", b.ID)
	}
}

func TestSimulate_InvalidArgs(t *testing.T) {
	tests := []simArgs{
		{accounts: 1, workers: 1, initial: "1", amount: "1"},
		{accounts: 2, workers: 0, initial: "1", amount: "1"},
		{accounts: 2, workers: 1, initial: "x", amount: "1"},
		{accounts: 2, workers: 1, initial: "1", amount: "x"},
	}
	for _, a := range tests {
		_, err := simulate(context.Background(), a, zap.NewNop())
		assert.Error(t, err, "%+v", a)
	}
}

func TestRootCmd_PrintsReport(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--accounts", "2", "--workers", "4", "--transfers", "50", "--lock-timeout", time.Second.String()})

	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	assert.True(t, strings.Contains(out.String(), "total=2000 expected=2000"), out.String())
}
