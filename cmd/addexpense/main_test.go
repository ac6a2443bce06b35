package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendview/internal/core"
	"spendview/internal/storage"
)

func TestRun_Success(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test_success.db")

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)

	args := []string{"-amount", "42.505", "-date", "2024-03-10", "-method", "Cash", "-source", "Wallet", "-db", dbPath}
	err := run(args, stdout, stderr)
	require.NoError(t, err)

	// Half-up rounding on the third decimal.
	assert.Contains(t, stdout.String(), "42.51 via Cash/Wallet on 2024-03-10")

	repo, err := storage.NewSQLiteRepository(dbPath)
	require.NoError(t, err)
	defer repo.Close()

	rows, err := repo.SumSpend(context.Background(), core.Filter{Year: 2024, Month: 3}, core.GroupByDayOfMonth)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(4251), rows[0].TotalCents)
}

func TestRun_ReusesExistingSource(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test_reuse.db")
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)

	args := []string{"-amount", "10.00", "-date", "2024-03-10", "-method", "Cash", "-source", "Wallet", "-db", dbPath}
	require.NoError(t, run(args, stdout, stderr))
	args[1] = "5.00"
	require.NoError(t, run(args, stdout, stderr))

	repo, err := storage.NewSQLiteRepository(dbPath)
	require.NoError(t, err)
	defer repo.Close()

	sources, err := repo.ListSources(context.Background())
	require.NoError(t, err)
	assert.Len(t, sources, 1, "second run should reuse the Wallet source")
}

func TestRun_InvalidAmount(t *testing.T) {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)

	for _, amount := range []string{"abc", "0", "-5.00", "1.2.3"} {
		args := []string{"-amount", amount, "-method", "Cash", "-source", "Wallet"}
		err := run(args, stdout, stderr)
		require.Error(t, err, "amount %q should be rejected", amount)
		assert.Contains(t, err.Error(), "invalid amount")
	}
}

func TestRun_InvalidDate(t *testing.T) {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)

	args := []string{"-amount", "5.00", "-date", "10/03/2024", "-method", "Cash", "-source", "Wallet"}
	err := run(args, stdout, stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid date")
}

func TestRun_UnknownMethod(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test_method.db")
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)

	args := []string{"-amount", "5.00", "-method", "Barter", "-source", "Wallet", "-db", dbPath}
	err := run(args, stdout, stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown payment method "Barter"`)
}

func TestRun_MissingFlags(t *testing.T) {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)

	args := []string{"-amount", "5.00"}
	err := run(args, stdout, stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required flags")
	assert.Contains(t, stdout.String(), "Usage:")
}
