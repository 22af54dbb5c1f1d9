package kyc_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/loan-assistant/internal/kyc"
	"github.com/capitalize-ai/loan-assistant/internal/model"
)

func TestRegistryVerify(t *testing.T) {
	reg := kyc.NewRegistry([]kyc.Record{
		{CustomerID: "CUST001", Name: "Rahul Sharma", Phone: "9876543210", Email: "rahul@example.com"},
	})
	ctx := context.Background()

	res, err := reg.Verify(ctx, model.Profile{Name: "rahul sharma", Phone: "9876543210"})
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, "CUST001", res.CustomerID)
	assert.Equal(t, model.Profile{CustomerID: "CUST001", Email: "rahul@example.com", Verified: true}, res.Delta())

	res, err = reg.Verify(ctx, model.Profile{Name: "Rahul Sharma", Phone: "9876543211"})
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Equal(t, model.Profile{}, res.Delta(), "no enrichment on a miss")

	res, err = reg.Verify(ctx, model.Profile{Name: "Priya Patel", Phone: "9876543210"})
	require.NoError(t, err)
	assert.False(t, res.Verified)
}

func TestRegistryVerify_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := kyc.NewRegistry(nil).Verify(ctx, model.Profile{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadRegistry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kyc_data.csv")
	data := "customer_id,name,phone,email,address\n" +
		"CUST001,Rahul Sharma,9876543210,Rahul@Example.com,Mumbai\n" +
		"CUST002,Priya Patel,9123456780,priya@example.com,Pune\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	reg, err := kyc.LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	res, err := reg.Verify(context.Background(), model.Profile{Name: "Rahul Sharma", Phone: "9876543210"})
	require.NoError(t, err)
	assert.Equal(t, "rahul@example.com", res.Email)

	reg, err = kyc.LoadRegistry(filepath.Join(dir, "missing.csv"))
	require.NoError(t, err)
	assert.Equal(t, 0, reg.Len())

	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("id,name\n1,x\n"), 0o600))
	_, err = kyc.LoadRegistry(bad)
	assert.Error(t, err)
}
