package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fincore/txn-enrichment/internal/dao"
	"github.com/fincore/txn-enrichment/internal/models"
)

func customerStore(t *testing.T) dao.Store {
	t.Helper()
	store := dao.NewMemoryStore()
	seeder := store.(dao.Seeder)
	seeder.Seed(models.TableCustomerMaster,
		dao.Row{
			"id": "CUST-000042", "name": "ACME TRADING LIMITED", "short_name": "ACME",
			"customer_type": "corporate", "base_currency": "EUR", "risk_level": "low",
			"registration_number": "123456789", "status": models.CustomerStatusActive,
		},
	)
	return store
}

func TestCustomerIdentification_DirectIDMatch(t *testing.T) {
	store := customerStore(t)
	row := newBankRow("TXN-1", "EUR", "100.00")
	row.CustomerIDRaw = "CUST-000042"

	result := NewCustomerIdentification().Run(context.Background(), row, store)

	assert.True(t, result.Success)
	assert.Equal(t, "CUST-000042", row.Enrichments[models.EnrichCustomerID])
	assert.Equal(t, "100", row.Enrichments[models.EnrichCustomerConfidence])
	assert.Equal(t, methodDirectID, row.Enrichments[models.EnrichCustomerMethod])
}

func TestCustomerIdentification_ExtractedRegistrationMatch(t *testing.T) {
	store := customerStore(t)
	row := newBankRow("TXN-1", "EUR", "100.00")
	row.ReferenceNumber = "PAYMENT REG:123456789 THANKS"

	result := NewCustomerIdentification().Run(context.Background(), row, store)

	assert.True(t, result.Success)
	assert.Equal(t, "CUST-000042", row.Enrichments[models.EnrichCustomerID])
	assert.Equal(t, methodExtractReg, row.Enrichments[models.EnrichCustomerMethod])
	assert.Equal(t, "90", row.Enrichments[models.EnrichCustomerConfidence])
}

func TestCustomerIdentification_NamePatternSubstringMatch(t *testing.T) {
	store := customerStore(t)
	row := newBankRow("TXN-1", "EUR", "100.00")
	row.OtherSideName = "ACME TRADING LIMITED OY"

	result := NewCustomerIdentification().Run(context.Background(), row, store)

	assert.True(t, result.Success)
	assert.Equal(t, "CUST-000042", row.Enrichments[models.EnrichCustomerID])
	assert.Equal(t, methodNamePat, row.Enrichments[models.EnrichCustomerMethod])
}

func TestCustomerIdentification_AccountNumberMatch(t *testing.T) {
	store := customerStore(t)
	seeder := store.(dao.Seeder)
	seeder.Seed(models.TableCustomerAccount,
		dao.Row{"account_number": "AC-999888", "customer_id": "CUST-000042", "status": models.StatusActive},
	)
	row := newBankRow("TXN-1", "EUR", "100.00")
	row.AccountNumber = "AC-999888"

	result := NewCustomerIdentification().Run(context.Background(), row, store)

	assert.True(t, result.Success)
	assert.Equal(t, "CUST-000042", row.Enrichments[models.EnrichCustomerID])
	assert.Equal(t, methodAccountNum, row.Enrichments[models.EnrichCustomerMethod])
	assert.Equal(t, "95", row.Enrichments[models.EnrichCustomerConfidence])
}

func TestCustomerIdentification_NoMatchRaisesException(t *testing.T) {
	store := customerStore(t)
	row := newBankRow("TXN-1", "EUR", "100.00")
	row.OtherSideName = "COMPLETELY UNRELATED ENTITY"

	result := NewCustomerIdentification().Run(context.Background(), row, store)

	assert.True(t, result.Success)
	assert.Equal(t, models.SentinelUnknown, row.Enrichments[models.EnrichCustomerID])
	assert.Equal(t, "0", row.Enrichments[models.EnrichCustomerConfidence])

	exceptions, err := store.Find(context.Background(), models.TableExceptionQueue, "", nil, "", false, 0, 0)
	require.NoError(t, err)
	require.Len(t, exceptions, 1)
	assert.Equal(t, models.ExceptionMissingCustomer, exceptions[0]["exception_type"])
}

func TestCustomerIdentification_SkippedForSecuRows(t *testing.T) {
	row := models.NewContext("TXN-1", "STMT-1", models.SourceSecu)
	assert.False(t, NewCustomerIdentification().ShouldExecute(row))
}

func TestSubstringMatch(t *testing.T) {
	assert.True(t, substringMatch("ACME TRADING LIMITED OY", "ACME TRADING LIMITED"))
	assert.False(t, substringMatch("AB", "ABCDE"))
	assert.False(t, substringMatch("ACME", "COMPLETELY DIFFERENT NAME ENTITY"))
}
