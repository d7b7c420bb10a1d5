package steps

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fincore/txn-enrichment/internal/dao"
	"github.com/fincore/txn-enrichment/internal/models"
)

func fxStore(t *testing.T) dao.Store {
	t.Helper()
	store := dao.NewMemoryStore()
	seeder := store.(dao.Seeder)
	seeder.Seed(models.TableFXRatesEUR,
		dao.Row{"id": "r1", "target_currency": "USD", "effective_date": "2024-01-12", "exchange_rate": "1.10", "status": models.StatusActive},
		dao.Row{"id": "r2", "target_currency": "GBP", "effective_date": "2024-01-01", "exchange_rate": "0.86", "status": models.StatusActive},
	)
	return store
}

func TestFXConversion_BaseCurrencyPassesThrough(t *testing.T) {
	store := fxStore(t)
	row := newBankRow("TXN-1", "EUR", "100.00")
	row.TransactionDate = time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)

	result := NewFXConversion().Run(context.Background(), row, store)

	assert.True(t, result.Success)
	assert.Equal(t, "100.00", row.Enrichments[models.EnrichBaseAmount])
	assert.Equal(t, "BASE_CURRENCY", row.Enrichments[models.EnrichFXRateSource])
}

func TestFXConversion_ExactDateRate(t *testing.T) {
	store := fxStore(t)
	row := newBankRow("TXN-1", "USD", "110.00")
	row.TransactionDate = time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)

	result := NewFXConversion().Run(context.Background(), row, store)

	assert.True(t, result.Success)
	assert.Equal(t, "100.00", row.Enrichments[models.EnrichBaseAmount])
	assert.Equal(t, models.BaseCurrency, row.Enrichments[models.EnrichBaseCurrency])
}

func TestFXConversion_StaleRateWithinWindowRaisesAdvisory(t *testing.T) {
	store := fxStore(t)
	row := newBankRow("TXN-1", "GBP", "86.00")
	row.TransactionDate = time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	result := NewFXConversion().Run(context.Background(), row, store)

	assert.True(t, result.Success)
	assert.Equal(t, "100.00", row.Enrichments[models.EnrichBaseAmount])

	exceptions, err := store.Find(context.Background(), models.TableExceptionQueue, "", nil, "", false, 0, 0)
	require.NoError(t, err)
	require.Len(t, exceptions, 1)
	assert.Equal(t, models.ExceptionOldFXRate, exceptions[0]["exception_type"])
}

func TestFXConversion_NoRateWithinLookbackRaisesFXRateMissing(t *testing.T) {
	store := fxStore(t)
	row := newBankRow("TXN-1", "USD", "100.00")
	row.TransactionDate = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	result := NewFXConversion().Run(context.Background(), row, store)

	assert.True(t, result.Success)
	assert.Equal(t, "0.00", row.Enrichments[models.EnrichBaseAmount])

	exceptions, err := store.Find(context.Background(), models.TableExceptionQueue, "", nil, "", false, 0, 0)
	require.NoError(t, err)
	require.Len(t, exceptions, 1)
	assert.Equal(t, models.ExceptionFXRateMissing, exceptions[0]["exception_type"])
	assert.Equal(t, models.PriorityHigh, exceptions[0]["priority"])
}

func TestFindFXRate_ExactlyFiveDaysOldSucceeds(t *testing.T) {
	store := dao.NewMemoryStore()
	seeder := store.(dao.Seeder)
	seeder.Seed(models.TableFXRatesEUR,
		dao.Row{"id": "r1", "target_currency": "CHF", "effective_date": "2024-02-05", "exchange_rate": "0.95", "status": models.StatusActive},
	)
	fxDate := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	_, rateDate, ageDays, found := findFXRate(context.Background(), store, "CHF", fxDate)

	require.True(t, found)
	assert.Equal(t, 5, ageDays)
	assert.Equal(t, time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC), rateDate)
}

func TestFindFXRate_SixDaysOldFails(t *testing.T) {
	store := dao.NewMemoryStore()
	seeder := store.(dao.Seeder)
	seeder.Seed(models.TableFXRatesEUR,
		dao.Row{"id": "r1", "target_currency": "CHF", "effective_date": "2024-02-04", "exchange_rate": "0.95", "status": models.StatusActive},
	)
	fxDate := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	_, _, _, found := findFXRate(context.Background(), store, "CHF", fxDate)

	assert.False(t, found)
}

func TestFXConversion_MissingCurrencyIsFatal(t *testing.T) {
	store := fxStore(t)
	row := newBankRow("TXN-1", "", "100.00")

	result := NewFXConversion().Run(context.Background(), row, store)

	assert.False(t, result.Success)
	assert.True(t, row.HasFatalError())
}
