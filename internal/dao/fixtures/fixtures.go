// Package fixtures seeds a dao.Store with a small, internally-consistent
// set of reference rows for the demo CLI and for tests, grounded on the
// teacher's setupTestTables helpers (backend/internal/repositories and
// backend/tests/integration use a similar hand-built fixture table per
// test). Fixtures here are plain dao.Row values rather than SQL DDL,
// since the store they seed may be in-memory, SQLite, or Postgres.
package fixtures

import (
	"github.com/fincore/txn-enrichment/internal/dao"
	"github.com/fincore/txn-enrichment/internal/models"
)

// Load seeds store with currencies, banks, brokers, counterparties,
// customers, FX rates, and F14 rules sufficient to drive the happy-path
// and stale/missing-FX end-to-end scenarios in spec §8. It only works
// against a dao.Seeder (the in-memory store); SQL-backed stores are
// seeded via migrations/ + hand-written INSERTs instead.
func Load(store dao.Store) bool {
	seeder, ok := store.(dao.Seeder)
	if !ok {
		return false
	}

	seeder.Seed(models.TableCurrencyMaster,
		dao.Row{"id": "EUR", "code": "EUR", "name": "Euro", "symbol": "€", "decimal_places": "2", "status": models.StatusActive},
		dao.Row{"id": "USD", "code": "USD", "name": "US Dollar", "symbol": "$", "decimal_places": "2", "status": models.StatusActive},
		dao.Row{"id": "GBP", "code": "GBP", "name": "Pound Sterling", "symbol": "£", "decimal_places": "2", "status": models.StatusActive},
	)

	seeder.Seed(models.TableBank,
		dao.Row{"id": "bank-xbankxx0", "bic": "XBANKXX0", "name": "Example Bank AG"},
		dao.Row{"id": "bank-othbankx", "bic": "OTHBANKX", "name": "Other Side Bank"},
	)

	seeder.Seed(models.TableBroker,
		dao.Row{"id": "broker-1", "bic": "BROKERXX", "name": "Example Brokerage"},
	)

	seeder.Seed(models.TableCounterparty,
		dao.Row{"id": "CPT0143", "counterparty_type": models.CounterpartyBank, "bank_id": "XBANKXX0", "short_code": "XBK", "is_active": "true"},
		dao.Row{"id": "CPT0200", "counterparty_type": models.CounterpartyCustodian, "custodian_id": "XBANKXX0", "short_code": "XBKC", "is_active": "true"},
		dao.Row{"id": "CPT0300", "counterparty_type": models.CounterpartyBroker, "broker_id": "broker-1", "short_code": "BRK", "is_active": "true"},
	)

	seeder.Seed(models.TableCustomerMaster,
		dao.Row{
			"id": "CUST-000042", "name": "Acme Trading Ltd", "short_name": "ACME",
			"customer_type": "company", "registration_number": "123456789",
			"base_currency": "EUR", "risk_level": "low", "status": models.CustomerStatusActive,
		},
	)

	seeder.Seed(models.TableFXRatesEUR,
		dao.Row{"id": "fx-usd-0112", "effective_date": "2024-01-12", "target_currency": "USD", "exchange_rate": "1.10", "status": models.StatusActive},
		dao.Row{"id": "fx-gbp-0115", "effective_date": "2024-01-15", "target_currency": "GBP", "exchange_rate": "0.86", "status": models.StatusActive},
	)

	seeder.Seed(models.TableCPTxnMapping,
		dao.Row{
			"id": "rule-1", "counterparty_id": "CPT0143", "source_type": "BANK", "rule_name": "Incoming wire",
			"matching_field": "payment_description", "match_operator": "contains", "match_value": "WIRE",
			"internal_type": "INCOMING_WIRE", "priority": "10", "status": models.StatusActive,
		},
		dao.Row{
			"id": "rule-system-fallback", "counterparty_id": models.SentinelSystem, "source_type": "BANK", "rule_name": "Generic credit",
			"matching_field": "debit_credit", "match_operator": "equals", "match_value": "C",
			"internal_type": "GENERIC_CREDIT", "priority": "500", "status": models.StatusActive,
		},
	)

	return true
}
