package models

// Logical table names consumed read-only and produced by the engine
// (spec §6). Kept as named constants rather than scattered string
// literals, the way the teacher names its account/tag categories in
// internal/models/master_data.go.
const (
	TableCurrencyMaster   = "currency_master"
	TableCounterparty     = "counterparty_master"
	TableCustomerMaster   = "customer_master"
	TableCustomerAccount  = "customer_account"
	TableBank             = "bank"
	TableBroker           = "broker"
	TableFXRatesEUR       = "fx_rates_eur"
	TableCPTxnMapping     = "cp_txn_mapping"
	TableAuditLog         = "audit_log"
	TableExceptionQueue   = "exception_queue"
)

// Status values shared by several reference tables.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// CounterpartyType enumerates the counterparty_master.counterpartyType values.
const (
	CounterpartyBank      = "Bank"
	CounterpartyCustodian = "Custodian"
	CounterpartyBroker    = "Broker"
)

// Customer status and type values.
const (
	CustomerStatusActive = "active"
)
