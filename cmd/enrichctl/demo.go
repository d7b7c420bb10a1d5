package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fincore/txn-enrichment/internal/controller"
	"github.com/fincore/txn-enrichment/internal/dao"
	"github.com/fincore/txn-enrichment/internal/models"
	"github.com/fincore/txn-enrichment/internal/pipeline"
)

// demoLoader and demoPersister are minimal stand-ins for the out-of-scope
// loader/persister collaborators described in spec §6 — just enough to
// drive the pipeline end to end against the seeded fixtures.
type demoLoader struct{}

func (demoLoader) LoadData(_ context.Context, _ dao.Store, _ controller.Config) ([]*models.Context, error) {
	day, _ := time.Parse("2006-01-02", "2024-01-15")

	bankEUR := models.NewContext("TXN-0001", "STMT-0001", models.SourceBank)
	bankEUR.Currency = "eur"
	bankEUR.Amount = "1234.56"
	bankEUR.TransactionDate = day
	bankEUR.StatementBank = "XBANKXX0"
	bankEUR.OtherSideBic = "OTHBANKX"
	bankEUR.CustomerIDRaw = "CUST-000042"
	bankEUR.PaymentDesc = "WIRE TRANSFER FROM CLIENT"
	bankEUR.DebitCredit = "C"

	bankUSDStale := models.NewContext("TXN-0002", "STMT-0001", models.SourceBank)
	bankUSDStale.Currency = "USD"
	bankUSDStale.Amount = "1000.00"
	bankUSDStale.TransactionDate = day
	bankUSDStale.StatementBank = "XBANKXX0"
	bankUSDStale.CustomerIDRaw = "123456789"
	bankUSDStale.PaymentDesc = "WIRE TRANSFER"
	bankUSDStale.DebitCredit = "C"

	bankGBPNoCustomer := models.NewContext("TXN-0003", "STMT-0001", models.SourceBank)
	bankGBPNoCustomer.Currency = "GBP"
	bankGBPNoCustomer.Amount = "50.00"
	bankGBPNoCustomer.TransactionDate = day
	bankGBPNoCustomer.StatementBank = "XBANKXX0"
	bankGBPNoCustomer.OtherSideName = "UNKNOWN PAYER"
	bankGBPNoCustomer.PaymentDesc = "MISC PAYMENT"
	bankGBPNoCustomer.DebitCredit = "C"

	return []*models.Context{bankEUR, bankUSDStale, bankGBPNoCustomer}, nil
}

type demoPersister struct {
	log *zap.Logger
}

func (p demoPersister) Persist(_ context.Context, contexts []*models.Context, result pipeline.BatchResult) error {
	for _, c := range contexts {
		p.log.Info("enriched transaction",
			zap.String("transaction_id", c.TransactionID),
			zap.String("status", c.ProcessingStatus),
			zap.Any("enrichments", c.Enrichments),
		)
	}
	return nil
}
