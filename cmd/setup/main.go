package main

import (
	"context"
	"flag"
	"fmt"

	"bizledger-go/internal/common"
	"bizledger-go/internal/config"
	"bizledger-go/internal/tax"

	"go.uber.org/zap"
)

func printTaxRates(ratesFile string) {
	rates, err := tax.LoadCategoryRates(ratesFile)
	if err != nil {
		zap.L().Warn("No tax rate table loaded", zap.String("file", ratesFile), zap.Error(err))
		return
	}

	fmt.Printf("Configured GST rates (%d categories):\n", len(rates))
	for _, rate := range rates {
		fmt.Printf("  %-15s %s%%\n", rate.Category, rate.Rate.String())
	}
}

func runInit(ctx context.Context, services *common.Services, ratesFile string) {
	zap.L().Info("Initializing ledger database")

	users, err := services.DbService.GetUsers(ctx)
	if err != nil {
		zap.L().Fatal("Failed to read merchants from database", zap.Error(err))
	}

	common.PrintHeader("LEDGER SETUP", common.DefaultWidth)
	fmt.Printf("Merchants registered: %d\n", len(users))
	printTaxRates(ratesFile)
	common.PrintSeparator("=", common.DefaultWidth)

	if len(users) == 0 {
		fmt.Println("No merchants yet. Add one with:")
		fmt.Println("  go run cmd/addmerchant/main.go --name \"Shop Name\" --email shop@example.com")
	}

	zap.L().Info("Initialization complete")
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	// Opening the service creates the schema when it does not exist yet.
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	runInit(ctx, services, cfg.Ledger.TaxRatesFile)
}
