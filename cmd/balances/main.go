/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"

	"bizledger-go/internal/common"
	"bizledger-go/internal/config"
	"bizledger-go/internal/database"
	"bizledger-go/internal/models"

	"go.uber.org/zap"
)

type balanceStats struct {
	totalMerchants int
	totalAccounts  int
}

func formatTransactionId(txId string) string {
	if txId == "" {
		return "none"
	}
	if len(txId) > 8 {
		return txId[:8] + "..."
	}
	return txId
}

func printAccount(account models.Account, isLast bool) {
	symbol := common.BoxPrefix(isLast)
	lastTx := formatTransactionId(account.LastTransactionId)

	name := account.Name
	if account.IsDefault {
		name += " *"
	}
	fmt.Printf("%s %-25s: %15s %s (v%d, last_tx: %s, updated: %s)\n",
		symbol,
		name,
		account.Balance.String(),
		account.Currency,
		account.Version,
		lastTx,
		account.UpdatedAt.Format("2006-01-02 15:04:05"))
}

func printMerchantHeader(user common.UserInfo, accountCount int) {
	fmt.Printf("\n┌─ Merchant: %s (%s)\n", user.Name, user.Email)
	fmt.Printf("│  ID: %s\n", user.Id)
	fmt.Printf("│  Accounts: %d\n", accountCount)
	common.PrintBoxSeparator(78)
}

func processMerchant(ctx context.Context, user common.UserInfo, dbService *database.Service) (int, error) {
	accounts, err := dbService.GetAccounts(ctx, user.Id)
	if err != nil {
		return 0, fmt.Errorf("failed to get accounts: %w", err)
	}
	if len(accounts) == 0 {
		return 0, nil
	}

	printMerchantHeader(user, len(accounts))
	for i, account := range accounts {
		printAccount(account, i == len(accounts)-1)
	}

	total, err := dbService.GetTotalBalance(ctx, user.Id)
	if err != nil {
		return 0, fmt.Errorf("failed to get total balance: %w", err)
	}
	fmt.Printf("   Total: %s\n", total.String())

	return len(accounts), nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "Filter by specific merchant email (optional)")
	flag.Parse()

	logger.Info("Starting balance query")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	users, err := common.InitializeUsers(ctx, dbService, *emailFlag, logger)
	if err != nil {
		logger.Fatal("Failed to initialize merchants", zap.Error(err))
	}

	common.PrintHeader("MERCHANT BALANCE REPORT", common.DefaultWidth)

	stats := balanceStats{}
	for _, user := range users {
		stats.totalMerchants++

		accountCount, err := processMerchant(ctx, user, dbService)
		if err != nil {
			logger.Error("Failed to process merchant",
				zap.String("user_id", user.Id),
				zap.String("name", user.Name),
				zap.Error(err))
			continue
		}
		stats.totalAccounts += accountCount
	}

	summary := fmt.Sprintf("SUMMARY: %d accounts across %d merchants",
		stats.totalAccounts, stats.totalMerchants)
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Balance query completed",
		zap.Int("merchants_queried", stats.totalMerchants),
		zap.Int("total_accounts", stats.totalAccounts))
}
