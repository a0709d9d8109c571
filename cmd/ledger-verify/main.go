package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/matcon/erp_backend/config"
	"github.com/matcon/erp_backend/costing"
	"github.com/matcon/erp_backend/models"
	"github.com/matcon/erp_backend/utils"
	"github.com/matcon/erp_backend/workflow"
)

// ledger-verify replays every item's lot ledger against its stored snapshot.
// Exit status is 2 when drift is found and left unrepaired.
func main() {
	itemID := flag.Int("item-id", 0, "Optional: verify a single item")
	repair := flag.Bool("repair", false, "Overwrite drifted snapshots with the ledger replay")
	continueOnError := flag.Bool("continue-on-error", false, "Skip items whose repair fails and continue with the others")
	flag.Parse()

	settings := config.GetSettings()
	config.SetLogLevel(settings.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, settings, *itemID, *repair, *continueOnError)
	stop()
	os.Exit(code)
}

// repairDeps connects redis for a repair run. Rebuilt items then take the
// API's item locks and evict the API's cached copies. Verify-only runs never
// write and stay off redis.
func repairDeps(ctx context.Context, settings *config.Settings, repair bool) (workflow.ItemLocker, []workflow.Option, func(), error) {
	if !repair {
		return workflow.NewLocalItemLocker(), nil, func() {}, nil
	}
	if err := config.ConnectRedisWithRetry(ctx, settings.Redis); err != nil {
		return nil, nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	var locker workflow.ItemLocker = workflow.NewRedisItemLocker(config.GetRedisLock(), settings.Inventory.LockTTL)
	if settings.Inventory.LockBackend == "local" {
		locker = workflow.NewLocalItemLocker()
	}
	cache := utils.NewRedisCache[models.InventoryItem](config.GetRedisDB(), settings.Redis.CacheLifespan)
	return locker, []workflow.Option{workflow.WithCache(cache)}, config.CloseRedis, nil
}

func run(ctx context.Context, settings *config.Settings, itemID int, repair, continueOnError bool) int {
	logger := config.GetLogger()

	if err := config.ConnectDatabaseWithRetry(ctx, settings.Database); err != nil {
		fmt.Fprintf(os.Stderr, "connect database: %v\n", err)
		return 1
	}
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		return 1
	}

	locker, opts, release, err := repairDeps(ctx, settings, repair)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer release()

	service := workflow.NewInventoryService(models.NewGormStore(db), locker, append(opts, workflow.WithLogger(logger))...)

	var drifted []*workflow.VerifyResult
	if itemID > 0 {
		result, err := service.VerifyItem(ctx, itemID)
		if err != nil && !costing.IsInvariantViolation(err) {
			fmt.Fprintf(os.Stderr, "verify item %d: %v\n", itemID, err)
			return 1
		}
		printResult(result)
		if !result.InSync {
			drifted = append(drifted, result)
		}
	} else {
		report, err := service.VerifyAll(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "verify ledger: %v\n", err)
			return 1
		}
		for _, r := range report.Drifted {
			printResult(r)
		}
		fmt.Printf("checked=%d drifted=%d\n", report.Checked, len(report.Drifted))
		drifted = report.Drifted
	}

	if len(drifted) == 0 {
		fmt.Println("ledger verify complete: in sync")
		return 0
	}
	if !repair {
		fmt.Println("ledger verify complete: drift found (rerun with --repair to rebuild)")
		return 2
	}
	return rebuild(ctx, service, drifted, continueOnError)
}

func rebuild(ctx context.Context, service *workflow.InventoryService, drifted []*workflow.VerifyResult, continueOnError bool) int {
	failed := 0
	for _, r := range drifted {
		item, changed, err := service.RebuildItem(ctx, r.ItemId)
		if err != nil {
			if continueOnError {
				fmt.Fprintf(os.Stderr, "rebuild %s failed (skipping): %v\n", r.Code, err)
				failed++
				continue
			}
			fmt.Fprintf(os.Stderr, "rebuild %s failed: %v\n", r.Code, err)
			return 1
		}
		fmt.Printf("rebuilt %s changed=%t stock=%d avg=%s\n", item.Code, changed, item.CurrentStock, item.AverageUnitCost.StringFixed(4))
	}
	if failed > 0 {
		fmt.Printf("ledger repair complete: %d item(s) still drifted\n", failed)
		return 2
	}
	fmt.Println("ledger repair complete")
	return 0
}

func printResult(r *workflow.VerifyResult) {
	status := "ok"
	if !r.InSync {
		status = "DRIFT"
	}
	fmt.Printf("%-5s %s stock=%d/%d avg=%s/%s lots=%d movements=%d\n",
		status, r.Code,
		r.StoredStock, r.ReplayedStock,
		r.StoredAverage.StringFixed(4), r.ReplayedAverage.StringFixed(4),
		r.LotCount, r.MovementCount,
	)
}
