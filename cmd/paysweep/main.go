package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flaboy/aira-payments/pkg/commence"
	"github.com/flaboy/aira-payments/pkg/config"
	"github.com/flaboy/aira-payments/pkg/database"
	"github.com/flaboy/aira-payments/pkg/reconcile"
	"github.com/flaboy/aira-payments/pkg/types"
)

// paysweep 定时对账入口，由 cron 按银行分别调度：
//
//	paysweep -config payments.json -bank ufc -kind card -window 24h
//	paysweep -config payments.json -mode tbc-changes

var bankNames = map[string]types.BankType{
	"ufc":   types.BankUFC,
	"bog":   types.BankBOG,
	"tbc":   types.BankTBC,
	"credo": types.BankCredo,
	"space": types.BankSpace,
	"gc":    types.BankGC,
}

var kindNames = map[string]types.PaymentKind{
	"card":      types.PaymentKindCard,
	"loan":      types.PaymentKindLoan,
	"apple_pay": types.PaymentKindApplePay,
}

func main() {
	cfgPath := flag.String("config", "payments.json", "path to the payments config file")
	mode := flag.String("mode", "pending", "pending | tbc-changes")
	bank := flag.String("bank", "", "bank to sweep: ufc | bog | tbc | credo | space | gc")
	kind := flag.String("kind", "card", "payment kind: card | loan | apple_pay")
	window := flag.Duration("window", 24*time.Hour, "only sweep transactions created within this window")
	flag.Parse()

	if err := run(*cfgPath, *mode, *bank, *kind, *window); err != nil {
		fmt.Fprintln(os.Stderr, "paysweep:", err)
		os.Exit(1)
	}
}

func run(cfgPath, mode, bank, kind string, window time.Duration) error {
	raw, err := os.ReadFile(cfgPath)
	if err != nil {
		return err
	}
	cfg := &config.PaymentsConfig{}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("invalid config file: %w", err)
	}
	if err := commence.Start(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := reconcile.NewSweeper(database.Database())
	switch mode {
	case "pending":
		bankType, ok := bankNames[bank]
		if !ok {
			return fmt.Errorf("unknown bank %q", bank)
		}
		paymentKind, ok := kindNames[kind]
		if !ok {
			return fmt.Errorf("unknown payment kind %q", kind)
		}
		return sweeper.SweepPending(ctx, bankType, paymentKind, window)
	case "tbc-changes":
		return sweeper.SweepStatusChanges(ctx)
	}
	return fmt.Errorf("unknown mode %q", mode)
}
