package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Cheertaboi/storefront-discount-service/internal/catalogfile"
	"github.com/Cheertaboi/storefront-discount-service/internal/discount"
	"github.com/Cheertaboi/storefront-discount-service/internal/models"
	"github.com/Cheertaboi/storefront-discount-service/internal/observability"
	"github.com/Cheertaboi/storefront-discount-service/internal/service"
)

type quoteOutput struct {
	models.ResolutionResult
	Subtotal     string `json:"subtotal"`
	ShippingCost string `json:"shippingCost"`
	Total        string `json:"total"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "discount-quote:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("discount-quote", flag.ContinueOnError)
	var (
		catalogPath string
		cartPath    string
		codes       string
		at          string
		strategy    string
		logLevel    string
	)
	fs.StringVar(&catalogPath, "catalog", "discounts.yaml", "YAML discount catalog")
	fs.StringVar(&cartPath, "cart", "cart.yaml", "YAML cart snapshot")
	fs.StringVar(&codes, "codes", "", "comma separated discount codes to apply")
	fs.StringVar(&at, "at", "", "evaluate at this RFC3339 instant instead of now")
	fs.StringVar(&strategy, "strategy", string(discount.StrategyGreedy), "stacking strategy: greedy or exhaustive")
	fs.StringVar(&logLevel, "log-level", "warn", "log level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := observability.NewLogger(logLevel, "stderr")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	clock := time.Now
	if strings.TrimSpace(at) != "" {
		instant, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return fmt.Errorf("invalid -at %q: use RFC3339", at)
		}
		clock = func() time.Time { return instant }
	}
	strat, err := discount.ParseStrategy(strategy)
	if err != nil {
		return err
	}

	catalog, err := catalogfile.LoadCatalog(catalogPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	cart, err := catalogfile.LoadCart(cartPath)
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}
	logger.Debug("catalog loaded", zap.Int("discounts", catalog.Len()), zap.Int("items", len(cart.Items)))

	svc, err := service.NewDiscountService(service.Deps{
		Discounts: catalog,
		Resolver:  discount.NewResolver(discount.WithClock(clock), discount.WithStrategy(strat)),
		Clock:     clock,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	requested := splitCodes(codes)
	if len(requested) == 0 {
		return errors.New("no codes given; use -codes A,B")
	}
	res, err := svc.Quote(context.Background(), requested, cart)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(quoteOutput{
		ResolutionResult: res,
		Subtotal:         cart.Subtotal.StringFixed(2),
		ShippingCost:     cart.ShippingCost.StringFixed(2),
		Total:            res.Total(cart).StringFixed(2),
	})
}

func splitCodes(raw string) []string {
	var out []string
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
