// Command entry-inspect resolves one catalog entry through the commerce
// engine and logs every derived attribute: default price, current market
// prices, stock placements, outlines, and the updated browse history.
// Useful for checking a live catalog's data wiring end to end.
package main

import (
	"context"
	"os"

	"github.com/go-faster/errors"
	sdkapp "github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	appkg "github.com/karolberezicki/Foundation/internal/app"
	"github.com/karolberezicki/Foundation/internal/commerce"
)

func main() {
	sdkapp.Run(func(ctx context.Context, lg *zap.Logger, m *sdkapp.Telemetry) error {
		code := entryCodeArg()
		if code == "" {
			return errors.New("usage: entry-inspect <entry-code>")
		}

		cfg, err := appkg.LoadConfig()
		if err != nil {
			return err
		}

		a, err := appkg.New(ctx, lg, m, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				lg.Warn("Close", zap.Error(err))
			}
		}()

		return inspect(ctx, lg, a.Engine, code)
	})
}

// entryCodeArg returns the first non-flag argument. Flags belong to the
// config loader and are skipped here.
func entryCodeArg() string {
	for _, arg := range os.Args[1:] {
		if len(arg) > 0 && arg[0] != '-' {
			return arg
		}
	}
	return ""
}

func inspect(ctx context.Context, lg *zap.Logger, engine *commerce.Engine, code string) error {
	entry, err := engine.EntryByCode(ctx, code)
	if err != nil {
		return errors.Wrapf(err, "resolve entry %q", code)
	}
	lg.Info("Entry",
		zap.String("code", entry.Code),
		zap.String("name", entry.Name),
		zap.String("kind", string(entry.Kind)),
		zap.String("language", entry.Language),
	)

	price, err := engine.DefaultPrice(ctx, entry)
	if err != nil {
		return errors.Wrap(err, "default price")
	}
	lg.Info("Default price", zap.String("amount", price.String()))

	prices, err := engine.CurrentPrices(ctx, entry)
	if err != nil {
		return errors.Wrap(err, "current prices")
	}
	for _, p := range prices {
		lg.Info("Current price",
			zap.String("code", p.Code),
			zap.String("amount", p.UnitPrice.String()),
			zap.String("currency", string(p.Currency)),
			zap.String("price_code", p.PriceCode),
		)
	}

	records, err := engine.Inventories(ctx, entry)
	if err != nil {
		return errors.Wrap(err, "inventories")
	}
	for _, rec := range records {
		lg.Info("Stock",
			zap.String("code", rec.Code),
			zap.String("warehouse", rec.WarehouseCode),
			zap.String("quantity", rec.Quantity.String()),
		)
	}

	outlines, err := engine.Outline(ctx, entry)
	if err != nil {
		return errors.Wrap(err, "outline")
	}
	lg.Info("Outlines", zap.Strings("outlines", outlines))

	if err := engine.AddBrowseHistory(ctx, entry); err != nil {
		return errors.Wrap(err, "record browse history")
	}
	history, err := engine.BrowseHistory(ctx)
	if err != nil {
		return errors.Wrap(err, "read browse history")
	}
	codes := make([]string, len(history))
	for i, e := range history {
		codes[i] = e.Code
	}
	lg.Info("Browse history", zap.Strings("codes", codes))

	return nil
}
