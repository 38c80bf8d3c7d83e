// Command price-ingest bulk-loads gzip-compressed JSON-lines price feeds
// into PostgreSQL. Feed lines referencing codes that are not in the
// catalog are the common case in shared vendor feeds, so codes are
// pre-screened against a bloom filter of known catalog codes before any
// database round-trip; bloom false positives are rejected by the insert's
// existence check.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/karolberezicki/Foundation/internal/storage/postgres"
)

const (
	bloomFPR      = 0.001
	progressEvery = 100_000
)

// priceRow is one parsed feed line.
type priceRow struct {
	code       string
	market     string
	currency   string
	priceCode  string
	amount     decimal.Decimal
	validFrom  time.Time
	validUntil *time.Time
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing pricefeed*.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("price ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("price ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "pricefeed*.gz"))
	if err != nil {
		return errors.Wrap(err, "glob feed files")
	}
	if len(files) == 0 {
		return errors.Errorf("no pricefeed*.gz files in %s", dataDir)
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	filter, err := buildCodeFilter(ctx, pool)
	if err != nil {
		return errors.Wrap(err, "build catalog code filter")
	}

	// Scan all feed files concurrently, keeping only rows whose code
	// passes the bloom pre-screen.
	slog.Info("scanning feed files", slog.Int("files", len(files)))

	results := make([][]priceRow, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(scanFeedFile(gctx, i, f, filter, results))
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var total int
	for _, rows := range results {
		total += len(rows)
	}
	slog.Info("candidate prices found", slog.Int("count", total))

	if total == 0 {
		slog.Info("no prices to insert")
		return nil
	}

	written := 0
	for _, rows := range results {
		n, err := writePrices(ctx, pool, rows)
		if err != nil {
			return errors.Wrap(err, "write prices")
		}
		written += n
	}

	slog.Info("prices written", slog.Int("written", written), slog.Int("skipped", total-written))
	return nil
}

// buildCodeFilter streams all catalog entry codes into a bloom filter.
func buildCodeFilter(ctx context.Context, pool *pgxpool.Pool) (*bloom.BloomFilter, error) {
	var count uint
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM catalog_entries`).Scan(&count); err != nil {
		return nil, errors.Wrap(err, "count catalog entries")
	}
	if count == 0 {
		return nil, errors.New("catalog is empty, seed it before ingesting prices")
	}

	filter := bloom.NewWithEstimates(count, bloomFPR)

	rows, err := pool.Query(ctx, `SELECT code FROM catalog_entries`)
	if err != nil {
		return nil, errors.Wrap(err, "stream catalog codes")
	}
	defer rows.Close()

	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, errors.Wrap(err, "scan catalog code")
		}
		filter.AddString(code)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "stream catalog codes")
	}

	slog.Info("catalog code filter built", slog.Uint64("codes", uint64(count)))
	return filter, nil
}

func scanFeedFile(
	ctx context.Context,
	idx int,
	path string,
	filter *bloom.BloomFilter,
	results [][]priceRow,
) func() error {
	return func() error {
		var (
			rows  []priceRow
			count uint64
		)

		if err := streamGzFile(ctx, path, func(line []byte) error {
			count++
			if count%progressEvery == 0 {
				slog.Info("scan progress",
					slog.Int("file", idx+1),
					slog.Uint64("lines", count),
				)
			}

			row, err := parsePriceLine(line)
			if err != nil {
				return errors.Wrapf(err, "line %d", count)
			}
			if !filter.TestString(row.code) {
				return nil
			}
			rows = append(rows, row)
			return nil
		}); err != nil {
			return errors.Wrapf(err, "scan file %s", path)
		}

		slog.Info("scan complete",
			slog.Int("file", idx+1),
			slog.Uint64("lines", count),
			slog.Int("candidates", len(rows)),
		)

		results[idx] = rows
		return nil
	}
}

// parsePriceLine decodes a single JSON feed line.
func parsePriceLine(line []byte) (priceRow, error) {
	var (
		row       priceRow
		amountRaw string
		fromRaw   string
		untilRaw  string
	)

	d := jx.DecodeBytes(line)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			row.code, err = d.Str()
		case "market":
			row.market, err = d.Str()
		case "currency":
			row.currency, err = d.Str()
		case "priceCode":
			row.priceCode, err = d.Str()
		case "amount":
			amountRaw, err = d.Str()
		case "validFrom":
			fromRaw, err = d.Str()
		case "validUntil":
			if d.Next() == jx.Null {
				return d.Null()
			}
			untilRaw, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return priceRow{}, errors.Wrap(err, "decode object")
	}

	if row.code == "" || row.currency == "" {
		return priceRow{}, errors.New("missing code or currency")
	}

	amount, err := decimal.NewFromString(amountRaw)
	if err != nil {
		return priceRow{}, errors.Wrap(err, "parse amount")
	}
	if amount.IsNegative() {
		return priceRow{}, errors.New("negative amount")
	}
	row.amount = amount

	row.validFrom, err = time.Parse(time.RFC3339, fromRaw)
	if err != nil {
		return priceRow{}, errors.Wrap(err, "parse validFrom")
	}
	if untilRaw != "" {
		until, err := time.Parse(time.RFC3339, untilRaw)
		if err != nil {
			return priceRow{}, errors.Wrap(err, "parse validUntil")
		}
		row.validUntil = &until
	}

	return row, nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(scanner.Bytes()) == 0 {
			continue
		}
		if err := fn(scanner.Bytes()); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// writePrices upserts rows, dropping bloom false positives via the insert's
// existence check. Returns how many rows were actually written.
func writePrices(ctx context.Context, pool *pgxpool.Pool, rows []priceRow) (int, error) {
	written := 0
	for _, row := range rows {
		tag, err := pool.Exec(ctx,
			`INSERT INTO prices (entry_code, market_id, currency, price_code, amount, valid_from, valid_until)
			 SELECT $1, $2, $3, $4, $5, $6, $7
			 WHERE EXISTS (SELECT 1 FROM catalog_entries WHERE code = $1)
			 ON CONFLICT (entry_code, market_id, currency, price_code, valid_from) DO UPDATE
			 SET amount = EXCLUDED.amount, valid_until = EXCLUDED.valid_until`,
			row.code, row.market, row.currency, row.priceCode, row.amount, row.validFrom, row.validUntil,
		)
		if err != nil {
			return written, errors.Wrapf(err, "upsert price for %s", row.code)
		}
		written += int(tag.RowsAffected())

		if written > 0 && written%progressEvery == 0 {
			slog.Info("write progress", slog.Int("written", written))
		}
	}
	return written, nil
}
