package provider

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/quantgate-lab/quantgate/internal/types"
	"github.com/quantgate-lab/quantgate/pkg/errors"
)

// ReplayProvider serves candles from per-symbol CSV files in a
// directory, one file per symbol named <SYMBOL>.csv with columns
// time, open, high, low, close, volume. Files are read through DuckDB
// so timestamps and ordering are handled by SQL instead of hand-rolled
// parsing. The stream is finite: it ends when the files are exhausted.
type ReplayProvider struct {
	dir string
}

var _ Provider = (*ReplayProvider)(nil)

// NewReplayProvider creates a provider reading from the given
// directory.
func NewReplayProvider(dir string) *ReplayProvider {
	return &ReplayProvider{dir: dir}
}

// Name implements Provider.
func (p *ReplayProvider) Name() string {
	return string(ProviderReplay)
}

// History implements Provider. The interval argument is ignored: a
// replay file carries bars at whatever interval it was recorded at.
func (p *ReplayProvider) History(ctx context.Context, symbol string, from, to time.Time, _ types.Interval) ([]types.Candle, error) {
	db, err := p.openDB()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	path, err := p.symbolPath(symbol)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT time, open, high, low, close, volume
		FROM read_csv_auto('%s')
		WHERE time >= ? AND time <= ?
		ORDER BY time ASC
	`, escapeSQLString(path))

	rows, err := db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "failed to read replay file for %s", symbol)
	}
	defer rows.Close()

	var out []types.Candle

	for rows.Next() {
		candle := types.Candle{Symbol: symbol}
		if err := rows.Scan(&candle.Time, &candle.Open, &candle.High, &candle.Low, &candle.Close, &candle.Volume); err != nil {
			return nil, errors.Wrap(errors.ErrCodeMarketDataParseFailed, "failed to scan replay row", err)
		}

		out = append(out, candle)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "error iterating replay rows", err)
	}

	return out, nil
}

// Stream implements Provider. All symbols are merged into a single
// timestamp-ordered sequence with one SQL query, so the decision core
// sees bars in the same order it would live.
func (p *ReplayProvider) Stream(ctx context.Context, symbols []string, _ types.Interval) iter.Seq2[types.Candle, error] {
	return func(yield func(types.Candle, error) bool) {
		db, err := p.openDB()
		if err != nil {
			yield(types.Candle{}, err)

			return
		}
		defer db.Close()

		var selects []string

		for _, symbol := range symbols {
			path, err := p.symbolPath(symbol)
			if err != nil {
				yield(types.Candle{}, err)

				return
			}

			selects = append(selects, fmt.Sprintf(
				`SELECT '%s' AS symbol, time, open, high, low, close, volume FROM read_csv_auto('%s')`,
				escapeSQLString(symbol), escapeSQLString(path),
			))
		}

		if len(selects) == 0 {
			yield(types.Candle{}, errors.New(errors.ErrCodeNoSymbols, "replay stream requires at least one symbol"))

			return
		}

		query := strings.Join(selects, " UNION ALL ") + " ORDER BY time ASC, symbol ASC"

		rows, err := db.QueryContext(ctx, query)
		if err != nil {
			yield(types.Candle{}, errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "failed to open replay stream", err))

			return
		}
		defer rows.Close()

		for rows.Next() {
			var candle types.Candle
			if err := rows.Scan(&candle.Symbol, &candle.Time, &candle.Open, &candle.High, &candle.Low, &candle.Close, &candle.Volume); err != nil {
				yield(types.Candle{}, errors.Wrap(errors.ErrCodeMarketDataParseFailed, "failed to scan replay row", err))

				return
			}

			if !yield(candle, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(types.Candle{}, errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "error iterating replay rows", err))
		}
	}
}

func (p *ReplayProvider) openDB() (*sql.DB, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "failed to open replay database", err)
	}

	return db, nil
}

func (p *ReplayProvider) symbolPath(symbol string) (string, error) {
	path := filepath.Join(p.dir, symbol+".csv")
	if _, err := os.Stat(path); err != nil {
		return "", errors.Wrapf(errors.ErrCodeNoMarketData, err, "no replay file for %s", symbol)
	}

	return path, nil
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
