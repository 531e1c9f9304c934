package repository

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"RangePulse/internal/domain/models"
)

// csvCandleColumns is the minimum column count of a Binance kline export:
// open time, open, high, low, close, volume. Exports carry more columns
// (close time, quote volume, trade count and so on); those are ignored.
const csvCandleColumns = 6

// LoadCandlesCSV reads candles from a Binance-style kline CSV file. A
// header row is detected and skipped automatically.
func LoadCandlesCSV(path string) ([]models.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open candles csv: %w", err)
	}
	defer f.Close()

	candles, err := ReadCandlesCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return candles, nil
}

// ReadCandlesCSV parses candles from r.
func ReadCandlesCSV(r io.Reader) ([]models.Candle, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var candles []models.Candle
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++

		if len(record) < csvCandleColumns {
			return nil, fmt.Errorf("line %d: %d columns, want at least %d", line, len(record), csvCandleColumns)
		}

		ts, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			// A non-numeric first field on the first row is a header.
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: timestamp: %w", line, err)
		}

		var fields [5]float64
		for i := range fields {
			v, err := strconv.ParseFloat(record[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: column %d: %w", line, i+2, err)
			}
			fields[i] = v
		}

		candles = append(candles, models.Candle{
			Timestamp: ts,
			Open:      fields[0],
			High:      fields[1],
			Low:       fields[2],
			Close:     fields[3],
			Volume:    fields[4],
		})
	}
	return candles, nil
}
