package repository

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"FactorPipe/internal/domain/models"
	"FactorPipe/pkg/util"
)

var csvColumns = []string{"session", "symbol", "open", "high", "low", "close", "volume"}

// LoadBarsCSV reads bars from CSV with header
// session,symbol,open,high,low,close,volume. Column order may vary; extra
// columns are ignored. Empty price fields are read as NaN.
func LoadBarsCSV(r io.Reader) ([]models.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	pos := make([]int, len(csvColumns))
	for i, c := range csvColumns {
		p, ok := idx[c]
		if !ok {
			return nil, fmt.Errorf("csv header missing column %q", c)
		}
		pos[i] = p
	}

	var bars []models.Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		b, err := parseBar(rec, pos)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// LoadBarsCSVFile opens path and loads it with LoadBarsCSV.
func LoadBarsCSVFile(path string) ([]models.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars csv: %w", err)
	}
	defer f.Close()
	return LoadBarsCSV(f)
}

func parseBar(rec []string, pos []int) (models.Bar, error) {
	session, err := util.ParseSession(rec[pos[0]])
	if err != nil {
		return models.Bar{}, err
	}
	b := models.Bar{Session: session, Symbol: strings.ToUpper(strings.TrimSpace(rec[pos[1]]))}
	fields := []*float64{&b.Open, &b.High, &b.Low, &b.Close, &b.Volume}
	for i, dst := range fields {
		v, err := parseFloatOrNaN(rec[pos[i+2]])
		if err != nil {
			return models.Bar{}, fmt.Errorf("%s: %w", csvColumns[i+2], err)
		}
		*dst = v
	}
	return b, b.Validate()
}

func parseFloatOrNaN(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
