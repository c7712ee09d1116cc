package export

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/Luciosmic/fieldbench/internal/ports"
)

// CSVEncoder writes the long-form export: commented metadata header, one row
// per point with position, the six channel voltages, their spreads, and the
// uncertainty estimate, then a commented trailer with the final row count.
type CSVEncoder struct{}

func NewCSVEncoder() *CSVEncoder { return &CSVEncoder{} }

func (CSVEncoder) Name() string { return "csv" }

func (CSVEncoder) WriteHeader(w io.Writer, cfg ports.ExportConfig, startedAt time.Time) error {
	cw := csv.NewWriter(w)

	records := [][]string{
		{"# fieldbench scan export"},
		{"# started: " + startedAt.Format(time.RFC3339)},
	}
	keys := make([]string, 0, len(cfg.Metadata))
	for k := range cfg.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		records = append(records, []string{"# " + k + ": " + cfg.Metadata[k]})
	}
	records = append(records, []string{
		"index", "time_s", "x_mm", "y_mm",
		"v_x_in_phase", "v_x_quadrature",
		"v_y_in_phase", "v_y_quadrature",
		"v_z_in_phase", "v_z_quadrature",
		"std_x_in_phase", "std_x_quadrature",
		"std_y_in_phase", "std_y_quadrature",
		"std_z_in_phase", "std_z_quadrature",
		"uncertainty_volts",
	})

	if err := cw.WriteAll(records); err != nil {
		return err
	}
	return cw.Error()
}

func (CSVEncoder) WriteRows(w io.Writer, rows []ports.ExportRow) error {
	cw := csv.NewWriter(w)
	record := make([]string, 17)
	for _, r := range rows {
		record[0] = strconv.Itoa(r.Index)
		record[1] = strconv.FormatFloat(r.RelTime, 'f', 6, 64)
		record[2] = formatVolt(r.Point.Position.X)
		record[3] = formatVolt(r.Point.Position.Y)
		ch := r.Point.Measurement.Channels()
		for i, v := range ch {
			record[4+i] = formatVolt(v)
		}
		sp := r.Point.Measurement.Spreads()
		for i, v := range sp {
			record[10+i] = formatVolt(v)
		}
		record[16] = formatVolt(r.Point.Measurement.Uncertainty)
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (CSVEncoder) WriteTrailer(w io.Writer, rowsWritten int, endedAt time.Time) error {
	cw := csv.NewWriter(w)
	records := [][]string{
		{"# rows_written: " + strconv.Itoa(rowsWritten)},
		{"# finished: " + endedAt.Format(time.RFC3339)},
	}
	if err := cw.WriteAll(records); err != nil {
		return err
	}
	return cw.Error()
}

func formatVolt(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

var _ ports.RowEncoder = CSVEncoder{}
