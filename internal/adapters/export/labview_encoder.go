package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/Luciosmic/fieldbench/internal/ports"
)

// Column fillers the legacy LabVIEW reader expects in each axis block. They
// stand in for carrier amplitude and DC offset lines the bench no longer
// measures but the reader still parses positionally.
const (
	lvCarrierFiller = "-3.41E-01"
	lvOffsetX       = "-2.06E-04"
	lvOffsetY       = "-4.98E-04"
	lvOffsetZ       = "2.48E-04"
)

// LabViewEncoder emits the columnar legacy layout: every drained batch
// becomes a block of fifteen lines, five per axis (timestamps, two filler
// lines, quadrature, in-phase), with one column per sample. Downstream
// LabVIEW tooling consumes this layout as-is, so there is no header or
// trailer.
type LabViewEncoder struct{}

func NewLabViewEncoder() *LabViewEncoder { return &LabViewEncoder{} }

func (LabViewEncoder) Name() string { return "labview" }

func (LabViewEncoder) WriteHeader(io.Writer, ports.ExportConfig, time.Time) error { return nil }

func (LabViewEncoder) WriteTrailer(io.Writer, int, time.Time) error { return nil }

func (LabViewEncoder) WriteRows(w io.Writer, rows []ports.ExportRow) error {
	if len(rows) == 0 {
		return nil
	}
	n := len(rows)

	times := make([]string, n)
	var channels [6][]string
	for i := range channels {
		channels[i] = make([]string, n)
	}
	for j, r := range rows {
		times[j] = strconv.FormatFloat(r.RelTime, 'f', 6, 64)
		ch := r.Point.Measurement.Channels()
		for i, v := range ch {
			channels[i][j] = formatVolt(v)
		}
	}

	filler := func(v string) []string {
		line := make([]string, n)
		for j := range line {
			line[j] = v
		}
		return line
	}

	// Channel order within Channels() is in-phase then quadrature per axis;
	// the legacy block wants quadrature before in-phase.
	block := [][]string{
		times, filler(lvCarrierFiller), filler(lvOffsetX), channels[1], channels[0],
		times, filler(lvCarrierFiller), filler(lvOffsetY), channels[3], channels[2],
		times, filler(lvCarrierFiller), filler(lvOffsetZ), channels[5], channels[4],
	}

	cw := csv.NewWriter(w)
	if err := cw.WriteAll(block); err != nil {
		return err
	}
	return cw.Error()
}

var _ ports.RowEncoder = LabViewEncoder{}
