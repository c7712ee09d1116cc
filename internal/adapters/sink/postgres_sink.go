package sink

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/Luciosmic/fieldbench/internal/ports"
)

const columnsPerRow = 12

// PostgresSink archives scan points to a relational table. The unique key
// (scan_id, point_index) makes replayed WAL entries idempotent.
type PostgresSink struct {
	db        *sql.DB
	tableName string
}

func NewPostgresSink(db *sql.DB, table string) *PostgresSink {
	return &PostgresSink{db: db, tableName: table}
}

func (p *PostgresSink) Name() string { return "postgres" }

func (p *PostgresSink) WriteBatch(entries []*ports.ArchiveEntry) error {
	if len(entries) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(p.tableName)
	b.WriteString(" (scan_id, point_index, x_mm, y_mm," +
		" v_x_in_phase, v_x_quadrature, v_y_in_phase, v_y_quadrature," +
		" v_z_in_phase, v_z_quadrature, uncertainty_volts, captured_at) VALUES ")

	args := make([]any, 0, len(entries)*columnsPerRow)
	for i, e := range entries {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(")
		for c := 0; c < columnsPerRow; c++ {
			if c > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "$%d", len(args)+c+1)
		}
		b.WriteString(")")

		m := e.Result.Measurement
		args = append(args,
			e.ScanID,
			e.Result.PointIndex,
			e.Result.Position.X,
			e.Result.Position.Y,
			m.XInPhase,
			m.XQuadrature,
			m.YInPhase,
			m.YQuadrature,
			m.ZInPhase,
			m.ZQuadrature,
			m.Uncertainty,
			m.CapturedAt,
		)
	}

	b.WriteString(" ON CONFLICT (scan_id, point_index) DO NOTHING")

	_, err := p.db.Exec(b.String(), args...)
	return err
}

var _ ports.ResultSink = (*PostgresSink)(nil)
