package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/0x-mperego/unimec-display/internal/adapter/metrics"
	"github.com/jackc/pgx/v5"
)

// MetricsTracer is a pgx.QueryTracer that times every statement and labels
// it by verb and target table, e.g. "update playlist_items".
type MetricsTracer struct {
	metrics *metrics.DBMetrics
}

var _ pgx.QueryTracer = (*MetricsTracer)(nil)

type traceKey struct{}

type traceStart struct {
	at    time.Time
	label string
}

func (t *MetricsTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceKey{}, traceStart{at: time.Now(), label: queryLabel(data.SQL)})
}

func (t *MetricsTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(traceKey{}).(traceStart)
	if !ok {
		return
	}
	t.metrics.ObserveQuery(start.label, time.Since(start.at).Seconds(), data.Err != nil)
}

// tableKeywords precede the table a statement works on.
var tableKeywords = map[string]bool{"from": true, "into": true, "update": true}

// queryLabel keeps label cardinality bounded: only the leading verb and the
// first table name survive. Statements without a table, such as
// pg_advisory_lock calls or LISTEN, are labelled by verb alone.
func queryLabel(sql string) string {
	fields := strings.Fields(strings.ToLower(sql))
	if len(fields) == 0 {
		return "unknown"
	}
	verb := fields[0]
	if len(verb) > 16 {
		verb = verb[:16]
	}
	for i, f := range fields[:len(fields)-1] {
		if !tableKeywords[f] {
			continue
		}
		next := fields[i+1]
		if strings.HasPrefix(next, "(") || strings.Contains(next, "$") {
			continue
		}
		if table := strings.Trim(next, `"),;`); table != "" {
			return verb + " " + table
		}
	}
	return verb
}
