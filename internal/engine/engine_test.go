package engine

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rangeplan/internal/ir"
	"github.com/roach88/rangeplan/internal/kv"
	"github.com/roach88/rangeplan/internal/metrics"
	"github.com/roach88/rangeplan/internal/plan"
	"github.com/roach88/rangeplan/internal/plancache"
	"github.com/roach88/rangeplan/internal/query"
	"github.com/roach88/rangeplan/internal/record"
	"github.com/roach88/rangeplan/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func scanEquals(op query.Operand) *plan.ScanPlan {
	return plan.NewScanPlan(query.MustScanComparisons([]query.Comparison{query.Equals{Operand: op}}, nil), false)
}

func keys(records []record.Record) []int64 {
	out := make([]int64, len(records))
	for i, r := range records {
		out[i] = int64(r.PrimaryKey[0].(ir.Int))
	}
	return out
}

func TestEngine_Execute(t *testing.T) {
	rs := testutil.SeedInts(t, testutil.OpenStore(t), 4, 5, 6, 50)
	e := New(rs, WithLogger(discardLogger()), WithIDGenerator(testutil.NewFixedIDGenerator("exec-1")))

	x, err := e.Execute(context.Background(), scanEquals(query.Lit(ir.Int(5))), nil, nil, kv.ExecuteProperties{})
	require.NoError(t, err)

	assert.Equal(t, "exec-1", x.ID)
	assert.Equal(t, int64(1), x.Seq)
	assert.Equal(t, "db0203a63582a184", x.PlanHash)

	records, err := x.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, keys(records))
	assert.Equal(t, 1, x.Rows())
	assert.Equal(t, kv.SourceExhausted, x.NoNextReason())
	assert.Nil(t, x.Continuation())
	assert.NoError(t, x.Close(), "second close is a no-op")
	assert.Same(t, rs, e.Store())
}

func TestEngine_ExecuteWithParameters(t *testing.T) {
	rs := testutil.SeedInts(t, testutil.OpenStore(t), 1, 2, 3)
	e := New(rs, WithLogger(discardLogger()), WithIDGenerator(testutil.NewFixedIDGenerator("")))
	p := scanEquals(query.Param("id"))

	_, err := e.Execute(context.Background(), p, nil, nil, kv.ExecuteProperties{})
	require.Error(t, err)
	assert.True(t, IsContextRequired(err))
	assert.ErrorIs(t, err, query.ErrEvaluationContextRequired)

	var ee *ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "test-execution", ee.ExecutionID)
	assert.Contains(t, ee.Error(), "CONTEXT_REQUIRED")

	_, err = e.Execute(context.Background(), p, query.EmptyContext(), nil, kv.ExecuteProperties{})
	assert.True(t, IsContextRequired(err), "unbound parameter")
	assert.ErrorIs(t, err, query.ErrUnboundParameter)

	x, err := e.Execute(context.Background(), p, query.EmptyContext().WithBinding("id", ir.Int(2)), nil, kv.ExecuteProperties{})
	require.NoError(t, err)
	records, err := x.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, keys(records))
}

func TestEngine_InvalidContinuation(t *testing.T) {
	rs := testutil.SeedInts(t, testutil.OpenStore(t), 1)
	e := New(rs, WithLogger(discardLogger()))

	_, err := e.Execute(context.Background(), scanEquals(query.Lit(ir.Int(1))), nil, []byte{0x7f}, kv.ExecuteProperties{})
	assert.True(t, IsInvalidContinuation(err))
	assert.False(t, IsStoreFailure(err))
	assert.ErrorIs(t, err, kv.ErrInvalidContinuation)
}

func TestEngine_StoreFailure(t *testing.T) {
	s := testutil.OpenStore(t)
	rs := testutil.SeedInts(t, s, 1)
	require.NoError(t, s.Close())
	e := New(rs, WithLogger(discardLogger()))

	_, err := e.Execute(context.Background(), scanEquals(query.Lit(ir.Int(1))), nil, nil, kv.ExecuteProperties{})
	assert.True(t, IsStoreFailure(err))
	assert.ErrorIs(t, err, kv.ErrClosed)
}

func TestEngine_PagesWithContinuation(t *testing.T) {
	ctx := context.Background()
	rs := testutil.SeedInts(t, testutil.OpenStore(t), 1, 2, 3, 4, 5)
	e := New(rs, WithLogger(discardLogger()))
	p := plan.NewScanPlan(query.ScanComparisons{}, true)
	props := kv.ExecuteProperties{ReturnedRowLimit: 2}

	var all []int64
	var token []byte
	for {
		x, err := e.Execute(ctx, p, nil, token, props)
		require.NoError(t, err)
		records, err := x.Collect(ctx)
		require.NoError(t, err)
		all = append(all, keys(records)...)
		token = x.Continuation()
		if token == nil {
			break
		}
	}
	assert.Equal(t, []int64{5, 4, 3, 2, 1}, all)
}

func TestEngine_Metrics(t *testing.T) {
	rs := testutil.SeedInts(t, testutil.OpenStore(t), 1, 2, 3)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	e := New(rs, WithLogger(discardLogger()), WithMetrics(m))

	p := plan.MustUnionPlan(scanEquals(query.Lit(ir.Int(1))), scanEquals(query.Lit(ir.Int(3))))
	x, err := e.Execute(context.Background(), p, nil, nil, kv.ExecuteProperties{})
	require.NoError(t, err)
	_, err = x.Collect(context.Background())
	require.NoError(t, err)

	_, err = e.Execute(context.Background(), scanEquals(query.Param("missing")), nil, nil, kv.ExecuteProperties{})
	require.Error(t, err)

	assert.Equal(t, 3.0, promtest.ToFloat64(m.PlanStructure.WithLabelValues("plan_scan")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.PlanStructure.WithLabelValues("plan_union")))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.RowsReturned))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Executions.WithLabelValues(metrics.OutcomeOK)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Executions.WithLabelValues(metrics.OutcomeError)))
}

func TestEngine_PlanCache(t *testing.T) {
	rs := testutil.SeedInts(t, testutil.OpenStore(t), 1)
	cache, err := plancache.New(8)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	e := New(rs, WithLogger(discardLogger()), WithPlanCache(cache))

	first, err := e.Execute(context.Background(), scanEquals(query.Lit(ir.Int(1))), nil, nil, kv.ExecuteProperties{})
	require.NoError(t, err)
	require.NoError(t, first.Close())
	cache.Wait()

	second, err := e.Execute(context.Background(), scanEquals(query.Lit(ir.Int(1))), nil, nil, kv.ExecuteProperties{})
	require.NoError(t, err)
	require.NoError(t, second.Close())

	assert.Same(t, first.Plan, second.Plan)
	assert.Equal(t, uint64(1), cache.Stats().Hits)
}

func TestEngine_LogsCarryExecutionID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	rs := testutil.SeedInts(t, testutil.OpenStore(t), 1)
	e := New(rs, WithLogger(logger), WithIDGenerator(testutil.NewFixedIDGenerator("exec-42")), WithSequence(NewSequenceAt(9)))

	x, err := e.Execute(context.Background(), scanEquals(query.Lit(ir.Int(1))), nil, nil, kv.ExecuteProperties{})
	require.NoError(t, err)
	_, err = x.Collect(context.Background())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "execution starting")
	assert.Contains(t, out, "execution finished")
	assert.Contains(t, out, "execution=exec-42")
	assert.Contains(t, out, "seq=10")
	assert.Contains(t, out, "rows=1")
}
