package optimize

import (
	"fmt"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
)

func column(name string, kind domain.ColumnKind) domain.DatasetColumn {
	return domain.DatasetColumn{Name: name, Kind: kind}
}

func TestOptimizeColumn_Narrowing(t *testing.T) {
	tests := []struct {
		name   string
		kind   domain.ColumnKind
		values []any
		want   domain.StorageType
	}{
		{"unsigned byte", domain.KindInteger, []any{int64(1), int64(2), int64(3)}, domain.StorageUTinyInt},
		{"signed byte", domain.KindInteger, []any{int64(-5), int64(100)}, domain.StorageTinyInt},
		{"negative and above 127", domain.KindInteger, []any{int64(-5), int64(200)}, domain.StorageSmallInt},
		{"int32", domain.KindInteger, []any{int64(-1), int64(70000)}, domain.StorageInteger},
		{"int64", domain.KindInteger, []any{int64(0), int64(math.MaxInt64)}, domain.StorageBigInt},
		{"integer with nulls", domain.KindInteger, []any{nil, int64(255)}, domain.StorageUTinyInt},
		{"integral floats", domain.KindFloat, []any{1.0, 2.0, 3.0}, domain.StorageBigInt},
		{"fractional floats", domain.KindFloat, []any{1.5, 2.0}, domain.StorageFloat},
		{"integral floats with null", domain.KindFloat, []any{1.0, nil}, domain.StorageBigInt},
		{"boolean", domain.KindBoolean, []any{true, false, true}, domain.StorageBoolean},
		{"all null", domain.KindNull, []any{nil, nil}, domain.StorageVarchar},
		{"plain timestamps", domain.KindTimestamp, []any{time.Unix(0, 0)}, domain.StorageTimestamp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc, _ := OptimizeColumn(column("valor", tt.kind), tt.values)
			assert.Equal(t, tt.want, tc.Type)
		})
	}
}

func TestOptimizeColumn_IntegralFloatsBecomeIntegers(t *testing.T) {
	tc, out := OptimizeColumn(column("qtd", domain.KindFloat), []any{1.0, nil, 3.0})
	assert.Equal(t, domain.KindInteger, tc.Kind)
	assert.Equal(t, []any{int64(1), nil, int64(3)}, out)
}

func TestIntegerType_Thresholds(t *testing.T) {
	assert.Equal(t, domain.StorageUTinyInt, IntegerType(0, 255))
	assert.Equal(t, domain.StorageSmallInt, IntegerType(0, 256))
	assert.Equal(t, domain.StorageTinyInt, IntegerType(-128, 127))
	assert.Equal(t, domain.StorageSmallInt, IntegerType(-129, 0))
	assert.Equal(t, domain.StorageSmallInt, IntegerType(-32768, 32767))
	assert.Equal(t, domain.StorageInteger, IntegerType(0, 32768))
	assert.Equal(t, domain.StorageInteger, IntegerType(math.MinInt32, math.MaxInt32))
	assert.Equal(t, domain.StorageBigInt, IntegerType(0, math.MaxInt32+1))
}

func repeated(distinct, rows int) []any {
	values := make([]any, rows)
	for i := range values {
		values[i] = fmt.Sprintf("cat-%02d", i%distinct)
	}
	return values
}

func TestOptimizeColumn_Categorical(t *testing.T) {
	tc, out := OptimizeColumn(column("status", domain.KindText), repeated(3, 100))
	assert.Equal(t, domain.StorageEnum, tc.Type)
	assert.Equal(t, []string{"cat-00", "cat-01", "cat-02"}, tc.EnumLabels)
	assert.Equal(t, "cat-01", out[1])

	tc, _ = OptimizeColumn(column("status", domain.KindText), repeated(90, 100))
	assert.Equal(t, domain.StorageVarchar, tc.Type)
	assert.Empty(t, tc.EnumLabels)

	tc, _ = OptimizeColumn(column("status", domain.KindText), repeated(50, 100))
	assert.Equal(t, domain.StorageVarchar, tc.Type, "ratio exactly one half stays text")
}

func TestOptimizeColumn_Temporal(t *testing.T) {
	tc, out := OptimizeColumn(column("Data_Inicio", domain.KindText), []any{"2024-01-01", nil, "15/03/2024"})
	assert.Equal(t, domain.StorageTimestamp, tc.Type)
	assert.Equal(t, domain.KindTimestamp, tc.Kind)
	assert.Equal(t, []any{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		nil,
		time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
	}, out)

	// One unparseable value leaves the column as it was, and the
	// categorical rule is not tried either.
	values := []any{"2024-01-01", "amanha", "2024-01-01", "2024-01-01"}
	tc, out = OptimizeColumn(column("update_date", domain.KindText), values)
	assert.Equal(t, domain.StorageVarchar, tc.Type)
	assert.Equal(t, values, out)

	tc, _ = OptimizeColumn(column("metadados.num_paginas", domain.KindInteger), []any{int64(3)})
	assert.Equal(t, domain.StorageBigInt, tc.Type)
}

func TestOptimize_Table(t *testing.T) {
	stamp := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	ds := &domain.Dataset{
		Name: "vendas_dados",
		Columns: []domain.DatasetColumn{
			column("Quantidade", domain.KindInteger),
			column("Preco", domain.KindFloat),
			column(domain.ColumnSource, domain.KindText),
			column(domain.ColumnProcessedAt, domain.KindTimestamp),
		},
		Rows: [][]any{
			{int64(2), 3500.0, "vendas_dados", stamp},
			{int64(5), 50.5, "vendas_dados", stamp},
			{int64(7), 10.0, "vendas_dados", stamp},
		},
		Warnings: []string{"w"},
	}
	tbl := New(slog.New(slog.DiscardHandler)).Optimize(ds)
	require.Len(t, tbl.Columns, 4)
	assert.Equal(t, domain.StorageUTinyInt, tbl.Columns[0].Type)
	assert.Equal(t, domain.StorageFloat, tbl.Columns[1].Type)
	assert.Equal(t, domain.StorageEnum, tbl.Columns[2].Type)
	assert.Equal(t, domain.StorageTimestamp, tbl.Columns[3].Type)
	assert.Equal(t, ds.Rows, tbl.Rows)
	assert.Equal(t, []string{"w"}, tbl.Warnings)
}

func TestProfile(t *testing.T) {
	p := Profile(column("v", domain.KindFloat), []any{1.0, nil, 2.5, 1.0})
	assert.Equal(t, 4, p.Rows)
	assert.Equal(t, 1, p.Nulls)
	assert.Equal(t, 2, p.Distinct)
	assert.Equal(t, 1.0, p.Min)
	assert.Equal(t, 2.5, p.Max)
	assert.False(t, p.AllIntegral)
	assert.False(t, p.Temporal)
	assert.True(t, IsTemporalName("DATA_FIM"))
}
