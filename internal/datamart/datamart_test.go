package datamart

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/ddl"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/engine"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := engine.OpenDuckDB(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func salesTable(stamp time.Time) *domain.Table {
	return &domain.Table{
		Name: "vendas_dados",
		Columns: []domain.TableColumn{
			{Name: "produto", Kind: domain.KindText, Type: domain.StorageVarchar},
			{Name: "quantidade", Kind: domain.KindInteger, Type: domain.StorageUTinyInt},
			{Name: "preco", Kind: domain.KindFloat, Type: domain.StorageFloat},
			{Name: "regiao", Kind: domain.KindText, Type: domain.StorageEnum, EnumLabels: []string{"NE", "SE"}},
			{Name: domain.ColumnSource, Kind: domain.KindText, Type: domain.StorageVarchar},
			{Name: domain.ColumnProcessedAt, Kind: domain.KindTimestamp, Type: domain.StorageTimestamp},
		},
		Rows: [][]any{
			{"Notebook", int64(2), 3500.5, "NE", "vendas_dados", stamp},
			{"Mouse", int64(250), 50.25, "SE", "vendas_dados", stamp},
			{nil, nil, nil, "NE", "vendas_dados", stamp},
		},
	}
}

// readRows returns every row of a Parquet file except data_processamento.
func readRows(t *testing.T, db *sql.DB, path string) [][]any {
	t.Helper()
	rows, err := db.Query(`SELECT * EXCLUDE (data_processamento) FROM read_parquet([` + ddl.QuoteLiteral(path) + `]) ORDER BY produto NULLS LAST`)
	require.NoError(t, err)
	defer rows.Close() //nolint:errcheck
	cols, err := rows.Columns()
	require.NoError(t, err)
	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		require.NoError(t, rows.Scan(ptrs...))
		out = append(out, vals)
	}
	require.NoError(t, rows.Err())
	return out
}

func TestWriter_WritesTypedParquet(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	dir := t.TempDir()
	w := NewWriter(db, dir, slog.New(slog.DiscardHandler))

	stamp := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	file, err := w.Write(ctx, salesTable(stamp))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "vendas_dados.parquet"), file.Path)
	assert.Equal(t, 3, file.Rows)
	assert.Equal(t, 6, file.Columns)
	assert.Positive(t, file.Bytes)
	_, err = os.Stat(file.Path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	entries, err := NewConsolidator(db, slog.New(slog.DiscardHandler)).Consolidate(ctx, dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	types := entries[0].ColumnTypes
	assert.Equal(t, "UTINYINT", types["quantidade"])
	assert.Equal(t, "FLOAT", types["preco"])
	assert.Equal(t, "VARCHAR", types["produto"])
	assert.Equal(t, "TIMESTAMP", types[domain.ColumnProcessedAt])

	var regiao string
	var qtd int64
	require.NoError(t, db.QueryRow(`SELECT CAST(regiao AS VARCHAR), CAST(quantidade AS BIGINT) FROM read_parquet([`+
		ddl.QuoteLiteral(file.Path)+`]) WHERE produto = 'Mouse'`).Scan(&regiao, &qtd))
	assert.Equal(t, "SE", regiao)
	assert.Equal(t, int64(250), qtd)
}

func TestWriter_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	dir := t.TempDir()
	w := NewWriter(db, dir, slog.New(slog.DiscardHandler))

	first, err := w.Write(ctx, salesTable(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	before := readRows(t, db, first.Path)

	second, err := w.Write(ctx, salesTable(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, first.Path, second.Path)
	assert.Equal(t, before, readRows(t, db, second.Path))

	files, err := ListDatasetFiles(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestWriter_ConcurrentWritesSamePath(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	dir := t.TempDir()
	w := NewWriter(db, dir, slog.New(slog.DiscardHandler))

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = w.Write(ctx, salesTable(time.Now()))
		}()
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, readRows(t, db, w.Path("vendas_dados")), 3)
}

func TestWriter_RejectsCatalogName(t *testing.T) {
	w := NewWriter(openDB(t), t.TempDir(), slog.New(slog.DiscardHandler))
	tbl := salesTable(time.Now())
	tbl.Name = "metadados_datamart"
	_, err := w.Write(context.Background(), tbl)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestWriter_RenamesDuplicateColumns(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	w := NewWriter(db, t.TempDir(), slog.New(slog.DiscardHandler))
	tbl := &domain.Table{
		Name: "dup",
		Columns: []domain.TableColumn{
			{Name: "Nome", Kind: domain.KindText, Type: domain.StorageVarchar},
			{Name: "nome", Kind: domain.KindText, Type: domain.StorageVarchar},
		},
		Rows: [][]any{{"a", "b"}},
	}
	file, err := w.Write(ctx, tbl)
	require.NoError(t, err)

	var a, b string
	require.NoError(t, db.QueryRow(`SELECT "Nome", "nome_2" FROM read_parquet([`+ddl.QuoteLiteral(file.Path)+`])`).Scan(&a, &b))
	assert.Equal(t, "a", a)
	assert.Equal(t, "b", b)
}

func TestConsolidate_CatalogMatchesFiles(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	dir := t.TempDir()
	logger := slog.New(slog.DiscardHandler)
	w := NewWriter(db, dir, logger)

	_, err := w.Write(ctx, salesTable(time.Now()))
	require.NoError(t, err)
	_, err = w.Write(ctx, &domain.Table{
		Name:    "ata_dados",
		Columns: []domain.TableColumn{{Name: "texto", Kind: domain.KindText, Type: domain.StorageVarchar}},
		Rows:    [][]any{{"ola"}},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notas.txt"), []byte("x"), 0o644))

	c := NewConsolidator(db, logger)
	entries, err := c.Consolidate(ctx, dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "ata_dados", entries[0].Dataset)
	assert.Equal(t, "vendas_dados", entries[1].Dataset)
	assert.Equal(t, int64(1), entries[0].Rows)
	assert.Equal(t, int64(3), entries[1].Rows)
	assert.Equal(t, 6, entries[1].Columns)
	assert.Equal(t, []string{"produto", "quantidade", "preco", "regiao", domain.ColumnSource, domain.ColumnProcessedAt}, entries[1].ColumnNames)
	assert.Positive(t, entries[1].SizeMB)
	assert.Positive(t, entries[1].MemoryMB)

	// A second pass must not count the catalog as a dataset.
	again, err := c.Consolidate(ctx, dir)
	require.NoError(t, err)
	assert.Len(t, again, 2)

	read, err := c.ReadCatalog(ctx, dir)
	require.NoError(t, err)
	require.Len(t, read, 2)
	for i := range read {
		assert.Equal(t, again[i].Dataset, read[i].Dataset)
		assert.Equal(t, again[i].Rows, read[i].Rows)
		assert.Equal(t, again[i].Columns, read[i].Columns)
		assert.Equal(t, again[i].ColumnNames, read[i].ColumnNames)
		assert.Equal(t, again[i].ColumnTypes, read[i].ColumnTypes)
		assert.InDelta(t, again[i].SizeMB, read[i].SizeMB, 1e-9)
		assert.True(t, again[i].CreatedAt.Equal(read[i].CreatedAt))
	}
}

func TestConsolidate_EmptyDirectory(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	dir := t.TempDir()
	c := NewConsolidator(db, slog.New(slog.DiscardHandler))

	entries, err := c.Consolidate(ctx, dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	read, err := c.ReadCatalog(ctx, dir)
	require.NoError(t, err)
	assert.Empty(t, read)
}

func TestReadCatalog_Missing(t *testing.T) {
	_, err := NewConsolidator(openDB(t), slog.New(slog.DiscardHandler)).ReadCatalog(context.Background(), t.TempDir())
	var nf *domain.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestKeyedMutex_ReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("a")
	done := make(chan struct{})
	go func() {
		k.Lock("a")()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("second lock acquired while first held")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-done
	assert.Empty(t, k.locks)
}
