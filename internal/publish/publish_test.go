package publish

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/config"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		raw     string
		want    Location
		wantErr bool
	}{
		{raw: "s3://lake/sonai/datamart", want: Location{Scheme: "s3", Bucket: "lake", Prefix: "sonai/datamart"}},
		{raw: "gs://bucket/", want: Location{Scheme: "gs", Bucket: "bucket"}},
		{raw: "az://container/a/b", want: Location{Scheme: "az", Bucket: "container", Prefix: "a/b"}},
		{raw: "file:///srv/datamart", want: Location{Scheme: "file", Prefix: filepath.FromSlash("/srv/datamart")}},
		{raw: "s3:///prefix", wantErr: true},
		{raw: "ftp://host/x", wantErr: true},
		{raw: "file://", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseLocation(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocation_KeyAndString(t *testing.T) {
	loc := Location{Scheme: "s3", Bucket: "lake", Prefix: "dm"}
	assert.Equal(t, "dm/vendas.parquet", loc.Key("vendas.parquet"))
	assert.Equal(t, "s3://lake/dm", loc.String())

	bare := Location{Scheme: "gs", Bucket: "b"}
	assert.Equal(t, "x.parquet", bare.Key("x.parquet"))
	assert.Equal(t, "gs://b", bare.String())
}

func TestNew(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	ctx := context.Background()

	p, err := New(ctx, config.PublishConfig{}, logger)
	require.NoError(t, err)
	assert.Nil(t, p)

	dir := t.TempDir()
	p, err = New(ctx, config.PublishConfig{URL: "file://" + filepath.ToSlash(dir)}, logger)
	require.NoError(t, err)
	assert.IsType(t, &FilePublisher{}, p)

	_, err = New(ctx, config.PublishConfig{URL: "s3://bucket/x"}, logger)
	assert.Error(t, err, "missing S3 credentials")

	_, err = New(ctx, config.PublishConfig{URL: "az://container/x"}, logger)
	assert.Error(t, err, "missing Azure account")

	id, secret, region := "id", "secret", "eu-central-1"
	p, err = New(ctx, config.PublishConfig{URL: "s3://bucket/x", S3KeyID: &id, S3Secret: &secret, S3Region: &region}, logger)
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/x", p.Target())
}

func TestFilePublisher(t *testing.T) {
	src := filepath.Join(t.TempDir(), "vendas_dados.parquet")
	require.NoError(t, os.WriteFile(src, []byte("PAR1data"), 0o644))
	catalog := filepath.Join(filepath.Dir(src), "metadados_datamart.parquet")
	require.NoError(t, os.WriteFile(catalog, []byte("PAR1cat"), 0o644))

	dest := filepath.Join(t.TempDir(), "publicado")
	p := NewFilePublisher(Location{Scheme: "file", Prefix: dest}, slog.New(slog.DiscardHandler))

	urls, err := Files(context.Background(), p, []string{src, catalog})
	require.NoError(t, err)
	require.Len(t, urls, 2)
	assert.Equal(t, "file://"+filepath.ToSlash(filepath.Join(dest, "vendas_dados.parquet")), urls[0])

	got, err := os.ReadFile(filepath.Join(dest, "vendas_dados.parquet"))
	require.NoError(t, err)
	assert.Equal(t, "PAR1data", string(got))

	// Publishing again overwrites and leaves no temp files behind.
	require.NoError(t, os.WriteFile(src, []byte("PAR1v2"), 0o644))
	_, err = p.Publish(context.Background(), src, "vendas_dados.parquet")
	require.NoError(t, err)
	got, err = os.ReadFile(filepath.Join(dest, "vendas_dados.parquet"))
	require.NoError(t, err)
	assert.Equal(t, "PAR1v2", string(got))
	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	_, err = Files(context.Background(), p, []string{filepath.Join(dest, "missing.parquet")})
	assert.Error(t, err)
}
