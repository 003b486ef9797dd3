package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxiprep/internal/datasource/file"
	"taxiprep/internal/etlerr"
)

/*
Loader tests build small CSV sources in a temp directory and check period
selection, file ordering, partial failures and error kinds.
*/

const header = "tpep_pickup_datetime,tpep_dropoff_datetime,passenger_count,trip_distance,PULocationID,DOLocationID,fare_amount,total_amount\n"

func trip(fare string) string {
	return "2023-01-01 08:00:00,2023-01-01 08:10:00,1,1.5,10,20," + fare + ",12\n"
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoad_DirectorySelectsAndConcatenatesInNameOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "yellow_tripdata_2023-02.csv", header+trip("2"))
	writeFile(t, dir, "yellow_tripdata_2023-01.csv", header+trip("1")+trip("1.5"))
	writeFile(t, dir, "yellow_tripdata_2022-01.csv", header+trip("9"))

	b, rep, err := Load(context.Background(), dir, file.Selector{Year: 2023}, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, 3, b.Len())
	assert.Equal(t, 3, rep.Rows)
	assert.Len(t, rep.Files, 2)
	assert.Empty(t, rep.Failed)

	var fares []float64
	for _, r := range b.Records {
		fares = append(fares, *r.FareAmount)
	}
	assert.Equal(t, []float64{1, 1.5, 2}, fares)
	assert.True(t, strings.HasSuffix(b.Records[0].Source, "yellow_tripdata_2023-01.csv"))
}

func TestLoad_SingleFileIgnoresSelector(t *testing.T) {
	t.Parallel()

	p := writeFile(t, t.TempDir(), "trips.csv", header+trip("1"))
	b, _, err := Load(context.Background(), p, file.Selector{Year: 1999}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, b.Len())
}

func TestLoad_PartialFailureKeepsReadableFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "yellow_tripdata_2023-01.csv", header+trip("1"))
	bad := writeFile(t, dir, "yellow_tripdata_2023-02.parquet", "not parquet")

	b, rep, err := Load(context.Background(), dir, file.Selector{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, b.Len())
	require.Len(t, rep.Failed, 1)
	assert.Equal(t, bad, rep.Failed[0].Path)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "yellow_tripdata_2023-01.parquet", "junk")
	writeFile(t, dir, "yellow_tripdata_2023-02.parquet", "junk")
	writeFile(t, dir, "yellow_tripdata_2024-05.csv", "tpep_pickup_datetime,fare_amount\n2024-05-01 00:00:00,3\n")

	cases := []struct {
		name  string
		path  string
		sel   file.Selector
		check func(t *testing.T, err error)
	}{
		{
			name: "missing_path",
			path: filepath.Join(dir, "nope"),
			check: func(t *testing.T, err error) {
				var nf *etlerr.NotFoundError
				require.ErrorAs(t, err, &nf)
				assert.True(t, errors.Is(err, os.ErrNotExist))
			},
		},
		{
			name: "no_match",
			path: dir,
			sel:  file.Selector{Year: 2020, Month: 3},
			check: func(t *testing.T, err error) {
				var nf *etlerr.NotFoundError
				require.ErrorAs(t, err, &nf)
				assert.Equal(t, "2020-03", nf.Period)
			},
		},
		{
			name: "all_unreadable",
			path: dir,
			sel:  file.Selector{Year: 2023},
			check: func(t *testing.T, err error) {
				var le *etlerr.LoadError
				require.ErrorAs(t, err, &le)
				assert.Equal(t, dir, le.Path)
			},
		},
		{
			name: "missing_column",
			path: dir,
			sel:  file.Selector{Year: 2024},
			check: func(t *testing.T, err error) {
				var se *etlerr.SchemaError
				require.ErrorAs(t, err, &se)
			},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			b, _, err := Load(context.Background(), c.path, c.sel, zerolog.Nop())
			assert.Nil(t, b)
			c.check(t, err)
		})
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "yellow_tripdata_2023-01.csv", header+trip("1"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Load(ctx, dir, file.Selector{}, zerolog.Nop())
	assert.ErrorIs(t, err, context.Canceled)
}
