package file

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), nil, 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, dir,
		"yellow_tripdata_2023-02.parquet",
		"yellow_tripdata_2023-01.parquet",
		"green_tripdata_2023-01.parquet",
		"yellow_tripdata_2022-01.PARQUET",
		"yellow_tripdata_2024-01.csv",
		"trips_extra.parquet",
		"notes_2023-01.txt",
		".yellow_tripdata_2023-01.parquet",
	)
	if err := os.Mkdir(filepath.Join(dir, "sub_2023-01.parquet"), 0o755); err != nil {
		t.Fatal(err)
	}
	exts := []string{".parquet", ".csv"}

	cases := []struct {
		name string
		sel  Selector
		want []string
	}{
		{"year_and_month", Selector{Year: 2023, Month: 1}, []string{"green_tripdata_2023-01.parquet", "yellow_tripdata_2023-01.parquet"}},
		{"year_only", Selector{Year: 2023}, []string{"green_tripdata_2023-01.parquet", "yellow_tripdata_2023-01.parquet", "yellow_tripdata_2023-02.parquet"}},
		{"month_only", Selector{Month: 1}, []string{"green_tripdata_2023-01.parquet", "yellow_tripdata_2022-01.PARQUET", "yellow_tripdata_2023-01.parquet", "yellow_tripdata_2024-01.csv"}},
		{"all", Selector{}, []string{"green_tripdata_2023-01.parquet", "trips_extra.parquet", "yellow_tripdata_2022-01.PARQUET", "yellow_tripdata_2023-01.parquet", "yellow_tripdata_2023-02.parquet", "yellow_tripdata_2024-01.csv"}},
		{"no_match", Selector{Year: 2019}, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			got, err := Discover(dir, c.sel, exts...)
			if err != nil {
				t.Fatalf("Discover: %v", err)
			}
			var want []string
			for _, n := range c.want {
				want = append(want, filepath.Join(dir, n))
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("got %v want %v", got, want)
			}
		})
	}
}

func TestDiscover_MissingDir(t *testing.T) {
	t.Parallel()

	_, err := Discover(filepath.Join(t.TempDir(), "nope"), Selector{}, ".parquet")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("got %v want ErrNotExist", err)
	}
}

func TestParsePeriod(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want Period
		ok   bool
	}{
		{"yellow_tripdata_2023-01.parquet", Period{2023, 1}, true},
		{"/data/raw/green_tripdata_2024-12.csv", Period{2024, 12}, true},
		{"backup_2020-01_yellow_2023-07.parquet", Period{2023, 7}, true},
		{"yellow_tripdata_2023-13.parquet", Period{}, false},
		{"trips.parquet", Period{}, false},
	}
	for _, c := range cases {
		got, ok := ParsePeriod(c.in)
		if got != c.want || ok != c.ok {
			t.Fatalf("ParsePeriod(%q) got %v,%v want %v,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestSelectorLabel(t *testing.T) {
	t.Parallel()

	cases := map[Selector]string{
		{Year: 2023, Month: 1}: "2023-01",
		{Year: 2023}:           "2023",
		{Month: 3}:             "month-03",
		{}:                     "all",
	}
	for sel, want := range cases {
		if got := sel.Label(); got != want {
			t.Fatalf("Label(%+v) got %q want %q", sel, got, want)
		}
	}
}
