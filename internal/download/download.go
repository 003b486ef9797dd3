// Package download fetches monthly TLC trip files into a local directory.
//
// Files are named {taxi_type}_tripdata_{year}-{month:02d}.parquet both on
// the server and on disk. A file already present is never fetched again, and
// a partial download never takes the final name: bodies are streamed into a
// temp file in the destination directory and renamed on success.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"taxiprep/internal/datasource"
	"taxiprep/internal/datasource/httpds"
)

const (
	// DefaultBaseURL is the public TLC trip data bucket.
	DefaultBaseURL = "https://d37ci6vzurychx.cloudfront.net/trip-data"

	// DefaultWorkers is the size of the download pool.
	DefaultWorkers = 4
)

// Status of one requested file.
type Status string

const (
	StatusDownloaded Status = "downloaded"
	StatusSkipped    Status = "skipped"
	StatusFailed     Status = "failed"
)

// Request names one monthly file.
type Request struct {
	TaxiType string
	Year     int
	Month    int
}

// FileName returns the file name of r, e.g. yellow_tripdata_2023-01.parquet.
func (r Request) FileName() string {
	return FileName(r.TaxiType, r.Year, r.Month)
}

// FileName returns the name of the monthly file of taxiType.
func FileName(taxiType string, year, month int) string {
	return fmt.Sprintf("%s_tripdata_%d-%02d.parquet", taxiType, year, month)
}

// Result reports what happened to one Request.
type Result struct {
	Request  Request
	Path     string
	Status   Status
	Bytes    int64
	Duration time.Duration
	Err      error
}

// Options configures a Downloader.
type Options struct {
	BaseURL string
	Dest    string
	Workers int
	Logger  zerolog.Logger
}

// Downloader fetches trip files through an httpds.Client, which carries
// the retry and circuit breaker policy.
type Downloader struct {
	client  *httpds.Client
	baseURL string
	dest    string
	workers int
	log     zerolog.Logger

	// open is a test seam returning the source of url.
	open func(url string) datasource.Source
}

// New returns a Downloader writing into opts.Dest.
func New(client *httpds.Client, opts Options) *Downloader {
	d := &Downloader{
		client:  client,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		dest:    opts.Dest,
		workers: opts.Workers,
		log:     opts.Logger,
	}
	if d.baseURL == "" {
		d.baseURL = DefaultBaseURL
	}
	if d.workers <= 0 {
		d.workers = DefaultWorkers
	}
	d.open = func(url string) datasource.Source { return httpds.NewURLSource(d.client, url) }
	return d
}

// URL returns the remote address of r.
func (d *Downloader) URL(r Request) string {
	return d.baseURL + "/" + r.FileName()
}

// Run fetches every request with a bounded pool. A failed file does not stop
// the others; results are returned in request order together with the
// joined per-file errors. Cancelling ctx stops outstanding downloads.
func (d *Downloader) Run(ctx context.Context, reqs []Request) ([]Result, error) {
	if err := os.MkdirAll(d.dest, 0o755); err != nil {
		return nil, fmt.Errorf("create destination %s: %w", d.dest, err)
	}

	results := make([]Result, len(reqs))
	var mu sync.Mutex
	var errs []error

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, r := range reqs {
		g.Go(func() error {
			res := d.fetch(gctx, r)
			results[i] = res
			if res.Err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", r.FileName(), res.Err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, errors.Join(errs...)
}

func (d *Downloader) fetch(ctx context.Context, r Request) Result {
	start := time.Now()
	res := Result{Request: r, Path: filepath.Join(d.dest, r.FileName())}

	if _, err := os.Stat(res.Path); err == nil {
		res.Status = StatusSkipped
		d.log.Debug().Str("file", res.Path).Msg("download: already present")
		return res
	}

	n, err := d.save(ctx, d.URL(r), res.Path)
	res.Bytes = n
	res.Duration = time.Since(start)
	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		d.log.Error().Err(err).Str("url", d.URL(r)).Msg("download failed")
		return res
	}
	res.Status = StatusDownloaded
	d.log.Info().
		Str("file", res.Path).
		Str("size", humanize.Bytes(uint64(n))).
		Dur("duration", res.Duration).
		Msg("downloaded")
	return res
}

// save streams url into a pending file next to path, then fsyncs it and
// renames it into place.
func (d *Downloader) save(ctx context.Context, url, path string) (int64, error) {
	body, err := d.open(url).Open(ctx)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	pf, err := renameio.NewPendingFile(path, renameio.WithTempDir(filepath.Dir(path)), renameio.WithPermissions(0o644))
	if err != nil {
		return 0, err
	}
	defer pf.Cleanup()

	n, err := io.Copy(pf, body)
	if err != nil {
		return n, err
	}
	return n, pf.CloseAtomicallyReplace()
}

// Requests expands years and months into requests of taxiType, ordered by
// year then month.
func Requests(taxiType string, years, months []int) []Request {
	out := make([]Request, 0, len(years)*len(months))
	for _, y := range years {
		for _, m := range months {
			out = append(out, Request{TaxiType: taxiType, Year: y, Month: m})
		}
	}
	return out
}

// ParseYears parses a comma separated year list such as "2022,2023".
func ParseYears(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		y, err := strconv.Atoi(part)
		if err != nil || y < 2009 || y > 2100 {
			return nil, fmt.Errorf("invalid year %q", part)
		}
		out = append(out, y)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no years in %q", s)
	}
	return out, nil
}

// ParseMonths parses a month list of single months and inclusive ranges,
// e.g. "1-3,7,10-12".
func ParseMonths(s string) ([]int, error) {
	var out []int
	seen := map[int]bool{}
	add := func(m int) {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		from, err := parseMonth(lo)
		if err != nil {
			return nil, err
		}
		to := from
		if isRange {
			if to, err = parseMonth(hi); err != nil {
				return nil, err
			}
		}
		if to < from {
			return nil, fmt.Errorf("invalid month range %q", part)
		}
		for m := from; m <= to; m++ {
			add(m)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no months in %q", s)
	}
	return out, nil
}

func parseMonth(s string) (int, error) {
	m, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || m < 1 || m > 12 {
		return 0, fmt.Errorf("invalid month %q", s)
	}
	return m, nil
}
