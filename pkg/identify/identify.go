// Package identify runs the library search over a stream of query spectra:
// peak matching on a worker pool, scoring, ppm recalibration and
// construction of identification records.
package identify

import (
	"context"
	"fmt"
	"sync"

	"github.com/ChrisMcGann/DIAKey/pkg/calibrate"
	"github.com/ChrisMcGann/DIAKey/pkg/core"
	"github.com/ChrisMcGann/DIAKey/pkg/fdr"
	"github.com/ChrisMcGann/DIAKey/pkg/library"
	"github.com/ChrisMcGann/DIAKey/pkg/match"
	"github.com/ChrisMcGann/DIAKey/pkg/score"
)

// NoCorrection disables ppm recalibration.
const NoCorrection = -1

// Source yields query spectra one at a time.
type Source interface {
	Next() bool
	Spectrum() *core.QuerySpectrum
	Err() error
}

// Config controls a search.
type Config struct {
	Tolerance     float64 // initial fragment tolerance in ppm
	Correction    float64 // NoCorrection, 0 for the histogram estimator, or k standard deviations
	HistogramBins int
	MinShared     int
	Window        match.WindowMode
	Threads       int     // worker goroutines (>=1)
	FDR           float64 // cutoff used to pick the calibration population

	// Progress, if set, is called from a single goroutine with the number
	// of spectra matched so far.
	Progress func(done int)
}

// Result is the outcome of searching one query file.
type Result struct {
	Identifications []*core.Identification // sorted by MaCC descending
	Spectra         int
	Matches         int
	Calibration     *calibrate.Estimate // nil when recalibration was skipped
}

// queryInfo is what the records need from a query spectrum after its peaks
// have been matched.
type queryInfo struct {
	scan       string
	mz         float64
	peaks      int
	cv         float64
	windowSize float64
}

// Run searches every spectrum from src against lib. fileName is stamped on
// every identification.
func Run(ctx context.Context, lib *library.Library, src Source, fileName string, cfg Config) (*Result, error) {
	if cfg.Threads < 1 {
		cfg.Threads = 1
	}
	if cfg.MinShared < 1 {
		cfg.MinShared = 1
	}
	if cfg.FDR <= 0 {
		cfg.FDR = fdr.DefaultThreshold
	}

	// Match every query spectrum at the initial tolerance
	infos, perQuery, err := matchAll(ctx, lib, src, cfg)
	if err != nil {
		return nil, err
	}

	var matches []match.Match
	for _, ms := range perQuery {
		matches = append(matches, ms...)
	}
	res := &Result{Spectra: len(infos)}

	// Score, then recalibrate and rescore on the surviving matches
	pairs := score.Score(matches)
	if cfg.Correction != NoCorrection && len(pairs) > 0 {
		est, err := recalibrate(lib, matches, pairs, cfg)
		if err != nil {
			return nil, err
		}
		res.Calibration = &est
		matches = calibrate.Filter(matches, est)
		pairs = score.Score(matches)
	}
	res.Matches = len(matches)

	// Build records for pairs with enough shared peaks
	pairs = score.Filter(pairs, cfg.MinShared)
	res.Identifications = records(lib, infos, matches, pairs, fileName)
	return res, nil
}

// matchAll streams src through a worker pool. Results are kept by query
// index so the outcome does not depend on scheduling.
func matchAll(ctx context.Context, lib *library.Library, src Source, cfg Config) ([]queryInfo, [][]match.Match, error) {
	opts := match.Options{Tolerance: cfg.Tolerance, Window: cfg.Window}

	type job struct {
		index int
		q     *core.QuerySpectrum
	}
	type result struct {
		index   int
		matches []match.Match
	}
	jobs := make(chan job, cfg.Threads*2)
	results := make(chan result, cfg.Threads*2)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start workers
	var wg sync.WaitGroup
	wg.Add(cfg.Threads)
	for w := 0; w < cfg.Threads; w++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case j, ok := <-jobs:
					if !ok {
						return
					}
					r := result{index: j.index, matches: match.Spectrum(lib, j.q, j.index, opts)}
					select {
					case results <- r:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	// Collect results by query index
	var (
		perQuery [][]match.Match
		cwg      sync.WaitGroup
	)
	cwg.Add(1)
	go func() {
		defer cwg.Done()
		done := 0
		for r := range results {
			for len(perQuery) <= r.index {
				perQuery = append(perQuery, nil)
			}
			perQuery[r.index] = r.matches
			done++
			if cfg.Progress != nil {
				cfg.Progress(done)
			}
		}
	}()

	// Feed spectra until the source is exhausted or the context is done
	var infos []queryInfo
	var ferr error
feed:
	for src.Next() {
		q := src.Spectrum()
		infos = append(infos, queryInfo{
			scan:       q.Scan,
			mz:         q.PrecursorMZ,
			peaks:      q.PeaksCount(),
			cv:         q.CompensationVoltage,
			windowSize: q.WindowWidth,
		})
		select {
		case <-ctx.Done():
			break feed
		case jobs <- job{index: len(infos) - 1, q: q}:
		}
	}
	if err := src.Err(); err != nil {
		ferr = fmt.Errorf("failed to read query spectra: %w", err)
	}

	// Drain
	close(jobs)
	wg.Wait()
	close(results)
	cwg.Wait()

	if err := ctx.Err(); err != nil && ferr == nil {
		ferr = err
	}
	if ferr != nil {
		return nil, nil, ferr
	}
	for len(perQuery) < len(infos) {
		perQuery = append(perQuery, nil)
	}
	return infos, perQuery, nil
}

// recalibrate estimates the ppm offset and tolerance from the matches of
// the top pair of every query spectrum that passes the FDR cutoff.
func recalibrate(lib *library.Library, matches []match.Match, pairs []score.Pair, cfg Config) (calibrate.Estimate, error) {
	// Pairs are sorted by MaCC, so the first pair seen per query is its best
	seen := make(map[int]bool)
	var top []score.Pair
	for _, p := range pairs {
		if seen[p.QueryIndex] {
			continue
		}
		seen[p.QueryIndex] = true
		top = append(top, p)
	}
	accepted, err := fdr.Filter(top, func(p score.Pair) bool {
		return lib.Entry(p.LibraryIndex).Decoy
	}, cfg.FDR)
	if err != nil {
		return calibrate.Estimate{}, fmt.Errorf("ppm calibration: %w", err)
	}

	// Collect the ppm errors of the accepted pairs
	type pairKey struct{ lib, query int }
	keep := make(map[pairKey]bool, len(accepted))
	for _, p := range accepted {
		keep[pairKey{p.LibraryIndex, p.QueryIndex}] = true
	}
	var ppms []float64
	for _, m := range matches {
		if keep[pairKey{m.LibraryIndex, m.QueryIndex}] {
			ppms = append(ppms, m.PPM)
		}
	}

	// 0 selects the histogram estimator, k > 0 a k·σ window
	var est calibrate.Estimate
	if cfg.Correction == 0 {
		est, err = calibrate.Histogram(ppms, cfg.HistogramBins)
	} else {
		est, err = calibrate.StdDev(ppms, cfg.Correction)
	}
	if err != nil {
		return calibrate.Estimate{}, fmt.Errorf("ppm calibration: %w", err)
	}
	return est, nil
}

// records turns scored pairs into identifications, keeping their order.
func records(lib *library.Library, infos []queryInfo, matches []match.Match, pairs []score.Pair, fileName string) []*core.Identification {
	type pairKey struct{ lib, query int }
	type counts struct {
		ionCount float64
		above    int
	}
	agg := make(map[pairKey]*counts, len(pairs))
	for _, m := range matches {
		k := pairKey{m.LibraryIndex, m.QueryIndex}
		c, ok := agg[k]
		if !ok {
			c = &counts{}
			agg[k] = c
		}
		// Only fragments above the precursor count towards the ion count
		if m.QueryMZ > infos[m.QueryIndex].mz {
			c.ionCount += m.QueryIntensity
			c.above++
		}
	}

	out := make([]*core.Identification, 0, len(pairs))
	for _, p := range pairs {
		e := lib.Entry(p.LibraryIndex)
		q := infos[p.QueryIndex]
		c := agg[pairKey{p.LibraryIndex, p.QueryIndex}]
		out = append(out, &core.Identification{
			FileName:            fileName,
			Scan:                q.scan,
			QueryMZ:             q.mz,
			Peptide:             e.Peptide,
			Protein:             e.ProteinName,
			LibraryMZ:           e.PrecursorMZ,
			LibraryCharge:       e.Charge,
			Cosine:              p.Cosine,
			Name:                e.Identifier,
			QueryPeaks:          q.peaks,
			LibraryPeaks:        len(e.Peaks),
			Shared:              p.Shared,
			IonCount:            c.ionCount,
			CompensationVoltage: q.cv,
			WindowWidth:         q.windowSize,
			MaCC:                p.MaCC,
			ExcludeNum:          p.Shared - c.above,
			Decoy:               e.Decoy,
		})
	}
	return out
}
