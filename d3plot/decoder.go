// Package d3plot decodes solver state-dump families: a metadata-bearing base
// file plus a numbered sequence of continuation files forming a single logical
// state stream.
//
// A decoding run opens the family, detects precision and endianness from the
// base file, parses the control header and geometry, and then streams states
// from the base file and each continuation file in order:
//
//	dec, err := d3plot.Open("run/d3plot")
//	if err != nil { ... }
//	defer dec.Close()
//
//	mesh, err := dec.Mesh()
//	for state, err := range dec.States() {
//	    if err != nil { ... }
//	    // consume state
//	}
package d3plot

import (
	"context"
	"fmt"
	"iter"
	"runtime"
	"sort"
	"sync"

	"github.com/kood3plot/kood3plot/format"
	"github.com/kood3plot/kood3plot/internal/options"
	"github.com/kood3plot/kood3plot/wordfile"
)

// FileFormat describes the detected binary format of a file family.
type FileFormat struct {
	Precision format.Precision
	Order     format.ByteOrder
	WordSize  int
	Version   float64
}

// Decoder reads one state-dump family. It owns the base file's reader for the
// decoder's lifetime; state reads over continuation files open their own
// readers, one per file, so handles are never shared between goroutines.
//
// A Decoder is not safe for concurrent use; the parallelism in
// ReadAllStatesParallel is internal.
type Decoder struct {
	files      []string
	reader     *wordfile.Reader
	control    ControlHeader
	fileFormat FileFormat
	workers    int
}

// DecoderOption configures a Decoder.
type DecoderOption = options.Option[*Decoder]

// WithWorkers sets the worker count for parallel state reading. Zero (the
// default) uses the host's hardware concurrency hint.
func WithWorkers(n int) DecoderOption {
	return options.NoError(func(d *Decoder) {
		d.workers = n
	})
}

// Open enumerates the family rooted at basePath, opens the base file, detects
// its format and parses the control header.
//
// Returns:
//   - *Decoder: Decoder ready for Mesh and state reads
//   - error: ErrFileNotFound, ErrIO, ErrInvalidFormat, or ErrCorruptedData
func Open(basePath string, opts ...DecoderOption) (*Decoder, error) {
	d := &Decoder{
		files: wordfile.FamilyFiles(basePath),
	}

	if err := options.Apply(d, opts...); err != nil {
		return nil, err
	}

	reader, err := wordfile.Open(basePath)
	if err != nil {
		return nil, err
	}

	control, err := ParseControlHeader(reader)
	if err != nil {
		reader.Close()
		return nil, err
	}

	version, err := reader.Version()
	if err != nil {
		reader.Close()
		return nil, err
	}

	d.reader = reader
	d.control = control
	d.fileFormat = FileFormat{
		Precision: reader.Precision(),
		Order:     reader.Order(),
		WordSize:  reader.WordSize(),
		Version:   version,
	}

	return d, nil
}

// Close releases the base file's reader.
func (d *Decoder) Close() error {
	if d.reader == nil {
		return nil
	}

	err := d.reader.Close()
	d.reader = nil

	return err
}

// Control returns the decoded control header.
func (d *Decoder) Control() *ControlHeader { return &d.control }

// Format returns the detected file format.
func (d *Decoder) Format() FileFormat { return d.fileFormat }

// Files returns the family's file paths in family order.
func (d *Decoder) Files() []string { return d.files }

// Mesh parses the geometry section of the base file.
func (d *Decoder) Mesh() (*Mesh, error) {
	if d.reader == nil {
		return nil, fmt.Errorf("d3plot: decoder closed")
	}

	return parseGeometry(d.reader, &d.control)
}

// States streams every state of the family in wall-clock order without
// materializing all frames: the base file's states first, then each
// continuation file's in family order. The sequence ends at the first error;
// the error is yielded as the final element.
func (d *Decoder) States() iter.Seq2[State, error] {
	return func(yield func(State, error) bool) {
		for idx, path := range d.files {
			reader, startWord, err := d.openFamilyFile(idx, path)
			if err != nil {
				yield(State{}, err)
				return
			}

			scanner := newStateScanner(reader, &d.control, startWord)
			for {
				state, ok, err := scanner.next()
				if err != nil {
					d.closeFamilyFile(idx, reader)
					yield(State{}, err)

					return
				}
				if !ok {
					break
				}
				if !yield(state, nil) {
					d.closeFamilyFile(idx, reader)
					return
				}
			}

			d.closeFamilyFile(idx, reader)
		}
	}
}

// ReadAllStates decodes every state of the family sequentially.
func (d *Decoder) ReadAllStates() ([]State, error) {
	var all []State
	for state, err := range d.States() {
		if err != nil {
			return all, err
		}

		all = append(all, state)
	}

	return all, nil
}

// fileResult carries one worker's output for merge by file index.
type fileResult struct {
	fileIdx int
	states  []State
	err     error
}

// ReadAllStatesParallel decodes the family with one worker per continuation
// file, bounded by the configured worker count. The base file is read on the
// calling goroutine; continuation results are merged in file-index order
// regardless of completion order, so the output matches ReadAllStates
// exactly.
//
// If a continuation file fails, aggregation stops at that file's index: states
// from earlier files are returned along with the error, and later files are
// discarded. Cancellation is cooperative at file granularity: workers check
// ctx before opening their next file.
func (d *Decoder) ReadAllStatesParallel(ctx context.Context) ([]State, error) {
	if d.reader == nil {
		return nil, fmt.Errorf("d3plot: decoder closed")
	}

	if len(d.files) <= 1 {
		return d.ReadAllStates()
	}

	// Base file first, on this goroutine.
	baseStates, err := readStatesFile(d.reader, &d.control, d.control.stateStartWord())
	if err != nil {
		return baseStates, err
	}

	workers := d.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(d.files)-1 {
		workers = len(d.files) - 1
	}

	jobs := make(chan int)
	results := make(chan fileResult, len(d.files)-1)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					results <- fileResult{fileIdx: idx, err: ctx.Err()}
					continue
				}

				states, err := d.readContinuationFile(d.files[idx])
				results <- fileResult{fileIdx: idx, states: states, err: err}
			}
		}()
	}

	for idx := 1; idx < len(d.files); idx++ {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()
	close(results)

	collected := make([]fileResult, 0, len(d.files)-1)
	for res := range results {
		collected = append(collected, res)
	}
	sort.Slice(collected, func(i, j int) bool {
		return collected[i].fileIdx < collected[j].fileIdx
	})

	// Merge in file-index order; the first failure truncates everything after
	// it while keeping the prefix valid.
	all := baseStates
	for _, res := range collected {
		if res.err != nil {
			return all, res.err
		}

		all = append(all, res.states...)
	}

	return all, nil
}

// readContinuationFile reads all states of one continuation file with its own
// reader handle. Continuation files carry only state slots, starting at word 0.
func (d *Decoder) readContinuationFile(path string) ([]State, error) {
	reader, err := wordfile.OpenWithFormat(path, d.fileFormat.Precision, d.fileFormat.Order)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return readStatesFile(reader, &d.control, 0)
}

// openFamilyFile returns the reader and state start offset for the file at the
// given family index. Index 0 reuses the decoder's base reader.
func (d *Decoder) openFamilyFile(idx int, path string) (*wordfile.Reader, int64, error) {
	if idx == 0 {
		return d.reader, d.control.stateStartWord(), nil
	}

	reader, err := wordfile.OpenWithFormat(path, d.fileFormat.Precision, d.fileFormat.Order)
	if err != nil {
		return nil, 0, err
	}

	return reader, 0, nil
}

// closeFamilyFile closes readers the iteration opened; the base reader stays
// open for the decoder's lifetime.
func (d *Decoder) closeFamilyFile(idx int, reader *wordfile.Reader) {
	if idx != 0 {
		reader.Close()
	}
}

// TimeValues decodes the family and returns the time of every state in order.
func (d *Decoder) TimeValues() ([]float64, error) {
	var times []float64
	for state, err := range d.States() {
		if err != nil {
			return times, err
		}

		times = append(times, state.Time)
	}

	return times, nil
}
