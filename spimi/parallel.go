package spimi

import "sync"

// IndexWork is one unit of work handed to a ParallelBuilder worker: a
// single document routed to that worker's own Builder. Grounded on the
// teacher's performance.go AsyncIndexer/IndexWork worker-pool shape
// (a channel of work items drained by a fixed goroutine pool), narrowed
// here to the one work type ParallelBuilder needs (SPIMI only ever
// indexes, never updates/deletes, per spec.md's immutable-index
// non-goal).
type IndexWork struct {
	DocID       uint32
	TokenStream []string
}

// BlockFileFactory returns the NewBlockFileFunc a given worker should
// use to name its own flushed block files, letting ParallelBuilder keep
// every worker's output at distinct paths (e.g. spimi_block_{workerID}
// _{k}.tmp) without the workers coordinating names with each other.
type BlockFileFactory func(workerID int) NewBlockFileFunc

// ParallelConfig configures a ParallelBuilder: Config is applied
// identically to every worker's own Builder.
type ParallelConfig struct {
	Config
	NumWorkers int
	QueueSize  int
}

// ParallelBuilder partitions a document stream across NumWorkers
// goroutines, each owning an independent Builder — its own B+ tree
// dictionary, its own memory counter, never a shared mutable map, per
// spec.md §9: "partition the document stream per worker, each with its
// own map; rely on the merger to unify — do not share the dictionary."
//
// Grounded on the teacher's performance.go AsyncIndexer: a bounded
// channel of IndexWork per worker, a fixed goroutine pool started in
// the constructor, and a sync.WaitGroup drained on Finish (the
// teacher's Close).
type ParallelBuilder struct {
	cfg      ParallelConfig
	builders []*Builder
	queues   []chan IndexWork
	wg       sync.WaitGroup

	mu       sync.Mutex
	firstErr error
}

// NewParallelBuilder starts cfg.NumWorkers workers (minimum 1), each
// backed by its own Builder built from cfg.Config and the block-file
// sink blockFiles(workerID) returns.
func NewParallelBuilder(cfg ParallelConfig, blockFiles BlockFileFactory) *ParallelBuilder {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	pb := &ParallelBuilder{
		cfg:      cfg,
		builders: make([]*Builder, cfg.NumWorkers),
		queues:   make([]chan IndexWork, cfg.NumWorkers),
	}
	for i := 0; i < cfg.NumWorkers; i++ {
		pb.builders[i] = NewBuilder(cfg.Config, blockFiles(i))
		pb.queues[i] = make(chan IndexWork, cfg.QueueSize)
		pb.wg.Add(1)
		go pb.worker(i)
	}
	return pb
}

// worker drains its queue, feeding each IndexWork into its own Builder.
// Exactly one goroutine ever touches a given Builder, so Builder's own
// single-goroutine contract holds per worker.
func (pb *ParallelBuilder) worker(i int) {
	defer pb.wg.Done()
	b := pb.builders[i]
	for work := range pb.queues[i] {
		if err := b.AddDocument(work.DocID, work.TokenStream); err != nil {
			pb.recordErr(err)
		}
	}
}

func (pb *ParallelBuilder) recordErr(err error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if pb.firstErr == nil {
		pb.firstErr = err
	}
}

func (pb *ParallelBuilder) err() error {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return pb.firstErr
}

// Submit routes docID/tokenStream to the worker docID%NumWorkers owns.
// Routing by doc id (rather than, say, arrival order) means a given
// doc id always lands on the same worker regardless of submission
// timing, and every doc id is handled by exactly one worker's Builder
// — preserving the SPIMI invariant that add_document is called once
// per doc id (spec.md §4.3).
func (pb *ParallelBuilder) Submit(docID uint32, tokenStream []string) error {
	if err := pb.err(); err != nil {
		return err
	}
	w := int(docID) % len(pb.queues)
	pb.queues[w] <- IndexWork{DocID: docID, TokenStream: tokenStream}
	return nil
}

// Finish closes every worker's queue, waits for all workers to drain,
// then flushes and collects each worker's block files and document
// statistics into one combined result for the merger (spec.md §4.4).
// Doc ids are routed round-robin across workers rather than in
// contiguous ranges, so a single worker's flushed block files are not
// individually sorted across the full doc-id range; package merge's
// k-way merge re-sorts each term's gathered postings by doc id rather
// than assuming file order already implies doc-id order, so this does
// not violate the final index's strictly-increasing doc-id invariant.
func (pb *ParallelBuilder) Finish() ([]BlockFile, DocStats, error) {
	for _, q := range pb.queues {
		close(q)
	}
	pb.wg.Wait()

	if err := pb.err(); err != nil {
		return nil, DocStats{}, err
	}

	var allFiles []BlockFile
	merged := DocStats{DocLens: make(map[uint32]uint32)}
	var totalLength uint64
	for _, b := range pb.builders {
		files, stats, err := b.Finish()
		if err != nil {
			return nil, DocStats{}, err
		}
		allFiles = append(allFiles, files...)
		if stats.N > merged.N {
			merged.N = stats.N
		}
		for id, l := range stats.DocLens {
			merged.DocLens[id] = l
			totalLength += uint64(l)
		}
	}
	if merged.N > 0 {
		merged.AvgDL = float64(totalLength) / float64(merged.N)
	}
	return allFiles, merged, nil
}
