// Package query implements the ranked retrieval path over a persisted
// indexcore index: tokenizing a query, building its TF-IDF vector, streaming
// matching posting lists and scoring documents by cosine similarity.
package query

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kestrel-search/kestrel/internal/analyzer"
	"github.com/kestrel-search/kestrel/internal/indexcore"
)

const (
	// DefaultK is the result count used when a caller does not specify one.
	DefaultK = 10
	// MinK and MaxK bound the k a caller may request; values outside this
	// range are clamped rather than rejected.
	MinK = 1
	MaxK = 100
)

// Engine serves searches against an index loaded once at startup. Query-time
// IDF is always unsmoothed, independent of how the underlying index was
// built; see DESIGN.md for why that asymmetry is preserved rather than
// "fixed" to match the build-time flag.
type Engine struct {
	header      *indexcore.Header
	concurrency int
}

// NewEngine wraps a loaded index header. concurrency bounds how many posting
// files are read in parallel during a single search; a value <= 1 disables
// concurrent loading.
func NewEngine(header *indexcore.Header, concurrency int) *Engine {
	return &Engine{header: header, concurrency: concurrency}
}

// Hit is a single ranked result.
type Hit struct {
	DocID   indexcore.DocID `json:"doc_id"`
	Score   float32         `json:"score"`
	Title   string          `json:"title"`
	URL     *string         `json:"url"`
	Snippet *string         `json:"snippet"`
}

// Response is the full result of a search.
type Response struct {
	Query     string        `json:"query"`
	TookMS    int64         `json:"took_ms"`
	TookS     float64       `json:"took_s"`
	TotalHits int           `json:"total_hits"`
	Results   []Hit         `json:"results"`
	Elapsed   time.Duration `json:"-"`
}

// Search runs the eight-step ranked retrieval algorithm: tokenize, build a
// raw term-frequency map over known terms only, weight it with
// always-unsmoothed IDF, L2-normalize, stream matching posting lists,
// accumulate cosine scores, rank, then attach snippets to the top k.
// Documents with equal scores are ordered by ascending doc id. Every known
// query term's posting list is read into memory in full; no cap bounds the
// size of those loads.
func (e *Engine) Search(ctx context.Context, q string, k int) (Response, error) {
	start := time.Now()
	if k < MinK {
		k = MinK
	}
	if k > MaxK {
		k = MaxK
	}

	tokens := analyzer.Analyze(q)
	tfRaw := make(map[indexcore.TermID]uint32)
	for _, tok := range tokens {
		if id, ok := e.header.Dictionary.Lookup(tok.Stem); ok {
			tfRaw[id]++
		}
	}

	if len(tfRaw) == 0 {
		elapsed := time.Since(start)
		return Response{
			Query:     q,
			TookMS:    elapsed.Milliseconds(),
			TookS:     elapsed.Seconds(),
			TotalHits: 0,
			Results:   []Hit{},
			Elapsed:   elapsed,
		}, nil
	}

	n := e.header.Meta.NumDocs
	if n == 0 {
		n = 1
	}

	qWeights := make(map[indexcore.TermID]float64, len(tfRaw))
	for id, raw := range tfRaw {
		var tf float64
		if raw > 0 {
			tf = 1.0 + math.Log(float64(raw))
		}
		dfT := e.header.Dictionary.DF(id)
		idf := math.Log(float64(n) / float64(dfT))
		qWeights[id] = tf * idf
	}
	var qNorm float64
	for _, w := range qWeights {
		qNorm += w * w
	}
	qNorm = math.Sqrt(qNorm)
	if qNorm == 0 {
		qNorm = 1.0
	}
	for id := range qWeights {
		qWeights[id] /= qNorm
	}

	postingsByTerm, err := e.loadPostings(ctx, qWeights)
	if err != nil {
		return Response{}, fmt.Errorf("load postings: %w", err)
	}

	scores := make(map[indexcore.DocID]float32)
	for id, qW := range qWeights {
		for _, p := range postingsByTerm[id] {
			scores[p.DocID] += p.Weight * float32(qW)
		}
	}

	type scored struct {
		docID indexcore.DocID
		score float32
	}
	ranked := make([]scored, 0, len(scores))
	for docID, score := range scores {
		ranked = append(ranked, scored{docID: docID, score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].docID < ranked[j].docID
	})

	totalHits := len(ranked)
	if len(ranked) > k {
		ranked = ranked[:k]
	}

	rawTerms := RawQueryTerms(q)
	results := make([]Hit, 0, len(ranked))
	for _, r := range ranked {
		meta, ok := e.header.Docs.Get(r.docID)
		if !ok {
			continue
		}
		var snippet *string
		if meta.TextPath != "" {
			if s, err := snippetFromFile(e.header.Paths.Root, meta.TextPath, rawTerms); err == nil {
				snippet = s
			}
		}
		results = append(results, Hit{
			DocID:   r.docID,
			Score:   r.score,
			Title:   meta.Title,
			URL:     meta.URL,
			Snippet: snippet,
		})
	}

	elapsed := time.Since(start)
	return Response{
		Query:     q,
		TookMS:    elapsed.Milliseconds(),
		TookS:     elapsed.Seconds(),
		TotalHits: totalHits,
		Results:   results,
		Elapsed:   elapsed,
	}, nil
}

// loadPostings reads the posting list for every term in qWeights. When the
// engine is configured with concurrency > 1, loads fan out across an
// errgroup; each goroutine sends its term's postings over a buffered channel
// and only the calling goroutine fills the result map, after Wait, so the map
// needs no locking. A term whose posting file cannot be read is left out.
func (e *Engine) loadPostings(ctx context.Context, qWeights map[indexcore.TermID]float64) (map[indexcore.TermID][]indexcore.Posting, error) {
	result := make(map[indexcore.TermID][]indexcore.Posting, len(qWeights))

	if e.concurrency <= 1 {
		for id := range qWeights {
			postings, err := indexcore.LoadPostingsForTerm(e.header.Paths, id)
			if err != nil {
				continue
			}
			result[id] = postings
		}
		return result, nil
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	type loaded struct {
		id       indexcore.TermID
		postings []indexcore.Posting
	}
	loadedCh := make(chan loaded, len(qWeights))
	for id := range qWeights {
		id := id
		g.Go(func() error {
			postings, err := indexcore.LoadPostingsForTerm(e.header.Paths, id)
			if err != nil {
				loadedCh <- loaded{id: id}
				return nil
			}
			loadedCh <- loaded{id: id, postings: postings}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(loadedCh)
	for l := range loadedCh {
		if l.postings != nil {
			result[l.id] = l.postings
		}
	}
	return result, nil
}
