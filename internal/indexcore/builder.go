package indexcore

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/kestrel-search/kestrel/internal/analyzer"
)

// Builder accumulates documents and produces a persisted index. It is
// build-time only; an ephemeral Header is reconstructed via LoadHeader for
// queries. The two-pass weighting order below is load-bearing: term
// frequency, inverse document frequency and the per-document L2 norm can only
// be computed once every document has been tokenized, so raw term counts are
// buffered in postingsRaw and only converted to normalized weights in Build.
type Builder struct {
	paths       Paths
	dictionary  *Dictionary
	docs        *DocStore
	docIDMap    map[string]DocID
	postingsRaw map[TermID]map[DocID]uint32
	smoothedIDF bool
}

// NewBuilder creates a Builder that will persist to root.
func NewBuilder(root string, smoothedIDF bool) *Builder {
	return &Builder{
		paths:       NewPaths(root),
		dictionary:  NewDictionary(),
		docs:        NewDocStore(),
		docIDMap:    make(map[string]DocID),
		postingsRaw: make(map[TermID]map[DocID]uint32),
		smoothedIDF: smoothedIDF,
	}
}

// AddDocument tokenizes doc's body, records its raw per-term counts and
// writes its raw body to the texts/ directory for later snippet extraction.
func (b *Builder) AddDocument(doc InputDoc) error {
	if err := os.MkdirAll(b.paths.TextsDir(), indexDirPermissions); err != nil {
		return fmt.Errorf("create texts dir: %w", err)
	}

	nextID := b.docs.PeekNextID()
	docID := b.docs.Register(DocMeta{
		ExternalID: doc.ID,
		Title:      doc.Title,
		URL:        doc.URL,
		TextPath:   TextPath(nextID),
	})
	b.docIDMap[doc.ID] = docID

	tokens := analyzer.Analyze(doc.Body)
	seen := make(map[TermID]struct{}, len(tokens))
	for _, tok := range tokens {
		termID := b.dictionary.Intern(tok.Stem)
		if _, ok := b.postingsRaw[termID]; !ok {
			b.postingsRaw[termID] = make(map[DocID]uint32)
		}
		b.postingsRaw[termID][docID]++
		if _, dup := seen[termID]; !dup {
			b.dictionary.IncrementDF(termID)
			seen[termID] = struct{}{}
		}
	}

	textAbs := filepath.Join(b.paths.Root, TextPath(docID))
	if err := os.WriteFile(textAbs, []byte(doc.Body), indexFilePermissions); err != nil {
		return fmt.Errorf("write text for doc %d: %w", docID, err)
	}
	return nil
}

// Build runs the two-pass TF-IDF weighting pass and persists the full index.
// Pass one computes tf*idf per posting and accumulates each document's squared
// L2 norm; pass two divides every weight by its document's norm (or 1.0 for
// an all-zero document), sorts each term's postings by ascending doc id, and
// writes them out.
func (b *Builder) Build(now time.Time) error {
	numDocs := uint32(b.docs.Count())
	n := numDocs
	if n == 0 {
		n = 1
	}

	docNormSq := make([]float64, numDocs)
	weighted := make(map[TermID]map[DocID]float64, len(b.postingsRaw))

	for termID, perDoc := range b.postingsRaw {
		dfT := b.dictionary.DF(termID)
		var idf float64
		if b.smoothedIDF {
			idf = math.Log(1.0 + float64(n)/float64(dfT))
		} else {
			idf = math.Log(float64(n) / float64(dfT))
		}

		weightedDoc := make(map[DocID]float64, len(perDoc))
		for docID, tfRaw := range perDoc {
			var tf float64
			if tfRaw > 0 {
				tf = 1.0 + math.Log(float64(tfRaw))
			}
			tfidf := tf * idf
			docNormSq[docID] += tfidf * tfidf
			weightedDoc[docID] = tfidf
		}
		weighted[termID] = weightedDoc
	}

	docNorm := make([]float64, numDocs)
	for i, sq := range docNormSq {
		norm := math.Sqrt(sq)
		if norm == 0 {
			norm = 1.0
		}
		docNorm[i] = norm
	}

	for termID, weightedDoc := range weighted {
		postings := make([]Posting, 0, len(weightedDoc))
		for docID, tfidf := range weightedDoc {
			postings = append(postings, Posting{
				DocID:  docID,
				Weight: float32(tfidf / docNorm[docID]),
			})
		}
		sortPostingsByDocID(postings)
		if err := SavePostingsForTerm(b.paths, termID, postings); err != nil {
			return fmt.Errorf("save postings for term %d: %w", termID, err)
		}
	}

	if err := SaveDictionary(b.paths, b.dictionary); err != nil {
		return fmt.Errorf("save dictionary: %w", err)
	}
	if err := SaveDocs(b.paths, b.docs); err != nil {
		return fmt.Errorf("save docs: %w", err)
	}
	if err := SaveDocIDMap(b.paths, b.docIDMap); err != nil {
		return fmt.Errorf("save doc id map: %w", err)
	}
	if err := SaveMeta(b.paths, NewMeta(numDocs, now, b.smoothedIDF)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	return nil
}

// NumDocs returns the number of documents registered so far.
func (b *Builder) NumDocs() int {
	return b.docs.Count()
}

// NumTerms returns the number of distinct terms interned so far.
func (b *Builder) NumTerms() int {
	return b.dictionary.Len()
}

func sortPostingsByDocID(postings []Posting) {
	sort.Slice(postings, func(i, j int) bool {
		return postings[i].DocID < postings[j].DocID
	})
}
