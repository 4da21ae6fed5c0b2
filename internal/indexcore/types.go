// Package indexcore implements the TF-IDF inverted index: the term/document
// identifier economy, the two-pass weighting pass with per-document L2
// normalization, and the on-disk index layout with per-term posting files.
package indexcore

// TermID is a dense identifier assigned to a stemmed surface form in the
// order it is first encountered during a build, starting at 0.
type TermID = uint32

// DocID is a dense identifier assigned to an ingested document in ingest
// order, starting at 0.
type DocID = uint32

// InputDoc is the ingest record schema the Index Builder consumes.
type InputDoc struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Body      string  `json:"body"`
	URL       *string `json:"url"`
	Timestamp *string `json:"timestamp"`
}

// DocMeta is the metadata recorded once per document during build.
type DocMeta struct {
	ExternalID string
	Title      string
	URL        *string
	// TextPath is the path, relative to the index root, of the raw body
	// stored for snippet extraction (e.g. "texts/3.txt").
	TextPath string
}

// Posting is a single (doc_id, weight) pair within a term's posting list.
// Weight is the term's normalized TF-IDF weight for that document.
type Posting struct {
	DocID  DocID
	Weight float32
}

// Meta is the single header persisted alongside an index.
type Meta struct {
	NumDocs     uint32
	CreatedAt   string
	Version     uint32
	SmoothedIDF bool
}
