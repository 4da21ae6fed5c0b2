package indexcore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	indexDirPermissions  = 0755
	indexFilePermissions = 0644

	// formatVersion is the on-disk index format version, persisted in meta.json.
	formatVersion = 1
)

// Paths resolves the fixed on-disk layout rooted at a single index directory.
type Paths struct {
	Root string
}

// NewPaths builds a Paths rooted at root.
func NewPaths(root string) Paths {
	return Paths{Root: root}
}

func (p Paths) dictionary() string { return filepath.Join(p.Root, "dictionary.bin") }
func (p Paths) docs() string       { return filepath.Join(p.Root, "docs.bin") }
func (p Paths) meta() string       { return filepath.Join(p.Root, "meta.json") }
func (p Paths) docIDMap() string   { return filepath.Join(p.Root, "doc_id_map.bin") }
func (p Paths) postingsDir() string {
	return filepath.Join(p.Root, "postings")
}

// TextsDir is the directory holding raw document bodies for snippet extraction.
func (p Paths) TextsDir() string {
	return filepath.Join(p.Root, "texts")
}

// TextPath returns the path (relative to the index root) of a document's raw
// body, matching the "texts/{doc_id}.txt" layout.
func TextPath(id DocID) string {
	return filepath.Join("texts", fmt.Sprintf("%d.txt", id))
}

func (p Paths) postingsPath(id TermID) string {
	return filepath.Join(p.postingsDir(), fmt.Sprintf("%08d.postings.bin", id))
}

// writeFileAtomic writes data to path via a temp-file-plus-fsync-plus-rename
// sequence so a reader never observes a partially written index file.
func writeFileAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, indexFilePermissions); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	f, err := os.OpenFile(tempPath, os.O_RDWR, indexFilePermissions)
	if err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("open temp file for sync: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	f.Close()

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Header is the eagerly loaded portion of an index: dictionary, docstore and
// meta. Posting lists are loaded lazily, per term, at query time.
type Header struct {
	Paths      Paths
	Dictionary *Dictionary
	Docs       *DocStore
	DocIDMap   map[string]DocID
	Meta       Meta
}

// SaveMeta persists the meta.json header, matching the original's
// pretty-printed JSON encoding.
func SaveMeta(paths Paths, meta Meta) error {
	if err := os.MkdirAll(paths.Root, indexDirPermissions); err != nil {
		return fmt.Errorf("create index root: %w", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	return writeFileAtomic(paths.meta(), data)
}

// LoadMeta reads meta.json.
func LoadMeta(paths Paths) (Meta, error) {
	data, err := os.ReadFile(paths.meta())
	if err != nil {
		return Meta{}, fmt.Errorf("read meta: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("unmarshal meta: %w", err)
	}
	return meta, nil
}

// SaveDictionary persists dictionary.bin.
func SaveDictionary(paths Paths, dict *Dictionary) error {
	if err := os.MkdirAll(paths.Root, indexDirPermissions); err != nil {
		return fmt.Errorf("create index root: %w", err)
	}
	surfaceToID, df := dict.Surfaces()
	return writeFileAtomic(paths.dictionary(), EncodeDictionary(surfaceToID, df))
}

// SaveDocs persists docs.bin.
func SaveDocs(paths Paths, docs *DocStore) error {
	return writeFileAtomic(paths.docs(), EncodeDocs(docs.All()))
}

// SaveDocIDMap persists doc_id_map.bin.
func SaveDocIDMap(paths Paths, m map[string]DocID) error {
	return writeFileAtomic(paths.docIDMap(), EncodeDocIDMap(m))
}

// SavePostingsForTerm persists a single term's posting file under postings/.
func SavePostingsForTerm(paths Paths, id TermID, postings []Posting) error {
	if err := os.MkdirAll(paths.postingsDir(), indexDirPermissions); err != nil {
		return fmt.Errorf("create postings dir: %w", err)
	}
	return writeFileAtomic(paths.postingsPath(id), EncodePostings(postings))
}

// LoadPostingsForTerm reads a single term's posting list.
func LoadPostingsForTerm(paths Paths, id TermID) ([]Posting, error) {
	data, err := os.ReadFile(paths.postingsPath(id))
	if err != nil {
		return nil, fmt.Errorf("read postings for term %d: %w", id, err)
	}
	return DecodePostings(data)
}

// LoadHeader eagerly loads the dictionary, doc store, doc id map and meta
// required to serve queries, leaving posting lists to be loaded lazily.
func LoadHeader(paths Paths) (*Header, error) {
	dictData, err := os.ReadFile(paths.dictionary())
	if err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	surfaceToID, df, err := DecodeDictionary(dictData)
	if err != nil {
		return nil, fmt.Errorf("decode dictionary: %w", err)
	}

	docsData, err := os.ReadFile(paths.docs())
	if err != nil {
		return nil, fmt.Errorf("read docs: %w", err)
	}
	docs, err := DecodeDocs(docsData)
	if err != nil {
		return nil, fmt.Errorf("decode docs: %w", err)
	}

	docIDMapData, err := os.ReadFile(paths.docIDMap())
	if err != nil {
		return nil, fmt.Errorf("read doc_id_map: %w", err)
	}
	docIDMap, err := DecodeDocIDMap(docIDMapData)
	if err != nil {
		return nil, fmt.Errorf("decode doc_id_map: %w", err)
	}

	meta, err := LoadMeta(paths)
	if err != nil {
		return nil, fmt.Errorf("load meta: %w", err)
	}

	return &Header{
		Paths:      paths,
		Dictionary: LoadDictionary(surfaceToID, df),
		Docs:       LoadDocStore(docs),
		DocIDMap:   docIDMap,
		Meta:       meta,
	}, nil
}

// NewMeta builds a Meta header for a freshly built index. now is taken as a
// parameter rather than computed internally so builds stay deterministic and
// testable.
func NewMeta(numDocs uint32, now time.Time, smoothedIDF bool) Meta {
	return Meta{
		NumDocs:     numDocs,
		CreatedAt:   now.UTC().Format(time.RFC3339),
		Version:     formatVersion,
		SmoothedIDF: smoothedIDF,
	}
}
