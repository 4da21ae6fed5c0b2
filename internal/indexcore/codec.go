package indexcore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
)

// This file implements the compact binary codec used for dictionary.bin,
// docs.bin, doc_id_map.bin, and the per-term postings files: length-prefixed
// maps/vectors, little-endian primitives throughout, IEEE-754 float32 for
// posting weights. Map-backed payloads are written in sorted key order so
// that encoding the same data twice is byte-identical; Go map iteration
// order is randomized and would otherwise break round-trip determinism. The
// format is intentionally hand-rolled on encoding/binary rather than a
// general-purpose serialization library (see DESIGN.md) and
// must stay byte-compatible within a given Meta.Version.

func writeUint32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func writeOptionalString(buf *bytes.Buffer, s *string) {
	if s == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	writeString(buf, *s)
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var tmp [4]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(tmp[:]), nil
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readOptionalString(r *bytes.Reader) (*string, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if tag == 0 {
		return nil, nil
	}
	s, err := readString(r)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// EncodeDictionary serializes the surface->term_id map together with the df
// vector as a single dictionary.bin payload. Entries are written in sorted
// surface order so repeated encodes of identical data are byte-identical,
// independent of Go's randomized map iteration order.
func EncodeDictionary(surfaceToID map[string]TermID, df []uint32) []byte {
	surfaces := make([]string, 0, len(surfaceToID))
	for surface := range surfaceToID {
		surfaces = append(surfaces, surface)
	}
	sort.Strings(surfaces)

	var buf bytes.Buffer
	writeUint32(&buf, uint32(len(surfaceToID)))
	for _, surface := range surfaces {
		writeString(&buf, surface)
		writeUint32(&buf, surfaceToID[surface])
	}
	writeUint32(&buf, uint32(len(df)))
	for _, v := range df {
		writeUint32(&buf, v)
	}
	return buf.Bytes()
}

// DecodeDictionary is the inverse of EncodeDictionary.
func DecodeDictionary(data []byte) (map[string]TermID, []uint32, error) {
	r := bytes.NewReader(data)
	n, err := readUint32(r)
	if err != nil {
		return nil, nil, fmt.Errorf("decode dictionary: %w", err)
	}
	surfaceToID := make(map[string]TermID, n)
	for i := uint32(0); i < n; i++ {
		surface, err := readString(r)
		if err != nil {
			return nil, nil, fmt.Errorf("decode dictionary entry %d: %w", i, err)
		}
		id, err := readUint32(r)
		if err != nil {
			return nil, nil, fmt.Errorf("decode dictionary entry %d: %w", i, err)
		}
		surfaceToID[surface] = id
	}
	dfLen, err := readUint32(r)
	if err != nil {
		return nil, nil, fmt.Errorf("decode df length: %w", err)
	}
	df := make([]uint32, dfLen)
	for i := range df {
		v, err := readUint32(r)
		if err != nil {
			return nil, nil, fmt.Errorf("decode df entry %d: %w", i, err)
		}
		df[i] = v
	}
	return surfaceToID, df, nil
}

// EncodeDocs serializes the doc_id -> DocMeta map. Entries are written in
// ascending doc_id order so repeated encodes of identical data are
// byte-identical, independent of Go's randomized map iteration order.
func EncodeDocs(docs map[DocID]DocMeta) []byte {
	ids := make([]DocID, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var buf bytes.Buffer
	writeUint32(&buf, uint32(len(docs)))
	for _, id := range ids {
		meta := docs[id]
		writeUint32(&buf, id)
		writeString(&buf, meta.ExternalID)
		writeString(&buf, meta.Title)
		writeOptionalString(&buf, meta.URL)
		writeString(&buf, meta.TextPath)
	}
	return buf.Bytes()
}

// DecodeDocs is the inverse of EncodeDocs.
func DecodeDocs(data []byte) (map[DocID]DocMeta, error) {
	r := bytes.NewReader(data)
	n, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("decode docs: %w", err)
	}
	docs := make(map[DocID]DocMeta, n)
	for i := uint32(0); i < n; i++ {
		id, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("decode doc entry %d: %w", i, err)
		}
		externalID, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("decode doc entry %d: %w", i, err)
		}
		title, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("decode doc entry %d: %w", i, err)
		}
		url, err := readOptionalString(r)
		if err != nil {
			return nil, fmt.Errorf("decode doc entry %d: %w", i, err)
		}
		textPath, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("decode doc entry %d: %w", i, err)
		}
		docs[id] = DocMeta{ExternalID: externalID, Title: title, URL: url, TextPath: textPath}
	}
	return docs, nil
}

// EncodeDocIDMap serializes the external_id -> doc_id map. Entries are
// written in sorted external_id order so repeated encodes of identical data
// are byte-identical, independent of Go's randomized map iteration order.
func EncodeDocIDMap(m map[string]DocID) []byte {
	externalIDs := make([]string, 0, len(m))
	for externalID := range m {
		externalIDs = append(externalIDs, externalID)
	}
	sort.Strings(externalIDs)

	var buf bytes.Buffer
	writeUint32(&buf, uint32(len(m)))
	for _, externalID := range externalIDs {
		writeString(&buf, externalID)
		writeUint32(&buf, m[externalID])
	}
	return buf.Bytes()
}

// DecodeDocIDMap is the inverse of EncodeDocIDMap.
func DecodeDocIDMap(data []byte) (map[string]DocID, error) {
	r := bytes.NewReader(data)
	n, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("decode doc_id_map: %w", err)
	}
	m := make(map[string]DocID, n)
	for i := uint32(0); i < n; i++ {
		externalID, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("decode doc_id_map entry %d: %w", i, err)
		}
		id, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("decode doc_id_map entry %d: %w", i, err)
		}
		m[externalID] = id
	}
	return m, nil
}

// EncodePostings serializes an ordered posting list.
func EncodePostings(postings []Posting) []byte {
	var buf bytes.Buffer
	writeUint32(&buf, uint32(len(postings)))
	for _, p := range postings {
		writeUint32(&buf, p.DocID)
		writeUint32(&buf, math.Float32bits(p.Weight))
	}
	return buf.Bytes()
}

// DecodePostings is the inverse of EncodePostings.
func DecodePostings(data []byte) ([]Posting, error) {
	r := bytes.NewReader(data)
	n, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("decode postings: %w", err)
	}
	postings := make([]Posting, n)
	for i := range postings {
		docID, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("decode posting %d: %w", i, err)
		}
		bits, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("decode posting %d: %w", i, err)
		}
		postings[i] = Posting{DocID: docID, Weight: math.Float32frombits(bits)}
	}
	return postings, nil
}
