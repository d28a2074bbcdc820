// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/docent/core"
)

// Wire layouts are positional. Append new fields at the end only.

// MarshalDocument serializes an EnrichedDocument to bytes.
func MarshalDocument(doc *core.EnrichedDocument) []byte {
	buf := make([]byte, sizeDocument(doc))
	marshalDocument(doc, buf)
	return buf
}

// UnmarshalDocument deserializes an EnrichedDocument from bytes.
func UnmarshalDocument(data []byte) (*core.EnrichedDocument, error) {
	doc, _, err := unmarshalDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return doc, nil
}

// MarshalQA serializes a QA entry to bytes.
func MarshalQA(qa *core.QA) []byte {
	buf := make([]byte, sizeQA(qa))
	marshalQA(qa, buf)
	return buf
}

// UnmarshalQA deserializes a QA entry from bytes.
func UnmarshalQA(data []byte) (*core.QA, error) {
	qa, _, err := unmarshalQA(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return qa, nil
}

// MarshalCheckpoint serializes a Checkpoint to bytes.
func MarshalCheckpoint(cp *core.Checkpoint) []byte {
	n := ord.String.Size(cp.ProcessorType) +
		ord.String.Size(cp.Position) +
		varint.Int.Size(cp.Processed) +
		varint.Int64.Size(cp.UpdatedAt.UnixMicro())
	buf := make([]byte, n)
	n = ord.String.Marshal(cp.ProcessorType, buf)
	n += ord.String.Marshal(cp.Position, buf[n:])
	n += varint.Int.Marshal(cp.Processed, buf[n:])
	varint.Int64.Marshal(cp.UpdatedAt.UnixMicro(), buf[n:])
	return buf
}

// UnmarshalCheckpoint deserializes a Checkpoint from bytes.
func UnmarshalCheckpoint(data []byte) (*core.Checkpoint, error) {
	var (
		cp core.Checkpoint
		r  = reader{bs: data}
	)
	cp.ProcessorType = r.string()
	cp.Position = r.string()
	cp.Processed = r.int()
	if micros := r.int64(); r.err == nil {
		cp.UpdatedAt = time.UnixMicro(micros).UTC()
	}
	if r.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, r.err)
	}
	return &cp, nil
}

// MarshalString serializes a single string, used for index values.
func MarshalString(s string) []byte {
	buf := make([]byte, ord.String.Size(s))
	ord.String.Marshal(s, buf)
	return buf
}

// UnmarshalString deserializes a single string.
func UnmarshalString(data []byte) (string, error) {
	s, _, err := ord.String.Unmarshal(data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return s, nil
}

func sizeDocument(d *core.EnrichedDocument) int {
	n := ord.String.Size(string(d.ID))
	n += ord.String.Size(d.SourcePath)
	n += ord.String.Size(string(d.Format))
	n += varint.Int.Size(len(d.RawText))
	for _, seg := range d.RawText {
		n += ord.String.Size(seg.Label) + ord.String.Size(seg.Text)
	}
	n += sizeStringMap(d.ExtractionMetadata)
	n += ord.String.Size(d.ContentHash)
	n += ord.String.Size(d.Title)
	n += sizeStrings(d.Keywords)
	n += sizeStrings(d.Topics)
	n += ord.String.Size(d.Summary)
	n += varint.Int.Size(d.EnrichmentVersion)
	n += varint.Int64.Size(d.IndexedAt.UnixMicro())
	return n
}

func marshalDocument(d *core.EnrichedDocument, bs []byte) int {
	n := ord.String.Marshal(string(d.ID), bs)
	n += ord.String.Marshal(d.SourcePath, bs[n:])
	n += ord.String.Marshal(string(d.Format), bs[n:])
	n += varint.Int.Marshal(len(d.RawText), bs[n:])
	for _, seg := range d.RawText {
		n += ord.String.Marshal(seg.Label, bs[n:])
		n += ord.String.Marshal(seg.Text, bs[n:])
	}
	n += marshalStringMap(d.ExtractionMetadata, bs[n:])
	n += ord.String.Marshal(d.ContentHash, bs[n:])
	n += ord.String.Marshal(d.Title, bs[n:])
	n += marshalStrings(d.Keywords, bs[n:])
	n += marshalStrings(d.Topics, bs[n:])
	n += ord.String.Marshal(d.Summary, bs[n:])
	n += varint.Int.Marshal(d.EnrichmentVersion, bs[n:])
	n += varint.Int64.Marshal(d.IndexedAt.UnixMicro(), bs[n:])
	return n
}

func unmarshalDocument(bs []byte) (*core.EnrichedDocument, int, error) {
	var (
		d core.EnrichedDocument
		r = reader{bs: bs}
	)
	d.ID = core.DocumentID(r.string())
	d.SourcePath = r.string()
	d.Format = core.Format(r.string())
	count := r.length()
	if r.err == nil && count > 0 {
		d.RawText = make([]core.Segment, 0, count)
		for i := 0; i < count && r.err == nil; i++ {
			label := r.string()
			text := r.string()
			d.RawText = append(d.RawText, core.Segment{Label: label, Text: text})
		}
	}
	d.ExtractionMetadata = r.stringMap()
	d.ContentHash = r.string()
	d.Title = r.string()
	d.Keywords = r.strings()
	d.Topics = r.strings()
	d.Summary = r.string()
	d.EnrichmentVersion = r.int()
	if micros := r.int64(); r.err == nil {
		d.IndexedAt = time.UnixMicro(micros).UTC()
	}
	if r.err != nil {
		return nil, r.n, r.err
	}
	return &d, r.n, nil
}

func sizeQA(qa *core.QA) int {
	n := ord.String.Size(qa.ID)
	n += ord.String.Size(qa.Question)
	n += ord.String.Size(qa.Answer)
	n += varint.Int.Size(len(qa.DocumentIDs))
	for _, id := range qa.DocumentIDs {
		n += ord.String.Size(string(id))
	}
	n += varint.Int64.Size(qa.Timestamp.UnixMicro())
	return n
}

func marshalQA(qa *core.QA, bs []byte) int {
	n := ord.String.Marshal(qa.ID, bs)
	n += ord.String.Marshal(qa.Question, bs[n:])
	n += ord.String.Marshal(qa.Answer, bs[n:])
	n += varint.Int.Marshal(len(qa.DocumentIDs), bs[n:])
	for _, id := range qa.DocumentIDs {
		n += ord.String.Marshal(string(id), bs[n:])
	}
	n += varint.Int64.Marshal(qa.Timestamp.UnixMicro(), bs[n:])
	return n
}

func unmarshalQA(bs []byte) (*core.QA, int, error) {
	var (
		qa core.QA
		r  = reader{bs: bs}
	)
	qa.ID = r.string()
	qa.Question = r.string()
	qa.Answer = r.string()
	for _, id := range r.strings() {
		qa.DocumentIDs = append(qa.DocumentIDs, core.DocumentID(id))
	}
	if micros := r.int64(); r.err == nil {
		qa.Timestamp = time.UnixMicro(micros).UTC()
	}
	if r.err != nil {
		return nil, r.n, r.err
	}
	return &qa, r.n, nil
}

func sizeStrings(ss []string) int {
	n := varint.Int.Size(len(ss))
	for _, s := range ss {
		n += ord.String.Size(s)
	}
	return n
}

func marshalStrings(ss []string, bs []byte) int {
	n := varint.Int.Marshal(len(ss), bs)
	for _, s := range ss {
		n += ord.String.Marshal(s, bs[n:])
	}
	return n
}

// Map entries are written in sorted key order so equal maps encode identically.
func sizeStringMap(m map[string]string) int {
	n := varint.Int.Size(len(m))
	for k, v := range m {
		n += ord.String.Size(k) + ord.String.Size(v)
	}
	return n
}

func marshalStringMap(m map[string]string, bs []byte) int {
	n := varint.Int.Marshal(len(m), bs)
	for _, k := range slices.Sorted(maps.Keys(m)) {
		n += ord.String.Marshal(k, bs[n:])
		n += ord.String.Marshal(m[k], bs[n:])
	}
	return n
}

// reader threads an offset and the first error through a sequence of
// unmarshal calls. After an error every accessor returns the zero value.
type reader struct {
	bs  []byte
	n   int
	err error
}

func (r *reader) string() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) int() int {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) int64() int64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

// length reads a collection length and rejects values that cannot fit in
// the remaining input.
func (r *reader) length() int {
	l := r.int()
	if r.err == nil && (l < 0 || l > len(r.bs)-r.n) {
		r.err = ErrTruncatedData
	}
	return l
}

func (r *reader) strings() []string {
	count := r.length()
	if r.err != nil || count == 0 {
		return nil
	}
	out := make([]string, 0, count)
	for i := 0; i < count && r.err == nil; i++ {
		out = append(out, r.string())
	}
	return out
}

func (r *reader) stringMap() map[string]string {
	count := r.length()
	if r.err != nil {
		return nil
	}
	out := make(map[string]string, count)
	for i := 0; i < count && r.err == nil; i++ {
		k := r.string()
		v := r.string()
		out[k] = v
	}
	return out
}
