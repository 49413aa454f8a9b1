// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devserver

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// =============================================================================
// RETRIEVAL TUNING
// =============================================================================

const (
	// SentencesPerChunk is how many sentences one chunk holds.
	SentencesPerChunk = 4

	// MinScore is the overlap a chunk must beat to be retrieved.
	MinScore = 0.1

	// TopChunks is the number of chunks joined into an answer.
	TopChunks = 5

	// TopSources is the number of chunks cited as sources.
	TopSources = 3

	// HighConfidence is the average score labelled "High".
	HighConfidence = 0.6
)

// NoMatchAnswer is returned when no chunk scores above MinScore.
const NoMatchAnswer = "No relevant information found in the uploaded document."

var (
	tokenPattern    = regexp.MustCompile(`[a-z0-9']+`)
	spacePattern    = regexp.MustCompile(`\s+`)
	sentencePattern = regexp.MustCompile(`[.!?]\s+`)
)

// Result is a synthesized answer.
type Result struct {
	Answer     string
	Confidence string
	Sources    []string
}

// Answerer turns a question into an answer over a user's documents.
type Answerer interface {
	Ingest(ctx context.Context, userID, source string, doc []byte) (int, error)
	Answer(ctx context.Context, userID, query string) (Result, error)
}

// KeywordAnswerer scores chunks by token overlap with the question and
// answers with the best matching text.
type KeywordAnswerer struct {
	store *Store
}

// NewKeywordAnswerer returns an answerer backed by store.
func NewKeywordAnswerer(store *Store) *KeywordAnswerer {
	return &KeywordAnswerer{store: store}
}

// Ingest splits a UTF-8 text document into chunks. Form feeds separate pages.
// It returns the number of chunks indexed.
func (a *KeywordAnswerer) Ingest(ctx context.Context, userID, source string, doc []byte) (int, error) {
	if !utf8.Valid(doc) {
		return 0, fmt.Errorf("%s is not a UTF-8 text document", source)
	}
	chunks := ChunkDocument(source, string(doc))
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%s contains no readable text", source)
	}
	if err := a.store.ReplaceChunks(ctx, userID, source, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

type scored struct {
	score float64
	chunk Chunk
}

// Answer retrieves the best chunks for query.
func (a *KeywordAnswerer) Answer(ctx context.Context, userID, query string) (Result, error) {
	chunks, err := a.store.Chunks(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	q := tokenize(query)
	denom := float64(max(len(q), 1))
	var hits []scored
	for _, c := range chunks {
		d := tokenize(c.Text)
		overlap := 0
		for tok := range q {
			if _, ok := d[tok]; ok {
				overlap++
			}
		}
		if s := float64(overlap) / denom; s > MinScore {
			hits = append(hits, scored{score: s, chunk: c})
		}
	}

	if len(hits) == 0 {
		return Result{Answer: NoMatchAnswer, Confidence: "Low (0.00)", Sources: []string{}}, nil
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > TopChunks {
		hits = hits[:TopChunks]
	}

	texts := make([]string, len(hits))
	var sum float64
	for i, h := range hits {
		texts[i] = h.chunk.Text
		sum += h.score
	}
	avg := sum / float64(len(hits))
	label := "Medium"
	if avg >= HighConfidence {
		label = "High"
	}

	sources := make([]string, 0, TopSources)
	seen := make(map[string]bool)
	for _, h := range hits[:min(len(hits), TopSources)] {
		src := fmt.Sprintf("%s — Page %d (Chunk %d)", h.chunk.Source, h.chunk.Page, h.chunk.Index)
		if !seen[src] {
			seen[src] = true
			sources = append(sources, src)
		}
	}

	return Result{
		Answer:     strings.Join(texts, " "),
		Confidence: fmt.Sprintf("%s (%.2f)", label, avg),
		Sources:    sources,
	}, nil
}

// ChunkDocument splits doc into pages on form feeds and each page into runs
// of SentencesPerChunk sentences. Blank pages are skipped but still counted.
func ChunkDocument(source, doc string) []Chunk {
	var out []Chunk
	for i, page := range strings.Split(doc, "\f") {
		text := cleanText(page)
		if text == "" {
			continue
		}
		sentences := splitSentences(text)
		for j := 0; j < len(sentences); j += SentencesPerChunk {
			end := min(j+SentencesPerChunk, len(sentences))
			out = append(out, Chunk{
				Source: source,
				Page:   i + 1,
				Index:  j/SentencesPerChunk + 1,
				Text:   strings.Join(sentences[j:end], " "),
			})
		}
	}
	return out
}

func tokenize(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		out[tok] = struct{}{}
	}
	return out
}

func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\x00", " ")
	return strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
}

// splitSentences breaks after terminal punctuation followed by whitespace.
// Input has already been collapsed to single spaces.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for _, loc := range sentencePattern.FindAllStringIndex(text, -1) {
		out = append(out, text[start:loc[0]+1])
		start = loc[1]
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}
