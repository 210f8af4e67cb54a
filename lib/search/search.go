// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"cmp"
	"math"
	"regexp"
	"slices"
	"strings"

	"github.com/bureau-foundation/wasteland/lib/schema"
)

// Okapi BM25 parameters.
const (
	k1      = 1.2
	b       = 0.75
	epsilon = 0.25
)

// Field weights: a title match counts three times a body match.
const (
	titleWeight   = 3
	idWeight      = 2
	contentWeight = 1
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// Hit is one ranked task.
type Hit struct {
	Task  schema.Task
	Score float64
}

// Index is an immutable BM25 index over task revisions. It is safe
// for concurrent Search calls.
type Index struct {
	tasks       []schema.Task
	frequencies []map[string]int
	lengths     []int
	average     float64
	idf         map[string]float64
}

// NewIndex indexes tasks. Callers normally pass [schema.LatestByD]
// output so each task is indexed once.
func NewIndex(tasks []schema.Task) *Index {
	index := &Index{
		tasks:       tasks,
		frequencies: make([]map[string]int, len(tasks)),
		lengths:     make([]int, len(tasks)),
		idf:         make(map[string]float64),
	}

	documentFrequency := make(map[string]int)
	total := 0
	for i, task := range tasks {
		tokens := taskTokens(task)
		index.lengths[i] = len(tokens)
		total += len(tokens)

		frequency := make(map[string]int)
		for _, token := range tokens {
			if frequency[token] == 0 {
				documentFrequency[token]++
			}
			frequency[token]++
		}
		index.frequencies[i] = frequency
	}
	if len(tasks) > 0 {
		index.average = float64(total) / float64(len(tasks))
	}

	count := float64(len(tasks))
	for term, frequency := range documentFrequency {
		idf := math.Log(1 + (count-float64(frequency)+0.5)/(float64(frequency)+0.5))
		if idf < 0 {
			idf = epsilon
		}
		index.idf[term] = idf
	}
	return index
}

// Len returns the number of indexed tasks.
func (index *Index) Len() int { return len(index.tasks) }

// Search returns up to limit tasks matching query, best first. Equal
// scores are ordered by priority, then newest first. A limit of zero
// or less returns every match.
func (index *Index) Search(query string, limit int) []Hit {
	terms := Tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	var hits []Hit
	for i, task := range index.tasks {
		if score := index.score(i, terms); score > 0 {
			hits = append(hits, Hit{Task: task, Score: score})
		}
	}
	slices.SortStableFunc(hits, func(x, y Hit) int {
		if c := cmp.Compare(y.Score, x.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(y.Task.Priority.Rank(), x.Task.Priority.Rank()); c != 0 {
			return c
		}
		return cmp.Compare(y.Task.CreatedAt, x.Task.CreatedAt)
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func (index *Index) score(i int, terms []string) float64 {
	frequencies := index.frequencies[i]
	length := float64(index.lengths[i])

	var score float64
	for _, term := range terms {
		frequency := float64(frequencies[term])
		if frequency == 0 {
			continue
		}
		numerator := frequency * (k1 + 1)
		denominator := frequency + k1*(1-b+b*length/index.average)
		score += index.idf[term] * numerator / denominator
	}
	return score
}

// taskTokens repeats each field's tokens by its weight.
func taskTokens(task schema.Task) []string {
	var tokens []string
	for _, field := range []struct {
		text   string
		weight int
	}{
		{task.Title, titleWeight},
		{task.ID, idWeight},
		{task.Content, contentWeight},
	} {
		fieldTokens := Tokenize(field.text)
		for range field.weight {
			tokens = append(tokens, fieldTokens...)
		}
	}
	return tokens
}

// Tokenize lowercases text and splits it into alphanumeric runs of at
// least two characters.
func Tokenize(text string) []string {
	matches := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := matches[:0]
	for _, match := range matches {
		if len(match) >= 2 {
			tokens = append(tokens, match)
		}
	}
	return tokens
}
