// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package sessionfiles

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
	"github.com/outrigdev/logscope/pkg/utilfn"
)

const (
	SearchTypeExact = "exact"
	SearchTypeFzf   = "fzf"
)

type Searcher interface {
	Match(line string) bool
	GetType() string
}

type ExactSearcher struct {
	searchTerm string
}

func MakeExactSearcher(searchTerm string) *ExactSearcher {
	return &ExactSearcher{searchTerm: strings.ToLower(searchTerm)}
}

func (s *ExactSearcher) Match(line string) bool {
	return strings.Contains(strings.ToLower(line), s.searchTerm)
}

func (s *ExactSearcher) GetType() string {
	return SearchTypeExact
}

// FzfSearcher does case-insensitive fuzzy matching with the fzf algorithm
type FzfSearcher struct {
	pattern []rune
	slab    *util.Slab
}

func MakeFzfSearcher(searchTerm string) *FzfSearcher {
	return &FzfSearcher{
		pattern: []rune(strings.ToLower(searchTerm)),
		slab:    util.MakeSlab(64, 4096),
	}
}

func (s *FzfSearcher) Match(line string) bool {
	chars := util.ToChars([]byte(strings.ToLower(line)))
	result, _ := algo.FuzzyMatchV2(false, true, true, &chars, s.pattern, true, s.slab)
	return result.Score > 0
}

func (s *FzfSearcher) GetType() string {
	return SearchTypeFzf
}

func MakeSearcher(searchType string, searchTerm string) (Searcher, error) {
	switch searchType {
	case SearchTypeExact, "":
		return MakeExactSearcher(searchTerm), nil
	case SearchTypeFzf:
		return MakeFzfSearcher(searchTerm), nil
	default:
		return nil, fmt.Errorf("invalid search type %q", searchType)
	}
}

type Match struct {
	File    SessionFile
	LineNum int
	Line    string
}

// SearchFile calls fn for every matching line of sf. Stack trace continuation
// lines are searched as their own lines.
func SearchFile(ctx context.Context, sf SessionFile, searcher Searcher, fn func(Match)) error {
	fd, err := os.Open(sf.Path)
	if err != nil {
		return err
	}
	defer fd.Close()
	lineNum := 0
	return utilfn.StreamToLines(ctx, fd, func(line string) {
		lineNum++
		if searcher.Match(line) {
			fn(Match{File: sf, LineNum: lineNum, Line: line})
		}
	})
}

// Search runs searcher over every session file in order and returns the match count
func Search(ctx context.Context, sessions []SessionFile, searcher Searcher, fn func(Match)) (int, error) {
	count := 0
	for _, sf := range sessions {
		err := SearchFile(ctx, sf, searcher, func(m Match) {
			count++
			fn(m)
		})
		if err != nil {
			return count, fmt.Errorf("searching %s: %w", sf.Path, err)
		}
	}
	return count, nil
}
