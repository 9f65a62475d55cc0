// Package prompt associates a rendered image with the prompt that produced it by
// searching the structural context around the image.
package prompt

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"grokcapture/internal/logging"
)

// Sentinel results.
const (
	NoPrompt    = "No prompt available"
	ErrorPrompt = "Error extracting prompt"
)

// LeadIn marks an AI-authored caption that quotes the generation prompt.
const LeadIn = "I generated an image with the prompt:"

// DefaultMaxDepth bounds the upward walk.
const DefaultMaxDepth = 10

// DefaultMinFallbackLen is the length a fallback text must exceed.
const DefaultMinFallbackLen = 10

var captionPattern = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(LeadIn) + `\s*['‘’"“”](.+?)['‘’"“”]\s*$`)

// Node is the capability the resolver needs from a structural context.
type Node interface {
	// Parent returns the enclosing context, or nil at the root.
	Parent() Node
	// Texts returns the descendant text blocks in document order.
	Texts() ([]string, error)
}

// Resolver searches upward from an image container for its prompt.
type Resolver struct {
	MaxDepth       int
	MinFallbackLen int
}

// NewResolver returns a Resolver with the default bounds.
func NewResolver() *Resolver {
	return &Resolver{MaxDepth: DefaultMaxDepth, MinFallbackLen: DefaultMinFallbackLen}
}

// Resolve returns the prompt for the image contained in container.
//
// The caption pattern is searched at every level first; only when no level has it is
// the first non-trivial plain text used. Faults never propagate: they yield ErrorPrompt.
func (r *Resolver) Resolve(container Node) (result string) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.PromptWarn("Panic during prompt resolution: %v", rec)
			result = ErrorPrompt
		}
	}()

	levels, err := r.collect(container)
	if err != nil {
		logging.PromptWarn("Error extracting prompt: %v", err)
		return ErrorPrompt
	}

	for depth, texts := range levels {
		for _, text := range texts {
			if p, ok := ExtractCaption(text); ok {
				logging.PromptDebug("Caption prompt found at depth %d", depth)
				return p
			}
		}
	}

	minLen := r.MinFallbackLen
	if minLen <= 0 {
		minLen = DefaultMinFallbackLen
	}
	for depth, texts := range levels {
		for _, text := range texts {
			t := strings.TrimSpace(text)
			if utf8.RuneCountInString(t) > minLen && !strings.Contains(t, LeadIn) {
				logging.PromptDebug("Fallback prompt found at depth %d", depth)
				return t
			}
		}
	}
	return NoPrompt
}

func (r *Resolver) collect(container Node) ([][]string, error) {
	maxDepth := r.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	var levels [][]string
	node := container
	for depth := 0; depth < maxDepth && node != nil; depth++ {
		texts, err := node.Texts()
		if err != nil {
			return nil, fmt.Errorf("texts at depth %d: %w", depth, err)
		}
		levels = append(levels, texts)
		node = node.Parent()
	}
	return levels, nil
}

// ExtractCaption returns the quoted prompt from a caption text.
func ExtractCaption(text string) (string, bool) {
	t := strings.TrimSpace(text)
	if !strings.Contains(t, LeadIn) {
		return "", false
	}
	m := captionPattern.FindStringSubmatch(t)
	if m == nil {
		return "", false
	}
	return m[1], true
}
