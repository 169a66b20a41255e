// ABOUTME: Builds the consolidated and individual artifact messages sent to the model
// ABOUTME: Context documents go in full; everything else gets a markdown-aware summary and a retrieval pointer

package artifacts

import (
	"fmt"
	"strings"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/2389/interview-gateway/internal/events"
)

// normalize converts HTML extractions to markdown so summaries and full text read cleanly.
func normalize(a events.Artifact) events.Artifact {
	if !strings.HasPrefix(a.ContentType, "text/html") {
		return a
	}
	md, err := htmltomarkdown.ConvertString(a.ExtractedText)
	if err != nil || strings.TrimSpace(md) == "" {
		return a
	}
	a.ExtractedText = md
	return a
}

func isContextDocument(a events.Artifact, purposes []string) bool {
	for _, p := range purposes {
		if a.Purpose == p {
			return true
		}
	}
	return false
}

// consolidatedMessage renders one message covering every collected artifact.
func consolidatedMessage(collected []events.Artifact, cfg Config) string {
	var b strings.Builder

	if len(collected) == 1 {
		b.WriteString("I've uploaded a document. ")
	} else {
		fmt.Fprintf(&b, "I've uploaded %d documents. ", len(collected))
	}
	b.WriteString("Here is what was extracted:\n")

	for _, a := range collected {
		b.WriteString("\n### ")
		b.WriteString(a.Filename)
		if a.Purpose != "" {
			fmt.Fprintf(&b, " (%s)", a.Purpose)
		}
		b.WriteString("\n")

		if isContextDocument(a, cfg.ContextPurposes) {
			b.WriteString("\n")
			b.WriteString(strings.TrimSpace(a.ExtractedText))
			b.WriteString("\n")
			continue
		}

		summary := a.Summary
		if summary == "" {
			summary = Summarize(a.ExtractedText, cfg.SummaryChars)
		}
		fmt.Fprintf(&b, "Summary: %s\n", summary)
		fmt.Fprintf(&b, "Full text: call get_artifact with artifact_id %q.\n", a.ID)
	}

	return b.String()
}

// individualMessage renders an artifact that bypasses batching.
func individualMessage(a events.Artifact, summaryChars int) string {
	if a.ContentType == ContentTypeGitAnalysis {
		summary := a.Summary
		if summary == "" {
			summary = Summarize(a.ExtractedText, summaryChars)
		}
		return fmt.Sprintf("Repository analysis for %s is ready (artifact_id %q).\n\n%s", a.Filename, a.ID, summary)
	}
	return fmt.Sprintf("I've uploaded an image: %s (artifact_id %q).", a.Filename, a.ID)
}

// Summarize returns the leading prose of a markdown document, at most limit
// characters, cut at a word boundary. Code blocks are skipped.
func Summarize(markdown string, limit int) string {
	src := []byte(markdown)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				b.WriteByte(' ')
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			b.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(node.Value)
		}
		if b.Len() > limit*2 {
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})

	return truncate(strings.Join(strings.Fields(b.String()), " "), limit)
}

func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:limit])
	if i := strings.LastIndexByte(cut, ' '); i > limit/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:.") + "…"
}
