package main

import (
	"context"
	"io"
	"os"

	"github.com/familyvault/familyvault-core/internal/contentextractor"
)

// maxPlainTextReadBytes bounds how much of a .txt file plainTextExtractor
// reads before truncating; Manager's own MaxContentExtractTextKB limit
// applies on top of this when it indexes the result.
const maxPlainTextReadBytes = 4 << 20

// plainTextExtractor is the one TextExtractor the reference embedder ships
// out of the box; anything beyond plain text is left to an embedder that
// registers its own (PDF, office formats, ...) per §4.6's plug-point.
type plainTextExtractor struct{}

func (plainTextExtractor) Name() string { return "plaintext" }

func (plainTextExtractor) CanHandle(mime string) bool {
	return mime == "text/plain"
}

func (plainTextExtractor) Priority() int { return 0 }

func (plainTextExtractor) Extract(ctx context.Context, path string) (contentextractor.Extraction, error) {
	f, err := os.Open(path)
	if err != nil {
		return contentextractor.Extraction{}, err
	}
	defer f.Close()

	b, err := io.ReadAll(io.LimitReader(f, maxPlainTextReadBytes))
	if err != nil {
		return contentextractor.Extraction{}, err
	}
	return contentextractor.Extraction{Text: string(b), Method: "plaintext", Confidence: 1}, nil
}
