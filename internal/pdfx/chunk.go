package pdfx

import (
	"regexp"
	"strings"
)

// DefaultMaxWords bounds chunk size for TTS latency and cost.
const DefaultMaxWords = 50

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	strayCharsRe = regexp.MustCompile(`[^\w\s.,!?;:()-]`)
	sentenceRe   = regexp.MustCompile(`[^.!?]+[.!?]*\s*`)
)

// CleanText normalizes extracted PDF text for speech: whitespace collapsed to
// single spaces, characters outside basic punctuation stripped.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	text = strayCharsRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// splitSentences splits on sentence-ending punctuation. Terminators stay
// attached to their sentence.
func splitSentences(text string) []string {
	raw := sentenceRe.FindAllString(text, -1)
	sentences := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// ChunkText splits cleaned text into chunks of at most maxWords words.
// Sentences are accumulated whole; a chunk closes when the next sentence
// would push it past the limit. A single sentence longer than maxWords is
// split on word boundaries, with an ellipsis marking every piece that is
// not the end of the sentence. maxWords <= 0 uses DefaultMaxWords.
func ChunkText(text string, maxWords int) []string {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	text = CleanText(text)
	if text == "" {
		return nil
	}

	var chunks []string
	var current strings.Builder
	wordCount := 0

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, strings.TrimSpace(current.String()))
		current.Reset()
		wordCount = 0
	}

	for _, sentence := range splitSentences(text) {
		words := strings.Fields(sentence)

		if len(words) > maxWords {
			flush()
			for i := 0; i < len(words); i += maxWords {
				end := i + maxWords
				if end > len(words) {
					end = len(words)
				}
				piece := strings.Join(words[i:end], " ")
				if end < len(words) {
					piece += "..."
				}
				chunks = append(chunks, piece)
			}
			continue
		}

		if wordCount+len(words) > maxWords {
			flush()
		}
		if wordCount > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
		wordCount += len(words)
	}
	flush()

	return chunks
}
