package pipeline

// NormalizeBatchSize maps a requested batch size onto an effective one.
// Anything below 2 disables batching (returns 0).
func NormalizeBatchSize(requested int) int {
	if requested < 2 {
		return 0
	}
	return requested
}

// BuildBatches groups consecutive sentences sharing a target language into
// batches of at most batchSize. A language boundary forces a flush. With
// batching disabled every sentence is its own batch.
func BuildBatches(sentences []Sentence, batchSize int) [][]Sentence {
	if len(sentences) == 0 {
		return nil
	}
	if batchSize = NormalizeBatchSize(batchSize); batchSize == 0 {
		out := make([][]Sentence, len(sentences))
		for i, s := range sentences {
			out[i] = []Sentence{s}
		}
		return out
	}

	var out [][]Sentence
	current := []Sentence{sentences[0]}
	for _, s := range sentences[1:] {
		if s.TargetLanguage != current[0].TargetLanguage || len(current) == batchSize {
			out = append(out, current)
			current = []Sentence{s}
			continue
		}
		current = append(current, s)
	}
	return append(out, current)
}
