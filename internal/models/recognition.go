package models

// RecognitionAlternative is one ranked candidate transcription for an audio span.
// Confidence is in [0,1]; engines that do not report it leave it at zero.
type RecognitionAlternative struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// RecognitionResult is a single result with its ranked alternatives.
// Alternatives[0] is the engine's default best guess.
type RecognitionResult struct {
	Alternatives []RecognitionAlternative `json:"alternatives"`
	IsFinal      bool                     `json:"isFinal"`
}

// RecognitionBatch is one delivery from the engine. Results before
// ResultIndex were already delivered in an earlier batch.
type RecognitionBatch struct {
	ResultIndex int                 `json:"resultIndex"`
	Results     []RecognitionResult `json:"results"`
}

// Segment is one accepted final result recorded in meeting mode.
type Segment struct {
	ID              string  `json:"id,omitempty"`
	Text            string  `json:"text"`
	TimestampMillis int64   `json:"timestamp"`
	Confidence      float64 `json:"confidence"`
}
