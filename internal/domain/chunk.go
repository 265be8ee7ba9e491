package domain

// Chunk is a piece of an ingested document
type Chunk struct {
	Index    int     `json:"index"`
	Page     int     `json:"page"`
	Document string  `json:"document"`
	Content  string  `json:"content"`
	Score    float64 `json:"score,omitempty"`
}
