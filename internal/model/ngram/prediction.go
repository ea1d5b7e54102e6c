package ngram

// Prediction is a candidate name produced by one model
type Prediction struct {
	Name        string  `json:"name"`
	Probability float64 `json:"probability"`
	Priority    int     `json:"priority"`
}

// Contribution groups the predictions of one contributor with the priority of its model
type Contribution struct {
	Contributor string       `json:"contributor"`
	Priority    int          `json:"priority"`
	Predictions []Prediction `json:"predictions"`
}

// Suggestion is a ranked name with its combined score
type Suggestion struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}
