package search

// Record is the data we index for an initiative.
type Record struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Owner       string `json:"owner"`
	TeamID      string `json:"teamId"`
}

// Query describes a search request.
type Query struct {
	Text         string
	FilterTeamID string
	FilterStatus string
	Limit        int
	Offset       int
}

// Result is a single search hit returned to the caller.
type Result struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Status  string `json:"status"`
	TeamID  string `json:"teamId"`
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}
