// Package semanticscholar provides a client for the Semantic Scholar Graph API.
//
// It is the general-purpose provider: the default search source and the
// generic fallback for identifiers no specialist recognizes.
//
// API Documentation: https://api.semanticscholar.org/api-docs/
package semanticscholar

// SearchResponse represents the response from the paper search endpoint.
type SearchResponse struct {
	Total  int           `json:"total"`
	Offset int           `json:"offset"`
	Next   int           `json:"next"`
	Data   []PaperResult `json:"data"`
}

// PaperResult represents a single paper in the Semantic Scholar API response.
type PaperResult struct {
	PaperID                  string         `json:"paperId"`
	URL                      string         `json:"url"`
	Title                    string         `json:"title"`
	Abstract                 string         `json:"abstract"`
	Year                     int            `json:"year"`
	PublicationDate          string         `json:"publicationDate"`
	Venue                    string         `json:"venue"`
	Journal                  *Journal       `json:"journal,omitempty"`
	Authors                  []Author       `json:"authors"`
	CitationCount            int            `json:"citationCount"`
	InfluentialCitationCount int            `json:"influentialCitationCount"`
	OpenAccessPDF            *OpenAccessPDF `json:"openAccessPdf,omitempty"`
	ExternalIDs              *ExternalIDs   `json:"externalIds,omitempty"`
}

// ExternalIDs contains external identifiers for a paper.
type ExternalIDs struct {
	DOI    string `json:"DOI,omitempty"`
	ArXiv  string `json:"ArXiv,omitempty"`
	PubMed string `json:"PubMed,omitempty"`
}

// Journal contains journal-specific information.
type Journal struct {
	Name string `json:"name,omitempty"`
}

// Author represents a paper author.
type Author struct {
	AuthorID string `json:"authorId,omitempty"`
	Name     string `json:"name"`
}

// OpenAccessPDF contains information about an open access PDF.
type OpenAccessPDF struct {
	URL string `json:"url,omitempty"`
}
