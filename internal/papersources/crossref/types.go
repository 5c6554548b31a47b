// Package crossref provides a client for the Crossref REST API.
//
// Crossref is the DOI registry, so DOI-like identifiers are tried here first.
//
// API Documentation: https://api.crossref.org/swagger-ui/index.html
package crossref

// Response is the envelope every Crossref endpoint returns.
type Response struct {
	Status  string  `json:"status"`
	Message Message `json:"message"`
}

// Message is either a single work (/works/{doi}) or a result list (/works).
// Both shapes decode into the same struct.
type Message struct {
	Work
	TotalResults int    `json:"total-results"`
	Items        []Work `json:"items"`
}

// Work is a single Crossref work record.
type Work struct {
	DOI                 string   `json:"DOI"`
	Title               []string `json:"title"`
	Author              []Author `json:"author"`
	Issued              DateInfo `json:"issued"`
	ContainerTitle      []string `json:"container-title"`
	URL                 string   `json:"URL"`
	Link                []Link   `json:"link"`
	Abstract            string   `json:"abstract"`
	IsReferencedByCount int      `json:"is-referenced-by-count"`
}

// Author is a contributor on a work.
type Author struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	Name   string `json:"name"`
}

// DateInfo holds Crossref's nested date-parts array, e.g. [[2021, 5, 1]].
type DateInfo struct {
	DateParts [][]int `json:"date-parts"`
}

// Link is a full-text link on a work.
type Link struct {
	URL         string `json:"URL"`
	ContentType string `json:"content-type"`
}
