package domain

import (
	"context"
	"time"
)

// Classification categories assigned by the language model (live news) or
// fixed by the historical import.
const (
	CategoryTerrorEvent    = "terror_event"
	CategoryHistoricTerror = "historic_terror"
	CategoryGeneralNews    = "general_news"
)

// Source labels recorded in TerrorEvent.SourceURL for historical imports.
const (
	SourceGTD  = "GTD"
	SourceRAND = "RAND"
)

// Coordinates is a WGS-84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Classification is the validated result of classifying one article.
type Classification struct {
	Category   string  `json:"category"`
	Location   string  `json:"location"`
	Confidence float64 `json:"confidence"`
}

// Article is one candidate news item returned by the news source.
type Article struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	URL      string `json:"url"`
	DateTime string `json:"dateTime"`
}

// TerrorEvent is the canonical document handed to storage, regardless of
// whether it originated from a CSV row or a live article.
type TerrorEvent struct {
	Title           string       `json:"title"`
	Content         string       `json:"content"`
	PublicationDate time.Time    `json:"publication_date"`
	Category        string       `json:"category"`
	Location        string       `json:"location"`
	Confidence      float64      `json:"confidence"`
	SourceURL       string       `json:"source_url"`
	Coordinates     *Coordinates `json:"coordinates,omitempty"`
}

// Geocoder resolves a city/country pair to coordinates. The second return
// value is false when the location could not be resolved; that is an
// expected outcome, not an error.
type Geocoder interface {
	GetCoordinates(ctx context.Context, city, country string) (Coordinates, bool)
}
