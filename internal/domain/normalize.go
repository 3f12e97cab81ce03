package domain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDate marks rows whose date cannot be resolved to at least a year.
// Callers drop the row and keep processing the batch.
var ErrInvalidDate = errors.New("invalid date")

// randDateLayout matches the RAND export's day-Mon-yy date strings,
// e.g. "15-Mar-05".
const randDateLayout = "2-Jan-06"

// GTDRecord holds the raw string columns of one GTD CSV row.
type GTDRecord struct {
	Year       string
	Month      string
	Day        string
	Country    string
	City       string
	Latitude   string
	Longitude  string
	Summary    string
	AttackType string
	TargetType string
}

// RANDRecord holds the raw string columns of one RAND CSV row.
type RANDRecord struct {
	Date        string
	City        string
	Country     string
	Description string
}

// NormalizeGTD converts a GTD row into a TerrorEvent. Coordinates come from
// the row when both latitude and longitude are present, otherwise from the
// geocoder. Returns ErrInvalidDate when the year cannot be coerced.
func NormalizeGTD(ctx context.Context, rec GTDRecord, geocoder Geocoder) (TerrorEvent, error) {
	date, err := parseGTDDate(rec.Year, rec.Month, rec.Day)
	if err != nil {
		return TerrorEvent{}, err
	}

	location := composeLocation(rec.City, rec.Country)
	coords := gtdCoordinates(ctx, rec, geocoder)

	return TerrorEvent{
		Title:           "Terror Attack in " + location,
		Content:         gtdContent(rec),
		PublicationDate: date,
		Category:        CategoryHistoricTerror,
		Location:        location,
		Confidence:      1.0,
		SourceURL:       SourceGTD,
		Coordinates:     coords,
	}, nil
}

// NormalizeRAND converts a RAND row into a TerrorEvent. The schema carries no
// native coordinates, so the geocoder is always consulted when a city is
// present. Returns ErrInvalidDate when the date string does not parse.
func NormalizeRAND(ctx context.Context, rec RANDRecord, geocoder Geocoder) (TerrorEvent, error) {
	date, err := time.Parse(randDateLayout, strings.TrimSpace(rec.Date))
	if err != nil {
		return TerrorEvent{}, fmt.Errorf("%w: parse %q: %v", ErrInvalidDate, rec.Date, err)
	}

	location := composeLocation(rec.City, rec.Country)

	var coords *Coordinates
	if strings.TrimSpace(rec.City) != "" && geocoder != nil {
		if c, ok := geocoder.GetCoordinates(ctx, rec.City, rec.Country); ok {
			coords = &c
		}
	}

	content := cleanText(rec.Description)
	if content == "" {
		content = "Terror incident"
	}

	return TerrorEvent{
		Title:           "Terror Attack in " + location,
		Content:         content,
		PublicationDate: date,
		Category:        CategoryHistoricTerror,
		Location:        location,
		Confidence:      1.0,
		SourceURL:       SourceRAND,
		Coordinates:     coords,
	}, nil
}

// parseGTDDate builds a date from the GTD's integer year/month/day columns.
// Month and day default to 1 when empty or recorded as the dataset's unknown
// sentinel 0. The year 2068 is a documented data-entry typo for 1968.
func parseGTDDate(year, month, day string) (time.Time, error) {
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: year %q", ErrInvalidDate, year)
	}
	if y == 2068 {
		y = 1968
	}

	m := intComponentOrDefault(month, 1)
	d := intComponentOrDefault(day, 1)
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, fmt.Errorf("%w: month %q day %q", ErrInvalidDate, month, day)
	}

	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC), nil
}

// intComponentOrDefault parses a date component, substituting def for empty,
// unparseable, or zero (GTD's unknown sentinel) values.
func intComponentOrDefault(s string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v == 0 {
		return def
	}
	return v
}

// composeLocation builds the "city, country" label, omitting whichever part
// is absent.
func composeLocation(city, country string) string {
	city = cleanText(city)
	country = cleanText(country)
	switch {
	case city != "" && country != "":
		return city + ", " + country
	case city != "":
		return city
	default:
		return country
	}
}

// gtdCoordinates prefers the row's own lat/lon columns and falls back to
// geocoding the city and country.
func gtdCoordinates(ctx context.Context, rec GTDRecord, geocoder Geocoder) *Coordinates {
	lat, latErr := strconv.ParseFloat(strings.TrimSpace(rec.Latitude), 64)
	lon, lonErr := strconv.ParseFloat(strings.TrimSpace(rec.Longitude), 64)
	if latErr == nil && lonErr == nil {
		return &Coordinates{Lat: lat, Lon: lon}
	}
	if geocoder == nil {
		return nil
	}
	if c, ok := geocoder.GetCoordinates(ctx, rec.City, rec.Country); ok {
		return &c
	}
	return nil
}

// gtdContent uses the row's free-text summary when present, then synthesizes
// a sentence from the attack and target type labels, then a placeholder.
func gtdContent(rec GTDRecord) string {
	if summary := cleanText(rec.Summary); summary != "" {
		return summary
	}
	attack := cleanText(rec.AttackType)
	target := cleanText(rec.TargetType)
	if attack != "" && target != "" {
		return fmt.Sprintf("%s attack targeting %s", attack, target)
	}
	return "Terror incident"
}

// cleanText trims whitespace and treats the pandas NaN artifact left behind
// by the upstream export as empty.
func cleanText(s string) string {
	s = strings.TrimSpace(s)
	if s == "nan" || s == "NaN" {
		return ""
	}
	return s
}
