// Package model contains the case records and derived result shapes shared by
// the trajectory engine and its adapters.
package model

import (
	"strings"
	"time"
)

// Uncategorized labels events that carry no symptom category.
const Uncategorized = "uncategorized"

// timestampLayouts lists the accepted instant formats. Layouts without a zone
// are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	dateLayout,
}

// CaseEvent is a caregiver-recorded observation for a case.
type CaseEvent struct {
	ID                string   `json:"id,omitempty"`
	Slug              string   `json:"slug,omitempty"`
	Timestamp         string   `json:"timestamp,omitempty"`
	SymptomCategories []string `json:"symptom_categories,omitempty"`
	Title             string   `json:"title,omitempty"`
	ShortText         string   `json:"short_text,omitempty"`
	Summary           string   `json:"summary,omitempty"`
	FullText          string   `json:"full_text,omitempty"`
}

// Time parses the event timestamp. The second return value is false when the
// timestamp is missing or unparseable.
func (e CaseEvent) Time() (time.Time, bool) {
	return parseInstant(e.Timestamp)
}

// Categories returns the event's symptom tags trimmed, lower-cased and
// de-duplicated, keeping first-seen order. Empty tags are dropped.
func (e CaseEvent) Categories() []string {
	if len(e.SymptomCategories) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.SymptomCategories))
	seen := make(map[string]struct{}, len(e.SymptomCategories))
	for _, raw := range e.SymptomCategories {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// HasCategory reports whether the event carries tag (case-insensitive).
func (e CaseEvent) HasCategory(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, c := range e.Categories() {
		if c == tag {
			return true
		}
	}
	return false
}

// Text joins the free-text fields used for keyword matching.
func (e CaseEvent) Text() string {
	parts := make([]string, 0, 4)
	for _, s := range []string{e.Title, e.ShortText, e.Summary, e.FullText} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// DisplayTitle returns the title, or the short text when the title is blank.
func (e CaseEvent) DisplayTitle() string {
	if t := strings.TrimSpace(e.Title); t != "" {
		return t
	}
	return strings.TrimSpace(e.ShortText)
}

// EventRef is the condensed projection of an event used in derived
// artifacts. It never carries the narrative text fields.
type EventRef struct {
	ID                string   `json:"id,omitempty"`
	Slug              string   `json:"slug,omitempty"`
	Timestamp         string   `json:"timestamp,omitempty"`
	Title             string   `json:"title"`
	SymptomCategories []string `json:"symptom_categories"`
}

// Ref projects the event to an EventRef.
func (e CaseEvent) Ref() EventRef {
	cats := e.Categories()
	if cats == nil {
		cats = []string{}
	}
	return EventRef{
		ID:                e.ID,
		Slug:              e.Slug,
		Timestamp:         e.Timestamp,
		Title:             e.DisplayTitle(),
		SymptomCategories: cats,
	}
}

func parseInstant(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
