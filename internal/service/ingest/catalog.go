package ingest

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Link is one page to ingest.
type Link struct {
	Link        string `yaml:"link" json:"link"`
	Description string `yaml:"description" json:"description"`
	Access      string `yaml:"access" json:"access"`
	// Selector limits extraction to one element; empty means whole-page text.
	Selector string `yaml:"selector,omitempty" json:"selector,omitempty"`
}

// Catalog is the ordered list of pages to ingest.
type Catalog struct {
	Links []Link `yaml:"links"`
}

// DefaultCatalog lists the public university pages the assistant answers from.
func DefaultCatalog() Catalog {
	return Catalog{Links: []Link{
		{
			Link:        "https://bulletins.nyu.edu/class-search/",
			Description: "nyu public course search (beta)",
			Access:      "you can configure the search query through URL query vars",
		},
		{
			Link:        "https://cas.nyu.edu/core.html",
			Description: "nyu CAS core curriculum",
			Access:      "find core curriculum requirement and courses that are offered each year",
		},
		{
			Link:        "https://www.nyu.edu/students/student-information-and-resources/registration-records-and-graduation/academic-calendar.html",
			Description: "nyu academic calendar",
			Access:      "academic calendar for course registration, breaks, finals, etc.",
		},
	}}
}

// LoadCatalog reads a YAML catalog file.
func LoadCatalog(path string) (Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(raw)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(raw []byte) (Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}

	for i, link := range catalog.Links {
		if strings.TrimSpace(link.Link) == "" {
			return Catalog{}, fmt.Errorf("catalog entry %d: link is required", i+1)
		}
	}
	return catalog, nil
}
