package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed sites.yaml
var defaultSites []byte

// QueryPlaceholder is replaced with the encoded search term in SearchURL
const QueryPlaceholder = "{query}"

const (
	defaultMaxMatches = 3
	defaultMaxCards   = 20
)

// Site catalog validation errors
var (
	ErrNoSites              = errors.New("at least one site is required")
	ErrSiteMissingName      = errors.New("site name is required")
	ErrSiteMissingOrigin    = errors.New("site origin is required")
	ErrSiteMissingSearchURL = errors.New("search_url must contain " + QueryPlaceholder)
	ErrSiteMissingCards     = errors.New("at least one card selector is required")
	ErrSiteMissingField     = errors.New("title and price selectors are required")
	ErrDuplicateSite        = errors.New("duplicate site name")
)

// FieldSpec lists the candidate locators for one product field
type FieldSpec struct {
	Selectors    []string `yaml:"selectors"`
	Attr         string   `yaml:"attr"`
	FallbackAttr string   `yaml:"fallback_attr"`
	MaxMatches   int      `yaml:"max_matches"`
}

// IsEmpty returns true when the field has no locators
func (f *FieldSpec) IsEmpty() bool {
	return len(f.Selectors) == 0
}

// FieldSet groups the locators for every extracted field
type FieldSet struct {
	URL          FieldSpec `yaml:"url"`
	Title        FieldSpec `yaml:"title"`
	Price        FieldSpec `yaml:"price"`
	Rating       FieldSpec `yaml:"rating"`
	Brand        FieldSpec `yaml:"brand"`
	MRP          FieldSpec `yaml:"mrp"`
	ReviewsCount FieldSpec `yaml:"reviews_count"`
}

func (f *FieldSet) all() []*FieldSpec {
	return []*FieldSpec{&f.URL, &f.Title, &f.Price, &f.Rating, &f.Brand, &f.MRP, &f.ReviewsCount}
}

// SiteConfig describes how to search and read one marketplace
type SiteConfig struct {
	Name          string        `yaml:"name"`
	Origin        string        `yaml:"origin"`
	SearchURL     string        `yaml:"search_url"`
	ReadySelector string        `yaml:"ready_selector"`
	ReadyTimeout  time.Duration `yaml:"ready_timeout"`
	Settle        time.Duration `yaml:"settle"`
	MaxCards      int           `yaml:"max_cards"`
	CardSelectors []string      `yaml:"card_selectors"`
	URLMarkers    []string      `yaml:"url_markers"`
	Fields        FieldSet      `yaml:"fields"`
}

// Catalog is the set of configured marketplaces
type Catalog struct {
	Sites []SiteConfig `yaml:"sites"`
}

// Site returns the site with the given name
func (c *Catalog) Site(name string) (*SiteConfig, bool) {
	for i := range c.Sites {
		if strings.EqualFold(c.Sites[i].Name, name) {
			return &c.Sites[i], true
		}
	}
	return nil, false
}

// CapCards lowers every site's card limit to max. Non-positive max is ignored.
func (c *Catalog) CapCards(max int) {
	if max <= 0 {
		return
	}
	for i := range c.Sites {
		if c.Sites[i].MaxCards > max {
			c.Sites[i].MaxCards = max
		}
	}
}

// LoadSites reads the catalog from path, or the built-in catalog when path is empty
func LoadSites(path string) (*Catalog, error) {
	data := defaultSites
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read sites file: %w", err)
		}
	}
	return ParseSites(data)
}

// ParseSites decodes and validates a YAML site catalog
func ParseSites(data []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse sites YAML: %w", err)
	}

	catalog.applyDefaults()

	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("site catalog validation failed: %w", err)
	}

	return &catalog, nil
}

func (c *Catalog) applyDefaults() {
	for i := range c.Sites {
		site := &c.Sites[i]
		if site.MaxCards <= 0 {
			site.MaxCards = defaultMaxCards
		}
		for _, field := range site.Fields.all() {
			if field.MaxMatches <= 0 {
				field.MaxMatches = defaultMaxMatches
			}
		}
	}
}

// Validate validates the catalog
func (c *Catalog) Validate() error {
	if len(c.Sites) == 0 {
		return ErrNoSites
	}

	for i, site := range c.Sites {
		if site.Name == "" {
			return fmt.Errorf("%w: sites[%d]", ErrSiteMissingName, i)
		}

		// Site returns the first match, so any other entry is a repeat
		if first, _ := c.Site(site.Name); first != &c.Sites[i] {
			return fmt.Errorf("%w: %s", ErrDuplicateSite, site.Name)
		}

		if site.Origin == "" {
			return fmt.Errorf("%w: %s", ErrSiteMissingOrigin, site.Name)
		}

		if !strings.Contains(site.SearchURL, QueryPlaceholder) {
			return fmt.Errorf("%w: %s", ErrSiteMissingSearchURL, site.Name)
		}

		if len(site.CardSelectors) == 0 {
			return fmt.Errorf("%w: %s", ErrSiteMissingCards, site.Name)
		}

		if site.Fields.Title.IsEmpty() || site.Fields.Price.IsEmpty() {
			return fmt.Errorf("%w: %s", ErrSiteMissingField, site.Name)
		}
	}

	return nil
}
