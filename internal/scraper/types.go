package scraper

// SiteAnalysis holds the on-page signals extracted from a single page.
type SiteAnalysis struct {
	URL              string   `json:"url"`
	StatusCode       int      `json:"status_code"`
	Title            string   `json:"title"`
	MetaDescription  string   `json:"meta_description"`
	H1Tags           []string `json:"h1_tags"`
	H2Tags           []string `json:"h2_tags"`
	ImagesWithoutAlt int      `json:"images_without_alt"`
	TotalImages      int      `json:"total_images"`
	InternalLinks    int      `json:"internal_links"`
	ExternalLinks    int      `json:"external_links"`
	WordCount        int      `json:"word_count"`
}

// MetaDescriptionOr returns the meta description or fallback when it is empty.
func (s *SiteAnalysis) MetaDescriptionOr(fallback string) string {
	if s == nil || s.MetaDescription == "" {
		return fallback
	}
	return s.MetaDescription
}
