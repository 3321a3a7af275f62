package ahrefs

// Keyword is one organic keyword the domain ranks for.
type Keyword struct {
	Keyword  string `json:"keyword"`
	Volume   int64  `json:"volume"`
	Position int64  `json:"position"`
	Traffic  int64  `json:"traffic"`
	URL      string `json:"url,omitempty"`
}

// Page is one of the domain's top pages by organic traffic.
type Page struct {
	URL      string `json:"url"`
	Traffic  int64  `json:"traffic"`
	Keywords int64  `json:"keywords"`
}

// Backlink is a sampled inbound link.
type Backlink struct {
	URLFrom      string `json:"url_from"`
	URLTo        string `json:"url_to"`
	DomainRating int64  `json:"domain_rating"`
	Anchor       string `json:"anchor"`
}

// Data is the aggregated Ahrefs view of one domain. Parts that could not be
// fetched keep their zero values.
type Data struct {
	Domain           string     `json:"domain"`
	DomainRating     float64    `json:"domain_rating"`
	URLRating        float64    `json:"url_rating"`
	Backlinks        int64      `json:"backlinks"`
	ReferringDomains int64      `json:"referring_domains"`
	OrganicKeywords  int64      `json:"organic_keywords"`
	OrganicTraffic   int64      `json:"organic_traffic"`
	TopKeywords      []Keyword  `json:"top_keywords"`
	TopPages         []Page     `json:"top_pages"`
	BacklinkSample   []Backlink `json:"backlink_sample"`
}

func newData(domain string) *Data {
	return &Data{
		Domain:         domain,
		TopKeywords:    []Keyword{},
		TopPages:       []Page{},
		BacklinkSample: []Backlink{},
	}
}
