package domain

// CatalogEntry is one card as served by the remote catalog API. Entries are
// immutable once fetched.
type CatalogEntry struct {
	ID     int64       `json:"id"`
	Name   string      `json:"name"`
	Type   string      `json:"type"`
	Images []CardImage `json:"card_images"`
	Sets   []CardSet   `json:"card_sets"`
}

// CardImage is one artwork variant of a card.
type CardImage struct {
	ID         int64  `json:"id"`
	URL        string `json:"image_url"`
	CroppedURL string `json:"image_url_cropped"`
}

// CardSet names a set the card was printed in.
type CardSet struct {
	Name string `json:"set_name"`
	Code string `json:"set_code"`
}
