package domain

type MovieMetadata struct {
	Genre string `json:"genre"`
	Year  int    `json:"year"`
}

// Movie is a catalog entry as served by the external movie API.
type Movie struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	ThumbnailURL string        `json:"thumbnailUrl"`
	VideoURL     string        `json:"videoUrl"`
	Metadata     MovieMetadata `json:"metadata"`
}
