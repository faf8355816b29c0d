package models

// IDs holds external identifiers for a media item
type IDs struct {
	Trakt int    `json:"trakt,omitempty"`
	Slug  string `json:"slug,omitempty"`
	IMDB  string `json:"imdb,omitempty"`
	TMDB  int    `json:"tmdb,omitempty"`
	TVDB  int    `json:"tvdb,omitempty"`
}

// ImageSet holds the artwork URLs the provider returns per artwork kind.
type ImageSet struct {
	Full   string `json:"full,omitempty"`
	Medium string `json:"medium,omitempty"`
	Thumb  string `json:"thumb,omitempty"`
}

// Images is the provider's image block for a title.
type Images struct {
	Poster   *ImageSet `json:"poster,omitempty"`
	FanArt   *ImageSet `json:"fanart,omitempty"`
	Banner   *ImageSet `json:"banner,omitempty"`
	Logo     *ImageSet `json:"logo,omitempty"`
	ClearArt *ImageSet `json:"clearart,omitempty"`
	Thumb    *ImageSet `json:"thumb,omitempty"`
}

// Movie represents a provider movie
type Movie struct {
	Title    string  `json:"title"`
	Year     int     `json:"year"`
	IDs      IDs     `json:"ids"`
	Tagline  string  `json:"tagline,omitempty"`
	Overview string  `json:"overview,omitempty"`
	Released string  `json:"released,omitempty"`
	Runtime  int     `json:"runtime,omitempty"`
	Trailer  string  `json:"trailer,omitempty"`
	Rating   float64 `json:"rating,omitempty"`
	Images   *Images `json:"images,omitempty"`
}

// Show represents a provider TV show
type Show struct {
	Title         string  `json:"title"`
	Year          int     `json:"year"`
	IDs           IDs     `json:"ids"`
	Overview      string  `json:"overview,omitempty"`
	FirstAired    string  `json:"first_aired,omitempty"`
	Airs          *Airs   `json:"airs,omitempty"`
	Network       string  `json:"network,omitempty"`
	Status        string  `json:"status,omitempty"`
	Rating        float64 `json:"rating,omitempty"`
	AiredEpisodes int     `json:"aired_episodes,omitempty"`
	Images        *Images `json:"images,omitempty"`
}

// Airs describes a show's airing schedule
type Airs struct {
	Day      string `json:"day,omitempty"`
	Time     string `json:"time,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// ListEntry is one element of a trending/popular list response. Trending
// responses wrap the title in a movie/show field next to list metadata;
// popular responses return the bare title.
type ListEntry struct {
	Watchers int    `json:"watchers,omitempty"`
	Movie    *Movie `json:"movie,omitempty"`
	Show     *Show  `json:"show,omitempty"`
}
