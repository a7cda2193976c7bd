package models

// Track is a library entry pointing at playable content.
type Track struct {
	ID          string `json:"id"`
	Src         string `json:"src"`
	ImageSource string `json:"imageSource,omitempty"`
	Title       string `json:"title,omitempty"`
	Artist      string `json:"artist,omitempty"`
	Album       string `json:"album,omitempty"`
}

// Key returns the track id.
func (t *Track) Key() string { return t.ID }

// Validate checks the fields every stored track must carry.
func (t *Track) Validate() error {
	switch {
	case t.ID == "":
		return &ValidationError{Table: TracksTable, Field: "id"}
	case t.Src == "":
		return &ValidationError{Table: TracksTable, Field: "src"}
	}
	return nil
}
