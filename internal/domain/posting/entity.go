package posting

// Posting mirrors the content system's postings table. Only the fields
// needed to seed a POST_LINKED conversation are read here.
type Posting struct {
	ID       int64
	Title    string
	AuthorID int64
}
