package user

// User mirrors the portal account table. The account system owns the
// rows; the messaging core only reads id, display name and active flag
// to validate participants.
type User struct {
	ID       int64
	FullName string
	IsActive bool
}
