package model

import "time"

// DefaultBirthdayDays is the size of the birthday window when the caller does not specify one.
const DefaultBirthdayDays = 7

// OwnerID identifies the authenticated user a contact belongs to.
type OwnerID int64

// Contact is the data structure for a person that we know. Birthday and Comments are optional.
type Contact struct {
	Id        int64      `json:"id"                 db:"id"`
	FirstName string     `json:"firstname"          db:"first_name"`
	LastName  string     `json:"lastname"           db:"last_name"`
	Email     string     `json:"email"              db:"email"`
	Phone     string     `json:"phone"              db:"phone"`
	Birthday  *time.Time `json:"birthday,omitempty" db:"birthday"`
	Comments  *string    `json:"comments,omitempty" db:"comments"`
	Favorite  bool       `json:"favorite"           db:"favorite"`
	Owner     OwnerID    `json:"owner"              db:"user_id"`
}

// ContactFields are the values supplied when a contact is created or overwritten.
type ContactFields struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Birthday  *time.Time
	Comments  *string
	Favorite  bool
}

// Apply overwrites all user-editable values of c with the ones in f. Id and Owner stay untouched.
func (f ContactFields) Apply(c *Contact) {
	c.FirstName = f.FirstName
	c.LastName = f.LastName
	c.Email = f.Email
	c.Phone = f.Phone
	c.Birthday = f.Birthday
	c.Comments = f.Comments
	c.Favorite = f.Favorite
}

// FavoriteFilter restricts a listing by the favorite flag. The zero value does not filter at all.
type FavoriteFilter struct {
	set   bool
	value bool
}

// AnyFavorite is the filter that lets favorites and non-favorites through.
var AnyFavorite = FavoriteFilter{}

// OnlyFavorite returns a filter that keeps contacts whose favorite flag equals v.
func OnlyFavorite(v bool) FavoriteFilter {
	return FavoriteFilter{set: true, value: v}
}

// Value returns the favorite value to filter by, and false if the filter is unset.
func (f FavoriteFilter) Value() (favorite bool, ok bool) {
	return f.value, f.set
}

// BirthdayQuery holds the parameters of an upcoming-birthday search. Skip and Limit page through
// the owner's contacts before the birthday window is applied.
type BirthdayQuery struct {
	Days  int
	Skip  int
	Limit int
}
