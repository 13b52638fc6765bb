package model

// DateLayout is the format of the birthday in request bodies.
const DateLayout = "2006-01-02"

// Contact is the JSON body for creating or replacing a contact. Birthday uses the format
// YYYY-MM-DD; birthday and comments are optional.
type Contact struct {
	FirstName string  `json:"firstname"          binding:"required,max=50"`
	LastName  string  `json:"lastname"           binding:"required,max=50"`
	Email     string  `json:"email"              binding:"required,email,max=100"`
	Phone     string  `json:"phone"              binding:"required,max=30"`
	Birthday  *string `json:"birthday,omitempty" binding:"omitempty,datetime=2006-01-02"`
	Comments  *string `json:"comments,omitempty" binding:"omitempty,max=500"`
	Favorite  bool    `json:"favorite"`
}

// Favorite is the JSON body for toggling the favorite flag of a contact.
type Favorite struct {
	Favorite *bool `json:"favorite" binding:"required"`
}
