package service

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"gitlab.com/dirk.krummacker/contactbook/internal/model"
	"gitlab.com/dirk.krummacker/contactbook/internal/store"
	payload "gitlab.com/dirk.krummacker/contactbook/pkg/model"
)

// ContactStore is the owner-scoped storage behind the REST API. *store.Store implements it.
type ContactStore interface {
	List(ctx context.Context, owner model.OwnerID, offset, limit int, favorite model.FavoriteFilter) ([]model.Contact, error)
	GetByID(ctx context.Context, owner model.OwnerID, id int64) (*model.Contact, error)
	GetByEmail(ctx context.Context, owner model.OwnerID, email string) (*model.Contact, error)
	Create(ctx context.Context, owner model.OwnerID, fields model.ContactFields) (*model.Contact, error)
	Update(ctx context.Context, owner model.OwnerID, id int64, fields model.ContactFields) (*model.Contact, error)
	SetFavorite(ctx context.Context, owner model.OwnerID, id int64, favorite bool) (*model.Contact, error)
	Delete(ctx context.Context, owner model.OwnerID, id int64) (*model.Contact, error)
	SearchByText(ctx context.Context, owner model.OwnerID, query string) ([]model.Contact, error)
	SearchUpcomingBirthdays(ctx context.Context, owner model.OwnerID, q model.BirthdayQuery) ([]model.Contact, error)
}

// API holds the dependencies of the REST handlers.
type API struct {
	contacts ContactStore
	tokens   *Tokens
}

// NewAPI returns the REST API on top of the contact store. Requests are attributed to the owner
// named in their bearer token.
func NewAPI(contacts ContactStore, tokens *Tokens) *API {
	return &API{contacts: contacts, tokens: tokens}
}

// SetupHttpRouter initializes the REST API router and registers all endpoints.
func SetupHttpRouter(api *API, logging bool) *gin.Engine {
	if !logging {
		log.Info().Msg("Turning off HTTP request logging.")
	}
	router := gin.New()
	router.Use(requestID(logging), gin.Recovery())

	router.GET("/health", health)

	contacts := router.Group("/contacts", api.authenticate)
	contacts.GET("", api.findContacts)
	contacts.POST("", api.createContact)
	contacts.GET("/search", api.searchContacts)
	contacts.GET("/birthdays", api.findUpcomingBirthdays)
	contacts.GET("/by-email/:email", api.findContactByEmail)
	contacts.GET("/:id", api.findContactByID)
	contacts.PUT("/:id", api.updateContactByID)
	contacts.PATCH("/:id/favorite", api.setFavoriteByID)
	contacts.DELETE("/:id", api.deleteContactByID)
	return router
}

// health tells load balancers and the wait-until-available tool that the service is up.
func health(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, gin.H{"status": "ok"})
}

// findContacts responds with the caller's contacts as JSON, ordered by id.
//
// The URL parameter 'favorite' restricts the result to favorites ('true') or non-favorites
// ('false'). Without it, all contacts are returned.
//
// The URL parameter 'limit' specifies how many contacts are returned. The URL parameter 'skip'
// specifies how many contacts are skipped in the beginning. Together they implement paging.
//
// REST API calls:
//
//	> curl -H "Authorization: Bearer $TOKEN" "http://localhost:8080/contacts"
//	> curl -H "Authorization: Bearer $TOKEN" "http://localhost:8080/contacts?favorite=true"
//	> curl -H "Authorization: Bearer $TOKEN" "http://localhost:8080/contacts?limit=20&skip=60"
func (a *API) findContacts(c *gin.Context) {
	skip, limit, ok := parseSkipAndLimit(c)
	if !ok {
		return
	}
	favorite, ok := parseFavorite(c)
	if !ok {
		return
	}
	contacts, err := a.contacts.List(c.Request.Context(), ownerOf(c), skip, limit, favorite)
	if err != nil {
		internalError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, contacts)
}

// searchContacts responds with the caller's contacts whose first name, last name or email contains
// the URL parameter 'q', ignoring case. An empty or missing 'q' matches all contacts.
//
// REST API call:
//
//	> curl -H "Authorization: Bearer $TOKEN" "http://localhost:8080/contacts/search?q=muster"
func (a *API) searchContacts(c *gin.Context) {
	contacts, err := a.contacts.SearchByText(c.Request.Context(), ownerOf(c), c.Query("q"))
	if err != nil {
		internalError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, contacts)
}

// findUpcomingBirthdays responds with the caller's contacts whose birthday lies within the next
// 'days' days (default 7) of the current year, today included. The URL parameters 'skip' and
// 'limit' page through the contacts before the birthday window is applied.
//
// REST API call:
//
//	> curl -H "Authorization: Bearer $TOKEN" "http://localhost:8080/contacts/birthdays?days=14"
func (a *API) findUpcomingBirthdays(c *gin.Context) {
	skip, limit, ok := parseSkipAndLimit(c)
	if !ok {
		return
	}
	days := model.DefaultBirthdayDays
	if s := c.Query("days"); s != "" {
		var err error
		days, err = strconv.Atoi(s)
		if err != nil || days < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid days parameter"})
			return
		}
	}
	query := model.BirthdayQuery{Days: days, Skip: skip, Limit: limit}
	contacts, err := a.contacts.SearchUpcomingBirthdays(c.Request.Context(), ownerOf(c), query)
	if err != nil {
		internalError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, contacts)
}

// findContactByEmail responds with the caller's contact whose email matches the path parameter
// exactly.
//
// REST API call:
//
//	> curl -H "Authorization: Bearer $TOKEN" http://localhost:8080/contacts/by-email/erika@example.com
func (a *API) findContactByEmail(c *gin.Context) {
	contact, err := a.contacts.GetByEmail(c.Request.Context(), ownerOf(c), c.Param("email"))
	respondWithContact(c, http.StatusOK, contact, err)
}

// findContactByID locates the caller's contact whose ID value matches the id parameter of the
// request URL, then returns that contact as a response.
//
// Example REST API call:
//
//	> curl -H "Authorization: Bearer $TOKEN" http://localhost:8080/contacts/56
func (a *API) findContactByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	contact, err := a.contacts.GetByID(c.Request.Context(), ownerOf(c), id)
	respondWithContact(c, http.StatusOK, contact, err)
}

// createContact stores the contact specified in the request's JSON for the caller. It responds
// with the full contact data including the newly assigned id.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts --request "POST" --include --header "Authorization: Bearer $TOKEN" --header "Content-Type: application/json" --data '{"firstname": "Erika", "lastname": "Mustermann", "email": "erika@example.com", "phone": "0815", "birthday": "1969-03-02"}'
func (a *API) createContact(c *gin.Context) {
	fields, ok := bindContact(c)
	if !ok {
		return
	}
	contact, err := a.contacts.Create(c.Request.Context(), ownerOf(c), fields)
	respondWithContact(c, http.StatusCreated, contact, err)
}

// updateContactByID replaces all values of the caller's contact whose ID value matches the id
// parameter of the request URL with the ones in the JSON, and responds with the new version of the
// contact.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/56 --request "PUT" --include --header "Authorization: Bearer $TOKEN" --header "Content-Type: application/json" --data '{"firstname": "Erika", "lastname": "Gabler", "email": "erika@example.com", "phone": "81970"}'
func (a *API) updateContactByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	fields, ok := bindContact(c)
	if !ok {
		return
	}
	contact, err := a.contacts.Update(c.Request.Context(), ownerOf(c), id, fields)
	respondWithContact(c, http.StatusOK, contact, err)
}

// setFavoriteByID marks or unmarks the caller's contact as a favorite and responds with the new
// version of the contact. All other values stay untouched.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/56/favorite --request "PATCH" --header "Authorization: Bearer $TOKEN" --header "Content-Type: application/json" --data '{"favorite": true}'
func (a *API) setFavoriteByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body payload.Favorite
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid JSON"})
		return
	}
	contact, err := a.contacts.SetFavorite(c.Request.Context(), ownerOf(c), id, *body.Favorite)
	respondWithContact(c, http.StatusOK, contact, err)
}

// deleteContactByID deletes the caller's contact whose ID value matches the id parameter of the
// request URL and responds with its last state.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/56 --request "DELETE" --header "Authorization: Bearer $TOKEN"
func (a *API) deleteContactByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	contact, err := a.contacts.Delete(c.Request.Context(), ownerOf(c), id)
	respondWithContact(c, http.StatusOK, contact, err)
}

// respondWithContact sends the contact with the given status, 404 if there is none, or 500 if the
// store failed.
func respondWithContact(c *gin.Context, status int, contact *model.Contact, err error) {
	switch {
	case err != nil:
		internalError(c, err)
	case contact == nil:
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "contact not found"})
	default:
		c.IndentedJSON(status, contact)
	}
}

// internalError logs the cause and answers with a generic message.
func internalError(c *gin.Context, err error) {
	requestLogger(c).Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
}

// parseID reads the id path parameter. A non-numeric id cannot exist, so it is answered with NOT
// FOUND.
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "invalid id parameter"})
		return 0, false
	}
	return id, true
}

// parseSkipAndLimit inspects the URL parameters and determines values for skip and limit of the
// result set.
func parseSkipAndLimit(c *gin.Context) (skip int, limit int, success bool) {
	limit = store.MaxLimit
	if s := c.Query("limit"); s != "" {
		var err error
		limit, err = strconv.Atoi(s)
		if err != nil || limit < 1 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid limit parameter"})
			return 0, 0, false
		}
	}
	if s := c.Query("skip"); s != "" {
		var err error
		skip, err = strconv.Atoi(s)
		if err != nil || skip < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid skip parameter"})
			return 0, 0, false
		}
	}
	return skip, limit, true
}

// parseFavorite turns the optional 'favorite' URL parameter into a filter.
func parseFavorite(c *gin.Context) (model.FavoriteFilter, bool) {
	s, present := c.GetQuery("favorite")
	if !present {
		return model.AnyFavorite, true
	}
	favorite, err := strconv.ParseBool(s)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid favorite parameter"})
		return model.AnyFavorite, false
	}
	return model.OnlyFavorite(favorite), true
}

// bindContact validates the request's JSON and converts it into the values to be stored.
func bindContact(c *gin.Context) (model.ContactFields, bool) {
	var body payload.Contact
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid JSON", "details": err.Error()})
		return model.ContactFields{}, false
	}
	fields := model.ContactFields{
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Email:     body.Email,
		Phone:     body.Phone,
		Comments:  body.Comments,
		Favorite:  body.Favorite,
	}
	if body.Birthday != nil {
		birthday, err := time.Parse(payload.DateLayout, *body.Birthday)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid birthday"})
			return model.ContactFields{}, false
		}
		fields.Birthday = &birthday
	}
	return fields, true
}
