package service

import (
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"gitlab.com/dirk.krummacker/address-book/internal/auth"
	"gitlab.com/dirk.krummacker/address-book/internal/model"
	"gitlab.com/dirk.krummacker/address-book/internal/repository"
	"gitlab.com/dirk.krummacker/address-book/internal/validation"
	api "gitlab.com/dirk.krummacker/address-book/pkg/model"
)

const (
	defaultLimit     = 10
	minLimit         = 10
	maxLimit         = 500
	maxFilterLength  = 50
	defaultDaysRange = 7
)

// findContacts responds with the current user's contacts as JSON.
//
// The URL parameters 'name', 'surname' and 'email' are matched case-insensitively anywhere in the
// respective field. If several are given, a contact has to match all of them.
//
// The URL parameter 'limit' (10 to 500, default 10) specifies how many contacts are returned. The
// URL parameter 'offset' specifies how many matching contacts are skipped in the beginning.
// Results are ordered by id.
//
// REST API calls:
//
//	> curl -H "Authorization: Bearer $TOKEN" "http://localhost:8080/api/contacts"
//	> curl -H "Authorization: Bearer $TOKEN" "http://localhost:8080/api/contacts?name=eri&email=example"
//	> curl -H "Authorization: Bearer $TOKEN" "http://localhost:8080/api/contacts?limit=20&offset=60"
func (s *Service) findContacts(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	filter, ok := parseFilter(c)
	if !ok {
		return
	}
	limit, offset, ok := parseLimitAndOffset(c)
	if !ok {
		return
	}
	contacts, err := repository.ListContacts(c.Request.Context(), s.db, filter, limit, offset, user.Id)
	if err != nil {
		internalError(c, "could not list contacts", err)
		return
	}
	c.IndentedJSON(http.StatusOK, toContactResponses(contacts, user))
}

// parseFilter reads the optional search parameters. A parameter that is present must hold between
// 1 and 50 characters.
func parseFilter(c *gin.Context) (filter model.ContactFilter, success bool) {
	fields := []struct {
		name   string
		target **string
	}{
		{"name", &filter.Name},
		{"surname", &filter.Surname},
		{"email", &filter.Email},
	}
	for _, field := range fields {
		value, present := c.GetQuery(field.name)
		if !present {
			continue
		}
		length := utf8.RuneCountInString(value)
		if length < 1 || length > maxFilterLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid " + field.name + " parameter"})
			return model.ContactFilter{}, false
		}
		*field.target = &value
	}
	return filter, true
}

// parseLimitAndOffset inspects the URL parameters and determines values for limit and offset of
// the result set.
func parseLimitAndOffset(c *gin.Context) (limit int, offset int, success bool) {
	limit = defaultLimit
	if value := c.Query("limit"); value != "" {
		var err error
		limit, err = strconv.Atoi(value)
		if err != nil || limit < minLimit || limit > maxLimit {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid limit parameter"})
			return 0, 0, false
		}
	}
	if value := c.Query("offset"); value != "" {
		var err error
		offset, err = strconv.Atoi(value)
		if err != nil || offset < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid offset parameter"})
			return 0, 0, false
		}
	}
	return limit, offset, true
}

// findUpcomingBirthdays responds with the contacts whose birthday falls between today and
// 'days_range' days from now (default 7). The year is ignored. A range that reaches into the next
// year returns no contacts.
//
// Example REST API call:
//
//	> curl -H "Authorization: Bearer $TOKEN" "http://localhost:8080/api/contacts/birthdays?days_range=14"
func (s *Service) findUpcomingBirthdays(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	daysRange := defaultDaysRange
	if value := c.Query("days_range"); value != "" {
		var err error
		daysRange, err = strconv.Atoi(value)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid days_range parameter"})
			return
		}
	}
	contacts, err := repository.UpcomingBirthdays(c.Request.Context(), s.db, daysRange, user.Id, s.now())
	if err != nil {
		internalError(c, "could not find upcoming birthdays", err)
		return
	}
	c.IndentedJSON(http.StatusOK, toContactResponses(contacts, user))
}

// findContactByID responds with the current user's contact whose id matches the id parameter of
// the request URL.
//
// Example REST API call:
//
//	> curl -H "Authorization: Bearer $TOKEN" http://localhost:8080/api/contacts/56
func (s *Service) findContactByID(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	id, ok := parseId(c)
	if !ok {
		return
	}
	contact, err := repository.GetContact(c.Request.Context(), s.db, id, user.Id)
	if err != nil {
		internalError(c, "could not find contact", err)
		return
	}
	if contact == nil {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "contact not found"})
		return
	}
	c.IndentedJSON(http.StatusOK, toContactResponse(*contact, user))
}

// createContact stores the contact in the request's JSON for the current user. It responds with
// the full contact data including the newly assigned id.
//
// Example REST API call:
//
//	> curl http://localhost:8080/api/contacts --request "POST" --include --header "Authorization: Bearer $TOKEN" --header "Content-Type: application/json" --data '{"name": "Erika", "surname": "Mustermann", "email": "erika@example.com", "phone": "+49 151 2345678", "birthday": "1969-03-02"}'
func (s *Service) createContact(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	values, ok := bindContact(c)
	if !ok {
		return
	}
	contact, err := repository.CreateContact(c.Request.Context(), s.db, values, user.Id)
	if err != nil {
		internalError(c, "could not create contact", err)
		return
	}
	c.IndentedJSON(http.StatusCreated, toContactResponse(*contact, user))
}

// updateContactByID replaces all fields of the current user's contact whose id matches the id
// parameter of the request URL and responds with the new version of the contact.
//
// Example REST API call:
//
//	> curl http://localhost:8080/api/contacts/56 --request "PUT" --include --header "Authorization: Bearer $TOKEN" --header "Content-Type: application/json" --data '{"name": "Erika", "surname": "Musterfrau", "email": "erika@example.com", "phone": "+49 151 2345678", "birthday": "1969-03-02"}'
func (s *Service) updateContactByID(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	id, ok := parseId(c)
	if !ok {
		return
	}
	values, ok := bindContact(c)
	if !ok {
		return
	}
	contact, err := repository.UpdateContact(c.Request.Context(), s.db, id, values, user.Id)
	if err != nil {
		internalError(c, "could not update contact", err)
		return
	}
	if contact == nil {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "contact not found"})
		return
	}
	c.IndentedJSON(http.StatusOK, toContactResponse(*contact, user))
}

// deleteContactByID deletes the current user's contact whose id matches the id parameter of the
// request URL and responds with the contact as it was before.
//
// Example REST API call:
//
//	> curl http://localhost:8080/api/contacts/56 --request "DELETE" --header "Authorization: Bearer $TOKEN"
func (s *Service) deleteContactByID(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	id, ok := parseId(c)
	if !ok {
		return
	}
	contact, err := repository.DeleteContact(c.Request.Context(), s.db, id, user.Id)
	if err != nil {
		internalError(c, "could not delete contact", err)
		return
	}
	if contact == nil {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "contact not found"})
		return
	}
	c.IndentedJSON(http.StatusOK, toContactResponse(*contact, user))
}

// bindContact validates the request body and converts it into contact values with a normalized
// phone number.
func bindContact(c *gin.Context) (model.Contact, bool) {
	var schema api.ContactSchema
	if err := c.ShouldBindJSON(&schema); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": validation.Describe(err)})
		return model.Contact{}, false
	}
	birthday, err := validation.ParseDate(schema.Birthday)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid value for birthday"})
		return model.Contact{}, false
	}
	return model.Contact{
		Name:     schema.Name,
		Surname:  schema.Surname,
		Email:    schema.Email,
		Phone:    validation.NormalizePhone(schema.Phone),
		Birthday: birthday,
	}, true
}

func toContactResponse(contact model.Contact, owner *model.User) api.ContactResponse {
	return api.ContactResponse{
		Id:       contact.Id,
		Name:     contact.Name,
		Surname:  contact.Surname,
		Email:    contact.Email,
		Phone:    contact.Phone,
		Birthday: contact.Birthday.Format(api.DateLayout),
		User:     toUserResponse(owner),
	}
}

func toContactResponses(contacts []model.Contact, owner *model.User) []api.ContactResponse {
	responses := make([]api.ContactResponse, 0, len(contacts))
	for _, contact := range contacts {
		responses = append(responses, toContactResponse(contact, owner))
	}
	return responses
}
