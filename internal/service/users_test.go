package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/dirk.krummacker/address-book/internal/auth"
	api "gitlab.com/dirk.krummacker/address-book/pkg/model"
)

// expectUserLookup instructs the mock object to expect a select of the user with the given email
// address, answered with rows.
func expectUserLookup(mock sqlmock.Sqlmock, email string, rows *sqlmock.Rows) {
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = ?")).
		WithArgs(email).
		WillReturnRows(rows)
}

func userRow(mock sqlmock.Sqlmock, password string, refreshToken interface{}, confirmed bool) *sqlmock.Rows {
	return mock.NewRows(userRowColumns).
		AddRow(1, "erika", erikaEmail, password, refreshToken, confirmed, today)
}

// postForm sends a form encoded POST request.
func postForm(s *Service, path string, form url.Values) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	request, _ := http.NewRequest("POST", path, strings.NewReader(form.Encode()))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	s.SetupHttpRouter().ServeHTTP(recorder, request)
	return recorder
}

func TestSignup(t *testing.T) {
	db, mock := createMockObjects(t)
	s, sender := initializeService(t, db, nil)

	expectUserLookup(mock, erikaEmail, mock.NewRows(userRowColumns))
	mock.ExpectExec("INSERT INTO users").
		WithArgs("erika", erikaEmail, sqlmock.AnyArg(), false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	recorder := runTest(s, "POST", "/api/auth/signup",
		`{"username": "erika", "email": "erika@example.com", "password": "s3cret!"}`, "")
	assert.Equal(t, http.StatusCreated, recorder.Code)
	var user api.UserResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &user))
	assert.Equal(t, int64(1), user.Id)
	assert.Equal(t, "erika", user.Username)
	assert.NotContains(t, recorder.Body.String(), "s3cret!")
	assert.NoError(t, mock.ExpectationsWereMet())

	s.Wait()
	messages := sender.messages()
	require.Len(t, messages, 1)
	assert.Equal(t, erikaEmail, messages[0].To)
	assert.Contains(t, messages[0].HTML, "http://localhost:8080/api/auth/confirmed_email/")
}

func TestSignupExistingAccount(t *testing.T) {
	db, mock := createMockObjects(t)
	s, sender := initializeService(t, db, nil)

	expectUserLookup(mock, erikaEmail, userRow(mock, "$2a$12$hash", nil, true))

	recorder := runTest(s, "POST", "/api/auth/signup",
		`{"username": "erika", "email": "erika@example.com", "password": "s3cret!"}`, "")
	assert.Equal(t, http.StatusConflict, recorder.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
	s.Wait()
	assert.Empty(t, sender.messages())
}

// TestSignupRace expects 409 when the unique key rejects an address registered in the meantime.
func TestSignupRace(t *testing.T) {
	db, mock := createMockObjects(t)
	s, _ := initializeService(t, db, nil)

	expectUserLookup(mock, erikaEmail, mock.NewRows(userRowColumns))
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	recorder := runTest(s, "POST", "/api/auth/signup",
		`{"username": "erika", "email": "erika@example.com", "password": "s3cret!"}`, "")
	assert.Equal(t, http.StatusConflict, recorder.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSignupInvalid(t *testing.T) {
	db, mock := createMockObjects(t)
	s, _ := initializeService(t, db, nil)

	recorder := runTest(s, "POST", "/api/auth/signup",
		`{"username": "erika", "email": "erika@example.com", "password": "short"}`, "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "invalid value for password: min=6", decodeMessage(t, recorder))

	// longer than the users.email column
	longEmail := strings.Repeat("a", 60) + "@" + strings.Repeat("b", 100) + ".example"
	recorder = runTest(s, "POST", "/api/auth/signup",
		`{"username": "erika", "email": "`+longEmail+`", "password": "s3cret!"}`, "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "invalid value for email: max=150", decodeMessage(t, recorder))

	recorder = runTest(s, "POST", "/api/auth/request_email", `{"email": "`+longEmail+`"}`, "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin(t *testing.T) {
	hashed, err := auth.HashPassword("s3cret!")
	require.NoError(t, err)
	db, mock := createMockObjects(t)
	s, _ := initializeService(t, db, nil)

	expectUserLookup(mock, erikaEmail, userRow(mock, hashed, nil, true))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET refresh_token = ? WHERE id = ?")).
		WithArgs(sqlmock.AnyArg(), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	recorder := postForm(s, "/api/auth/login", url.Values{"username": {erikaEmail}, "password": {"s3cret!"}})
	assert.Equal(t, http.StatusOK, recorder.Code)
	var tokens api.TokenResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &tokens))
	assert.Equal(t, "bearer", tokens.TokenType)

	email, err := s.tokens.DecodeAccessToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, erikaEmail, email)
	email, err = s.tokens.DecodeRefreshToken(tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, erikaEmail, email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestLoginRejected expects 401 for an unknown address, an unconfirmed address and a wrong
// password. No token is stored.
func TestLoginRejected(t *testing.T) {
	hashed, err := auth.HashPassword("s3cret!")
	require.NoError(t, err)

	cases := []struct {
		name     string
		rows     func(mock sqlmock.Sqlmock) *sqlmock.Rows
		password string
		message  string
	}{
		{"unknown", func(mock sqlmock.Sqlmock) *sqlmock.Rows { return mock.NewRows(userRowColumns) }, "s3cret!", "invalid email"},
		{"unconfirmed", func(mock sqlmock.Sqlmock) *sqlmock.Rows { return userRow(mock, hashed, nil, false) }, "s3cret!", "email not confirmed"},
		{"wrong password", func(mock sqlmock.Sqlmock) *sqlmock.Rows { return userRow(mock, hashed, nil, true) }, "guess", "invalid password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := createMockObjects(t)
			s, _ := initializeService(t, db, nil)
			expectUserLookup(mock, erikaEmail, tc.rows(mock))

			recorder := postForm(s, "/api/auth/login", url.Values{"username": {erikaEmail}, "password": {tc.password}})
			assert.Equal(t, http.StatusUnauthorized, recorder.Code)
			assert.Equal(t, tc.message, decodeMessage(t, recorder))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRefreshToken(t *testing.T) {
	db, mock := createMockObjects(t)
	s, _ := initializeService(t, db, nil)
	refresh, err := s.tokens.CreateRefreshToken(erikaEmail)
	require.NoError(t, err)

	expectUserLookup(mock, erikaEmail, userRow(mock, "$2a$12$hash", refresh, true))
	mock.ExpectExec("UPDATE users SET refresh_token").
		WithArgs(sqlmock.AnyArg(), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	recorder := runTest(s, "GET", "/api/auth/refresh_token", "", refresh)
	assert.Equal(t, http.StatusOK, recorder.Code)
	var tokens api.TokenResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &tokens))
	assert.NotEqual(t, refresh, tokens.RefreshToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestRefreshTokenReuse presents a valid refresh token that is not the stored one. It expects 401
// and the stored token to be cleared.
func TestRefreshTokenReuse(t *testing.T) {
	db, mock := createMockObjects(t)
	s, _ := initializeService(t, db, nil)
	stale, err := s.tokens.CreateRefreshToken(erikaEmail)
	require.NoError(t, err)
	current, err := s.tokens.CreateRefreshToken(erikaEmail)
	require.NoError(t, err)

	expectUserLookup(mock, erikaEmail, userRow(mock, "$2a$12$hash", current, true))
	mock.ExpectExec("UPDATE users SET refresh_token").
		WithArgs(nil, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	recorder := runTest(s, "GET", "/api/auth/refresh_token", "", stale)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, "invalid refresh token", decodeMessage(t, recorder))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestRefreshTokenWithAccessToken expects 401 without a database call.
func TestRefreshTokenWithAccessToken(t *testing.T) {
	db, mock := createMockObjects(t)
	s, _ := initializeService(t, db, nil)

	recorder := runTest(s, "GET", "/api/auth/refresh_token", "", accessToken(t, s))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmedEmail(t *testing.T) {
	db, mock := createMockObjects(t)
	s, _ := initializeService(t, db, nil)
	token, err := s.tokens.CreateEmailToken(erikaEmail)
	require.NoError(t, err)

	expectUserLookup(mock, erikaEmail, userRow(mock, "$2a$12$hash", nil, false))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET confirmed = TRUE WHERE email = ?")).
		WithArgs(erikaEmail).
		WillReturnResult(sqlmock.NewResult(0, 1))

	recorder := runTest(s, "GET", "/api/auth/confirmed_email/"+token, "", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "email confirmed", decodeMessage(t, recorder))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmedEmailTwice(t *testing.T) {
	db, mock := createMockObjects(t)
	s, _ := initializeService(t, db, nil)
	token, err := s.tokens.CreateEmailToken(erikaEmail)
	require.NoError(t, err)

	expectUserLookup(mock, erikaEmail, userRow(mock, "$2a$12$hash", nil, true))

	recorder := runTest(s, "GET", "/api/auth/confirmed_email/"+token, "", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "your email is already confirmed", decodeMessage(t, recorder))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmedEmailInvalidToken(t *testing.T) {
	db, mock := createMockObjects(t)
	s, _ := initializeService(t, db, nil)

	recorder := runTest(s, "GET", "/api/auth/confirmed_email/"+accessToken(t, s), "", "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestRequestEmail expects the same answer for an unconfirmed and an unknown address, and an email
// only for the former.
func TestRequestEmail(t *testing.T) {
	db, mock := createMockObjects(t)
	s, sender := initializeService(t, db, nil)

	expectUserLookup(mock, erikaEmail, userRow(mock, "$2a$12$hash", nil, false))
	expectUserLookup(mock, "nobody@example.com", mock.NewRows(userRowColumns))

	recorder := runTest(s, "POST", "/api/auth/request_email", `{"email": "erika@example.com"}`, "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, checkYourEmail, decodeMessage(t, recorder))
	recorder = runTest(s, "POST", "/api/auth/request_email", `{"email": "nobody@example.com"}`, "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, checkYourEmail, decodeMessage(t, recorder))
	assert.NoError(t, mock.ExpectationsWereMet())

	s.Wait()
	messages := sender.messages()
	require.Len(t, messages, 1)
	assert.Equal(t, erikaEmail, messages[0].To)
}

func TestMe(t *testing.T) {
	db, mock := createMockObjects(t)
	s, _ := initializeService(t, db, nil)

	expectCurrentUser(mock)

	recorder := runTest(s, "GET", "/api/users/me", "", accessToken(t, s))
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"id": 1, "username": "erika", "email": "erika@example.com"}`, recorder.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}
