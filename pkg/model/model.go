// Package model holds the JSON shapes exchanged with the address book REST API. The binding tags
// are the validation contract checked before a request reaches the repository.
package model

// DateLayout is the wire format of a birthday.
const DateLayout = "2006-01-02"

// ContactSchema is the request body for creating a contact and for replacing all fields of an
// existing one.
type ContactSchema struct {
	Name     string `json:"name"     binding:"required,min=3,max=50"`
	Surname  string `json:"surname"  binding:"required,min=3,max=50"`
	Email    string `json:"email"    binding:"required,min=7,max=50,email"`
	Phone    string `json:"phone"    binding:"required,phone"`
	Birthday string `json:"birthday" binding:"required,datetime=2006-01-02,pastdate"`
}

// ContactResponse is a contact as returned by the API.
type ContactResponse struct {
	Id       int64         `json:"id"`
	Name     string        `json:"name"`
	Surname  string        `json:"surname"`
	Email    string        `json:"email"`
	Phone    string        `json:"phone"`
	Birthday string        `json:"birthday"`
	User     *UserResponse `json:"user"`
}

// UserSchema is the request body for signing up.
type UserSchema struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email"    binding:"required,max=150,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// UserResponse is a user as returned by the API.
type UserResponse struct {
	Id       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// TokenResponse is returned by login and token refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// RequestEmail is the request body for re-sending the verification email.
type RequestEmail struct {
	Email string `json:"email" binding:"required,max=150,email"`
}
