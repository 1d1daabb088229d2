package authapi

// Envelope is the response wrapper shared by every auth endpoint.
type Envelope[T any] struct {
	Status  int    `json:"status" validate:"required"`
	Message string `json:"message"`
	Data    *T     `json:"data,omitempty"`
}

// User is the identity returned by login and renewal.
type User struct {
	ID        string `json:"id" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"firstName"`
	ImageURL  string `json:"imageUrl,omitempty" validate:"omitempty,url"`
}

// LoginRequest is the credential exchange body.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginData is the payload of a successful login.
type LoginData struct {
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken,omitempty"`
	User         User   `json:"user"`
	Role         string `json:"role"`
	IsFirstTime  bool   `json:"isFirstTime"`
}

// RefreshRequest is the renewal body. RefreshToken is empty when the server keeps the
// refresh credential in an httpOnly cookie.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
	UserID       string `json:"userId" validate:"required"`
	ExpiresIn    int    `json:"expiresIn" validate:"gte=0"`
}

// RefreshData is the payload of a successful renewal.
type RefreshData struct {
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken,omitempty"`
	User         *User  `json:"user,omitempty"`
}
