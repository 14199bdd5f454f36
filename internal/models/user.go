package models

import "time"

// User представляет пользователя в системе
type User struct {
	CreatedAt    time.Time  `json:"created_at"`           // время создания
	LastLogin    *time.Time `json:"last_login,omitempty"` // время последнего входа
	ID           string     `json:"id"`                   // UUID пользователя
	Username     string     `json:"username"`             // уникальный username
	PasswordHash string     `json:"-"`                    // bcrypt хеш пароля
	Admin        bool       `json:"admin"`                // администратор сервера
}

// RefreshToken представляет refresh token пользователя
type RefreshToken struct {
	ExpiresAt time.Time `json:"expires_at"` // время истечения
	CreatedAt time.Time `json:"created_at"` // время создания
	Token     string    `json:"token"`      // значение токена (base64)
	UserID    string    `json:"user_id"`    // ID пользователя
}

// TranslatorPermission grants a user the right to translate into a locale.
// An empty ProjectSlug means the grant applies to every project.
type TranslatorPermission struct {
	UserID      string `json:"user_id"`
	LocaleID    string `json:"locale_id"`
	ProjectSlug string `json:"project_slug,omitempty"`
}
