package dto

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/jhoicas/Stoq-api/internal/domain/entity"
)

// MaxPasswordBytes límite de bcrypt; Length cuenta bytes en strings.
const MaxPasswordBytes = 72

var codeRule = validation.Match(codePattern).Error("debe tener 6 dígitos")

var passwordRule = validation.Length(8, MaxPasswordBytes)

var emailRule = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return errors.New("debe ser un email válido")
	}
	return nil
})

// SendCodeRequest solicitud de código de verificación.
type SendCodeRequest struct {
	Email    string `json:"email"`
	Scenario string `json:"scenario"`
}

// Normalize limpia el email y pasa el escenario a mayúsculas.
func (r *SendCodeRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
	r.Scenario = strings.ToUpper(strings.TrimSpace(r.Scenario))
}

func (r SendCodeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), emailRule),
		validation.Field(&r.Scenario, validation.Required,
			validation.In(string(entity.ScenarioRegister), string(entity.ScenarioResetPassword))),
	)
}

// RegisterRequest alta de usuario con el código recibido por correo.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Code     string `json:"code"`
}

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), emailRule),
		validation.Field(&r.Password, validation.Required, passwordRule),
		validation.Field(&r.Name, validation.Length(0, 200)),
		validation.Field(&r.Code, validation.Required, codeRule),
	)
}

// LoginRequest entrada para login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, emailRule),
		validation.Field(&r.Password, validation.Required),
	)
}

// RefreshRequest renovación de token. Si Token viene vacío se usa el header Authorization.
type RefreshRequest struct {
	Token string `json:"token"`
}

// ResetPasswordRequest cambio de contraseña con código RESET_PASSWORD.
type ResetPasswordRequest struct {
	Email           string `json:"email"`
	Code            string `json:"code"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, emailRule),
		validation.Field(&r.Code, validation.Required, codeRule),
		validation.Field(&r.Password, validation.Required, passwordRule),
		validation.Field(&r.ConfirmPassword, validation.Required, validation.By(stringEquals(r.Password))),
	)
}

// UserResponse salida de un usuario (sin password).
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenResponse token de sesión emitido.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginResponse salida con token JWT y usuario.
type LoginResponse struct {
	TokenResponse
	User UserResponse `json:"user"`
}

// ToUserResponse convierte la entidad sin exponer el hash.
func ToUserResponse(u *entity.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, Name: u.Name, CreatedAt: u.CreatedAt}
}

func stringEquals(str string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("las contraseñas no coinciden")
		}
		return nil
	}
}
