package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/Stoq-api/internal/application/dto"
	"github.com/jhoicas/Stoq-api/internal/domain"
	"github.com/jhoicas/Stoq-api/internal/domain/entity"
	"github.com/jhoicas/Stoq-api/internal/domain/repository"
	"github.com/jhoicas/Stoq-api/pkg/logger"
)

// CodeBroker emisión y canje de códigos de verificación.
type CodeBroker interface {
	Generate(ctx context.Context, principal string, scenario entity.Scenario) (string, error)
	Consume(ctx context.Context, principal, code string, scenario entity.Scenario) error
	Purge(ctx context.Context, principal string) error
}

// TokenService emisión y renovación de tokens de sesión. Ambos devuelven el exp firmado.
type TokenService interface {
	Issue(principal string) (string, time.Time, error)
	Refresh(token string) (string, time.Time, error)
}

// AuthUseCase casos de uso de cuenta: código, registro, login, refresh y restablecimiento.
type AuthUseCase struct {
	users  repository.UserRepository
	codes  CodeBroker
	tokens TokenService
	log    *logger.Logger
	now    func() time.Time
}

// NewAuthUseCase construye el caso de uso de auth.
func NewAuthUseCase(users repository.UserRepository, codes CodeBroker, tokens TokenService, log *logger.Logger) *AuthUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &AuthUseCase{
		users:  users,
		codes:  codes,
		tokens: tokens,
		log:    log.WithComponent("auth"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SendCode emite un código para el escenario. REGISTER exige email libre; RESET_PASSWORD, registrado.
func (uc *AuthUseCase) SendCode(ctx context.Context, email string, scenario entity.Scenario) error {
	email = entity.NormalizeEmail(email)
	exists, err := uc.users.ExistsByEmail(ctx, email)
	if err != nil {
		return err
	}
	switch scenario {
	case entity.ScenarioRegister:
		if exists {
			return domain.ErrEmailAlreadyExists
		}
	case entity.ScenarioResetPassword:
		if !exists {
			return domain.ErrNotFound
		}
	default:
		return domain.ErrInvalidInput
	}
	_, err = uc.codes.Generate(ctx, email, scenario)
	return err
}

// Register crea el usuario tras canjear el código REGISTER. El password se guarda con bcrypt.
func (uc *AuthUseCase) Register(ctx context.Context, in dto.RegisterRequest) (*dto.UserResponse, error) {
	email := entity.NormalizeEmail(in.Email)
	exists, err := uc.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrEmailAlreadyExists
	}
	// El hash va antes del canje: si falla, el código sigue disponible.
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	if err := uc.codes.Consume(ctx, email, in.Code, entity.ScenarioRegister); err != nil {
		return nil, err
	}
	now := uc.now()
	name := in.Name
	if name == "" {
		name = email
	}
	user := &entity.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.users.Create(ctx, user); err != nil {
		return nil, err
	}
	uc.log.Info().Str("principal", email).Msg("usuario registrado")
	resp := dto.ToUserResponse(user)
	return &resp, nil
}

// Login verifica email/password y emite un token. Credenciales erróneas: domain.ErrUnauthorized.
func (uc *AuthUseCase) Login(ctx context.Context, in dto.LoginRequest) (*dto.LoginResponse, error) {
	email := entity.NormalizeEmail(in.Email)
	user, err := uc.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, domain.ErrUnauthorized
	}
	token, exp, err := uc.tokens.Issue(user.Email)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		TokenResponse: dto.TokenResponse{Token: token, ExpiresAt: exp},
		User:          dto.ToUserResponse(user),
	}, nil
}

// Refresh emite un token nuevo para el mismo principal. El token anterior sigue vigente hasta su exp.
func (uc *AuthUseCase) Refresh(_ context.Context, token string) (*dto.TokenResponse, error) {
	fresh, exp, err := uc.tokens.Refresh(token)
	if err != nil {
		return nil, err
	}
	return &dto.TokenResponse{Token: fresh, ExpiresAt: exp}, nil
}

// ResetPassword cambia la contraseña tras canjear el código RESET_PASSWORD y purga los códigos pendientes.
func (uc *AuthUseCase) ResetPassword(ctx context.Context, in dto.ResetPasswordRequest) error {
	if in.Password != in.ConfirmPassword {
		return fmt.Errorf("%w: las contraseñas no coinciden", domain.ErrInvalidInput)
	}
	email := entity.NormalizeEmail(in.Email)
	exists, err := uc.users.ExistsByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return err
	}
	if err := uc.codes.Consume(ctx, email, in.Code, entity.ScenarioResetPassword); err != nil {
		return err
	}
	if err := uc.users.UpdatePassword(ctx, email, string(hash)); err != nil {
		return err
	}
	if err := uc.codes.Purge(ctx, email); err != nil {
		uc.log.Warn().Err(err).Str("principal", email).Msg("no se pudieron purgar los códigos")
	}
	uc.log.Info().Str("principal", email).Msg("contraseña restablecida")
	return nil
}

// Me perfil del principal autenticado.
func (uc *AuthUseCase) Me(ctx context.Context, principal string) (*dto.UserResponse, error) {
	if principal == "" {
		return nil, domain.ErrUnauthorized
	}
	user, err := uc.users.GetByEmail(ctx, principal)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}
	resp := dto.ToUserResponse(user)
	return &resp, nil
}

// hashPassword aplica bcrypt. Más de MaxPasswordBytes es entrada inválida, no un fallo interno.
func hashPassword(password string) ([]byte, error) {
	if len(password) > dto.MaxPasswordBytes {
		return nil, fmt.Errorf("%w: la contraseña supera %d bytes", domain.ErrInvalidInput, dto.MaxPasswordBytes)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}
