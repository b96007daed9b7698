package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Dias221467/Chat_Server/internal/models"
	"github.com/Dias221467/Chat_Server/internal/repository"
	"github.com/Dias221467/Chat_Server/pkg/apperror"
	jwtutil "github.com/Dias221467/Chat_Server/pkg/jwt"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

var validate = validator.New()

// RegisterInput is the payload of a sign-up.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=64"`
	Username string `json:"username" validate:"required,alphanum,min=3,max=32"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Bio      string `json:"bio" validate:"max=280"`
}

// LoginInput identifies the account by email or username.
type LoginInput struct {
	Email    string `json:"email" validate:"omitempty,email"`
	Username string `json:"username"`
	Password string `json:"password" validate:"required"`
}

// UserService is the user directory: accounts, sessions and lookups.
type UserService struct {
	users       UserStore
	chats       ChatStore
	jwtSecret   string
	tokenExpiry time.Duration
}

// NewUserService creates a new instance of UserService.
func NewUserService(users UserStore, chats ChatStore, jwtSecret string, tokenExpiry time.Duration) *UserService {
	return &UserService{
		users:       users,
		chats:       chats,
		jwtSecret:   jwtSecret,
		tokenExpiry: tokenExpiry,
	}
}

// RegisterUser creates an account with a bcrypt-hashed password and returns it with a session token.
func (s *UserService) RegisterUser(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return nil, "", apperror.BadRequest(validationMessage(err))
	}

	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", apperror.Internal(err)
	}

	user, err := s.users.CreateUser(ctx, &models.User{
		Name:           in.Name,
		Username:       in.Username,
		Email:          in.Email,
		Bio:            in.Bio,
		HashedPassword: string(hashedPwd),
	})
	if errors.Is(err, repository.ErrDuplicate) {
		logrus.WithField("email", in.Email).Warn("Email or username already in use")
		return nil, "", apperror.Conflict("email or username already exists")
	}
	if err != nil {
		return nil, "", apperror.Internal(err)
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	logrus.WithField("userID", user.ID.Hex()).Info("User registered successfully")
	return user, token, nil
}

// AuthenticateUser checks the credentials and returns the user with a fresh session token.
func (s *UserService) AuthenticateUser(ctx context.Context, in LoginInput) (*models.User, string, error) {
	if err := validate.Struct(in); err != nil {
		return nil, "", apperror.BadRequest(validationMessage(err))
	}
	if in.Email == "" && in.Username == "" {
		return nil, "", apperror.BadRequest("email or username is required")
	}

	user, err := s.users.GetUserByLogin(ctx, strings.ToLower(strings.TrimSpace(in.Email)), strings.TrimSpace(in.Username))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, "", apperror.Unauthenticated("invalid credentials")
	}
	if err != nil {
		return nil, "", apperror.Internal(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(in.Password)); err != nil {
		logrus.WithField("userID", user.ID.Hex()).Warn("Invalid credentials")
		return nil, "", apperror.Unauthenticated("invalid credentials")
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *UserService) issueToken(user *models.User) (string, error) {
	token, err := jwtutil.GenerateToken(user.ID.Hex(), user.Username, s.jwtSecret, s.tokenExpiry)
	if err != nil {
		return "", apperror.Internal(err)
	}
	return token, nil
}

// GetUser returns the caller's own profile.
func (s *UserService) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("user not found")
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return user, nil
}

// SearchUsers finds people by name that the caller shares no chat with yet.
func (s *UserService) SearchUsers(ctx context.Context, callerID primitive.ObjectID, name string) ([]models.PublicUser, error) {
	chats, err := s.chats.GetChatsByMember(ctx, callerID)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	exclude := []primitive.ObjectID{callerID}
	for _, chat := range chats {
		exclude = append(exclude, chat.Members...)
	}

	users, err := s.users.SearchByName(ctx, strings.TrimSpace(name), lo.Uniq(exclude))
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return lo.Map(users, func(u models.User, _ int) models.PublicUser { return u.Public() }), nil
}

// validationMessage turns validator output into a short caller-facing sentence.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return field + " must be at least " + fe.Param() + " characters"
	case "max":
		return field + " must be at most " + fe.Param() + " characters"
	default:
		return field + " is invalid"
	}
}
