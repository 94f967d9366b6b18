package auth

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const tokenLifetime = 24 * time.Hour

var validRoles = map[string]struct{}{
	RoleAdmin:    {},
	RoleStaff:    {},
	RoleTeacher:  {},
	RoleStudent:  {},
	RoleGuardian: {},
}

type UserService struct {
	repo *UserRepository
	log  *zap.Logger
}

func NewUserService(repo *UserRepository, log *zap.Logger) *UserService {
	return &UserService{repo: repo, log: log}
}

func (s *UserService) RegisterUser(ctx context.Context, req RegisterRequest) error {
	if _, ok := validRoles[req.Role]; !ok {
		return errors.New("unknown role")
	}
	if req.Role == RoleStudent && req.Number == "" {
		return errors.New("student number is required for student registration")
	}
	if req.Role != RoleGuardian && len(req.Dependents) > 0 {
		return errors.New("only guardians can link dependents")
	}

	existing, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	if existing != nil {
		return errors.New("email already registered")
	}

	dependents := make([]primitive.ObjectID, 0, len(req.Dependents))
	for _, dep := range req.Dependents {
		oid, err := primitive.ObjectIDFromHex(dep)
		if err != nil {
			return errors.New("invalid dependent id: " + dep)
		}
		dependents = append(dependents, oid)
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return err
	}
	user := &User{
		Number:        req.Number,
		Name:          req.Name,
		Email:         req.Email,
		PasswordHash:  hash,
		Role:          req.Role,
		Class:         req.Class,
		Section:       req.Section,
		Faculty:       req.Faculty,
		Dependents:    dependents,
		AlertsEnabled: true,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return err
	}
	s.log.Info("user registered", zap.String("role", req.Role), zap.String("email", req.Email))
	return nil
}

func (s *UserService) AuthenticateUser(ctx context.Context, cred Credential) (string, error) {
	user, err := s.repo.FindByEmail(ctx, cred.Email)
	if err != nil {
		return "", err
	}
	if user == nil || !CheckPassword(user.PasswordHash, cred.Password) {
		return "", errors.New("invalid email or password")
	}
	return GenerateJWT(user, tokenLifetime)
}
