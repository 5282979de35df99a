package service

import "github.com/rookgm/storefront/internal/models"

type TokenService interface {
	CreateToken(session string) (string, error)
	VerifyToken(tokenString string) (*models.TokenPayload, error)
}
