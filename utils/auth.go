package utils

import (
	"os"
	"time"

	"fieldops/constants"
	"fieldops/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var jwtSecret = []byte(func() string {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		return secret
	}
	return "supersecretkey"
}())

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword(
		[]byte(password),
		bcrypt.DefaultCost,
	)
	return string(bytes), err
}

func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword(
		[]byte(hash),
		[]byte(password),
	)
	return err == nil
}

func GenerateJWT(user models.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"role":    user.Role,
		"exp":     time.Now().Add(time.Hour * 24).Unix(),
	}

	token := jwt.NewWithClaims(
		jwt.SigningMethodHS256,
		claims,
	)

	return token.SignedString(jwtSecret)
}

// IsElevatedRole reports whether the role may act on tasks it is not
// assigned to (status-agnostic events and read access).
func IsElevatedRole(role string) bool {
	return role == constants.RoleAdmin || role == constants.RoleManager
}

// CanAccessTask gates read access: elevated roles see everything, members
// only tasks they created or are assigned to. Assignees must be preloaded.
func CanAccessTask(task models.Task, userID uint, role string) bool {
	if IsElevatedRole(role) {
		return true
	}
	return task.CreatedByID == userID || task.IsAssignedTo(userID)
}

func JwtSecret() []byte {
	return jwtSecret
}
