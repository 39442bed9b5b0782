package users

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type User struct {
	gorm.Model
	Username    string `gorm:"unique"`
	DisplayName string
	Password    string
	Admin       bool
}

func Create(db *gorm.DB, username, password string, admin bool) (User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	user := User{Username: username, DisplayName: username, Password: string(hashedPassword), Admin: admin}
	if err := db.Create(&user).Error; err != nil {
		return User{}, err
	}
	return user, nil
}

// EnsureAdmin creates the "admin" account on first start. getPassword is
// only consulted when the account does not exist yet.
func EnsureAdmin(db *gorm.DB, getPassword func() (string, error)) error {
	var user User
	err := db.Where("username = ?", "admin").First(&user).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	password, err := getPassword()
	if err != nil {
		return err
	}
	_, err = Create(db, "admin", password, true)
	return err
}

func Authenticate(db *gorm.DB, username, password string) (User, error) {
	var user User
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

func Get(db *gorm.DB, id uint) (User, error) {
	var user User
	err := db.First(&user, id).Error
	return user, err
}
