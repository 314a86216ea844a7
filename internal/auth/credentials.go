package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashVersionBcrypt はbcryptで生成したハッシュのバージョン識別子。
const HashVersionBcrypt = "bcrypt"

// MinPasswordLength はパスワードの最小文字数。
const MinPasswordLength = 8

// ErrPasswordTooShort はパスワードがMinPasswordLength未満の場合に返される。
var ErrPasswordTooShort = errors.New("password too short")

// HashPassword は平文パスワードをbcryptでハッシュ化し、ハッシュとバージョン識別子を返す。
func HashPassword(password string) (hash string, version string, err error) {
	if len(password) < MinPasswordLength {
		return "", "", ErrPasswordTooShort
	}

	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}

	return string(b), HashVersionBcrypt, nil
}

// VerifyPassword は平文パスワードと保存済みハッシュを比較する。一致しない場合はエラーを返す。
func VerifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
