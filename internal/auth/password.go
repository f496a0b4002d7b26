package auth

import (
	"strings"
	"unicode"

	"customerportal/internal/common"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength 最小密码长度
const MinPasswordLength = 8

// HashPassword 使用 bcrypt 生成密码哈希
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword 校验密码，哈希为空时视为不匹配
func CheckPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePasswordPolicy 密码策略：至少 8 位，包含数字、小写、大写和非字母数字字符
func ValidatePasswordPolicy(password string) error {
	var problems []string
	if len(password) < MinPasswordLength {
		problems = append(problems, "must be at least 8 characters")
	}

	var hasDigit, hasLower, hasUpper, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case !unicode.IsLetter(r):
			hasSymbol = true
		}
	}
	if !hasDigit {
		problems = append(problems, "must contain a digit")
	}
	if !hasLower {
		problems = append(problems, "must contain a lowercase letter")
	}
	if !hasUpper {
		problems = append(problems, "must contain an uppercase letter")
	}
	if !hasSymbol {
		problems = append(problems, "must contain a non-alphanumeric character")
	}

	if len(problems) > 0 {
		return common.Validation("password %s", strings.Join(problems, ", "))
	}
	return nil
}
