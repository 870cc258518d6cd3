package customer

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validate     = validator.New()
	phonePattern = regexp.MustCompile(`^\+?[0-9]{8,15}$`)
)

// Input は注文フォームで入力された購入者情報
type Input struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// Normalize は前後の空白を除き、メールアドレスを小文字にする
func (in Input) Normalize() Input {
	return Input{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:     normalizePhone(in.Phone),
	}
}

// Validate は購入者情報を検証する
func (in Input) Validate() error {
	if in.FirstName == "" || in.LastName == "" {
		return ErrNameRequired
	}
	if err := ValidateEmail(in.Email); err != nil {
		return err
	}
	if in.Phone == "" {
		return ErrPhoneRequired
	}
	if !phonePattern.MatchString(in.Phone) {
		return ErrPhoneInvalid
	}
	return nil
}

// ValidateEmail はメールアドレスの形式を検証する
func ValidateEmail(email string) error {
	if email == "" {
		return ErrEmailRequired
	}
	if err := validate.Var(email, "email"); err != nil {
		return ErrEmailInvalid
	}
	return nil
}

func normalizePhone(p string) string {
	r := strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")
	return r.Replace(strings.TrimSpace(p))
}

// User は購入者のユーザーレコード
type User struct {
	ID           int64
	Email        string
	FirstName    string
	LastName     string
	PhoneNumbers []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser は入力から新しいユーザーを作成する
func NewUser(in Input, now time.Time) *User {
	u := &User{
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	u.MergePhone(in.Phone)
	return u
}

// MergePhone は未登録の電話番号を追加する。追加した場合 true
func (u *User) MergePhone(phone string) bool {
	if phone == "" {
		return false
	}
	for _, p := range u.PhoneNumbers {
		if p == phone {
			return false
		}
	}
	u.PhoneNumbers = append(u.PhoneNumbers, phone)
	return true
}

// FullName は表示用の氏名を返す
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
