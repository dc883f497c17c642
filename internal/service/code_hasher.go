package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// CodeHasher превращает код в одностороннюю свёртку и сверяет с ней введённый код.
type CodeHasher interface {
	Hash(subjectID, code string) (string, error)
	Matches(subjectID, code, hash string) bool
}

// NewCodeHasher выбирает реализацию по имени алгоритма из конфигурации.
func NewCodeHasher(algo, pepper string) (CodeHasher, error) {
	switch algo {
	case "hmac", "":
		return NewHMACCodeHasher(pepper), nil
	case "bcrypt":
		return NewBcryptCodeHasher(bcrypt.MinCost), nil
	default:
		return nil, fmt.Errorf("code hasher: неизвестный алгоритм %q", algo)
	}
}

// HMACCodeHasher HMAC-SHA256 с серверным секретом, привязанный к субъекту.
type HMACCodeHasher struct {
	pepper []byte
}

func NewHMACCodeHasher(pepper string) *HMACCodeHasher {
	return &HMACCodeHasher{pepper: []byte(pepper)}
}

func (h *HMACCodeHasher) Hash(subjectID, code string) (string, error) {
	return hex.EncodeToString(h.digest(subjectID, code)), nil
}

func (h *HMACCodeHasher) Matches(subjectID, code, hash string) bool {
	expected, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(h.digest(subjectID, code), expected) == 1
}

func (h *HMACCodeHasher) digest(subjectID, code string) []byte {
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte(subjectID))
	mac.Write([]byte{0})
	mac.Write([]byte(code))
	return mac.Sum(nil)
}

// BcryptCodeHasher хранит коды как bcrypt-хэши. Сравнение выполняется bcrypt за постоянное время.
type BcryptCodeHasher struct {
	cost int
}

func NewBcryptCodeHasher(cost int) *BcryptCodeHasher {
	return &BcryptCodeHasher{cost: cost}
}

func (h *BcryptCodeHasher) Hash(subjectID, code string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(subjectID+":"+code), h.cost)
	if err != nil {
		return "", fmt.Errorf("code hasher: %w", err)
	}
	return string(hash), nil
}

func (h *BcryptCodeHasher) Matches(subjectID, code, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(subjectID+":"+code)) == nil
}
