package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// CodeGenerator выдаёт числовые коды фиксированной ширины.
type CodeGenerator interface {
	Generate() (string, error)
}

// RandomCodeGenerator берёт коды равномерно из [0, 10^width), поэтому
// вероятность угадать код с одной попытки равна 1/10^width.
type RandomCodeGenerator struct {
	width int
	limit *big.Int
}

// NewRandomCodeGenerator создаёт генератор кодов ширины width.
func NewRandomCodeGenerator(width int) *RandomCodeGenerator {
	return &RandomCodeGenerator{
		width: width,
		limit: new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(width)), nil),
	}
}

func (g *RandomCodeGenerator) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, g.limit)
	if err != nil {
		return "", fmt.Errorf("code generator: %w", err)
	}
	return fmt.Sprintf("%0*d", g.width, n), nil
}
