package advisor

import (
	"context"

	"github.com/medscan-ai/medscan/internal/condition"
	"github.com/medscan-ai/medscan/internal/entity"
)

// FakeGenerator is a test double for the language model backend.
type FakeGenerator struct {
	Text    string
	Err     error
	PingErr error
	Calls   int
}

func NewFake(text string) *FakeGenerator {
	return &FakeGenerator{Text: text}
}

func (f *FakeGenerator) Ping(ctx context.Context) error {
	return f.PingErr
}

func (f *FakeGenerator) Generate(ctx context.Context, estimates []condition.Estimate, entities []entity.Entity) (string, error) {
	f.Calls++
	if f.Err != nil {
		return "", f.Err
	}
	return f.Text, nil
}
