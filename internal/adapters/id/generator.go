package id

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type Generator struct{}

func New() *Generator {
	return &Generator{}
}

func (g *Generator) generate(prefix string) string {
	id, err := gonanoid.New(21)
	if err != nil {
		return prefix + "_fallback"
	}
	return prefix + "_" + id
}

func (g *Generator) GenerateToolCallID() string {
	return g.generate("tc")
}

func (g *Generator) GenerateReasoningPhaseID() string {
	return g.generate("rp")
}

func (g *Generator) GenerateStreamID() string {
	return g.generate("st")
}
