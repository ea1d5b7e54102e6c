package ngram

import (
	"fmt"
	"strings"
)

// Smoother defines the interface for interpolating one order's estimate with the next lower one
type Smoother interface {
	// Smooth computes the smoothed probability at one order
	// ngramCount: count of context+candidate
	// contextCount: number of counted continuations of the context
	// backoffProb: probability from the lower-order estimate
	// vocabularySize: size of the vocabulary
	Smooth(ngramCount, contextCount int64, backoffProb float64, vocabularySize int) float64

	// Name returns the name of the smoothing algorithm
	Name() string
}

// Smoother names accepted by NewSmoother
const (
	SmootherJelinekMercer = "jelinek-mercer"
	SmootherWittenBell    = "witten-bell"
	SmootherAddK          = "add-k"
)

// NewSmoother builds a smoother by configuration name
func NewSmoother(name string, lambda float64) (Smoother, error) {
	switch strings.ToLower(name) {
	case "", SmootherJelinekMercer:
		return NewJelinekMercerSmoother(lambda)
	case SmootherWittenBell:
		return NewWittenBellSmoother(), nil
	case SmootherAddK:
		return NewAddKSmoother(1.0), nil
	default:
		return nil, fmt.Errorf("unknown smoother: %s", name)
	}
}

// JelinekMercerSmoother mixes the relative frequency at an order with the lower-order estimate:
// P_n = λ·c(ctx,w)/c(ctx) + (1−λ)·P_{n−1}
type JelinekMercerSmoother struct {
	lambda float64
}

// NewJelinekMercerSmoother creates a smoother with mixing weight λ in (0,1)
func NewJelinekMercerSmoother(lambda float64) (*JelinekMercerSmoother, error) {
	if lambda <= 0 || lambda >= 1 {
		return nil, fmt.Errorf("lambda must be in (0,1), got %v", lambda)
	}
	return &JelinekMercerSmoother{lambda: lambda}, nil
}

func (s *JelinekMercerSmoother) Smooth(ngramCount, contextCount int64, backoffProb float64, vocabularySize int) float64 {
	if contextCount == 0 {
		return backoffProb
	}
	return s.lambda*float64(ngramCount)/float64(contextCount) + (1-s.lambda)*backoffProb
}

func (s *JelinekMercerSmoother) Name() string {
	return "JelinekMercer"
}

// Lambda returns the mixing weight
func (s *JelinekMercerSmoother) Lambda() float64 {
	return s.lambda
}

// AddKSmoother implements simple add-k (Laplace) smoothing; it ignores the lower order
type AddKSmoother struct {
	k float64
}

// NewAddKSmoother creates a new add-k smoother
func NewAddKSmoother(k float64) *AddKSmoother {
	if k <= 0 {
		k = 1.0 // Default to Laplace smoothing
	}
	return &AddKSmoother{k: k}
}

func (s *AddKSmoother) Smooth(ngramCount, contextCount int64, backoffProb float64, vocabularySize int) float64 {
	if contextCount == 0 {
		return backoffProb
	}
	numerator := float64(ngramCount) + s.k
	denominator := float64(contextCount) + (s.k * float64(vocabularySize))
	return numerator / denominator
}

func (s *AddKSmoother) Name() string {
	return "AddK"
}

// WittenBellSmoother implements Witten-Bell style interpolation with the vocabulary
// size standing in for the number of distinct continuations
type WittenBellSmoother struct{}

// NewWittenBellSmoother creates a new Witten-Bell smoother
func NewWittenBellSmoother() *WittenBellSmoother {
	return &WittenBellSmoother{}
}

func (s *WittenBellSmoother) Smooth(ngramCount, contextCount int64, backoffProb float64, vocabularySize int) float64 {
	if contextCount == 0 {
		return backoffProb
	}
	types := float64(vocabularySize)
	lambda := float64(contextCount) / (float64(contextCount) + types)
	return lambda*(float64(ngramCount)/float64(contextCount)) + (1-lambda)*backoffProb
}

func (s *WittenBellSmoother) Name() string {
	return "WittenBell"
}
