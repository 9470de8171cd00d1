// Package purity classifies function bodies as pure or impure by walking
// their syntax tree and matching call sites against side-effect rules.
package purity

import (
	"strconv"

	"github.com/Oeditus/propwise/pkg/rules"
	"github.com/Oeditus/propwise/pkg/syntax"
)

// EffectKind identifies what made a node a side effect.
type EffectKind string

// Effect kinds.
const (
	EffectModuleCall   EffectKind = "module_call"
	EffectFunctionCall EffectKind = "function_call"
	EffectReceive      EffectKind = "receive_block"
	EffectBang         EffectKind = "bang_operator"
)

// Effect is one side-effecting node found in a body.
type Effect struct {
	Kind      EffectKind `json:"kind"                yaml:"kind"`
	Qualifier string     `json:"qualifier,omitempty" yaml:"qualifier,omitempty"`
	Operation string     `json:"operation,omitempty" yaml:"operation,omitempty"`
	Arity     int        `json:"arity,omitempty"     yaml:"arity,omitempty"`
	Line      uint       `json:"line,omitempty"      yaml:"line,omitempty"`
}

func (effect Effect) String() string {
	switch effect.Kind {
	case EffectModuleCall:
		return effect.Qualifier + "." + effect.Operation + "/" + strconv.Itoa(effect.Arity)
	case EffectFunctionCall:
		return effect.Operation + "/" + strconv.Itoa(effect.Arity)
	case EffectReceive:
		return "receive"
	case EffectBang:
		return "!"
	default:
		return string(effect.Kind)
	}
}

// Verdict is the purity classification of a body. It is pure iff Effects is
// empty.
type Verdict struct {
	Effects []Effect `json:"effects,omitempty" yaml:"effects,omitempty"`
}

// Pure reports whether no side effect was found.
func (verdict Verdict) Pure() bool {
	return len(verdict.Effects) == 0
}

// Status returns "pure" or "impure".
func (verdict Verdict) Status() string {
	if verdict.Pure() {
		return "pure"
	}

	return "impure"
}

// Classify walks body in pre-order and collects every side effect in
// traversal order. Duplicates are kept. A nil rule index still flags
// receive blocks and bang operators.
func Classify(body *syntax.Node, purityRules *rules.Purity) Verdict {
	var effects []Effect

	body.VisitPreOrder(func(current *syntax.Node) {
		if effect, found := effectOf(current, purityRules); found {
			effects = append(effects, effect)
		}
	})

	return Verdict{Effects: effects}
}

func effectOf(current *syntax.Node, purityRules *rules.Purity) (Effect, bool) {
	switch current.Kind {
	case syntax.KindRemoteCall:
		if purityRules == nil {
			return Effect{}, false
		}

		qualifier := current.QualifierString()
		arity := current.Arity()

		if _, found := purityRules.MatchCall(qualifier, current.Token, arity); !found {
			return Effect{}, false
		}

		return Effect{
			Kind:      EffectModuleCall,
			Qualifier: qualifier,
			Operation: current.Token,
			Arity:     arity,
			Line:      current.Line(),
		}, true

	case syntax.KindCall:
		if purityRules == nil || !purityRules.MatchBare(current.Token, current.Arity()) {
			return Effect{}, false
		}

		return Effect{
			Kind:      EffectFunctionCall,
			Operation: current.Token,
			Arity:     current.Arity(),
			Line:      current.Line(),
		}, true

	case syntax.KindReceive:
		return Effect{Kind: EffectReceive, Line: current.Line()}, true

	case syntax.KindBang:
		return Effect{Kind: EffectBang, Line: current.Line()}, true

	default:
		return Effect{}, false
	}
}
