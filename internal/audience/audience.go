// Package audience decides whether a user qualifies for an experiment,
// rollout rule or holdout by evaluating its audience targeting.
package audience

import (
	"github.com/TimurManjosov/goexperiment/internal/condition"
	"github.com/TimurManjosov/goexperiment/internal/entities"
	"github.com/TimurManjosov/goexperiment/internal/matchers"
	"github.com/TimurManjosov/goexperiment/internal/reasons"
)

// Source resolves audience ids. project.Config satisfies it.
type Source interface {
	GetAudienceByID(id string) (*entities.Audience, error)
}

// Evaluate reports whether user passes the targeting of exp. Only a True
// result admits the user; False and Unknown both exclude.
//
// The structured AudienceConditions tree is used when present. Otherwise the
// flat AudienceIDs list is combined with OR, and an empty list admits
// everyone. kind and key only label the reasons ("experiment", "rule", ...).
func Evaluate(src Source, exp *entities.ExperimentCore, user matchers.User, kind, key string) reasons.Result[bool] {
	var r reasons.Reasons

	tree := exp.AudienceConditions
	if tree == nil {
		if len(exp.AudienceIDs) == 0 {
			r.Addf("Audiences for %s %q collectively evaluated to TRUE (no audiences).", kind, key)
			return reasons.NewResult(true, r)
		}
		refs := make([]*condition.Node, 0, len(exp.AudienceIDs))
		for _, id := range exp.AudienceIDs {
			refs = append(refs, condition.AudienceRef(id))
		}
		tree = condition.Or(refs...)
	}

	r.Addf("Evaluating audiences for %s %q: %s.", kind, key, tree)
	e := evaluator{src: src, user: user, reasons: &r}
	result := condition.Evaluate(tree, e.experimentLeaf)
	r.Addf("Audiences for %s %q collectively evaluated to %s.", kind, key, result)
	return reasons.NewResult(result.IsTrue(), r)
}

type evaluator struct {
	src     Source
	user    matchers.User
	reasons *reasons.Reasons
}

// experimentLeaf handles the terminals of an experiment-level tree, which
// are audience references and, in typed datafiles, attribute leaves.
func (e evaluator) experimentLeaf(n *condition.Node) condition.Tristate {
	if n.Kind == condition.KindLeaf {
		return e.attributeLeaf(n)
	}

	aud, err := e.src.GetAudienceByID(n.AudienceID)
	if err != nil {
		e.reasons.Addf("Audience %q is not in the datafile: %v.", n.AudienceID, err)
		return condition.Unknown
	}
	if aud.Conditions == nil {
		e.reasons.Addf("Audience %q has no usable conditions.", aud.ID)
		return condition.Unknown
	}

	e.reasons.Addf("Starting to evaluate audience %q with conditions: %s.", aud.ID, aud.Conditions)
	result := condition.Evaluate(aud.Conditions, e.attributeLeaf)
	e.reasons.Addf("Audience %q evaluated to %s.", aud.ID, result)
	return result
}

// attributeLeaf handles the terminals inside an audience definition. An
// audience may not reference another audience.
func (e evaluator) attributeLeaf(n *condition.Node) condition.Tristate {
	if n.Kind != condition.KindLeaf {
		e.reasons.Addf("Nested audience reference %q is not supported.", n.AudienceID)
		return condition.Unknown
	}
	result, why := matchers.Match(n.Leaf, e.user)
	if why != "" {
		e.reasons.Addf("%s", why)
	}
	return result
}
