package bucketing

import (
	"github.com/TimurManjosov/goexperiment/internal/entities"
	"github.com/TimurManjosov/goexperiment/internal/reasons"
)

// GroupSource resolves group ids. project.Config satisfies it.
type GroupSource interface {
	GetGroupByID(id string) (*entities.Group, error)
}

// Bucket assigns the user to a variation of exp, or to none.
//
// For an experiment in a mutually exclusive group the user is first bucketed
// over the group's experiment-level allocation; unless that lands on exp the
// user is not in exp at all. Otherwise the user is bucketed over exp's
// variation ranges. A nil variation is a normal outcome, never an error.
func Bucket(groups GroupSource, exp *entities.ExperimentCore, bucketingID, userID string) reasons.Result[*entities.Variation] {
	var r reasons.Reasons
	if exp == nil || exp.Key == "" {
		r.Addf("Experiment key is empty; user %q is not bucketed.", userID)
		return reasons.NewResult[*entities.Variation](nil, r)
	}

	if exp.IsGrouped() {
		group, err := groups.GetGroupByID(exp.GroupID)
		if err != nil {
			r.Addf("Group %q of experiment %q could not be resolved: %v.", exp.GroupID, exp.Key, err)
			return reasons.NewResult[*entities.Variation](nil, r)
		}
		if group.IsMutex() {
			experimentID, bucket := FindBucket(bucketingID, group.ID, group.TrafficAllocation)
			r.Addf("Assigned bucket %d to user %q in group %q.", bucket, userID, group.ID)
			if experimentID == "" {
				r.Addf("User %q is not in any experiment of group %q.", userID, group.ID)
				return reasons.NewResult[*entities.Variation](nil, r)
			}
			if experimentID != exp.ID {
				r.Addf("User %q is not in experiment %q of group %q.", userID, exp.Key, group.ID)
				return reasons.NewResult[*entities.Variation](nil, r)
			}
			r.Addf("User %q is in experiment %q of group %q.", userID, exp.Key, group.ID)
		}
	}

	variationID, bucket := FindBucket(bucketingID, exp.ID, exp.TrafficAllocation)
	r.Addf("Assigned bucket %d to user %q in experiment %q.", bucket, userID, exp.Key)
	if variationID == "" {
		r.Addf("User %q is in no variation of experiment %q.", userID, exp.Key)
		return reasons.NewResult[*entities.Variation](nil, r)
	}

	variation, ok := exp.VariationByID(variationID)
	if !ok {
		r.Addf("Bucketed into unknown variation id %q in experiment %q.", variationID, exp.Key)
		return reasons.NewResult[*entities.Variation](nil, r)
	}
	r.Addf("User %q is in variation %q of experiment %q.", userID, variation.Key, exp.Key)
	return reasons.NewResult(variation, r)
}
