package repository

import (
	"fmt"
	"strings"

	"FinScore/internal/domain/models"
)

// DecisionModelKey is the lifecycle key of the shared decision classifier.
const DecisionModelKey = "decision"

const (
	decisionArtifact     = "decision_model.json"
	decisionMetaArtifact = "decision_model_meta.json"
	userKeyPrefix        = "user:"
)

// ModelKeyFor returns the lifecycle key for a retrain target.
func ModelKeyFor(t models.RetrainTarget) string {
	if t.Kind == models.BundleDecisionClassifier {
		return DecisionModelKey
	}
	return userKeyPrefix + t.UserID
}

// TargetFor is the inverse of ModelKeyFor.
func TargetFor(modelKey string) (models.RetrainTarget, error) {
	if modelKey == DecisionModelKey {
		return models.RetrainTarget{Kind: models.BundleDecisionClassifier}, nil
	}
	if id, ok := strings.CutPrefix(modelKey, userKeyPrefix); ok && id != "" {
		return models.RetrainTarget{Kind: models.BundleExpenseRegressor, UserID: id}, nil
	}
	return models.RetrainTarget{}, fmt.Errorf("unknown model key %q", modelKey)
}

// BundleArtifactKey is the artifact store key holding the serialized bundle.
func BundleArtifactKey(modelKey string) string {
	if modelKey == DecisionModelKey {
		return decisionArtifact
	}
	return "models/" + strings.TrimPrefix(modelKey, userKeyPrefix) + ".json"
}

// SidecarArtifactKey holds the human-readable companion of a bundle:
// the category mapping for user models, the metrics metadata for the decision model.
func SidecarArtifactKey(modelKey string) string {
	if modelKey == DecisionModelKey {
		return decisionMetaArtifact
	}
	return "mappings/" + strings.TrimPrefix(modelKey, userKeyPrefix) + ".json"
}
