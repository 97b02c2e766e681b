package account

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownFeature is returned when a feature key is not one of Features().
var ErrUnknownFeature = errors.New("unknown feature")

// Feature is a logical application feature that runs background tasks.
type Feature string

const (
	FeatureTasks        Feature = "tasks"
	FeatureInsights     Feature = "insights"
	FeatureIdeation     Feature = "ideation"
	FeatureRoadmap      Feature = "roadmap"
	FeatureGitHubIssues Feature = "githubIssues"
	FeatureGitHubPRs    Feature = "githubPrs"
	FeatureUtility      Feature = "utility"
)

// Features returns every feature in display order.
func Features() []Feature {
	return []Feature{
		FeatureTasks,
		FeatureInsights,
		FeatureIdeation,
		FeatureRoadmap,
		FeatureGitHubIssues,
		FeatureGitHubPRs,
		FeatureUtility,
	}
}

// IsKnown reports whether f is one of Features().
func (f Feature) IsKnown() bool {
	for _, known := range Features() {
		if f == known {
			return true
		}
	}
	return false
}

// ParseFeature validates a feature key.
func ParseFeature(s string) (Feature, error) {
	f := Feature(s)
	if f.IsKnown() {
		return f, nil
	}
	names := make([]string, 0, len(Features()))
	for _, known := range Features() {
		names = append(names, string(known))
	}
	return "", fmt.Errorf("%w %q; known features: %s", ErrUnknownFeature, s, strings.Join(names, ", "))
}
