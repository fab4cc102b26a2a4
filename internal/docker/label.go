package docker

import (
	"fmt"
	"strings"
	"time"
)

// Label key constants define the Docker label keys placed on build
// containers started by gitflow. They let a later run find and remove
// containers left behind by an interrupted build.
//
// All keys share the "gitflow." prefix to namespace them and avoid
// collisions with labels set by other tools.
const (
	// LabelPrefix is the common prefix for all gitflow labels.
	LabelPrefix = "gitflow."

	// LabelManagedBy identifies containers started by gitflow.
	// Key: "gitflow.managed-by", Value: always ManagedByValue.
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelProject stores the absolute host path of the project being built.
	LabelProject = LabelPrefix + "project"

	// LabelGoal stores the Maven goals the container runs, space separated.
	LabelGoal = LabelPrefix + "goal"

	// LabelCreatedAt stores the RFC3339 creation timestamp.
	LabelCreatedAt = LabelPrefix + "created-at"
)

// ManagedByValue is the constant value for the LabelManagedBy label.
const ManagedByValue = "gitflow"

// BuildLabels constructs the label map for a build container running args
// against the project at projectDir.
func BuildLabels(projectDir string, args []string, createdAt time.Time) map[string]string {
	return map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelProject:   projectDir,
		LabelGoal:      strings.Join(args, " "),
		// UTC keeps the value independent of the host's timezone.
		LabelCreatedAt: createdAt.UTC().Format(time.RFC3339),
	}
}

// ProjectFilter returns the "label" filter values that select gitflow build
// containers for one project.
func ProjectFilter(projectDir string) []string {
	return []string{
		LabelManagedBy + "=" + ManagedByValue,
		LabelProject + "=" + projectDir,
	}
}

// ParseCreatedAt returns the creation time recorded in labels.
func ParseCreatedAt(labels map[string]string) (time.Time, error) {
	if labels[LabelManagedBy] != ManagedByValue {
		return time.Time{}, fmt.Errorf("container is not managed by %s", ManagedByValue)
	}
	raw, ok := labels[LabelCreatedAt]
	if !ok {
		return time.Time{}, fmt.Errorf("missing label %s", LabelCreatedAt)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid label %s: %w", LabelCreatedAt, err)
	}
	return t, nil
}
