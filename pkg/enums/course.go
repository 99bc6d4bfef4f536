package enums

import "fmt"

// DifficultyLevel grades a course for learners.
type DifficultyLevel string

const (
	DifficultyBeginner     DifficultyLevel = "beginner"
	DifficultyIntermediate DifficultyLevel = "intermediate"
	DifficultyAdvanced     DifficultyLevel = "advanced"
)

var validDifficultyLevels = []DifficultyLevel{
	DifficultyBeginner,
	DifficultyIntermediate,
	DifficultyAdvanced,
}

func (d DifficultyLevel) String() string {
	return string(d)
}

func (d DifficultyLevel) IsValid() bool {
	for _, candidate := range validDifficultyLevels {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDifficultyLevel converts raw input into a DifficultyLevel.
func ParseDifficultyLevel(value string) (DifficultyLevel, error) {
	for _, candidate := range validDifficultyLevels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid difficulty level %q", value)
}

// CourseStatus captures the publication state of a course.
type CourseStatus string

const (
	CourseStatusDraft     CourseStatus = "draft"
	CourseStatusPublished CourseStatus = "published"
	CourseStatusArchived  CourseStatus = "archived"
)

var validCourseStatuses = []CourseStatus{
	CourseStatusDraft,
	CourseStatusPublished,
	CourseStatusArchived,
}

func (c CourseStatus) String() string {
	return string(c)
}

func (c CourseStatus) IsValid() bool {
	for _, candidate := range validCourseStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCourseStatus converts raw input into a CourseStatus.
func ParseCourseStatus(value string) (CourseStatus, error) {
	for _, candidate := range validCourseStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid course status %q", value)
}
