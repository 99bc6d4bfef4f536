package queue

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRetryPolicyFixedBackoff(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, Backoff: 90 * time.Second}

	for attempt := 0; attempt < 5; attempt++ {
		if got := policy.DelayFunc(attempt, errors.New("boom"), nil); got != 90*time.Second {
			t.Fatalf("attempt %d: expected fixed 90s backoff, got %s", attempt, got)
		}
	}
}

func TestNewTranscodeTaskPayloadRoundTrip(t *testing.T) {
	payload := TranscodePayload{
		ContentID: uuid.New(),
		CourseID:  uuid.New(),
		SourceURL: "https://storage.example.com/learnhub-media/uploads/x/source.mp4",
	}

	task, err := NewTranscodeTask(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Type() != TypeVideoTranscode {
		t.Fatalf("unexpected task type %s", task.Type())
	}

	var decoded TranscodePayload
	if err := json.Unmarshal(task.Payload(), &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded != payload {
		t.Fatalf("payload mangled: %+v", decoded)
	}
}

func TestTaskTypesAreDistinct(t *testing.T) {
	types := []string{
		TypeVideoTranscode,
		TypeVideoPreview,
		TypeSearchIndex,
		TypeCourseReindex,
		TypeWelcomeEmail,
	}
	seen := map[string]bool{}
	for _, typ := range types {
		if typ == "" {
			t.Fatal("empty task type")
		}
		if seen[typ] {
			t.Fatalf("duplicate task type %s", typ)
		}
		seen[typ] = true
	}
}

func TestWeightOrDefault(t *testing.T) {
	if got := weightOrDefault(0, 8); got != 8 {
		t.Fatalf("expected fallback 8, got %d", got)
	}
	if got := weightOrDefault(-1, 8); got != 8 {
		t.Fatalf("expected fallback for negative weight, got %d", got)
	}
	if got := weightOrDefault(4, 8); got != 4 {
		t.Fatalf("expected explicit weight 4, got %d", got)
	}
}
