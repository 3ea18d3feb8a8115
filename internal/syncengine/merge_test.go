package syncengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/adrata/record-sync/internal/model"
)

func TestMergeSelfIsIdentity(t *testing.T) {
	t.Parallel()

	rec := model.Record{
		"id":       "p1",
		"email":    "jane@example.com",
		"jobTitle": "CTO",
		"phone":    nil,
		"status":   "LEAD",
		"stage":    "LEAD",
	}
	merged := Merge(rec, rec, MergeOptions{})
	assert.Equal(t, rec, merged)
}

func TestMergeNilNeverErases(t *testing.T) {
	t.Parallel()

	prev := model.Record{"id": "p1", "email": "jane@example.com", "jobTitle": "CTO"}
	incoming := model.Record{"id": "p1", "email": nil, "phone": "+1 555 0100"}

	merged := Merge(prev, incoming, MergeOptions{})
	assert.Equal(t, "jane@example.com", merged.String("email"), "sparse nil must not erase")
	assert.Equal(t, "+1 555 0100", merged.String("phone"))
	assert.Equal(t, "CTO", merged.String("jobTitle"))
}

func TestMergeExplicitClear(t *testing.T) {
	t.Parallel()

	prev := model.Record{"id": "p1", "linkedinNavigatorUrl": "https://linkedin.example/nav"}
	incoming := model.Record{"linkedinNavigatorUrl": nil}

	merged := Merge(prev, incoming, MergeOptions{ClearedField: "linkedinNavigatorUrl"})
	val, present := merged["linkedinNavigatorUrl"]
	assert.True(t, present)
	assert.Nil(t, val, "the cleared field adopts nil")
}

func TestMergeClearedFieldSurvivesSparseEcho(t *testing.T) {
	t.Parallel()

	// The user cleared linkedinNavigatorUrl; later a sparse echo for an
	// unrelated phone write arrives without the field. It must stay nil.
	cleared := Merge(
		model.Record{"id": "p1", "linkedinNavigatorUrl": "https://linkedin.example/nav"},
		model.Record{"linkedinNavigatorUrl": nil},
		MergeOptions{ClearedField: "linkedinNavigatorUrl"},
	)

	echoed := Merge(cleared, model.Record{"phone": "+1 555 0100"}, MergeOptions{})
	assert.Nil(t, echoed["linkedinNavigatorUrl"])
	assert.Equal(t, "+1 555 0100", echoed.String("phone"))
}

func TestMergePendingFieldKeepsLocalValue(t *testing.T) {
	t.Parallel()

	sess := NewEditSession(0, nil)
	sess.Begin("jobTitle")

	prev := model.Record{"id": "p1", "jobTitle": "VP Engineering", "email": "old@example.com"}
	incoming := model.Record{"id": "p1", "jobTitle": "Engineer", "email": "new@example.com"}

	merged := Merge(prev, incoming, MergeOptions{Pending: sess.IsPending})
	assert.Equal(t, "VP Engineering", merged.String("jobTitle"), "in-flight edit wins")
	assert.Equal(t, "new@example.com", merged.String("email"), "unrelated fields still sync")
}

func TestMergeRecentFieldKeepsLocalValue(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	sess := NewEditSession(3*time.Second, clock.Now)
	sess.MarkRecent("email")

	prev := model.Record{"id": "p1", "email": "fresh@example.com"}
	incoming := model.Record{"id": "p1", "email": "stale@example.com"}

	merged := Merge(prev, incoming, MergeOptions{Recent: sess.IsRecent})
	assert.Equal(t, "fresh@example.com", merged.String("email"))

	clock.Advance(4 * time.Second)
	merged = Merge(prev, incoming, MergeOptions{Recent: sess.IsRecent})
	assert.Equal(t, "stale@example.com", merged.String("email"), "window expired")
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	t.Parallel()

	prev := model.Record{"id": "p1", "email": "a@b.c"}
	incoming := model.Record{"email": "x@y.z"}

	merged := Merge(prev, incoming, MergeOptions{})
	assert.Equal(t, "x@y.z", merged.String("email"))
	assert.Equal(t, "a@b.c", prev.String("email"))
	assert.Equal(t, model.Record{"email": "x@y.z"}, incoming)
}

func TestMergeCompoundStatusStage(t *testing.T) {
	t.Parallel()

	t.Run("status drives stage", func(t *testing.T) {
		t.Parallel()
		merged := Merge(
			model.Record{"id": "p1", "status": "LEAD", "stage": "LEAD"},
			model.Record{"status": "PROSPECT"},
			MergeOptions{},
		)
		assert.Equal(t, "PROSPECT", merged.String("status"))
		assert.Equal(t, "PROSPECT", merged.String("stage"))
	})

	t.Run("stage drives status", func(t *testing.T) {
		t.Parallel()
		merged := Merge(
			model.Record{"id": "p1", "status": "LEAD", "stage": "LEAD"},
			model.Record{"stage": "CLIENT"},
			MergeOptions{},
		)
		assert.Equal(t, "CLIENT", merged.String("status"))
	})
}

func TestMergeStageAliasSharesGuards(t *testing.T) {
	t.Parallel()

	prev := model.Record{"id": "p1", "status": "PROSPECT", "stage": "PROSPECT"}
	stale := model.Record{"id": "p1", "status": "LEAD", "stage": "LEAD"}

	t.Run("pending status blocks the stage alias", func(t *testing.T) {
		t.Parallel()
		sess := NewEditSession(0, nil)
		sess.Begin("status")

		merged := Merge(prev, stale, MergeOptions{Pending: sess.IsPending})
		assert.Equal(t, "PROSPECT", merged.String("status"))
		assert.Equal(t, "PROSPECT", merged.String("stage"), "stale alias must not slip past the guard")
	})

	t.Run("pending stage blocks status too", func(t *testing.T) {
		t.Parallel()
		sess := NewEditSession(0, nil)
		sess.Begin("stage")

		merged := Merge(prev, stale, MergeOptions{Pending: sess.IsPending})
		assert.Equal(t, "PROSPECT", merged.String("status"))
		assert.Equal(t, "PROSPECT", merged.String("stage"))
	})

	t.Run("recent status blocks the stage alias until the window expires", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		sess := NewEditSession(3*time.Second, clock.Now)
		sess.MarkRecent("status")

		merged := Merge(prev, stale, MergeOptions{Recent: sess.IsRecent})
		assert.Equal(t, "PROSPECT", merged.String("status"))
		assert.Equal(t, "PROSPECT", merged.String("stage"))

		clock.Advance(4 * time.Second)
		merged = Merge(prev, stale, MergeOptions{Recent: sess.IsRecent})
		assert.Equal(t, "LEAD", merged.String("status"))
		assert.Equal(t, "LEAD", merged.String("stage"))
	})
}

func TestMergeCompoundNameDecomposition(t *testing.T) {
	t.Parallel()

	t.Run("fullName splits into first and last", func(t *testing.T) {
		t.Parallel()
		merged := Merge(
			model.Record{"id": "p1", "recordType": "person", "firstName": "Old", "lastName": "Name"},
			model.Record{"fullName": "Jane Ann Doe"},
			MergeOptions{},
		)
		assert.Equal(t, "Jane Ann", merged.String("firstName"))
		assert.Equal(t, "Doe", merged.String("lastName"))
	})

	t.Run("name edit refreshes fullName too", func(t *testing.T) {
		t.Parallel()
		merged := Merge(
			model.Record{"id": "p1", "recordType": "lead"},
			model.Record{"name": "Jane Doe"},
			MergeOptions{},
		)
		assert.Equal(t, "Jane Doe", merged.String("fullName"))
		assert.Equal(t, "Jane", merged.String("firstName"))
		assert.Equal(t, "Doe", merged.String("lastName"))
	})

	t.Run("single token has no last name", func(t *testing.T) {
		t.Parallel()
		merged := Merge(
			model.Record{"id": "p1", "recordType": "person"},
			model.Record{"fullName": "Cher"},
			MergeOptions{},
		)
		assert.Equal(t, "Cher", merged.String("firstName"))
		assert.Equal(t, "", merged.String("lastName"))
	})

	t.Run("company names never decompose", func(t *testing.T) {
		t.Parallel()
		merged := Merge(
			model.Record{"id": "co7", "recordType": "company"},
			model.Record{"name": "Acme Rocket Supplies"},
			MergeOptions{},
		)
		assert.False(t, merged.Has("firstName"))
		assert.False(t, merged.Has("lastName"))
		assert.False(t, merged.Has("fullName"))
	})
}

func TestMergeNameDecompositionRespectsGuards(t *testing.T) {
	t.Parallel()

	prev := model.Record{
		"id":         "p1",
		"recordType": "person",
		"firstName":  "Janet",
		"lastName":   "Doe",
		"fullName":   "Janet Doe",
	}

	t.Run("pending firstName survives an incoming fullName", func(t *testing.T) {
		t.Parallel()
		sess := NewEditSession(0, nil)
		sess.Begin("firstName")

		merged := Merge(prev, model.Record{"fullName": "Jane Smith"}, MergeOptions{Pending: sess.IsPending})
		assert.Equal(t, "Janet", merged.String("firstName"), "in-flight edit wins over the decomposition")
		assert.Equal(t, "Smith", merged.String("lastName"))
		assert.Equal(t, "Jane Smith", merged.String("fullName"))
	})

	t.Run("recent lastName survives an incoming name", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		sess := NewEditSession(3*time.Second, clock.Now)
		sess.MarkRecent("lastName")

		merged := Merge(prev, model.Record{"name": "Jane Smith"}, MergeOptions{Recent: sess.IsRecent})
		assert.Equal(t, "Doe", merged.String("lastName"))
		assert.Equal(t, "Jane", merged.String("firstName"))
		assert.Equal(t, "Jane Smith", merged.String("fullName"))
	})
}

func TestMergeFromEmptyPrev(t *testing.T) {
	t.Parallel()

	var prev model.Record
	merged := Merge(prev, model.Record{"id": "p1", "email": "a@b.c"}, MergeOptions{})
	assert.Equal(t, "p1", merged.ID())
	assert.Equal(t, "a@b.c", merged.String("email"))
}
