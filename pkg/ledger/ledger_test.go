package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afr-project/afr/pkg/canonicalize"
	"github.com/afr-project/afr/pkg/merkle"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := New(filepath.Join(t.TempDir(), "audit_log.json"))
	require.NoError(t, err)
	return l.WithClock(func() time.Time {
		return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	})
}

func TestAppendChainsEvents(t *testing.T) {
	l := newTestLedger(t)

	e0, err := l.Append(EventSafetyEvalRun, "suite started", map[string]interface{}{"cases": 100})
	require.NoError(t, err)
	e1, err := l.Append(EventSafetyEvalPassed, "suite passed", nil)
	require.NoError(t, err)

	assert.Equal(t, 0, e0.ID)
	assert.Equal(t, 1, e1.ID)
	assert.Equal(t, canonicalize.GenesisHash, e0.PreviousHash)
	assert.Equal(t, e0.Hash, e1.PreviousHash)
	assert.True(t, canonicalize.IsDigest(e0.Hash))
}

func TestAppendRejectsUnknownType(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.Append("model_destroyed", "nope", nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestVerifyChainAndMerkleRoot(t *testing.T) {
	// Scenario: three appended events verify, and the root is
	// Hn(Hn(h0,h1), Hn(h2,h2)).
	l := newTestLedger(t)
	for _, et := range []EventType{EventSafetyEvalRun, EventSafetyEvalPassed, EventModelDeployed} {
		_, err := l.Append(et, "demo", nil)
		require.NoError(t, err)
	}

	res := l.VerifyChain()
	assert.True(t, res.Valid)
	assert.Equal(t, 3, res.CheckedEvents)
	assert.Nil(t, res.FirstInvalidID)

	h := l.Hashes()
	want := canonicalize.NodeHash(
		canonicalize.NodeHash(h[0], h[1]),
		canonicalize.NodeHash(h[2], h[2]),
	)
	assert.Equal(t, want, merkle.New(h).Root())
}

func TestTamperDetectedAtExactEvent(t *testing.T) {
	l := newTestLedger(t)
	for _, et := range []EventType{EventSafetyEvalRun, EventSafetyEvalPassed, EventModelDeployed} {
		_, err := l.Append(et, "demo", nil)
		require.NoError(t, err)
	}

	require.NoError(t, l.Tamper(1, "description", "ok"))

	res := l.VerifyChain()
	assert.False(t, res.Valid)
	require.NotNil(t, res.FirstInvalidID)
	assert.Equal(t, 1, *res.FirstInvalidID)
}

func TestTamperPreviousHashBreaksLinkage(t *testing.T) {
	l := newTestLedger(t)
	for i := 0; i < 3; i++ {
		_, err := l.Append(EventSafetyEvalRun, "demo", nil)
		require.NoError(t, err)
	}

	require.NoError(t, l.Tamper(2, "previous_hash", canonicalize.GenesisHash))

	res := l.VerifyChain()
	assert.False(t, res.Valid)
	require.NotNil(t, res.FirstInvalidID)
	assert.Equal(t, 2, *res.FirstInvalidID)
}

func TestTamperValidation(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.Append(EventSafetyEvalRun, "demo", nil)
	require.NoError(t, err)

	assert.ErrorIs(t, l.Tamper(9, "description", "x"), ErrNotFound)
	assert.ErrorIs(t, l.Tamper(0, "id", 7), ErrValidation)
	assert.ErrorIs(t, l.Tamper(0, "description", 42), ErrValidation)
	assert.ErrorIs(t, l.Tamper(0, "hash", 42), ErrValidation)
}

func TestTamperStoredHashDetected(t *testing.T) {
	l := newTestLedger(t)
	for i := 0; i < 3; i++ {
		_, err := l.Append(EventSafetyEvalRun, "demo", nil)
		require.NoError(t, err)
	}

	// Rewriting an event's own digest breaks the recompute check at that
	// event even though its content is untouched.
	require.NoError(t, l.Tamper(1, "hash", canonicalize.GenesisHash))

	res := l.VerifyChain()
	assert.False(t, res.Valid)
	require.NotNil(t, res.FirstInvalidID)
	assert.Equal(t, 1, *res.FirstInvalidID)
}

func TestListFilterAndLimit(t *testing.T) {
	l := newTestLedger(t)
	for i := 0; i < 4; i++ {
		_, err := l.Append(EventSafetyEvalRun, "run", nil)
		require.NoError(t, err)
	}
	_, err := l.Append(EventModelDeployed, "deploy", nil)
	require.NoError(t, err)

	all := l.List("", 0)
	require.Len(t, all, 5)
	assert.Equal(t, 4, all[0].ID) // newest first

	runs := l.List(EventSafetyEvalRun, 2)
	require.Len(t, runs, 2)
	for _, e := range runs {
		assert.Equal(t, EventSafetyEvalRun, e.EventType)
	}
}

func TestGetNotFound(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.Get(0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit_log.json")

	l1, err := New(path)
	require.NoError(t, err)
	_, err = l1.Append(EventTrainingStarted, "run 1", map[string]interface{}{"model_id": "gpt-safe-v2.1"})
	require.NoError(t, err)
	_, err = l1.Append(EventTrainingCompleted, "run 1 done", nil)
	require.NoError(t, err)

	l2, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, 2, l2.Length())
	assert.Equal(t, l1.LatestHash(), l2.LatestHash())
	assert.True(t, l2.VerifyChain().Valid)
}

func TestResetEmptiesLog(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.Append(EventIncidentReported, "incident", nil)
	require.NoError(t, err)

	require.NoError(t, l.Reset())
	assert.Equal(t, 0, l.Length())
	assert.Equal(t, "", l.LatestHash())
	assert.True(t, l.VerifyChain().Valid)
}
