package mirror

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afr-project/afr/pkg/transparency"
)

const evidence = "ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12"

func newSimulator(t *testing.T) *Simulator {
	t.Helper()
	m, err := New(filepath.Join(t.TempDir(), "mirror_store.json"))
	require.NoError(t, err)
	return m
}

func seedRecords(t *testing.T) ([]transparency.Record, transparency.Concern) {
	t.Helper()
	s, err := transparency.NewStore(filepath.Join(t.TempDir(), "transparency.json"), nil)
	require.NoError(t, err)

	_, err = s.SubmitCompliance("lab-1", "deploy-1", "model-1", transparency.TemplateSafetyEvaluation, "safety eval", evidence)
	require.NoError(t, err)
	c, err := s.RaiseConcern("anon_1a2b3c4d5e6f", "eval gaps", "coverage looks thin", "deploy-1")
	require.NoError(t, err)

	return s.SnapshotRecords(), c
}

func TestSyncAllMakesMirrorsConsistent(t *testing.T) {
	m := newSimulator(t)
	records, _ := seedRecords(t)

	statuses, err := m.SyncAll(records)
	require.NoError(t, err)
	require.Len(t, statuses, 3)
	for _, st := range statuses {
		assert.Equal(t, len(records), st.RecordCount)
		assert.Equal(t, statuses[0].ContentHash, st.ContentHash)
		assert.NotEmpty(t, st.LastSyncedAt)
	}

	cmp := m.Compare()
	assert.True(t, cmp.Consistent)
	assert.Empty(t, cmp.DivergentParties)

	det := m.Detect()
	assert.False(t, det.TamperingDetected)
	assert.Empty(t, det.AffectedRecords)
}

func TestTamperThenDetect(t *testing.T) {
	m := newSimulator(t)
	records, concern := seedRecords(t)
	_, err := m.SyncAll(records)
	require.NoError(t, err)

	err = m.Tamper("lab", "concern", concern.ID, "title", "nothing to see here")
	require.NoError(t, err)

	// Stored hashes were computed at sync time, so comparing them alone
	// does not expose the edit.
	assert.True(t, m.Compare().Consistent)

	det := m.Detect()
	assert.True(t, det.TamperingDetected)
	assert.Equal(t, []string{"lab"}, det.DivergentParties)
	require.Len(t, det.AffectedRecords, 1)
	assert.Equal(t, concern.ID, det.AffectedRecords[0].RecordID)
	assert.Equal(t, "nothing to see here", det.AffectedRecords[0].ValuesByParty["lab"]["title"])
	assert.Equal(t, "eval gaps", det.AffectedRecords[0].ValuesByParty["auditor"]["title"])
}

func TestResyncClearsDivergence(t *testing.T) {
	m := newSimulator(t)
	records, concern := seedRecords(t)
	_, err := m.SyncAll(records)
	require.NoError(t, err)
	require.NoError(t, m.Tamper("government", "concern", concern.ID, "description", "edited"))

	_, err = m.SyncAll(records)
	require.NoError(t, err)
	assert.False(t, m.Detect().TamperingDetected)
}

func TestTamperValidation(t *testing.T) {
	m := newSimulator(t)
	records, concern := seedRecords(t)
	_, err := m.SyncAll(records)
	require.NoError(t, err)

	err = m.Tamper("regulator", "concern", concern.ID, "title", "x")
	assert.ErrorIs(t, err, ErrValidation)
	err = m.Tamper("lab", "resolution", concern.ID, "title", "x")
	assert.ErrorIs(t, err, ErrValidation)
	err = m.Tamper("lab", "concern", "missing-id", "title", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDivergenceSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror_store.json")
	records, concern := seedRecords(t)

	m1, err := New(path)
	require.NoError(t, err)
	_, err = m1.SyncAll(records)
	require.NoError(t, err)
	require.NoError(t, m1.Tamper("auditor", "concern", concern.ID, "title", "edited"))

	m2, err := New(path)
	require.NoError(t, err)
	det := m2.Detect()
	assert.True(t, det.TamperingDetected)
	assert.Equal(t, []string{"auditor"}, det.DivergentParties)
}

func TestStatusBeforeSync(t *testing.T) {
	m := newSimulator(t)
	for _, st := range m.Status() {
		assert.Empty(t, st.ContentHash)
		assert.Zero(t, st.RecordCount)
	}
	assert.True(t, m.Compare().Consistent)
}

func TestReset(t *testing.T) {
	m := newSimulator(t)
	records, _ := seedRecords(t)
	_, err := m.SyncAll(records)
	require.NoError(t, err)

	require.NoError(t, m.Reset())
	for _, st := range m.Status() {
		assert.Zero(t, st.RecordCount)
	}
}
