package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecrew/planner/engine"
)

// =============================================================================
// DETECTION & RECORDING
// =============================================================================

func TestConflictService_DetectAndRecord_CreatesOnlyOverlapping(t *testing.T) {
	// GIVEN: Allocations on Feb 4, 6 and 10; absence covering Feb 5-7
	// WHEN: Detecting conflicts for the absence
	// THEN: Exactly one conflict is recorded, for the Feb 6 allocation,
	//       denormalizing the absence category

	f := newFixture(t)
	ctx := context.Background()
	user := f.addEmployee(t, "u1", 40, true)
	phase := f.addPhase(t, "p1", date(2026, time.February, 1), date(2026, time.February, 28))

	f.createAllocation(t, user, phase, date(2026, time.February, 4))
	hit := f.createAllocation(t, user, phase, date(2026, time.February, 6))
	f.createAllocation(t, user, phase, date(2026, time.February, 10))

	absence := f.addAbsence(t, user, date(2026, time.February, 5), date(2026, time.February, 7), engine.AbsenceSick)

	created, err := f.conflicts.DetectAndRecordConflicts(ctx, absence)
	require.NoError(t, err)

	require.Len(t, created, 1)
	assert.Equal(t, hit.ID, created[0].AllocationID)
	assert.Equal(t, absence.ID, created[0].AbsenceID)
	assert.Equal(t, user, created[0].UserID)
	assert.Equal(t, engine.AbsenceSick, created[0].Category)
	assert.True(t, created[0].Date.Equal(date(2026, time.February, 6)))
	assert.NotEmpty(t, created[0].ID, "persisted conflicts carry generated ids")
	assert.False(t, created[0].IsResolved())
}

func TestConflictService_DetectAndRecord_Idempotent(t *testing.T) {
	// GIVEN: A conflict already recorded for an unchanged absence
	// WHEN: Running detection again
	// THEN: The second run yields zero new records

	f := newFixture(t)
	ctx := context.Background()
	user := f.addEmployee(t, "u1", 40, true)
	phase := f.addPhase(t, "p1", date(2026, time.February, 1), date(2026, time.February, 28))
	f.createAllocation(t, user, phase, date(2026, time.February, 6))
	absence := f.addAbsence(t, user, date(2026, time.February, 5), date(2026, time.February, 7), engine.AbsenceVacation)

	first, err := f.conflicts.DetectAndRecordConflicts(ctx, absence)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := f.conflicts.DetectAndRecordConflicts(ctx, absence)
	require.NoError(t, err)
	assert.Empty(t, second)
}

// =============================================================================
// UPDATE RECONCILIATION
// =============================================================================

func TestConflictService_Update_MaterialChange_Rederives(t *testing.T) {
	// GIVEN: A recorded conflict on Feb 6 for an absence spanning Feb 5-7
	// WHEN: The absence end date shrinks to Feb 5
	// THEN: Old conflicts are dropped and re-derivation finds nothing

	f := newFixture(t)
	ctx := context.Background()
	user := f.addEmployee(t, "u1", 40, true)
	phase := f.addPhase(t, "p1", date(2026, time.February, 1), date(2026, time.February, 28))
	f.createAllocation(t, user, phase, date(2026, time.February, 6))

	old := f.addAbsence(t, user, date(2026, time.February, 5), date(2026, time.February, 7), engine.AbsenceVacation)
	_, err := f.conflicts.DetectAndRecordConflicts(ctx, old)
	require.NoError(t, err)

	updated := old
	updated.EndDate = date(2026, time.February, 5)

	recreated, err := f.conflicts.UpdateConflictsForAbsence(ctx, old, updated)
	require.NoError(t, err)
	assert.Empty(t, recreated)

	open, err := f.conflicts.OpenConflicts(ctx, testTenant)
	require.NoError(t, err)
	assert.Empty(t, open, "old conflicts must be deleted on a material change")
}

func TestConflictService_Update_MetadataOnly_NoMutation(t *testing.T) {
	// GIVEN: A recorded conflict
	// WHEN: Only the absence category changes
	// THEN: No repository mutation occurs and the empty list is returned

	f := newFixture(t)
	ctx := context.Background()
	user := f.addEmployee(t, "u1", 40, true)
	phase := f.addPhase(t, "p1", date(2026, time.February, 1), date(2026, time.February, 28))
	f.createAllocation(t, user, phase, date(2026, time.February, 6))

	old := f.addAbsence(t, user, date(2026, time.February, 5), date(2026, time.February, 7), engine.AbsenceVacation)
	first, err := f.conflicts.DetectAndRecordConflicts(ctx, old)
	require.NoError(t, err)
	require.Len(t, first, 1)

	updated := old
	updated.Category = engine.AbsenceTraining

	recreated, err := f.conflicts.UpdateConflictsForAbsence(ctx, old, updated)
	require.NoError(t, err)
	assert.Empty(t, recreated)

	open, err := f.conflicts.OpenConflicts(ctx, testTenant)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, first[0].ID, open[0].ID, "existing conflict must survive a metadata-only edit")
}

func TestConflictService_Update_UserChange_Rederives(t *testing.T) {
	// GIVEN: An absence reassigned to another employee with their own
	//        allocation in range
	// WHEN: Updating conflicts
	// THEN: Conflicts follow the new employee

	f := newFixture(t)
	ctx := context.Background()
	u1 := f.addEmployee(t, "u1", 40, true)
	u2 := f.addEmployee(t, "u2", 40, true)
	phase := f.addPhase(t, "p1", date(2026, time.February, 1), date(2026, time.February, 28))
	f.createAllocation(t, u1, phase, date(2026, time.February, 6))
	other := f.createAllocation(t, u2, phase, date(2026, time.February, 6))

	old := f.addAbsence(t, u1, date(2026, time.February, 5), date(2026, time.February, 7), engine.AbsenceVacation)
	_, err := f.conflicts.DetectAndRecordConflicts(ctx, old)
	require.NoError(t, err)

	updated := old
	updated.UserID = u2

	recreated, err := f.conflicts.UpdateConflictsForAbsence(ctx, old, updated)
	require.NoError(t, err)
	require.Len(t, recreated, 1)
	assert.Equal(t, other.ID, recreated[0].AllocationID)
	assert.Equal(t, u2, recreated[0].UserID)
}

// =============================================================================
// CASCADES
// =============================================================================

func TestConflictService_RemoveForAbsence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.addEmployee(t, "u1", 40, true)
	phase := f.addPhase(t, "p1", date(2026, time.February, 1), date(2026, time.February, 28))
	f.createAllocation(t, user, phase, date(2026, time.February, 6))
	absence := f.addAbsence(t, user, date(2026, time.February, 5), date(2026, time.February, 7), engine.AbsenceVacation)

	_, err := f.conflicts.DetectAndRecordConflicts(ctx, absence)
	require.NoError(t, err)

	require.NoError(t, f.conflicts.RemoveConflictsForAbsence(ctx, testTenant, absence.ID))

	open, err := f.conflicts.OpenConflicts(ctx, testTenant)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestConflictService_RemoveForAllocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.addEmployee(t, "u1", 40, true)
	phase := f.addPhase(t, "p1", date(2026, time.February, 1), date(2026, time.February, 28))
	alloc := f.createAllocation(t, user, phase, date(2026, time.February, 6))
	absence := f.addAbsence(t, user, date(2026, time.February, 5), date(2026, time.February, 7), engine.AbsenceVacation)

	_, err := f.conflicts.DetectAndRecordConflicts(ctx, absence)
	require.NoError(t, err)

	require.NoError(t, f.conflicts.RemoveConflictsForAllocation(ctx, testTenant, alloc.ID))

	open, err := f.conflicts.OpenConflicts(ctx, testTenant)
	require.NoError(t, err)
	assert.Empty(t, open)
}

// =============================================================================
// THIN RESOLUTION DELEGATION
// =============================================================================

func TestConflictService_ResolveConflict_RejectsUnknownKind(t *testing.T) {
	f := newFixture(t)

	_, err := f.conflicts.ResolveConflict(context.Background(), testTenant, "c-1", engine.Resolution("escalated"), "planner-1")
	require.Error(t, err)
	assert.Equal(t, engine.CodeInvalidResolution, engine.CodeOf(err))
}
