package credential

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/machsheltie/Equoria-sub009/services/audit"
	"github.com/machsheltie/Equoria-sub009/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// captureRecorder records events synchronously so tests can assert on them.
type captureRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *captureRecorder) Record(event audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *captureRecorder) Events() []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.Event, len(r.events))
	copy(out, r.events)
	return out
}

func newTestService(t *testing.T) (*Service, *captureRecorder, *gorm.DB) {
	db := testutils.SetupTestDB(t, &Credential{})
	recorder := &captureRecorder{}
	service := NewService(db, testutils.GetTestConfig(), recorder, nil)
	return service, recorder, db
}

func TestService_Issue(t *testing.T) {
	service, _, db := newTestService(t)

	issued, err := service.Issue(42, "Firefox / Linux")

	require.NoError(t, err)
	require.NotEmpty(t, issued.Secret)
	assert.True(t, issued.Credential.Active)
	assert.False(t, issued.Credential.Invalidated)
	assert.Equal(t, uint(42), issued.Credential.UserID)
	assert.NotEmpty(t, issued.Credential.FamilyID)
	assert.True(t, issued.Credential.ExpiresAt.After(time.Now()))

	// The plaintext secret is never stored.
	var stored Credential
	require.NoError(t, db.First(&stored, issued.Credential.ID).Error)
	assert.NotEqual(t, issued.Secret, stored.SecretHash)
	assert.Equal(t, service.hashSecret(issued.Secret), stored.SecretHash)
}

func TestService_Issue_DistinctFamilies(t *testing.T) {
	service, _, _ := newTestService(t)

	first, err := service.Issue(1, "")
	require.NoError(t, err)
	second, err := service.Issue(1, "")
	require.NoError(t, err)

	assert.NotEqual(t, first.Credential.FamilyID, second.Credential.FamilyID)
	assert.NotEqual(t, first.Secret, second.Secret)
}

func TestService_Rotate_HappyPathThenReplay(t *testing.T) {
	service, recorder, _ := newTestService(t)

	issued, err := service.Issue(1, "Firefox / Linux")
	require.NoError(t, err)
	familyID := issued.Credential.FamilyID

	// First exchange succeeds and stays in the family.
	result, err := service.Rotate(issued.Secret, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, familyID, result.Credential.FamilyID)
	assert.Equal(t, issued.Credential.ID, result.OldID)
	assert.NotEqual(t, issued.Secret, result.Secret)
	assert.Equal(t, "Firefox / Linux", result.Credential.DeviceInfo)

	// Replaying the consumed secret trips reuse detection.
	replayed, err := service.Rotate(issued.Secret, RequestMeta{IPAddress: "203.0.113.7"})
	require.Error(t, err)
	assert.Nil(t, replayed)
	assert.ErrorIs(t, err, ErrReuseDetected)

	events := recorder.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.KindReuseDetected, events[0].Kind)
	assert.Equal(t, familyID, events[0].FamilyID)
	assert.Equal(t, uint(1), events[0].UserID)
	assert.Equal(t, "203.0.113.7", events[0].IPAddress)

	// The legitimate successor is collateral damage: the whole family is out.
	postReuse, err := service.Rotate(result.Secret, RequestMeta{})
	require.Error(t, err)
	assert.Nil(t, postReuse)
	assert.ErrorIs(t, err, ErrFamilyInvalidated)

	// No further invalidation side effects, no further reuse events.
	assert.Len(t, recorder.Events(), 1)
}

func TestService_Rotate_UnknownSecret(t *testing.T) {
	service, recorder, _ := newTestService(t)

	result, err := service.Rotate("never-issued-secret", RequestMeta{})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrInvalidCredential)
	assert.Empty(t, recorder.Events())
}

func TestService_Rotate_Expired(t *testing.T) {
	service, recorder, db := newTestService(t)

	// An expired row that is still marked active: expiry wins.
	secret := "expired-secret"
	expired := Credential{
		SecretHash: service.hashSecret(secret),
		UserID:     1,
		FamilyID:   NewFamilyID(),
		IssuedAt:   time.Now().Add(-8 * 24 * time.Hour),
		ExpiresAt:  time.Now().Add(-time.Hour),
		Active:     true,
	}
	require.NoError(t, db.Create(&expired).Error)

	result, err := service.Rotate(secret, RequestMeta{})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrExpired)
	assert.Empty(t, recorder.Events())

	// Expiry rejection does not retire or invalidate the row.
	var stored Credential
	require.NoError(t, db.First(&stored, expired.ID).Error)
	assert.True(t, stored.Active)
	assert.False(t, stored.Invalidated)
}

func TestService_Rotate_SingleActiveInvariant(t *testing.T) {
	service, _, db := newTestService(t)

	issued, err := service.Issue(1, "")
	require.NoError(t, err)
	familyID := issued.Credential.FamilyID

	secret := issued.Secret
	for i := 0; i < 5; i++ {
		result, err := service.Rotate(secret, RequestMeta{})
		require.NoError(t, err)
		secret = result.Secret

		var active int64
		require.NoError(t, db.Model(&Credential{}).Where("family_id = ? AND active = ?", familyID, true).Count(&active).Error)
		assert.Equal(t, int64(1), active)
	}

	var total int64
	require.NoError(t, db.Model(&Credential{}).Where("family_id = ?", familyID).Count(&total).Error)
	assert.Equal(t, int64(6), total)
}

func TestService_Rotate_ExactlyOnceUnderConcurrency(t *testing.T) {
	service, recorder, db := newTestService(t)

	issued, err := service.Issue(1, "")
	require.NoError(t, err)
	familyID := issued.Credential.FamilyID

	const callers = 8
	var wg sync.WaitGroup
	outcomes := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Rotate(issued.Secret, RequestMeta{})
			outcomes <- err
		}()
	}

	wg.Wait()
	close(outcomes)

	// Exactly one caller wins. A loser sees ReuseDetected, or
	// FamilyInvalidated if an earlier loser already escalated.
	successes, reuses, invalidated := 0, 0, 0
	for err := range outcomes {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrReuseDetected):
			reuses++
		case errors.Is(err, ErrFamilyInvalidated):
			invalidated++
		default:
			t.Fatalf("unexpected rotation outcome: %v", err)
		}
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, reuses+invalidated)
	assert.GreaterOrEqual(t, reuses, 1)
	assert.NotEmpty(t, recorder.Events())

	// Exactly one successor row was minted before the family was invalidated.
	var total int64
	require.NoError(t, db.Model(&Credential{}).Where("family_id = ?", familyID).Count(&total).Error)
	assert.Equal(t, int64(2), total)
}

func TestService_Rotate_PureReplay(t *testing.T) {
	service, _, _ := newTestService(t)

	issued, err := service.Issue(1, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	outcomes := make(chan error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Rotate(issued.Secret, RequestMeta{})
			outcomes <- err
		}()
	}

	wg.Wait()
	close(outcomes)

	var errs []error
	for err := range outcomes {
		errs = append(errs, err)
	}
	require.Len(t, errs, 2)

	// With two concurrent callers the loser always sees ReuseDetected: the
	// only invalidation comes from the loser itself, after its own attempt.
	if errs[0] == nil {
		assert.ErrorIs(t, errs[1], ErrReuseDetected)
	} else {
		assert.ErrorIs(t, errs[0], ErrReuseDetected)
		assert.NoError(t, errs[1])
	}
}

func TestService_Rotate_NoResurrection(t *testing.T) {
	service, _, db := newTestService(t)

	issued, err := service.Issue(1, "")
	require.NoError(t, err)

	result, err := service.Rotate(issued.Secret, RequestMeta{})
	require.NoError(t, err)

	// Replay invalidates the family.
	_, err = service.Rotate(issued.Secret, RequestMeta{})
	require.ErrorIs(t, err, ErrReuseDetected)

	var rows []Credential
	require.NoError(t, db.Where("family_id = ?", issued.Credential.FamilyID).Find(&rows).Error)
	for _, row := range rows {
		assert.False(t, row.Active)
		assert.True(t, row.Invalidated)
	}

	// Nothing in the dead family is exchangeable ever again.
	_, err = service.Rotate(result.Secret, RequestMeta{})
	assert.ErrorIs(t, err, ErrFamilyInvalidated)
	_, err = service.Rotate(issued.Secret, RequestMeta{})
	assert.ErrorIs(t, err, ErrFamilyInvalidated)
}

func TestService_RevokeFamily_LogoutThenReuse(t *testing.T) {
	service, recorder, _ := newTestService(t)

	issued, err := service.Issue(1, "")
	require.NoError(t, err)
	familyID := issued.Credential.FamilyID

	count, err := service.RevokeFamily(familyID, 1, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	events := recorder.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.KindFamilyRevoked, events[0].Kind)

	// Administrative invalidation, not attack detection: rotation after
	// logout is FamilyInvalidated and emits no reuse event.
	result, err := service.Rotate(issued.Secret, RequestMeta{})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrFamilyInvalidated)
	assert.Len(t, recorder.Events(), 1)

	// Revoking an already-dead family is a no-op with no extra event.
	count, err = service.RevokeFamily(familyID, 1, RequestMeta{})
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Len(t, recorder.Events(), 1)
}

func TestService_RevokeBySecret(t *testing.T) {
	service, _, _ := newTestService(t)

	issued, err := service.Issue(1, "")
	require.NoError(t, err)

	result, err := service.Rotate(issued.Secret, RequestMeta{})
	require.NoError(t, err)

	// Logging out with the rotated-out secret still ends the lineage.
	require.NoError(t, service.RevokeBySecret(issued.Secret, RequestMeta{}))

	_, err = service.Rotate(result.Secret, RequestMeta{})
	assert.ErrorIs(t, err, ErrFamilyInvalidated)

	assert.ErrorIs(t, service.RevokeBySecret("unknown-secret", RequestMeta{}), ErrInvalidCredential)
}

func TestIsRejection(t *testing.T) {
	assert.True(t, IsRejection(ErrInvalidCredential))
	assert.True(t, IsRejection(ErrExpired))
	assert.True(t, IsRejection(ErrFamilyInvalidated))
	assert.True(t, IsRejection(ErrReuseDetected))
	assert.False(t, IsRejection(ErrSecretGenerationFailed))
	assert.False(t, IsRejection(assert.AnError))
}

func TestService_SecretGeneration(t *testing.T) {
	service, _, _ := newTestService(t)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		secret, err := service.generateSecret()
		require.NoError(t, err)
		assert.False(t, seen[secret])
		seen[secret] = true
	}

	hash := service.hashSecret("fixed-input")
	assert.Equal(t, service.hashSecret("fixed-input"), hash)
	assert.Len(t, hash, 64)
}
