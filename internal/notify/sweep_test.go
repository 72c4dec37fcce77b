package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	ids []uuid.UUID
	err error
}

func (s *fakeSource) DueReminderIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.ids) > limit {
		return s.ids[:limit], nil
	}
	return s.ids, nil
}

type fakeDispatcher struct {
	dispatched []uuid.UUID
	failOn     map[uuid.UUID]error
}

func (d *fakeDispatcher) DispatchReminder(ctx context.Context, taskID uuid.UUID) error {
	if err, ok := d.failOn[taskID]; ok {
		return err
	}
	d.dispatched = append(d.dispatched, taskID)
	return nil
}

func TestSweepRemindersDispatchesAllDue(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	source := &fakeSource{ids: ids}
	dispatcher := &fakeDispatcher{}

	count, err := SweepReminders(context.Background(), source, dispatcher, 100, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, ids, dispatcher.dispatched)
}

func TestSweepRemindersContinuesPastDispatchFailure(t *testing.T) {
	bad := uuid.New()
	ids := []uuid.UUID{uuid.New(), bad, uuid.New()}
	source := &fakeSource{ids: ids}
	dispatcher := &fakeDispatcher{failOn: map[uuid.UUID]error{bad: errors.New("broker down")}}

	count, err := SweepReminders(context.Background(), source, dispatcher, 100, testLogger())
	require.Error(t, err)
	assert.Equal(t, 2, count)
	assert.Len(t, dispatcher.dispatched, 2)
}

func TestSweepRemindersSourceErrorAborts(t *testing.T) {
	source := &fakeSource{err: errors.New("store unavailable")}
	dispatcher := &fakeDispatcher{}

	_, err := SweepReminders(context.Background(), source, dispatcher, 100, testLogger())
	require.Error(t, err)
	assert.Empty(t, dispatcher.dispatched)
}
