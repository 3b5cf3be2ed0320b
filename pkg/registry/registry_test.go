package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	reg := Default()
	require.Len(t, reg.Streams, 3)

	stream, ok := reg.StreamFor("notifications.receiver.notify-general")
	require.True(t, ok)
	assert.Equal(t, "notifications.receiver", stream)

	fanout, ok := reg.Stream("notifications.fan-out")
	require.True(t, ok)
	assert.True(t, fanout.Broadcast)

	sub, ok := reg.Subject("notifications.email.send")
	require.True(t, ok)
	assert.Equal(t, "object", sub.Payload["type"])

	assert.ElementsMatch(t, []string{
		"notifications.email.invite",
		"notifications.email.password-reset",
		"notifications.email.send",
	}, reg.Subjects("notifications.email"))

	_, ok = reg.StreamFor("unknown.subject")
	assert.False(t, ok)
	assert.Nil(t, reg.Subjects("unknown"))
}

func TestParse_RejectsDuplicateSubjects(t *testing.T) {
	doc := `{"streams":[
		{"name":"a","subjects":[{"name":"x"}]},
		{"name":"b","subjects":[{"name":"x"}]}
	]}`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subject x")
}

func TestSubjectConstantsAreRegistered(t *testing.T) {
	reg := Default()
	expected := map[string][]string{
		StreamEmail:    {SubjectEmailInvite, SubjectEmailPasswordReset, SubjectEmailSend},
		StreamReceiver: {SubjectTransactionCreated, SubjectTransactionStatusUpdate, SubjectTransactionReminder, SubjectTransactionRequiredSigners, SubjectUserRegistered, SubjectNotifyGeneral},
		StreamFanOut:   {SubjectFanOutNew, SubjectFanOutDelete, SubjectFanOutNotifyClients},
	}
	for stream, subjects := range expected {
		assert.ElementsMatch(t, subjects, reg.Subjects(stream), stream)
	}
}
