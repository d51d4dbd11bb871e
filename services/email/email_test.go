package emailsvc

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trezcool/tayari/core"
	logsvc "github.com/trezcool/tayari/services/logger"
)

func setup() (core.Logger, *core.Config) {
	conf := &core.Config{
		AppName:          "Tayari",
		TestMode:         true,
		DefaultFromEmail: mail.Address{Name: "Tayari", Address: "noreply@localhost"},
	}
	return logsvc.NewRollbarLogger(zap.NewNop().Sugar(), conf), conf
}

func message() core.EmailMessage {
	return core.EmailMessage{
		To:          []mail.Address{{Name: "Awe", Address: "awe@test.cd"}},
		Cc:          []mail.Address{{Address: "boss@test.cd"}},
		Subject:     "Hello",
		TextContent: "plain body",
		HTMLContent: "<p>html body</p>",
	}
}

func TestConsoleService_format(t *testing.T) {
	svc := NewConsoleServiceMock(setup())

	body, err := svc.format(message())
	require.NoError(t, err)
	assert.Contains(t, body, "Subject: [Tayari] Hello\r\n")
	assert.Contains(t, body, `To: "Awe" <awe@test.cd>`)
	assert.Contains(t, body, "CC: <boss@test.cd>")
	assert.Contains(t, body, "plain body")
	assert.Contains(t, body, "<p>html body</p>")
}

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	svc := NewConsoleServiceMock(setup())

	ok := message()
	noRecipient := message()
	noRecipient.To = nil
	svc.SendMessages(&ok, &noRecipient, &core.EmailMessage{To: ok.To})

	sent := svc.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Hello", sent[0].Subject)
}

func TestSendgridService_prepare(t *testing.T) {
	svc := NewSendgridService(setup()).(*sendgridService)

	m := svc.prepare(message())
	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "[Tayari] Hello", p.Subject)
	require.Len(t, p.To, 1)
	assert.Equal(t, "awe@test.cd", p.To[0].Address)
	require.Len(t, p.CC, 1)
	assert.Empty(t, p.BCC)
	assert.Equal(t, "noreply@localhost", m.From.Address)
	require.Len(t, m.Content, 2)
	assert.Equal(t, "text/plain", m.Content[0].Type)
}
