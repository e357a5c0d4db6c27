package sendable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tattler-io/tattler/pkg/config"
	"github.com/tattler-io/tattler/pkg/errors"
)

type gatewayCall struct {
	recipients []string
	body       string
	sender     string
	premium    bool
}

type fakeGateway struct {
	calls      []gatewayCall
	statusReqs []string
	status     string
	sendErr    error
}

func (g *fakeGateway) Send(_ context.Context, recipients []string, body, sender string, premium bool) ([]string, error) {
	if g.sendErr != nil {
		return nil, g.sendErr
	}
	g.calls = append(g.calls, gatewayCall{recipients, body, sender, premium})
	return []string{"sub-" + sender}, nil
}

func (g *fakeGateway) DeliveryStatus(_ context.Context, submissionID string) (string, error) {
	g.statusReqs = append(g.statusReqs, submissionID)
	if g.status == "" {
		return "SENT", nil
	}
	return g.status, nil
}

func newTestSMS(t *testing.T, base string, recipients []string, cfg config.SMSSettings) (*SMS, *fakeGateway) {
	t.Helper()
	s, err := NewSMS(Params{
		Scope:        "mybook",
		Event:        "signup",
		Recipients:   recipients,
		TemplateBase: base,
	}, cfg)
	require.NoError(t, err)
	gw := &fakeGateway{}
	s.SetGateway(gw)
	return s, gw
}

func TestNormalizeNumber(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+41791234567", "+41791234567", false},
		{"0041791234567", "+41791234567", false},
		{" +14155550100 ", "+14155550100", false},
		{"+0123", "", true},
		{"041791234567", "", true},
		{"41791234567", "", true},
		{"+41 79 123", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeNumber(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "number %q", tt.in)
			continue
		}
		require.NoError(t, err, "number %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestInternationalPrefixesAreEquivalent(t *testing.T) {
	plus, err := NormalizeNumber("+41791234567")
	require.NoError(t, err)
	zeros, err := NormalizeNumber("0041791234567")
	require.NoError(t, err)
	assert.Equal(t, plus, zeros)
}

func TestSenderForPicksLongestSharedPrefix(t *testing.T) {
	base := scaffoldVector(t, VectorSMS, map[string]string{"body.txt": "b"})
	cfg := config.SMSSettings{Senders: []string{"+14155550100", "+41790000000", "+41987654311"}}
	s, _ := newTestSMS(t, base, nil, cfg)

	tests := []struct {
		recipient string
		want      string
	}{
		{"+41791234567", "+41790000000"},
		{"+41987654399", "+41987654311"},
		{"+14155559999", "+14155550100"},
		{"+861090000000", "+14155550100"}, // no shared prefix, first configured wins
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.SenderFor(tt.recipient), "recipient %s", tt.recipient)
	}
}

func TestSenderForNoSenders(t *testing.T) {
	base := scaffoldVector(t, VectorSMS, map[string]string{"body.txt": "b"})
	s, _ := newTestSMS(t, base, nil, config.SMSSettings{})
	assert.Equal(t, "", s.SenderFor("+41791234567"))
}

func TestSendPartitionsRecipientsBySender(t *testing.T) {
	base := scaffoldVector(t, VectorSMS, map[string]string{"body.txt": "your code is ready"})
	cfg := config.SMSSettings{Senders: []string{"+14155550100", "+41790000000"}}
	s, gw := newTestSMS(t, base, []string{"+41791111111", "+14155552222", "+41793333333"}, cfg)

	require.NoError(t, s.Send(context.Background(), nil, 0, ModeProduction))

	require.Len(t, gw.calls, 2)
	assert.Equal(t, "+14155550100", gw.calls[0].sender)
	assert.Equal(t, []string{"+14155552222"}, gw.calls[0].recipients)
	assert.Equal(t, "+41790000000", gw.calls[1].sender)
	assert.Equal(t, []string{"+41791111111", "+41793333333"}, gw.calls[1].recipients)
	assert.Equal(t, "your code is ready", gw.calls[0].body)
	assert.False(t, gw.calls[0].premium)

	require.Len(t, gw.statusReqs, 1, "only the first submission is polled")
	assert.Equal(t, "sub-+14155550100", gw.statusReqs[0])
}

func TestSendPriorityUsesPremiumRouting(t *testing.T) {
	base := scaffoldVector(t, VectorSMS, map[string]string{"body.txt": "b"})
	s, gw := newTestSMS(t, base, []string{"+41791111111"}, config.SMSSettings{Senders: []string{"+41790000000"}})

	require.NoError(t, s.Send(context.Background(), nil, 1, ModeProduction))
	require.Len(t, gw.calls, 1)
	assert.True(t, gw.calls[0].premium)
}

func TestSMSValidateTemplate(t *testing.T) {
	base := scaffoldVector(t, VectorSMS, map[string]string{"body.txt": "hello {{user_firstname}}"})
	s, _ := newTestSMS(t, base, nil, config.SMSSettings{})
	assert.NoError(t, s.ValidateTemplate())

	empty := scaffoldVector(t, VectorSMS, map[string]string{})
	s2, _ := newTestSMS(t, empty, nil, config.SMSSettings{})
	err := s2.ValidateTemplate()
	require.Error(t, err)
	assert.Equal(t, errors.ErrTemplateMissing, errors.CodeOf(err))
}

func TestSMSContentIsTrimmed(t *testing.T) {
	base := scaffoldVector(t, VectorSMS, map[string]string{"body.txt": "code {{code}}\n"})
	s, _ := newTestSMS(t, base, nil, config.SMSSettings{})

	body, err := s.Content(map[string]interface{}{"code": "1234"})
	require.NoError(t, err)
	assert.Equal(t, "code 1234", body)
}

func TestSMSGatewayFailureSurfacesAsDeliveryError(t *testing.T) {
	base := scaffoldVector(t, VectorSMS, map[string]string{"body.txt": "b"})
	s, gw := newTestSMS(t, base, []string{"+41791111111"}, config.SMSSettings{Senders: []string{"+41790000000"}})
	gw.sendErr = errors.New(errors.ErrGatewayResponse, "401 unauthorized")

	err := s.Send(context.Background(), nil, 0, ModeProduction)
	require.Error(t, err)
	assert.Equal(t, errors.ErrDeliveryFailed, errors.CodeOf(err))
}

func TestNewSMSRejectsInvalidRecipients(t *testing.T) {
	base := scaffoldVector(t, VectorSMS, map[string]string{"body.txt": "b"})
	_, err := NewSMS(Params{
		Scope: "mybook", Event: "signup",
		Recipients:   []string{"not-a-number"},
		TemplateBase: base,
	}, config.SMSSettings{})
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidRecipient, errors.CodeOf(err))
}

func TestBulkSMSTokenValidation(t *testing.T) {
	_, err := NewBulkSMS("id:secret", 0, nil)
	assert.NoError(t, err)

	for _, token := range []string{"", "nosecret", ":", "id:", ":secret"} {
		_, err := NewBulkSMS(token, 0, nil)
		assert.Error(t, err, "token %q", token)
	}
}
