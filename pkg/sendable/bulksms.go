package sendable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tattler-io/tattler/pkg/config"
	"github.com/tattler-io/tattler/pkg/errors"
	"github.com/tattler-io/tattler/pkg/logger"
)

const bulkSMSAPIBase = "https://api.bulksms.com/v1"

// SMSGateway submits messages to an SMS aggregator and reports delivery
// status for earlier submissions.
type SMSGateway interface {
	// Send submits one message body to a set of recipients from one
	// sender and returns the gateway submission ids.
	Send(ctx context.Context, recipients []string, body, sender string, premium bool) ([]string, error)

	// DeliveryStatus returns the gateway's status name for a submission.
	DeliveryStatus(ctx context.Context, submissionID string) (string, error)
}

// BulkSMS is an SMSGateway speaking the BulkSMS REST API.
type BulkSMS struct {
	apiBase  string
	username string
	password string
	client   *http.Client
	logger   logger.Logger
}

// NewBulkSMS builds a gateway client from a "tokenID:secret" credential.
func NewBulkSMS(token string, timeout time.Duration, log logger.Logger) (*BulkSMS, error) {
	username, password, found := strings.Cut(token, ":")
	if !found || username == "" || password == "" {
		return nil, errors.New(errors.ErrInvalidConfig, "BulkSMS token must be 'tokenID:secret'")
	}
	if timeout <= 0 {
		timeout = config.DefaultSMSTimeout
	}
	if log == nil {
		log = logger.Discard
	}
	return &BulkSMS{
		apiBase:  bulkSMSAPIBase,
		username: username,
		password: password,
		client:   &http.Client{Timeout: timeout},
		logger:   log,
	}, nil
}

type bulkSMSMessage struct {
	To           []string `json:"to"`
	Body         string   `json:"body"`
	RoutingGroup string   `json:"routingGroup"`
	From         string   `json:"from,omitempty"`
}

type bulkSMSSubmission struct {
	Submission struct {
		ID string `json:"id"`
	} `json:"submission"`
	Status struct {
		Type string `json:"type"`
	} `json:"status"`
}

func (b *BulkSMS) Send(ctx context.Context, recipients []string, body, sender string, premium bool) ([]string, error) {
	routing := "STANDARD"
	if premium {
		routing = "PREMIUM"
	}
	payload, err := json.Marshal(bulkSMSMessage{
		To:           recipients,
		Body:         body,
		RoutingGroup: routing,
		From:         sender,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "cannot encode SMS submission")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.apiBase+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "cannot build SMS submission request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(b.username, b.password)

	submissions, err := b.do(req)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(submissions))
	for _, s := range submissions {
		ids = append(ids, s.Submission.ID)
	}
	b.logger.Debug("BulkSMS accepted submission", "messages", len(ids), "submissions", ids)
	return ids, nil
}

func (b *BulkSMS) DeliveryStatus(ctx context.Context, submissionID string) (string, error) {
	filter := url.QueryEscape(fmt.Sprintf("type=SENT&submission.id=%s", submissionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.apiBase+"/messages?filter="+filter, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrInternal, "cannot build SMS status request")
	}
	req.SetBasicAuth(b.username, b.password)

	submissions, err := b.do(req)
	if err != nil {
		return "", err
	}
	if len(submissions) == 0 {
		return "", errors.Newf(errors.ErrGatewayResponse, "gateway reports no message for submission '%s'", submissionID)
	}
	return strings.ToUpper(submissions[0].Status.Type), nil
}

func (b *BulkSMS) do(req *http.Request) ([]bulkSMSSubmission, error) {
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDeliveryFailed, "SMS gateway unreachable")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrGatewayResponse, "cannot read SMS gateway response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Newf(errors.ErrGatewayResponse, "SMS gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	var submissions []bulkSMSSubmission
	if err := json.Unmarshal(data, &submissions); err != nil {
		return nil, errors.Wrap(err, errors.ErrGatewayResponse, "cannot decode SMS gateway response")
	}
	return submissions, nil
}
