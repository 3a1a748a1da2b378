package updater

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ggrandes/jupdate53/internal/domain"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/route53"
	"github.com/aws/aws-sdk-go/service/route53/route53iface"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Provider operation names used in errors and metrics.
const (
	OpChangeResourceRecordSets = "ChangeResourceRecordSets"
	OpGetChange                = "GetChange"
)

// ProviderError is a failure reported by, or on the way to, the DNS provider.
type ProviderError struct {
	Op   string
	Code string
	Err  error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("route53 %s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("route53 %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Route53Config holds what is needed to build the shared Route53 client.
// Credentials come from the default AWS chain (env, shared file, instance role).
type Route53Config struct {
	Region            string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Route53Client implements ChangeClient on top of the AWS SDK.
// One instance is shared by all requests.
type Route53Client struct {
	api     route53iface.Route53API
	limiter *rate.Limiter
	http    *http.Client
	log     zerolog.Logger
	record  func(op, outcome string)
}

// ClientOption configures a Route53Client.
type ClientOption func(*Route53Client)

// WithRequestRecorder registers a callback for every provider call outcome.
func WithRequestRecorder(fn func(op, outcome string)) ClientOption {
	return func(c *Route53Client) {
		c.record = fn
	}
}

// NewRoute53Client opens an AWS session and returns a client that is
// released with Close.
func NewRoute53Client(cfg Route53Config, log zerolog.Logger, opts ...ClientOption) (*Route53Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}

	config := aws.NewConfig().
		WithRegion(cfg.Region).
		WithHTTPClient(httpClient).
		WithCredentialsChainVerboseErrors(true)

	s, err := session.NewSession(config)
	if err != nil {
		return nil, fmt.Errorf("error starting new AWS session: %w", err)
	}
	s.Handlers.Send.PushFront(func(r *request.Request) {
		log.Debug().Str("service", r.ClientInfo.ServiceName).Str("operation", r.Operation.Name).Msg("AWS API request")
	})

	c := newRoute53Client(route53.New(s), cfg.RequestsPerSecond, log, opts...)
	c.http = httpClient
	return c, nil
}

func newRoute53Client(api route53iface.Route53API, rps float64, log zerolog.Logger, opts ...ClientOption) *Route53Client {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	c := &Route53Client{
		api:     api,
		limiter: rate.NewLimiter(limit, 1),
		log:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitChangeBatch sends all changes in one ChangeResourceRecordSets call.
func (c *Route53Client) SubmitChangeBatch(ctx context.Context, zoneID string, changes []domain.Change) (domain.ChangeInfo, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.ChangeInfo{}, fmt.Errorf("route53 rate limit: %w", err)
	}

	batch := &route53.ChangeBatch{Changes: make([]*route53.Change, 0, len(changes))}
	for _, ch := range changes {
		batch.Changes = append(batch.Changes, &route53.Change{
			Action: aws.String(ch.Action),
			ResourceRecordSet: &route53.ResourceRecordSet{
				Name: aws.String(ch.Name),
				Type: aws.String(ch.RecordType),
				TTL:  aws.Int64(ch.TTL),
				ResourceRecords: []*route53.ResourceRecord{
					{Value: aws.String(ch.Value)},
				},
			},
		})
	}

	out, err := c.api.ChangeResourceRecordSetsWithContext(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		ChangeBatch:  batch,
	})
	if err != nil {
		return domain.ChangeInfo{}, c.fail(OpChangeResourceRecordSets, err)
	}
	if out.ChangeInfo == nil {
		return domain.ChangeInfo{}, c.fail(OpChangeResourceRecordSets, errors.New("response without change info"))
	}

	c.ok(OpChangeResourceRecordSets)
	info := domain.ChangeInfo{
		ID:     aws.StringValue(out.ChangeInfo.Id),
		Status: toStatus(aws.StringValue(out.ChangeInfo.Status)),
	}
	c.log.Info().Str("change_id", info.ID).Str("status", string(info.Status)).Msg("change batch submitted")
	return info, nil
}

// GetChangeStatus fetches the current status of a submitted change.
func (c *Route53Client) GetChangeStatus(ctx context.Context, changeID string) (domain.ChangeStatus, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.StatusError, fmt.Errorf("route53 rate limit: %w", err)
	}

	out, err := c.api.GetChangeWithContext(ctx, &route53.GetChangeInput{Id: aws.String(changeID)})
	if err != nil {
		return domain.StatusError, c.fail(OpGetChange, err)
	}
	if out.ChangeInfo == nil {
		return domain.StatusError, c.fail(OpGetChange, errors.New("response without change info"))
	}

	c.ok(OpGetChange)
	return toStatus(aws.StringValue(out.ChangeInfo.Status)), nil
}

// Close releases pooled connections. The client must not be used afterwards.
func (c *Route53Client) Close() error {
	if c.http != nil {
		c.http.CloseIdleConnections()
	}
	return nil
}

func (c *Route53Client) ok(op string) {
	if c.record != nil {
		c.record(op, "ok")
	}
}

func (c *Route53Client) fail(op string, err error) error {
	perr := &ProviderError{Op: op, Err: err}
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		perr.Code = aerr.Code()
	}
	if c.record != nil {
		c.record(op, "error")
	}
	return perr
}

func toStatus(s string) domain.ChangeStatus {
	switch s {
	case route53.ChangeStatusInsync:
		return domain.StatusInSync
	case route53.ChangeStatusPending:
		return domain.StatusPending
	default:
		// Unknown values are treated as not yet converged.
		return domain.ChangeStatus(s)
	}
}
