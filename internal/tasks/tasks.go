package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"nguide/admin/internal/config"
	"nguide/admin/internal/email"
	"nguide/admin/internal/models"
	"nguide/admin/internal/services"
)

// TaskType defines the type of a background task.
const (
	TypeShareNotification  = "quotation:share:notify"
	TypeAccessCodeBackfill = "quotation:access_code:backfill"
)

// DefaultBackfillBatch is the number of quotations one backfill run handles.
const DefaultBackfillBatch = 200

// --- Task Client (Enqueuing tasks) ---

// RedisOpt builds the asynq connection options from the configuration.
func RedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

func NewClient(cfg *config.Config) *asynq.Client {
	return asynq.NewClient(RedisOpt(cfg))
}

// ShareNotificationPayload asks the worker to mail the share link to the
// customer.
type ShareNotificationPayload struct {
	QuotationID     int64  `json:"quotation_id"`
	QuotationNumber string `json:"quotation_number"`
	CustomerName    string `json:"customer_name"`
	To              string `json:"to"`
	ShareURL        string `json:"share_url"`
	AccessCode      string `json:"access_code"`
}

func NewShareNotificationTask(p ShareNotificationPayload) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal share notification payload: %w", err)
	}
	return asynq.NewTask(TypeShareNotification, data, asynq.Queue("critical"), asynq.MaxRetry(5)), nil
}

// BackfillPayload controls one access code backfill run.
type BackfillPayload struct {
	BatchSize int `json:"batch_size"`
}

func NewAccessCodeBackfillTask(batchSize int) (*asynq.Task, error) {
	data, err := json.Marshal(BackfillPayload{BatchSize: batchSize})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal backfill payload: %w", err)
	}
	return asynq.NewTask(TypeAccessCodeBackfill, data, asynq.Queue("low"), asynq.Unique(30*time.Minute)), nil
}

// --- Task Server (Processing tasks) ---

// AccessCodeEnsurer assigns a code to a quotation that has none.
type AccessCodeEnsurer interface {
	EnsureAccessCode(ctx context.Context, q *models.Quotation) (bool, error)
}

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg              *config.Config
	emailSender      email.Sender
	quotationService services.IQuotationService
	accessCodes      AccessCodeEnsurer
	logger           *zap.Logger
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	quotationService services.IQuotationService,
	accessCodes AccessCodeEnsurer,
	logger *zap.Logger,
) *TaskProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskProcessor{
		cfg:              cfg,
		emailSender:      emailSender,
		quotationService: quotationService,
		accessCodes:      accessCodes,
		logger:           logger,
	}
}

// NewServer configures an asynq server for the background worker.
func NewServer(cfg *config.Config, logger *zap.Logger) *asynq.Server {
	return asynq.NewServer(
		RedisOpt(cfg),
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", zap.String("type", task.Type()), zap.Error(err))
			}),
		},
	)
}

// Mux registers the task handlers.
func (p *TaskProcessor) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeShareNotification, p.HandleShareNotificationTask)
	mux.HandleFunc(TypeAccessCodeBackfill, p.HandleAccessCodeBackfillTask)
	return mux
}

// --- Task Handlers ---

var shareSubject = template.Must(template.New("subject").Parse(
	`Your quotation {{.QuotationNumber}}`))

var shareBody = template.Must(template.New("body").Parse(`Hello {{.CustomerName}},

Your travel quotation {{.QuotationNumber}} is ready.

View it here: {{.ShareURL}}
Access code: {{.AccessCode}}

{{.AppName}}
`))

// HandleShareNotificationTask mails the share link and access code.
func (p *TaskProcessor) HandleShareNotificationTask(ctx context.Context, t *asynq.Task) error {
	var payload ShareNotificationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal share notification payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.To == "" {
		return fmt.Errorf("share notification for quotation %d has no recipient: %w", payload.QuotationID, asynq.SkipRetry)
	}

	data := struct {
		ShareNotificationPayload
		AppName string
	}{payload, p.cfg.AppName}

	var subject, body bytes.Buffer
	if err := shareSubject.Execute(&subject, data); err != nil {
		return fmt.Errorf("failed to render subject: %v: %w", err, asynq.SkipRetry)
	}
	if err := shareBody.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to render body: %v: %w", err, asynq.SkipRetry)
	}

	fromAddress := p.cfg.SmtpFromAddress
	if fromAddress == "" {
		fromAddress = "noreply@example.com"
	}
	raw := email.BuildMessage(fromAddress, payload.To, subject.String(), body.String(), time.Now())

	if err := p.emailSender.Send(ctx, []string{payload.To}, subject.String(), raw); err != nil {
		p.logger.Warn("share notification not sent", zap.Int64("quotation_id", payload.QuotationID), zap.Error(err))
		return err
	}
	p.logger.Info("share notification sent", zap.Int64("quotation_id", payload.QuotationID))
	return nil
}

// HandleAccessCodeBackfillTask assigns codes to quotations created before
// sharing existed. Individual failures are logged and skipped.
func (p *TaskProcessor) HandleAccessCodeBackfillTask(ctx context.Context, t *asynq.Task) error {
	payload := BackfillPayload{BatchSize: DefaultBackfillBatch}
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("failed to unmarshal backfill payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	if payload.BatchSize <= 0 {
		payload.BatchSize = DefaultBackfillBatch
	}

	assigned, err := p.BackfillAccessCodes(ctx, payload.BatchSize)
	if err != nil {
		return err
	}
	p.logger.Info("access code backfill finished", zap.Int("assigned", assigned))
	return nil
}

// BackfillAccessCodes runs one backfill batch and returns how many codes
// were assigned.
func (p *TaskProcessor) BackfillAccessCodes(ctx context.Context, limit int) (int, error) {
	pending, err := p.quotationService.ListQuotationsWithoutAccessCode(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list quotations for backfill: %w", err)
	}

	assigned := 0
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return assigned, err
		}
		ok, err := p.accessCodes.EnsureAccessCode(ctx, &pending[i])
		if err != nil {
			p.logger.Warn("access code backfill skipped quotation", zap.Int64("quotation_id", pending[i].ID), zap.Error(err))
			continue
		}
		if ok {
			assigned++
		}
	}
	return assigned, nil
}
